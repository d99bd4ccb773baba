package tts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Options 控制器可调参数
type Options struct {
	MaxChunkLength int           // 单个 chunk 的最大长度，默认 150
	PrefetchWindow int           // 预取窗口大小，默认 4
	ChunkGap       time.Duration // chunk 之间的间隔，默认 120ms
	PausePoll      time.Duration // 暂停时的轮询间隔，默认 80ms
}

func (o Options) withDefaults() Options {
	if o.MaxChunkLength <= 0 {
		o.MaxChunkLength = DefaultMaxChunkLength
	}
	if o.PrefetchWindow <= 0 {
		o.PrefetchWindow = 4
	}
	if o.ChunkGap <= 0 {
		o.ChunkGap = 120 * time.Millisecond
	}
	if o.PausePoll <= 0 {
		o.PausePoll = 80 * time.Millisecond
	}
	return o
}

// session 一次播放会话：自己的取消域和任务计数。
// 全量 reset 时整个会话被取消并等待收尾，避免旧 worker 染指新会话。
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Controller 是唯一施加顺序与并发纪律的组件：
// 持有 chunk 列表、待播队列、合成缓存和单个顺序 worker。
// 队列、列表、缓存都只在 c.mu 下变更；worker 串行推进播放，
// 预取只影响合成何时开始，从不影响播放顺序。
type Controller struct {
	opts    Options
	chunker *Chunker
	player  PlaybackEngine
	state   *StateStore

	mu             sync.Mutex
	synth          *Synthesizer
	chunks         []Chunk
	queue          []Chunk
	cache          map[string]*synthTask
	lastPrefetched int
	nextIndex      int
	speaking       bool
	closed         bool
	sess           *session

	paused atomic.Bool
}

func NewController(player PlaybackEngine, state *StateStore, opts Options) *Controller {
	o := opts.withDefaults()
	return &Controller{
		opts:           o,
		chunker:        NewChunker(o.MaxChunkLength),
		player:         player,
		state:          state,
		cache:          make(map[string]*synthTask),
		lastPrefetched: -1,
	}
}

// SetProvider 替换合成后端；传 nil 等同于强制停止并清空后端
func (c *Controller) SetProvider(p Provider) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	if p == nil {
		c.reset()
		c.mu.Lock()
		c.synth = nil
		c.mu.Unlock()
		return nil
	}

	c.mu.Lock()
	c.synth = NewSynthesizer(p)
	c.mu.Unlock()
	return nil
}

// Speak 切分文本并入队。
// flush 为 true 时先做全量重置（取消 worker、停播、清缓存清队列），
// 序号从 0 重新分配；为 false 时序号接在已有最大序号之后，
// 新 chunk 排在现有待播 chunk 后面，全局顺序不变。
// 入队后若 worker 未在跑则拉起，并从当前播放位置触发一轮预取。
func (c *Controller) Speak(text string, flush bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.synth == nil {
		c.mu.Unlock()
		return ErrNoProvider
	}
	c.mu.Unlock()

	if flush {
		c.reset()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	chunks := c.chunker.SplitFrom(text, c.nextIndex)
	if len(chunks) == 0 {
		return nil
	}
	c.nextIndex = chunks[len(chunks)-1].Index + 1
	c.chunks = append(c.chunks, chunks...)
	c.queue = append(c.queue, chunks...)

	if c.sess == nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.sess = &session{ctx: ctx, cancel: cancel}
	}
	sess := c.sess

	c.prefetchLocked(sess, c.state.Get().CurrentChunk)

	if !c.speaking {
		c.speaking = true
		sess.wg.Add(1)
		go func() {
			defer sess.wg.Done()
			c.run(sess)
		}()
	}
	return nil
}

// run 顺序 worker：每轮取队头 chunk，等它的合成结果，交给播放器播完再前进。
// 单个 chunk 的合成/播放失败只记录并跳过，会话降级继续；
// 只有显式的 Stop/Close/flush 重置才终止循环。
func (c *Controller) run(sess *session) {
	defer func() {
		c.mu.Lock()
		current := c.sess == sess
		if current {
			c.speaking = false
		}
		empty := len(c.queue) == 0
		c.mu.Unlock()

		if current && empty {
			c.state.Update(func(s *State) {
				s.Status = StatusEnded
				s.TotalChunks = 0
			})
		}
	}()

	for {
		if sess.ctx.Err() != nil {
			return
		}

		// 暂停时小步轮询，不忙等
		if c.paused.Load() {
			select {
			case <-sess.ctx.Done():
				return
			case <-time.After(c.opts.PausePoll):
			}
			continue
		}

		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		chunk := c.queue[0]
		c.queue = c.queue[1:]
		remaining := len(c.queue)
		task := c.ensureTaskLocked(sess, chunk)
		c.prefetchLocked(sess, chunk.Index+1)
		c.mu.Unlock()

		c.state.Update(func(s *State) {
			s.CurrentChunk = chunk.Index
			s.TotalChunks = remaining
		})

		a, err := task.await(sess.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.state.Update(func(s *State) { s.ErrMessage = err.Error() })
			continue
		}

		if err := c.player.Play(sess.ctx, a); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logrus.Warnf("tts: play chunk %d: %v", chunk.Index, err)
			c.state.Update(func(s *State) { s.ErrMessage = err.Error() })
			continue
		}

		if remaining > 0 {
			// chunk 之间留一小段间隔，规避引擎连续换流时的状态竞争
			select {
			case <-sess.ctx.Done():
				return
			case <-time.After(c.opts.ChunkGap):
			}
		}
	}
}

// Pause 置暂停标志并转发给播放器；不取消任何 in-flight 合成
func (c *Controller) Pause() {
	if c.isClosed() {
		return
	}
	if c.paused.CompareAndSwap(false, true) {
		c.player.Pause()
	}
}

// Resume 清除暂停标志并恢复播放
func (c *Controller) Resume() {
	if c.isClosed() {
		return
	}
	if c.paused.CompareAndSwap(true, false) {
		c.player.Resume()
	}
}

// FastForward 在当前 chunk 内相对跳转
func (c *Controller) FastForward(delta time.Duration) {
	if c.isClosed() {
		return
	}
	c.player.SeekBy(delta)
}

// SetSpeed 设置播放速率
func (c *Controller) SetSpeed(ratio float64) {
	if c.isClosed() {
		return
	}
	c.player.SetSpeed(ratio)
}

// SkipNext 从队列移除下一个尚未开始的 chunk，不影响当前播放
func (c *Controller) SkipNext() {
	c.mu.Lock()
	if c.closed || len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}
	skipped := c.queue[0]
	c.queue = c.queue[1:]
	remaining := len(c.queue)
	c.mu.Unlock()

	logrus.Debugf("tts: skip chunk %d", skipped.Index)
	c.state.Update(func(s *State) { s.TotalChunks = remaining })
}

// Stop 取消 worker、播放器和所有未完成的合成，状态回到 Idle
func (c *Controller) Stop() {
	if c.isClosed() {
		return
	}
	c.reset()
}

// Close 终止控制器并释放底层引擎；之后任何操作都返回 ErrClosed
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.reset()
	return c.player.Close()
}

// State 返回当前状态快照
func (c *Controller) State() State {
	return c.state.Get()
}

// Updates 订阅状态流
func (c *Controller) Updates() <-chan State {
	return c.state.Subscribe()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// reset 全量重置：取消当前会话、停掉播放器、清空队列/列表/缓存并归零计数。
// 缓存整体作废，未完成的合成任务随会话取消。
func (c *Controller) reset() {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.speaking = false
	c.queue = nil
	c.chunks = nil
	c.cache = make(map[string]*synthTask)
	c.lastPrefetched = -1
	c.nextIndex = 0
	c.mu.Unlock()

	if sess != nil {
		sess.cancel()
	}
	c.player.Stop()
	c.player.Clear()
	if sess != nil {
		sess.wg.Wait()
	}
	c.paused.Store(false)

	c.state.Update(func(s *State) {
		s.Status = StatusIdle
		s.PositionMs = 0
		s.DurationMs = 0
		s.CurrentChunk = 0
		s.TotalChunks = 0
		s.ErrMessage = ""
	})
}
