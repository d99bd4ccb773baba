package tts

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// synthTask 缓存中的一次异步合成。
// 同一 chunk 标识至多创建一个任务；后来者 await 前者的结果。
type synthTask struct {
	chunk Chunk
	done  chan struct{}
	audio *Audio
	err   error
}

// await 等待任务完成或 ctx 取消
func (t *synthTask) await(ctx context.Context) (*Audio, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return t.audio, t.err
	}
}

// ensureTaskLocked 幂等地为 chunk 启动合成任务；调用方须持有 c.mu。
// 任务挂在当前会话上，会话取消时随之取消。
func (c *Controller) ensureTaskLocked(sess *session, chunk Chunk) *synthTask {
	if t, ok := c.cache[chunk.ID]; ok {
		return t
	}

	t := &synthTask{chunk: chunk, done: make(chan struct{})}
	c.cache[chunk.ID] = t

	synth := c.synth
	sess.wg.Add(1)
	go func() {
		defer sess.wg.Done()
		defer close(t.done)
		t.audio, t.err = synth.Synthesize(sess.ctx, chunk)
		if t.err != nil && !errors.Is(t.err, context.Canceled) {
			logrus.Warnf("tts: synthesize chunk %d: %v", chunk.Index, t.err)
		}
	}()
	return t
}

// prefetchLocked 从 start 起为一个窗口内尚未入缓存的 chunk 启动合成。
// lastPrefetched 单调推进，保证同一 chunk 不会被预取两次；
// 窗口上界使合成永远不会跑到播放位置太前面。
// 调用方须持有 c.mu。
func (c *Controller) prefetchLocked(sess *session, start int) {
	begin := start
	if begin <= c.lastPrefetched {
		begin = c.lastPrefetched + 1
	}
	end := start + c.opts.PrefetchWindow
	if end > len(c.chunks) {
		end = len(c.chunks)
	}
	for i := begin; i < end; i++ {
		c.ensureTaskLocked(sess, c.chunks[i])
	}
	if end-1 > c.lastPrefetched {
		c.lastPrefetched = end - 1
	}
}
