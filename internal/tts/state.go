package tts

import "sync"

// Status 表示播放状态机的状态
type Status int

const (
	StatusIdle Status = iota
	StatusBuffering
	StatusPlaying
	StatusPaused
	StatusEnded
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusBuffering:
		return "buffering"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusEnded:
		return "ended"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State 统一发布的播放进度信息。
// Player 写播放相关字段，Controller 写 chunk 进度字段，
// 所有写入都经过同一个 StateStore，不存在两个并发的半更新。
type State struct {
	Status       Status
	PositionMs   int64   // 当前播放位置（毫秒）
	DurationMs   int64   // 当前缓冲总时长（毫秒）
	Speed        float64 // 播放速率
	CurrentChunk int     // 正在处理的 chunk 序号
	TotalChunks  int     // 队列中剩余待播放的 chunk 数
	ErrMessage   string  // 最近一次失败信息，供观察者展示
}

// StateStore 持有单条持续覆盖的状态记录，并向订阅者广播快照
type StateStore struct {
	mu   sync.RWMutex
	cur  State
	subs []chan State
}

func NewStateStore() *StateStore {
	return &StateStore{cur: State{Status: StatusIdle, Speed: 1.0}}
}

// Get 返回当前状态快照
func (s *StateStore) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update 在锁内应用修改后广播新快照
func (s *StateStore) Update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.cur)
	snapshot := s.cur
	subs := s.subs
	s.mu.Unlock()

	// 订阅通道带缓冲，非阻塞发送：慢消费者丢中间帧，不拖住写入方
	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// Subscribe 订阅状态变化，返回的通道会先收到当前快照
func (s *StateStore) Subscribe() <-chan State {
	ch := make(chan State, 16)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	ch <- s.cur
	s.mu.Unlock()
	return ch
}
