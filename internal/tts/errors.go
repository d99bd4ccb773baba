package tts

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed 控制器已被 Close，不再接受任何操作
	ErrClosed = errors.New("tts: controller closed")

	// ErrNoProvider 未配置合成后端
	ErrNoProvider = errors.New("tts: no synthesis provider configured")

	// ErrBusy 播放器同一时刻只允许一个 in-flight Play
	ErrBusy = errors.New("tts: play already in flight")
)

// SynthesisError 表示某个 chunk 的合成失败。
// 只影响该 chunk：worker 记录后跳过，会话继续。
type SynthesisError struct {
	ChunkIndex int
	Err        error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize chunk %d: %v", e.ChunkIndex, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// PlaybackError 表示底层引擎对当前缓冲的播放失败
type PlaybackError struct {
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback: %v", e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }
