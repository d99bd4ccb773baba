package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
	"github.com/sirupsen/logrus"

	"narro/internal/audio"
)

const (
	// 位置采样间隔
	positionInterval = 100 * time.Millisecond

	playerBitDepth  = 16
	resampleQuality = 4
)

// PlaybackEngine 是 Controller 依赖的播放引擎。
// Play 阻塞到当前缓冲播完、失败或被取消；命令方法同步下发、无返回值。
type PlaybackEngine interface {
	Play(ctx context.Context, a *Audio) error
	Pause()
	Resume()
	Stop()
	Clear()
	SeekBy(delta time.Duration)
	SetSpeed(ratio float64)
	Close() error
}

// Player 将 beep/speaker 封装为带显式状态机的播放器：
// Idle → Buffering → Playing/Paused → Ended|Error。
// 引擎回调（流结束、解码错误）都折算成状态机迁移，而不是嵌套回调。
type Player struct {
	sampleRate beep.SampleRate
	channels   int
	state      *StateStore

	mu        sync.Mutex
	playing   bool
	source    beep.StreamSeekCloser
	format    beep.Format
	resampler *beep.Resampler
	ctrl      *beep.Ctrl
	speed     float64
	stopCh    chan struct{}
	stopOnce  *sync.Once
}

// NewPlayer 初始化底层 speaker 并返回播放器。
// 一个进程只应创建一个 Player（speaker 是全局设备）。
func NewPlayer(sampleRate, channels int, state *StateStore) (*Player, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return &Player{
		sampleRate: sr,
		channels:   channels,
		state:      state,
		speed:      1.0,
	}, nil
}

// decode 把合成结果变成可寻址的流。
// 裸 PCM 包上最小 WAV 头后直接解码，无需临时文件。
func (p *Player) decode(a *Audio) (beep.StreamSeekCloser, beep.Format, error) {
	switch a.Encoding {
	case EncodingPCM:
		sr := a.SampleRate
		if sr == 0 {
			sr = int(p.sampleRate)
		}
		wrapped := audio.WrapPCM(a.Data, sr, p.channels, playerBitDepth)
		return wav.Decode(bytes.NewReader(wrapped))
	case EncodingMP3:
		return mp3.Decode(io.NopCloser(bytes.NewReader(a.Data)))
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported encoding %q", a.Encoding)
	}
}

// Play 播放一个缓冲，阻塞到播完、引擎报错或 ctx 取消。
// 取消通过 context.Canceled 上抛，和自然播完、播放失败严格区分。
func (p *Player) Play(ctx context.Context, a *Audio) error {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return ErrBusy
	}
	p.playing = true
	stopCh := make(chan struct{})
	p.stopCh = stopCh
	p.stopOnce = &sync.Once{}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing = false
		p.stopCh = nil
		p.stopOnce = nil
		p.mu.Unlock()
	}()

	// 立即进入 Buffering，位置清零；时长先用合成结果声明的值
	p.state.Update(func(s *State) {
		s.Status = StatusBuffering
		s.PositionMs = 0
		s.DurationMs = int64(a.Duration * 1000)
		s.ErrMessage = ""
	})

	source, format, err := p.decode(a)
	if err != nil {
		perr := &PlaybackError{Err: err}
		p.state.Update(func(s *State) {
			s.Status = StatusError
			s.ErrMessage = perr.Error()
		})
		return perr
	}
	defer source.Close()

	durationMs := int64(format.SampleRate.D(source.Len()) / time.Millisecond)

	var streamer beep.Streamer = source
	if format.SampleRate != p.sampleRate {
		streamer = beep.Resample(resampleQuality, format.SampleRate, p.sampleRate, streamer)
	}

	p.mu.Lock()
	p.source = source
	p.format = format
	p.resampler = beep.ResampleRatio(resampleQuality, p.speed, streamer)
	p.ctrl = &beep.Ctrl{Streamer: p.resampler}
	ctrl := p.ctrl
	p.mu.Unlock()

	done := make(chan struct{})
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() { close(done) })))

	p.state.Update(func(s *State) {
		s.DurationMs = durationMs
		s.Status = StatusPlaying
	})

	ticker := time.NewTicker(positionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// 调用方放弃本次播放：清掉引擎里的流后原样上抛取消
			speaker.Clear()
			p.clearCurrent()
			return ctx.Err()

		case <-stopCh:
			p.clearCurrent()
			p.state.Update(func(s *State) {
				s.Status = StatusIdle
				s.PositionMs = 0
			})
			return context.Canceled

		case <-done:
			p.clearCurrent()
			p.state.Update(func(s *State) {
				s.Status = StatusEnded
				if s.PositionMs < durationMs {
					s.PositionMs = durationMs
				}
			})
			return nil

		case <-ticker.C:
			speaker.Lock()
			pos := source.Position()
			srcErr := source.Err()
			speaker.Unlock()

			if srcErr != nil {
				speaker.Clear()
				p.clearCurrent()
				perr := &PlaybackError{Err: srcErr}
				p.state.Update(func(s *State) {
					s.Status = StatusError
					s.ErrMessage = perr.Error()
				})
				return perr
			}

			posMs := int64(format.SampleRate.D(pos) / time.Millisecond)
			if posMs > durationMs {
				posMs = durationMs
			}
			p.state.Update(func(s *State) {
				s.PositionMs = posMs
			})
		}
	}
}

func (p *Player) clearCurrent() {
	p.mu.Lock()
	p.source = nil
	p.resampler = nil
	p.ctrl = nil
	p.mu.Unlock()
}

// Pause 暂停当前播放
func (p *Player) Pause() {
	p.mu.Lock()
	ctrl := p.ctrl
	p.mu.Unlock()
	if ctrl != nil {
		speaker.Lock()
		ctrl.Paused = true
		speaker.Unlock()
	}
	p.state.Update(func(s *State) {
		if s.Status == StatusPlaying || s.Status == StatusBuffering {
			s.Status = StatusPaused
		}
	})
}

// Resume 恢复播放
func (p *Player) Resume() {
	p.mu.Lock()
	ctrl := p.ctrl
	p.mu.Unlock()
	if ctrl != nil {
		speaker.Lock()
		ctrl.Paused = false
		speaker.Unlock()
	}
	p.state.Update(func(s *State) {
		if s.Status == StatusPaused {
			s.Status = StatusPlaying
		}
	})
}

// Stop 停掉引擎并中断 in-flight 的 Play（记作取消，不是失败）
func (p *Player) Stop() {
	speaker.Clear()
	p.mu.Lock()
	ch, once := p.stopCh, p.stopOnce
	p.mu.Unlock()
	if ch != nil {
		once.Do(func() { close(ch) })
	}
}

// Clear 清空引擎中的流
func (p *Player) Clear() {
	speaker.Clear()
}

// SeekBy 在当前流内相对跳转，越界时收敛到 [0, Len)
func (p *Player) SeekBy(delta time.Duration) {
	p.mu.Lock()
	source, format := p.source, p.format
	p.mu.Unlock()
	if source == nil {
		return
	}

	speaker.Lock()
	defer speaker.Unlock()

	pos := source.Position() + format.SampleRate.N(delta)
	if pos < 0 {
		pos = 0
	}
	if max := source.Len(); pos >= max {
		pos = max - 1
		if pos < 0 {
			pos = 0
		}
	}
	if err := source.Seek(pos); err != nil {
		logrus.Warnf("player: seek: %v", err)
	}
}

// SetSpeed 设置播放速率并同步到发布状态
func (p *Player) SetSpeed(ratio float64) {
	if ratio <= 0 {
		return
	}
	p.mu.Lock()
	p.speed = ratio
	r := p.resampler
	p.mu.Unlock()

	if r != nil {
		speaker.Lock()
		r.SetRatio(ratio)
		speaker.Unlock()
	}
	p.state.Update(func(s *State) { s.Speed = ratio })
}

// Close 释放底层引擎，之后 Player 不再可用
func (p *Player) Close() error {
	p.Stop()
	speaker.Close()
	return nil
}
