package tts

import (
	"bytes"
	"context"
	"errors"
)

// Encoding 音频编码格式
type Encoding int

const (
	EncodingPCM Encoding = iota
	EncodingMP3
)

func (e Encoding) String() string {
	switch e {
	case EncodingPCM:
		return "pcm"
	case EncodingMP3:
		return "mp3"
	default:
		return "unknown"
	}
}

// Fragment 合成后端产出的单个音频分片。
// Encoding/SampleRate/Duration 只在声明它们的分片上有意义，零值表示未声明。
type Fragment struct {
	Data       []byte
	Encoding   Encoding
	SampleRate int
	Duration   float64 // 秒
}

// SpeechRequest 一次合成请求
type SpeechRequest struct {
	Text string
}

// Provider 外部语音合成能力：返回一个有限、有序、一次性的分片流。
// 两个通道都会在流结束后关闭；ctx 取消时后端应尽快终止。
type Provider interface {
	GenerateSpeech(ctx context.Context, req SpeechRequest) (<-chan Fragment, <-chan error)
	Close() error
}

// Audio 一个 chunk 的完整合成结果，只被播放器消费一次，不持久化
type Audio struct {
	Data       []byte
	Encoding   Encoding
	SampleRate int
	Duration   float64 // 秒；0 表示未知
}

// Synthesizer 把一个 chunk 变成一个完整的音频缓冲
type Synthesizer struct {
	provider Provider
}

func NewSynthesizer(p Provider) *Synthesizer {
	return &Synthesizer{provider: p}
}

// Synthesize 消费后端的完整分片流，按到达顺序逐字节拼接；
// 元数据取第一个声明它的分片，后续分片缺省时不覆盖已采集的值。
// 后端错误包装为 *SynthesisError 上抛；取消原样上抛，不算合成失败。
func (s *Synthesizer) Synthesize(ctx context.Context, chunk Chunk) (*Audio, error) {
	frags, errs := s.provider.GenerateSpeech(ctx, SpeechRequest{Text: chunk.Text})

	var buf bytes.Buffer
	out := &Audio{Encoding: EncodingPCM}
	metaSet := false

	for frags != nil || errs != nil {
		select {
		case f, ok := <-frags:
			if !ok {
				frags = nil
				continue
			}
			buf.Write(f.Data)
			if !metaSet && f.SampleRate > 0 {
				out.Encoding = f.Encoding
				out.SampleRate = f.SampleRate
				metaSet = true
			}
			if out.Duration == 0 && f.Duration > 0 {
				out.Duration = f.Duration
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil, err
				}
				return nil, &SynthesisError{ChunkIndex: chunk.Index, Err: err}
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out.Data = buf.Bytes()
	return out, nil
}
