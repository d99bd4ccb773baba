package audio

// CodecOption 描述合成音频的编码参数
type CodecOption struct {
	Codec      string  `json:"codec" toml:"codec"`
	SampleRate int     `json:"sampleRate" toml:"sample_rate"`
	Channels   int     `json:"channels" toml:"channels"`
	BitDepth   int     `json:"bitDepth" toml:"bit_depth"`
	SpeedRatio float64 `json:"speedRatio" toml:"speed_ratio"`
}

// DefaultCodecOption 返回默认编码参数（16kHz 单声道 16bit PCM）
func DefaultCodecOption() CodecOption {
	return CodecOption{
		Codec:      "pcm",
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
		SpeedRatio: 1.0,
	}
}
