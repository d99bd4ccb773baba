// Package config 加载并校验 TOML 配置文件。
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config 顶层配置
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Playback PlaybackConfig `toml:"playback"`
	Log      LogConfig      `toml:"log"`
}

// ProviderConfig 合成后端配置
type ProviderConfig struct {
	Endpoint   string  `toml:"endpoint"`
	AccessKey  string  `toml:"access_key"`
	AppKey     string  `toml:"app_key"`
	Voice      string  `toml:"voice"`
	Codec      string  `toml:"codec"` // "pcm" 或 "mp3"
	SampleRate int     `toml:"sample_rate"`
	SpeedRatio float64 `toml:"speed_ratio"`
}

// PlaybackConfig 播放侧配置
type PlaybackConfig struct {
	MaxChunkLength int `toml:"max_chunk_length"`
	PrefetchWindow int `toml:"prefetch_window"`
	ChunkGapMs     int `toml:"chunk_gap_ms"`
	SampleRate     int `toml:"sample_rate"`
	Channels       int `toml:"channels"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `toml:"level"`
}

// Default 返回带默认值的配置
func Default() Config {
	return Config{
		Provider: ProviderConfig{
			Voice:      "meilin_nvyou",
			Codec:      "pcm",
			SampleRate: 16000,
			SpeedRatio: 1.0,
		},
		Playback: PlaybackConfig{
			MaxChunkLength: 150,
			PrefetchWindow: 4,
			ChunkGapMs:     120,
			SampleRate:     16000,
			Channels:       1,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load 读取配置文件并叠加到默认值上。
// 凭证留空时回退到环境变量 NARRO_ACCESS_KEY / NARRO_APP_KEY。
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Provider.AccessKey == "" {
		cfg.Provider.AccessKey = os.Getenv("NARRO_ACCESS_KEY")
	}
	if cfg.Provider.AppKey == "" {
		cfg.Provider.AppKey = os.Getenv("NARRO_APP_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate 检查无法带默认值兜底的字段
func (c Config) Validate() error {
	if c.Provider.AccessKey == "" {
		return errors.New("config: provider.access_key is required")
	}
	if c.Provider.AppKey == "" {
		return errors.New("config: provider.app_key is required")
	}
	if c.Provider.Codec != "pcm" && c.Provider.Codec != "mp3" {
		return fmt.Errorf("config: unsupported codec %q", c.Provider.Codec)
	}
	if c.Playback.Channels != 1 && c.Playback.Channels != 2 {
		return fmt.Errorf("config: invalid channel count %d", c.Playback.Channels)
	}
	return nil
}
