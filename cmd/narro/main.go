package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"narro/internal/audio"
	"narro/internal/config"
	"narro/internal/tts"
	"narro/internal/tts/volc"
)

func main() {
	var (
		cfgPath  = flag.String("config", "narro.toml", "path to config file")
		text     = flag.String("text", "", "text to speak (overrides file argument)")
		voiceArg = flag.String("voice", "", "voice name (overrides config)")
		speed    = flag.Float64("speed", 0, "playback speed ratio (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logrus.Fatalf("narro: load config: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	input := *text
	if input == "" && flag.NArg() > 0 {
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			logrus.Fatalf("narro: read text file: %v", err)
		}
		input = string(data)
	}
	if strings.TrimSpace(input) == "" {
		fmt.Fprintln(os.Stderr, "usage: narro [-config file] [-text string] [textfile]")
		os.Exit(2)
	}

	voiceName := cfg.Provider.Voice
	if *voiceArg != "" {
		voiceName = *voiceArg
	}
	voice, ok := volc.GetVoice(voiceName)
	if !ok {
		logrus.Fatalf("narro: voice not found: %s, available: %v", voiceName, volc.ListVoices())
	}

	codec := audio.DefaultCodecOption()
	codec.Codec = cfg.Provider.Codec
	codec.SampleRate = cfg.Provider.SampleRate
	codec.SpeedRatio = cfg.Provider.SpeedRatio

	provider, err := volc.New(volc.Config{
		Endpoint:  cfg.Provider.Endpoint,
		AccessKey: cfg.Provider.AccessKey,
		AppKey:    cfg.Provider.AppKey,
		Voice:     &voice,
		Codec:     codec,
	})
	if err != nil {
		logrus.Fatalf("narro: create provider: %v", err)
	}

	state := tts.NewStateStore()
	player, err := tts.NewPlayer(cfg.Playback.SampleRate, cfg.Playback.Channels, state)
	if err != nil {
		logrus.Fatalf("narro: create player: %v", err)
	}

	ctrl := tts.NewController(player, state, tts.Options{
		MaxChunkLength: cfg.Playback.MaxChunkLength,
		PrefetchWindow: cfg.Playback.PrefetchWindow,
		ChunkGap:       time.Duration(cfg.Playback.ChunkGapMs) * time.Millisecond,
	})
	defer ctrl.Close()

	if err := ctrl.SetProvider(provider); err != nil {
		logrus.Fatalf("narro: set provider: %v", err)
	}
	if *speed > 0 {
		ctrl.SetSpeed(*speed)
	}

	updates := ctrl.Updates()

	if err := ctrl.Speak(input, true); err != nil {
		logrus.Fatalf("narro: speak: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			logrus.Info("narro: interrupted, stopping")
			ctrl.Stop()
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			logrus.Debugf("narro: chunk=%d remaining=%d pos=%dms status=%s",
				s.CurrentChunk, s.TotalChunks, s.PositionMs, s.Status)
			if s.ErrMessage != "" {
				logrus.Warnf("narro: playback degraded: %s", s.ErrMessage)
			}
			if s.Status == tts.StatusEnded {
				logrus.Info("narro: playback finished")
				return
			}
		}
	}
}
