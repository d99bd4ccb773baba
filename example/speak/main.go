package main

import (
	"fmt"
	"log"
	"time"

	"narro/internal/tts"
	"narro/internal/tts/volc"
)

func main() {
	accessKey := "n1uNFm540_2oItTs0UsULkWWvuzQiXbD"
	appKey := "5711022755"

	// 方式1：使用预定义音色（推荐）
	provider, err := volc.New(volc.Config{
		AccessKey: accessKey,
		AppKey:    appKey,
		Voice:     &volc.VoiceMeilinNvyou,
	})
	if err != nil {
		log.Fatalf("Failed to create tts provider: %v", err)
	}

	// 方式2：使用音色名称（便捷方式）
	// voice, ok := volc.GetVoice("lengku_gege")
	// if !ok {
	// 	log.Fatalf("Voice not found. Available voices: %v", volc.ListVoices())
	// }
	// provider, err := volc.New(volc.Config{
	// 	AccessKey: accessKey,
	// 	AppKey:    appKey,
	// 	Voice:     &voice,
	// })

	state := tts.NewStateStore()
	player, err := tts.NewPlayer(16000, 1, state)
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}

	ctrl := tts.NewController(player, state, tts.Options{})
	defer ctrl.Close() // 确保资源清理

	if err := ctrl.SetProvider(provider); err != nil {
		log.Fatalf("Failed to set provider: %v", err)
	}

	// 启动进度打印 goroutine
	updates := ctrl.Updates()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for s := range updates {
			if s.DurationMs > 0 {
				fmt.Printf("[进度] chunk %d (剩余 %d) %d/%d 毫秒 [%s]\n",
					s.CurrentChunk, s.TotalChunks, s.PositionMs, s.DurationMs, s.Status)
			}
			if s.Status == tts.StatusEnded {
				return
			}
		}
	}()

	// 第一个调用：flush=true 表示丢弃旧内容、开始新的播放
	if err := ctrl.Speak("欢迎来到美丽新世界！今天我们聊聊文本转语音。", true); err != nil {
		log.Fatalf("Failed to speak: %v", err)
	}

	// 第二个调用：flush=false 表示追加，排在前面的内容之后播放
	if err := ctrl.Speak("这是追加的一段。它会等前面的内容播完再开口。", false); err != nil {
		log.Fatalf("Failed to speak: %v", err)
	}

	// 播放几秒后调速、快进
	time.Sleep(3 * time.Second)
	ctrl.SetSpeed(1.25)
	ctrl.FastForward(2 * time.Second)

	// 等待播放完成或 60 秒后停止
	select {
	case <-done:
	case <-time.After(60 * time.Second):
		ctrl.Stop()
	}

	final := ctrl.State()
	fmt.Printf("\n[最终状态] %s chunk=%d err=%q\n", final.Status, final.CurrentChunk, final.ErrMessage)
}
