package volc

// 双向流式 TTS 的控制面事件。
// 控制消息走文本帧（JSON），音频数据走二进制帧。
const (
	EventStartSession    = "start_session"
	EventSessionStarted  = "session_started"
	EventSynthesize      = "synthesize"
	EventFinishSession   = "finish_session"
	EventSessionFinished = "session_finished"
	EventError           = "error"
)

// ControlMessage 控制面消息信封
type ControlMessage struct {
	Event     string     `json:"event"`
	SessionID string     `json:"session_id,omitempty"`
	ReqParams *ReqParams `json:"req_params,omitempty"`
	Message   string     `json:"message,omitempty"` // error 事件的详情
}

// ReqParams 请求参数
type ReqParams struct {
	Text        string       `json:"text,omitempty"`
	Speaker     string       `json:"speaker,omitempty"`
	AudioParams *AudioParams `json:"audio_params,omitempty"`
}

// AudioParams 音频参数
type AudioParams struct {
	Format     string `json:"format,omitempty"`
	SampleRate int32  `json:"sample_rate,omitempty"`
	Channel    int32  `json:"channel,omitempty"`
	SpeechRate int32  `json:"speech_rate,omitempty"`
	BitRate    int32  `json:"bit_rate,omitempty"`
	Volume     int32  `json:"volume,omitempty"`
}

// convertSpeechRate 把倍率映射为引擎的语速档位
func convertSpeechRate(speedRatio float64) int32 {
	var rate float64
	switch {
	case speedRatio <= 1:
		// 0–1 之间: 从 -50 → 0
		rate = -50 + 50*speedRatio
	default:
		// 1–2 之间: 从 0 → 100
		rate = 100 * (speedRatio - 1)
	}

	if rate < -50 {
		rate = -50
	} else if rate > 100 {
		rate = 100
	}
	return int32(rate)
}
