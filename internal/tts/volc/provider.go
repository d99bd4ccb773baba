package volc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"narro/internal/audio"
	"narro/internal/tts"
	"narro/pkg/ws"
)

const (
	// DefaultEndpoint 火山引擎双向流式 TTS 入口
	DefaultEndpoint = "wss://openspeech.bytedance.com/api/v3/tts/bidirection"

	startTimeout = 5 * time.Second
)

// Config 引擎配置
type Config struct {
	Endpoint  string
	AccessKey string
	AppKey    string
	Voice     *VoiceProfile
	Codec     audio.CodecOption
}

// Provider 火山引擎 TTS 后端。
// 每次 GenerateSpeech 建立一条独立的 WebSocket 会话，
// 音频帧按到达顺序转成 Fragment 流，连接随会话结束关闭。
type Provider struct {
	cfg    Config
	closed atomic.Bool
}

// New 创建火山引擎后端，校验必需字段并补齐默认值
func New(cfg Config) (*Provider, error) {
	if cfg.AccessKey == "" {
		return nil, errors.New("volc: accessKey is required")
	}
	if cfg.AppKey == "" {
		return nil, errors.New("volc: appKey is required")
	}
	if cfg.Voice == nil {
		return nil, errors.New("volc: voice is required, use GetVoice() or RegisterVoice()")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Codec.Codec == "" {
		cfg.Codec = audio.DefaultCodecOption()
	}
	// 音色带默认值时覆盖编解码配置
	if cfg.Voice.DefaultSampleRate > 0 {
		cfg.Codec.SampleRate = cfg.Voice.DefaultSampleRate
	}
	if cfg.Voice.DefaultSpeedRatio > 0 {
		cfg.Codec.SpeedRatio = cfg.Voice.DefaultSpeedRatio
	}
	return &Provider{cfg: cfg}, nil
}

// GenerateSpeech 实现 tts.Provider 接口
func (p *Provider) GenerateSpeech(ctx context.Context, req tts.SpeechRequest) (<-chan tts.Fragment, <-chan error) {
	frags := make(chan tts.Fragment, 16)
	errs := make(chan error, 1)

	if p.closed.Load() {
		errs <- errors.New("volc: provider closed")
		close(frags)
		close(errs)
		return frags, errs
	}

	go p.stream(ctx, req.Text, frags, errs)
	return frags, errs
}

// Close 标记后端不可用；in-flight 会话由各自的 ctx 终止
func (p *Provider) Close() error {
	p.closed.Store(true)
	return nil
}

// sessionEvent 把 WS 回调收到的东西统一投进一条有序通道，
// 音频和控制消息的相对顺序得以保留
type sessionEvent struct {
	audio []byte
	ctrl  *ControlMessage
	err   error
}

// wsSession 单次合成会话的事件收集器
type wsSession struct {
	events chan sessionEvent
	done   chan struct{} // stream 退出后关闭，回调不再阻塞
}

func newWSSession() *wsSession {
	return &wsSession{
		events: make(chan sessionEvent, 256),
		done:   make(chan struct{}),
	}
}

func (s *wsSession) push(ev sessionEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *wsSession) OnOpen(c *ws.Client) {}

func (s *wsSession) OnMessage(c *ws.Client, msgType int, msg []byte) {
	if msgType == websocket.BinaryMessage {
		s.push(sessionEvent{audio: msg})
		return
	}
	var ctrl ControlMessage
	if err := json.Unmarshal(msg, &ctrl); err != nil {
		logrus.Warnf("volc: failed to parse message: %v", err)
		return
	}
	s.push(sessionEvent{ctrl: &ctrl})
}

func (s *wsSession) OnError(c *ws.Client, err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		return
	}
	s.push(sessionEvent{err: err})
}

func (s *wsSession) OnClose(c *ws.Client) {
	s.push(sessionEvent{err: errors.New("volc: connection closed")})
}

// stream 完整跑一次会话：拨号、start_session、发文本、收音频直到 session_finished
func (p *Provider) stream(ctx context.Context, text string, frags chan<- tts.Fragment, errs chan<- error) {
	defer close(frags)
	defer close(errs)

	sess := newWSSession()
	defer close(sess.done)

	header := http.Header{}
	header.Set("X-Api-App-Key", p.cfg.AppKey)
	header.Set("X-Api-Access-Key", p.cfg.AccessKey)
	header.Set("X-Api-Resource-Id", p.cfg.Voice.ResourceID)
	header.Set("X-Api-Connect-Id", uuid.NewString())

	client, err := ws.Dial(ctx, p.cfg.Endpoint, header, sess)
	if err != nil {
		errs <- fmt.Errorf("volc: dial websocket: %w", err)
		return
	}
	defer client.Close()

	sessionID := uuid.NewString()

	start := ControlMessage{
		Event:     EventStartSession,
		SessionID: sessionID,
		ReqParams: &ReqParams{
			Speaker: p.cfg.Voice.VoiceType,
			AudioParams: &AudioParams{
				Format:     p.cfg.Codec.Codec,
				SampleRate: int32(p.cfg.Codec.SampleRate),
				Channel:    int32(p.cfg.Codec.Channels),
				SpeechRate: convertSpeechRate(p.cfg.Codec.SpeedRatio),
			},
		},
	}
	if err := client.SendJSON(start); err != nil {
		errs <- fmt.Errorf("volc: send start session: %w", err)
		return
	}

	if err := p.awaitStarted(ctx, sess); err != nil {
		errs <- err
		return
	}
	logrus.Debugf("volc: session %s started", sessionID)

	synth := ControlMessage{
		Event:     EventSynthesize,
		SessionID: sessionID,
		ReqParams: &ReqParams{Text: text},
	}
	if err := client.SendJSON(synth); err != nil {
		errs <- fmt.Errorf("volc: send synthesize: %w", err)
		return
	}
	finish := ControlMessage{Event: EventFinishSession, SessionID: sessionID}
	if err := client.SendJSON(finish); err != nil {
		errs <- fmt.Errorf("volc: send finish session: %w", err)
		return
	}

	encoding := p.encoding()
	for {
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		case ev := <-sess.events:
			switch {
			case ev.err != nil:
				errs <- ev.err
				return
			case ev.audio != nil:
				frag := tts.Fragment{
					Data:       ev.audio,
					Encoding:   encoding,
					SampleRate: p.cfg.Codec.SampleRate,
				}
				select {
				case frags <- frag:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			case ev.ctrl != nil:
				switch ev.ctrl.Event {
				case EventSessionFinished:
					logrus.Debugf("volc: session %s finished", sessionID)
					return
				case EventError:
					errs <- fmt.Errorf("volc: engine error: %s", ev.ctrl.Message)
					return
				}
			}
		}
	}
}

// awaitStarted 等待 session_started，超时或错误都终止本次会话
func (p *Provider) awaitStarted(ctx context.Context, sess *wsSession) error {
	timer := time.NewTimer(startTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return errors.New("volc: start session timeout")
		case ev := <-sess.events:
			switch {
			case ev.err != nil:
				return ev.err
			case ev.ctrl != nil && ev.ctrl.Event == EventSessionStarted:
				return nil
			case ev.ctrl != nil && ev.ctrl.Event == EventError:
				return fmt.Errorf("volc: engine error: %s", ev.ctrl.Message)
			}
		}
	}
}

func (p *Provider) encoding() tts.Encoding {
	if p.cfg.Codec.Codec == "mp3" {
		return tts.EncodingMP3
	}
	return tts.EncodingPCM
}
