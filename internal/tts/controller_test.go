package tts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine 记录播放的缓冲；gate 非 nil 时每次 Play 先记录再阻塞到放行
type fakeEngine struct {
	mu     sync.Mutex
	played []string
	fail   map[string]error
	gate   chan struct{}

	pauses  int
	resumes int
	stops   int
	speed   float64
	sought  time.Duration
	closed  bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{fail: make(map[string]error)}
}

func (f *fakeEngine) Play(ctx context.Context, a *Audio) error {
	data := string(a.Data)

	f.mu.Lock()
	f.played = append(f.played, data)
	err := f.fail[data]
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeEngine) playedTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.played...)
}

func (f *fakeEngine) Pause()  { f.mu.Lock(); f.pauses++; f.mu.Unlock() }
func (f *fakeEngine) Resume() { f.mu.Lock(); f.resumes++; f.mu.Unlock() }
func (f *fakeEngine) Stop()   { f.mu.Lock(); f.stops++; f.mu.Unlock() }
func (f *fakeEngine) Clear()  {}

func (f *fakeEngine) SeekBy(delta time.Duration) { f.mu.Lock(); f.sought = delta; f.mu.Unlock() }
func (f *fakeEngine) SetSpeed(ratio float64)     { f.mu.Lock(); f.speed = ratio; f.mu.Unlock() }
func (f *fakeEngine) Close() error               { f.mu.Lock(); f.closed = true; f.mu.Unlock(); return nil }

// echoProvider 把请求文本原样当作音频吐回，记录每段文本被合成的次数
type echoProvider struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func newEchoProvider() *echoProvider {
	return &echoProvider{calls: make(map[string]int), fail: make(map[string]error)}
}

func (p *echoProvider) GenerateSpeech(ctx context.Context, req SpeechRequest) (<-chan Fragment, <-chan error) {
	p.mu.Lock()
	p.calls[req.Text]++
	err := p.fail[req.Text]
	p.mu.Unlock()

	frags := make(chan Fragment, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(frags)
		defer close(errs)
		if err != nil {
			errs <- err
			return
		}
		select {
		case frags <- Fragment{Data: []byte(req.Text), Encoding: EncodingPCM, SampleRate: 16000}:
		case <-ctx.Done():
			errs <- ctx.Err()
		}
	}()
	return frags, errs
}

func (p *echoProvider) Close() error { return nil }

func (p *echoProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func (p *echoProvider) callsFor(text string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[text]
}

func testOptions() Options {
	return Options{
		MaxChunkLength: 8,
		PrefetchWindow: 2,
		ChunkGap:       time.Millisecond,
		PausePoll:      2 * time.Millisecond,
	}
}

func newTestController(t *testing.T, engine *fakeEngine, provider Provider) *Controller {
	t.Helper()
	c := NewController(engine, NewStateStore(), testOptions())
	require.NoError(t, c.SetProvider(provider))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitEnded(t *testing.T, c *Controller) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.State().Status == StatusEnded
	}, 2*time.Second, 2*time.Millisecond)
}

func TestControllerPlaysInOrder(t *testing.T) {
	engine := newFakeEngine()
	provider := newEchoProvider()
	c := newTestController(t, engine, provider)

	require.NoError(t, c.Speak("One. Two. Three.", true))
	waitEnded(t, c)

	assert.Equal(t, []string{"One.", "Two.", "Three."}, engine.playedTexts())
	assert.Equal(t, 0, c.State().TotalChunks)
}

func TestControllerSynthesizesEachChunkOnce(t *testing.T) {
	engine := newFakeEngine()
	provider := newEchoProvider()
	c := newTestController(t, engine, provider)

	require.NoError(t, c.Speak("One. Two. Three. Four.", true))
	waitEnded(t, c)

	for _, text := range []string{"One.", "Two.", "Three.", "Four."} {
		assert.Equal(t, 1, provider.callsFor(text), "chunk %q", text)
	}
}

func TestControllerPrefetchBounded(t *testing.T) {
	engine := newFakeEngine()
	engine.gate = make(chan struct{})
	provider := newEchoProvider()
	c := newTestController(t, engine, provider)

	// 6 个 chunk，窗口 2：阻塞在第一个 chunk 时最多合成 1+2 个
	require.NoError(t, c.Speak("One. Two. Three. Four. Five. Six.", true))

	require.Eventually(t, func() bool {
		return provider.totalCalls() == 3
	}, time.Second, 2*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, provider.totalCalls())

	close(engine.gate)
	waitEnded(t, c)
	assert.Equal(t, 6, provider.totalCalls())
}

func TestControllerAppendPreservesOrder(t *testing.T) {
	engine := newFakeEngine()
	engine.gate = make(chan struct{})
	provider := newEchoProvider()
	c := newTestController(t, engine, provider)

	require.NoError(t, c.Speak("One. Two.", true))
	require.Eventually(t, func() bool {
		return len(engine.playedTexts()) == 1
	}, time.Second, 2*time.Millisecond)

	// 播放途中追加，排在已有内容之后
	require.NoError(t, c.Speak("Three.", false))

	close(engine.gate)
	waitEnded(t, c)

	assert.Equal(t, []string{"One.", "Two.", "Three."}, engine.playedTexts())
	assert.Equal(t, 2, c.State().CurrentChunk)
}

func TestControllerFlushDiscardsPending(t *testing.T) {
	engine := newFakeEngine()
	engine.gate = make(chan struct{})
	provider := newEchoProvider()
	c := newTestController(t, engine, provider)

	require.NoError(t, c.Speak("Old one. Old two.", true))
	require.Eventually(t, func() bool {
		return len(engine.playedTexts()) == 1
	}, time.Second, 2*time.Millisecond)

	engine.mu.Lock()
	engine.gate = nil
	engine.mu.Unlock()

	require.NoError(t, c.Speak("New.", true))
	waitEnded(t, c)

	played := engine.playedTexts()
	assert.Equal(t, "New.", played[len(played)-1])
	assert.NotContains(t, played, "Old two.")
	assert.Equal(t, 0, c.State().CurrentChunk)
}

func TestControllerDegradesOnSynthesisFailure(t *testing.T) {
	engine := newFakeEngine()
	provider := newEchoProvider()
	provider.fail["Two."] = errors.New("upstream rejected")
	c := newTestController(t, engine, provider)

	require.NoError(t, c.Speak("One. Two. Three.", true))
	waitEnded(t, c)

	assert.Equal(t, []string{"One.", "Three."}, engine.playedTexts())

	s := c.State()
	assert.Contains(t, s.ErrMessage, "upstream rejected")
	assert.Equal(t, 0, s.TotalChunks)
	assert.Equal(t, StatusEnded, s.Status)
}

func TestControllerDegradesOnPlaybackFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.fail["Two."] = errors.New("device gone")
	provider := newEchoProvider()
	c := newTestController(t, engine, provider)

	require.NoError(t, c.Speak("One. Two. Three.", true))
	waitEnded(t, c)

	assert.Equal(t, []string{"One.", "Two.", "Three."}, engine.playedTexts())
	assert.Contains(t, c.State().ErrMessage, "device gone")
}

func TestControllerPauseResume(t *testing.T) {
	engine := newFakeEngine()
	provider := newEchoProvider()
	c := newTestController(t, engine, provider)

	c.Pause()
	require.NoError(t, c.Speak("One. Two. Three.", true))

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, engine.playedTexts(), "paused controller must not dequeue")

	c.Resume()
	waitEnded(t, c)

	assert.Equal(t, []string{"One.", "Two.", "Three."}, engine.playedTexts())
	assert.Equal(t, 1, engine.pauses)
	assert.Equal(t, 1, engine.resumes)
}

func TestControllerSkipNext(t *testing.T) {
	engine := newFakeEngine()
	engine.gate = make(chan struct{})
	provider := newEchoProvider()
	c := newTestController(t, engine, provider)

	require.NoError(t, c.Speak("One. Two. Three.", true))
	require.Eventually(t, func() bool {
		return len(engine.playedTexts()) == 1
	}, time.Second, 2*time.Millisecond)

	c.SkipNext()

	close(engine.gate)
	waitEnded(t, c)

	assert.Equal(t, []string{"One.", "Three."}, engine.playedTexts())
}

func TestControllerStopThenSpeakAgain(t *testing.T) {
	engine := newFakeEngine()
	engine.gate = make(chan struct{})
	provider := newEchoProvider()
	c := newTestController(t, engine, provider)

	require.NoError(t, c.Speak("One. Two. Three.", true))
	require.Eventually(t, func() bool {
		return len(engine.playedTexts()) == 1
	}, time.Second, 2*time.Millisecond)

	c.Stop()
	assert.Equal(t, StatusIdle, c.State().Status)

	engine.mu.Lock()
	engine.gate = nil
	engine.mu.Unlock()

	require.NoError(t, c.Speak("Again.", false))
	waitEnded(t, c)

	played := engine.playedTexts()
	assert.Equal(t, "Again.", played[len(played)-1])
}

func TestControllerForwardsCommands(t *testing.T) {
	engine := newFakeEngine()
	provider := newEchoProvider()
	c := newTestController(t, engine, provider)

	c.SetSpeed(1.5)
	c.FastForward(3 * time.Second)

	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Equal(t, 1.5, engine.speed)
	assert.Equal(t, 3*time.Second, engine.sought)
}

func TestControllerRequiresProvider(t *testing.T) {
	engine := newFakeEngine()
	c := NewController(engine, NewStateStore(), testOptions())
	t.Cleanup(func() { _ = c.Close() })

	err := c.Speak("Hello.", true)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestControllerClose(t *testing.T) {
	engine := newFakeEngine()
	provider := newEchoProvider()
	c := NewController(engine, NewStateStore(), testOptions())
	require.NoError(t, c.SetProvider(provider))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "second close is a no-op")

	assert.ErrorIs(t, c.Speak("Hello.", true), ErrClosed)
	assert.ErrorIs(t, c.SetProvider(provider), ErrClosed)

	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.True(t, engine.closed)
}

func TestControllerEmptyTextIsNoop(t *testing.T) {
	engine := newFakeEngine()
	provider := newEchoProvider()
	c := newTestController(t, engine, provider)

	require.NoError(t, c.Speak("   \n  ", false))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, engine.playedTexts())
	assert.Equal(t, StatusIdle, c.State().Status)
}
