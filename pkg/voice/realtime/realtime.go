// Package realtime implements the voice.Provider contract over the
// realtime event-channel protocol: a short-lived credential is fetched,
// a websocket is dialed, and JSON event frames carry transcripts,
// response lifecycle and synthesized audio.
package realtime

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oralab/exo/pkg/core"
	"github.com/oralab/exo/pkg/core/types"
	"github.com/oralab/exo/pkg/voice"
	"github.com/oralab/exo/pkg/voice/audio"
)

const (
	defaultURL         = "wss://api.openai.com/v1/realtime"
	outputSampleRate   = 24000
	transcriptionModel = "gpt-4o-mini-transcribe"
)

// Credentials is the short-lived token minted by the gateway.
type Credentials struct {
	Token string `json:"token"`
	Model string `json:"model"`
	Voice string `json:"voice"`
}

// CredentialsFunc fetches connection credentials. A failure here aborts
// Connect before any dial attempt.
type CredentialsFunc func(ctx context.Context) (Credentials, error)

// Option configures a Provider.
type Option func(*Provider)

// WithURL overrides the websocket endpoint.
func WithURL(url string) Option {
	return func(p *Provider) { p.url = url }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(p *Provider) { p.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithHandshakeTimeout bounds the wait for the session-created frame.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(p *Provider) { p.handshakeTimeout = d }
}

// WithStats attaches debug counters.
func WithStats(s *types.DebugStats) Option {
	return func(p *Provider) { p.stats = s }
}

// Provider is the event-channel transport.
type Provider struct {
	creds            CredentialsFunc
	url              string
	dialer           *websocket.Dialer
	logger           *slog.Logger
	handshakeTimeout time.Duration
	stats            *types.DebugStats

	mu                  sync.Mutex
	onTranscript        voice.TranscriptFunc
	onResponseStart     func()
	onResponseEnd       func()
	onError             func(error)
	pendingInstructions string
	pendingVoice        string

	playback *audio.Playback

	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
	micCancel func()

	connected atomic.Bool
	awaiting  atomic.Bool
	streaming atomic.Bool
}

var _ voice.Provider = (*Provider)(nil)

// New builds a Provider around a credential source.
func New(creds CredentialsFunc, opts ...Option) *Provider {
	p := &Provider{
		creds:            creds,
		url:              defaultURL,
		dialer:           websocket.DefaultDialer,
		logger:           slog.Default(),
		handshakeTimeout: 10 * time.Second,
		done:             make(chan struct{}),
	}
	p.playback = audio.NewPlayback(nil, nil)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnTranscript registers the transcript callback. Last registration wins.
func (p *Provider) OnTranscript(fn voice.TranscriptFunc) {
	p.mu.Lock()
	p.onTranscript = fn
	p.mu.Unlock()
}

// OnResponseStart registers the response-start callback.
func (p *Provider) OnResponseStart(fn func()) {
	p.mu.Lock()
	p.onResponseStart = fn
	p.mu.Unlock()
}

// OnResponseEnd registers the response-end callback.
func (p *Provider) OnResponseEnd(fn func()) {
	p.mu.Lock()
	p.onResponseEnd = fn
	p.mu.Unlock()
}

// OnError registers the error callback.
func (p *Provider) OnError(fn func(error)) {
	p.mu.Lock()
	p.onError = fn
	p.mu.Unlock()
}

// SetAudioSink binds the playback sink.
func (p *Provider) SetAudioSink(sink audio.Sink) { p.playback.SetSink(sink) }

// AudioSink returns the bound sink.
func (p *Provider) AudioSink() audio.Sink { return p.playback.Sink() }

// Connect fetches credentials, dials the endpoint and completes the
// handshake. The mic is subscribed for upstream audio on success.
func (p *Provider) Connect(ctx context.Context, mic audio.Source, cfg voice.Config) error {
	creds, err := p.creds(ctx)
	if err != nil {
		return core.NewAuthenticationError("credential fetch failed: " + err.Error())
	}
	model := cfg.Model
	if model == "" {
		model = creds.Model
	}
	voiceName := cfg.Voice
	if voiceName == "" {
		voiceName = creds.Voice
	}

	url := p.url + "?model=" + model
	header := http.Header{}
	header.Set("Authorization", "Bearer "+creds.Token)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := p.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return &core.TransportError{Op: "dial", URL: p.url, Err: err}
	}

	conn.SetReadDeadline(time.Now().Add(p.handshakeTimeout))
	var first event
	if err := conn.ReadJSON(&first); err != nil {
		conn.Close()
		return core.NewHandshakeError("no session frame: " + err.Error())
	}
	if first.Type != "session.created" {
		conn.Close()
		return core.NewHandshakeError("unexpected first frame: " + first.Type)
	}
	conn.SetReadDeadline(time.Time{})

	p.conn = conn
	p.connected.Store(true)

	p.mu.Lock()
	instructions := p.pendingInstructions
	if p.pendingVoice != "" {
		voiceName = p.pendingVoice
	}
	p.mu.Unlock()

	p.writeJSON(sessionUpdate{
		Type: "session.update",
		Session: sessionConfig{
			Instructions:            instructions,
			Voice:                   voiceName,
			Modalities:              []string{"audio", "text"},
			InputAudioTranscription: &transcriptionConf{Model: transcriptionModel},
		},
	})

	frames, cancel := mic.Subscribe(32)
	p.micCancel = cancel
	go p.micLoop(frames, mic.SampleRate())
	go p.readLoop()

	p.logger.Debug("realtime session established", "model", model)
	return nil
}

// Disconnect tears the connection down. Idempotent; safe when Connect
// never ran or failed.
func (p *Provider) Disconnect() error {
	p.closeOnce.Do(func() {
		p.connected.Store(false)
		if p.micCancel != nil {
			p.micCancel()
		}
		if p.conn != nil {
			p.writeMu.Lock()
			p.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			p.writeMu.Unlock()
			p.conn.Close()
			select {
			case <-p.done:
			case <-time.After(2 * time.Second):
			}
		}
		p.playback.Reset()
	})
	return nil
}

// SendMessage requests a response. Non-urgent requests are dropped
// while one is already in flight.
func (p *Provider) SendMessage(instructions string, cfg *voice.ResponseConfig) {
	if !p.connected.Load() {
		return
	}
	urgent := cfg != nil && cfg.Urgent
	if !urgent && !p.awaiting.CompareAndSwap(false, true) {
		p.logger.Debug("response request dropped, one already in flight")
		return
	}
	rc := responseConfig{
		Modalities:   []string{"audio", "text"},
		Instructions: instructions,
	}
	if cfg != nil {
		if len(cfg.Modalities) > 0 {
			rc.Modalities = cfg.Modalities
		}
		rc.MaxOutputTokens = cfg.MaxOutputTokens
	}
	p.writeJSON(responseCreate{Type: "response.create", Response: rc})
	p.stats.ResponseCreated()
}

// UpdateSession replaces the instructions and optionally the voice.
// Buffered until the handshake when called before Connect.
func (p *Provider) UpdateSession(instructions, voiceName string) {
	p.mu.Lock()
	p.pendingInstructions = instructions
	if voiceName != "" {
		p.pendingVoice = voiceName
	}
	p.mu.Unlock()
	if !p.connected.Load() {
		return
	}
	cfg := sessionConfig{Instructions: instructions}
	if voiceName != "" {
		cfg.Voice = voiceName
	}
	p.writeJSON(sessionUpdate{Type: "session.update", Session: cfg})
}

func (p *Provider) micLoop(frames <-chan []float32, inRate int) {
	for frame := range frames {
		if !p.connected.Load() {
			return
		}
		pcm := audio.Resample(frame, inRate, outputSampleRate)
		if len(pcm) == 0 {
			continue
		}
		p.writeJSON(audioAppend{
			Type:  "input_audio_buffer.append",
			Audio: base64.StdEncoding.EncodeToString(audio.PCM16ToBytesLE(pcm)),
		})
		p.stats.FrameOut()
	}
}

func (p *Provider) readLoop() {
	defer close(p.done)
	for {
		var ev event
		if err := p.conn.ReadJSON(&ev); err != nil {
			if p.connected.Load() {
				p.emitError(&core.TransportError{Op: "read", URL: p.url, Err: err})
			}
			return
		}
		p.stats.Event()
		p.handleEvent(&ev)
	}
}

func (p *Provider) handleEvent(ev *event) {
	switch ev.Type {
	case "response.audio_transcript.delta", "response.text.delta", "response.output_text.delta":
		if p.streaming.CompareAndSwap(false, true) {
			p.emitResponseStart()
		}
		if ev.Delta != "" {
			p.emitTranscript(ev.Delta, types.RoleAssistant)
		}

	case "conversation.item.input_audio_transcription.completed":
		text := ev.Transcript
		if text == "" && ev.Item != nil && len(ev.Item.Content) > 0 {
			text = ev.Item.Content[0].Transcript
		}
		if text != "" {
			p.emitTranscript(text, types.RoleUser)
		}

	case "response.audio.delta":
		if ev.Delta == "" {
			return
		}
		raw, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			p.logger.Debug("bad audio delta", "err", err)
			return
		}
		p.playback.Schedule(audio.PCM16ToFloat32(audio.PCM16BytesLE(raw)), outputSampleRate)
		p.stats.FrameIn()

	case "response.done", "response.completed", "response.finished":
		p.stats.ResponseDone()
		p.awaiting.Store(false)
		p.streaming.Store(false)
		p.emitResponseEnd()

	case "error":
		p.handleErrorEvent(ev.Error)

	default:
		p.logger.Debug("unhandled event", "type", ev.Type)
	}
}

func (p *Provider) handleErrorEvent(e *eventError) {
	if e == nil {
		return
	}
	if core.Classify(e.Code, e.Message) == core.VerdictIgnore {
		p.logger.Debug("ignorable busy race", "code", e.Code)
		return
	}
	p.emitError(&core.Error{Type: core.ErrProvider, Message: e.Message, Code: e.Code})
}

func (p *Provider) writeJSON(v any) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.conn == nil {
		return
	}
	if err := p.conn.WriteJSON(v); err != nil {
		p.logger.Debug("write failed", "err", err)
	}
}

func (p *Provider) emitTranscript(text string, role types.Role) {
	p.mu.Lock()
	fn := p.onTranscript
	p.mu.Unlock()
	if fn != nil {
		fn(text, role)
	}
}

func (p *Provider) emitResponseStart() {
	p.mu.Lock()
	fn := p.onResponseStart
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *Provider) emitResponseEnd() {
	p.mu.Lock()
	fn := p.onResponseEnd
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *Provider) emitError(err error) {
	p.mu.Lock()
	fn := p.onError
	p.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
