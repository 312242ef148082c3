// Package agentws implements the voice.Provider contract over the
// persistent voice-agent socket: Welcome handshake, Settings
// negotiation, JSON control frames multiplexed with binary audio, and
// periodic keep-alives. Two audio modes are supported: hifi (24 kHz
// linear16) and telephony (8 kHz G.711 μ-law).
package agentws

import (
	"context"
	"encoding/json"
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
	defaultURL       = "wss://agent.deepgram.com/v1/agent/converse"
	defaultGreeting  = "Bonjour, commençons l'examen."
	frameDuration    = 20 * time.Millisecond
	hifiSampleRate   = 24000
	phoneSampleRate  = 8000
	defaultKeepAlive = 15 * time.Second
)

// AgentConfig is the connection material minted by the gateway.
type AgentConfig struct {
	APIKey     string `json:"api_key,omitempty"`
	Token      string `json:"token,omitempty"`
	Model      string `json:"model"`
	Voice      string `json:"voice"`
	Language   string `json:"language"`
	AudioMode  string `json:"audio_mode"` // "hifi" or "telephony"
	ThinkModel string `json:"think_model,omitempty"`
}

// ConfigFunc fetches connection material. Failure aborts Connect
// before any dial attempt.
type ConfigFunc func(ctx context.Context) (AgentConfig, error)

// Option configures a Provider.
type Option func(*Provider)

// WithURL overrides the socket endpoint.
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

// WithHandshakeTimeout bounds the Welcome/SettingsApplied wait.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(p *Provider) { p.handshakeTimeout = d }
}

// WithKeepAliveInterval overrides the keep-alive cadence.
func WithKeepAliveInterval(d time.Duration) Option {
	return func(p *Provider) { p.keepAlive = d }
}

// WithStats attaches debug counters.
func WithStats(s *types.DebugStats) Option {
	return func(p *Provider) { p.stats = s }
}

// Provider is the voice-agent socket transport.
type Provider struct {
	config           ConfigFunc
	url              string
	dialer           *websocket.Dialer
	logger           *slog.Logger
	handshakeTimeout time.Duration
	keepAlive        time.Duration
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
	stopKA    chan struct{}
	micCancel func()

	sampleRate int
	mulaw      bool
	language   string

	connected atomic.Bool
	awaiting  atomic.Bool
}

var _ voice.Provider = (*Provider)(nil)

// New builds a Provider around a config source.
func New(config ConfigFunc, opts ...Option) *Provider {
	p := &Provider{
		config:           config,
		url:              defaultURL,
		dialer:           websocket.DefaultDialer,
		logger:           slog.Default(),
		handshakeTimeout: 10 * time.Second,
		keepAlive:        defaultKeepAlive,
		done:             make(chan struct{}),
		stopKA:           make(chan struct{}),
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

// Connect fetches the agent config, dials the socket, waits for the
// Welcome frame, applies Settings and waits for the acknowledgment.
func (p *Provider) Connect(ctx context.Context, mic audio.Source, cfg voice.Config) error {
	ac, err := p.config(ctx)
	if err != nil {
		return core.NewAuthenticationError("agent config fetch failed: " + err.Error())
	}

	p.sampleRate = hifiSampleRate
	p.mulaw = false
	if ac.AudioMode == "telephony" {
		p.sampleRate = phoneSampleRate
		p.mulaw = true
	}
	p.language = ac.Language
	if cfg.Language != "" {
		p.language = cfg.Language
	}
	voiceModel := ac.Voice
	if cfg.Voice != "" {
		voiceModel = cfg.Voice
	}

	dialer := *p.dialer
	url := p.url
	switch {
	case ac.APIKey != "":
		dialer.Subprotocols = []string{"token", ac.APIKey}
	case ac.Token != "":
		dialer.Subprotocols = []string{"bearer", ac.Token}
	}

	conn, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return &core.TransportError{Op: "dial", URL: p.url, Err: err}
	}

	conn.SetReadDeadline(time.Now().Add(p.handshakeTimeout))
	var welcome serverMessage
	if err := conn.ReadJSON(&welcome); err != nil {
		conn.Close()
		return core.NewHandshakeError("no welcome frame: " + err.Error())
	}
	if welcome.Type != "Welcome" {
		conn.Close()
		return core.NewHandshakeError("unexpected first frame: " + welcome.Type)
	}

	p.conn = conn

	p.mu.Lock()
	prompt := p.pendingInstructions
	if p.pendingVoice != "" {
		voiceModel = p.pendingVoice
	}
	p.mu.Unlock()

	encoding := "linear16"
	if p.mulaw {
		encoding = "mulaw"
	}
	settings := settingsMessage{
		Type: "Settings",
		Audio: audioSettings{
			Input:  audioFormat{Encoding: encoding, SampleRate: p.sampleRate},
			Output: audioFormat{Encoding: encoding, SampleRate: p.sampleRate, Container: "none"},
		},
		Agent: agentSettings{
			Language: p.language,
			Listen:   providerBlock{Provider: providerRef{Type: "deepgram", Model: ac.Model}},
			Think:    thinkBlock{Provider: providerRef{Type: "open_ai", Model: ac.ThinkModel}, Prompt: prompt},
			Speak:    providerBlock{Provider: providerRef{Type: "deepgram", Model: voiceModel}},
			Greeting: defaultGreeting,
		},
	}
	if err := p.writeJSONErr(settings); err != nil {
		conn.Close()
		return &core.TransportError{Op: "settings", URL: p.url, Err: err}
	}

	// Hold inbound audio until the agent acknowledges the settings.
	for {
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			conn.Close()
			return core.NewHandshakeError("waiting for settings ack: " + err.Error())
		}
		if msg.Type == "SettingsApplied" {
			break
		}
		if msg.Type == "Error" {
			conn.Close()
			return &core.Error{Type: core.ErrHandshake, Message: msg.Description, Code: msg.Code}
		}
	}
	conn.SetReadDeadline(time.Time{})
	p.connected.Store(true)

	frames, cancel := mic.Subscribe(32)
	p.micCancel = cancel
	go p.micLoop(frames, mic.SampleRate())
	go p.keepAliveLoop()
	go p.readLoop()

	p.logger.Debug("agent session established", "mode", ac.AudioMode, "rate", p.sampleRate)
	return nil
}

// Disconnect tears the socket down. Idempotent; safe when Connect never
// ran or failed.
func (p *Provider) Disconnect() error {
	p.closeOnce.Do(func() {
		p.connected.Store(false)
		close(p.stopKA)
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

// SendMessage updates the prompt and nudges the agent to speak. The
// nudge is a short injected user turn; the agent replies under the new
// prompt. Non-urgent requests are dropped while a response is in flight.
func (p *Provider) SendMessage(instructions string, cfg *voice.ResponseConfig) {
	if !p.connected.Load() {
		return
	}
	urgent := cfg != nil && cfg.Urgent
	if !urgent && !p.awaiting.CompareAndSwap(false, true) {
		p.logger.Debug("response request dropped, one already in flight")
		return
	}
	p.writeJSON(updatePromptMessage{Type: "UpdatePrompt", Prompt: instructions})
	nudge := "OK."
	if p.language == "fr" || p.language == "" {
		nudge = "D'accord."
	}
	p.writeJSON(injectUserMessage{Type: "InjectUserMessage", Content: nudge})
	p.stats.ResponseCreated()
}

// UpdateSession replaces the prompt and optionally the speak voice.
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
	p.writeJSON(updatePromptMessage{Type: "UpdatePrompt", Prompt: instructions})
	if voiceName != "" {
		p.writeJSON(updateSpeakMessage{
			Type:  "UpdateSpeak",
			Speak: providerBlock{Provider: providerRef{Type: "deepgram", Model: voiceName}},
		})
	}
}

// micLoop resamples mic frames to the negotiated rate, compands in
// telephony mode and ships fixed 20 ms binary frames.
func (p *Provider) micLoop(frames <-chan []float32, inRate int) {
	bytesPerSample := 2
	if p.mulaw {
		bytesPerSample = 1
	}
	frameBytes := p.sampleRate / 50 * bytesPerSample
	var pending []byte

	for frame := range frames {
		if !p.connected.Load() {
			return
		}
		pcm := audio.Resample(frame, inRate, p.sampleRate)
		if p.mulaw {
			pending = append(pending, audio.MuLawEncodeSlice(pcm)...)
		} else {
			pending = append(pending, audio.PCM16ToBytesLE(pcm)...)
		}
		for len(pending) >= frameBytes {
			p.writeBinary(pending[:frameBytes])
			pending = pending[frameBytes:]
			p.stats.FrameOut()
		}
	}
}

func (p *Provider) keepAliveLoop() {
	ticker := time.NewTicker(p.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.writeJSON(keepAliveMessage{Type: "KeepAlive"})
		case <-p.stopKA:
			return
		}
	}
}

func (p *Provider) readLoop() {
	defer close(p.done)
	for {
		msgType, data, err := p.conn.ReadMessage()
		if err != nil {
			if p.connected.Load() {
				p.emitError(&core.TransportError{Op: "read", URL: p.url, Err: err})
			}
			return
		}
		p.stats.Event()
		if msgType == websocket.BinaryMessage {
			p.handleAudio(data)
			continue
		}
		p.handleControl(data)
	}
}

func (p *Provider) handleAudio(data []byte) {
	payload := audio.StripWAVHeader(data)
	var pcm []int16
	if p.mulaw {
		pcm = audio.MuLawDecodeSlice(payload)
	} else {
		pcm = audio.PCM16BytesLE(payload)
	}
	if len(pcm) == 0 {
		return
	}
	p.playback.Schedule(audio.PCM16ToFloat32(pcm), p.sampleRate)
	p.stats.FrameIn()
}

func (p *Provider) handleControl(data []byte) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Debug("bad control frame", "err", err)
		return
	}
	switch msg.Type {
	case "ConversationText":
		role := types.RoleAssistant
		if msg.Role == "user" {
			role = types.RoleUser
		}
		if msg.Content != "" {
			p.emitTranscript(msg.Content, role)
		}
	case "AgentStartedSpeaking":
		p.awaiting.Store(true)
		p.emitResponseStart()
	case "AgentAudioDone":
		p.stats.ResponseDone()
		p.awaiting.Store(false)
		p.emitResponseEnd()
	case "UserStartedSpeaking", "AgentThinking", "SettingsApplied":
		// Informational.
	case "Warning":
		p.logger.Warn("agent warning", "description", msg.Description)
	case "Error":
		if core.Classify(msg.Code, msg.Description) == core.VerdictIgnore {
			p.logger.Debug("ignorable busy race", "code", msg.Code)
			return
		}
		p.emitError(&core.Error{Type: core.ErrProvider, Message: msg.Description, Code: msg.Code})
	default:
		p.logger.Debug("unhandled control frame", "type", msg.Type)
	}
}

func (p *Provider) writeJSON(v any) {
	if err := p.writeJSONErr(v); err != nil {
		p.logger.Debug("write failed", "err", err)
	}
}

func (p *Provider) writeJSONErr(v any) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.conn == nil {
		return nil
	}
	return p.conn.WriteJSON(v)
}

func (p *Provider) writeBinary(data []byte) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.conn == nil {
		return
	}
	if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		p.logger.Debug("audio write failed", "err", err)
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
