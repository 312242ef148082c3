package agentws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oralab/exo/pkg/core/types"
	"github.com/oralab/exo/pkg/voice"
	"github.com/oralab/exo/pkg/voice/audio"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

type inboundFrame struct {
	msgType int
	data    []byte
}

// fakeAgent upgrades, sends Welcome, acknowledges the Settings frame
// and hands the socket plus the parsed settings to script.
func fakeAgent(t *testing.T, script func(conn *websocket.Conn, settings settingsMessage, inbound <-chan inboundFrame)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		if err := conn.WriteJSON(map[string]any{"type": "Welcome"}); err != nil {
			return
		}
		var settings settingsMessage
		if err := conn.ReadJSON(&settings); err != nil {
			t.Errorf("read settings: %v", err)
			return
		}
		if settings.Type != "Settings" {
			t.Errorf("first frame = %q, want Settings", settings.Type)
		}
		if err := conn.WriteJSON(map[string]any{"type": "SettingsApplied"}); err != nil {
			return
		}

		inbound := make(chan inboundFrame, 64)
		go func() {
			defer close(inbound)
			for {
				mt, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				inbound <- inboundFrame{mt, data}
			}
		}()
		if script != nil {
			script(conn, settings, inbound)
		} else {
			for range inbound {
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func staticConfig(cfg AgentConfig) ConfigFunc {
	return func(context.Context) (AgentConfig, error) { return cfg, nil }
}

func TestHandshakeHifiSettings(t *testing.T) {
	settingsCh := make(chan settingsMessage, 1)
	srv := fakeAgent(t, func(conn *websocket.Conn, settings settingsMessage, inbound <-chan inboundFrame) {
		settingsCh <- settings
		for range inbound {
		}
	})
	defer srv.Close()

	p := New(staticConfig(AgentConfig{APIKey: "k", Model: "nova-2", Voice: "aura-2", Language: "fr", AudioMode: "hifi"}),
		WithURL(wsURL(srv)))
	p.UpdateSession("instructions initiales", "")

	mic := audio.NewPipeSource(48000)
	defer mic.Stop()
	if err := p.Connect(context.Background(), mic, voice.Config{}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer p.Disconnect()

	settings := <-settingsCh
	if settings.Audio.Input.Encoding != "linear16" || settings.Audio.Input.SampleRate != 24000 {
		t.Fatalf("input format = %+v", settings.Audio.Input)
	}
	if settings.Agent.Think.Prompt != "instructions initiales" {
		t.Fatalf("buffered instructions not applied: %q", settings.Agent.Think.Prompt)
	}
	if settings.Agent.Greeting == "" {
		t.Fatal("missing greeting")
	}
}

func TestTelephonyModeFraming(t *testing.T) {
	frames := make(chan inboundFrame, 16)
	srv := fakeAgent(t, func(conn *websocket.Conn, settings settingsMessage, inbound <-chan inboundFrame) {
		if settings.Audio.Input.Encoding != "mulaw" || settings.Audio.Input.SampleRate != 8000 {
			t.Errorf("telephony input format = %+v", settings.Audio.Input)
		}
		for f := range inbound {
			if f.msgType == websocket.BinaryMessage {
				frames <- f
			}
		}
	})
	defer srv.Close()

	p := New(staticConfig(AgentConfig{APIKey: "k", AudioMode: "telephony"}), WithURL(wsURL(srv)))
	mic := audio.NewPipeSource(48000)
	defer mic.Stop()
	if err := p.Connect(context.Background(), mic, voice.Config{}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer p.Disconnect()

	// 40 ms of mic audio at 48 kHz resamples to 320 μ-law bytes,
	// which the framer must ship as two 160-byte frames.
	mic.Push(make([]float32, 1920))

	for i := 0; i < 2; i++ {
		select {
		case f := <-frames:
			if len(f.data) != 160 {
				t.Fatalf("frame %d size = %d, want 160", i, len(f.data))
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %d never arrived", i)
		}
	}
}

func TestConversationEvents(t *testing.T) {
	srv := fakeAgent(t, func(conn *websocket.Conn, settings settingsMessage, inbound <-chan inboundFrame) {
		conn.WriteJSON(map[string]any{"type": "AgentStartedSpeaking"})
		conn.WriteJSON(map[string]any{"type": "ConversationText", "role": "assistant", "content": "Allô?"})
		conn.WriteJSON(map[string]any{"type": "AgentAudioDone"})
		conn.WriteJSON(map[string]any{"type": "ConversationText", "role": "user", "content": "Bonjour monsieur."})
		for range inbound {
		}
	})
	defer srv.Close()

	p := New(staticConfig(AgentConfig{APIKey: "k"}), WithURL(wsURL(srv)))

	type line struct {
		text string
		role types.Role
	}
	lines := make(chan line, 8)
	started := make(chan struct{}, 1)
	ended := make(chan struct{}, 1)
	p.OnTranscript(func(text string, role types.Role) { lines <- line{text, role} })
	p.OnResponseStart(func() { started <- struct{}{} })
	p.OnResponseEnd(func() { ended <- struct{}{} })

	mic := audio.NewPipeSource(24000)
	defer mic.Stop()
	if err := p.Connect(context.Background(), mic, voice.Config{}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer p.Disconnect()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("no response start")
	}
	first := <-lines
	if first.role != types.RoleAssistant || first.text != "Allô?" {
		t.Fatalf("assistant line = %+v", first)
	}
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("no response end")
	}
	second := <-lines
	if second.role != types.RoleUser || second.text != "Bonjour monsieur." {
		t.Fatalf("user line = %+v", second)
	}
}

type captureSink struct {
	chunks chan []float32
}

func (s *captureSink) Play(pcm []float32, sampleRate int) { s.chunks <- pcm }
func (s *captureSink) Flush()                             {}
func (s *captureSink) Close() error                       { return nil }

func TestInboundAudioWAVStripped(t *testing.T) {
	pcm := []int16{100, -100, 200, -200}
	srv := fakeAgent(t, func(conn *websocket.Conn, settings settingsMessage, inbound <-chan inboundFrame) {
		conn.WriteMessage(websocket.BinaryMessage, audio.EncodeWAV(pcm, 24000))
		for range inbound {
		}
	})
	defer srv.Close()

	p := New(staticConfig(AgentConfig{APIKey: "k", AudioMode: "hifi"}), WithURL(wsURL(srv)))
	sink := &captureSink{chunks: make(chan []float32, 4)}
	p.SetAudioSink(sink)

	mic := audio.NewPipeSource(24000)
	defer mic.Stop()
	if err := p.Connect(context.Background(), mic, voice.Config{}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer p.Disconnect()

	select {
	case chunk := <-sink.chunks:
		if len(chunk) != len(pcm) {
			t.Fatalf("chunk len = %d, want %d (header not stripped?)", len(chunk), len(pcm))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audio delivered")
	}
}

func TestSendMessageUpdatesPromptAndNudges(t *testing.T) {
	controls := make(chan map[string]any, 16)
	srv := fakeAgent(t, func(conn *websocket.Conn, settings settingsMessage, inbound <-chan inboundFrame) {
		for f := range inbound {
			if f.msgType != websocket.TextMessage {
				continue
			}
			var msg map[string]any
			if json.Unmarshal(f.data, &msg) == nil {
				controls <- msg
			}
		}
	})
	defer srv.Close()

	p := New(staticConfig(AgentConfig{APIKey: "k", Language: "fr"}), WithURL(wsURL(srv)))
	mic := audio.NewPipeSource(24000)
	defer mic.Stop()
	if err := p.Connect(context.Background(), mic, voice.Config{}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer p.Disconnect()

	p.SendMessage("nouvelle consigne", nil)

	first := <-controls
	if first["type"] != "UpdatePrompt" || first["prompt"] != "nouvelle consigne" {
		t.Fatalf("first control = %v", first)
	}
	second := <-controls
	if second["type"] != "InjectUserMessage" || second["content"] != "D'accord." {
		t.Fatalf("second control = %v", second)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	p := New(staticConfig(AgentConfig{}))
	if err := p.Disconnect(); err != nil {
		t.Fatalf("disconnect on fresh provider: %v", err)
	}
	if err := p.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
}
