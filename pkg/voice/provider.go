// Package voice defines the transport-neutral contract between the exam
// session runner and a realtime speech provider.
package voice

import (
	"context"

	"github.com/oralab/exo/pkg/core/types"
	"github.com/oralab/exo/pkg/voice/audio"
)

// Config is the session configuration handed to Connect. Zero values
// defer to the credentials the provider fetched.
type Config struct {
	Model    string
	Voice    string
	Language string
}

// ResponseConfig tunes one requested response. Urgent requests (the
// time warnings and the wrap-up) bypass the one-in-flight gate.
type ResponseConfig struct {
	Modalities      []string
	MaxOutputTokens int
	Urgent          bool
}

// TranscriptFunc receives finalized or streamed transcript text.
type TranscriptFunc func(text string, role types.Role)

// Provider is the adapter contract implemented by both transports.
//
// Callback registration is single-subscriber, last wins, and must happen
// before Connect. Connect acquires credentials first and fails closed;
// no connection attempt is made when the credential call fails.
// Disconnect is idempotent and safe to call on a provider that never
// connected.
type Provider interface {
	Connect(ctx context.Context, mic audio.Source, cfg Config) error
	Disconnect() error

	OnTranscript(fn TranscriptFunc)
	OnResponseStart(fn func())
	OnResponseEnd(fn func())
	OnError(fn func(error))

	// SendMessage requests a spoken response under the given
	// instructions. Non-urgent requests are dropped while a response
	// is in flight.
	SendMessage(instructions string, cfg *ResponseConfig)

	// UpdateSession replaces the session instructions and optionally
	// the voice. Safe before Connect: the update is buffered and
	// applied during the handshake.
	UpdateSession(instructions, voice string)

	SetAudioSink(sink audio.Sink)
	AudioSink() audio.Sink
}
