package session

import (
	"sync"

	"github.com/oralab/exo/pkg/core/types"
	"github.com/oralab/exo/pkg/voice/audio"
)

// Encoding names a container/codec pair the recorder can produce.
type Encoding struct {
	Container string // "wav" or "raw"
	Codec     string // "pcm_s16le" or "mulaw"
	MIME      string
}

// DefaultEncodings is the preference order tried at Start.
var DefaultEncodings = []Encoding{
	{Container: "wav", Codec: "pcm_s16le", MIME: "audio/wav"},
	{Container: "wav", Codec: "mulaw", MIME: "audio/wav"},
	{Container: "raw", Codec: "pcm_s16le", MIME: "audio/L16"},
}

func encodingSupported(e Encoding) bool {
	switch e.Container {
	case "wav":
		return e.Codec == "pcm_s16le" || e.Codec == "mulaw"
	case "raw":
		return e.Codec == "pcm_s16le"
	}
	return false
}

// Recorder captures the candidate's mic audio into an encoded blob.
// When no preferred encoding is supported it degrades silently: the
// session proceeds and Stop returns nil.
type Recorder struct {
	// Encodings overrides DefaultEncodings when non-nil.
	Encodings []Encoding

	mu       sync.Mutex
	active   bool
	enc      Encoding
	rate     int
	chunks   [][]int16
	cancel   func()
	drained  chan struct{}
	degraded bool
}

// Start begins capture from src. No-op when already recording.
func (r *Recorder) Start(src audio.Source) {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return
	}
	prefs := r.Encodings
	if prefs == nil {
		prefs = DefaultEncodings
	}
	chosen := Encoding{}
	found := false
	for _, e := range prefs {
		if encodingSupported(e) {
			chosen = e
			found = true
			break
		}
	}
	if !found {
		r.degraded = true
		r.mu.Unlock()
		return
	}
	r.active = true
	r.degraded = false
	r.enc = chosen
	r.rate = src.SampleRate()
	r.chunks = nil
	r.drained = make(chan struct{})
	frames, cancel := src.Subscribe(64)
	r.cancel = cancel
	r.mu.Unlock()

	go func() {
		defer close(r.drained)
		for frame := range frames {
			pcm := audio.Float32ToPCM16(frame)
			r.mu.Lock()
			r.chunks = append(r.chunks, pcm)
			r.mu.Unlock()
		}
	}()
}

// Stop ends capture and returns the encoded blob, waiting for in-flight
// chunks to land first. Returns nil when idle or degraded.
func (r *Recorder) Stop() *types.AudioBlob {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil
	}
	r.active = false
	cancel := r.cancel
	drained := r.drained
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if drained != nil {
		<-drained
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, c := range r.chunks {
		total += len(c)
	}
	if total == 0 {
		r.chunks = nil
		return nil
	}
	pcm := make([]int16, 0, total)
	for _, c := range r.chunks {
		pcm = append(pcm, c...)
	}
	r.chunks = nil

	switch {
	case r.enc.Container == "wav" && r.enc.Codec == "mulaw":
		return &types.AudioBlob{Data: audio.EncodeWAVMuLaw(audio.MuLawEncodeSlice(pcm), r.rate), MIME: r.enc.MIME}
	case r.enc.Container == "wav":
		return &types.AudioBlob{Data: audio.EncodeWAV(pcm, r.rate), MIME: r.enc.MIME}
	default:
		return &types.AudioBlob{Data: audio.PCM16ToBytesLE(pcm), MIME: r.enc.MIME}
	}
}

// Degraded reports whether the last Start found no usable encoding.
func (r *Recorder) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}
