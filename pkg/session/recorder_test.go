package session

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oralab/exo/pkg/voice/audio"
)

func TestRecorderProducesWAVBlob(t *testing.T) {
	src := audio.NewPipeSource(24000)
	defer src.Stop()

	r := &Recorder{}
	r.Start(src)
	src.Push([]float32{0.1, -0.1, 0.2, -0.2})
	src.Push([]float32{0.3, -0.3})
	time.Sleep(20 * time.Millisecond)

	blob := r.Stop()
	require.NotNil(t, blob)
	require.Equal(t, "audio/wav", blob.MIME)
	require.True(t, bytes.HasPrefix(blob.Data, []byte("RIFF")))
	payload := audio.StripWAVHeader(blob.Data)
	require.Len(t, payload, 12) // six samples, 16-bit
}

func TestRecorderStopWhenIdleReturnsNil(t *testing.T) {
	r := &Recorder{}
	require.Nil(t, r.Stop())
}

func TestRecorderDoubleStopReturnsNil(t *testing.T) {
	src := audio.NewPipeSource(24000)
	defer src.Stop()
	r := &Recorder{}
	r.Start(src)
	src.Push([]float32{0.5})
	time.Sleep(20 * time.Millisecond)
	require.NotNil(t, r.Stop())
	require.Nil(t, r.Stop())
}

func TestRecorderDegradesWithoutSupportedEncoding(t *testing.T) {
	src := audio.NewPipeSource(24000)
	defer src.Stop()

	r := &Recorder{Encodings: []Encoding{{Container: "ogg", Codec: "opus"}}}
	r.Start(src)
	src.Push([]float32{0.5, 0.5})
	time.Sleep(20 * time.Millisecond)

	// The session proceeds without a recording.
	require.True(t, r.Degraded())
	require.Nil(t, r.Stop())
}

func TestRecorderSecondPreferenceUsed(t *testing.T) {
	src := audio.NewPipeSource(8000)
	defer src.Stop()

	r := &Recorder{Encodings: []Encoding{
		{Container: "ogg", Codec: "opus"},
		{Container: "wav", Codec: "mulaw", MIME: "audio/wav"},
	}}
	r.Start(src)
	src.Push([]float32{0.25, -0.25})
	time.Sleep(20 * time.Millisecond)

	blob := r.Stop()
	require.NotNil(t, blob)
	require.False(t, r.Degraded())
	payload := audio.StripWAVHeader(blob.Data)
	require.Len(t, payload, 2) // μ-law is one byte per sample
}

func TestRecorderStartTwiceIsNoOp(t *testing.T) {
	src := audio.NewPipeSource(24000)
	defer src.Stop()
	r := &Recorder{}
	r.Start(src)
	r.Start(src)
	src.Push([]float32{0.1})
	time.Sleep(20 * time.Millisecond)
	blob := r.Stop()
	require.NotNil(t, blob)
	payload := audio.StripWAVHeader(blob.Data)
	require.Len(t, payload, 2, "a duplicate subscription would double the payload")
}
