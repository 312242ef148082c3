package audio

import (
	"bytes"
	"testing"
)

func TestStripWAVHeaderRoundTrip(t *testing.T) {
	pcm := []int16{1, -2, 3, -4, 5}
	wav := EncodeWAV(pcm, 24000)
	got := StripWAVHeader(wav)
	if !bytes.Equal(got, PCM16ToBytesLE(pcm)) {
		t.Fatalf("payload mismatch: %v", got)
	}
}

func TestStripWAVHeaderPassthrough(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	if got := StripWAVHeader(raw); !bytes.Equal(got, raw) {
		t.Fatalf("non-RIFF data must pass through, got %v", got)
	}
}

func TestStripWAVHeaderMuLaw(t *testing.T) {
	payload := []byte{0x7f, 0xff, 0x00}
	wav := EncodeWAVMuLaw(payload, 8000)
	if got := StripWAVHeader(wav); !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %v", got)
	}
}
