package audio

// G.711 μ-law companding, used by the telephony audio mode.

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// MuLawEncode compands one 16-bit sample to a μ-law byte.
func MuLawEncode(sample int16) byte {
	sign := byte(0)
	s := int32(sample)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > muLawClip {
		s = muLawClip
	}
	s += muLawBias
	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && s&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((s >> (exponent + 3)) & 0x0f)
	return ^(sign | (exponent << 4) | mantissa)
}

// MuLawDecode expands one μ-law byte back to a 16-bit sample.
func MuLawDecode(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0f
	s := ((int32(mantissa) << 3) + muLawBias) << exponent
	s -= muLawBias
	if sign != 0 {
		s = -s
	}
	return int16(s)
}

// MuLawEncodeSlice compands a PCM buffer.
func MuLawEncodeSlice(in []int16) []byte {
	out := make([]byte, len(in))
	for i, s := range in {
		out[i] = MuLawEncode(s)
	}
	return out
}

// MuLawDecodeSlice expands a μ-law buffer.
func MuLawDecodeSlice(in []byte) []int16 {
	out := make([]int16, len(in))
	for i, b := range in {
		out[i] = MuLawDecode(b)
	}
	return out
}
