package audio

// Resample converts float32 samples between rates by linear
// interpolation and returns signed 16-bit output. When the rates match
// it only clamps and converts.
func Resample(in []float32, inRate, outRate int) []int16 {
	if len(in) == 0 || inRate <= 0 || outRate <= 0 {
		return nil
	}
	if inRate == outRate {
		return Float32ToPCM16(in)
	}
	ratio := float64(inRate) / float64(outRate)
	n := int(float64(len(in)) / ratio)
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		pos := float64(i) * ratio
		j := int(pos)
		frac := float32(pos - float64(j))
		s := in[j]
		if j+1 < len(in) {
			s = in[j]*(1-frac) + in[j+1]*frac
		}
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		if s < 0 {
			out[i] = int16(s * 0x8000)
		} else {
			out[i] = int16(s * 0x7fff)
		}
	}
	return out
}
