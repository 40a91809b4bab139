package audio

// Resample converts mono samples from sourceRate to targetRate using linear
// interpolation. Equal rates return the input unchanged. Positions past the
// end of the input are zero.
func Resample(samples []float32, sourceRate, targetRate int) []float32 {
	if sourceRate == targetRate || sourceRate <= 0 || targetRate <= 0 {
		return samples
	}

	outLen := (len(samples)*targetRate + sourceRate - 1) / sourceRate
	out := make([]float32, outLen)
	step := float64(sourceRate) / float64(targetRate)

	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		frac := float32(pos - float64(idx))

		switch {
		case idx+1 < len(samples):
			out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
		case idx < len(samples):
			out[i] = samples[idx]
		}
	}
	return out
}
