package audio

// FallbackRates are tried in order when the device cannot capture at the
// requested rate directly.
var FallbackRates = []int{48000, 44100, 24000, 22050}

// MaxChannels is the widest input layout the pipeline downmixes.
const MaxChannels = 2

// SelectConfig picks the capture configuration for a target rate. The first
// config with at most two channels covering target wins; otherwise each
// fallback rate is tried in order against all configs.
func SelectConfig(configs []SupportedConfig, target int) (CaptureConfig, error) {
	rates := append([]int{target}, FallbackRates...)
	for _, rate := range rates {
		for _, c := range configs {
			if c.Channels < 1 || c.Channels > MaxChannels {
				continue
			}
			if c.Covers(rate) {
				return CaptureConfig{
					Channels:   c.Channels,
					Format:     c.Format,
					SampleRate: rate,
				}, nil
			}
		}
	}
	return CaptureConfig{}, &Error{Kind: KindConfig, Err: ErrNoSuitableConfig}
}

// candidateRates returns the distinct rates worth probing for target.
func candidateRates(target int) []int {
	seen := map[int]bool{}
	var rates []int
	for _, r := range append([]int{target}, FallbackRates...) {
		if r > 0 && !seen[r] {
			seen[r] = true
			rates = append(rates, r)
		}
	}
	return rates
}
