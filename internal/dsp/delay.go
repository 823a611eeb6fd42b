package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/myaudio/equalizer"
)

// Bandpass cascade shape used when a frequency range is applied before
// correlation. Two passes of each RBJ biquad give 24 dB/oct edges; PHAT
// whitening makes the exact rolloff non-critical.
const (
	bandpassQ      = 0.707
	bandpassPasses = 2
)

type delayConfig struct {
	filter       CCFilter
	maxDelay     float64 // seconds; 0 disables the lag restriction
	bandpassLow  float64 // Hz
	bandpassHigh float64 // Hz
	bandpass     bool
}

// DelayOption configures EstimateDelay.
type DelayOption func(*delayConfig)

// WithFilter selects the cross-spectrum weighting. Default is FilterPHAT.
func WithFilter(f CCFilter) DelayOption {
	return func(c *delayConfig) {
		c.filter = f
	}
}

// WithMaxDelay restricts the reported peak to lags within maxDelay seconds
// of zero. The correlation itself is unchanged; only the argmax window
// narrows. A non-positive value disables the restriction.
func WithMaxDelay(maxDelay float64) DelayOption {
	return func(c *delayConfig) {
		c.maxDelay = maxDelay
	}
}

// WithBandpass band-limits the signal to [low, high] Hz before correlating.
// The reference is NOT filtered: callers are expected to bandpass the
// reference once with Bandpass and reuse it across receiver pairs.
func WithBandpass(low, high float64) DelayOption {
	return func(c *delayConfig) {
		c.bandpassLow = low
		c.bandpassHigh = high
		c.bandpass = true
	}
}

// Bandpass band-limits samples to [low, high] Hz in place, using cascaded
// high-pass and low-pass biquads.
func Bandpass(samples []float64, sampleRate int, low, high float64) error {
	if sampleRate <= 0 {
		return errors.Newf("invalid sample rate: %d", sampleRate).
			Category(errors.CategoryValidation).
			Build()
	}
	if low <= 0 || high <= low || high > float64(sampleRate)/2 {
		return errors.Newf("invalid bandpass range [%g, %g] Hz for sample rate %d", low, high, sampleRate).
			Category(errors.CategoryValidation).
			Context("low_hz", low).
			Context("high_hz", high).
			Context("sample_rate", sampleRate).
			Build()
	}

	hp, err := equalizer.NewHighPass(float64(sampleRate), low, bandpassQ, bandpassPasses)
	if err != nil {
		return errors.New(err).Category(errors.CategorySignal).Build()
	}
	lp, err := equalizer.NewLowPass(float64(sampleRate), high, bandpassQ, bandpassPasses)
	if err != nil {
		return errors.New(err).Category(errors.CategorySignal).Build()
	}

	chain := equalizer.NewFilterChain()
	if err := chain.AddFilter(hp); err != nil {
		return errors.New(err).Category(errors.CategorySignal).Build()
	}
	if err := chain.AddFilter(lp); err != nil {
		return errors.New(err).Category(errors.CategorySignal).Build()
	}
	chain.ApplyBatch(samples)
	return nil
}

// EstimateDelay estimates how far signal lags reference, in seconds, via
// generalized cross-correlation. It returns the delay of the correlation
// peak and a confidence score for it.
//
// A positive delay means the sound reached signal's receiver after it
// reached reference's receiver. The inputs are never modified.
//
// Confidence: with FilterCC the peak is normalized by the signal energies
// (sqrt of the product of sums of squares), bounding it by 1 for identical
// signals; with FilterPHAT the raw whitened peak is returned, which is
// naturally at most ~1.
func EstimateDelay(signal, reference []float64, sampleRate int, opts ...DelayOption) (delay, ccMax float64, err error) {
	if len(signal) == 0 || len(reference) == 0 {
		return 0, 0, errors.Newf("delay estimation requires non-empty inputs (len(signal)=%d, len(reference)=%d)",
			len(signal), len(reference)).
			Category(errors.CategoryValidation).
			Build()
	}
	if sampleRate <= 0 {
		return 0, 0, errors.Newf("invalid sample rate: %d", sampleRate).
			Category(errors.CategoryValidation).
			Build()
	}

	cfg := delayConfig{filter: FilterPHAT}
	for _, opt := range opts {
		opt(&cfg)
	}

	sig := signal
	if cfg.bandpass {
		sig = make([]float64, len(signal))
		copy(sig, signal)
		if err := Bandpass(sig, sampleRate, cfg.bandpassLow, cfg.bandpassHigh); err != nil {
			return 0, 0, err
		}
	}

	cc, err := GCC(sig, reference, cfg.filter)
	if err != nil {
		return 0, 0, err
	}
	lags := Lags(len(sig), len(reference))

	// Restrict the peak search to |lag| <= maxDelay when requested. Lag
	// zero always falls inside the window, so the search is never empty.
	lo, hi := 0, len(cc)
	if cfg.maxDelay > 0 {
		maxLag := cfg.maxDelay * float64(sampleRate)
		for lo < len(lags) && float64(lags[lo]) < -maxLag {
			lo++
		}
		for hi > lo && float64(lags[hi-1]) > maxLag {
			hi--
		}
	}

	best := lo
	for i := lo + 1; i < hi; i++ {
		if cc[i] > cc[best] {
			best = i
		}
	}

	delay = float64(lags[best]) / float64(sampleRate)
	ccMax = cc[best]

	if cfg.filter == FilterCC {
		norm := math.Sqrt(floats.Dot(sig, sig) * floats.Dot(reference, reference))
		if norm > 0 {
			ccMax /= norm
		}
	}

	return delay, ccMax, nil
}
