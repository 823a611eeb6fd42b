package localization

import (
	"math"

	"github.com/tphakala/birdnet-array/internal/dsp"
	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/geom"
	"github.com/tphakala/birdnet-array/internal/myaudio"
)

// State tracks an event through the localization pipeline. An event is
// created by the grouper, gains delays, then is either localized or
// rejected. Rejected states are terminal.
type State string

const (
	StateCreated                       State = "created"
	StateDelaysEstimated               State = "delays_estimated"
	StateLocalized                     State = "localized"
	StateRejectedInsufficientReceivers State = "rejected_insufficient_receivers"
	StateRejectedResidualTooHigh       State = "rejected_residual_too_high"
	StateRejectedPreprocessing         State = "rejected_preprocessing"
)

// ErrInsufficientReceivers indicates too few receivers passed the
// cross-correlation confidence threshold to attempt a position solve.
var ErrInsufficientReceivers = errors.NewStd("insufficient receivers after cross-correlation filtering")

// ErrEventState indicates an operation was called on an event in the
// wrong pipeline state.
var ErrEventState = errors.NewStd("invalid event state for operation")

// SegmentSource loads a window of audio from a receiver file.
// myaudio.FileLoader and myaudio.CachingLoader both satisfy it.
type SegmentSource interface {
	LoadSegment(path string, offset, duration float64) (*myaudio.Segment, error)
}

// BandpassRange is the [Low, High] Hz band applied to each receiver's
// audio before cross-correlation.
type BandpassRange struct {
	Low  float64
	High float64
}

// Event is one candidate sound event: a detected class, a clip window,
// and the receivers that heard it. ReceiverFiles[0] is the reference
// receiver; TDOAs, CCMaxs, Positions and Residuals are index-aligned
// with ReceiverFiles.
type Event struct {
	Class         string
	ReceiverFiles []string
	Positions     []geom.Point
	Start         float64
	Duration      float64

	State State
	Err   error

	// Populated by EstimateDelays. TDOAs[0] is 0 and CCMaxs[0] is 1 for
	// the reference receiver.
	TDOAs  []float64
	CCMaxs []float64

	// Populated by EstimateLocation.
	Estimate    geom.Point
	Residuals   []float64
	ResidualRMS float64
}

// NewEvent creates an event in StateCreated. files[0] is the reference
// receiver and positions must align with files.
func NewEvent(class string, files []string, positions []geom.Point, start, duration float64) *Event {
	return &Event{
		Class:         class,
		ReceiverFiles: files,
		Positions:     positions,
		Start:         start,
		Duration:      duration,
		State:         StateCreated,
		ResidualRMS:   math.NaN(),
	}
}

// DelayParams configures time-delay estimation for an event.
type DelayParams struct {
	// Source loads receiver audio. Required.
	Source SegmentSource
	// Filter selects the cross-correlation weighting; empty means PHAT.
	Filter dsp.CCFilter
	// MaxDelay restricts the correlation peak search to |delay| <=
	// MaxDelay seconds. Zero or negative means unrestricted.
	MaxDelay float64
	// Bandpass, when non-nil, filters every receiver's audio to this
	// band before correlation.
	Bandpass *BandpassRange
}

// EstimateDelays loads each receiver's clip and estimates its arrival
// delay relative to the reference receiver. The reference is loaded and
// bandpassed once and reused against every other receiver.
//
// Any audio that cannot be loaded or filtered moves the event to
// StateRejectedPreprocessing and returns the error; callers batching
// many events should record the rejection and move on rather than abort
// the run.
func (e *Event) EstimateDelays(params DelayParams) error {
	if e.State != StateCreated {
		return errors.Newf("estimate delays: event is %q: %w", e.State, ErrEventState).
			Category(errors.CategoryLocalization).
			Context("state", string(e.State)).
			Build()
	}
	if params.Source == nil {
		return errors.Newf("estimate delays: segment source is required").
			Category(errors.CategoryValidation).
			Build()
	}

	filter := params.Filter
	if filter == "" {
		filter = dsp.FilterPHAT
	}

	ref, err := params.Source.LoadSegment(e.ReceiverFiles[0], e.Start, e.Duration)
	if err != nil {
		return e.rejectPreprocessing(err)
	}
	if params.Bandpass != nil {
		if err := dsp.Bandpass(ref.Samples, ref.SampleRate, params.Bandpass.Low, params.Bandpass.High); err != nil {
			return e.rejectPreprocessing(err)
		}
	}

	tdoas := make([]float64, len(e.ReceiverFiles))
	ccMaxs := make([]float64, len(e.ReceiverFiles))
	tdoas[0] = 0
	ccMaxs[0] = 1

	opts := []dsp.DelayOption{dsp.WithFilter(filter)}
	if params.MaxDelay > 0 {
		opts = append(opts, dsp.WithMaxDelay(params.MaxDelay))
	}
	if params.Bandpass != nil {
		opts = append(opts, dsp.WithBandpass(params.Bandpass.Low, params.Bandpass.High))
	}

	for i := 1; i < len(e.ReceiverFiles); i++ {
		sig, err := params.Source.LoadSegment(e.ReceiverFiles[i], e.Start, e.Duration)
		if err != nil {
			return e.rejectPreprocessing(err)
		}
		if sig.SampleRate != ref.SampleRate {
			return e.rejectPreprocessing(errors.Newf(
				"sample rate mismatch: %s is %d Hz, reference %s is %d Hz",
				e.ReceiverFiles[i], sig.SampleRate, e.ReceiverFiles[0], ref.SampleRate).
				Category(errors.CategorySignal).
				Build())
		}

		delay, ccMax, err := dsp.EstimateDelay(sig.Samples, ref.Samples, ref.SampleRate, opts...)
		if err != nil {
			return e.rejectPreprocessing(err)
		}
		tdoas[i] = delay
		ccMaxs[i] = ccMax
	}

	e.TDOAs = tdoas
	e.CCMaxs = ccMaxs
	e.State = StateDelaysEstimated
	return nil
}

func (e *Event) rejectPreprocessing(err error) error {
	e.State = StateRejectedPreprocessing
	e.Err = err
	return errors.Newf("estimate delays for %s at %s: %w", e.Class, formatSeconds(e.Start), err).
		Category(errors.CategorySignal).
		Context("class", e.Class).
		Context("reference", e.ReceiverFiles[0]).
		Build()
}

// LocationParams configures the position solve for an event.
type LocationParams struct {
	// Algorithm selects the closed-form solver. Required.
	Algorithm Algorithm
	// CCThreshold drops receivers whose correlation confidence is not
	// strictly greater than this value. The reference's confidence is 1,
	// so a threshold below 1 always keeps the reference.
	CCThreshold float64
	// MinReceivers is the minimum number of surviving receivers needed
	// to attempt a solve.
	MinReceivers int
	// ResidualThreshold keeps positions whose residual RMS in meters is
	// strictly below this value. Zero or negative means no limit.
	ResidualThreshold float64
	// SpeedOfSound in m/s. Zero or negative means geom.DefaultSpeedOfSound.
	SpeedOfSound float64
}

// EstimateLocation solves for the event position from the estimated
// delays, then validates the estimate against the full receiver set.
//
// Receivers whose correlation confidence fails CCThreshold are excluded
// from the solve, but residuals are always computed over every receiver
// so a weak-correlation receiver still constrains validation. The
// outcome lands in one of three states: StateLocalized,
// StateRejectedInsufficientReceivers (also returns
// ErrInsufficientReceivers), or StateRejectedResidualTooHigh. A residual
// RMS of NaN, as produced by degenerate receiver geometry, never passes
// the threshold.
func (e *Event) EstimateLocation(params LocationParams) error {
	if e.State != StateDelaysEstimated {
		return errors.Newf("estimate location: event is %q: %w", e.State, ErrEventState).
			Category(errors.CategoryLocalization).
			Context("state", string(e.State)).
			Build()
	}

	speed := params.SpeedOfSound
	if speed <= 0 {
		speed = geom.DefaultSpeedOfSound
	}
	residualThreshold := params.ResidualThreshold
	if residualThreshold <= 0 {
		residualThreshold = math.Inf(1)
	}

	var survivorPositions []geom.Point
	var survivorTDOAs []float64
	for i, ccMax := range e.CCMaxs {
		if ccMax > params.CCThreshold {
			survivorPositions = append(survivorPositions, e.Positions[i])
			survivorTDOAs = append(survivorTDOAs, e.TDOAs[i])
		}
	}

	if len(survivorPositions) < params.MinReceivers {
		e.State = StateRejectedInsufficientReceivers
		err := errors.Newf("%d of %d receivers passed cc threshold %g, need %d: %w",
			len(survivorPositions), len(e.ReceiverFiles), params.CCThreshold, params.MinReceivers,
			ErrInsufficientReceivers).
			Category(errors.CategoryLocalization).
			Context("class", e.Class).
			Context("survivors", len(survivorPositions)).
			Build()
		e.Err = err
		return err
	}

	estimate, err := Localize(survivorPositions, survivorTDOAs, params.Algorithm, speed)
	if err != nil {
		return errors.Newf("solve position for %s at %s: %w", e.Class, formatSeconds(e.Start), err).
			Category(errors.CategoryLocalization).
			Context("algorithm", string(params.Algorithm)).
			Build()
	}

	residuals, err := geom.TDOAResiduals(e.Positions, e.TDOAs, estimate, speed)
	if err != nil {
		return err
	}

	e.Estimate = estimate
	e.Residuals = residuals
	e.ResidualRMS = geom.ResidualRMS(residuals)

	if e.ResidualRMS < residualThreshold {
		e.State = StateLocalized
	} else {
		e.State = StateRejectedResidualTooHigh
	}
	return nil
}

// MeanCCMax is the mean cross-correlation confidence over the
// non-reference receivers, 0 before delays are estimated.
func (e *Event) MeanCCMax() float64 {
	if len(e.CCMaxs) < 2 {
		return 0
	}
	var sum float64
	for _, cc := range e.CCMaxs[1:] {
		sum += cc
	}
	return sum / float64(len(e.CCMaxs)-1)
}
