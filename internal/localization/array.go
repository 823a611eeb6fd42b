package localization

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/birdnet-array/internal/detections"
	"github.com/tphakala/birdnet-array/internal/dsp"
	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/geom"
	"github.com/tphakala/birdnet-array/internal/myaudio"
)

// Array is a synchronized recorder array: a set of receiver files with
// known positions whose clocks are aligned closely enough that arrival
// time differences are meaningful.
type Array struct {
	coords map[string]geom.Point
	source SegmentSource
}

// NewArray builds an Array from receiver file coordinates. source loads
// receiver audio; nil means plain uncached file loading.
func NewArray(coords map[string]geom.Point, source SegmentSource) (*Array, error) {
	if len(coords) == 0 {
		return nil, errors.Newf("receiver coordinates are required").
			Category(errors.CategoryValidation).
			Context("operation", "new_array").
			Build()
	}
	if source == nil {
		source = &myaudio.FileLoader{}
	}
	cloned := make(map[string]geom.Point, len(coords))
	for file, pos := range coords {
		cloned[file] = pos.Clone()
	}
	return &Array{coords: cloned, source: source}, nil
}

// Options configures a LocalizeDetections run.
type Options struct {
	// MaxReceiverDist is the grouping radius in meters: receivers
	// farther apart than this never co-detect one event.
	MaxReceiverDist float64
	// MinReceivers is the minimum receivers per event, counting the
	// reference, both at grouping and after cc filtering.
	MinReceivers int
	// Algorithm selects the position solver.
	Algorithm Algorithm
	// CCThreshold is the minimum correlation confidence; see
	// LocationParams.
	CCThreshold float64
	// CCFilter selects the correlation weighting; empty means PHAT.
	CCFilter dsp.CCFilter
	// MaxDelay restricts correlation peak search, in seconds; zero
	// means unrestricted.
	MaxDelay float64
	// BandpassRanges maps class names to pre-correlation filter bands.
	// Classes without an entry run unfiltered.
	BandpassRanges map[string]BandpassRange
	// ResidualThreshold is the maximum residual RMS in meters; zero
	// means no limit.
	ResidualThreshold float64
	// SpeedOfSound in m/s; zero means geom.DefaultSpeedOfSound.
	SpeedOfSound float64
	// Workers bounds concurrent event processing; values below 1 run
	// sequentially.
	Workers int
}

// LocalizeDetections runs the whole pipeline over a detection table:
// group simultaneous nearby detections into candidate events, estimate
// arrival delays, solve positions, and validate residuals.
//
// Both returned slices keep grouper emission order (class, start time,
// reference receiver) regardless of worker count. Events rejected at
// any stage land in unlocalized with their terminal state and Err set.
// The returned error is reserved for whole-run failures: missing
// coordinates, bad options, context cancellation, or a solver fault.
func (a *Array) LocalizeDetections(ctx context.Context, table *detections.Table, opts Options) (localized, unlocalized []*Event, err error) {
	runStart := time.Now()
	defer func() {
		if m := getMetrics(); m != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			m.RecordRun(status)
			m.RecordRunDuration(time.Since(runStart).Seconds())
		}
	}()

	if err := ValidateCoordinates(table, a.coords); err != nil {
		return nil, nil, err
	}
	a.warnMissingBandpass(table, opts.BandpassRanges)

	nearby, err := BuildNearbyIndex(a.coords, opts.MaxReceiverDist)
	if err != nil {
		return nil, nil, err
	}
	events, err := GroupDetections(table, a.coords, nearby, opts.MinReceivers)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("localizing candidate events",
		"events", len(events),
		"receivers", len(a.coords),
		"algorithm", string(opts.Algorithm),
		"workers", max(opts.Workers, 1))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for _, event := range events {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return a.processEvent(event, opts)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Workers mutate events in place, so the grouper's slice order is
	// the output order for any worker count.
	for _, event := range events {
		if m := getMetrics(); m != nil {
			m.RecordEvent(string(event.State))
			m.RecordEventReceivers(len(event.ReceiverFiles))
		}
		if event.State == StateLocalized {
			localized = append(localized, event)
		} else {
			unlocalized = append(unlocalized, event)
		}
	}
	return localized, unlocalized, nil
}

func (a *Array) processEvent(event *Event, opts Options) error {
	params := DelayParams{
		Source:   a.source,
		Filter:   opts.CCFilter,
		MaxDelay: opts.MaxDelay,
	}
	if band, ok := opts.BandpassRanges[event.Class]; ok {
		params.Bandpass = &band
	}

	delayStart := time.Now()
	err := event.EstimateDelays(params)
	if m := getMetrics(); m != nil {
		m.RecordStageDuration("delay_estimation", time.Since(delayStart).Seconds())
	}
	if err != nil {
		if event.State == StateRejectedPreprocessing {
			logger.Warn("event rejected during preprocessing",
				"class", event.Class,
				"start", event.Start,
				"reference", event.ReceiverFiles[0],
				"error", err)
			return nil
		}
		return err
	}
	if m := getMetrics(); m != nil {
		filter := opts.CCFilter
		if filter == "" {
			filter = dsp.FilterPHAT
		}
		for _, ccMax := range event.CCMaxs[1:] {
			m.RecordCCMax(string(filter), ccMax)
		}
	}

	solveStart := time.Now()
	err = event.EstimateLocation(LocationParams{
		Algorithm:         opts.Algorithm,
		CCThreshold:       opts.CCThreshold,
		MinReceivers:      opts.MinReceivers,
		ResidualThreshold: opts.ResidualThreshold,
		SpeedOfSound:      opts.SpeedOfSound,
	})
	if m := getMetrics(); m != nil {
		m.RecordStageDuration("position_solve", time.Since(solveStart).Seconds())
		m.RecordResidualRMS(string(opts.Algorithm), event.ResidualRMS)
	}
	if err != nil {
		if errors.Is(err, ErrInsufficientReceivers) {
			return nil
		}
		return err
	}
	return nil
}

func (a *Array) warnMissingBandpass(table *detections.Table, ranges map[string]BandpassRange) {
	if len(ranges) == 0 {
		return
	}
	var missing []string
	for _, class := range table.Classes() {
		if _, ok := ranges[class]; !ok {
			missing = append(missing, class)
		}
	}
	if len(missing) > 0 {
		logger.Warn("no bandpass range configured for some classes, correlating their events unfiltered",
			"classes", strings.Join(missing, ", "))
	}
}
