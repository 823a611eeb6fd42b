// Package solar tags localized events with the phase of day they occurred
// in. Phase boundaries follow civil twilight: night before civil dawn,
// dawn until sunrise, day until sunset, dusk until civil dusk, then night
// again.
package solar

import (
	"sync"
	"time"

	"github.com/sj14/astral/pkg/astral"

	"github.com/tphakala/birdnet-array/internal/errors"
)

// Phase is one of the four phases of the day.
type Phase string

const (
	PhaseNight Phase = "night"
	PhaseDawn  Phase = "dawn"
	PhaseDay   Phase = "day"
	PhaseDusk  Phase = "dusk"
)

// SunTimes holds the phase boundaries of one date. All times are UTC
// instants; comparisons against event timestamps are instant-based, so no
// local conversion is needed.
type SunTimes struct {
	Dawn    time.Time // civil dawn
	Sunrise time.Time
	Sunset  time.Time
	Dusk    time.Time // civil dusk
}

// Calculator computes and caches per-date sun event times for a fixed
// observer position. Safe for concurrent use.
type Calculator struct {
	observer astral.Observer

	mu    sync.RWMutex
	cache map[string]SunTimes
}

// NewCalculator creates a calculator for the array's position.
func NewCalculator(latitude, longitude float64) *Calculator {
	return &Calculator{
		observer: astral.Observer{Latitude: latitude, Longitude: longitude},
		cache:    make(map[string]SunTimes),
	}
}

// SunTimes returns the phase boundaries for the date of t, computing and
// caching them on first use.
func (c *Calculator) SunTimes(t time.Time) (SunTimes, error) {
	key := t.Format("2006-01-02")

	c.mu.RLock()
	times, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return times, nil
	}

	times, err := c.calculate(t)
	if err != nil {
		return SunTimes{}, err
	}

	c.mu.Lock()
	c.cache[key] = times
	c.mu.Unlock()
	return times, nil
}

func (c *Calculator) calculate(date time.Time) (SunTimes, error) {
	dawn, err := astral.Dawn(c.observer, date, astral.DepressionCivil)
	if err != nil {
		return SunTimes{}, sunTimesError("civil dawn", err)
	}
	sunrise, err := astral.Sunrise(c.observer, date)
	if err != nil {
		return SunTimes{}, sunTimesError("sunrise", err)
	}
	sunset, err := astral.Sunset(c.observer, date)
	if err != nil {
		return SunTimes{}, sunTimesError("sunset", err)
	}
	dusk, err := astral.Dusk(c.observer, date, astral.DepressionCivil)
	if err != nil {
		return SunTimes{}, sunTimesError("civil dusk", err)
	}

	return SunTimes{Dawn: dawn, Sunrise: sunrise, Sunset: sunset, Dusk: dusk}, nil
}

// PhaseAt returns the phase of day at t. Polar dates where the sun never
// crosses a twilight boundary return an error; callers should skip the
// annotation rather than fail the run.
func (c *Calculator) PhaseAt(t time.Time) (Phase, error) {
	times, err := c.SunTimes(t)
	if err != nil {
		return "", err
	}

	switch {
	case t.Before(times.Dawn), !t.Before(times.Dusk):
		return PhaseNight, nil
	case t.Before(times.Sunrise):
		return PhaseDawn, nil
	case t.Before(times.Sunset):
		return PhaseDay, nil
	default:
		return PhaseDusk, nil
	}
}

func sunTimesError(event string, err error) error {
	return errors.Newf("calculate %s: %w", event, err).
		Component("solar").
		Category(errors.CategoryProcessing).
		Build()
}
