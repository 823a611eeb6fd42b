// bandpass.go: parser for per-class bandpass specifications.
package conf

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/tphakala/birdnet-array/internal/errors"
)

// ParseBandpassSpec parses a per-class bandpass flag of the form
// "CLASS:low-high,CLASS:low-high" into frequency bands. Frequencies are Hz.
// Class names may contain spaces but not colons or commas. An empty spec
// returns a nil map.
func ParseBandpassSpec(spec string) (map[string]BandpassBand, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	bands := make(map[string]BandpassBand)
	for entry := range strings.SplitSeq(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		class, rangeSpec, found := strings.Cut(entry, ":")
		class = strings.TrimSpace(class)
		if !found || class == "" {
			return nil, errors.Newf("bandpass entry %q must have the form CLASS:low-high", entry).
				Component("conf").
				Category(errors.CategoryValidation).
				Context("entry", entry).
				Build()
		}

		lowSpec, highSpec, found := strings.Cut(rangeSpec, "-")
		if !found {
			return nil, errors.Newf("bandpass range %q for %s must have the form low-high", rangeSpec, class).
				Component("conf").
				Category(errors.CategoryValidation).
				Context("entry", entry).
				Build()
		}

		low, err := cast.ToFloat64E(strings.TrimSpace(lowSpec))
		if err != nil {
			return nil, errors.Newf("invalid bandpass low frequency %q for %s", lowSpec, class).
				Component("conf").
				Category(errors.CategoryValidation).
				Context("entry", entry).
				Build()
		}
		high, err := cast.ToFloat64E(strings.TrimSpace(highSpec))
		if err != nil {
			return nil, errors.Newf("invalid bandpass high frequency %q for %s", highSpec, class).
				Component("conf").
				Category(errors.CategoryValidation).
				Context("entry", entry).
				Build()
		}

		if low < 0 || high <= low {
			return nil, errors.Newf("bandpass for %s must satisfy 0 <= low < high, got %g-%g", class, low, high).
				Component("conf").
				Category(errors.CategoryValidation).
				Context("entry", entry).
				Build()
		}

		if _, ok := bands[class]; ok {
			return nil, errors.Newf("duplicate bandpass entry for %s", class).
				Component("conf").
				Category(errors.CategoryValidation).
				Context("entry", entry).
				Build()
		}
		bands[class] = BandpassBand{Low: low, High: high}
	}

	if len(bands) == 0 {
		return nil, nil
	}
	return bands, nil
}
