package localization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tphakala/birdnet-array/internal/detections"
	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/geom"
)

// ErrMissingCoordinates indicates the detection table references files
// with no known receiver position.
var ErrMissingCoordinates = errors.NewStd("detection files missing receiver coordinates")

// ValidateCoordinates checks that every file in the detection table has
// a receiver position. The returned error names all missing files so a
// misconfigured array is fixed in one pass.
func ValidateCoordinates(table *detections.Table, coords map[string]geom.Point) error {
	var missing []string
	for _, file := range table.Files() {
		if _, ok := coords[file]; !ok {
			missing = append(missing, file)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return errors.Newf("%w: %s", ErrMissingCoordinates, strings.Join(missing, ", ")).
		Category(errors.CategoryValidation).
		Context("operation", "validate_coordinates").
		Context("missing_count", len(missing)).
		Build()
}

// GroupDetections builds one candidate event per (class, start time,
// reference receiver) where the reference plus its in-range co-detectors
// meet minReceivers. Events where several nearby receivers detect the
// same call are deliberately redundant: each detecting receiver takes a
// turn as the reference, so a dropped or noisy reference never loses
// the call outright.
//
// Within an event the reference file is first and co-detectors keep the
// detection table's row order. The clip window comes from the
// reference's own row.
func GroupDetections(table *detections.Table, coords map[string]geom.Point, nearby NearbyIndex, minReceivers int) ([]*Event, error) {
	if minReceivers < 2 {
		return nil, errors.Newf("grouping requires at least 2 receivers per event, got %d", minReceivers).
			Category(errors.CategoryValidation).
			Context("operation", "group_detections").
			Build()
	}
	if err := ValidateCoordinates(table, coords); err != nil {
		return nil, err
	}

	var events []*Event
	for _, class := range table.Classes() {
		for _, start := range table.StartTimes(class) {
			detecting := table.DetectingFiles(class, start)
			for _, ref := range detecting {
				neighbors := make(map[string]struct{}, len(nearby[ref]))
				for _, f := range nearby[ref] {
					neighbors[f] = struct{}{}
				}

				// Co-detectors in table row order. The nearby index
				// never lists ref itself, so ref is excluded here.
				var close []string
				for _, f := range detecting {
					if _, ok := neighbors[f]; ok {
						close = append(close, f)
					}
				}
				if len(close)+1 < minReceivers {
					continue
				}

				files := append([]string{ref}, close...)
				positions := make([]geom.Point, len(files))
				for i, f := range files {
					positions[i] = coords[f].Clone()
				}

				clipEnd, ok := table.ClipEnd(ref, start)
				if !ok {
					return nil, errors.Newf("no clip row for file %q at start %s", ref, formatSeconds(start)).
						Category(errors.CategoryValidation).
						Context("operation", "group_detections").
						Build()
				}

				events = append(events, NewEvent(class, files, positions, start, clipEnd-start))
			}
		}
	}
	return events, nil
}

func formatSeconds(s float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", s), "0"), ".") + "s"
}
