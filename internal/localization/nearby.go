package localization

import (
	"sort"

	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/geom"
)

// NearbyIndex maps each receiver file to the other receivers within
// grouping range. A receiver is never listed as its own neighbor.
type NearbyIndex map[string][]string

// BuildNearbyIndex computes, for every receiver in coords, which other
// receivers lie within maxDistance (inclusive). Neighbor lists are
// sorted by file name so the index is deterministic regardless of map
// iteration order.
func BuildNearbyIndex(coords map[string]geom.Point, maxDistance float64) (NearbyIndex, error) {
	if maxDistance <= 0 {
		return nil, errors.Newf("max receiver distance must be positive, got %g", maxDistance).
			Category(errors.CategoryValidation).
			Context("operation", "build_nearby_index").
			Build()
	}

	files := make([]string, 0, len(coords))
	for file := range coords {
		files = append(files, file)
	}
	sort.Strings(files)

	index := make(NearbyIndex, len(files))
	for _, file := range files {
		index[file] = nil
	}

	for i, a := range files {
		for _, b := range files[i+1:] {
			d, err := geom.Distance(coords[a], coords[b])
			if err != nil {
				return nil, errors.Newf("receiver coordinates for %q and %q have mismatched dimensions: %w", a, b, err).
					Category(errors.CategoryValidation).
					Context("operation", "build_nearby_index").
					Build()
			}
			if d <= maxDistance {
				index[a] = append(index[a], b)
				index[b] = append(index[b], a)
			}
		}
	}

	for file := range index {
		sort.Strings(index[file])
	}
	return index, nil
}
