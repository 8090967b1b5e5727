package rating

import (
	"slices"

	"github.com/wonny/safra/backend/internal/contracts"
)

// Resolve maps value to a 0..100 score through a metric's band set.
// Empty set scores 0.
func Resolve(value float64, bands []contracts.ThresholdBand) float64 {
	band, ok := ResolveBand(value, bands)
	if !ok {
		return 0
	}
	return band.Score
}

// ResolveBand returns the band that scores value.
//
// Bands are evaluated by score, highest first, and the first containing band wins,
// so overlapping bands favor the rated subject. When nothing contains value the
// lowest-scoring band is the floor. ok is false only for an empty set.
func ResolveBand(value float64, bands []contracts.ThresholdBand) (contracts.ThresholdBand, bool) {
	if len(bands) == 0 {
		return contracts.ThresholdBand{}, false
	}

	sorted := slices.Clone(bands)
	slices.SortStableFunc(sorted, func(a, b contracts.ThresholdBand) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	for _, b := range sorted {
		if b.Contains(value) {
			return b, true
		}
	}
	return sorted[len(sorted)-1], true
}
