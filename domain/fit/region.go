package fit

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvertedRegion indicates a region whose start exceeds its end.
var ErrInvertedRegion = errors.New("region start exceeds end")

// Region is a closed wavelength interval over which the fit is evaluated.
type Region struct {
	start float64
	end   float64
}

// NewRegion creates a Region.
func NewRegion(start, end float64) (Region, error) {
	if start > end {
		return Region{}, fmt.Errorf("%w: [%g, %g]", ErrInvertedRegion, start, end)
	}
	return Region{start: start, end: end}, nil
}

// Start returns the lower bound.
func (r Region) Start() float64 { return r.start }

// End returns the upper bound.
func (r Region) End() float64 { return r.end }

// Contains reports whether start <= w <= end.
func (r Region) Contains(w float64) bool {
	return r.start <= w && w <= r.end
}

// Regions is a consolidated set of regions: sorted by start with no two
// intervals overlapping or touching.
type Regions []Region

// ConsolidateRegions sorts the regions and merges overlapping or touching
// intervals. The input is not modified.
func ConsolidateRegions(regions []Region) Regions {
	if len(regions) == 0 {
		return nil
	}
	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].start == sorted[j].start {
			return sorted[i].end < sorted[j].end
		}
		return sorted[i].start < sorted[j].start
	})

	merged := Regions{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.start <= last.end {
			if r.end > last.end {
				last.end = r.end
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Contains reports whether w falls in any region.
func (rs Regions) Contains(w float64) bool {
	// rs is sorted, so binary search for the last region starting at or before w.
	i := sort.Search(len(rs), func(i int) bool { return rs[i].start > w })
	return i > 0 && rs[i-1].Contains(w)
}

// Count returns how many wavelengths lie inside the regions.
func (rs Regions) Count(wavelength []float64) int {
	n := 0
	for _, w := range wavelength {
		if rs.Contains(w) {
			n++
		}
	}
	return n
}
