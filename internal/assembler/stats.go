package assembler

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/jwulff/pyroshow-go/internal/domain"
)

// NotAvailable is the label for statistics that cannot be computed.
const NotAvailable = "N/A"

// RecomputeDuration returns the latest end time over items, or 0 for no items.
// Negative or NaN durations count as 0.
func RecomputeDuration(items []domain.Cue) float64 {
	var end float64
	for _, c := range items {
		end = max(end, c.StartTime+orZero(c.Duration))
	}
	return end
}

// Stats are read-only show statistics.
type Stats struct {
	ItemCount      int
	ZoneCount      int
	TargetCount    int
	Duration       float64
	ClosestFire    float64 // valid when HasClosestFire
	HasClosestFire bool
	MaxConcurrency int
	Density        float64 // valid when HasDensity
	HasDensity     bool
}

// ComputeStats derives statistics for items.
func ComputeStats(items []domain.Cue) Stats {
	s := Stats{
		ItemCount: len(items),
		Duration:  RecomputeDuration(items),
	}

	zones := map[string]bool{}
	targets := map[int]bool{}
	var totalDuration float64
	starts := make([]float64, 0, len(items))
	for _, c := range items {
		zones[c.Zone] = true
		targets[c.Target] = true
		totalDuration += orZero(c.Duration)
		starts = append(starts, c.StartTime)
	}
	s.ZoneCount = len(zones)
	s.TargetCount = len(targets)

	if len(starts) >= 2 {
		sort.Float64s(starts)
		gap := math.Inf(1)
		for i := 1; i < len(starts); i++ {
			gap = min(gap, starts[i]-starts[i-1])
		}
		s.ClosestFire = gap
		s.HasClosestFire = true
	}

	s.MaxConcurrency = MaxConcurrency(items)

	if s.Duration > 0 {
		s.Density = totalDuration / s.Duration
		s.HasDensity = true
	}
	return s
}

// MaxConcurrency returns the largest number of cues whose [start, start+duration)
// intervals overlap at one instant. Zero-length cues never overlap anything.
func MaxConcurrency(items []domain.Cue) int {
	type event struct {
		at    float64
		delta int
	}
	events := make([]event, 0, 2*len(items))
	for _, c := range items {
		d := orZero(c.Duration)
		if d == 0 {
			continue
		}
		events = append(events, event{c.StartTime, 1}, event{c.StartTime + d, -1})
	}
	// Intervals are half-open: an end at t closes before a start at t opens.
	sort.Slice(events, func(i, j int) bool {
		if events[i].at != events[j].at {
			return events[i].at < events[j].at
		}
		return events[i].delta < events[j].delta
	})

	open, peak := 0, 0
	for _, e := range events {
		open += e.delta
		peak = max(peak, open)
	}
	return peak
}

// DurationLabel formats the show duration as mm:ss.
func (s Stats) DurationLabel() string {
	return FormatClock(s.Duration)
}

// ClosestFireLabel formats the smallest gap between start times, e.g. "0.5 sec".
func (s Stats) ClosestFireLabel() string {
	if !s.HasClosestFire {
		return NotAvailable
	}
	return formatSeconds(s.ClosestFire) + " sec"
}

// DensityLabel formats the density ratio with two decimals.
func (s Stats) DensityLabel() string {
	if !s.HasDensity {
		return NotAvailable
	}
	return fmt.Sprintf("%.2f", s.Density)
}

// FormatClock formats seconds as mm:ss, truncating fractions.
func FormatClock(seconds float64) string {
	total := int(orZero(seconds))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// formatSeconds rounds to milliseconds and drops trailing zeros.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}

func orZero(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
