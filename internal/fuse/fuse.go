// Package fuse computes timing for shells chained on a fuse run.
//
// A fused line is lit at one end. Fuse burns through the lead-in, then past each
// shell at the configured spacing; the last shell's lift and fuse delay follow the
// fuse reaching it.
//
//	lead_in_time   = leadIn/12 * burn_rate
//	fuse_burn_time = spacing*count/12 * burn_rate
//	duration       = lead_in_time + fuse_burn_time + last.lift_delay + last.fuse_delay
package fuse

import (
	"math"

	"github.com/jwulff/pyroshow-go/internal/domain"
)

// InchesPerFoot converts fuse lengths to the burn rate unit.
const InchesPerFoot = 12.0

// Line is the fully populated input for a fused line calculation. BurnRate is seconds
// per foot; Spacing and LeadInInches are inches.
type Line struct {
	BurnRate     float64
	Spacing      float64
	LeadInInches float64
	Shells       []domain.ItemSnapshot
}

// LeadInTime returns the seconds spent burning the lead-in.
func LeadInTime(leadInInches, burnRate float64) float64 {
	return finite(leadInInches) / InchesPerFoot * finite(burnRate)
}

// FuseBurnTime returns the seconds spent burning the fuse between shells.
func FuseBurnTime(spacing float64, shellCount int, burnRate float64) float64 {
	totalInches := finite(spacing) * float64(shellCount)
	return totalInches / InchesPerFoot * finite(burnRate)
}

// Duration returns seconds from fuse lit to the last shell's effect. The line must
// contain at least one shell; validation happens before this is called.
func Duration(l Line) float64 {
	var lastDelays float64
	if n := len(l.Shells); n > 0 {
		last := l.Shells[n-1]
		lastDelays = finite(last.LiftDelay) + finite(last.FuseDelay)
	}
	return LeadInTime(l.LeadInInches, l.BurnRate) + FuseBurnTime(l.Spacing, len(l.Shells), l.BurnRate) + lastDelays
}

// FirstEffect returns seconds from fuse lit to the first shell's effect. This is the
// intrinsic delay of a fused line cue.
func FirstEffect(l Line) float64 {
	t := LeadInTime(l.LeadInInches, l.BurnRate)
	if len(l.Shells) > 0 {
		t += finite(l.Shells[0].LiftDelay) + finite(l.Shells[0].FuseDelay)
	}
	return t
}

// finite maps unset (NaN or infinite) inputs to zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
