package assembler

import (
	"math"
	"testing"

	"github.com/jwulff/pyroshow-go/internal/domain"
	"github.com/stretchr/testify/assert"
)

func timed(start, duration float64) domain.Cue {
	return domain.Cue{StartTime: start, Duration: duration}
}

func TestRecomputeDuration(t *testing.T) {
	tests := []struct {
		name     string
		items    []domain.Cue
		expected float64
	}{
		{"empty", nil, 0},
		{"single", []domain.Cue{timed(2, 3)}, 5},
		{"latest end wins", []domain.Cue{timed(0, 10), timed(8, 1), timed(3, 2)}, 10},
		{"missing duration", []domain.Cue{timed(4, 0), timed(1, math.NaN())}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RecomputeDuration(tt.items))
		})
	}
}

func TestClosestFire(t *testing.T) {
	s := ComputeStats([]domain.Cue{timed(0, 1), timed(0.5, 1), timed(5, 1)})
	assert.True(t, s.HasClosestFire)
	assert.Equal(t, "0.5 sec", s.ClosestFireLabel())

	s = ComputeStats([]domain.Cue{timed(0, 1)})
	assert.Equal(t, NotAvailable, s.ClosestFireLabel())
}

func TestMaxConcurrency(t *testing.T) {
	items := []domain.Cue{timed(0, 3), timed(1, 3), timed(2, 0.5)}
	assert.Equal(t, 3, MaxConcurrency(items))

	// back-to-back intervals do not overlap
	assert.Equal(t, 1, MaxConcurrency([]domain.Cue{timed(0, 2), timed(2, 2), timed(4, 2)}))
	assert.Equal(t, 0, MaxConcurrency(nil))
}

func TestComputeStats(t *testing.T) {
	items := []domain.Cue{
		{Zone: "A", Target: 1, StartTime: 0, Duration: 30},
		{Zone: "A", Target: 2, StartTime: 30, Duration: 30},
		{Zone: "B", Target: 1, StartTime: 60, Duration: 65},
	}
	s := ComputeStats(items)

	assert.Equal(t, 3, s.ItemCount)
	assert.Equal(t, 2, s.ZoneCount)
	assert.Equal(t, 2, s.TargetCount)
	assert.Equal(t, "02:05", s.DurationLabel())
	assert.Equal(t, "30 sec", s.ClosestFireLabel())
	assert.Equal(t, "1.00", s.DensityLabel())
}

func TestComputeStatsEmpty(t *testing.T) {
	s := ComputeStats(nil)
	assert.Equal(t, "00:00", s.DurationLabel())
	assert.Equal(t, NotAvailable, s.DensityLabel())
	assert.Equal(t, NotAvailable, s.ClosestFireLabel())
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00", FormatClock(0))
	assert.Equal(t, "01:01", FormatClock(61.9))
	assert.Equal(t, "61:40", FormatClock(3700))
}
