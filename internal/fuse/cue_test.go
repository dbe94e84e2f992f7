package fuse

import (
	"testing"

	"github.com/jwulff/pyroshow-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFuse() *domain.Item {
	return &domain.Item{ID: 40, Name: "Green Visco", Type: domain.ItemFuse, BurnRate: 2, Color: "green"}
}

func testShells(n int) []*domain.Item {
	out := make([]*domain.Item, n)
	for i := range out {
		out[i] = &domain.Item{ID: 100 + i, Name: "Shell", Type: domain.ItemAerialShell, LiftDelay: 0.5, FuseDelay: 0.2}
	}
	return out
}

func TestNewFusedLineCue(t *testing.T) {
	cue, err := NewFusedLineCue(testFuse(), testShells(3), 2.75, 12, "A", 4, 10, 0.5)
	require.NoError(t, err)

	assert.Equal(t, domain.CueFusedAerialLine, cue.Type)
	assert.InDelta(t, 4.075, cue.Duration, 1e-9)
	assert.InDelta(t, 0.5+2.0+0.7, cue.Delay, 1e-9)
	require.NotNil(t, cue.FusedLine)
	assert.Len(t, cue.FusedLine.Shells, 3)
	assert.Equal(t, 40, cue.FusedLine.Fuse.ID)
	assert.Equal(t, 2.75, cue.FusedLine.Spacing)
}

func TestNewFusedLineCueDurationIsSnapshot(t *testing.T) {
	fuseItem := testFuse()
	cue, err := NewFusedLineCue(fuseItem, testShells(3), 2.75, 12, "A", 4, 0, 0)
	require.NoError(t, err)

	fuseItem.BurnRate = 10
	assert.InDelta(t, 4.075, cue.Duration, 1e-9)
}

func TestNewFusedLineCueInvalid(t *testing.T) {
	withGap := testShells(3)
	withGap[1] = nil

	tests := []struct {
		name   string
		fuse   *domain.Item
		shells []*domain.Item
		field  string
	}{
		{"no fuse", nil, testShells(2), "fuse"},
		{"not a fuse", &domain.Item{Name: "Cake", Type: domain.ItemCake200g}, testShells(2), "fuse"},
		{"no shells", testFuse(), nil, "shells"},
		{"empty slot", testFuse(), withGap, "shells"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFusedLineCue(tt.fuse, tt.shells, 2, 6, "A", 1, 0, 0)
			var invalid *domain.InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.field, invalid.Field)
		})
	}
}

func TestNewRackLineCue(t *testing.T) {
	inventory := map[int]*domain.Item{40: testFuse(), 7: testShells(1)[0]}
	lookup := func(id int) (*domain.Item, bool) {
		item, ok := inventory[id]
		return item, ok
	}

	rack := domain.NewRack(1, "Rack A", 4, 2.75, 1, 3)
	rack.ID = 9
	for x := 0; x < 3; x++ {
		require.NoError(t, rack.SetCell(x, 0, 7, x+1))
	}
	key, err := rack.AddFuse(40, 12, []string{"0_0", "1_0", "2_0"})
	require.NoError(t, err)

	cue, err := NewRackLineCue(rack, key, lookup, "B", 2, 5, 0)
	require.NoError(t, err)

	assert.Equal(t, domain.CueRackShells, cue.Type)
	assert.InDelta(t, 4.075, cue.Duration, 1e-9)
	require.NotNil(t, cue.Rack)
	assert.Equal(t, 9, cue.Rack.RackID)
	assert.Equal(t, key, cue.Rack.FuseKey)
	assert.Equal(t, []string{"0_0", "1_0", "2_0"}, cue.Rack.Cells)
	assert.Equal(t, "Rack A: Green Visco", cue.Name)
}

func TestNewRackLineCueMissingFuse(t *testing.T) {
	lookup := func(id int) (*domain.Item, bool) { return nil, false }
	rack := domain.NewRack(1, "Rack A", 2, 2, 1, 1)

	_, err := NewRackLineCue(rack, "nope", lookup, "A", 1, 0, 0)
	assert.True(t, domain.IsInvalidInput(err))

	require.NoError(t, rack.SetCell(0, 0, 7, 1))
	key, err := rack.AddFuse(40, 6, []string{"0_0"})
	require.NoError(t, err)

	_, err = NewRackLineCue(rack, key, lookup, "A", 1, 0, 0)
	assert.True(t, domain.IsInvalidInput(err))
}
