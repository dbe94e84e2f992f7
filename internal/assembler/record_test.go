package assembler

import (
	"encoding/json"
	"testing"

	"github.com/jwulff/pyroshow-go/internal/domain"
	"github.com/jwulff/pyroshow-go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareRecord(t *testing.T) {
	show := domain.NewShow("Finale", "cobra")
	show.ID = 3
	show.Version = 2
	show.RuntimeVersion = 1
	show.AudioFile = json.RawMessage(`{"name":"track.mp3"}`)
	show.Items = []domain.Cue{
		{ID: 1, Name: "Comet", Type: domain.CueAerialShell, Zone: "A", Target: 1, StartTime: 4, Duration: 3, Delay: 1,
			Item: &domain.ItemSnapshot{ID: 9, Name: "Comet", Type: domain.ItemAerialShell}},
	}

	rec, scheduleErr, err := PrepareRecord(show)
	require.NoError(t, err)
	require.NoError(t, scheduleErr)

	assert.Equal(t, 3, rec.ID)
	assert.Equal(t, 3, rec.Version)
	assert.Equal(t, 2, rec.RuntimeVersion)
	assert.Equal(t, 7.0, rec.Duration)
	assert.Equal(t, `{"name":"track.mp3"}`, rec.AudioFile)
	assert.Contains(t, rec.RuntimePayload, `"trigger_time":3`)

	// the show itself is untouched
	assert.Equal(t, 2, show.Version)
}

func TestPrepareRecordUnschedulable(t *testing.T) {
	show := domain.NewShow("Early", "cobra")
	show.Items = []domain.Cue{
		{ID: 1, Name: "Too soon", Type: domain.CueAerialShell, Zone: "A", Target: 1, StartTime: 0.5, Delay: 2,
			Item: &domain.ItemSnapshot{ID: 9, Name: "Too soon", Type: domain.ItemAerialShell}},
	}

	rec, scheduleErr, err := PrepareRecord(show)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, domain.IsInvalidInput(scheduleErr))
	assert.Empty(t, rec.RuntimePayload)
	assert.Equal(t, 0, rec.RuntimeVersion)
	assert.Equal(t, 1, rec.Version)
	assert.NotEqual(t, "[]", rec.DisplayPayload)
}

func TestFromRecordRoundTrip(t *testing.T) {
	show := domain.NewShow("Round", "cobra")
	show.ID = 5
	show.Items = []domain.Cue{
		{ID: 2, Name: "Cake", Type: domain.CueCake500g, Zone: "B", Target: 4, StartTime: 10, Duration: 20,
			Item: &domain.ItemSnapshot{ID: 1, Name: "Cake", Type: domain.ItemCake500g}},
	}
	rec, _, err := PrepareRecord(show)
	require.NoError(t, err)

	restored, err := FromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "Round", restored.Name)
	assert.Equal(t, 1, restored.Version)
	require.Len(t, restored.Items, 1)
	assert.Equal(t, domain.Address{Zone: "B", Target: 4}, restored.Items[0].Address())
	assert.Equal(t, 30.0, restored.Duration)
}

func TestFromRecordMalformedPayload(t *testing.T) {
	rec := &storage.ShowRecord{ID: 8, Name: "Broken", DisplayPayload: "[{", ReceiverLabels: "not json"}

	show, err := FromRecord(rec)
	require.Error(t, err)
	require.NotNil(t, show)
	assert.Equal(t, "Broken", show.Name)
	assert.Empty(t, show.Items)
	assert.Nil(t, show.ReceiverLabels)
}
