package assembler

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/jwulff/pyroshow-go/internal/domain"
)

// FiringEvent is one entry of the absolute firing schedule: the output at
// (Zone, Target) must be triggered TriggerTime seconds after show start so that its
// effect becomes visible at EffectTime.
type FiringEvent struct {
	CueID       int     `json:"cue_id"`
	Zone        string  `json:"zone"`
	Target      int     `json:"target"`
	TriggerTime float64 `json:"trigger_time"`
	EffectTime  float64 `json:"effect_time"`
	EndTime     float64 `json:"end_time"`
}

// BuildSchedule converts cues into firing events ordered by trigger time, ties by cue
// id. A cue whose delay is longer than its start time cannot be fired in time and is
// rejected.
func BuildSchedule(items []domain.Cue) ([]FiringEvent, error) {
	events := make([]FiringEvent, 0, len(items))
	for _, c := range items {
		trigger := c.StartTime - orZero(c.Delay)
		if trigger < 0 {
			return nil, &domain.InvalidInputError{
				Field:  "startTime",
				Reason: fmt.Sprintf("%q at %s needs %.3fs of delay but starts at %.3fs", c.Name, c.Address(), c.Delay, c.StartTime),
			}
		}
		events = append(events, FiringEvent{
			CueID:       c.ID,
			Zone:        c.Zone,
			Target:      c.Target,
			TriggerTime: trigger,
			EffectTime:  c.StartTime,
			EndTime:     c.StartTime + orZero(c.Duration),
		})
	}
	slices.SortStableFunc(events, func(a, b FiringEvent) int {
		switch {
		case a.TriggerTime < b.TriggerTime:
			return -1
		case a.TriggerTime > b.TriggerTime:
			return 1
		}
		return a.CueID - b.CueID
	})
	return events, nil
}

// RuntimePayload is the schedule handed to the firing daemon when a show is loaded.
type RuntimePayload struct {
	Protocol       string        `json:"protocol"`
	DisplayVersion int           `json:"display_version"` // show version the schedule was built from
	Duration       float64       `json:"duration"`
	Events         []FiringEvent `json:"events"`
}

// EncodeRuntime builds and encodes the runtime payload for show at its current
// version.
func EncodeRuntime(show *domain.Show) ([]byte, error) {
	events, err := BuildSchedule(show.Items)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(RuntimePayload{
		Protocol:       show.Protocol,
		DisplayVersion: show.Version,
		Duration:       RecomputeDuration(show.Items),
		Events:         events,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal runtime payload: %w", err)
	}
	return data, nil
}

// CheckRuntime reports whether show has a saved firing schedule built from its
// current version. A show saved while unschedulable keeps the schedule of an earlier
// version, which must not be loaded in its place.
func CheckRuntime(show *domain.Show) error {
	if len(show.RuntimePayload) == 0 {
		return &domain.InvalidInputError{Field: "runtime", Reason: "show has no saved firing schedule"}
	}
	var payload RuntimePayload
	if err := json.Unmarshal(show.RuntimePayload, &payload); err != nil {
		return &domain.InvalidInputError{Field: "runtime", Reason: fmt.Sprintf("saved firing schedule is unreadable: %v", err)}
	}
	if payload.DisplayVersion != show.Version {
		return &domain.InvalidInputError{Field: "runtime", Reason: fmt.Sprintf(
			"saved firing schedule is from version %d but the show is at version %d", payload.DisplayVersion, show.Version)}
	}
	return nil
}
