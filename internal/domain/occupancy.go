package domain

import (
	"fmt"
	"slices"
	"sort"
)

// FindOccupant returns the cue occupying (zone, target), ignoring the cue with id
// ignoreID (pass 0 to ignore nothing). The boolean is false when the slot is free.
func FindOccupant(items []Cue, zone string, target int, ignoreID int) (Cue, bool) {
	for _, c := range items {
		if ignoreID != 0 && c.ID == ignoreID {
			continue
		}
		if c.Zone == zone && c.Target == target {
			return c, true
		}
	}
	return Cue{}, false
}

// SlotFree reports whether no cue in items uses (zone, target).
func SlotFree(items []Cue, zone string, target int) bool {
	_, taken := FindOccupant(items, zone, target, 0)
	return !taken
}

// CheckSlot returns a ConflictError naming the occupant when (zone, target) is taken.
func CheckSlot(items []Cue, zone string, target int, ignoreID int) error {
	occupant, taken := FindOccupant(items, zone, target, ignoreID)
	if !taken {
		return nil
	}
	return &ConflictError{Zone: zone, Target: target, Occupant: occupant.Name, ID: occupant.ID}
}

// ChainStartTimes computes new start times for the cues with the given ids: the
// earliest (by original StartTime, ties by position in items) gets start, the next
// start+interval and so on. The result maps cue id to its new start time; items is
// not modified. Unknown ids are reported as InvalidInputError.
func ChainStartTimes(items []Cue, ids []int, start, interval float64) (map[int]float64, error) {
	if start < 0 {
		return nil, invalid("start", "must be >= 0")
	}
	if interval < 0 {
		return nil, invalid("interval", "must be >= 0")
	}

	type member struct {
		id    int
		start float64
		pos   int
	}
	var members []member
	seen := map[int]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		pos := slices.IndexFunc(items, func(c Cue) bool { return c.ID == id })
		if pos < 0 {
			return nil, invalid("ids", fmt.Sprintf("unknown cue id %d", id))
		}
		members = append(members, member{id: id, start: items[pos].StartTime, pos: pos})
	}

	sort.SliceStable(members, func(i, j int) bool {
		if members[i].start != members[j].start {
			return members[i].start < members[j].start
		}
		return members[i].pos < members[j].pos
	})

	result := make(map[int]float64, len(members))
	for i, m := range members {
		result[m.id] = start + float64(i)*interval
	}
	return result, nil
}
