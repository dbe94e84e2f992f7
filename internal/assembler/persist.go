package assembler

import (
	"encoding/json"
	"fmt"

	"github.com/jwulff/pyroshow-go/internal/domain"
)

// PersistedCue is the saved shape of a cue. Its field set is fixed: anything not
// listed here is dropped on save, and loadout export and the daemon read this shape.
type PersistedCue struct {
	ID             int                   `json:"id"`
	StartTime      float64               `json:"startTime"`
	ItemID         *int                  `json:"itemId,omitempty"`
	Zone           string                `json:"zone"`
	Target         int                   `json:"target"`
	Type           domain.CueType        `json:"type"`
	Name           string                `json:"name"`
	Duration       float64               `json:"duration"`
	Delay          float64               `json:"delay"`
	RackID         *int                  `json:"rackId,omitempty"`
	RackCells      []string              `json:"rackCells,omitempty"`
	RackName       string                `json:"rackName,omitempty"`
	RackSpacing    *float64              `json:"rackSpacing,omitempty"`
	FireableItem   *domain.RackFuse      `json:"fireableItem,omitempty"`
	FireableItemID string                `json:"fireableItemId,omitempty"`
	Fuse           *domain.ItemSnapshot  `json:"fuse,omitempty"`
	Spacing        *float64              `json:"spacing,omitempty"`
	LeadInInches   *float64              `json:"leadInInches,omitempty"`
	Shells         []domain.ItemSnapshot `json:"shells,omitempty"`
}

// PersistedFields is the allow-list of saved cue fields, in declaration order.
var PersistedFields = []string{
	"id", "startTime", "itemId", "zone", "target", "type", "name", "duration", "delay",
	"rackId", "rackCells", "rackName", "rackSpacing", "fireableItem", "fireableItemId",
	"fuse", "spacing", "leadInInches", "shells",
}

// Project maps a cue onto its persisted shape.
func Project(c domain.Cue) PersistedCue {
	p := PersistedCue{
		ID:        c.ID,
		StartTime: c.StartTime,
		Zone:      c.Zone,
		Target:    c.Target,
		Type:      c.Type,
		Name:      c.Name,
		Duration:  c.Duration,
		Delay:     c.Delay,
	}
	switch {
	case c.FusedLine != nil:
		fl := c.FusedLine
		fuseSnap := fl.Fuse
		p.Fuse = &fuseSnap
		p.Spacing = ptr(fl.Spacing)
		p.LeadInInches = ptr(fl.LeadInInches)
		p.Shells = append([]domain.ItemSnapshot(nil), fl.Shells...)
	case c.Rack != nil:
		r := c.Rack
		fuseSnap := r.Fuse
		rf := r.RackFuse
		rf.Cells = append([]string(nil), rf.Cells...)
		p.RackID = ptr(r.RackID)
		p.RackCells = append([]string(nil), r.Cells...)
		p.RackName = r.RackName
		p.RackSpacing = ptr(r.RackSpacing)
		p.FireableItem = &rf
		p.FireableItemID = r.FuseKey
		p.Fuse = &fuseSnap
		p.LeadInInches = ptr(r.LeadInInches)
		p.Shells = append([]domain.ItemSnapshot(nil), r.Shells...)
	case c.Item != nil:
		p.ItemID = ptr(c.Item.ID)
	}
	return p
}

// Restore rebuilds a cue from its persisted shape.
func Restore(p PersistedCue) (domain.Cue, error) {
	c := domain.Cue{
		ID:        p.ID,
		Name:      p.Name,
		Type:      p.Type,
		Zone:      p.Zone,
		Target:    p.Target,
		StartTime: p.StartTime,
		Duration:  p.Duration,
		Delay:     p.Delay,
	}
	switch p.Type {
	case domain.CueFusedAerialLine:
		fl := &domain.FusedLine{
			Spacing:      deref(p.Spacing),
			LeadInInches: deref(p.LeadInInches),
			Shells:       p.Shells,
		}
		if p.Fuse != nil {
			fl.Fuse = *p.Fuse
		}
		c.FusedLine = fl
	case domain.CueRackShells:
		r := &domain.RackShells{
			RackID:       deref(p.RackID),
			RackName:     p.RackName,
			RackSpacing:  deref(p.RackSpacing),
			FuseKey:      p.FireableItemID,
			Cells:        p.RackCells,
			LeadInInches: deref(p.LeadInInches),
			Shells:       p.Shells,
		}
		if p.FireableItem != nil {
			r.RackFuse = *p.FireableItem
		}
		if p.Fuse != nil {
			r.Fuse = *p.Fuse
		}
		c.Rack = r
	default:
		if !p.Type.Valid() {
			return domain.Cue{}, fmt.Errorf("cue %d: unknown type %q", p.ID, p.Type)
		}
		c.Item = &domain.ItemSnapshot{
			ID:       deref(p.ItemID),
			Name:     p.Name,
			Type:     domain.ItemType(p.Type),
			Duration: p.Duration,
			Partial:  true,
		}
	}
	return c, nil
}

// Serialize encodes items as the show's display payload.
func Serialize(items []domain.Cue) ([]byte, error) {
	out := make([]PersistedCue, len(items))
	for i, c := range items {
		out[i] = Project(c)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal display payload: %w", err)
	}
	return data, nil
}

// Deserialize decodes a display payload. An empty payload is an empty show.
func Deserialize(payload []byte) ([]domain.Cue, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var persisted []PersistedCue
	if err := json.Unmarshal(payload, &persisted); err != nil {
		return nil, fmt.Errorf("failed to unmarshal display payload: %w", err)
	}
	items := make([]domain.Cue, 0, len(persisted))
	for _, p := range persisted {
		c, err := Restore(p)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, nil
}

func ptr[T any](v T) *T {
	return &v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
