package fuse

import (
	"fmt"

	"github.com/jwulff/pyroshow-go/internal/domain"
)

// NewFusedLineCue builds a FUSED_AERIAL_LINE cue. shells is the ordered slot list; a nil
// entry is an unassigned slot and rejects the line. Duration and delay are computed
// once here and stored on the cue.
func NewFusedLineCue(fuseItem *domain.Item, shells []*domain.Item, spacing, leadInInches float64,
	zone string, target int, start, extraDelay float64) (domain.Cue, error) {

	fuseSnap, shellSnaps, err := validateLine(fuseItem, shells)
	if err != nil {
		return domain.Cue{}, err
	}
	if spacing < 0 {
		return domain.Cue{}, &domain.InvalidInputError{Field: "spacing", Reason: "must be >= 0"}
	}
	if leadInInches < 0 {
		return domain.Cue{}, &domain.InvalidInputError{Field: "leadInInches", Reason: "must be >= 0"}
	}

	line := Line{BurnRate: fuseItem.BurnRate, Spacing: spacing, LeadInInches: leadInInches, Shells: shellSnaps}
	cue := domain.Cue{
		Name:      fmt.Sprintf("%s (%d shells)", fuseItem.Name, len(shellSnaps)),
		Type:      domain.CueFusedAerialLine,
		Zone:      zone,
		Target:    target,
		StartTime: start,
		Duration:  Duration(line),
		Delay:     extraDelay + FirstEffect(line),
		FusedLine: &domain.FusedLine{
			Fuse:         fuseSnap,
			Spacing:      spacing,
			LeadInInches: leadInInches,
			Shells:       shellSnaps,
		},
	}
	if err := cue.Validate(); err != nil {
		return domain.Cue{}, err
	}
	return cue, nil
}

// ItemLookup resolves inventory ids.
type ItemLookup func(id int) (*domain.Item, bool)

// NewRackLineCue builds a RACK_SHELLS cue from the rack fuse fuseKey. Shells fire in the
// fuse's cell order, spaced at the rack's x spacing.
func NewRackLineCue(rack *domain.Rack, fuseKey string, lookup ItemLookup,
	zone string, target int, start, extraDelay float64) (domain.Cue, error) {

	if rack == nil {
		return domain.Cue{}, &domain.InvalidInputError{Field: "rack", Reason: "required"}
	}
	rf, ok := rack.Fuses[fuseKey]
	if !ok {
		return domain.Cue{}, &domain.InvalidInputError{Field: "fuse", Reason: fmt.Sprintf("rack %s has no fuse %s", rack.Name, fuseKey)}
	}
	fuseItem, _ := lookup(rf.Type)

	shells := make([]*domain.Item, len(rf.Cells))
	for i, key := range rf.Cells {
		cell, ok := rack.Cells[key]
		if !ok {
			continue
		}
		if item, ok := lookup(cell.ShellID); ok {
			shells[i] = item
		}
	}

	fuseSnap, shellSnaps, err := validateLine(fuseItem, shells)
	if err != nil {
		return domain.Cue{}, err
	}

	line := Line{BurnRate: fuseItem.BurnRate, Spacing: rack.XSpacing, LeadInInches: rf.LeadIn, Shells: shellSnaps}
	cue := domain.Cue{
		Name:      fmt.Sprintf("%s: %s", rack.Name, fuseItem.Name),
		Type:      domain.CueRackShells,
		Zone:      zone,
		Target:    target,
		StartTime: start,
		Duration:  Duration(line),
		Delay:     extraDelay + FirstEffect(line),
		Rack: &domain.RackShells{
			RackID:       rack.ID,
			RackName:     rack.Name,
			RackSpacing:  rack.XSpacing,
			FuseKey:      fuseKey,
			RackFuse:     domain.RackFuse{Type: rf.Type, LeadIn: rf.LeadIn, Cells: append([]string(nil), rf.Cells...)},
			Fuse:         fuseSnap,
			Cells:        append([]string(nil), rf.Cells...),
			LeadInInches: rf.LeadIn,
			Shells:       shellSnaps,
		},
	}
	if err := cue.Validate(); err != nil {
		return domain.Cue{}, err
	}
	return cue, nil
}

func validateLine(fuseItem *domain.Item, shells []*domain.Item) (domain.ItemSnapshot, []domain.ItemSnapshot, error) {
	if fuseItem == nil {
		return domain.ItemSnapshot{}, nil, &domain.InvalidInputError{Field: "fuse", Reason: "fuse type not selected"}
	}
	if fuseItem.Type != domain.ItemFuse {
		return domain.ItemSnapshot{}, nil, &domain.InvalidInputError{Field: "fuse", Reason: fmt.Sprintf("%q is not a fuse", fuseItem.Name)}
	}
	if len(shells) == 0 {
		return domain.ItemSnapshot{}, nil, &domain.InvalidInputError{Field: "shells", Reason: "at least one shell is required"}
	}
	snaps := make([]domain.ItemSnapshot, len(shells))
	for i, s := range shells {
		if s == nil {
			return domain.ItemSnapshot{}, nil, &domain.InvalidInputError{Field: "shells", Reason: fmt.Sprintf("slot %d has no shell", i+1)}
		}
		snaps[i] = s.Snapshot()
	}
	return fuseItem.Snapshot(), snaps, nil
}
