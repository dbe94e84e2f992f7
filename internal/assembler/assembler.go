// Package assembler maintains show-level invariants while cues are added, moved,
// re-timed and removed.
//
// Every mutation is applied to a copy of the item list and committed only when it
// succeeds, so a conflict leaves the show exactly as it was. An Assembler is not safe
// for concurrent use; callers serialize mutations (see session.Session).
package assembler

import (
	"fmt"
	"slices"

	"github.com/jwulff/pyroshow-go/internal/domain"
	"github.com/jwulff/pyroshow-go/internal/fuse"
)

// IDSeedMargin is added to the largest existing cue id when seeding the id counter.
const IDSeedMargin = 1

// Assembler edits one show.
type Assembler struct {
	show   *domain.Show
	nextID int
}

// New wraps show. The id counter starts above every id already in the show.
func New(show *domain.Show) *Assembler {
	maxID := 0
	for _, c := range show.Items {
		maxID = max(maxID, c.ID)
	}
	show.Duration = RecomputeDuration(show.Items)
	return &Assembler{show: show, nextID: maxID + IDSeedMargin}
}

// Show returns the show being edited.
func (a *Assembler) Show() *domain.Show {
	return a.show
}

// Clone returns an independent assembler over a deep copy of the show. The id
// counter carries over, so ids freed by Remove are not handed out again.
func (a *Assembler) Clone() *Assembler {
	return &Assembler{show: a.show.Clone(), nextID: a.nextID}
}

// Add validates cue, checks its slot and appends it with the next id.
func (a *Assembler) Add(cue domain.Cue) (domain.Cue, error) {
	if err := cue.Validate(); err != nil {
		return domain.Cue{}, err
	}
	if err := domain.CheckSlot(a.show.Items, cue.Zone, cue.Target, 0); err != nil {
		return domain.Cue{}, err
	}

	cue = cue.Clone()
	cue.ID = a.nextID
	a.nextID++
	a.commit(append(a.cloneItems(), cue))
	return cue, nil
}

// Move changes the address and start time of a cue.
func (a *Assembler) Move(id int, zone string, target int, start float64) error {
	items := a.cloneItems()
	i := indexOf(items, id)
	if i < 0 {
		return unknownCue(id)
	}
	if err := domain.CheckSlot(items, zone, target, id); err != nil {
		return err
	}
	items[i].Zone = zone
	items[i].Target = target
	items[i].StartTime = start
	if err := items[i].Validate(); err != nil {
		return err
	}
	a.commit(items)
	return nil
}

// MigrateZone moves every cue in zone from to zone to, keeping targets. Any target in
// the destination already used by another cue aborts the whole migration.
func (a *Assembler) MigrateZone(from, to string) error {
	if to == "" {
		return &domain.InvalidInputError{Field: "zone", Reason: "required"}
	}
	if from == to {
		return nil
	}
	items := a.cloneItems()
	var moved []int
	for i := range items {
		if items[i].Zone == from {
			moved = append(moved, i)
		}
	}
	for _, i := range moved {
		items[i].Zone = to
	}
	for _, i := range moved {
		if err := domain.CheckSlot(items, to, items[i].Target, items[i].ID); err != nil {
			return err
		}
	}
	a.commit(items)
	return nil
}

// Remove deletes a cue.
func (a *Assembler) Remove(id int) error {
	items := a.cloneItems()
	i := indexOf(items, id)
	if i < 0 {
		return unknownCue(id)
	}
	a.commit(slices.Delete(items, i, i+1))
	return nil
}

// Chain re-times the cues ids so they fire interval seconds apart starting at start,
// keeping their original relative order.
func (a *Assembler) Chain(ids []int, start, interval float64) error {
	times, err := domain.ChainStartTimes(a.show.Items, ids, start, interval)
	if err != nil {
		return err
	}
	items := a.cloneItems()
	for i := range items {
		if t, ok := times[items[i].ID]; ok {
			items[i].StartTime = t
		}
	}
	a.commit(items)
	return nil
}

// RefreshFromInventory replaces the frozen inventory copies on cue id with current
// inventory data and re-derives duration and intrinsic delay. The user-entered part
// of the delay is kept.
func (a *Assembler) RefreshFromInventory(id int, lookup fuse.ItemLookup) error {
	items := a.cloneItems()
	i := indexOf(items, id)
	if i < 0 {
		return unknownCue(id)
	}
	old := items[i]

	var refreshed domain.Cue
	var err error
	switch old.Type {
	case domain.CueFusedAerialLine:
		fuseItem, shells := resolveLine(lookup, old.FusedLine.Fuse.ID, old.FusedLine.Shells)
		extra := old.Delay - fuse.FirstEffect(lineOf(old.FusedLine.Fuse, old.FusedLine.Spacing, old.FusedLine.LeadInInches, old.FusedLine.Shells))
		refreshed, err = fuse.NewFusedLineCue(fuseItem, shells, old.FusedLine.Spacing, old.FusedLine.LeadInInches,
			old.Zone, old.Target, old.StartTime, extra)
	case domain.CueRackShells:
		r := old.Rack
		fuseItem, shells := resolveLine(lookup, r.Fuse.ID, r.Shells)
		extra := old.Delay - fuse.FirstEffect(lineOf(r.Fuse, r.RackSpacing, r.LeadInInches, r.Shells))
		var line domain.Cue
		line, err = fuse.NewFusedLineCue(fuseItem, shells, r.RackSpacing, r.LeadInInches, old.Zone, old.Target, old.StartTime, extra)
		if err == nil {
			rack := *r
			rack.Fuse = line.FusedLine.Fuse
			rack.Shells = line.FusedLine.Shells
			refreshed = line
			refreshed.Type = domain.CueRackShells
			refreshed.Name = old.Name
			refreshed.FusedLine = nil
			refreshed.Rack = &rack
		}
	default:
		item, ok := lookup(old.Item.ID)
		if !ok {
			return &domain.InvalidInputError{Field: "itemId", Reason: fmt.Sprintf("inventory item %d no longer exists", old.Item.ID)}
		}
		intrinsic := old.Item.LiftDelay + old.Item.FuseDelay
		if old.Item.Partial {
			intrinsic = item.IntrinsicDelay()
		}
		extra := max(old.Delay-intrinsic, 0)
		refreshed, err = domain.NewItemCue(item, old.Zone, old.Target, old.StartTime, extra)
	}
	if err != nil {
		return err
	}

	refreshed.ID = old.ID
	items[i] = refreshed
	a.commit(items)
	return nil
}

func (a *Assembler) cloneItems() []domain.Cue {
	return a.show.Clone().Items
}

func (a *Assembler) commit(items []domain.Cue) {
	slices.SortStableFunc(items, func(x, y domain.Cue) int { return x.ID - y.ID })
	a.show.Items = items
	a.show.Duration = RecomputeDuration(items)
}

func indexOf(items []domain.Cue, id int) int {
	return slices.IndexFunc(items, func(c domain.Cue) bool { return c.ID == id })
}

func unknownCue(id int) error {
	return &domain.InvalidInputError{Field: "id", Reason: fmt.Sprintf("no cue with id %d", id)}
}

func lineOf(fuseSnap domain.ItemSnapshot, spacing, leadIn float64, shells []domain.ItemSnapshot) fuse.Line {
	return fuse.Line{BurnRate: fuseSnap.BurnRate, Spacing: spacing, LeadInInches: leadIn, Shells: shells}
}

// resolveLine looks up the current inventory rows for a line. Missing rows come back
// nil so the fuse package reports them as unassigned.
func resolveLine(lookup fuse.ItemLookup, fuseID int, snaps []domain.ItemSnapshot) (*domain.Item, []*domain.Item) {
	fuseItem, _ := lookup(fuseID)
	shells := make([]*domain.Item, len(snaps))
	for i, s := range snaps {
		if item, ok := lookup(s.ID); ok {
			shells[i] = item
		}
	}
	return fuseItem, shells
}
