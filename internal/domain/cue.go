package domain

import (
	"fmt"
	"math"
)

// CueType is the device category a cue fires. The set is closed.
type CueType string

const (
	CueAerialShell     CueType = "AERIAL_SHELL"
	CueCakeFountain    CueType = "CAKE_FOUNTAIN"
	CueCake200g        CueType = "CAKE_200G"
	CueCake500g        CueType = "CAKE_500G"
	CueGeneric         CueType = "GENERIC"
	CueFuse            CueType = "FUSE"
	CueFusedAerialLine CueType = "FUSED_AERIAL_LINE"
	CueRackShells      CueType = "RACK_SHELLS"
)

// Valid reports whether t is one of the known cue types.
func (t CueType) Valid() bool {
	switch t {
	case CueAerialShell, CueCakeFountain, CueCake200g, CueCake500g, CueGeneric, CueFuse,
		CueFusedAerialLine, CueRackShells:
		return true
	}
	return false
}

// Composite reports whether cues of this type carry a derived duration.
func (t CueType) Composite() bool {
	return t == CueFusedAerialLine || t == CueRackShells
}

// Address is a (zone, target) firing slot.
type Address struct {
	Zone   string `json:"zone"`
	Target int    `json:"target"`
}

// Key returns the "zone:target" lookup key.
func (a Address) Key() string {
	return fmt.Sprintf("%s:%d", a.Zone, a.Target)
}

func (a Address) String() string {
	return a.Key()
}

// Cue is one schedulable firing event. Exactly one of Item, FusedLine or Rack is set,
// selected by Type: Item for single devices, FusedLine for FUSED_AERIAL_LINE and Rack
// for RACK_SHELLS. All variant data is a snapshot taken when the cue was created.
type Cue struct {
	ID        int
	Name      string
	Type      CueType
	Zone      string
	Target    int
	StartTime float64 // seconds from show start
	Duration  float64 // seconds; derived for composite types
	Delay     float64 // user delay + intrinsic item delay

	Item      *ItemSnapshot
	FusedLine *FusedLine
	Rack      *RackShells
}

// FusedLine is N shells chained on one length of fuse.
type FusedLine struct {
	Fuse         ItemSnapshot
	Spacing      float64 // inches between shells
	LeadInInches float64
	Shells       []ItemSnapshot // fire order
}

// RackShells is a composite cue firing one fuse run across rack cells.
type RackShells struct {
	RackID       int
	RackName     string
	RackSpacing  float64
	FuseKey      string
	RackFuse     RackFuse
	Fuse         ItemSnapshot
	Cells        []string
	LeadInInches float64
	Shells       []ItemSnapshot
}

// Address returns the cue's firing slot.
func (c *Cue) Address() Address {
	return Address{Zone: c.Zone, Target: c.Target}
}

// End returns StartTime + Duration.
func (c *Cue) End() float64 {
	return c.StartTime + c.Duration
}

// Clone returns a deep copy of the cue.
func (c Cue) Clone() Cue {
	if c.Item != nil {
		item := *c.Item
		c.Item = &item
	}
	if c.FusedLine != nil {
		fl := *c.FusedLine
		fl.Shells = append([]ItemSnapshot(nil), fl.Shells...)
		c.FusedLine = &fl
	}
	if c.Rack != nil {
		r := *c.Rack
		r.Cells = append([]string(nil), r.Cells...)
		r.Shells = append([]ItemSnapshot(nil), r.Shells...)
		r.RackFuse.Cells = append([]string(nil), r.RackFuse.Cells...)
		c.Rack = &r
	}
	return c
}

// Validate checks the cue shape: required address fields, non-negative timing,
// and a variant payload matching Type.
func (c *Cue) Validate() error {
	if c.Zone == "" {
		return invalid("zone", "required")
	}
	if c.Target <= 0 {
		return invalid("target", fmt.Sprintf("must be positive, got %d", c.Target))
	}
	if !c.Type.Valid() {
		return invalid("type", fmt.Sprintf("unknown cue type %q", c.Type))
	}
	if c.StartTime < 0 || math.IsNaN(c.StartTime) {
		return invalid("startTime", "must be >= 0")
	}
	if c.Duration < 0 || math.IsNaN(c.Duration) {
		return invalid("duration", "must be >= 0")
	}

	switch c.Type {
	case CueFusedAerialLine:
		if c.FusedLine == nil || c.Item != nil || c.Rack != nil {
			return invalid("type", "FUSED_AERIAL_LINE requires fused line data only")
		}
	case CueRackShells:
		if c.Rack == nil || c.Item != nil || c.FusedLine != nil {
			return invalid("type", "RACK_SHELLS requires rack data only")
		}
	default:
		if c.Item == nil || c.FusedLine != nil || c.Rack != nil {
			return invalid("type", fmt.Sprintf("%s requires an inventory item", c.Type))
		}
	}
	return nil
}

// NewItemCue places a single inventory device at (zone, target). The item's fields are
// copied into the cue; extraDelay is added to the item's lift and fuse delay.
func NewItemCue(item *Item, zone string, target int, start, extraDelay float64) (Cue, error) {
	if item == nil {
		return Cue{}, invalid("item", "required")
	}
	if !item.Type.Valid() {
		return Cue{}, invalid("item", fmt.Sprintf("unknown item type %q", item.Type))
	}
	snap := item.Snapshot()
	cue := Cue{
		Name:      item.Name,
		Type:      CueType(item.Type),
		Zone:      zone,
		Target:    target,
		StartTime: start,
		Duration:  nonNegative(item.Duration),
		Delay:     extraDelay + item.IntrinsicDelay(),
		Item:      &snap,
	}
	if err := cue.Validate(); err != nil {
		return Cue{}, err
	}
	return cue, nil
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
