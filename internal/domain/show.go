package domain

import "encoding/json"

// Show is the top-level authored document. Items are kept in id order; StartTime
// governs temporal order.
type Show struct {
	ID                int
	Name              string
	Items             []Cue
	Duration          float64
	Version           int
	RuntimeVersion    int
	RuntimePayload    json.RawMessage // last saved firing schedule, as persisted
	AuthorizationCode string
	Protocol          string
	AudioFile         json.RawMessage
	ReceiverLocations json.RawMessage
	ReceiverLabels    json.RawMessage
}

// NewShow creates an empty show bound to a protocol.
func NewShow(name, protocol string) *Show {
	return &Show{
		Name:     name,
		Protocol: protocol,
	}
}

// Clone returns a deep copy of the show's item list with the remaining fields copied.
func (s *Show) Clone() *Show {
	c := *s
	c.Items = make([]Cue, len(s.Items))
	for i, item := range s.Items {
		c.Items[i] = item.Clone()
	}
	return &c
}

// Cue returns the item with the given id.
func (s *Show) Cue(id int) (Cue, bool) {
	for _, c := range s.Items {
		if c.ID == id {
			return c, true
		}
	}
	return Cue{}, false
}

// Addresses returns the distinct (zone, target) pairs used by the show, in item order.
func (s *Show) Addresses() []Address {
	seen := map[Address]bool{}
	var out []Address
	for _, c := range s.Items {
		a := c.Address()
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
