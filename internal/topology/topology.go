// Package topology maps show cue addresses onto physical receivers.
//
// Receivers declare, per zone, an ordered list of targets. A target's position in that
// list (not its numeric label) selects the output bit in the receiver's continuity
// report.
package topology

import (
	"sort"

	"github.com/jwulff/pyroshow-go/internal/domain"
)

// ReceiverCues is the zone -> ordered targets declaration of one receiver.
type ReceiverCues map[string][]int

// Placement locates an address on a receiver.
type Placement struct {
	Receiver string
	Index    int // position within the receiver's target list for the zone
}

// Overlap records an address declared by more than one receiver.
type Overlap struct {
	Address   domain.Address `json:"address"`
	Receivers []string       `json:"receivers"` // every claimant, sorted; the last one owns the address
}

// Resolver answers which receiver owns an address and which addresses a receiver
// exposes. A Resolver is immutable once built.
type Resolver struct {
	byAddress  map[domain.Address]Placement
	byReceiver map[string][]domain.Address
	overlaps   []Overlap
}

// Build indexes receivers. Receivers are visited in id order, so when two receivers
// claim the same address the later id wins; every such case is reported by Overlaps.
func Build(receivers map[string]ReceiverCues) *Resolver {
	r := &Resolver{
		byAddress:  map[domain.Address]Placement{},
		byReceiver: map[string][]domain.Address{},
	}

	ids := make([]string, 0, len(receivers))
	for id := range receivers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	claims := map[domain.Address][]string{}
	for _, id := range ids {
		cues := receivers[id]
		zones := make([]string, 0, len(cues))
		for zone := range cues {
			zones = append(zones, zone)
		}
		sort.Strings(zones)

		r.byReceiver[id] = nil
		for _, zone := range zones {
			for index, target := range cues[zone] {
				addr := domain.Address{Zone: zone, Target: target}
				r.byAddress[addr] = Placement{Receiver: id, Index: index}
				r.byReceiver[id] = append(r.byReceiver[id], addr)
				if prev := claims[addr]; len(prev) == 0 || prev[len(prev)-1] != id {
					claims[addr] = append(prev, id)
				}
			}
		}
	}

	for addr, owners := range claims {
		if len(owners) > 1 {
			r.overlaps = append(r.overlaps, Overlap{Address: addr, Receivers: owners})
		}
	}
	sort.Slice(r.overlaps, func(i, j int) bool {
		return r.overlaps[i].Address.Key() < r.overlaps[j].Address.Key()
	})
	return r
}

// Lookup returns the receiver owning (zone, target).
func (r *Resolver) Lookup(zone string, target int) (string, bool) {
	p, ok := r.byAddress[domain.Address{Zone: zone, Target: target}]
	return p.Receiver, ok
}

// Position returns the owning receiver and positional index of (zone, target).
func (r *Resolver) Position(zone string, target int) (Placement, bool) {
	p, ok := r.byAddress[domain.Address{Zone: zone, Target: target}]
	return p, ok
}

// Addresses returns the addresses receiver declares, zones in name order and targets
// in declared order. Addresses lost to an overlap are still listed.
func (r *Resolver) Addresses(receiver string) []domain.Address {
	return append([]domain.Address(nil), r.byReceiver[receiver]...)
}

// Receivers returns every receiver id, sorted.
func (r *Resolver) Receivers() []string {
	ids := make([]string, 0, len(r.byReceiver))
	for id := range r.byReceiver {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Overlaps returns addresses claimed by more than one receiver, sorted by key.
func (r *Resolver) Overlaps() []Overlap {
	return append([]Overlap(nil), r.overlaps...)
}

// Overlap returns the overlap entry for addr, if more than one receiver claims it.
func (r *Resolver) Overlap(addr domain.Address) (Overlap, bool) {
	for _, o := range r.overlaps {
		if o.Address == addr {
			return o, true
		}
	}
	return Overlap{}, false
}

// Keys returns the "zone:target" -> receiver table.
func (r *Resolver) Keys() map[string]string {
	out := make(map[string]string, len(r.byAddress))
	for addr, p := range r.byAddress {
		out[addr.Key()] = p.Receiver
	}
	return out
}
