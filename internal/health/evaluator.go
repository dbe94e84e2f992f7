package health

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jwulff/pyroshow-go/internal/domain"
	"github.com/jwulff/pyroshow-go/internal/topology"
)

// StaleAfter is how old a receiver's last message can be before it counts as
// disconnected.
const StaleAfter = 10 * time.Second

// ReceiverHealth is the per-receiver breakdown of a health evaluation.
type ReceiverHealth struct {
	ID            string `json:"id"`
	Present       bool   `json:"present"`              // listed in the snapshot
	Connected     bool   `json:"connected"`
	Loaded        bool   `json:"loaded"`
	StartReady    bool   `json:"start_ready"`
	LatencyMs     *int64 `json:"latency_ms,omitempty"`
	Cues          int    `json:"cues"`
	CuesOK        int    `json:"cues_ok"`
	ActiveOutputs int    `json:"active_outputs"`       // outputs with continuity, used by the show or not
}

// Health is the readiness verdict for one show at one instant.
type Health struct {
	ShowID             int                `json:"show_id"`
	ReceiversConnected Metric             `json:"receivers_connected"`
	CuesConnected      Metric             `json:"cues_connected"`
	ReceiversLoaded    Metric             `json:"receivers_loaded"`
	ReceiversReady     Metric             `json:"receivers_ready"`
	AllReceiversOnline bool               `json:"all_receivers_online"`
	RequireContinuity  bool               `json:"require_continuity"`
	Receivers          []ReceiverHealth   `json:"receivers"`
	Unresolved         []domain.Address   `json:"unresolved,omitempty"`
	Overlaps           []topology.Overlap `json:"overlaps,omitempty"`
	DaemonState        ShowState          `json:"daemon_state"`
	LoadedOnDaemon     bool               `json:"loaded_on_daemon"`
	EvaluatedAt        time.Time          `json:"evaluated_at"`
}

// NoReceivers reports whether the show references no receivers at all.
func (h Health) NoReceivers() bool {
	return h.ReceiversConnected.State == MetricNoReceivers
}

// Ready reports whether the show may be started: every address resolves to a
// receiver, every referenced receiver is connected, has the show loaded and is
// start-ready, and continuity is complete when the protocol requires it.
func (h Health) Ready() bool {
	if h.NoReceivers() || len(h.Unresolved) > 0 {
		return false
	}
	if !h.ReceiversConnected.Complete() || !h.ReceiversLoaded.Complete() || !h.ReceiversReady.Complete() {
		return false
	}
	return !h.RequireContinuity || h.CuesConnected.Complete()
}

// Problems lists the configuration issues behind the show's addresses: addresses
// no receiver declares and addresses more than one receiver declares.
func (h Health) Problems() []error {
	var errs []error
	for _, addr := range h.Unresolved {
		errs = append(errs, fmt.Errorf("%w: %s", domain.ErrTopologyInconsistency, addr))
	}
	for _, o := range h.Overlaps {
		errs = append(errs, fmt.Errorf("%w: %s claimed by %s (using %s)", ErrOverlappingReceivers,
			o.Address, strings.Join(o.Receivers, ", "), o.Receivers[len(o.Receivers)-1]))
	}
	return errs
}

// ErrOverlappingReceivers marks an address declared by more than one receiver.
var ErrOverlappingReceivers = errors.New("address declared by more than one receiver")

// Evaluator computes Health. The zero value uses StaleAfter and the wall clock.
type Evaluator struct {
	StaleAfter time.Duration
	Now        func() time.Time
}

func (e Evaluator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Evaluator) staleAfter() time.Duration {
	if e.StaleAfter > 0 {
		return e.StaleAfter
	}
	return StaleAfter
}

// Connected reports whether status counts as connected at now.
func (e Evaluator) Connected(status ReceiverStatus, now time.Time) bool {
	if status.Lmt != nil {
		age := now.UnixMilli() - *status.Lmt
		return age <= e.staleAfter().Milliseconds()
	}
	return status.ConnectionStatus != nil && *status.ConnectionStatus
}

// Evaluate computes the health of show against the resolver and the latest snapshot.
// A nil snapshot means nothing has been heard from the daemon: every referenced
// receiver counts as absent. Addresses with no receiver are reported in Unresolved
// and count as cues without continuity.
func (e Evaluator) Evaluate(show *domain.Show, resolver *topology.Resolver, snap *Snapshot, requireContinuity bool) Health {
	now := e.now()
	h := Health{
		ShowID:            show.ID,
		RequireContinuity: requireContinuity,
		EvaluatedAt:       now,
	}
	if snap != nil {
		h.DaemonState = snap.ProtoHandlerStatus
		h.LoadedOnDaemon = snap.HasShowLoaded(show.ID)
	}

	addresses := show.Addresses()
	byReceiver := map[string]*ReceiverHealth{}
	cuesOK := 0

	for _, addr := range addresses {
		placement, ok := resolver.Position(addr.Zone, addr.Target)
		if !ok {
			h.Unresolved = append(h.Unresolved, addr)
			continue
		}
		if o, overlapped := resolver.Overlap(addr); overlapped {
			h.Overlaps = append(h.Overlaps, o)
		}
		rh := byReceiver[placement.Receiver]
		if rh == nil {
			rh = e.receiverHealth(placement.Receiver, show.ID, snap, now)
			byReceiver[placement.Receiver] = rh
		}
		rh.Cues++
		if rx, present := lookupReceiver(snap, placement.Receiver); present && rx.Status.Continuity.Active(placement.Index) {
			rh.CuesOK++
			cuesOK++
		}
	}

	connected, loaded, ready := 0, 0, 0
	for _, rh := range byReceiver {
		h.Receivers = append(h.Receivers, *rh)
		if rh.Connected {
			connected++
		}
		if rh.Loaded {
			loaded++
		}
		if rh.StartReady {
			ready++
		}
	}
	sort.Slice(h.Receivers, func(i, j int) bool { return h.Receivers[i].ID < h.Receivers[j].ID })

	total := len(byReceiver)
	none := total == 0
	h.ReceiversConnected = newMetric(connected, total, none, false)
	h.CuesConnected = newMetric(cuesOK, len(addresses), none, requireContinuity)
	h.ReceiversLoaded = newMetric(loaded, total, none, false)
	h.ReceiversReady = newMetric(ready, total, none, false)
	h.AllReceiversOnline = !none && connected == total && len(h.Unresolved) == 0
	return h
}

func (e Evaluator) receiverHealth(id string, showID int, snap *Snapshot, now time.Time) *ReceiverHealth {
	rh := &ReceiverHealth{ID: id}
	rx, present := lookupReceiver(snap, id)
	if !present {
		return rh
	}
	rh.Present = true
	rh.Connected = e.Connected(rx.Status, now)
	rh.Loaded = rx.Status.LoadComplete && sameShow(rx.Status.ShowID, showID)
	rh.StartReady = rx.Status.StartReady
	rh.ActiveOutputs = rx.Status.Continuity.Count()
	if rx.Status.Lmt != nil {
		latency := now.UnixMilli() - *rx.Status.Lmt
		rh.LatencyMs = &latency
	}
	return rh
}

func lookupReceiver(snap *Snapshot, id string) (Receiver, bool) {
	if snap == nil {
		return Receiver{}, false
	}
	rx, ok := snap.Receivers[id]
	return rx, ok
}
