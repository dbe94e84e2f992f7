// Package health evaluates whether the receivers a show depends on are connected,
// have continuity, have the show loaded and are ready to start.
//
// Receiver state arrives as snapshots pushed by the firing daemon. The package only
// reads snapshots; it never drives the daemon's show lifecycle.
package health

import (
	"encoding/json"
	"fmt"

	"github.com/jwulff/pyroshow-go/internal/topology"
)

// ShowState is the daemon's show lifecycle status. It is opaque: unknown values are
// kept and displayed as-is.
type ShowState string

const (
	StateStandby        ShowState = "STANDBY"
	StateLoading        ShowState = "LOADING"
	StateLoaded         ShowState = "LOADED"
	StateStartPending   ShowState = "START_PENDING"
	StateStartConfirmed ShowState = "START_CONFIRMED"
	StateStarted        ShowState = "STARTED"
	StateAborted        ShowState = "ABORTED"
)

var stateLabels = map[ShowState]string{
	StateStandby:        "Standby",
	StateLoading:        "Loading",
	StateLoaded:         "Loaded",
	StateStartPending:   "Start pending",
	StateStartConfirmed: "Start confirmed",
	StateStarted:        "Running",
	StateAborted:        "Aborted",
}

// Label returns a display label for the state.
func (s ShowState) Label() string {
	if label, ok := stateLabels[s]; ok {
		return label
	}
	if s == "" {
		return "Unknown"
	}
	return string(s)
}

// Known reports whether s is one of the documented lifecycle states.
func (s ShowState) Known() bool {
	_, ok := stateLabels[s]
	return ok
}

// ReceiverStatus is the live status block of one receiver. Lmt is the last message
// time in Unix milliseconds; when absent, ConnectionStatus is used instead.
type ReceiverStatus struct {
	Lmt              *int64              `json:"lmt,omitempty" msgpack:"lmt,omitempty"`
	ConnectionStatus *bool               `json:"connectionStatus,omitempty" msgpack:"connectionStatus,omitempty"`
	Battery          float64             `json:"battery" msgpack:"battery"`
	Continuity       topology.Continuity `json:"continuity" msgpack:"continuity"`
	SuccessPercent   float64             `json:"successPercent" msgpack:"successPercent"`
	LoadComplete     bool                `json:"loadComplete" msgpack:"loadComplete"`
	StartReady       bool                `json:"startReady" msgpack:"startReady"`
	ShowID           json.Number         `json:"showId,omitempty" msgpack:"showId,omitempty"`
	Drift            float64             `json:"drift" msgpack:"drift"`
}

// Receiver is one receiver entry of a snapshot.
type Receiver struct {
	Type   string                `json:"type" msgpack:"type"`
	Cues   topology.ReceiverCues `json:"cues" msgpack:"cues"`
	Status ReceiverStatus        `json:"status" msgpack:"status"`
}

// Snapshot is the full daemon state pushed over the live channel.
type Snapshot struct {
	LoadedShowID       json.Number         `json:"loaded_show_id,omitempty" msgpack:"loaded_show_id,omitempty"`
	LoadedShowName     string              `json:"loaded_show_name" msgpack:"loaded_show_name"`
	ShowRunning        bool                `json:"show_running" msgpack:"show_running"`
	DeviceIsArmed      bool                `json:"device_is_armed" msgpack:"device_is_armed"`
	ActiveProtocol     string              `json:"active_protocol" msgpack:"active_protocol"`
	ProtoHandlerStatus ShowState           `json:"proto_handler_status" msgpack:"proto_handler_status"`
	FireCheckFailures  []string            `json:"fire_check_failures" msgpack:"fire_check_failures"`
	ProtoHandlerErrors []string            `json:"proto_handler_errors" msgpack:"proto_handler_errors"`
	Receivers          map[string]Receiver `json:"receivers" msgpack:"receivers"`
}

// DecodeSnapshot parses a snapshot payload. Callers keep their previous snapshot when
// this fails.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}

// LoadedShow returns the id of the show the daemon has loaded.
func (s *Snapshot) LoadedShow() (int, bool) {
	if s.LoadedShowID == "" {
		return 0, false
	}
	v, err := s.LoadedShowID.Int64()
	if err != nil {
		return 0, false
	}
	return int(v), true
}

// HasShowLoaded reports whether the daemon has showID loaded.
func (s *Snapshot) HasShowLoaded(showID int) bool {
	return sameShow(s.LoadedShowID, showID)
}

func sameShow(n json.Number, showID int) bool {
	if n == "" {
		return false
	}
	v, err := n.Int64()
	return err == nil && v == int64(showID)
}
