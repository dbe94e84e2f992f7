// Package domain contains core domain types for show planning: inventory items,
// cues, shows and racks.
package domain

import (
	"encoding/json"
)

// ItemType is the inventory category of a pyrotechnic device.
type ItemType string

const (
	ItemCakeFountain ItemType = "CAKE_FOUNTAIN"
	ItemCake200g     ItemType = "CAKE_200G"
	ItemCake500g     ItemType = "CAKE_500G"
	ItemAerialShell  ItemType = "AERIAL_SHELL"
	ItemGeneric      ItemType = "GENERIC"
	ItemFuse         ItemType = "FUSE"
)

// Valid reports whether t is a known inventory type.
func (t ItemType) Valid() bool {
	switch t {
	case ItemCakeFountain, ItemCake200g, ItemCake500g, ItemAerialShell, ItemGeneric, ItemFuse:
		return true
	}
	return false
}

// Item is an inventory entity. Timing fields are seconds; BurnRate is seconds per foot
// and only meaningful for fuses.
type Item struct {
	ID                  int      `json:"id"`
	Name                string   `json:"name"`
	Type                ItemType `json:"type"`
	Duration            float64  `json:"duration"`
	FuseDelay           float64  `json:"fuse_delay"`
	LiftDelay           float64  `json:"lift_delay"`
	BurnRate            float64  `json:"burn_rate"`
	Color               string   `json:"color"`
	AvailableCount      int      `json:"available_ct"`
	YoutubeLink         string   `json:"youtube_link"`
	YoutubeLinkStartSec int      `json:"youtube_link_start_sec"`
	Image               string   `json:"image"`
	Metadata            Metadata `json:"metadata"`
}

// IntrinsicDelay is the time from ignition to visible effect for a single device.
func (i *Item) IntrinsicDelay() float64 {
	return i.LiftDelay + i.FuseDelay
}

// Metadata is the free-form JSON attached to an inventory item.
type Metadata struct {
	PackShellData PackShellData `json:"pack_shell_data"`
}

// PackShellData describes the shells that ship inside a multi-shell pack.
type PackShellData struct {
	Shells []PackShell `json:"shells"`
}

// PackShell is one shell of a pack.
type PackShell struct {
	Number      int      `json:"number"`
	Description string   `json:"description"`
	Colors      []string `json:"colors"`
	Effects     []string `json:"effects"`
}

// ParseMetadata decodes item metadata. Empty or malformed input yields empty metadata;
// metadata is informational and must never block loading an item.
func ParseMetadata(raw string) Metadata {
	var m Metadata
	if raw == "" {
		return m
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Metadata{}
	}
	return m
}

// ItemSnapshot is the frozen copy of inventory fields taken when an item is placed
// in a show. It does not follow later inventory edits; see RefreshFromInventory in
// the assembler for the explicit refresh.
type ItemSnapshot struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Type      ItemType `json:"type"`
	Duration  float64  `json:"duration,omitempty"`
	FuseDelay float64  `json:"fuse_delay,omitempty"`
	LiftDelay float64  `json:"lift_delay,omitempty"`
	BurnRate  float64  `json:"burn_rate,omitempty"`
	Color     string   `json:"color,omitempty"`

	// Partial is set when the snapshot was rebuilt from a persisted cue, which only
	// keeps id, name, type and duration.
	Partial bool `json:"-"`
}

// Snapshot returns a frozen copy of the item's display and timing fields.
func (i *Item) Snapshot() ItemSnapshot {
	return ItemSnapshot{
		ID:        i.ID,
		Name:      i.Name,
		Type:      i.Type,
		Duration:  i.Duration,
		FuseDelay: i.FuseDelay,
		LiftDelay: i.LiftDelay,
		BurnRate:  i.BurnRate,
		Color:     i.Color,
	}
}
