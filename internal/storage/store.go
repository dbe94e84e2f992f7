// Package storage provides storage abstractions for shows, inventory and racks.
package storage

import (
	"context"
	"time"

	"github.com/jwulff/pyroshow-go/internal/domain"
	"github.com/jwulff/pyroshow-go/internal/health"
)

// Store is the interface for persistent storage.
type Store interface {
	// Shows
	SaveShow(ctx context.Context, show *ShowRecord) error
	GetShow(ctx context.Context, id int) (*ShowRecord, error)
	GetShows(ctx context.Context) ([]*ShowRecord, error)
	DeleteShow(ctx context.Context, id int) error

	// Inventory
	SaveItem(ctx context.Context, item *domain.Item) error
	GetItem(ctx context.Context, id int) (*domain.Item, error)
	GetItems(ctx context.Context) ([]*domain.Item, error)
	DeleteItem(ctx context.Context, id int) error

	// Racks
	SaveRack(ctx context.Context, rack *domain.Rack) error
	GetRack(ctx context.Context, id int) (*domain.Rack, error)
	GetRacksForShow(ctx context.Context, showID int) ([]*domain.Rack, error)
	DeleteRack(ctx context.Context, id int) error

	// Last daemon snapshot
	CacheSnapshot(ctx context.Context, snap *CachedSnapshot) error
	GetCachedSnapshot(ctx context.Context) (*CachedSnapshot, error)

	// Operator state carried across sessions
	SaveOperatorState(ctx context.Context, state *OperatorState) error
	GetOperatorState(ctx context.Context) (*OperatorState, error)

	// Lifecycle
	Close() error
}

// ShowRecord is a persisted show. Payload columns hold JSON text: DisplayPayload is
// the allow-listed cue array and RuntimePayload the firing schedule.
type ShowRecord struct {
	ID                int
	Name              string
	Duration          float64
	Version           int
	RuntimeVersion    int
	DisplayPayload    string
	RuntimePayload    string
	AuthorizationCode string
	Protocol          string
	AudioFile         string
	ReceiverLocations string
	ReceiverLabels    string
	UpdatedAt         time.Time
}

// CachedSnapshot is the last daemon snapshot received, kept so a restart has
// something to show before the feed reconnects.
type CachedSnapshot struct {
	Snapshot   *health.Snapshot
	ReceivedAt time.Time
}

// OperatorState is what an operator chose in the last session: the staged show (0 for
// none) and a protocol that overrides the configured active protocol ("" for none).
type OperatorState struct {
	StagedShowID     int
	ProtocolOverride string
	UpdatedAt        time.Time
}

// ErrNotFound is returned when a record is not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e ErrNotFound) Error() string {
	return e.Resource + " not found: " + e.ID
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
