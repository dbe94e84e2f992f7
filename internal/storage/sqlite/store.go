// Package sqlite provides a SQLite implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jwulff/pyroshow-go/internal/domain"
	"github.com/jwulff/pyroshow-go/internal/health"
	"github.com/jwulff/pyroshow-go/internal/storage"

	_ "modernc.org/sqlite"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

// NewMemoryStore creates an in-memory SQLite store.
func NewMemoryStore() (*Store, error) {
	return newStore(":memory:")
}

// NewFileStore creates a file-based SQLite store.
func NewFileStore(path string) (*Store, error) {
	return newStore(path)
}

func newStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func itoa(id int) string {
	return strconv.Itoa(id)
}

// Show methods

const showColumns = `id, name, duration, version, runtime_version, display_payload, runtime_payload,
	authorization_code, protocol, audio_file, receiver_locations, receiver_labels, updated_at`

func scanShow(row interface{ Scan(...any) error }) (*storage.ShowRecord, error) {
	var show storage.ShowRecord
	err := row.Scan(&show.ID, &show.Name, &show.Duration, &show.Version, &show.RuntimeVersion,
		&show.DisplayPayload, &show.RuntimePayload, &show.AuthorizationCode, &show.Protocol,
		&show.AudioFile, &show.ReceiverLocations, &show.ReceiverLabels, &show.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &show, nil
}

// SaveShow inserts the show when its ID is zero, assigning the new id, and replaces
// it otherwise.
func (s *Store) SaveShow(ctx context.Context, show *storage.ShowRecord) error {
	show.UpdatedAt = time.Now()
	args := []any{show.Name, show.Duration, show.Version, show.RuntimeVersion, show.DisplayPayload,
		show.RuntimePayload, show.AuthorizationCode, show.Protocol, show.AudioFile,
		show.ReceiverLocations, show.ReceiverLabels, show.UpdatedAt}

	if show.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO shows (name, duration, version, runtime_version, display_payload, runtime_payload,
				authorization_code, protocol, audio_file, receiver_locations, receiver_labels, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, args...)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		show.ID = int(id)
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO shows (id, name, duration, version, runtime_version, display_payload, runtime_payload,
			authorization_code, protocol, audio_file, receiver_locations, receiver_labels, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, append([]any{show.ID}, args...)...)
	return err
}

func (s *Store) GetShow(ctx context.Context, id int) (*storage.ShowRecord, error) {
	show, err := scanShow(s.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "show", ID: itoa(id)}
	}
	if err != nil {
		return nil, err
	}
	return show, nil
}

func (s *Store) GetShows(ctx context.Context) ([]*storage.ShowRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+showColumns+` FROM shows ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shows []*storage.ShowRecord
	for rows.Next() {
		show, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		shows = append(shows, show)
	}
	return shows, rows.Err()
}

func (s *Store) DeleteShow(ctx context.Context, id int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM racks WHERE show_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM shows WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// Inventory methods

const itemColumns = `id, name, type, duration, fuse_delay, lift_delay, burn_rate, color, available_ct,
	youtube_link, youtube_link_start_sec, image, metadata`

func scanItem(row interface{ Scan(...any) error }) (*domain.Item, error) {
	var item domain.Item
	var metadata string
	err := row.Scan(&item.ID, &item.Name, &item.Type, &item.Duration, &item.FuseDelay, &item.LiftDelay,
		&item.BurnRate, &item.Color, &item.AvailableCount, &item.YoutubeLink, &item.YoutubeLinkStartSec,
		&item.Image, &metadata)
	if err != nil {
		return nil, err
	}
	item.Metadata = domain.ParseMetadata(metadata)
	return &item, nil
}

// SaveItem inserts the item when its ID is zero, assigning the new id, and replaces
// it otherwise.
func (s *Store) SaveItem(ctx context.Context, item *domain.Item) error {
	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	args := []any{item.Name, string(item.Type), item.Duration, item.FuseDelay, item.LiftDelay, item.BurnRate,
		item.Color, item.AvailableCount, item.YoutubeLink, item.YoutubeLinkStartSec, item.Image, string(metadata)}

	if item.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO inventory (name, type, duration, fuse_delay, lift_delay, burn_rate, color, available_ct,
				youtube_link, youtube_link_start_sec, image, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, args...)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		item.ID = int(id)
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO inventory (id, name, type, duration, fuse_delay, lift_delay, burn_rate, color,
			available_ct, youtube_link, youtube_link_start_sec, image, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, append([]any{item.ID}, args...)...)
	return err
}

func (s *Store) GetItem(ctx context.Context, id int) (*domain.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inventory WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "item", ID: itoa(id)}
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Store) GetItems(ctx context.Context) ([]*domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM inventory ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) DeleteItem(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM inventory WHERE id = ?", id)
	return err
}

// Rack methods

const rackColumns = `id, show_id, name, x_rows, x_spacing, y_rows, y_spacing, cells, fuses`

func scanRack(row interface{ Scan(...any) error }) (*domain.Rack, error) {
	var rack domain.Rack
	var cells, fuses string
	err := row.Scan(&rack.ID, &rack.ShowID, &rack.Name, &rack.XRows, &rack.XSpacing, &rack.YRows,
		&rack.YSpacing, &cells, &fuses)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cells), &rack.Cells); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cells of rack %d: %w", rack.ID, err)
	}
	if err := json.Unmarshal([]byte(fuses), &rack.Fuses); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fuses of rack %d: %w", rack.ID, err)
	}
	if rack.Cells == nil {
		rack.Cells = map[string]domain.RackCell{}
	}
	if rack.Fuses == nil {
		rack.Fuses = map[string]domain.RackFuse{}
	}
	return &rack, nil
}

// SaveRack inserts the rack when its ID is zero, assigning the new id, and replaces
// it otherwise. Racks that violate their fuse invariants are rejected.
func (s *Store) SaveRack(ctx context.Context, rack *domain.Rack) error {
	if err := rack.Validate(); err != nil {
		return err
	}
	cells, err := json.Marshal(rack.Cells)
	if err != nil {
		return fmt.Errorf("failed to marshal cells: %w", err)
	}
	fuses, err := json.Marshal(rack.Fuses)
	if err != nil {
		return fmt.Errorf("failed to marshal fuses: %w", err)
	}
	args := []any{rack.ShowID, rack.Name, rack.XRows, rack.XSpacing, rack.YRows, rack.YSpacing,
		string(cells), string(fuses)}

	if rack.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO racks (show_id, name, x_rows, x_spacing, y_rows, y_spacing, cells, fuses)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, args...)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		rack.ID = int(id)
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO racks (id, show_id, name, x_rows, x_spacing, y_rows, y_spacing, cells, fuses)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, append([]any{rack.ID}, args...)...)
	return err
}

func (s *Store) GetRack(ctx context.Context, id int) (*domain.Rack, error) {
	rack, err := scanRack(s.db.QueryRowContext(ctx, `SELECT `+rackColumns+` FROM racks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "rack", ID: itoa(id)}
	}
	if err != nil {
		return nil, err
	}
	return rack, nil
}

func (s *Store) GetRacksForShow(ctx context.Context, showID int) ([]*domain.Rack, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+rackColumns+` FROM racks WHERE show_id = ? ORDER BY id`, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var racks []*domain.Rack
	for rows.Next() {
		rack, err := scanRack(rows)
		if err != nil {
			return nil, err
		}
		racks = append(racks, rack)
	}
	return racks, rows.Err()
}

func (s *Store) DeleteRack(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM racks WHERE id = ?", id)
	return err
}

// Snapshot cache methods

func (s *Store) CacheSnapshot(ctx context.Context, snap *storage.CachedSnapshot) error {
	data, err := msgpack.Marshal(snap.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshot_cache (id, snapshot, received_at)
		VALUES (1, ?, ?)
	`, data, snap.ReceivedAt)
	return err
}

func (s *Store) GetCachedSnapshot(ctx context.Context) (*storage.CachedSnapshot, error) {
	var data []byte
	var receivedAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot, received_at FROM snapshot_cache WHERE id = 1
	`).Scan(&data, &receivedAt)

	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "snapshot_cache", ID: "1"}
	}
	if err != nil {
		return nil, err
	}

	var snap health.Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &storage.CachedSnapshot{Snapshot: &snap, ReceivedAt: receivedAt}, nil
}

// SaveOperatorState replaces the single operator state row.
func (s *Store) SaveOperatorState(ctx context.Context, state *storage.OperatorState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO operator_state (id, staged_show_id, protocol_override, updated_at)
		VALUES (1, ?, ?, ?)
	`, state.StagedShowID, state.ProtocolOverride, state.UpdatedAt)
	return err
}

func (s *Store) GetOperatorState(ctx context.Context) (*storage.OperatorState, error) {
	var state storage.OperatorState
	err := s.db.QueryRowContext(ctx, `
		SELECT staged_show_id, protocol_override, updated_at FROM operator_state WHERE id = 1
	`).Scan(&state.StagedShowID, &state.ProtocolOverride, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "operator_state", ID: "1"}
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Verify interface compliance
var _ storage.Store = (*Store)(nil)
