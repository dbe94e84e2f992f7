// Package session holds the working state of one operator session: the inventory,
// the show list, the staged show being edited or prepared, and the latest daemon
// snapshot.
//
// A Session is opened against a store, used, then closed. All methods are safe for
// concurrent use; the live feed applies snapshots while the API reads health.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwulff/pyroshow-go/internal/assembler"
	"github.com/jwulff/pyroshow-go/internal/config"
	"github.com/jwulff/pyroshow-go/internal/daemon"
	"github.com/jwulff/pyroshow-go/internal/domain"
	"github.com/jwulff/pyroshow-go/internal/fuse"
	"github.com/jwulff/pyroshow-go/internal/health"
	"github.com/jwulff/pyroshow-go/internal/storage"
	"github.com/jwulff/pyroshow-go/internal/topology"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session closed")
	// ErrNothingStaged is returned by operations that need a staged show.
	ErrNothingStaged = errors.New("no show staged")
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithEvaluator replaces the health evaluator, typically to fix the clock in tests.
func WithEvaluator(e health.Evaluator) Option {
	return func(s *Session) { s.evaluator = e }
}

// Session is the explicit replacement for process-wide editor state.
type Session struct {
	ID string

	store     storage.Store
	cfg       *config.Config
	evaluator health.Evaluator
	logger    *slog.Logger

	mu         sync.RWMutex
	closed     bool
	items      map[int]*domain.Item
	shows      map[int]*domain.Show
	staged     *assembler.Assembler
	dirty      bool
	protocol   string // operator override of cfg.ActiveProtocol
	snapshot   *health.Snapshot
	snapshotAt time.Time
}

// Open loads inventory, shows, the cached daemon snapshot and the operator state of
// the previous session from store. Shows whose display payload cannot be decoded are
// listed with no cues and logged.
func Open(ctx context.Context, store storage.Store, cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Session{
		ID:     uuid.NewString(),
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		items:  map[int]*domain.Item{},
		shows:  map[int]*domain.Show{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.ID)

	items, err := store.GetItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	for _, item := range items {
		s.items[item.ID] = item
	}

	records, err := store.GetShows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load shows: %w", err)
	}
	for _, rec := range records {
		show, err := assembler.FromRecord(rec)
		if err != nil {
			s.logger.Warn("show payload unreadable, listing without cues",
				"show_id", rec.ID,
				"error", err)
		}
		s.shows[show.ID] = show
	}

	if err := s.restoreOperatorState(ctx); err != nil {
		return nil, err
	}

	cached, err := store.GetCachedSnapshot(ctx)
	switch {
	case err == nil:
		s.snapshot = cached.Snapshot
		s.snapshotAt = cached.ReceivedAt
	case storage.IsNotFound(err):
	default:
		s.logger.Warn("cached snapshot unreadable, waiting for live feed", "error", err)
	}

	s.logger.Info("session opened",
		"items", len(s.items),
		"shows", len(s.shows),
		"staged", s.staged != nil,
		"protocol_override", s.protocol,
		"cached_snapshot", s.snapshot != nil)
	return s, nil
}

// restoreOperatorState re-stages the previously staged show and reapplies the
// protocol override. Choices that no longer resolve are dropped with a warning.
func (s *Session) restoreOperatorState(ctx context.Context) error {
	state, err := s.store.GetOperatorState(ctx)
	if storage.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load operator state: %w", err)
	}
	if state.StagedShowID != 0 {
		if show, ok := s.shows[state.StagedShowID]; ok {
			s.staged = assembler.New(show.Clone())
		} else {
			s.logger.Warn("previously staged show is gone", "show_id", state.StagedShowID)
		}
	}
	if state.ProtocolOverride != "" {
		if _, ok := s.cfg.Protocol(state.ProtocolOverride); ok {
			s.protocol = state.ProtocolOverride
		} else {
			s.logger.Warn("protocol override is no longer configured", "protocol", state.ProtocolOverride)
		}
	}
	return nil
}

// saveOperatorStateLocked persists the staged show id and protocol override that
// would be in force after a change. Callers hold s.mu.
func (s *Session) saveOperatorStateLocked(ctx context.Context, stagedID int, protocol string) error {
	err := s.store.SaveOperatorState(ctx, &storage.OperatorState{StagedShowID: stagedID, ProtocolOverride: protocol})
	if err != nil {
		return fmt.Errorf("failed to save operator state: %w", err)
	}
	return nil
}

// Close ends the session. Unsaved staged edits are discarded. The store is owned by
// the caller and stays open.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.dirty {
		s.logger.Warn("discarding unsaved edits", "show_id", s.staged.Show().ID)
	}
	s.closed = true
	s.staged = nil
	s.items = nil
	s.shows = nil
	s.logger.Info("session closed")
	return nil
}

// Inventory

// Item returns a copy of the inventory item with the given id.
func (s *Session) Item(id int) (*domain.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, false
	}
	c := *item
	return &c, true
}

// Items returns the inventory ordered by name.
func (s *Session) Items() []*domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Item, 0, len(s.items))
	for _, item := range s.items {
		c := *item
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SaveItem persists an inventory item. Cues already placed keep their snapshot until
// RefreshStaged is called for them.
func (s *Session) SaveItem(ctx context.Context, item *domain.Item) error {
	if !item.Type.Valid() {
		return &domain.InvalidInputError{Field: "type", Reason: fmt.Sprintf("unknown item type %q", item.Type)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.store.SaveItem(ctx, item); err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}
	c := *item
	s.items[item.ID] = &c
	return nil
}

// lookup resolves inventory ids. Callers hold s.mu.
func (s *Session) lookup(id int) (*domain.Item, bool) {
	item, ok := s.items[id]
	return item, ok
}

// Shows

// Shows returns copies of every show ordered by id.
func (s *Session) Shows() []*domain.Show {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Show, 0, len(s.shows))
	for _, show := range s.shows {
		out = append(out, show.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Show returns a copy of the show with the given id.
func (s *Session) Show(id int) (*domain.Show, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	show, ok := s.shows[id]
	if !ok {
		return nil, storage.ErrNotFound{Resource: "show", ID: fmt.Sprint(id)}
	}
	return show.Clone(), nil
}

// CreateShow persists a new empty show and returns it.
func (s *Session) CreateShow(ctx context.Context, name, protocol string) (*domain.Show, error) {
	if name == "" {
		return nil, &domain.InvalidInputError{Field: "name", Reason: "required"}
	}
	if protocol == "" {
		protocol = s.cfg.ActiveProtocol
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	show := domain.NewShow(name, protocol)
	rec, _, err := assembler.PrepareRecord(show)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveShow(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save show: %w", err)
	}
	show.ID = rec.ID
	show.Version = rec.Version
	show.RuntimeVersion = rec.RuntimeVersion
	show.RuntimePayload = runtimePayload(rec)
	s.shows[show.ID] = show
	return show.Clone(), nil
}

// DeleteShow removes a show and its racks. The staged show cannot be deleted.
func (s *Session) DeleteShow(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.staged != nil && s.staged.Show().ID == id {
		return &domain.InvalidInputError{Field: "show", Reason: "show is staged"}
	}
	if err := s.store.DeleteShow(ctx, id); err != nil {
		return fmt.Errorf("failed to delete show: %w", err)
	}
	delete(s.shows, id)
	return nil
}

// Staging and editing

// Stage makes a copy of the show with the given id the staged show. Any unsaved edits
// to the previously staged show are discarded. The choice is remembered for the next
// session.
func (s *Session) Stage(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	show, ok := s.shows[id]
	if !ok {
		return storage.ErrNotFound{Resource: "show", ID: fmt.Sprint(id)}
	}
	if err := s.saveOperatorStateLocked(ctx, id, s.protocol); err != nil {
		return err
	}
	if s.dirty {
		s.logger.Warn("discarding unsaved edits", "show_id", s.staged.Show().ID)
	}
	s.staged = assembler.New(show.Clone())
	s.dirty = false
	s.logger.Info("show staged", "show_id", id, "cues", len(show.Items))
	return nil
}

// SetProtocol overrides the configured active protocol for topology and continuity
// rules. An empty name clears the override. The choice is remembered for the next
// session.
func (s *Session) SetProtocol(ctx context.Context, name string) error {
	if name != "" {
		if _, ok := s.cfg.Protocol(name); !ok {
			return &domain.InvalidInputError{Field: "protocol", Reason: fmt.Sprintf("protocol %q is not configured", name)}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	stagedID := 0
	if s.staged != nil {
		stagedID = s.staged.Show().ID
	}
	if err := s.saveOperatorStateLocked(ctx, stagedID, name); err != nil {
		return err
	}
	s.protocol = name
	s.logger.Info("protocol override set", "protocol", name)
	return nil
}

// Protocol returns the protocol override, or "" when the configured one applies.
func (s *Session) Protocol() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocol
}

// Staged returns a copy of the staged show.
func (s *Session) Staged() (*domain.Show, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.staged == nil {
		return nil, false
	}
	return s.staged.Show().Clone(), true
}

// Dirty reports whether the staged show has unsaved edits.
func (s *Session) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Edit runs fn against the staged show. fn may perform several mutations; they are
// kept only if fn returns nil, otherwise the staged show is left as it was.
func (s *Session) Edit(fn func(*assembler.Assembler) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.staged == nil {
		return ErrNothingStaged
	}
	working := s.staged.Clone()
	if err := fn(working); err != nil {
		return err
	}
	s.staged = working
	s.dirty = true
	return nil
}

// RefreshStaged re-reads the inventory rows behind cue id in the staged show.
func (s *Session) RefreshStaged(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.staged == nil {
		return ErrNothingStaged
	}
	working := s.staged.Clone()
	if err := working.RefreshFromInventory(id, s.lookup); err != nil {
		return err
	}
	s.staged = working
	s.dirty = true
	return nil
}

// ItemCue builds a single-device cue from inventory.
func (s *Session) ItemCue(itemID int, zone string, target int, start, extraDelay float64) (domain.Cue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.lookup(itemID)
	if !ok {
		return domain.Cue{}, storage.ErrNotFound{Resource: "item", ID: fmt.Sprint(itemID)}
	}
	return domain.NewItemCue(item, zone, target, start, extraDelay)
}

// FusedLineCue builds a fused aerial line from inventory ids. A zero fuseID means no
// fuse was selected.
func (s *Session) FusedLineCue(fuseID int, shellIDs []int, spacing, leadInInches float64,
	zone string, target int, start, extraDelay float64) (domain.Cue, error) {

	s.mu.RLock()
	defer s.mu.RUnlock()
	fuseItem, _ := s.lookup(fuseID)
	shells := make([]*domain.Item, len(shellIDs))
	for i, id := range shellIDs {
		shells[i], _ = s.lookup(id)
	}
	return fuse.NewFusedLineCue(fuseItem, shells, spacing, leadInInches, zone, target, start, extraDelay)
}

// RackLineCue builds a rack-shells cue from fuse fuseKey of a stored rack.
func (s *Session) RackLineCue(ctx context.Context, rackID int, fuseKey string,
	zone string, target int, start, extraDelay float64) (domain.Cue, error) {

	rack, err := s.store.GetRack(ctx, rackID)
	if err != nil {
		return domain.Cue{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fuse.NewRackLineCue(rack, fuseKey, s.lookup, zone, target, start, extraDelay)
}

func runtimePayload(rec *storage.ShowRecord) json.RawMessage {
	if rec.RuntimePayload == "" {
		return nil
	}
	return json.RawMessage(rec.RuntimePayload)
}

// SaveResult describes a completed save.
type SaveResult struct {
	ShowID         int
	Version        int
	RuntimeVersion int
	// ScheduleErr is set when the show cannot be scheduled. The previous runtime
	// payload and RuntimeVersion were kept and the show cannot be loaded until a
	// schedulable version is saved.
	ScheduleErr error
}

// SaveStaged persists the staged show: duration recomputed, version incremented,
// display and runtime payloads written.
func (s *Session) SaveStaged(ctx context.Context) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return SaveResult{}, ErrClosed
	}
	if s.staged == nil {
		return SaveResult{}, ErrNothingStaged
	}

	show := s.staged.Show()
	rec, scheduleErr, err := assembler.PrepareRecord(show)
	if err != nil {
		return SaveResult{}, err
	}
	if scheduleErr != nil {
		s.logger.Warn("show saved without a current firing schedule",
			"show_id", show.ID,
			"runtime_version", rec.RuntimeVersion,
			"error", scheduleErr)
	}
	if err := s.store.SaveShow(ctx, rec); err != nil {
		return SaveResult{}, fmt.Errorf("failed to save show: %w", err)
	}

	show.ID = rec.ID
	show.Duration = rec.Duration
	show.Version = rec.Version
	show.RuntimeVersion = rec.RuntimeVersion
	show.RuntimePayload = runtimePayload(rec)
	s.shows[show.ID] = show.Clone()
	s.dirty = false

	s.logger.Info("show saved",
		"show_id", show.ID,
		"version", show.Version,
		"runtime_version", show.RuntimeVersion,
		"cues", len(show.Items))
	return SaveResult{
		ShowID:         show.ID,
		Version:        show.Version,
		RuntimeVersion: show.RuntimeVersion,
		ScheduleErr:    scheduleErr,
	}, nil
}

// Live state

// ApplySnapshot decodes a daemon snapshot and makes it current. Snapshots are applied
// in arrival order; the latest wins. A payload that cannot be decoded is rejected and
// the previous snapshot stays in force.
func (s *Session) ApplySnapshot(ctx context.Context, raw []byte) error {
	snap, err := health.DecodeSnapshot(raw)
	if err != nil {
		return err
	}
	if snap.ProtoHandlerStatus != "" && !snap.ProtoHandlerStatus.Known() {
		s.logger.Warn("daemon reports an unrecognized show state", "state", snap.ProtoHandlerStatus)
	}
	now := s.evaluatorNow()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.snapshot = snap
	s.snapshotAt = now
	s.mu.Unlock()

	if err := s.store.CacheSnapshot(ctx, &storage.CachedSnapshot{Snapshot: snap, ReceivedAt: now}); err != nil {
		s.logger.Warn("failed to cache snapshot", "error", err)
	}
	return nil
}

// Snapshot returns the current daemon snapshot and when it arrived. The snapshot is
// nil until one has been received or restored from the cache.
func (s *Session) Snapshot() (*health.Snapshot, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.snapshotAt
}

func (s *Session) evaluatorNow() time.Time {
	if s.evaluator.Now != nil {
		return s.evaluator.Now()
	}
	return time.Now()
}

// Topology returns the receiver topology in force for show: the receivers configured
// for the protocol, with the declarations the daemon reports for a receiver replacing
// the configured ones. A configured receiver missing from the snapshot keeps its
// addresses and so counts as offline. The second result is whether that protocol
// requires continuity.
func (s *Session) Topology(show *domain.Show) (*topology.Resolver, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topologyLocked(show)
}

func (s *Session) topologyLocked(show *domain.Show) (*topology.Resolver, bool) {
	name := s.cfg.ActiveProtocol
	if s.protocol != "" {
		name = s.protocol
	}
	if s.snapshot != nil && s.snapshot.ActiveProtocol != "" {
		name = s.snapshot.ActiveProtocol
	}
	if name == "" && show != nil {
		name = show.Protocol
	}
	proto, _ := s.cfg.Protocol(name)

	receivers := proto.ReceiverCues()
	if s.snapshot != nil {
		for id, rx := range s.snapshot.Receivers {
			if len(rx.Cues) > 0 {
				receivers[id] = rx.Cues
			}
		}
	}
	return topology.Build(receivers), proto.RequireContinuity
}

// Health evaluates the staged show against the current snapshot.
func (s *Session) Health() (health.Health, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return health.Health{}, ErrClosed
	}
	if s.staged == nil {
		return health.Health{}, ErrNothingStaged
	}
	return s.healthLocked(s.staged.Show()), nil
}

// HealthFor evaluates a saved show against the current snapshot.
func (s *Session) HealthFor(id int) (health.Health, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return health.Health{}, ErrClosed
	}
	show, ok := s.shows[id]
	if !ok {
		return health.Health{}, storage.ErrNotFound{Resource: "show", ID: fmt.Sprint(id)}
	}
	return s.healthLocked(show), nil
}

func (s *Session) healthLocked(show *domain.Show) health.Health {
	resolver, requireContinuity := s.topologyLocked(show)
	return s.evaluator.Evaluate(show, resolver, s.snapshot, requireContinuity)
}

// LoadCommand builds the load_show command for a saved show. A show whose saved
// firing schedule does not match its current version is refused. When not every
// receiver the show uses is online, warning explains why; loading is still allowed.
func (s *Session) LoadCommand(id int) (cmd daemon.Command, warning string, err error) {
	show, err := s.Show(id)
	if err != nil {
		return daemon.Command{}, "", err
	}
	if err := assembler.CheckRuntime(show); err != nil {
		return daemon.Command{}, "", err
	}
	h, err := s.HealthFor(id)
	if err != nil {
		return daemon.Command{}, "", err
	}
	cmd, err = daemon.CreateLoadShowCommand(id)
	if err != nil {
		return daemon.Command{}, "", err
	}
	switch {
	case h.NoReceivers():
		warning = "show uses no configured receivers"
	case !h.AllReceiversOnline:
		warning = fmt.Sprintf("not all receivers are online (%s connected)", h.ReceiversConnected)
	}
	if warning != "" {
		s.logger.Warn("loading show with receivers offline", "show_id", id, "warning", warning)
	}
	return cmd, warning, nil
}
