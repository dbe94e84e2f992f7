package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jwulff/pyroshow-go/internal/assembler"
	"github.com/jwulff/pyroshow-go/internal/config"
	"github.com/jwulff/pyroshow-go/internal/daemon"
	"github.com/jwulff/pyroshow-go/internal/domain"
	"github.com/jwulff/pyroshow-go/internal/health"
	"github.com/jwulff/pyroshow-go/internal/storage"
	"github.com/jwulff/pyroshow-go/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.UnixMilli(1_700_000_000_000)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ActiveProtocol = "cobra"
	cfg.Protocols = map[string]config.ProtocolConfig{
		"cobra": {
			RequireContinuity: true,
			Receivers: map[string]config.ReceiverConfig{
				"r1": {Cues: map[string][]int{"A": {1, 2}}},
				"r2": {Cues: map[string][]int{"B": {1}}},
			},
		},
		"spare": {
			Receivers: map[string]config.ReceiverConfig{
				"r9": {Cues: map[string][]int{"A": {1}}},
			},
		},
	}
	return cfg
}

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func openSession(t *testing.T, store storage.Store) *Session {
	t.Helper()
	return openSessionWith(t, store, testConfig())
}

func openSessionWith(t *testing.T, store storage.Store, cfg *config.Config) *Session {
	t.Helper()
	s, err := Open(context.Background(), store, cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithEvaluator(health.Evaluator{Now: func() time.Time { return fixedNow }}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedItem(t *testing.T, store storage.Store, name string) *domain.Item {
	t.Helper()
	item := &domain.Item{Name: name, Type: domain.ItemAerialShell, Duration: 2, LiftDelay: 0.5, FuseDelay: 0.2}
	require.NoError(t, store.SaveItem(context.Background(), item))
	return item
}

// stagedShow creates a show with one cue at A:1 and one at B:1 and stages it.
func stagedShow(t *testing.T, s *Session, itemID int) *domain.Show {
	t.Helper()
	ctx := context.Background()
	show, err := s.CreateShow(ctx, "Finale", "")
	require.NoError(t, err)
	require.NoError(t, s.Stage(ctx, show.ID))

	first, err := s.ItemCue(itemID, "A", 1, 1, 0)
	require.NoError(t, err)
	second, err := s.ItemCue(itemID, "B", 1, 4, 0)
	require.NoError(t, err)
	require.NoError(t, s.Edit(func(a *assembler.Assembler) error {
		if _, err := a.Add(first); err != nil {
			return err
		}
		_, err := a.Add(second)
		return err
	}))
	staged, ok := s.Staged()
	require.True(t, ok)
	return staged
}

func snapshotJSON(showID int, loaded bool) []byte {
	return []byte(fmt.Sprintf(`{
		"loaded_show_id": %d,
		"active_protocol": "cobra",
		"proto_handler_status": "LOADED",
		"receivers": {
			"r1": {"type": "18R2", "cues": {"A": [1, 2]},
				"status": {"lmt": %d, "continuity": ["3", "0"], "loadComplete": %t, "startReady": %t, "showId": %d}},
			"r2": {"type": "18R2", "cues": {"B": [1]},
				"status": {"lmt": %d, "continuity": [1, 0], "loadComplete": %t, "startReady": %t, "showId": %d}}
		}
	}`, showID,
		fixedNow.UnixMilli(), loaded, loaded, showID,
		fixedNow.Add(-time.Second).UnixMilli(), loaded, loaded, showID))
}

func TestOpenEmptyStore(t *testing.T) {
	s := openSession(t, newTestStore(t))

	assert.NotEmpty(t, s.ID)
	assert.Empty(t, s.Shows())
	assert.Empty(t, s.Items())
	snap, _ := s.Snapshot()
	assert.Nil(t, snap)
}

func TestStageEditSaveAndReopen(t *testing.T) {
	store := newTestStore(t)
	item := seedItem(t, store, "Comet")
	s := openSession(t, store)

	staged := stagedShow(t, s, item.ID)
	assert.Len(t, staged.Items, 2)
	assert.Equal(t, 6.0, staged.Duration)
	assert.True(t, s.Dirty())

	result, err := s.SaveStaged(context.Background())
	require.NoError(t, err)
	assert.NoError(t, result.ScheduleErr)
	assert.Equal(t, 2, result.Version)
	assert.False(t, s.Dirty())

	reopened := openSession(t, store)
	show, err := reopened.Show(result.ShowID)
	require.NoError(t, err)
	assert.Equal(t, 2, show.Version)
	require.Len(t, show.Items, 2)
	assert.Equal(t, "Comet", show.Items[0].Name)
	assert.Equal(t, 6.0, show.Duration)
}

func TestEditFailureLeavesStagedShowUnchanged(t *testing.T) {
	store := newTestStore(t)
	item := seedItem(t, store, "Comet")
	s := openSession(t, store)
	stagedShow(t, s, item.ID)

	cue, err := s.ItemCue(item.ID, "C", 1, 8, 0)
	require.NoError(t, err)
	clash, err := s.ItemCue(item.ID, "A", 1, 9, 0)
	require.NoError(t, err)

	err = s.Edit(func(a *assembler.Assembler) error {
		if _, err := a.Add(cue); err != nil {
			return err
		}
		_, err := a.Add(clash)
		return err
	})
	require.True(t, domain.IsConflict(err))

	staged, _ := s.Staged()
	assert.Len(t, staged.Items, 2, "first add of the failed edit is discarded")
}

func TestEditWithoutStagedShow(t *testing.T) {
	s := openSession(t, newTestStore(t))

	err := s.Edit(func(a *assembler.Assembler) error { return nil })
	assert.ErrorIs(t, err, ErrNothingStaged)

	_, err = s.Health()
	assert.ErrorIs(t, err, ErrNothingStaged)
}

func TestSaveUnschedulableKeepsPreviousSchedule(t *testing.T) {
	store := newTestStore(t)
	item := seedItem(t, store, "Comet")
	s := openSession(t, store)
	ctx := context.Background()
	stagedShow(t, s, item.ID)

	good, err := s.SaveStaged(ctx)
	require.NoError(t, err)
	require.NoError(t, good.ScheduleErr)
	saved, err := store.GetShow(ctx, good.ShowID)
	require.NoError(t, err)
	require.NotEmpty(t, saved.RuntimePayload)

	// effect at 0.1s cannot be reached with 0.7s of delay
	early, err := s.ItemCue(item.ID, "A", 2, 0.1, 0)
	require.NoError(t, err)
	var earlyID int
	require.NoError(t, s.Edit(func(a *assembler.Assembler) error {
		added, err := a.Add(early)
		earlyID = added.ID
		return err
	}))

	result, err := s.SaveStaged(ctx)
	require.NoError(t, err)
	assert.True(t, domain.IsInvalidInput(result.ScheduleErr))
	assert.Equal(t, good.Version+1, result.Version)
	assert.Equal(t, good.RuntimeVersion, result.RuntimeVersion)

	rec, err := store.GetShow(ctx, result.ShowID)
	require.NoError(t, err)
	assert.Equal(t, result.Version, rec.Version)
	assert.Equal(t, good.RuntimeVersion, rec.RuntimeVersion)
	assert.Equal(t, saved.RuntimePayload, rec.RuntimePayload, "runtime payload and version stay paired")

	_, _, err = s.LoadCommand(result.ShowID)
	require.True(t, domain.IsInvalidInput(err))
	assert.Contains(t, err.Error(), fmt.Sprintf("from version %d", good.Version))

	require.NoError(t, s.Edit(func(a *assembler.Assembler) error { return a.Remove(earlyID) }))
	fixed, err := s.SaveStaged(ctx)
	require.NoError(t, err)
	require.NoError(t, fixed.ScheduleErr)
	assert.Equal(t, good.RuntimeVersion+1, fixed.RuntimeVersion)
	cmd, _, err := s.LoadCommand(fixed.ShowID)
	require.NoError(t, err)
	assert.Equal(t, daemon.CommandLoadShow, cmd.Type)
}

func TestLoadCommandAfterReopen(t *testing.T) {
	store := newTestStore(t)
	item := seedItem(t, store, "Comet")
	first := openSession(t, store)
	stagedShow(t, first, item.ID)
	result, err := first.SaveStaged(context.Background())
	require.NoError(t, err)

	second := openSession(t, store)
	_, _, err = second.LoadCommand(result.ShowID)
	assert.NoError(t, err, "the saved schedule survives a reopen")
}

func TestRefreshStagedUsesCurrentInventory(t *testing.T) {
	store := newTestStore(t)
	item := seedItem(t, store, "Comet")
	s := openSession(t, store)
	stagedShow(t, s, item.ID)

	item.Duration = 5
	item.LiftDelay = 1
	require.NoError(t, s.SaveItem(context.Background(), item))

	staged, _ := s.Staged()
	assert.Equal(t, 2.0, staged.Items[0].Duration, "snapshot is frozen until refreshed")

	require.NoError(t, s.RefreshStaged(staged.Items[0].ID))
	staged, _ = s.Staged()
	assert.Equal(t, 5.0, staged.Items[0].Duration)
	assert.InDelta(t, 1.2, staged.Items[0].Delay, 1e-9)
}

func TestOpenWithMalformedShowPayload(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveShow(context.Background(),
		&storage.ShowRecord{Name: "Broken", DisplayPayload: "[{"}))

	s := openSession(t, store)
	shows := s.Shows()
	require.Len(t, shows, 1)
	assert.Equal(t, "Broken", shows[0].Name)
	assert.Empty(t, shows[0].Items)
}

func TestApplySnapshotKeepsPreviousOnError(t *testing.T) {
	store := newTestStore(t)
	s := openSession(t, store)
	ctx := context.Background()

	require.NoError(t, s.ApplySnapshot(ctx, snapshotJSON(1, true)))
	require.Error(t, s.ApplySnapshot(ctx, []byte("{garbage")))

	snap, at := s.Snapshot()
	require.NotNil(t, snap)
	assert.True(t, snap.HasShowLoaded(1))
	assert.True(t, at.Equal(fixedNow))

	cached, err := store.GetCachedSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, cached.Snapshot.HasShowLoaded(1))
}

func TestOpenRestoresCachedSnapshot(t *testing.T) {
	store := newTestStore(t)
	first := openSession(t, store)
	require.NoError(t, first.ApplySnapshot(context.Background(), snapshotJSON(3, true)))

	second := openSession(t, store)
	snap, _ := second.Snapshot()
	require.NotNil(t, snap)
	assert.True(t, snap.HasShowLoaded(3))
}

func TestHealthWithoutSnapshotUsesConfiguredTopology(t *testing.T) {
	store := newTestStore(t)
	item := seedItem(t, store, "Comet")
	s := openSession(t, store)
	stagedShow(t, s, item.ID)

	h, err := s.Health()
	require.NoError(t, err)
	assert.Equal(t, "0/2", h.ReceiversConnected.String())
	assert.Equal(t, health.MetricError, h.CuesConnected.State)
	assert.False(t, h.AllReceiversOnline)
	assert.False(t, h.Ready())
}

func TestHealthWithLiveSnapshot(t *testing.T) {
	store := newTestStore(t)
	item := seedItem(t, store, "Comet")
	s := openSession(t, store)
	staged := stagedShow(t, s, item.ID)

	require.NoError(t, s.ApplySnapshot(context.Background(), snapshotJSON(staged.ID, true)))

	h, err := s.Health()
	require.NoError(t, err)
	assert.Equal(t, "2/2", h.ReceiversConnected.String())
	assert.Equal(t, "2/2", h.CuesConnected.String())
	assert.Equal(t, "2/2", h.ReceiversLoaded.String())
	assert.True(t, h.Ready())
	assert.Equal(t, health.StateLoaded, h.DaemonState)
}

func TestTopologyMergesSnapshotOverConfig(t *testing.T) {
	s := openSession(t, newTestStore(t))
	require.NoError(t, s.ApplySnapshot(context.Background(), []byte(`{
		"active_protocol": "cobra",
		"receivers": {"live-1": {"cues": {"Z": [5]}, "status": {}}}
	}`)))

	resolver, requireContinuity := s.Topology(nil)
	rx, ok := resolver.Lookup("Z", 5)
	assert.True(t, ok)
	assert.Equal(t, "live-1", rx)
	rx, ok = resolver.Lookup("A", 1)
	assert.True(t, ok, "configured receivers stay in the topology")
	assert.Equal(t, "r1", rx)
	assert.True(t, requireContinuity)
}

func TestHealthReceiverMissingFromSnapshotIsNotReady(t *testing.T) {
	store := newTestStore(t)
	item := seedItem(t, store, "Comet")
	cfg := testConfig()
	cobra := cfg.Protocols["cobra"]
	cobra.RequireContinuity = false
	cfg.Protocols["cobra"] = cobra
	s := openSessionWith(t, store, cfg)
	staged := stagedShow(t, s, item.ID)

	require.NoError(t, s.ApplySnapshot(context.Background(), []byte(fmt.Sprintf(`{
		"loaded_show_id": %d,
		"active_protocol": "cobra",
		"receivers": {
			"r1": {"cues": {"A": [1, 2]},
				"status": {"lmt": %d, "continuity": [3, 0], "loadComplete": true, "startReady": true, "showId": %d}}
		}
	}`, staged.ID, fixedNow.UnixMilli(), staged.ID))))

	h, err := s.Health()
	require.NoError(t, err)
	assert.Empty(t, h.Unresolved)
	assert.Equal(t, "1/2", h.ReceiversConnected.String())
	assert.Equal(t, "1/2", h.ReceiversLoaded.String())
	assert.Equal(t, "1/2", h.ReceiversReady.String())
	assert.False(t, h.AllReceiversOnline)
	assert.False(t, h.Ready())
}

func TestOperatorStateSurvivesReopen(t *testing.T) {
	store := newTestStore(t)
	item := seedItem(t, store, "Comet")
	ctx := context.Background()
	first := openSession(t, store)
	staged := stagedShow(t, first, item.ID)
	require.NoError(t, first.SetProtocol(ctx, "spare"))

	err := first.SetProtocol(ctx, "missing")
	assert.True(t, domain.IsInvalidInput(err))
	assert.Equal(t, "spare", first.Protocol())

	second := openSession(t, store)
	restored, ok := second.Staged()
	require.True(t, ok)
	assert.Equal(t, staged.ID, restored.ID)
	assert.Equal(t, "spare", second.Protocol())

	resolver, requireContinuity := second.Topology(restored)
	rx, ok := resolver.Lookup("A", 1)
	require.True(t, ok)
	assert.Equal(t, "r9", rx)
	assert.False(t, requireContinuity)

	require.NoError(t, second.SetProtocol(ctx, ""))
	third := openSession(t, store)
	assert.Empty(t, third.Protocol())
}

func TestOpenDropsStaleOperatorState(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveOperatorState(context.Background(),
		&storage.OperatorState{StagedShowID: 99, ProtocolOverride: "retired"}))

	s := openSession(t, store)
	_, ok := s.Staged()
	assert.False(t, ok)
	assert.Empty(t, s.Protocol())
}

func TestLoadCommandWarnsWhenReceiversOffline(t *testing.T) {
	store := newTestStore(t)
	item := seedItem(t, store, "Comet")
	s := openSession(t, store)
	stagedShow(t, s, item.ID)
	result, err := s.SaveStaged(context.Background())
	require.NoError(t, err)

	cmd, warning, err := s.LoadCommand(result.ShowID)
	require.NoError(t, err)
	assert.Equal(t, daemon.CommandLoadShow, cmd.Type)
	assert.Equal(t, result.ShowID, cmd.ShowID)
	assert.Contains(t, warning, "0/2")

	require.NoError(t, s.ApplySnapshot(context.Background(), snapshotJSON(0, false)))
	_, warning, err = s.LoadCommand(result.ShowID)
	require.NoError(t, err)
	assert.Empty(t, warning)
}

func TestLoadCommandUnknownShow(t *testing.T) {
	s := openSession(t, newTestStore(t))

	_, _, err := s.LoadCommand(42)
	assert.True(t, storage.IsNotFound(err))
}

func TestFusedLineCue(t *testing.T) {
	store := newTestStore(t)
	shell := seedItem(t, store, "Comet")
	visco := &domain.Item{Name: "Visco", Type: domain.ItemFuse, BurnRate: 2}
	require.NoError(t, store.SaveItem(context.Background(), visco))
	s := openSession(t, store)

	cue, err := s.FusedLineCue(visco.ID, []int{shell.ID, shell.ID}, 6, 12, "A", 1, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.CueFusedAerialLine, cue.Type)

	_, err = s.FusedLineCue(0, []int{shell.ID}, 6, 12, "A", 1, 5, 0)
	assert.True(t, domain.IsInvalidInput(err))
}

func TestRackLineCue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	shell := seedItem(t, store, "Comet")
	visco := &domain.Item{Name: "Visco", Type: domain.ItemFuse, BurnRate: 2}
	require.NoError(t, store.SaveItem(ctx, visco))

	rack := domain.NewRack(1, "Finale rack", 2, 6, 1, 6)
	require.NoError(t, rack.SetCell(0, 0, shell.ID, 1))
	require.NoError(t, rack.SetCell(1, 0, shell.ID, 2))
	key, err := rack.AddFuse(visco.ID, 12, []string{domain.CellKey(0, 0), domain.CellKey(1, 0)})
	require.NoError(t, err)
	require.NoError(t, store.SaveRack(ctx, rack))

	s := openSession(t, store)
	cue, err := s.RackLineCue(ctx, rack.ID, key, "B", 2, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.CueRackShells, cue.Type)
	require.NotNil(t, cue.Rack)
	assert.Len(t, cue.Rack.Shells, 2)
}

func TestDeleteShow(t *testing.T) {
	store := newTestStore(t)
	item := seedItem(t, store, "Comet")
	s := openSession(t, store)
	staged := stagedShow(t, s, item.ID)

	err := s.DeleteShow(context.Background(), staged.ID)
	assert.True(t, domain.IsInvalidInput(err), "staged show is protected")

	other, err := s.CreateShow(context.Background(), "Spare", "cobra")
	require.NoError(t, err)
	require.NoError(t, s.DeleteShow(context.Background(), other.ID))
	_, err = s.Show(other.ID)
	assert.True(t, storage.IsNotFound(err))
}

func TestClose(t *testing.T) {
	s := openSession(t, newTestStore(t))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Stage(context.Background(), 1), ErrClosed)
	_, err := s.SaveStaged(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.ApplySnapshot(context.Background(), snapshotJSON(1, true)), ErrClosed)
}
