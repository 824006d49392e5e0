package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/motium/motium-sync/internal/database"
	"github.com/motium/motium-sync/internal/models"
	"github.com/motium/motium-sync/internal/remote"
	"github.com/motium/motium-sync/internal/repository"
)

type fakeRemote struct {
	getChangesFunc func(ctx context.Context, entityType string, since time.Time) ([]remote.Change, error)
	upsertFunc     func(ctx context.Context, entityType, entityID string, payload json.RawMessage, clientVersion int64) (remote.Change, error)
	deleteFunc     func(ctx context.Context, entityType, entityID string, clientVersion int64) (remote.Change, error)

	pulls   int
	upserts int
	deletes int
}

func (f *fakeRemote) GetChanges(ctx context.Context, entityType string, since time.Time) ([]remote.Change, error) {
	f.pulls++
	if f.getChangesFunc != nil {
		return f.getChangesFunc(ctx, entityType, since)
	}
	return nil, nil
}

func (f *fakeRemote) Upsert(ctx context.Context, entityType, entityID string, payload json.RawMessage, clientVersion int64) (remote.Change, error) {
	f.upserts++
	if f.upsertFunc != nil {
		return f.upsertFunc(ctx, entityType, entityID, payload, clientVersion)
	}
	return remote.Change{}, errors.New("unexpected upsert")
}

func (f *fakeRemote) Delete(ctx context.Context, entityType, entityID string, clientVersion int64) (remote.Change, error) {
	f.deletes++
	if f.deleteFunc != nil {
		return f.deleteFunc(ctx, entityType, entityID, clientVersion)
	}
	return remote.Change{}, errors.New("unexpected delete")
}

type testEnv struct {
	db          *gorm.DB
	records     *repository.LocalRecordRepository
	ops         *repository.PendingOperationRepository
	meta        *repository.SyncMetadataRepository
	remote      *fakeRemote
	coordinator *SyncCoordinator
	events      []SyncEvent
}

func newTestEnv(t *testing.T, rem *fakeRemote, maxRetries int) *testEnv {
	t.Helper()
	db, err := database.OpenLocal(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}

	env := &testEnv{
		db:      db,
		records: repository.NewLocalRecordRepository(db),
		ops:     repository.NewPendingOperationRepository(db),
		meta:    repository.NewSyncMetadataRepository(db),
		remote:  rem,
	}
	if err := env.meta.EnsureEntities(context.Background(), models.SyncEntities); err != nil {
		t.Fatalf("failed to ensure metadata: %v", err)
	}

	env.coordinator = NewSyncCoordinator(env.records, env.ops, env.meta, rem, log.New(testWriter{t}, "", 0), 100, maxRetries)
	env.coordinator.SetObserver(func(ev SyncEvent) {
		env.events = append(env.events, ev)
	})
	return env
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

func tripsEntity(t *testing.T) models.EntityDescriptor {
	t.Helper()
	ent, ok := models.EntityByName("trips")
	if !ok {
		t.Fatal("trips entity not registered")
	}
	return ent
}

func (env *testEnv) tripPurpose(t *testing.T, entityID string) string {
	t.Helper()
	var purpose string
	row := env.db.Table("trips").Select("purpose").Where("id = ?", entityID).Row()
	if err := row.Scan(&purpose); err != nil {
		t.Fatalf("failed to read trip: %v", err)
	}
	return purpose
}

func (env *testEnv) eventTypes() []SyncEventType {
	types := make([]SyncEventType, len(env.events))
	for i, ev := range env.events {
		types[i] = ev.Type
	}
	return types
}

func TestTriggerSync_UploadRoundTrip(t *testing.T) {
	stamp := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	rem := &fakeRemote{
		upsertFunc: func(_ context.Context, entityType, entityID string, payload json.RawMessage, clientVersion int64) (remote.Change, error) {
			if entityType != "trips" || entityID != "t1" {
				t.Errorf("unexpected upsert target %s/%s", entityType, entityID)
			}
			if clientVersion != 0 {
				t.Errorf("a never-uploaded record must present version 0, got %d", clientVersion)
			}
			return remote.Change{
				EntityType: entityType, EntityID: entityID,
				Action: remote.ActionUpsert, Payload: payload,
				Version: 1, UpdatedAt: stamp,
			}, nil
		},
	}
	env := newTestEnv(t, rem, 5)
	ctx := context.Background()
	ent := tripsEntity(t)

	payload := json.RawMessage(`{"id":"t1","user_id":"u1","purpose":"client visit"}`)
	if err := env.records.SaveLocal(ctx, ent, "t1", payload); err != nil {
		t.Fatalf("saveLocal failed: %v", err)
	}

	if err := env.coordinator.TriggerSync(ctx, "trips"); err != nil {
		t.Fatalf("triggerSync failed: %v", err)
	}

	meta, err := env.records.GetMeta(ctx, ent, "t1")
	if err != nil {
		t.Fatalf("getMeta failed: %v", err)
	}
	if meta.SyncStatus != models.SyncStatusSynced {
		t.Errorf("expected SYNCED, got %s", meta.SyncStatus)
	}
	if meta.Version != 1 {
		t.Errorf("expected version 1 after round trip, got %d", meta.Version)
	}

	pending, err := env.ops.CountPending(ctx, "trips")
	if err != nil {
		t.Fatalf("countPending failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("expected empty queue, got %d", pending)
	}
	if rem.upserts != 1 {
		t.Errorf("expected exactly one upsert, got %d", rem.upserts)
	}
}

func TestTriggerSync_WatermarkIsMaxServerTimestamp(t *testing.T) {
	older := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 3, 11, 30, 0, 0, time.UTC)
	rem := &fakeRemote{}
	rem.getChangesFunc = func(_ context.Context, _ string, _ time.Time) ([]remote.Change, error) {
		return []remote.Change{
			{EntityType: "trips", EntityID: "t1", Action: remote.ActionUpsert,
				Payload: json.RawMessage(`{"id":"t1","purpose":"errand"}`), Version: 2, UpdatedAt: newer},
			{EntityType: "trips", EntityID: "t2", Action: remote.ActionUpsert,
				Payload: json.RawMessage(`{"id":"t2","purpose":"commute"}`), Version: 1, UpdatedAt: older},
		}, nil
	}
	env := newTestEnv(t, rem, 5)
	ctx := context.Background()

	before := time.Now().UTC()
	if err := env.coordinator.TriggerSync(ctx, "trips"); err != nil {
		t.Fatalf("triggerSync failed: %v", err)
	}

	meta, err := env.meta.Get(ctx, "trips")
	if err != nil {
		t.Fatalf("metadata load failed: %v", err)
	}
	if !meta.LastSyncTimestamp.Equal(newer) {
		t.Errorf("watermark must be the max server timestamp %v, got %v", newer, meta.LastSyncTimestamp)
	}
	if !meta.LastSyncTimestamp.Before(before) {
		t.Error("watermark must come from the batch, never from the local clock")
	}
	if meta.TotalSynced != 2 {
		t.Errorf("expected 2 applied changes recorded, got %d", meta.TotalSynced)
	}

	// Replaying the same batch is idempotent.
	if err := env.coordinator.TriggerSync(ctx, "trips"); err != nil {
		t.Fatalf("second triggerSync failed: %v", err)
	}
	if got := env.tripPurpose(t, "t1"); got != "errand" {
		t.Errorf("expected idempotent re-apply, got purpose %q", got)
	}
	rmeta, err := env.records.GetMeta(ctx, tripsEntity(t), "t1")
	if err != nil {
		t.Fatalf("getMeta failed: %v", err)
	}
	if rmeta.Version != 2 || rmeta.SyncStatus != models.SyncStatusSynced {
		t.Errorf("expected SYNCED at version 2, got %s at %d", rmeta.SyncStatus, rmeta.Version)
	}
}

func TestTriggerSync_EmptyBatchLeavesWatermark(t *testing.T) {
	rem := &fakeRemote{}
	env := newTestEnv(t, rem, 5)
	ctx := context.Background()

	if err := env.coordinator.TriggerSync(ctx, "trips"); err != nil {
		t.Fatalf("triggerSync failed: %v", err)
	}
	meta, err := env.meta.Get(ctx, "trips")
	if err != nil {
		t.Fatalf("metadata load failed: %v", err)
	}
	if !meta.LastSyncTimestamp.Equal(time.Unix(0, 0).UTC()) {
		t.Errorf("an empty batch must not move the watermark, got %v", meta.LastSyncTimestamp)
	}
}

func TestTriggerSync_PendingEditIsNotClobbered(t *testing.T) {
	stamp := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	rem := &fakeRemote{
		upsertFunc: func(context.Context, string, string, json.RawMessage, int64) (remote.Change, error) {
			return remote.Change{}, errors.New("network down")
		},
		getChangesFunc: func(context.Context, string, time.Time) ([]remote.Change, error) {
			return []remote.Change{
				{EntityType: "trips", EntityID: "t1", Action: remote.ActionUpsert,
					Payload: json.RawMessage(`{"id":"t1","purpose":"stale echo"}`), Version: 2, UpdatedAt: stamp},
			}, nil
		},
	}
	env := newTestEnv(t, rem, 5)
	ctx := context.Background()
	ent := tripsEntity(t)

	// Synced at version 2, then edited offline.
	if err := env.records.ApplyRemote(ctx, ent, "t1",
		json.RawMessage(`{"id":"t1","purpose":"original"}`), 2, stamp.Add(-time.Hour)); err != nil {
		t.Fatalf("applyRemote failed: %v", err)
	}
	if err := env.records.SaveLocal(ctx, ent, "t1",
		json.RawMessage(`{"id":"t1","purpose":"local edit"}`)); err != nil {
		t.Fatalf("saveLocal failed: %v", err)
	}

	if err := env.coordinator.TriggerSync(ctx, "trips"); err != nil {
		t.Fatalf("triggerSync failed: %v", err)
	}

	if got := env.tripPurpose(t, "t1"); got != "local edit" {
		t.Errorf("a pending edit at version >= incoming must survive, got %q", got)
	}
	meta, err := env.records.GetMeta(ctx, ent, "t1")
	if err != nil {
		t.Fatalf("getMeta failed: %v", err)
	}
	if meta.SyncStatus != models.SyncStatusPendingUpload {
		t.Errorf("expected PENDING_UPLOAD, got %s", meta.SyncStatus)
	}

	// The skipped change still counts toward the watermark.
	sm, err := env.meta.Get(ctx, "trips")
	if err != nil {
		t.Fatalf("metadata load failed: %v", err)
	}
	if !sm.LastSyncTimestamp.Equal(stamp) {
		t.Errorf("expected watermark %v, got %v", stamp, sm.LastSyncTimestamp)
	}
}

func TestTriggerSync_ConflictResolvesToRemote(t *testing.T) {
	stamp := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	rem := &fakeRemote{
		upsertFunc: func(context.Context, string, string, json.RawMessage, int64) (remote.Change, error) {
			return remote.Change{}, &remote.VersionConflictError{Current: remote.Change{
				EntityType: "trips", EntityID: "t1", Action: remote.ActionUpsert,
				Payload: json.RawMessage(`{"id":"t1","purpose":"edited elsewhere"}`),
				Version: 5, UpdatedAt: stamp,
			}}
		},
	}
	env := newTestEnv(t, rem, 5)
	ctx := context.Background()
	ent := tripsEntity(t)

	if err := env.records.ApplyRemote(ctx, ent, "t1",
		json.RawMessage(`{"id":"t1","purpose":"original"}`), 1, stamp.Add(-time.Hour)); err != nil {
		t.Fatalf("applyRemote failed: %v", err)
	}
	if err := env.records.SaveLocal(ctx, ent, "t1",
		json.RawMessage(`{"id":"t1","purpose":"doomed local edit"}`)); err != nil {
		t.Fatalf("saveLocal failed: %v", err)
	}

	if err := env.coordinator.TriggerSync(ctx, "trips"); err != nil {
		t.Fatalf("triggerSync failed: %v", err)
	}

	if got := env.tripPurpose(t, "t1"); got != "edited elsewhere" {
		t.Errorf("last-write-wins must keep the remote value, got %q", got)
	}
	meta, err := env.records.GetMeta(ctx, ent, "t1")
	if err != nil {
		t.Fatalf("getMeta failed: %v", err)
	}
	if meta.SyncStatus != models.SyncStatusSynced || meta.Version != 5 {
		t.Errorf("expected SYNCED at remote version 5, got %s at %d", meta.SyncStatus, meta.Version)
	}

	pending, err := env.ops.CountPending(ctx, "trips")
	if err != nil {
		t.Fatalf("countPending failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("the losing operation must be consumed, %d left", pending)
	}

	types := env.eventTypes()
	if len(types) != 2 || types[0] != SyncEventConflict || types[1] != SyncEventPassComplete {
		t.Errorf("expected conflict then pass_complete, got %v", types)
	}
}

func TestTriggerSync_ConcurrentTriggerIsNoOp(t *testing.T) {
	rem := &fakeRemote{}
	env := newTestEnv(t, rem, 5)
	ctx := context.Background()

	acquired, _, err := env.meta.Begin(ctx, "trips")
	if err != nil || !acquired {
		t.Fatalf("failed to hold the guard: acquired=%v err=%v", acquired, err)
	}

	if err := env.coordinator.TriggerSync(ctx, "trips"); err != nil {
		t.Fatalf("overlapping trigger must be a silent no-op, got %v", err)
	}
	if rem.pulls != 0 {
		t.Errorf("an overlapping trigger must not touch the remote, got %d pulls", rem.pulls)
	}
}

func TestTriggerSync_DownloadErrorKeepsWatermark(t *testing.T) {
	rem := &fakeRemote{
		getChangesFunc: func(context.Context, string, time.Time) ([]remote.Change, error) {
			return nil, errors.New("remote unavailable")
		},
	}
	env := newTestEnv(t, rem, 5)
	ctx := context.Background()

	if err := env.coordinator.TriggerSync(ctx, "trips"); err == nil {
		t.Fatal("expected the download error to surface")
	}

	meta, err := env.meta.Get(ctx, "trips")
	if err != nil {
		t.Fatalf("metadata load failed: %v", err)
	}
	if !meta.LastSyncTimestamp.Equal(time.Unix(0, 0).UTC()) {
		t.Errorf("a failed pass must not move the watermark, got %v", meta.LastSyncTimestamp)
	}
	if meta.SyncInProgress {
		t.Error("the guard must be released after a failed pass")
	}
	if meta.LastSyncError == nil {
		t.Error("the failure must be recorded on the metadata row")
	}

	// The next trigger reacquires the guard and replays the same window.
	_ = env.coordinator.TriggerSync(ctx, "trips")
	if rem.pulls != 2 {
		t.Errorf("expected the window to be replayed, got %d pulls", rem.pulls)
	}
}

func TestTriggerSync_TombstonePurgesLocalRow(t *testing.T) {
	stamp := time.Date(2026, 2, 3, 13, 0, 0, 0, time.UTC)
	rem := &fakeRemote{
		getChangesFunc: func(context.Context, string, time.Time) ([]remote.Change, error) {
			return []remote.Change{
				{EntityType: "trips", EntityID: "t1", Action: remote.ActionDelete, Version: 4, UpdatedAt: stamp},
			}, nil
		},
	}
	env := newTestEnv(t, rem, 5)
	ctx := context.Background()
	ent := tripsEntity(t)

	if err := env.records.ApplyRemote(ctx, ent, "t1",
		json.RawMessage(`{"id":"t1","purpose":"to be removed"}`), 3, stamp.Add(-time.Hour)); err != nil {
		t.Fatalf("applyRemote failed: %v", err)
	}

	if err := env.coordinator.TriggerSync(ctx, "trips"); err != nil {
		t.Fatalf("triggerSync failed: %v", err)
	}

	meta, err := env.records.GetMeta(ctx, ent, "t1")
	if err != nil {
		t.Fatalf("getMeta failed: %v", err)
	}
	if meta.Found {
		t.Error("a tombstone must purge the local row")
	}
}

func TestTriggerSync_DeleteRoundTrip(t *testing.T) {
	stamp := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)
	rem := &fakeRemote{
		deleteFunc: func(_ context.Context, entityType, entityID string, clientVersion int64) (remote.Change, error) {
			if clientVersion != 2 {
				t.Errorf("expected the synced version 2 presented, got %d", clientVersion)
			}
			return remote.Change{
				EntityType: entityType, EntityID: entityID,
				Action: remote.ActionDelete, Version: 3, UpdatedAt: stamp,
			}, nil
		},
	}
	env := newTestEnv(t, rem, 5)
	ctx := context.Background()
	ent := tripsEntity(t)

	if err := env.records.ApplyRemote(ctx, ent, "t1",
		json.RawMessage(`{"id":"t1","purpose":"done with"}`), 2, stamp.Add(-time.Hour)); err != nil {
		t.Fatalf("applyRemote failed: %v", err)
	}
	if err := env.records.DeleteLocal(ctx, ent, "t1"); err != nil {
		t.Fatalf("deleteLocal failed: %v", err)
	}

	if err := env.coordinator.TriggerSync(ctx, "trips"); err != nil {
		t.Fatalf("triggerSync failed: %v", err)
	}

	meta, err := env.records.GetMeta(ctx, ent, "t1")
	if err != nil {
		t.Fatalf("getMeta failed: %v", err)
	}
	if meta.Found {
		t.Error("a confirmed remote delete must purge the local row")
	}
	pending, err := env.ops.CountPending(ctx, "trips")
	if err != nil {
		t.Fatalf("countPending failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("expected empty queue, got %d", pending)
	}
	if rem.deletes != 1 {
		t.Errorf("expected exactly one remote delete, got %d", rem.deletes)
	}
}

func TestTriggerSync_EditAfterPendingDeleteSurvives(t *testing.T) {
	stamp := time.Date(2026, 2, 3, 16, 0, 0, 0, time.UTC)
	rem := &fakeRemote{
		upsertFunc: func(_ context.Context, entityType, entityID string, payload json.RawMessage, clientVersion int64) (remote.Change, error) {
			return remote.Change{
				EntityType: entityType, EntityID: entityID,
				Action: remote.ActionUpsert, Payload: payload,
				Version: clientVersion + 1, UpdatedAt: stamp,
			}, nil
		},
	}
	env := newTestEnv(t, rem, 5)
	ctx := context.Background()
	ent := tripsEntity(t)

	if err := env.records.ApplyRemote(ctx, ent, "t1",
		json.RawMessage(`{"id":"t1","purpose":"original"}`), 1, stamp.Add(-time.Hour)); err != nil {
		t.Fatalf("applyRemote failed: %v", err)
	}
	// Deleted, then re-created before the delete ever uploaded.
	if err := env.records.DeleteLocal(ctx, ent, "t1"); err != nil {
		t.Fatalf("deleteLocal failed: %v", err)
	}
	if err := env.records.SaveLocal(ctx, ent, "t1",
		json.RawMessage(`{"id":"t1","purpose":"second thoughts"}`)); err != nil {
		t.Fatalf("saveLocal failed: %v", err)
	}

	if err := env.coordinator.TriggerSync(ctx, "trips"); err != nil {
		t.Fatalf("triggerSync failed: %v", err)
	}

	if rem.deletes != 0 {
		t.Errorf("the superseded delete must never reach the remote, got %d deletes", rem.deletes)
	}
	if rem.upserts != 1 {
		t.Errorf("expected the re-created row uploaded, got %d upserts", rem.upserts)
	}
	meta, err := env.records.GetMeta(ctx, ent, "t1")
	if err != nil {
		t.Fatalf("getMeta failed: %v", err)
	}
	if !meta.Found {
		t.Fatal("the re-created row must survive the pass")
	}
	if meta.SyncStatus != models.SyncStatusSynced || meta.Version != 2 {
		t.Errorf("expected SYNCED at version 2, got %s at %d", meta.SyncStatus, meta.Version)
	}
	if got := env.tripPurpose(t, "t1"); got != "second thoughts" {
		t.Errorf("expected the edit kept, got %q", got)
	}
}

func TestTriggerSync_ExhaustedRetriesMarkRecordError(t *testing.T) {
	rem := &fakeRemote{
		upsertFunc: func(context.Context, string, string, json.RawMessage, int64) (remote.Change, error) {
			return remote.Change{}, errors.New("server rejects payload")
		},
	}
	env := newTestEnv(t, rem, 1)
	ctx := context.Background()
	ent := tripsEntity(t)

	if err := env.records.SaveLocal(ctx, ent, "t1",
		json.RawMessage(`{"id":"t1","purpose":"stuck"}`)); err != nil {
		t.Fatalf("saveLocal failed: %v", err)
	}

	if err := env.coordinator.TriggerSync(ctx, "trips"); err != nil {
		t.Fatalf("triggerSync failed: %v", err)
	}

	meta, err := env.records.GetMeta(ctx, ent, "t1")
	if err != nil {
		t.Fatalf("getMeta failed: %v", err)
	}
	if meta.SyncStatus != models.SyncStatusError {
		t.Errorf("an exhausted record must be marked ERROR, got %s", meta.SyncStatus)
	}

	var sawRecordError bool
	for _, ev := range env.events {
		if ev.Type == SyncEventRecordError && ev.EntityID == "t1" {
			sawRecordError = true
		}
	}
	if !sawRecordError {
		t.Error("exhaustion must be published to the observer")
	}

	// Exhausted operations never drain on the next pass.
	if err := env.coordinator.TriggerSync(ctx, "trips"); err != nil {
		t.Fatalf("second triggerSync failed: %v", err)
	}
	if rem.upserts != 1 {
		t.Errorf("expected no further upload attempts, got %d", rem.upserts)
	}

	// Manual resync path restores the record.
	if err := env.coordinator.RetryErrored(ctx, "trips"); err != nil {
		t.Fatalf("retryErrored failed: %v", err)
	}
	meta, err = env.records.GetMeta(ctx, ent, "t1")
	if err != nil {
		t.Fatalf("getMeta failed: %v", err)
	}
	if meta.SyncStatus != models.SyncStatusPendingUpload {
		t.Errorf("expected PENDING_UPLOAD after retry, got %s", meta.SyncStatus)
	}
	if err := env.coordinator.TriggerSync(ctx, "trips"); err != nil {
		t.Fatalf("third triggerSync failed: %v", err)
	}
	if rem.upserts != 2 {
		t.Errorf("expected the restored operation to upload again, got %d upserts", rem.upserts)
	}
}

func TestForceFullSync_RewindsWatermark(t *testing.T) {
	stamp := time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC)
	rem := &fakeRemote{
		getChangesFunc: func(context.Context, string, time.Time) ([]remote.Change, error) {
			return []remote.Change{
				{EntityType: "trips", EntityID: "t1", Action: remote.ActionUpsert,
					Payload: json.RawMessage(`{"id":"t1","purpose":"seed"}`), Version: 1, UpdatedAt: stamp},
			}, nil
		},
	}
	env := newTestEnv(t, rem, 5)
	ctx := context.Background()

	if err := env.coordinator.TriggerSync(ctx, "trips"); err != nil {
		t.Fatalf("triggerSync failed: %v", err)
	}
	if err := env.coordinator.ForceFullSync(ctx, "trips"); err != nil {
		t.Fatalf("forceFullSync failed: %v", err)
	}

	meta, err := env.meta.Get(ctx, "trips")
	if err != nil {
		t.Fatalf("metadata load failed: %v", err)
	}
	if !meta.LastSyncTimestamp.Equal(time.Unix(0, 0).UTC()) {
		t.Errorf("expected the watermark rewound to the epoch, got %v", meta.LastSyncTimestamp)
	}
	if meta.LastFullSyncTimestamp == nil {
		t.Error("expected the full-sync request to be stamped")
	}
}

func TestTriggerSync_UnknownEntityType(t *testing.T) {
	env := newTestEnv(t, &fakeRemote{}, 5)
	if err := env.coordinator.TriggerSync(context.Background(), "gadgets"); err == nil {
		t.Fatal("expected an error for an unregistered entity type")
	}
}
