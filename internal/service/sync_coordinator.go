package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/motium/motium-sync/internal/models"
	"github.com/motium/motium-sync/internal/remote"
	"github.com/motium/motium-sync/internal/repository"
)

type SyncEventType string

const (
	SyncEventConflict     SyncEventType = "conflict"
	SyncEventRecordError  SyncEventType = "record_error"
	SyncEventPassComplete SyncEventType = "pass_complete"
)

// SyncEvent is published to the observer so the UI layer can surface
// discarded edits and exhausted retries without polling.
type SyncEvent struct {
	Type       SyncEventType
	EntityType string
	EntityID   string
	Err        error
}

type SyncObserver func(SyncEvent)

// SyncCoordinator orchestrates one synchronization pass per entity type:
// drain the pending-operation queue upward, pull the delta feed downward,
// resolve conflicts last-write-wins on the server version, and advance the
// watermark. It is safe to trigger concurrently from multiple places; the
// per-type sync_in_progress flag makes overlapping triggers no-ops.
type SyncCoordinator struct {
	records  *repository.LocalRecordRepository
	ops      *repository.PendingOperationRepository
	meta     *repository.SyncMetadataRepository
	remote   remote.Store
	logger   *log.Logger
	observer SyncObserver

	batchSize  int
	maxRetries int
}

func NewSyncCoordinator(
	records *repository.LocalRecordRepository,
	ops *repository.PendingOperationRepository,
	meta *repository.SyncMetadataRepository,
	remoteStore remote.Store,
	logger *log.Logger,
	batchSize int,
	maxRetries int,
) *SyncCoordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &SyncCoordinator{
		records:    records,
		ops:        ops,
		meta:       meta,
		remote:     remoteStore,
		logger:     logger,
		batchSize:  batchSize,
		maxRetries: maxRetries,
	}
}

// SetObserver registers the published-state hook. Pass nil to detach.
func (c *SyncCoordinator) SetObserver(obs SyncObserver) {
	c.observer = obs
}

func (c *SyncCoordinator) notify(ev SyncEvent) {
	if c.observer != nil {
		c.observer(ev)
	}
}

// TriggerSync runs one pass for the entity type. If a pass is already in
// progress the call returns immediately without queuing; callers wanting the
// result of the running pass observe the local store instead.
//
// Sync failures are never fatal: per-operation upload errors retry with
// backoff, and a download error aborts the pass with the watermark
// untouched, so the next pass replays the same window.
func (c *SyncCoordinator) TriggerSync(ctx context.Context, entityType string) error {
	ent, ok := models.EntityByName(entityType)
	if !ok {
		return fmt.Errorf("unknown sync entity type %q", entityType)
	}

	acquired, meta, err := c.meta.Begin(ctx, entityType)
	if err != nil {
		return err
	}
	if !acquired {
		c.logger.Printf("Sync already in progress for %s, skipping", entityType)
		return nil
	}

	var (
		applied   int64
		watermark *time.Time
		passErr   error
	)

	passErr = c.uploadPhase(ctx, ent)
	if passErr == nil {
		applied, watermark, passErr = c.downloadPhase(ctx, ent, meta.LastSyncTimestamp)
	}

	// The guard must be released even when ctx was canceled mid-pass.
	finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.meta.Finish(finishCtx, entityType, watermark, applied, passErr); err != nil {
		c.logger.Printf("Failed to release sync guard for %s: %v", entityType, err)
	}

	if passErr != nil {
		c.logger.Printf("Sync pass for %s aborted: %v", entityType, passErr)
	} else {
		c.logger.Printf("Sync pass for %s complete: %d change(s) applied", entityType, applied)
	}
	c.notify(SyncEvent{Type: SyncEventPassComplete, EntityType: entityType, Err: passErr})
	return passErr
}

// SyncAll runs a pass for every registered entity type, highest priority
// first. Per-type failures are logged and do not stop the remaining types.
func (c *SyncCoordinator) SyncAll(ctx context.Context) {
	entities := make([]models.EntityDescriptor, len(models.SyncEntities))
	copy(entities, models.SyncEntities)
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Priority > entities[j].Priority
	})

	for _, ent := range entities {
		if ctx.Err() != nil {
			return
		}
		if err := c.TriggerSync(ctx, ent.Name); err != nil {
			c.logger.Printf("Sync failed for %s: %v", ent.Name, err)
		}
	}
}

func (c *SyncCoordinator) uploadPhase(ctx context.Context, ent models.EntityDescriptor) error {
	ops, err := c.ops.Drain(ctx, ent.Name, c.batchSize)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.uploadOne(ctx, ent, op); err != nil {
			return err
		}
	}
	return nil
}

// uploadOne performs one remote write. Transient failures are recorded on
// the operation and do not abort the pass; only local-store errors do.
func (c *SyncCoordinator) uploadOne(ctx context.Context, ent models.EntityDescriptor, op models.PendingOperation) error {
	meta, err := c.records.GetMeta(ctx, ent, op.EntityID)
	if err != nil {
		return err
	}

	if op.Action != models.ActionDelete && !meta.Found {
		// The record vanished locally after the edit; nothing to upload.
		_, err := c.ops.MarkSucceeded(ctx, op.ID, op.Revision)
		return err
	}

	var (
		change    remote.Change
		remoteErr error
	)
	if op.Action == models.ActionDelete {
		change, remoteErr = c.remote.Delete(ctx, ent.Name, op.EntityID, meta.Version)
	} else {
		change, remoteErr = c.remote.Upsert(ctx, ent.Name, op.EntityID, op.Payload, meta.Version)
	}

	if vc, ok := remote.AsVersionConflict(remoteErr); ok {
		return c.resolveConflict(ctx, ent, op, vc)
	}
	if remoteErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		exhausted, err := c.ops.MarkFailed(ctx, op, remoteErr, c.maxRetries)
		if err != nil {
			return err
		}
		if exhausted {
			if err := c.records.SetStatus(ctx, ent, op.EntityID, models.SyncStatusError); err != nil {
				return err
			}
			c.notify(SyncEvent{Type: SyncEventRecordError, EntityType: ent.Name, EntityID: op.EntityID, Err: remoteErr})
		}
		c.logger.Printf("Upload of %s/%s failed (attempt %d): %v", ent.Name, op.EntityID, op.RetryCount+1, remoteErr)
		return nil
	}

	consumed, err := c.ops.MarkSucceeded(ctx, op.ID, op.Revision)
	if err != nil {
		return err
	}

	if op.Action == models.ActionDelete {
		if consumed {
			return c.records.Purge(ctx, ent, op.EntityID)
		}
		return nil
	}

	if consumed {
		return c.records.MarkSynced(ctx, ent, op.EntityID, change.Version, change.UpdatedAt)
	}
	// An edit coalesced in while the upload was in flight: the record stays
	// PENDING_UPLOAD, but it must present the fresh server version next time.
	return c.records.AdvanceVersion(ctx, ent, op.EntityID, change.Version, change.UpdatedAt)
}

// resolveConflict applies the last-write-wins rule: the remote row is ahead,
// so the local change is discarded and the remote value replaces it. The
// discard is published to the observer, never silently swallowed.
func (c *SyncCoordinator) resolveConflict(ctx context.Context, ent models.EntityDescriptor, op models.PendingOperation, vc *remote.VersionConflictError) error {
	if _, err := c.ops.MarkSucceeded(ctx, op.ID, op.Revision); err != nil {
		return err
	}
	if err := c.records.SetStatus(ctx, ent, op.EntityID, models.SyncStatusConflict); err != nil {
		return err
	}
	if err := c.applyChange(ctx, ent, vc.Current); err != nil {
		return err
	}
	c.logger.Printf("Conflict on %s/%s: local change discarded in favor of remote version %d",
		ent.Name, op.EntityID, vc.Current.Version)
	c.notify(SyncEvent{Type: SyncEventConflict, EntityType: ent.Name, EntityID: op.EntityID})
	return nil
}

func (c *SyncCoordinator) downloadPhase(ctx context.Context, ent models.EntityDescriptor, since time.Time) (int64, *time.Time, error) {
	changes, err := c.remote.GetChanges(ctx, ent.Name, since)
	if err != nil {
		return 0, nil, err
	}
	if len(changes) == 0 {
		return 0, nil, nil
	}

	var (
		applied int64
		maxSeen time.Time
	)
	for _, ch := range changes {
		if ctx.Err() != nil {
			return applied, nil, ctx.Err()
		}

		meta, err := c.records.GetMeta(ctx, ent, ch.EntityID)
		if err != nil {
			return applied, nil, err
		}
		inFlight := meta.Found &&
			(meta.SyncStatus == models.SyncStatusPendingUpload || meta.SyncStatus == models.SyncStatusPendingDelete)
		if inFlight && meta.Version >= ch.Version {
			// Local edit has not round-tripped yet; a stale pull must not
			// clobber it.
			if ch.UpdatedAt.After(maxSeen) {
				maxSeen = ch.UpdatedAt
			}
			continue
		}

		if err := c.applyChange(ctx, ent, ch); err != nil {
			return applied, nil, err
		}
		applied++
		if ch.UpdatedAt.After(maxSeen) {
			maxSeen = ch.UpdatedAt
		}
	}

	// The watermark advances to the newest server timestamp observed in the
	// batch, not to now: a record updated remotely after the query's bound
	// must fall into the next window.
	return applied, &maxSeen, nil
}

func (c *SyncCoordinator) applyChange(ctx context.Context, ent models.EntityDescriptor, ch remote.Change) error {
	if ch.Action == remote.ActionDelete {
		return c.records.Purge(ctx, ent, ch.EntityID)
	}
	return c.records.ApplyRemote(ctx, ent, ch.EntityID, ch.Payload, ch.Version, ch.UpdatedAt)
}

// RetryErrored is the manual-resync path: exhausted operations get their
// retry budget back and their records leave ERROR, so the next pass drains
// them again.
func (c *SyncCoordinator) RetryErrored(ctx context.Context, entityType string) error {
	ent, ok := models.EntityByName(entityType)
	if !ok {
		return fmt.Errorf("unknown sync entity type %q", entityType)
	}
	ids, err := c.ops.ResetExhausted(ctx, entityType)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := c.records.SetStatus(ctx, ent, id, models.SyncStatusPendingUpload); err != nil {
			return err
		}
	}
	return nil
}

// ForceFullSync rewinds the watermark so the next pass re-downloads the
// entity type from scratch.
func (c *SyncCoordinator) ForceFullSync(ctx context.Context, entityType string) error {
	if _, ok := models.EntityByName(entityType); !ok {
		return fmt.Errorf("unknown sync entity type %q", entityType)
	}
	return c.meta.ForceFullSync(ctx, entityType)
}
