package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/motium/motium-sync/internal/models"
)

// RecordMeta is the sync bookkeeping of one local record.
type RecordMeta struct {
	Version    int64
	SyncStatus models.SyncStatus
	Found      bool
}

// LocalRecordRepository performs generic, table-addressed operations on the
// locally mirrored entity tables. Rows are replaced with a single upsert
// statement keyed on id, so a concurrent reader never observes a torn record.
type LocalRecordRepository struct {
	db *gorm.DB
}

func NewLocalRecordRepository(db *gorm.DB) *LocalRecordRepository {
	return &LocalRecordRepository{db: db}
}

// bookkeeping columns are owned by the sync machinery, never taken from an
// incoming payload.
var syncColumns = map[string]bool{
	"local_updated_at":  true,
	"server_updated_at": true,
	"version":           true,
	"sync_status":       true,
	"deleted_at":        true,
}

// SaveLocal applies a local mutation in one transaction: upserts the domain
// columns, marks the record PENDING_UPLOAD, and enqueues the coalesced
// pending operation. The record's version is left untouched; it only moves
// on a confirmed round trip.
func (r *LocalRecordRepository) SaveLocal(ctx context.Context, ent models.EntityDescriptor, entityID string, payload json.RawMessage) error {
	domain, err := decodePayload(payload)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meta, err := getMetaTx(tx, ent.Table, entityID)
		if err != nil {
			return err
		}

		values := map[string]interface{}{}
		for k, v := range domain {
			values[k] = v
		}
		values["id"] = entityID
		values["local_updated_at"] = now
		values["sync_status"] = string(models.SyncStatusPendingUpload)
		values["deleted_at"] = nil
		if !meta.Found {
			values["version"] = int64(0)
		}

		update := updateColumns(values, "version", "server_updated_at")
		if err := upsertRow(tx, ent.Table, values, update); err != nil {
			return err
		}

		action := models.ActionUpdate
		if !meta.Found {
			action = models.ActionCreate
		}
		return enqueueTx(tx, ent.Name, entityID, action, payload)
	})
}

// DeleteLocal soft-deletes the record locally and enqueues the DELETE, which
// supersedes any earlier pending operation for the entity. The row is purged
// once the remote delete is confirmed.
func (r *LocalRecordRepository) DeleteLocal(ctx context.Context, ent models.EntityDescriptor, entityID string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Table(ent.Table).
			Where("id = ?", entityID).
			Updates(map[string]interface{}{
				"deleted_at":       &now,
				"local_updated_at": now,
				"sync_status":      string(models.SyncStatusPendingDelete),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark %s/%s deleted: %w", ent.Name, entityID, result.Error)
		}
		return enqueueTx(tx, ent.Name, entityID, models.ActionDelete, nil)
	})
}

// ApplyRemote upserts a downloaded row, overwriting local state with the
// remote one and marking the record SYNCED at the remote version. Callers
// are responsible for the pending-edit protection check beforehand.
func (r *LocalRecordRepository) ApplyRemote(ctx context.Context, ent models.EntityDescriptor, entityID string, payload json.RawMessage, version int64, serverUpdatedAt time.Time) error {
	domain, err := decodePayload(payload)
	if err != nil {
		return err
	}

	values := map[string]interface{}{}
	for k, v := range domain {
		values[k] = v
	}
	values["id"] = entityID
	values["version"] = version
	values["server_updated_at"] = serverUpdatedAt
	values["local_updated_at"] = serverUpdatedAt
	values["sync_status"] = string(models.SyncStatusSynced)
	values["deleted_at"] = nil

	return upsertRow(r.db.WithContext(ctx), ent.Table, values, updateColumns(values))
}

// Purge hard-deletes a local row (confirmed remote delete or a tombstone
// pulled from the feed).
func (r *LocalRecordRepository) Purge(ctx context.Context, ent models.EntityDescriptor, entityID string) error {
	result := r.db.WithContext(ctx).Exec(
		fmt.Sprintf("DELETE FROM %s WHERE id = ?", quoteIdent(ent.Table)), entityID)
	if result.Error != nil {
		return fmt.Errorf("failed to purge %s/%s: %w", ent.Name, entityID, result.Error)
	}
	return nil
}

// GetMeta returns the record's version and sync status.
func (r *LocalRecordRepository) GetMeta(ctx context.Context, ent models.EntityDescriptor, entityID string) (RecordMeta, error) {
	return getMetaTx(r.db.WithContext(ctx), ent.Table, entityID)
}

// MarkSynced stamps a record after a confirmed upload round trip.
func (r *LocalRecordRepository) MarkSynced(ctx context.Context, ent models.EntityDescriptor, entityID string, version int64, serverUpdatedAt time.Time) error {
	return r.setFields(ctx, ent, entityID, map[string]interface{}{
		"version":           version,
		"server_updated_at": serverUpdatedAt,
		"sync_status":       string(models.SyncStatusSynced),
	})
}

// AdvanceVersion stamps the server version after a round trip without
// touching the sync status. Used when an edit coalesced into the queue while
// the upload was in flight: the record stays PENDING_UPLOAD but must present
// the fresh version on its next upload.
func (r *LocalRecordRepository) AdvanceVersion(ctx context.Context, ent models.EntityDescriptor, entityID string, version int64, serverUpdatedAt time.Time) error {
	return r.setFields(ctx, ent, entityID, map[string]interface{}{
		"version":           version,
		"server_updated_at": serverUpdatedAt,
	})
}

// SetStatus flips a record's sync status (CONFLICT, ERROR, PENDING_UPLOAD).
func (r *LocalRecordRepository) SetStatus(ctx context.Context, ent models.EntityDescriptor, entityID string, status models.SyncStatus) error {
	return r.setFields(ctx, ent, entityID, map[string]interface{}{
		"sync_status": string(status),
	})
}

func (r *LocalRecordRepository) setFields(ctx context.Context, ent models.EntityDescriptor, entityID string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Table(ent.Table).
		Where("id = ?", entityID).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update %s/%s: %w", ent.Name, entityID, result.Error)
	}
	return nil
}

func getMetaTx(tx *gorm.DB, table, entityID string) (RecordMeta, error) {
	row := tx.Table(table).
		Select("version", "sync_status").
		Where("id = ?", entityID).
		Row()

	var meta RecordMeta
	var status string
	if err := row.Scan(&meta.Version, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RecordMeta{}, nil
		}
		return RecordMeta{}, fmt.Errorf("failed to read record meta: %w", err)
	}
	meta.SyncStatus = models.SyncStatus(status)
	meta.Found = true
	return meta, nil
}

// decodePayload unmarshals a row snapshot and drops bookkeeping keys and
// anything that is not a plain column identifier.
func decodePayload(payload json.RawMessage) (map[string]interface{}, error) {
	domain := map[string]interface{}{}
	if len(payload) == 0 {
		return domain, nil
	}
	if err := json.Unmarshal(payload, &domain); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	for k, v := range domain {
		if syncColumns[k] || !validIdent(k) {
			delete(domain, k)
			continue
		}
		// Nested structures have no column to land in.
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			delete(domain, k)
		}
	}
	return domain, nil
}

// upsertRow issues a single INSERT ... ON CONFLICT(id) DO UPDATE statement.
func upsertRow(tx *gorm.DB, table string, values map[string]interface{}, update []string) error {
	cols := make([]string, 0, len(values))
	for k := range values {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		placeholders[i] = "?"
		args[i] = values[c]
	}

	sets := make([]string, 0, len(update))
	for _, c := range update {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", quoteIdent(c), quoteIdent(c)))
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		quoteIdent(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(sets, ", "),
	)

	if err := tx.Exec(stmt, args...).Error; err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", table, err)
	}
	return nil
}

// updateColumns lists the columns an upsert should overwrite on conflict:
// everything except id and the listed exclusions.
func updateColumns(values map[string]interface{}, exclude ...string) []string {
	skip := map[string]bool{"id": true}
	for _, e := range exclude {
		skip[e] = true
	}
	cols := make([]string, 0, len(values))
	for k := range values {
		if !skip[k] {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	return cols
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func quoteIdent(s string) string {
	return `"` + s + `"`
}
