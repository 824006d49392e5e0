// Package remote defines the hosted store the sync coordinator talks to:
// a delta-changes feed plus per-entity writes conditioned on the server's
// version counter for optimistic locking.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// Change is one row of the delta feed.
type Change struct {
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Action     string          `json:"action"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Version    int64           `json:"version"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// VersionConflictError is returned when a write presents a version older than
// the server's current one. It carries the current remote row so the caller
// can pull it down without a second round trip.
type VersionConflictError struct {
	Current Change
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s/%s: remote version %d is ahead",
		e.Current.EntityType, e.Current.EntityID, e.Current.Version)
}

// AsVersionConflict unwraps err into a VersionConflictError if it is one.
func AsVersionConflict(err error) (*VersionConflictError, bool) {
	var vc *VersionConflictError
	if errors.As(err, &vc) {
		return vc, true
	}
	return nil, false
}

// Store is the remote side of synchronization.
//
// GetChanges returns all rows of entityType with server_updated_at strictly
// after since, tombstones included, ordered by server_updated_at ascending.
//
// Upsert and Delete present the client's last round-tripped version; if the
// server's stored version is strictly greater the write is rejected with
// VersionConflictError instead of being silently overwritten. An accepted
// write bumps the version and stamps server_updated_at server-side, and the
// resulting row is returned. Deleting a row the server never saw is a no-op
// success (a created-then-deleted record that never uploaded).
type Store interface {
	GetChanges(ctx context.Context, entityType string, since time.Time) ([]Change, error)
	Upsert(ctx context.Context, entityType, entityID string, payload json.RawMessage, clientVersion int64) (Change, error)
	Delete(ctx context.Context, entityType, entityID string, clientVersion int64) (Change, error)
}
