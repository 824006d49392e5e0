package models

import "time"

type SyncStatus string

const (
	SyncStatusSynced        SyncStatus = "SYNCED"
	SyncStatusPendingUpload SyncStatus = "PENDING_UPLOAD"
	SyncStatusPendingDelete SyncStatus = "PENDING_DELETE"
	SyncStatusConflict      SyncStatus = "CONFLICT"
	SyncStatusError         SyncStatus = "ERROR"
)

// SyncFields is the bookkeeping mixin embedded in every locally mirrored entity.
//
// A record with SyncStatus SYNCED has no unsynced local changes, i.e.
// LocalUpdatedAt <= ServerUpdatedAt. Version is the optimistic-lock token:
// it always holds the last server version this record round-tripped at, and
// is only ever advanced by the sync coordinator after a confirmed upload or
// an applied download.
type SyncFields struct {
	LocalUpdatedAt  time.Time  `gorm:"column:local_updated_at" json:"local_updated_at"`
	ServerUpdatedAt *time.Time `gorm:"column:server_updated_at" json:"server_updated_at"`
	Version         int64      `gorm:"column:version" json:"version"`
	SyncStatus      SyncStatus `gorm:"column:sync_status;index" json:"sync_status"`
	DeletedAt       *time.Time `gorm:"column:deleted_at" json:"deleted_at"`
}

// EntityDescriptor ties a syncable entity type to its local table.
// Priority orders sync passes when the watcher iterates all types.
type EntityDescriptor struct {
	Name     string
	Table    string
	Priority int
}

// SyncEntities lists every entity type that participates in delta sync.
// Users first: license/subscription changes land there and gate the rest
// of the app, so they should be the freshest after a pass over all types.
var SyncEntities = []EntityDescriptor{
	{Name: "users", Table: "users", Priority: 10},
	{Name: "vehicles", Table: "vehicles", Priority: 5},
	{Name: "trips", Table: "trips", Priority: 5},
	{Name: "expenses", Table: "expenses", Priority: 4},
	{Name: "work_schedules", Table: "work_schedules", Priority: 3},
	{Name: "company_links", Table: "company_links", Priority: 3},
}

// EntityByName looks up a sync entity descriptor by its type name.
func EntityByName(name string) (EntityDescriptor, bool) {
	for _, e := range SyncEntities {
		if e.Name == name {
			return e, true
		}
	}
	return EntityDescriptor{}, false
}
