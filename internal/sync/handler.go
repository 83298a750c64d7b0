// Package sync replays locally queued mutations against the backend.
package sync

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/restohub/fieldsync/internal/api"
	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
	uuidgen "github.com/restohub/fieldsync/internal/uuid"
)

// Handler replays one entity type's queued operations. Implementations
// switch on the entry's operation kind (CREATE, UPDATE, DELETE) and
// report an Outcome; the dispatcher owns the entry's fate.
type Handler interface {
	Handle(ctx context.Context, op *models.SyncOperation) (Outcome, error)
}

// AssemblyTrigger lets the room handler kick the upload pipeline once a
// room gains its server id; waiting assemblies may now be promotable.
type AssemblyTrigger interface {
	ProcessNext(ctx context.Context)
}

// EssentialsRefresher pulls fresh server ids for a project's subtree.
// Implementations refresh each project at most once per drain so a batch
// of skipping children costs one fetch, not one per child.
type EssentialsRefresher interface {
	RefreshOnce(ctx context.Context, projectUUID models.UUID)
}

// Env bundles the dependencies shared by all push handlers.
type Env struct {
	Store      *store.Store
	API        *api.Client
	Refresher  EssentialsRefresher
	Assemblies AssemblyTrigger

	// assemblyKick defers the upload-pipeline nudge to the end of the
	// drain. ProcessNext takes the same mutex the drain holds, so a
	// handler calling it directly would deadlock its own goroutine.
	assemblyKick atomic.Bool
}

// resolveServerID looks up the server id recorded for an entity.
// Returns 0 when the entity is unknown or has not been pushed yet.
func (e *Env) resolveServerID(table string, uuid models.UUID) (int64, error) {
	if uuid == "" {
		return 0, nil
	}
	id, err := e.Store.ServerIDByUUID(table, uuid)
	if store.IsNotFound(err) {
		return 0, nil
	}
	return id, err
}

// resolveWithRefresh resolves a parent server id, falling back to one
// best-effort project-essentials refresh when the plain lookup misses.
func (e *Env) resolveWithRefresh(ctx context.Context, table string, uuid, projectUUID models.UUID) (int64, error) {
	id, err := e.resolveServerID(table, uuid)
	if err != nil || id > 0 {
		return id, err
	}
	if e.Refresher != nil && projectUUID != "" {
		e.Refresher.RefreshOnce(ctx, projectUUID)
		return e.resolveServerID(table, uuid)
	}
	return 0, nil
}

// tableFor maps a queue entity type to its table name.
func tableFor(entityType string) string {
	switch entityType {
	case models.EntityProject:
		return "projects"
	case models.EntityProperty:
		return "properties"
	case models.EntityLocation:
		return "locations"
	case models.EntityRoom:
		return "rooms"
	case models.EntityPhoto:
		return "photos"
	case models.EntityNote:
		return "notes"
	case models.EntityEquipment:
		return "equipment"
	case models.EntityMoistureLog:
		return "moisture_logs"
	case models.EntityAtmosphericLog:
		return "atmospheric_logs"
	case models.EntityConversation:
		return "support_conversations"
	case models.EntitySupportMessage:
		return "support_messages"
	}
	return ""
}

// recordConflict persists a conflict record for a persistent 409 and
// flags the entity for user resolution.
func (e *Env) recordConflict(entityType string, entityID int64, uuid models.UUID, local, remote map[string]interface{}) error {
	lv, err := json.Marshal(local)
	if err != nil {
		return err
	}
	rv, err := json.Marshal(remote)
	if err != nil {
		return err
	}
	rec := &models.ConflictRecord{
		ConflictID:    uuidgen.New(),
		EntityType:    entityType,
		EntityID:      entityID,
		EntityUUID:    uuid,
		ConflictType:  models.ConflictUpdate,
		LocalVersion:  lv,
		RemoteVersion: rv,
	}
	if err := e.Store.InsertConflict(rec); err != nil {
		return err
	}
	return e.Store.SetEntityStatus(tableFor(entityType), uuid, models.SyncStatusConflict)
}
