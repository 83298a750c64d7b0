// Package conflict exposes recorded sync conflicts for user resolution.
package conflict

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	stdsync "sync"
	"time"

	"github.com/restohub/fieldsync/internal/errors"
	"github.com/restohub/fieldsync/internal/logging"
	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
)

// lockStampFormat is the wire format of the server's updatedAt field.
const lockStampFormat = "2006-01-02T15:04:05.000Z"

// Enqueuer re-enqueues entity mutations after a keep-local resolution.
// *sync.Processor satisfies it.
type Enqueuer interface {
	EnqueueProject(operation models.OperationType, proj *models.Project) error
	EnqueueProperty(operation models.OperationType, prop *models.Property) error
	EnqueueLocation(operation models.OperationType, loc *models.Location) error
	EnqueueRoom(operation models.OperationType, room *models.Room) error
	EnqueueNote(operation models.OperationType, note *models.Note) error
	EnqueueEquipment(operation models.OperationType, eq *models.Equipment) error
	EnqueueMoistureLog(operation models.OperationType, ml *models.MoistureLog) error
	EnqueueAtmosphericLog(operation models.OperationType, al *models.AtmosphericLog) error
}

// Item is a conflict joined with the display context a resolution UI
// needs: what the entity is called, which project it belongs to, and
// which fields actually differ.
type Item struct {
	Record        *models.ConflictRecord
	EntityName    string
	ProjectName   string
	ChangedFields []string
}

// Repository surfaces unresolved conflicts and applies user decisions.
type Repository struct {
	store *store.Store
	queue Enqueuer

	mu   stdsync.Mutex
	subs map[chan []Item]struct{}
}

// NewRepository creates a conflict repository.
func NewRepository(st *store.Store, queue Enqueuer) *Repository {
	return &Repository{
		store: st,
		queue: queue,
		subs:  make(map[chan []Item]struct{}),
	}
}

// Observe returns a channel that receives the unresolved conflict list
// immediately and again after every repository mutation. The channel
// closes when ctx is cancelled. Slow consumers only ever see the latest
// snapshot; stale ones are dropped.
func (r *Repository) Observe(ctx context.Context) <-chan []Item {
	ch := make(chan []Item, 1)

	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	items, err := r.snapshot()
	if err != nil {
		logging.Error("Failed to load conflict snapshot", err)
	} else {
		ch <- items
	}

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subs, ch)
		r.mu.Unlock()
		close(ch)
	}()
	return ch
}

// UnresolvedCount returns the number of recorded conflicts.
func (r *Repository) UnresolvedCount(ctx context.Context) (int, error) {
	return r.store.CountConflicts()
}

// ResolveKeepLocal pushes the local version again: the entity gets a
// freshly minted lock stamp so the server accepts the overwrite, and the
// mutation is re-enqueued. Refused once the record's requeue budget is
// spent; the caller should then pick keep-server or dismiss.
func (r *Repository) ResolveKeepLocal(ctx context.Context, conflictID string) error {
	rec, err := r.store.GetConflict(conflictID)
	if err != nil {
		return err
	}
	if !rec.CanRequeue() {
		return errors.New(errors.ErrConflict,
			fmt.Sprintf("conflict %s exceeded %d keep-local attempts", conflictID, models.MaxRequeueAttempts))
	}
	if err := r.store.IncrementConflictRequeue(conflictID); err != nil {
		return err
	}

	freshLock := time.Now().UTC().Format(lockStampFormat)
	if err := r.requeueLocal(rec, freshLock); err != nil {
		return err
	}
	if err := r.store.DeleteConflict(conflictID); err != nil {
		return err
	}
	logging.Info("Conflict resolved keeping local version", map[string]interface{}{
		"conflict_id": conflictID,
		"entity_type": rec.EntityType,
		"entity_uuid": string(rec.EntityUUID),
	})
	r.notify()
	return nil
}

// ResolveKeepServer accepts the remote version: its fields are applied
// to the local row and the entity goes back to SYNCED.
func (r *Repository) ResolveKeepServer(ctx context.Context, conflictID string) error {
	rec, err := r.store.GetConflict(conflictID)
	if err != nil {
		return err
	}
	remote := map[string]interface{}{}
	if len(rec.RemoteVersion) > 0 {
		if err := json.Unmarshal(rec.RemoteVersion, &remote); err != nil {
			return errors.Wrap(errors.ErrInternal, "malformed remote conflict snapshot", err)
		}
	}
	if err := r.applyRemote(rec, remote); err != nil {
		return err
	}
	if err := r.store.DeleteConflict(conflictID); err != nil {
		return err
	}
	logging.Info("Conflict resolved keeping server version", map[string]interface{}{
		"conflict_id": conflictID,
		"entity_type": rec.EntityType,
		"entity_uuid": string(rec.EntityUUID),
	})
	r.notify()
	return nil
}

// Dismiss drops the record without touching the entity; it stays in
// CONFLICT until some later edit re-enters the queue.
func (r *Repository) Dismiss(ctx context.Context, conflictID string) error {
	if err := r.store.DeleteConflict(conflictID); err != nil {
		return err
	}
	r.notify()
	return nil
}

// requeueLocal stamps the entity with a fresh lock, marks it dirty and
// re-enqueues its UPDATE. The payload carries the record's local
// snapshot, the version the user actually saw when they picked
// keep-local; the row may have moved on since detection.
func (r *Repository) requeueLocal(rec *models.ConflictRecord, freshLock string) error {
	table := tableFor(rec.EntityType)
	if table == "" {
		return errors.New(errors.ErrInvalid, fmt.Sprintf("unknown conflict entity type %q", rec.EntityType))
	}
	local := map[string]interface{}{}
	if len(rec.LocalVersion) > 0 {
		if err := json.Unmarshal(rec.LocalVersion, &local); err != nil {
			return errors.Wrap(errors.ErrInternal, "malformed local conflict snapshot", err)
		}
	}
	if err := r.store.SetLockTimestamp(table, rec.EntityUUID, freshLock); err != nil {
		return err
	}
	if err := r.store.MarkEntityDirty(table, rec.EntityUUID); err != nil {
		return err
	}

	switch rec.EntityType {
	case models.EntityProject:
		proj, err := r.store.GetProjectByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		proj.Name = stringField(local, "name", proj.Name)
		proj.Alias = stringField(local, "alias", proj.Alias)
		return r.queue.EnqueueProject(models.OpUpdate, proj)
	case models.EntityProperty:
		prop, err := r.store.GetPropertyByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		prop.Name = stringField(local, "name", prop.Name)
		return r.queue.EnqueueProperty(models.OpUpdate, prop)
	case models.EntityLocation:
		loc, err := r.store.GetLocationByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		loc.Name = stringField(local, "name", loc.Name)
		return r.queue.EnqueueLocation(models.OpUpdate, loc)
	case models.EntityRoom:
		room, err := r.store.GetRoomByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		room.Name = stringField(local, "name", room.Name)
		room.RoomType = stringField(local, "roomType", room.RoomType)
		return r.queue.EnqueueRoom(models.OpUpdate, room)
	case models.EntityNote:
		note, err := r.store.GetNoteByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		note.Body = stringField(local, "body", note.Body)
		return r.queue.EnqueueNote(models.OpUpdate, note)
	case models.EntityEquipment:
		eq, err := r.store.GetEquipmentByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		eq.Name = stringField(local, "name", eq.Name)
		eq.EquipmentType = stringField(local, "equipmentType", eq.EquipmentType)
		if q, ok := local["quantity"].(float64); ok {
			eq.Quantity = int(q)
		}
		return r.queue.EnqueueEquipment(models.OpUpdate, eq)
	case models.EntityMoistureLog:
		ml, err := r.store.GetMoistureLogByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		ml.MaterialName = stringField(local, "materialName", ml.MaterialName)
		if v, ok := local["reading"].(float64); ok {
			ml.Reading = v
		}
		return r.queue.EnqueueMoistureLog(models.OpUpdate, ml)
	case models.EntityAtmosphericLog:
		al, err := r.store.GetAtmosphericLogByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		if v, ok := local["temperatureC"].(float64); ok {
			al.TemperatureC = v
		}
		if v, ok := local["relativeHumidity"].(float64); ok {
			al.RelativeHumidity = v
		}
		if v, ok := local["grainsPerPound"].(float64); ok {
			al.GrainsPerPound = v
		}
		return r.queue.EnqueueAtmosphericLog(models.OpUpdate, al)
	}
	return errors.New(errors.ErrInvalid, fmt.Sprintf("entity type %q cannot be re-enqueued", rec.EntityType))
}

// applyRemote writes the remote snapshot's mutable fields onto the local
// row and marks it clean.
func (r *Repository) applyRemote(rec *models.ConflictRecord, remote map[string]interface{}) error {
	table := tableFor(rec.EntityType)
	if table == "" {
		return errors.New(errors.ErrInvalid, fmt.Sprintf("unknown conflict entity type %q", rec.EntityType))
	}

	switch rec.EntityType {
	case models.EntityProject:
		proj, err := r.store.GetProjectByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		proj.Name = stringField(remote, "name", proj.Name)
		proj.Alias = stringField(remote, "alias", proj.Alias)
		if err := r.store.UpdateProject(proj); err != nil {
			return err
		}
	case models.EntityProperty:
		prop, err := r.store.GetPropertyByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		prop.Name = stringField(remote, "name", prop.Name)
		if err := r.store.UpdateProperty(prop); err != nil {
			return err
		}
	case models.EntityLocation:
		loc, err := r.store.GetLocationByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		loc.Name = stringField(remote, "name", loc.Name)
		if err := r.store.UpdateLocation(loc); err != nil {
			return err
		}
	case models.EntityRoom:
		room, err := r.store.GetRoomByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		room.Name = stringField(remote, "name", room.Name)
		room.RoomType = stringField(remote, "roomType", room.RoomType)
		if err := r.store.UpdateRoom(room); err != nil {
			return err
		}
	case models.EntityNote:
		note, err := r.store.GetNoteByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		note.Body = stringField(remote, "body", note.Body)
		if err := r.store.UpdateNote(note); err != nil {
			return err
		}
	case models.EntityEquipment:
		eq, err := r.store.GetEquipmentByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		eq.Name = stringField(remote, "name", eq.Name)
		eq.EquipmentType = stringField(remote, "equipmentType", eq.EquipmentType)
		if q, ok := remote["quantity"].(float64); ok {
			eq.Quantity = int(q)
		}
		if err := r.store.UpdateEquipment(eq); err != nil {
			return err
		}
	case models.EntityMoistureLog:
		ml, err := r.store.GetMoistureLogByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		ml.MaterialName = stringField(remote, "materialName", ml.MaterialName)
		if v, ok := remote["reading"].(float64); ok {
			ml.Reading = v
		}
		if err := r.store.UpdateMoistureLog(ml); err != nil {
			return err
		}
	case models.EntityAtmosphericLog:
		al, err := r.store.GetAtmosphericLogByUUID(rec.EntityUUID)
		if err != nil {
			return err
		}
		if v, ok := remote["temperatureC"].(float64); ok {
			al.TemperatureC = v
		}
		if v, ok := remote["relativeHumidity"].(float64); ok {
			al.RelativeHumidity = v
		}
		if v, ok := remote["grainsPerPound"].(float64); ok {
			al.GrainsPerPound = v
		}
		if err := r.store.UpdateAtmosphericLog(al); err != nil {
			return err
		}
	default:
		return errors.New(errors.ErrInvalid, fmt.Sprintf("entity type %q cannot accept a server version", rec.EntityType))
	}

	return r.store.MarkEntitySynced(table, rec.EntityUUID, 0, stringField(remote, "updatedAt", ""))
}

// snapshot loads all unresolved conflicts joined with display context.
func (r *Repository) snapshot() ([]Item, error) {
	recs, err := r.store.ListConflicts()
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(recs))
	for _, rec := range recs {
		items = append(items, Item{
			Record:        rec,
			EntityName:    r.entityName(rec),
			ProjectName:   r.projectName(rec),
			ChangedFields: ChangedFields(rec.LocalVersion, rec.RemoteVersion),
		})
	}
	return items, nil
}

// notify pushes a fresh snapshot to every observer, replacing any
// snapshot they have not consumed yet.
func (r *Repository) notify() {
	items, err := r.snapshot()
	if err != nil {
		logging.Error("Failed to load conflict snapshot", err)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- items:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- items
		}
	}
}

// entityName resolves a human-readable label for the conflicted entity.
func (r *Repository) entityName(rec *models.ConflictRecord) string {
	switch rec.EntityType {
	case models.EntityProject:
		if p, err := r.store.GetProjectByUUID(rec.EntityUUID); err == nil {
			return p.Name
		}
	case models.EntityProperty:
		if p, err := r.store.GetPropertyByUUID(rec.EntityUUID); err == nil {
			return p.Name
		}
	case models.EntityLocation:
		if l, err := r.store.GetLocationByUUID(rec.EntityUUID); err == nil {
			return l.Name
		}
	case models.EntityRoom:
		if rm, err := r.store.GetRoomByUUID(rec.EntityUUID); err == nil {
			return rm.Name
		}
	case models.EntityNote:
		if n, err := r.store.GetNoteByUUID(rec.EntityUUID); err == nil {
			return truncate(n.Body, 40)
		}
	case models.EntityEquipment:
		if e, err := r.store.GetEquipmentByUUID(rec.EntityUUID); err == nil {
			return e.Name
		}
	case models.EntityMoistureLog:
		if m, err := r.store.GetMoistureLogByUUID(rec.EntityUUID); err == nil {
			return m.MaterialName
		}
	case models.EntityAtmosphericLog:
		return "Atmospheric reading"
	}
	return string(rec.EntityUUID)
}

// projectName resolves the owning project's name, "" when unknown.
func (r *Repository) projectName(rec *models.ConflictRecord) string {
	var projectUUID models.UUID
	switch rec.EntityType {
	case models.EntityProject:
		projectUUID = rec.EntityUUID
	case models.EntityProperty:
		if p, err := r.store.GetPropertyByUUID(rec.EntityUUID); err == nil {
			projectUUID = p.ProjectUUID
		}
	case models.EntityLocation:
		if l, err := r.store.GetLocationByUUID(rec.EntityUUID); err == nil {
			projectUUID = l.ProjectUUID
		}
	case models.EntityRoom:
		if rm, err := r.store.GetRoomByUUID(rec.EntityUUID); err == nil {
			projectUUID = rm.ProjectUUID
		}
	case models.EntityNote:
		if n, err := r.store.GetNoteByUUID(rec.EntityUUID); err == nil {
			projectUUID = n.ProjectUUID
		}
	case models.EntityEquipment:
		if e, err := r.store.GetEquipmentByUUID(rec.EntityUUID); err == nil {
			projectUUID = e.ProjectUUID
		}
	case models.EntityMoistureLog:
		if m, err := r.store.GetMoistureLogByUUID(rec.EntityUUID); err == nil {
			projectUUID = m.ProjectUUID
		}
	case models.EntityAtmosphericLog:
		if a, err := r.store.GetAtmosphericLogByUUID(rec.EntityUUID); err == nil {
			projectUUID = a.ProjectUUID
		}
	}
	if projectUUID == "" {
		return ""
	}
	if p, err := r.store.GetProjectByUUID(projectUUID); err == nil {
		return p.Name
	}
	return ""
}

// bookkeepingKeys never count as user-visible differences.
var bookkeepingKeys = map[string]struct{}{
	"updatedAt":     {},
	"lastSyncedAt":  {},
	"isDirty":       {},
	"syncStatus":    {},
	"lockUpdatedAt": {},
}

// ChangedFields diffs two JSON field snapshots and returns the sorted
// keys whose values differ, bookkeeping keys excluded.
func ChangedFields(local, remote json.RawMessage) []string {
	lm := map[string]interface{}{}
	rm := map[string]interface{}{}
	if len(local) > 0 {
		_ = json.Unmarshal(local, &lm)
	}
	if len(remote) > 0 {
		_ = json.Unmarshal(remote, &rm)
	}

	keys := map[string]struct{}{}
	for k := range lm {
		keys[k] = struct{}{}
	}
	for k := range rm {
		keys[k] = struct{}{}
	}

	var changed []string
	for k := range keys {
		if _, skip := bookkeepingKeys[k]; skip {
			continue
		}
		if fmt.Sprintf("%v", lm[k]) != fmt.Sprintf("%v", rm[k]) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// tableFor maps a conflict entity type to its table name.
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
	case models.EntityNote:
		return "notes"
	case models.EntityEquipment:
		return "equipment"
	case models.EntityMoistureLog:
		return "moisture_logs"
	case models.EntityAtmosphericLog:
		return "atmospheric_logs"
	}
	return ""
}

func stringField(m map[string]interface{}, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
