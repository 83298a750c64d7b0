// Package conflict tests for conflict resolution.
package conflict

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
	"github.com/restohub/fieldsync/internal/uuid"
)

// fakeEnqueuer records re-enqueue calls.
type fakeEnqueuer struct {
	projects     []models.UUID
	projectNames []string
	rooms        []models.UUID
	notes        []models.UUID
}

func (f *fakeEnqueuer) EnqueueProject(op models.OperationType, p *models.Project) error {
	f.projects = append(f.projects, p.UUID)
	f.projectNames = append(f.projectNames, p.Name)
	return nil
}
func (f *fakeEnqueuer) EnqueueProperty(op models.OperationType, p *models.Property) error {
	return nil
}
func (f *fakeEnqueuer) EnqueueLocation(op models.OperationType, l *models.Location) error {
	return nil
}
func (f *fakeEnqueuer) EnqueueRoom(op models.OperationType, r *models.Room) error {
	f.rooms = append(f.rooms, r.UUID)
	return nil
}
func (f *fakeEnqueuer) EnqueueNote(op models.OperationType, n *models.Note) error {
	f.notes = append(f.notes, n.UUID)
	return nil
}
func (f *fakeEnqueuer) EnqueueEquipment(op models.OperationType, e *models.Equipment) error {
	return nil
}
func (f *fakeEnqueuer) EnqueueMoistureLog(op models.OperationType, m *models.MoistureLog) error {
	return nil
}
func (f *fakeEnqueuer) EnqueueAtmosphericLog(op models.OperationType, a *models.AtmosphericLog) error {
	return nil
}

func newTestRepository(t *testing.T) (*Repository, *store.Store, *fakeEnqueuer) {
	t.Helper()
	dir, err := os.MkdirTemp("", "fieldsync_conflict_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	queue := &fakeEnqueuer{}
	return NewRepository(s, queue), s, queue
}

// seedProjectConflict inserts a synced project in CONFLICT with a
// recorded conflict, the way a persistent 409 leaves them.
func seedProjectConflict(t *testing.T, s *store.Store) (*models.Project, *models.ConflictRecord) {
	t.Helper()
	proj := &models.Project{
		UUID:      models.UUID(uuid.New()),
		Name:      "Local name",
		CompanyID: 7,
	}
	if err := s.InsertProject(proj); err != nil {
		t.Fatalf("InsertProject() failed: %v", err)
	}
	if err := s.MarkEntitySynced("projects", proj.UUID, 42, "2026-08-01T10:00:00.000Z"); err != nil {
		t.Fatalf("MarkEntitySynced() failed: %v", err)
	}
	if err := s.SetEntityStatus("projects", proj.UUID, models.SyncStatusConflict); err != nil {
		t.Fatalf("SetEntityStatus() failed: %v", err)
	}

	rec := &models.ConflictRecord{
		ConflictID:    uuid.New(),
		EntityType:    models.EntityProject,
		EntityID:      proj.LocalID,
		EntityUUID:    proj.UUID,
		ConflictType:  models.ConflictUpdate,
		LocalVersion:  json.RawMessage(`{"name":"Local name","updatedAt":"2026-08-01T10:00:00.000Z"}`),
		RemoteVersion: json.RawMessage(`{"name":"Server name","updatedAt":"2026-08-12T08:00:00.000Z"}`),
	}
	if err := s.InsertConflict(rec); err != nil {
		t.Fatalf("InsertConflict() failed: %v", err)
	}
	return proj, rec
}

// TestResolveKeepLocal verifies the entity gets a fresh lock, goes dirty
// and is re-enqueued, and the record disappears.
func TestResolveKeepLocal(t *testing.T) {
	r, s, queue := newTestRepository(t)
	proj, rec := seedProjectConflict(t, s)

	if err := r.ResolveKeepLocal(context.Background(), rec.ConflictID); err != nil {
		t.Fatalf("ResolveKeepLocal() failed: %v", err)
	}

	got, err := s.GetProjectByUUID(proj.UUID)
	if err != nil {
		t.Fatalf("GetProjectByUUID() failed: %v", err)
	}
	if got.LockUpdatedAt == "2026-08-01T10:00:00.000Z" {
		t.Error("Expected a freshly minted lock timestamp")
	}
	if !got.IsDirty {
		t.Error("Expected entity marked dirty for the re-push")
	}
	if got.ServerID != 42 {
		t.Errorf("Server id must survive the resolution, got %d", got.ServerID)
	}
	if len(queue.projects) != 1 || queue.projects[0] != proj.UUID {
		t.Errorf("Expected one project re-enqueue, got %v", queue.projects)
	}
	if _, err := s.GetConflict(rec.ConflictID); !store.IsNotFound(err) {
		t.Errorf("Expected record deleted, err = %v", err)
	}
}

// TestResolveKeepLocal_usesSnapshot verifies the re-enqueued payload
// carries the record's local snapshot even when the row was edited again
// after detection.
func TestResolveKeepLocal_usesSnapshot(t *testing.T) {
	r, s, queue := newTestRepository(t)
	proj, rec := seedProjectConflict(t, s)

	edited, err := s.GetProjectByUUID(proj.UUID)
	if err != nil {
		t.Fatalf("GetProjectByUUID() failed: %v", err)
	}
	edited.Name = "Edited after detection"
	if err := s.UpdateProject(edited); err != nil {
		t.Fatalf("UpdateProject() failed: %v", err)
	}

	if err := r.ResolveKeepLocal(context.Background(), rec.ConflictID); err != nil {
		t.Fatalf("ResolveKeepLocal() failed: %v", err)
	}

	if len(queue.projectNames) != 1 {
		t.Fatalf("Expected 1 re-enqueue, got %d", len(queue.projectNames))
	}
	if queue.projectNames[0] != "Local name" {
		t.Errorf("Expected snapshot name in payload, got %q", queue.projectNames[0])
	}
}

// TestResolveKeepLocal_requeueCap verifies the budget is enforced.
func TestResolveKeepLocal_requeueCap(t *testing.T) {
	r, s, queue := newTestRepository(t)
	_, rec := seedProjectConflict(t, s)

	for i := 0; i < models.MaxRequeueAttempts; i++ {
		if err := s.IncrementConflictRequeue(rec.ConflictID); err != nil {
			t.Fatalf("IncrementConflictRequeue() failed: %v", err)
		}
	}

	err := r.ResolveKeepLocal(context.Background(), rec.ConflictID)
	if err == nil {
		t.Fatal("Expected keep-local to be refused at the cap")
	}
	if len(queue.projects) != 0 {
		t.Errorf("Expected no re-enqueue, got %v", queue.projects)
	}
	if _, gerr := s.GetConflict(rec.ConflictID); gerr != nil {
		t.Errorf("Record must survive a refused resolution, err = %v", gerr)
	}
}

// TestResolveKeepServer verifies the remote fields land locally and the
// entity goes back to SYNCED.
func TestResolveKeepServer(t *testing.T) {
	r, s, _ := newTestRepository(t)
	proj, rec := seedProjectConflict(t, s)

	if err := r.ResolveKeepServer(context.Background(), rec.ConflictID); err != nil {
		t.Fatalf("ResolveKeepServer() failed: %v", err)
	}

	got, err := s.GetProjectByUUID(proj.UUID)
	if err != nil {
		t.Fatalf("GetProjectByUUID() failed: %v", err)
	}
	if got.Name != "Server name" {
		t.Errorf("Expected remote name applied, got %q", got.Name)
	}
	if got.SyncStatus != models.SyncStatusSynced {
		t.Errorf("Expected SYNCED, got %s", got.SyncStatus)
	}
	if got.LockUpdatedAt != "2026-08-12T08:00:00.000Z" {
		t.Errorf("Expected remote lock recorded, got %q", got.LockUpdatedAt)
	}
	if _, err := s.GetConflict(rec.ConflictID); !store.IsNotFound(err) {
		t.Errorf("Expected record deleted, err = %v", err)
	}
}

// TestDismiss verifies the record goes away but the entity stays in
// CONFLICT.
func TestDismiss(t *testing.T) {
	r, s, _ := newTestRepository(t)
	proj, rec := seedProjectConflict(t, s)

	if err := r.Dismiss(context.Background(), rec.ConflictID); err != nil {
		t.Fatalf("Dismiss() failed: %v", err)
	}

	if _, err := s.GetConflict(rec.ConflictID); !store.IsNotFound(err) {
		t.Errorf("Expected record deleted, err = %v", err)
	}
	got, _ := s.GetProjectByUUID(proj.UUID)
	if got.SyncStatus != models.SyncStatusConflict {
		t.Errorf("Dismiss must leave the entity in CONFLICT, got %s", got.SyncStatus)
	}
}

// TestObserve verifies the immediate snapshot and mutation notifications.
func TestObserve(t *testing.T) {
	r, s, _ := newTestRepository(t)
	_, rec := seedProjectConflict(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := r.Observe(ctx)

	items := <-ch
	if len(items) != 1 {
		t.Fatalf("Expected 1 conflict in initial snapshot, got %d", len(items))
	}
	if items[0].EntityName != "Local name" {
		t.Errorf("Unexpected entity name %q", items[0].EntityName)
	}
	if items[0].ProjectName != "Local name" {
		t.Errorf("Unexpected project name %q", items[0].ProjectName)
	}
	if len(items[0].ChangedFields) != 1 || items[0].ChangedFields[0] != "name" {
		t.Errorf("Expected changed fields [name], got %v", items[0].ChangedFields)
	}

	if err := r.Dismiss(ctx, rec.ConflictID); err != nil {
		t.Fatalf("Dismiss() failed: %v", err)
	}
	items = <-ch
	if len(items) != 0 {
		t.Errorf("Expected empty snapshot after dismissal, got %d items", len(items))
	}
}

// TestChangedFields verifies bookkeeping keys never count as diffs.
func TestChangedFields(t *testing.T) {
	local := json.RawMessage(`{"name":"A","alias":"x","updatedAt":"1","lockUpdatedAt":"a","syncStatus":"PENDING"}`)
	remote := json.RawMessage(`{"name":"B","alias":"x","updatedAt":"2","lockUpdatedAt":"b","syncStatus":"SYNCED"}`)

	got := ChangedFields(local, remote)
	if len(got) != 1 || got[0] != "name" {
		t.Errorf("ChangedFields() = %v, want [name]", got)
	}

	// A key present only on one side counts
	got = ChangedFields(json.RawMessage(`{"name":"A"}`), json.RawMessage(`{"name":"A","roomType":"bedroom"}`))
	if len(got) != 1 || got[0] != "roomType" {
		t.Errorf("ChangedFields() = %v, want [roomType]", got)
	}

	if got := ChangedFields(nil, nil); len(got) != 0 {
		t.Errorf("ChangedFields(nil, nil) = %v, want empty", got)
	}
}
