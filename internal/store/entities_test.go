// Package store tests for entity persistence and sync-state operations.
package store

import (
	"testing"
	"time"

	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/uuid"
)

func insertTestProject(t *testing.T, s *Store, name string) *models.Project {
	t.Helper()
	p := &models.Project{
		UUID:      models.UUID(uuid.New()),
		Name:      name,
		CompanyID: 7,
	}
	if err := s.InsertProject(p); err != nil {
		t.Fatalf("InsertProject() failed: %v", err)
	}
	return p
}

// TestInsertProject verifies a new project is stamped dirty and pending.
func TestInsertProject(t *testing.T) {
	s := newTestStore(t)
	p := insertTestProject(t, s, "Flood at Oak St")

	if p.LocalID == 0 {
		t.Error("Expected LocalID to be assigned")
	}

	got, err := s.GetProjectByUUID(p.UUID)
	if err != nil {
		t.Fatalf("GetProjectByUUID() failed: %v", err)
	}
	if got.Name != "Flood at Oak St" {
		t.Errorf("Expected name 'Flood at Oak St', got %q", got.Name)
	}
	if !got.IsDirty {
		t.Error("Expected new project to be dirty")
	}
	if got.SyncStatus != models.SyncStatusPending {
		t.Errorf("Expected PENDING status, got %s", got.SyncStatus)
	}
	if got.Synced() {
		t.Error("New project should not report synced")
	}
}

// TestMarkEntitySynced verifies the server id and lock token are
// recorded and the dirty flag cleared.
func TestMarkEntitySynced(t *testing.T) {
	s := newTestStore(t)
	p := insertTestProject(t, s, "Job A")

	if err := s.MarkEntitySynced("projects", p.UUID, 42, "2026-08-01T10:00:00.000Z"); err != nil {
		t.Fatalf("MarkEntitySynced() failed: %v", err)
	}

	got, err := s.GetProjectByUUID(p.UUID)
	if err != nil {
		t.Fatalf("GetProjectByUUID() failed: %v", err)
	}
	if got.ServerID != 42 {
		t.Errorf("Expected server id 42, got %d", got.ServerID)
	}
	if got.LockUpdatedAt != "2026-08-01T10:00:00.000Z" {
		t.Errorf("Unexpected lock token %q", got.LockUpdatedAt)
	}
	if got.IsDirty {
		t.Error("Expected dirty flag cleared")
	}
	if got.SyncStatus != models.SyncStatusSynced {
		t.Errorf("Expected SYNCED status, got %s", got.SyncStatus)
	}
}

// TestMarkEntitySynced_preservesExisting verifies zero/empty arguments
// keep the recorded server id and lock token.
func TestMarkEntitySynced_preservesExisting(t *testing.T) {
	s := newTestStore(t)
	p := insertTestProject(t, s, "Job B")

	if err := s.MarkEntitySynced("projects", p.UUID, 42, "2026-08-01T10:00:00.000Z"); err != nil {
		t.Fatalf("MarkEntitySynced() failed: %v", err)
	}
	if err := s.MarkEntitySynced("projects", p.UUID, 0, ""); err != nil {
		t.Fatalf("MarkEntitySynced() second call failed: %v", err)
	}

	got, _ := s.GetProjectByUUID(p.UUID)
	if got.ServerID != 42 {
		t.Errorf("Server id was clobbered, got %d", got.ServerID)
	}
	if got.LockUpdatedAt != "2026-08-01T10:00:00.000Z" {
		t.Errorf("Lock token was clobbered, got %q", got.LockUpdatedAt)
	}
}

// TestMarkEntityDeleted_andRestore verifies the soft-delete round trip.
func TestMarkEntityDeleted_andRestore(t *testing.T) {
	s := newTestStore(t)
	p := insertTestProject(t, s, "Job C")

	if err := s.MarkEntityDeleted("projects", p.UUID); err != nil {
		t.Fatalf("MarkEntityDeleted() failed: %v", err)
	}
	got, _ := s.GetProjectByUUID(p.UUID)
	if !got.IsDeleted {
		t.Error("Expected project to be marked deleted")
	}

	if err := s.RestoreEntity("projects", p.UUID, "2026-08-02T09:00:00.000Z"); err != nil {
		t.Fatalf("RestoreEntity() failed: %v", err)
	}
	got, _ = s.GetProjectByUUID(p.UUID)
	if got.IsDeleted {
		t.Error("Expected project restored")
	}
	if got.SyncStatus != models.SyncStatusSynced {
		t.Errorf("Expected SYNCED after restore, got %s", got.SyncStatus)
	}
	if got.LockUpdatedAt != "2026-08-02T09:00:00.000Z" {
		t.Errorf("Expected fresh lock after restore, got %q", got.LockUpdatedAt)
	}
}

// TestSetLockTimestamp verifies the lock token can change without
// touching the server id.
func TestSetLockTimestamp(t *testing.T) {
	s := newTestStore(t)
	p := insertTestProject(t, s, "Job D")
	if err := s.SetServerID("projects", p.UUID, 9, "old"); err != nil {
		t.Fatalf("SetServerID() failed: %v", err)
	}

	if err := s.SetLockTimestamp("projects", p.UUID, "fresh"); err != nil {
		t.Fatalf("SetLockTimestamp() failed: %v", err)
	}

	got, _ := s.GetProjectByUUID(p.UUID)
	if got.ServerID != 9 {
		t.Errorf("Server id changed, got %d", got.ServerID)
	}
	if got.LockUpdatedAt != "fresh" {
		t.Errorf("Expected lock 'fresh', got %q", got.LockUpdatedAt)
	}
}

// TestServerIDByUUID_unknown verifies unknown entities surface as not
// found rather than zero.
func TestServerIDByUUID_unknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ServerIDByUUID("projects", models.UUID(uuid.New()))
	if !IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

// TestCheckTable_rejectsUnknown verifies the table whitelist.
func TestCheckTable_rejectsUnknown(t *testing.T) {
	s := newTestStore(t)

	if err := s.MarkEntityDirty("sqlite_master", "x"); err == nil {
		t.Error("Expected unknown table to be rejected")
	}
}

// TestFirstPropertyForProject verifies the oldest non-deleted property
// wins.
func TestFirstPropertyForProject(t *testing.T) {
	s := newTestStore(t)
	proj := insertTestProject(t, s, "Job E")

	first := &models.Property{UUID: models.UUID(uuid.New()), ProjectUUID: proj.UUID, Name: "Main house"}
	if err := s.InsertProperty(first); err != nil {
		t.Fatalf("InsertProperty() failed: %v", err)
	}
	second := &models.Property{UUID: models.UUID(uuid.New()), ProjectUUID: proj.UUID, Name: "Garage"}
	if err := s.InsertProperty(second); err != nil {
		t.Fatalf("InsertProperty() failed: %v", err)
	}

	got, err := s.FirstPropertyForProject(proj.UUID)
	if err != nil {
		t.Fatalf("FirstPropertyForProject() failed: %v", err)
	}
	if got.UUID != first.UUID {
		t.Errorf("Expected first property %s, got %s", first.UUID, got.UUID)
	}

	// Deleting the first promotes the second
	if err := s.MarkEntityDeleted("properties", first.UUID); err != nil {
		t.Fatalf("MarkEntityDeleted() failed: %v", err)
	}
	got, err = s.FirstPropertyForProject(proj.UUID)
	if err != nil {
		t.Fatalf("FirstPropertyForProject() after delete failed: %v", err)
	}
	if got.UUID != second.UUID {
		t.Errorf("Expected second property after delete, got %s", got.UUID)
	}
}

// TestCascadeDeleteLocation verifies the whole subtree is soft-deleted
// and the photos with cache files are returned for cleanup.
func TestCascadeDeleteLocation(t *testing.T) {
	s := newTestStore(t)
	proj := insertTestProject(t, s, "Job F")

	loc := &models.Location{UUID: models.UUID(uuid.New()), ProjectUUID: proj.UUID, Name: "First floor"}
	if err := s.InsertLocation(loc); err != nil {
		t.Fatalf("InsertLocation() failed: %v", err)
	}
	room := &models.Room{UUID: models.UUID(uuid.New()), ProjectUUID: proj.UUID, LocationUUID: loc.UUID, Name: "Kitchen"}
	if err := s.InsertRoom(room); err != nil {
		t.Fatalf("InsertRoom() failed: %v", err)
	}
	photo := &models.Photo{
		UUID:               models.UUID(uuid.New()),
		ProjectUUID:        proj.UUID,
		RoomUUID:           room.UUID,
		FileName:           "kitchen-1.jpg",
		CachedOriginalPath: "/tmp/cache/kitchen-1.jpg",
	}
	if err := s.InsertPhoto(photo); err != nil {
		t.Fatalf("InsertPhoto() failed: %v", err)
	}

	photos, err := s.CascadeDeleteLocation(loc.UUID)
	if err != nil {
		t.Fatalf("CascadeDeleteLocation() failed: %v", err)
	}
	if len(photos) != 1 {
		t.Fatalf("Expected 1 photo returned, got %d", len(photos))
	}
	if photos[0].CachedOriginalPath != "/tmp/cache/kitchen-1.jpg" {
		t.Errorf("Unexpected cache path %q", photos[0].CachedOriginalPath)
	}

	gotLoc, _ := s.GetLocationByUUID(loc.UUID)
	if !gotLoc.IsDeleted {
		t.Error("Expected location deleted")
	}
	gotRoom, _ := s.GetRoomByUUID(room.UUID)
	if !gotRoom.IsDeleted {
		t.Error("Expected room deleted")
	}
	gotPhoto, _ := s.GetPhotoByUUID(photo.UUID)
	if !gotPhoto.IsDeleted {
		t.Error("Expected photo deleted")
	}
}

// TestCascadeDeleteLocation_purgesQueue verifies queue entries for the
// deleted subtree go with it, including creates rescheduled far into the
// future by dependency backoff.
func TestCascadeDeleteLocation_purgesQueue(t *testing.T) {
	s := newTestStore(t)
	proj := insertTestProject(t, s, "Job G")

	loc := &models.Location{UUID: models.UUID(uuid.New()), ProjectUUID: proj.UUID, Name: "Basement"}
	if err := s.InsertLocation(loc); err != nil {
		t.Fatalf("InsertLocation() failed: %v", err)
	}
	room := &models.Room{UUID: models.UUID(uuid.New()), ProjectUUID: proj.UUID, LocationUUID: loc.UUID, Name: "Laundry"}
	if err := s.InsertRoom(room); err != nil {
		t.Fatalf("InsertRoom() failed: %v", err)
	}
	photo := &models.Photo{UUID: models.UUID(uuid.New()), ProjectUUID: proj.UUID, RoomUUID: room.UUID, FileName: "laundry-1.jpg"}
	if err := s.InsertPhoto(photo); err != nil {
		t.Fatalf("InsertPhoto() failed: %v", err)
	}

	insertTestOperation(t, s, &models.SyncOperation{
		EntityType: models.EntityLocation,
		Operation:  models.OpUpdate,
		EntityUUID: loc.UUID,
	})
	// A skipped room create scheduled minutes out
	insertTestOperation(t, s, &models.SyncOperation{
		EntityType:  models.EntityRoom,
		Operation:   models.OpCreate,
		EntityUUID:  room.UUID,
		ScheduledAt: time.Now().Unix() + 960,
	})
	insertTestOperation(t, s, &models.SyncOperation{
		EntityType: models.EntityPhoto,
		Operation:  models.OpDelete,
		EntityUUID: photo.UUID,
	})
	survivor := insertTestOperation(t, s, &models.SyncOperation{
		EntityType: models.EntityNote,
		Operation:  models.OpCreate,
	})

	if _, err := s.CascadeDeleteLocation(loc.UUID); err != nil {
		t.Fatalf("CascadeDeleteLocation() failed: %v", err)
	}

	ops, err := s.DueOperations(time.Now().Unix()+3600, 0)
	if err != nil {
		t.Fatalf("DueOperations() failed: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("Expected 1 surviving entry, got %d", len(ops))
	}
	if ops[0].OperationID != survivor.OperationID {
		t.Errorf("Expected note entry to survive, got %s", ops[0].OperationID)
	}
}
