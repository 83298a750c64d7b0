// Package sync tests for the queue dispatcher and push handlers.
package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/restohub/fieldsync/internal/api"
	"github.com/restohub/fieldsync/internal/assembly"
	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
	"github.com/restohub/fieldsync/internal/uuid"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "fieldsync_sync_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestProcessor wires a processor against a fake backend.
func newTestProcessor(t *testing.T, backend http.HandlerFunc) (*Processor, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)
	client := api.NewClient(&api.Config{BaseURL: server.URL, APIKey: "test-key"})
	return NewProcessor(s, client, nil), s
}

func insertSyncedProject(t *testing.T, s *store.Store, serverID int64) *models.Project {
	t.Helper()
	p := &models.Project{
		UUID:      models.UUID(uuid.New()),
		Name:      "Flood at Oak St",
		CompanyID: 7,
	}
	if err := s.InsertProject(p); err != nil {
		t.Fatalf("InsertProject() failed: %v", err)
	}
	if serverID > 0 {
		if err := s.MarkEntitySynced("projects", p.UUID, serverID, "2026-08-01T10:00:00.000Z"); err != nil {
			t.Fatalf("MarkEntitySynced() failed: %v", err)
		}
		p.MarkSynced(serverID, "2026-08-01T10:00:00.000Z")
	}
	return p
}

func queueLen(t *testing.T, s *store.Store) int {
	t.Helper()
	ops, err := s.DueOperations(time.Now().Unix()+3600, 0)
	if err != nil {
		t.Fatalf("DueOperations() failed: %v", err)
	}
	return len(ops)
}

// TestFailureBackoff verifies the retry delay sequence and its cap.
func TestFailureBackoff(t *testing.T) {
	want := []int64{10, 20, 40, 80, 160, 320, 640, 1280, 1800, 1800}
	for retries, expected := range want {
		if got := failureBackoff(retries); got != expected {
			t.Errorf("failureBackoff(%d) = %d, want %d", retries, got, expected)
		}
	}
}

// TestSkipBackoff verifies the dependency delay plateaus.
func TestSkipBackoff(t *testing.T) {
	want := []int64{30, 60, 120, 240, 480, 960, 1800, 1800, 1800}
	for skips, expected := range want {
		if got := skipBackoff(skips); got != expected {
			t.Errorf("skipBackoff(%d) = %d, want %d", skips, got, expected)
		}
	}
	// Deep chains must not overflow the shift
	if got := skipBackoff(500); got != 1800 {
		t.Errorf("skipBackoff(500) = %d, want 1800", got)
	}
}

// TestPriorityFor verifies deletes and project creates jump the queue.
func TestPriorityFor(t *testing.T) {
	if got := priorityFor(models.EntityNote, models.OpDelete); got != models.PriorityHigh {
		t.Errorf("Delete priority = %d, want high", got)
	}
	if got := priorityFor(models.EntityProject, models.OpCreate); got != models.PriorityHigh {
		t.Errorf("Project create priority = %d, want high", got)
	}
	if got := priorityFor(models.EntityRoom, models.OpCreate); got != models.PriorityMedium {
		t.Errorf("Room create priority = %d, want medium", got)
	}
	if got := priorityFor(models.EntityProject, models.OpUpdate); got != models.PriorityMedium {
		t.Errorf("Project update priority = %d, want medium", got)
	}
}

// TestOperationID verifies the queue key format.
func TestOperationID(t *testing.T) {
	got := operationID(models.EntityRoom, 12, "abc-def")
	if got != "room-12-abc-def" {
		t.Errorf("operationID() = %q", got)
	}
}

// TestEnqueue_createMerge verifies an edit to an unsynced entity folds
// into its pending CREATE instead of queuing a second entry.
func TestEnqueue_createMerge(t *testing.T) {
	p, s := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {})
	note := &models.Note{
		UUID: models.UUID(uuid.New()), ProjectUUID: models.UUID(uuid.New()), Body: "wet drywall",
	}
	if err := s.InsertNote(note); err != nil {
		t.Fatalf("InsertNote() failed: %v", err)
	}

	if err := p.EnqueueNote(models.OpCreate, note); err != nil {
		t.Fatalf("EnqueueNote(create) failed: %v", err)
	}
	note.Body = "wet drywall, both walls"
	if err := p.EnqueueNote(models.OpUpdate, note); err != nil {
		t.Fatalf("EnqueueNote(update) failed: %v", err)
	}

	if n := queueLen(t, s); n != 1 {
		t.Fatalf("Expected 1 queue entry after merge, got %d", n)
	}
	pending, err := s.PendingOperationFor(models.EntityNote, note.UUID, models.OpCreate)
	if err != nil || pending == nil {
		t.Fatalf("Expected the pending CREATE to survive, err = %v", err)
	}
	if !strings.Contains(string(pending.Payload), "both walls") {
		t.Errorf("Expected merged payload, got %s", pending.Payload)
	}
}

// TestEnqueue_deletePurgesQueue verifies a delete supersedes queued work
// for the entity.
func TestEnqueue_deletePurgesQueue(t *testing.T) {
	p, s := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {})
	note := &models.Note{UUID: models.UUID(uuid.New()), Body: "obsolete"}
	if err := s.InsertNote(note); err != nil {
		t.Fatalf("InsertNote() failed: %v", err)
	}

	if err := p.EnqueueNote(models.OpCreate, note); err != nil {
		t.Fatalf("EnqueueNote(create) failed: %v", err)
	}
	if err := p.EnqueueNote(models.OpDelete, note); err != nil {
		t.Fatalf("EnqueueNote(delete) failed: %v", err)
	}

	ops, _ := s.DueOperations(time.Now().Unix()+3600, 0)
	if len(ops) != 1 {
		t.Fatalf("Expected only the delete to remain, got %d entries", len(ops))
	}
	if ops[0].Operation != models.OpDelete {
		t.Errorf("Expected delete entry, got %s", ops[0].Operation)
	}
	if ops[0].Priority != models.PriorityHigh {
		t.Errorf("Expected high priority delete, got %d", ops[0].Priority)
	}
}

// TestDrain_projectCreate pushes a queued project create end to end.
func TestDrain_projectCreate(t *testing.T) {
	var calls int
	p, s := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/companies/") {
			calls++
			json.NewEncoder(w).Encode(api.ProjectDTO{ID: 42, UpdatedAt: "2026-08-10T09:00:00.000Z"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	proj := insertSyncedProject(t, s, 0)
	if err := p.EnqueueProject(models.OpCreate, proj); err != nil {
		t.Fatalf("EnqueueProject() failed: %v", err)
	}

	p.Drain(context.Background())

	if calls != 1 {
		t.Errorf("Expected 1 create call, got %d", calls)
	}
	got, err := s.GetProjectByUUID(proj.UUID)
	if err != nil {
		t.Fatalf("GetProjectByUUID() failed: %v", err)
	}
	if got.ServerID != 42 {
		t.Errorf("Expected server id 42, got %d", got.ServerID)
	}
	if !got.Synced() {
		t.Error("Expected project to report synced")
	}
	if n := queueLen(t, s); n != 0 {
		t.Errorf("Expected empty queue, got %d entries", n)
	}
}

// TestDrain_idempotentReplay verifies a create replayed after the ack
// was already recorded touches nothing remotely.
func TestDrain_idempotentReplay(t *testing.T) {
	var calls int
	p, s := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	proj := insertSyncedProject(t, s, 42)
	// Simulate a crash that left the CREATE entry behind after the ack.
	if err := s.InsertOperation(&models.SyncOperation{
		OperationID: operationID(models.EntityProject, proj.LocalID, proj.UUID),
		EntityType:  models.EntityProject,
		EntityUUID:  proj.UUID,
		Operation:   models.OpCreate,
		Payload:     json.RawMessage(`{"uuid":"` + string(proj.UUID) + `","name":"Flood at Oak St"}`),
	}); err != nil {
		t.Fatalf("InsertOperation() failed: %v", err)
	}

	p.Drain(context.Background())

	if calls != 0 {
		t.Errorf("Expected no backend calls, got %d", calls)
	}
	if n := queueLen(t, s); n != 0 {
		t.Errorf("Expected entry removed, got %d entries", n)
	}
}

// TestDrain_dependencySkip verifies a child with an unresolved parent is
// rescheduled with its skip counter bumped.
func TestDrain_dependencySkip(t *testing.T) {
	p, s := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	// Project exists locally but has no server id yet.
	proj := insertSyncedProject(t, s, 0)
	note := &models.Note{
		UUID: models.UUID(uuid.New()), ProjectUUID: proj.UUID, Body: "ceiling stain",
	}
	if err := s.InsertNote(note); err != nil {
		t.Fatalf("InsertNote() failed: %v", err)
	}
	if err := p.EnqueueNote(models.OpCreate, note); err != nil {
		t.Fatalf("EnqueueNote() failed: %v", err)
	}

	before := time.Now().Unix()
	p.Drain(context.Background())

	op, err := s.GetOperation(operationID(models.EntityNote, note.LocalID, note.UUID))
	if err != nil {
		t.Fatalf("GetOperation() failed: %v", err)
	}
	if op.SkipCount != 1 {
		t.Errorf("Expected skip count 1, got %d", op.SkipCount)
	}
	if op.Status != models.OpStatusPending {
		t.Errorf("Skipped entry should stay PENDING, got %s", op.Status)
	}
	if op.ScheduledAt < before+skipBaseDelaySec {
		t.Errorf("Expected reschedule at least %ds out, got %d", skipBaseDelaySec, op.ScheduledAt-before)
	}
}

// TestHandleFailure_backoffAndExhaustion verifies the retry bookkeeping
// and the terminal transition.
func TestHandleFailure_backoffAndExhaustion(t *testing.T) {
	var calls int
	p, s := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	proj := insertSyncedProject(t, s, 42)
	if err := p.EnqueueProject(models.OpUpdate, proj); err != nil {
		t.Fatalf("EnqueueProject() failed: %v", err)
	}
	opID := operationID(models.EntityProject, proj.LocalID, proj.UUID)

	// First attempt: 500 from the backend arms the 10s backoff.
	before := time.Now().Unix()
	p.Drain(context.Background())
	op, err := s.GetOperation(opID)
	if err != nil {
		t.Fatalf("GetOperation() failed: %v", err)
	}
	if op.RetryCount != 1 {
		t.Fatalf("Expected retry count 1, got %d", op.RetryCount)
	}
	if op.ScheduledAt < before+failureBaseDelaySec {
		t.Errorf("Expected backoff of at least %ds, got %d", failureBaseDelaySec, op.ScheduledAt-before)
	}
	if op.ErrorMessage == "" {
		t.Error("Expected failure message recorded")
	}

	// Burn the remaining budget by dispatching directly.
	op.ScheduledAt = before
	p.dispatch(context.Background(), op)
	op, _ = s.GetOperation(opID)
	if op.RetryCount != 2 {
		t.Fatalf("Expected retry count 2, got %d", op.RetryCount)
	}
	p.dispatch(context.Background(), op)

	op, _ = s.GetOperation(opID)
	if op.Status != models.OpStatusFailed {
		t.Errorf("Expected FAILED after exhausted retries, got %s", op.Status)
	}
	got, _ := s.GetProjectByUUID(proj.UUID)
	if got.SyncStatus != models.SyncStatusFailed {
		t.Errorf("Expected entity FAILED, got %s", got.SyncStatus)
	}
	if calls != 3 {
		t.Errorf("Expected 3 backend attempts, got %d", calls)
	}
}

// TestDrain_persistentConflict verifies a 409 that survives one fresh
// retry lands in the conflict queue.
func TestDrain_persistentConflict(t *testing.T) {
	p, s := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPatch:
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":"stale lock"}`))
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(api.ProjectDetailDTO{
				ProjectDTO: api.ProjectDTO{
					ID: 42, Name: "Renamed remotely", UpdatedAt: "2026-08-12T08:00:00.000Z",
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	proj := insertSyncedProject(t, s, 42)
	if err := p.EnqueueProject(models.OpUpdate, proj); err != nil {
		t.Fatalf("EnqueueProject() failed: %v", err)
	}

	p.Drain(context.Background())

	n, err := s.CountConflicts()
	if err != nil {
		t.Fatalf("CountConflicts() failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 conflict record, got %d", n)
	}
	got, _ := s.GetProjectByUUID(proj.UUID)
	if got.SyncStatus != models.SyncStatusConflict {
		t.Errorf("Expected CONFLICT, got %s", got.SyncStatus)
	}
	if qn := queueLen(t, s); qn != 0 {
		t.Errorf("Expected entry removed, got %d entries", qn)
	}

	records, _ := s.ListConflicts()
	if records[0].EntityUUID != proj.UUID {
		t.Errorf("Conflict recorded for wrong entity %s", records[0].EntityUUID)
	}
	if !strings.Contains(string(records[0].RemoteVersion), "Renamed remotely") {
		t.Errorf("Expected remote snapshot captured, got %s", records[0].RemoteVersion)
	}
}

// TestDrain_deleteConflictRestores verifies remote wins for deletes: a
// persistent 409 restores the local copy with the fresh lock.
func TestDrain_deleteConflictRestores(t *testing.T) {
	p, s := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusConflict)
		case http.MethodGet:
			json.NewEncoder(w).Encode(api.ProjectDetailDTO{
				ProjectDTO: api.ProjectDTO{ID: 42, UpdatedAt: "2026-08-12T08:00:00.000Z"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	proj := insertSyncedProject(t, s, 42)
	if err := p.EnqueueProject(models.OpDelete, proj); err != nil {
		t.Fatalf("EnqueueProject(delete) failed: %v", err)
	}

	p.Drain(context.Background())

	got, err := s.GetProjectByUUID(proj.UUID)
	if err != nil {
		t.Fatalf("GetProjectByUUID() failed: %v", err)
	}
	if got.IsDeleted {
		t.Error("Expected project restored after delete conflict")
	}
	if got.LockUpdatedAt != "2026-08-12T08:00:00.000Z" {
		t.Errorf("Expected fresh lock token, got %q", got.LockUpdatedAt)
	}
	if n := queueLen(t, s); n != 0 {
		t.Errorf("Expected entry dropped, got %d entries", n)
	}
}

// TestDrain_offline verifies nothing is attempted while offline.
func TestDrain_offline(t *testing.T) {
	var calls int
	p, s := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	proj := insertSyncedProject(t, s, 0)
	if err := p.EnqueueProject(models.OpCreate, proj); err != nil {
		t.Fatalf("EnqueueProject() failed: %v", err)
	}

	p.SetOnline(false)
	p.Drain(context.Background())

	if calls != 0 {
		t.Errorf("Expected no backend calls while offline, got %d", calls)
	}
	if n := queueLen(t, s); n != 1 {
		t.Errorf("Expected entry kept, got %d entries", n)
	}
}

// TestDrain_assemblyKickAfterRoomCreate verifies a room create that
// succeeds mid-drain nudges the upload pipeline only after the drain has
// released the shared store mutex. The pipeline takes the same mutex, so
// an inline nudge would hang the draining goroutine forever.
func TestDrain_assemblyKickAfterRoomCreate(t *testing.T) {
	s := newTestStore(t)

	var detailCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/projects/42" {
			detailCalls++
			json.NewEncoder(w).Encode(&api.ProjectDetailDTO{
				ProjectDTO: api.ProjectDTO{ID: 42},
				Properties: []api.PropertyDTO{{
					ID: 5,
					Locations: []api.LocationDTO{{
						ID: 6,
						Rooms: []api.RoomDTO{{
							ID:        77,
							UUID:      "room-on-server",
							UpdatedAt: "2026-08-20T09:00:00.000Z",
						}},
					}},
				}},
			})
			return
		}
		http.Error(w, `{"error":"unexpected call"}`, http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	client := api.NewClient(&api.Config{BaseURL: server.URL, APIKey: "test-key"})

	// One mutex shared by the dispatcher and the pipeline, the way the
	// daemon wires them.
	mu := &stdsync.Mutex{}
	p := NewProcessor(s, client, &ProcessorConfig{Mu: mu})
	manager := assembly.NewQueueManager(s, client, &assembly.Config{
		StorageURL: server.URL + "/upload",
		APIKey:     "test-key",
		Mu:         mu,
	})
	p.SetAssemblies(manager)

	proj := insertSyncedProject(t, s, 42)
	room := &models.Room{
		UUID:        models.UUID("room-on-server"),
		ProjectUUID: proj.UUID,
		Name:        "Master Bedroom",
	}
	if err := s.InsertRoom(room); err != nil {
		t.Fatalf("InsertRoom() failed: %v", err)
	}
	if err := p.EnqueueRoom(models.OpCreate, room); err != nil {
		t.Fatalf("EnqueueRoom() failed: %v", err)
	}

	// A bare queued assembly with no photo rows. The pipeline fails it
	// with "no upload data" on dispatch, which makes the nudge visible.
	asm := &models.UploadAssembly{
		GroupUUID: models.UUID(uuid.New()),
		ProjectID: 42,
		RoomUUID:  room.UUID,
	}
	if err := s.InsertAssembly(asm); err != nil {
		t.Fatalf("InsertAssembly() failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		p.Drain(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Drain() did not return within 5s")
	}

	if detailCalls != 1 {
		t.Errorf("Expected 1 project detail fetch, got %d", detailCalls)
	}
	got, err := s.GetRoomByUUID(room.UUID)
	if err != nil {
		t.Fatalf("GetRoomByUUID() failed: %v", err)
	}
	if got.ServerID != 77 || got.SyncStatus != models.SyncStatusSynced {
		t.Errorf("Expected room adopted from server snapshot, got server id %d status %s", got.ServerID, got.SyncStatus)
	}
	if n := queueLen(t, s); n != 0 {
		t.Errorf("Expected empty queue, got %d entries", n)
	}

	dispatched, err := s.GetAssembly(asm.LocalID)
	if err != nil {
		t.Fatalf("GetAssembly() failed: %v", err)
	}
	if dispatched.Status != models.AssemblyFailed || dispatched.ErrorMessage != "no upload data" {
		t.Errorf("Expected pipeline dispatched after the drain, got status %s error %q", dispatched.Status, dispatched.ErrorMessage)
	}
}
