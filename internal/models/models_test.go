// Package models tests for data model definitions.
package models

import (
	"testing"
	"time"
)

// =====================================================
// UUID Type Tests
// =====================================================

// TestUUID_Value verifies the Value() method returns correct string.
func TestUUID_Value(t *testing.T) {
	uuid := UUID("123e4567-e89b-42d3-a456-426614174000")

	val, err := uuid.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	if val != "123e4567-e89b-42d3-a456-426614174000" {
		t.Errorf("Value() = %v, want '123e4567-e89b-42d3-a456-426614174000'", val)
	}
}

// TestUUID_Scan_nil verifies nil value handling.
func TestUUID_Scan_nil(t *testing.T) {
	var uuid UUID
	err := uuid.Scan(nil)

	if err != nil {
		t.Fatalf("Scan(nil) error = %v", err)
	}

	if uuid != "" {
		t.Errorf("Scan(nil) = %q, want empty string", uuid)
	}
}

// TestUUID_Scan_bytes verifies []byte handling.
func TestUUID_Scan_bytes(t *testing.T) {
	var uuid UUID
	input := []byte("123e4567-e89b-42d3-a456-426614174000")

	err := uuid.Scan(input)
	if err != nil {
		t.Fatalf("Scan([]byte) error = %v", err)
	}

	if uuid != "123e4567-e89b-42d3-a456-426614174000" {
		t.Errorf("Scan([]byte) = %q, want '123e4567-e89b-42d3-a456-426614174000'", uuid)
	}
}

// TestUUID_Scan_string verifies string handling.
func TestUUID_Scan_string(t *testing.T) {
	var uuid UUID
	input := "123e4567-e89b-42d3-a456-426614174000"

	err := uuid.Scan(input)
	if err != nil {
		t.Fatalf("Scan(string) error = %v", err)
	}

	if uuid != "123e4567-e89b-42d3-a456-426614174000" {
		t.Errorf("Scan(string) = %q, want '123e4567-e89b-42d3-a456-426614174000'", uuid)
	}
}

// =====================================================
// SyncState Tests
// =====================================================

// TestSyncState_Touch verifies Touch marks the entity dirty and pending.
func TestSyncState_Touch(t *testing.T) {
	s := SyncState{SyncStatus: SyncStatusSynced}
	before := time.Now().Unix()

	s.Touch()

	if !s.IsDirty {
		t.Error("Touch() should set IsDirty")
	}
	if s.SyncStatus != SyncStatusPending {
		t.Errorf("Touch() status = %q, want %q", s.SyncStatus, SyncStatusPending)
	}
	if s.UpdatedAt < before {
		t.Errorf("Touch() UpdatedAt = %d, want >= %d", s.UpdatedAt, before)
	}
}

// TestSyncState_MarkSynced verifies MarkSynced clears dirty state and
// records the server id and lock token.
func TestSyncState_MarkSynced(t *testing.T) {
	s := SyncState{IsDirty: true, SyncStatus: SyncStatusPending}

	s.MarkSynced(42, "2024-03-01T10:00:00.000Z")

	if s.IsDirty {
		t.Error("MarkSynced() should clear IsDirty")
	}
	if s.ServerID != 42 {
		t.Errorf("MarkSynced() ServerID = %d, want 42", s.ServerID)
	}
	if s.SyncStatus != SyncStatusSynced {
		t.Errorf("MarkSynced() status = %q, want %q", s.SyncStatus, SyncStatusSynced)
	}
	if s.LockUpdatedAt != "2024-03-01T10:00:00.000Z" {
		t.Errorf("MarkSynced() lock = %q", s.LockUpdatedAt)
	}
	if s.LastSyncedAt == 0 {
		t.Error("MarkSynced() should set LastSyncedAt")
	}
}

// TestSyncState_MarkSynced_keepsServerID verifies a zero server id does
// not wipe an already-known one.
func TestSyncState_MarkSynced_keepsServerID(t *testing.T) {
	s := SyncState{ServerID: 7}

	s.MarkSynced(0, "")

	if s.ServerID != 7 {
		t.Errorf("MarkSynced(0) ServerID = %d, want 7", s.ServerID)
	}
}

// TestSyncState_Synced verifies Synced reflects server acknowledgement.
func TestSyncState_Synced(t *testing.T) {
	s := SyncState{}
	if s.Synced() {
		t.Error("Synced() should be false without a ServerID")
	}
	s.ServerID = 1
	if !s.Synced() {
		t.Error("Synced() should be true with a ServerID")
	}
}

// =====================================================
// SyncOperation Tests
// =====================================================

// TestSyncOperation_RetriesExhausted verifies the retry budget check.
func TestSyncOperation_RetriesExhausted(t *testing.T) {
	op := SyncOperation{RetryCount: 2, MaxRetries: DefaultMaxRetries}
	if op.RetriesExhausted() {
		t.Error("RetriesExhausted() should be false at 2/3")
	}
	op.RetryCount = 3
	if !op.RetriesExhausted() {
		t.Error("RetriesExhausted() should be true at 3/3")
	}
}

// TestSyncOperation_SkipsExhausted verifies the skip budget check.
func TestSyncOperation_SkipsExhausted(t *testing.T) {
	op := SyncOperation{SkipCount: 19, MaxSkips: DefaultMaxSkips}
	if op.SkipsExhausted() {
		t.Error("SkipsExhausted() should be false at 19/20")
	}
	op.SkipCount = 20
	if !op.SkipsExhausted() {
		t.Error("SkipsExhausted() should be true at 20/20")
	}
}

// =====================================================
// ConflictRecord Tests
// =====================================================

// TestConflictRecord_CanRequeue verifies the requeue attempt cap.
func TestConflictRecord_CanRequeue(t *testing.T) {
	c := ConflictRecord{RequeueAttempts: 2}
	if !c.CanRequeue() {
		t.Error("CanRequeue() should be true at 2 attempts")
	}
	c.RequeueAttempts = MaxRequeueAttempts
	if c.CanRequeue() {
		t.Error("CanRequeue() should be false at the cap")
	}
}

// TestConflictRecord_DetectedAtTime verifies timestamp conversion.
func TestConflictRecord_DetectedAtTime(t *testing.T) {
	now := time.Now().Unix()
	c := ConflictRecord{DetectedAt: now}
	if c.DetectedAtTime().Unix() != now {
		t.Errorf("DetectedAtTime() = %v, want unix %d", c.DetectedAtTime(), now)
	}
}

// =====================================================
// TableName Tests
// =====================================================

// TestTableNames verifies each persisted model maps to its table.
func TestTableNames(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"project", Project{}.TableName(), "projects"},
		{"property", Property{}.TableName(), "properties"},
		{"location", Location{}.TableName(), "locations"},
		{"room", Room{}.TableName(), "rooms"},
		{"photo", Photo{}.TableName(), "photos"},
		{"note", Note{}.TableName(), "notes"},
		{"equipment", Equipment{}.TableName(), "equipment"},
		{"moisture log", MoistureLog{}.TableName(), "moisture_logs"},
		{"atmospheric log", AtmosphericLog{}.TableName(), "atmospheric_logs"},
		{"conversation", SupportConversation{}.TableName(), "support_conversations"},
		{"support message", SupportMessage{}.TableName(), "support_messages"},
		{"sync operation", SyncOperation{}.TableName(), "sync_operations"},
		{"conflict record", ConflictRecord{}.TableName(), "conflict_records"},
		{"upload assembly", UploadAssembly{}.TableName(), "upload_assemblies"},
		{"assembly photo", AssemblyPhoto{}.TableName(), "assembly_photos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("TableName() = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

// TestAssemblyStatus_values verifies assembly status wire strings.
func TestAssemblyStatus_values(t *testing.T) {
	tests := []struct {
		status AssemblyStatus
		want   string
	}{
		{AssemblyQueued, "queued"},
		{AssemblyCreating, "creating"},
		{AssemblyCreated, "created"},
		{AssemblyUploading, "uploading"},
		{AssemblyProcessing, "processing"},
		{AssemblyCompleted, "completed"},
		{AssemblyFailed, "failed"},
		{AssemblyCancelled, "cancelled"},
		{AssemblyRetrying, "retrying"},
		{AssemblyWaitingForConn, "waiting_for_connectivity"},
		{AssemblyWaitingForRoom, "waiting_for_room"},
	}

	for _, tt := range tests {
		if string(tt.status) != tt.want {
			t.Errorf("status = %q, want %q", tt.status, tt.want)
		}
	}
}
