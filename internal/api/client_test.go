// Package api tests for the backend HTTP client.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestCreateProject verifies request shape, auth and idempotency headers.
func TestCreateProject(t *testing.T) {
	var gotPath, gotAPIKey, gotIdemKey string
	var gotReq ProjectCreateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("x-api-key")
		gotIdemKey = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(ProjectDTO{ID: 42, UpdatedAt: "2026-08-01T10:00:00.000Z"})
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL, APIKey: "secret"})
	dto, err := client.CreateProject(context.Background(), &ProjectCreateRequest{
		UUID: "abc", Name: "Water loss", CompanyID: 5,
	}, "idem-123")
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}

	if gotPath != "/companies/5/projects" {
		t.Errorf("Unexpected path %s", gotPath)
	}
	if gotAPIKey != "secret" {
		t.Errorf("Expected api key header, got %q", gotAPIKey)
	}
	if gotIdemKey != "idem-123" {
		t.Errorf("Expected idempotency key header, got %q", gotIdemKey)
	}
	if gotReq.Name != "Water loss" {
		t.Errorf("Unexpected request name %q", gotReq.Name)
	}
	if dto.ID != 42 {
		t.Errorf("Expected server id 42, got %d", dto.ID)
	}
}

// TestCreateNote_noIdempotencyHeader verifies an empty key sends no header.
func TestCreateNote_noIdempotencyHeader(t *testing.T) {
	var hadHeader bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadHeader = r.Header["Idempotency-Key"]
		json.NewEncoder(w).Encode(RecordDTO{ID: 1})
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL})
	if _, err := client.CreateNote(context.Background(), &NoteRequest{Body: "dry"}, ""); err != nil {
		t.Fatalf("CreateNote() failed: %v", err)
	}
	if hadHeader {
		t.Error("Empty idempotency key must not produce a header")
	}
}

// TestDeleteProject_lockToken verifies the lock travels in the body.
func TestDeleteProject_lockToken(t *testing.T) {
	var gotMethod string
	var gotBody DeleteRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL})
	if err := client.DeleteProject(context.Background(), 9, "2026-08-01T10:00:00.000Z"); err != nil {
		t.Fatalf("DeleteProject() failed: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("Expected DELETE, got %s", gotMethod)
	}
	if gotBody.UpdatedAt != "2026-08-01T10:00:00.000Z" {
		t.Errorf("Unexpected lock token %q", gotBody.UpdatedAt)
	}
}

// TestStatusError verifies non-2xx responses carry status and body.
func TestStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"stale lock"}`))
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL})
	_, err := client.UpdateProject(context.Background(), 9, &ProjectUpdateRequest{Name: "x"})
	if err == nil {
		t.Fatal("Expected error for 409 response")
	}
	if !IsConflict(err) {
		t.Errorf("Expected IsConflict, got %v", err)
	}
	if IsMissingOnServer(err) {
		t.Error("409 must not read as missing-on-server")
	}
	if StatusBody(err) != `{"error":"stale lock"}` {
		t.Errorf("Unexpected status body %q", StatusBody(err))
	}
}

// TestIsMissingOnServer covers both 404 and 410.
func TestIsMissingOnServer(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusGone} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		client := NewClient(&Config{BaseURL: server.URL})
		_, err := client.GetRoomDetail(context.Background(), 1)
		server.Close()
		if !IsMissingOnServer(err) {
			t.Errorf("Expected IsMissingOnServer for %d, got %v", code, err)
		}
		if IsConflict(err) {
			t.Errorf("%d must not read as conflict", code)
		}
	}
}

// TestStatusHelpers_plainError verifies the helpers reject ordinary errors.
func TestStatusHelpers_plainError(t *testing.T) {
	client := NewClient(&Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.GetProjectDetail(context.Background(), 1)
	if err == nil {
		t.Fatal("Expected connection error")
	}
	if IsConflict(err) || IsMissingOnServer(err) {
		t.Error("Transport errors must not match status helpers")
	}
	if StatusBody(err) != "" {
		t.Errorf("Expected empty body for transport error, got %q", StatusBody(err))
	}
}

// TestCreateAssembly_groupKey verifies the group uuid doubles as the
// idempotency key.
func TestCreateAssembly_groupKey(t *testing.T) {
	var gotIdemKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdemKey = r.Header.Get("Idempotency-Key")
		json.NewEncoder(w).Encode(AssemblyDTO{ID: "asm_1"})
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL})
	dto, err := client.CreateAssembly(context.Background(), &AssemblyCreateRequest{
		GroupUUID: "group-1", ProjectID: 7, TotalFiles: 2,
	})
	if err != nil {
		t.Fatalf("CreateAssembly() failed: %v", err)
	}
	if gotIdemKey != "group-1" {
		t.Errorf("Expected group uuid as idempotency key, got %q", gotIdemKey)
	}
	if dto.ID != "asm_1" {
		t.Errorf("Unexpected assembly id %q", dto.ID)
	}
}
