// Package assembly drives bulk photo uploads through upload assemblies.
package assembly

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/restohub/fieldsync/internal/api"
	"github.com/restohub/fieldsync/internal/logging"
	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
)

// Retry tuning. FailsCount is a lifetime budget; RetryCount only drives
// the backoff exponent and resets on manual retry.
const (
	MaxFailAttempts        = 13
	InitialRetryTimeoutSec = 10
	MaxRetryTimeoutSec     = 1800
)

// NextRetryTimeout returns the backoff before retry attempt retries+1,
// in seconds.
func NextRetryTimeout(retries int) int {
	t := InitialRetryTimeoutSec << uint(retries)
	if t > MaxRetryTimeoutSec || t <= 0 {
		return MaxRetryTimeoutSec
	}
	return t
}

// AssemblyEvents is the realtime collaborator: a push channel that tells
// the backend finished processing an assembly before polling would.
type AssemblyEvents interface {
	RealtimeCompleted(assemblyID string)
}

// PhotoFile describes one photo handed to Enqueue.
type PhotoFile struct {
	PhotoUUID     models.UUID
	FileName      string
	LocalFilePath string
	FileSize      int64
}

// EnqueueRequest describes a new upload batch. RoomUUID targets a room;
// EntityType/EntityID target anything else (equipment, notes).
type EnqueueRequest struct {
	GroupUUID  models.UUID
	ProjectID  int64
	RoomUUID   models.UUID
	EntityType string
	EntityID   int64
	Photos     []PhotoFile
}

// QueueManager uploads assemblies one at a time. The atomic guard makes
// ProcessNext safe to call from anywhere; the injected mutex serializes
// store writes with the sync processor.
type QueueManager struct {
	store    *store.Store
	api      *api.Client
	uploader *Uploader

	mu   *stdsync.Mutex
	busy atomic.Bool

	events     AssemblyEvents
	onComplete func(*models.UploadAssembly)
}

// Config wires a QueueManager.
type Config struct {
	StorageURL string
	APIKey     string
	// Mu serializes store writes with the sync processor. Nil gets a
	// private mutex.
	Mu *stdsync.Mutex
	// OnComplete fires after an assembly reaches completed and its
	// temp files are gone. May be nil.
	OnComplete func(*models.UploadAssembly)
}

// NewQueueManager creates the upload queue manager.
func NewQueueManager(st *store.Store, client *api.Client, cfg *Config) *QueueManager {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Mu == nil {
		cfg.Mu = &stdsync.Mutex{}
	}
	return &QueueManager{
		store:      st,
		api:        client,
		uploader:   NewUploader(cfg.StorageURL, cfg.APIKey),
		mu:         cfg.Mu,
		onComplete: cfg.OnComplete,
	}
}

// SetEvents attaches the realtime collaborator.
func (m *QueueManager) SetEvents(ev AssemblyEvents) {
	m.events = ev
}

// Enqueue persists a new assembly and its photo rows, then kicks the
// pipeline. A room-targeted batch whose room has no server id yet parks
// in waiting_for_room until the room's create lands.
func (m *QueueManager) Enqueue(ctx context.Context, req *EnqueueRequest) (*models.UploadAssembly, error) {
	if len(req.Photos) == 0 {
		return nil, fmt.Errorf("assembly %s has no photos", req.GroupUUID)
	}

	status := models.AssemblyQueued
	if req.RoomUUID != "" {
		roomID, err := m.store.ServerIDByUUID("rooms", req.RoomUUID)
		if err != nil && !store.IsNotFound(err) {
			return nil, err
		}
		if roomID == 0 {
			status = models.AssemblyWaitingForRoom
		}
	}

	a := &models.UploadAssembly{
		GroupUUID:  req.GroupUUID,
		ProjectID:  req.ProjectID,
		RoomUUID:   req.RoomUUID,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Status:     status,
		TotalFiles: len(req.Photos),
	}
	if err := m.store.InsertAssembly(a); err != nil {
		return nil, err
	}
	for i, ph := range req.Photos {
		p := &models.AssemblyPhoto{
			PhotoUUID:     ph.PhotoUUID,
			AssemblyLocal: a.LocalID,
			FileName:      ph.FileName,
			LocalFilePath: ph.LocalFilePath,
			Status:        models.PhotoUploadPending,
			OrderIndex:    i,
			FileSize:      ph.FileSize,
		}
		if err := m.store.InsertAssemblyPhoto(p); err != nil {
			return nil, err
		}
	}

	logging.Info("Upload assembly enqueued", map[string]interface{}{
		"group_uuid":  string(req.GroupUUID),
		"total_files": len(req.Photos),
		"status":      string(status),
	})
	m.ProcessNext(ctx)
	return a, nil
}

// ProcessNext uploads the oldest ready assembly. No-op when an upload is
// already in flight. After the upload finishes the guard is released and
// ProcessNext re-arms for the next ready assembly.
func (m *QueueManager) ProcessNext(ctx context.Context) {
	if !m.busy.CompareAndSwap(false, true) {
		return
	}

	m.mu.Lock()
	a, err := m.store.NextReadyAssembly()
	m.mu.Unlock()
	if err != nil {
		log.Printf("[AssemblyQueue] failed to load next assembly: %v", err)
		m.busy.Store(false)
		return
	}
	if a == nil {
		m.busy.Store(false)
		return
	}

	m.uploadAssembly(ctx, a)
	m.busy.Store(false)

	select {
	case <-ctx.Done():
	default:
		m.ProcessNext(ctx)
	}
}

// uploadAssembly runs one assembly through create, per-photo upload and
// the completion check.
func (m *QueueManager) uploadAssembly(ctx context.Context, a *models.UploadAssembly) {
	photos, err := m.store.AssemblyPhotos(a.LocalID)
	if err != nil {
		log.Printf("[AssemblyQueue] failed to load photos for assembly %d: %v", a.LocalID, err)
		return
	}
	if len(photos) == 0 {
		// Nothing to upload and nothing to retry into existence.
		if err := m.store.SetAssemblyError(a.LocalID, models.AssemblyFailed, "no upload data"); err != nil {
			log.Printf("[AssemblyQueue] failed to fail assembly %d: %v", a.LocalID, err)
		}
		return
	}

	if a.AssemblyID == "" {
		if !m.createRemote(ctx, a) {
			return
		}
	}

	// The backend may already hold every byte, e.g. after a crash
	// between the last upload and the completion check.
	if snap, err := m.api.GetAssemblyStatus(ctx, a.AssemblyID); err == nil && snap.Complete {
		m.complete(a)
		return
	}

	if err := m.store.SetAssemblyStatus(a.LocalID, models.AssemblyUploading); err != nil {
		log.Printf("[AssemblyQueue] failed to mark assembly %d uploading: %v", a.LocalID, err)
		return
	}

	for _, photo := range photos {
		if photo.Status == models.PhotoUploadCompleted || photo.Status == models.PhotoUploadCancelled {
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		m.uploadPhoto(ctx, a, photo)
	}

	m.checkComplete(ctx, a)
}

// createRemote registers the assembly server-side. Returns false when
// the assembly cannot proceed.
func (m *QueueManager) createRemote(ctx context.Context, a *models.UploadAssembly) bool {
	if err := m.store.SetAssemblyStatus(a.LocalID, models.AssemblyCreating); err != nil {
		log.Printf("[AssemblyQueue] failed to mark assembly %d creating: %v", a.LocalID, err)
		return false
	}

	req := &api.AssemblyCreateRequest{
		GroupUUID:  string(a.GroupUUID),
		ProjectID:  a.ProjectID,
		TotalFiles: a.TotalFiles,
	}
	if a.RoomUUID != "" {
		roomID, err := m.store.ServerIDByUUID("rooms", a.RoomUUID)
		if err != nil || roomID == 0 {
			// Room resolution regressed; park again.
			if serr := m.store.SetAssemblyStatus(a.LocalID, models.AssemblyWaitingForRoom); serr != nil {
				log.Printf("[AssemblyQueue] failed to park assembly %d: %v", a.LocalID, serr)
			}
			return false
		}
		req.RoomID = roomID
	} else {
		req.EntityType = a.EntityType
		req.EntityID = a.EntityID
	}

	dto, err := m.api.CreateAssembly(ctx, req)
	if err != nil {
		m.failAssembly(a, fmt.Sprintf("failed to create assembly: %v", err))
		return false
	}
	if err := m.store.SetAssemblyServerID(a.LocalID, dto.ID); err != nil {
		log.Printf("[AssemblyQueue] failed to record assembly id for %d: %v", a.LocalID, err)
		return false
	}
	a.AssemblyID = dto.ID
	if err := m.store.SetAssemblyStatus(a.LocalID, models.AssemblyCreated); err != nil {
		log.Printf("[AssemblyQueue] failed to mark assembly %d created: %v", a.LocalID, err)
		return false
	}
	if dto.Complete {
		m.complete(a)
		return false
	}
	return true
}

// uploadPhoto pushes one photo; a failure marks the photo and moves on.
func (m *QueueManager) uploadPhoto(ctx context.Context, a *models.UploadAssembly, photo *models.AssemblyPhoto) {
	if err := m.store.SetAssemblyPhotoStatus(photo.LocalID, models.PhotoUploadUploading, ""); err != nil {
		log.Printf("[AssemblyQueue] failed to mark photo %d uploading: %v", photo.LocalID, err)
		return
	}

	n, err := m.uploader.Upload(ctx, a.AssemblyID, photo)
	if err != nil {
		log.Printf("[AssemblyQueue] photo %s upload failed: %v", photo.PhotoUUID, err)
		if serr := m.store.SetAssemblyPhotoStatus(photo.LocalID, models.PhotoUploadFailed, err.Error()); serr != nil {
			log.Printf("[AssemblyQueue] failed to mark photo %d failed: %v", photo.LocalID, serr)
		}
		return
	}

	if err := m.store.SetAssemblyPhotoUploaded(photo.LocalID, n); err != nil {
		log.Printf("[AssemblyQueue] failed to mark photo %d completed: %v", photo.LocalID, err)
		return
	}
	if err := m.store.AddAssemblyBytes(a.LocalID, n); err != nil {
		log.Printf("[AssemblyQueue] failed to add bytes for assembly %d: %v", a.LocalID, err)
	}
}

// checkComplete decides the assembly's fate once every photo has been
// attempted.
func (m *QueueManager) checkComplete(ctx context.Context, a *models.UploadAssembly) {
	photos, err := m.store.AssemblyPhotos(a.LocalID)
	if err != nil {
		log.Printf("[AssemblyQueue] failed to reload photos for assembly %d: %v", a.LocalID, err)
		return
	}

	var done, failed int
	for _, p := range photos {
		switch p.Status {
		case models.PhotoUploadCompleted, models.PhotoUploadCancelled:
			done++
		case models.PhotoUploadFailed:
			failed++
		}
	}
	// Every photo was attempted, so anything still pending or uploading
	// means a status write was lost. Count it failed; the assembly must
	// not sit in uploading until the next cold-start recovery.
	stranded := len(photos) - done - failed

	if done == len(photos) {
		// The backend assembles the photos asynchronously; polling or
		// the realtime channel moves us to completed.
		if err := m.store.SetAssemblyStatus(a.LocalID, models.AssemblyProcessing); err != nil {
			log.Printf("[AssemblyQueue] failed to mark assembly %d processing: %v", a.LocalID, err)
			return
		}
		if snap, err := m.api.GetAssemblyStatus(ctx, a.AssemblyID); err == nil && snap.Complete {
			m.complete(a)
		}
		return
	}

	if stranded > 0 {
		if err := m.store.ResetAssemblyPhotos(a.LocalID, models.PhotoUploadUploading, models.PhotoUploadFailed, "Upload state lost"); err != nil {
			log.Printf("[AssemblyQueue] failed to fail stranded photos for assembly %d: %v", a.LocalID, err)
		}
		if err := m.store.ResetAssemblyPhotos(a.LocalID, models.PhotoUploadPending, models.PhotoUploadFailed, "Upload state lost"); err != nil {
			log.Printf("[AssemblyQueue] failed to fail stranded photos for assembly %d: %v", a.LocalID, err)
		}
	}
	m.failAssembly(a, fmt.Sprintf("%d photos failed to upload", failed+stranded))
}

// failAssembly records a failure with backoff and arms a one-off retry
// timer while the fail budget lasts.
func (m *QueueManager) failAssembly(a *models.UploadAssembly, msg string) {
	timeout := NextRetryTimeout(a.RetryCount)
	nextRetryAt := time.Now().Unix() + int64(timeout)
	if err := m.store.RecordAssemblyFailure(a.LocalID, msg, timeout, nextRetryAt); err != nil {
		log.Printf("[AssemblyQueue] failed to record failure for assembly %d: %v", a.LocalID, err)
		return
	}
	logging.Warn("Upload assembly failed", map[string]interface{}{
		"assembly":    a.LocalID,
		"error":       msg,
		"retry_in":    timeout,
		"fails_count": a.FailsCount + 1,
	})
	if a.FailsCount+1 < MaxFailAttempts {
		time.AfterFunc(time.Duration(timeout)*time.Second, func() {
			m.ProcessRetryQueue(context.Background(), false)
		})
	}
}

// complete finishes an assembly: photos completed, temp files removed,
// callback fired.
func (m *QueueManager) complete(a *models.UploadAssembly) {
	photos, err := m.store.AssemblyPhotos(a.LocalID)
	if err != nil {
		log.Printf("[AssemblyQueue] failed to load photos for completed assembly %d: %v", a.LocalID, err)
	}
	if err := m.store.CompleteAssemblyPhotos(a.LocalID); err != nil {
		log.Printf("[AssemblyQueue] failed to complete photos for assembly %d: %v", a.LocalID, err)
		return
	}
	if err := m.store.SetAssemblyStatus(a.LocalID, models.AssemblyCompleted); err != nil {
		log.Printf("[AssemblyQueue] failed to mark assembly %d completed: %v", a.LocalID, err)
		return
	}

	for _, p := range photos {
		if p.LocalFilePath == "" {
			continue
		}
		if err := os.Remove(p.LocalFilePath); err != nil && !os.IsNotExist(err) {
			log.Printf("[AssemblyQueue] failed to remove temp file %s: %v", p.LocalFilePath, err)
		}
	}

	logging.Info("Upload assembly completed", map[string]interface{}{
		"assembly":    a.LocalID,
		"assembly_id": a.AssemblyID,
		"total_files": a.TotalFiles,
	})
	if m.onComplete != nil {
		m.onComplete(a)
	}
}

// PauseForConnectivity parks in-flight assemblies until the network
// returns. Photo rows keep their state; completed uploads are not
// repeated.
func (m *QueueManager) PauseForConnectivity() {
	assemblies, err := m.store.AssembliesByStatus(models.AssemblyUploading)
	if err != nil {
		log.Printf("[AssemblyQueue] failed to load uploading assemblies: %v", err)
		return
	}
	for _, a := range assemblies {
		if err := m.store.SetAssemblyStatus(a.LocalID, models.AssemblyWaitingForConn); err != nil {
			log.Printf("[AssemblyQueue] failed to park assembly %d: %v", a.LocalID, err)
		}
	}
}

// ProcessRetryQueue re-dispatches assemblies whose retry window has
// opened. bypassTimeout ignores NextRetryAt, used when connectivity
// returns.
func (m *QueueManager) ProcessRetryQueue(ctx context.Context, bypassTimeout bool) {
	cutoff := time.Now().Unix()
	if bypassTimeout {
		cutoff = math.MaxInt64
	}
	assemblies, err := m.store.RetryableAssemblies(cutoff, MaxFailAttempts)
	if err != nil {
		log.Printf("[AssemblyQueue] failed to load retryable assemblies: %v", err)
		return
	}
	for _, a := range assemblies {
		if err := m.store.SetAssemblyStatus(a.LocalID, models.AssemblyRetrying); err != nil {
			log.Printf("[AssemblyQueue] failed to mark assembly %d retrying: %v", a.LocalID, err)
			continue
		}
		if err := m.store.ResetAssemblyPhotos(a.LocalID, models.PhotoUploadFailed, models.PhotoUploadPending, "Retrying upload"); err != nil {
			log.Printf("[AssemblyQueue] failed to reset photos for assembly %d: %v", a.LocalID, err)
			continue
		}
		if err := m.store.SetAssemblyStatus(a.LocalID, readyStatus(a)); err != nil {
			log.Printf("[AssemblyQueue] failed to requeue assembly %d: %v", a.LocalID, err)
		}
	}
	if len(assemblies) > 0 {
		m.ProcessNext(ctx)
	}
}

// RecoverStranded repairs state after a crash: mid-upload assemblies go
// back to created with their unfinished photos pending, and parked
// assemblies whose room has since resolved rejoin the queue.
func (m *QueueManager) RecoverStranded(ctx context.Context) {
	stranded, err := m.store.AssembliesByStatus(models.AssemblyUploading, models.AssemblyCreating, models.AssemblyRetrying)
	if err != nil {
		log.Printf("[AssemblyQueue] failed to load stranded assemblies: %v", err)
		return
	}
	for _, a := range stranded {
		if err := m.store.ResetAssemblyPhotos(a.LocalID, models.PhotoUploadUploading, models.PhotoUploadPending, "Reset after process interruption"); err != nil {
			log.Printf("[AssemblyQueue] failed to reset photos for assembly %d: %v", a.LocalID, err)
			continue
		}
		if err := m.store.SetAssemblyStatus(a.LocalID, readyStatus(a)); err != nil {
			log.Printf("[AssemblyQueue] failed to recover assembly %d: %v", a.LocalID, err)
		}
	}

	waiting, err := m.store.AssembliesByStatus(models.AssemblyWaitingForRoom)
	if err != nil {
		log.Printf("[AssemblyQueue] failed to load waiting assemblies: %v", err)
		return
	}
	for _, a := range waiting {
		roomID, err := m.store.ServerIDByUUID("rooms", a.RoomUUID)
		if err != nil || roomID == 0 {
			continue
		}
		if err := m.store.SetAssemblyStatus(a.LocalID, models.AssemblyQueued); err != nil {
			log.Printf("[AssemblyQueue] failed to promote assembly %d: %v", a.LocalID, err)
		}
	}

	m.ProcessNext(ctx)
}

// Retry manually restarts a failed assembly with fresh counters.
func (m *QueueManager) Retry(ctx context.Context, assemblyLocalID int64) error {
	if err := m.store.ResetAssemblyCounters(assemblyLocalID); err != nil {
		return err
	}
	if err := m.store.ResetAssemblyPhotos(assemblyLocalID, models.PhotoUploadFailed, models.PhotoUploadPending, "Manual retry"); err != nil {
		return err
	}
	a, err := m.store.GetAssembly(assemblyLocalID)
	if err != nil {
		return err
	}
	if err := m.store.SetAssemblyStatus(assemblyLocalID, readyStatus(a)); err != nil {
		return err
	}
	m.ProcessNext(ctx)
	return nil
}

// Reconcile pulls the backend's snapshot for an assembly and completes
// it locally when the backend reports it done.
func (m *QueueManager) Reconcile(ctx context.Context, assemblyID string) error {
	a, err := m.store.GetAssemblyByServerID(assemblyID)
	if err != nil {
		return err
	}
	snap, err := m.api.GetAssemblyStatus(ctx, assemblyID)
	if err != nil {
		return err
	}
	if snap.Complete {
		m.complete(a)
	}
	return nil
}

// RealtimeCompleted handles a push notification that the backend
// finished an assembly.
func (m *QueueManager) RealtimeCompleted(assemblyID string) {
	if err := m.Reconcile(context.Background(), assemblyID); err != nil {
		log.Printf("[AssemblyQueue] reconcile of %s failed: %v", assemblyID, err)
	}
}

// readyStatus returns the status that makes an assembly eligible for
// dispatch again: created when it exists server-side, queued otherwise.
func readyStatus(a *models.UploadAssembly) models.AssemblyStatus {
	if a.AssemblyID != "" {
		return models.AssemblyCreated
	}
	return models.AssemblyQueued
}
