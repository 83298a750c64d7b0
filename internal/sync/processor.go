// Package sync replays locally queued mutations against the backend.
package sync

import (
	"context"
	"fmt"
	"log"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/restohub/fieldsync/internal/api"
	"github.com/restohub/fieldsync/internal/logging"
	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
)

// Drain tuning.
const (
	drainBatchSize       = 50
	defaultDrainInterval = 30 * time.Second

	failureBaseDelaySec = 10
	skipBaseDelaySec    = 30
	maxBackoffSec       = 1800
	maxSkipExponent     = 6
)

// Processor drains the durable outbox against the backend. One handler
// per entity type; the processor owns entry lifecycle (reschedule,
// backoff, removal) based on the handler's reported Outcome.
type Processor struct {
	store    *store.Store
	api      *api.Client
	env      *Env
	handlers map[string]Handler

	mu       *stdsync.Mutex
	online   atomic.Bool
	draining atomic.Bool

	interval time.Duration
	stopCh   chan struct{}
	wg       stdsync.WaitGroup

	// refreshed dedupes project-essentials fetches within one drain.
	// Drains are single-flight, so plain map access is safe here.
	refreshed map[models.UUID]struct{}
}

// ProcessorConfig tunes the dispatcher.
type ProcessorConfig struct {
	DrainInterval time.Duration
	// Mu serializes drains with other store writers (the conflict
	// repository shares it). A nil Mu gets a private one.
	Mu *stdsync.Mutex
}

// NewProcessor creates a dispatcher with all entity handlers registered.
func NewProcessor(st *store.Store, client *api.Client, cfg *ProcessorConfig) *Processor {
	if cfg == nil {
		cfg = &ProcessorConfig{}
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = defaultDrainInterval
	}
	if cfg.Mu == nil {
		cfg.Mu = &stdsync.Mutex{}
	}

	p := &Processor{
		store:    st,
		api:      client,
		mu:       cfg.Mu,
		interval: cfg.DrainInterval,
		stopCh:   make(chan struct{}),
	}
	p.online.Store(true)

	p.env = &Env{Store: st, API: client, Refresher: p}
	p.handlers = map[string]Handler{
		models.EntityProject:        NewProjectHandler(p.env),
		models.EntityProperty:       NewPropertyHandler(p.env),
		models.EntityLocation:       NewLocationHandler(p.env),
		models.EntityRoom:           NewRoomHandler(p.env),
		models.EntityPhoto:          NewPhotoHandler(p.env),
		models.EntityNote:           NewNoteHandler(p.env),
		models.EntityEquipment:      NewEquipmentHandler(p.env),
		models.EntityMoistureLog:    NewMoistureLogHandler(p.env),
		models.EntityAtmosphericLog: NewAtmosphericLogHandler(p.env),
		models.EntityConversation:   NewSupportHandler(p.env),
		models.EntitySupportMessage: NewSupportHandler(p.env),
	}
	return p
}

// SetAssemblies wires the upload pipeline trigger used by the room
// handler. Called once during startup wiring.
func (p *Processor) SetAssemblies(t AssemblyTrigger) {
	p.env.Assemblies = t
}

// SetOnline records connectivity. Coming back online kicks a drain so
// queued work does not wait for the next tick.
func (p *Processor) SetOnline(online bool) {
	was := p.online.Swap(online)
	if online && !was {
		logging.Info("Connectivity restored, draining sync queue", nil)
		go p.Drain(context.Background())
	}
}

// IsOnline reports the last-known connectivity state.
func (p *Processor) IsOnline() bool {
	return p.online.Load()
}

// Start launches the periodic drain loop.
func (p *Processor) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.Drain(ctx)
			}
		}
	}()
	logging.Info("Sync processor started", map[string]interface{}{
		"drain_interval": p.interval.String(),
	})
}

// Stop shuts the drain loop down and waits for it.
func (p *Processor) Stop() {
	close(p.stopCh)
	p.wg.Wait()
	logging.Info("Sync processor stopped", nil)
}

// Drain replays due queue entries. No-op when offline or when a drain is
// already in flight.
func (p *Processor) Drain(ctx context.Context) {
	if !p.online.Load() {
		return
	}
	if !p.draining.CompareAndSwap(false, true) {
		return
	}
	defer p.draining.Store(false)

	p.drainLocked(ctx)

	// Room creates park a pipeline nudge instead of firing it inline;
	// ProcessNext takes the mutex the drain was holding.
	if p.env.assemblyKick.CompareAndSwap(true, false) && p.env.Assemblies != nil {
		p.env.Assemblies.ProcessNext(ctx)
	}
}

func (p *Processor) drainLocked(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refreshed = make(map[models.UUID]struct{})

	for {
		ops, err := p.store.DueOperations(time.Now().Unix(), drainBatchSize)
		if err != nil {
			log.Printf("[Processor] failed to load due operations: %v", err)
			return
		}
		if len(ops) == 0 {
			return
		}
		progressed := false
		for _, op := range ops {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if p.dispatch(ctx, op) {
				progressed = true
			}
		}
		// A batch of pure skips reschedules everything into the
		// future; loading again would return nothing, but guard
		// against spinning on Retry outcomes anyway.
		if !progressed {
			return
		}
	}
}

// dispatch runs one entry through its handler and applies the outcome.
// Returns true when the entry left the queue.
func (p *Processor) dispatch(ctx context.Context, op *models.SyncOperation) bool {
	handler, ok := p.handlers[op.EntityType]
	if !ok {
		log.Printf("[Processor] no handler for entity type %q, removing %s", op.EntityType, op.OperationID)
		if err := p.store.RemoveOperation(op.OperationID); err != nil {
			log.Printf("[Processor] failed to remove %s: %v", op.OperationID, err)
		}
		return true
	}

	outcome, err := handler.Handle(ctx, op)
	if err != nil {
		p.handleFailure(op, err)
		return false
	}

	switch outcome {
	case OutcomeSuccess, OutcomeDrop, OutcomeConflictPending:
		if rerr := p.store.RemoveOperation(op.OperationID); rerr != nil {
			log.Printf("[Processor] failed to remove %s: %v", op.OperationID, rerr)
			return false
		}
		return true

	case OutcomeSkip:
		p.handleSkip(op)
		return false

	case OutcomeRetry:
		// Entry untouched; the next drain retries immediately.
		return false
	}

	log.Printf("[Processor] unknown outcome %v for %s, removing", outcome, op.OperationID)
	if rerr := p.store.RemoveOperation(op.OperationID); rerr != nil {
		log.Printf("[Processor] failed to remove %s: %v", op.OperationID, rerr)
	}
	return true
}

// handleFailure applies the failure backoff, failing the entry and its
// entity once the retry budget is burned.
func (p *Processor) handleFailure(op *models.SyncOperation, cause error) {
	retry := op.RetryCount + 1
	if retry >= op.MaxRetries {
		log.Printf("[Processor] %s failed permanently after %d retries: %v", op.OperationID, op.RetryCount, cause)
		if err := p.store.MarkOperationFailed(op.OperationID, cause.Error()); err != nil {
			log.Printf("[Processor] failed to mark %s failed: %v", op.OperationID, err)
		}
		p.failEntity(op)
		return
	}
	delay := failureBackoff(op.RetryCount)
	log.Printf("[Processor] %s attempt %d failed, retrying in %ds: %v", op.OperationID, retry, delay, cause)
	if err := p.store.RecordOperationFailure(op.OperationID, retry, time.Now().Unix()+delay, cause.Error()); err != nil {
		log.Printf("[Processor] failed to record failure for %s: %v", op.OperationID, err)
	}
}

// handleSkip applies the dependency backoff, failing the entry once the
// skip budget is burned.
func (p *Processor) handleSkip(op *models.SyncOperation) {
	skip := op.SkipCount + 1
	if skip >= op.MaxSkips {
		log.Printf("[Processor] %s dependencies never resolved after %d skips", op.OperationID, op.SkipCount)
		if err := p.store.MarkOperationFailed(op.OperationID, "dependencies unresolved"); err != nil {
			log.Printf("[Processor] failed to mark %s failed: %v", op.OperationID, err)
		}
		p.failEntity(op)
		return
	}
	delay := skipBackoff(op.SkipCount)
	if err := p.store.RescheduleOperation(op.OperationID, skip, time.Now().Unix()+delay); err != nil {
		log.Printf("[Processor] failed to reschedule %s: %v", op.OperationID, err)
	}
}

func (p *Processor) failEntity(op *models.SyncOperation) {
	table := tableFor(op.EntityType)
	if table == "" {
		return
	}
	if err := p.store.SetEntityStatus(table, op.EntityUUID, models.SyncStatusFailed); err != nil {
		log.Printf("[Processor] failed to mark entity %s FAILED: %v", op.EntityUUID, err)
	}
}

// failureBackoff returns the delay before retry attempt retries+1.
func failureBackoff(retries int) int64 {
	d := int64(failureBaseDelaySec) << uint(retries)
	if d > maxBackoffSec {
		return maxBackoffSec
	}
	return d
}

// skipBackoff returns the delay before skip attempt skips+1. The
// exponent is clamped so deep dependency chains plateau instead of
// overflowing.
func skipBackoff(skips int) int64 {
	exp := skips
	if exp > maxSkipExponent {
		exp = maxSkipExponent
	}
	d := int64(skipBaseDelaySec) << uint(exp)
	if d > maxBackoffSec {
		return maxBackoffSec
	}
	return d
}

// =====================================================
// Enqueue helpers
// =====================================================

// operationID builds the stable queue key for an entity mutation.
func operationID(entityType string, localID int64, uuid models.UUID) string {
	return fmt.Sprintf("%s-%d-%s", entityType, localID, uuid)
}

// priorityFor ranks an operation. Deletes and project creates go first:
// deletes free server-side locks and project creates unblock every
// dependent child.
func priorityFor(entityType string, operation models.OperationType) models.SyncPriority {
	if operation == models.OpDelete {
		return models.PriorityHigh
	}
	if entityType == models.EntityProject && operation == models.OpCreate {
		return models.PriorityHigh
	}
	return models.PriorityMedium
}

// lockToken picks the lock timestamp for a new queue entry: a token
// already captured in a pending entry wins over the entity's current
// one, so replays observe the server state from before the edit burst.
func (p *Processor) lockToken(entityType string, uuid models.UUID, entityLock string) string {
	lock, err := p.store.PendingLockTimestamp(entityType, uuid)
	if err != nil {
		log.Printf("[Processor] failed to read pending lock for %s: %v", uuid, err)
		return entityLock
	}
	if lock != "" {
		return lock
	}
	return entityLock
}

// enqueue persists one queue entry, applying the create-merge rule:
// while an entity's CREATE is still pending and it has no server id, a
// later UPDATE folds its payload into the pending CREATE instead of
// queuing a second entry.
func (p *Processor) enqueue(entityType string, operation models.OperationType, localID int64, uuid models.UUID, synced bool, payload Payload) error {
	data, err := EncodePayload(payload)
	if err != nil {
		return err
	}

	if operation == models.OpUpdate && !synced {
		pending, perr := p.store.PendingOperationFor(entityType, uuid, models.OpCreate)
		if perr != nil {
			return perr
		}
		if pending != nil {
			return p.store.UpdateOperationPayload(pending.OperationID, data)
		}
	}
	if operation == models.OpDelete {
		// Pending creates and updates are moot once the entity dies.
		if rerr := p.store.RemoveOperationsForEntity(entityType, uuid); rerr != nil {
			return rerr
		}
	}

	return p.store.InsertOperation(&models.SyncOperation{
		OperationID: operationID(entityType, localID, uuid),
		EntityType:  entityType,
		EntityID:    localID,
		EntityUUID:  uuid,
		Operation:   operation,
		Payload:     data,
		Priority:    priorityFor(entityType, operation),
	})
}

// EnqueueProject queues a project mutation.
func (p *Processor) EnqueueProject(operation models.OperationType, proj *models.Project) error {
	payload := &ProjectPayload{
		Base: Base{
			UUID:           string(proj.UUID),
			IdempotencyKey: string(proj.UUID),
			LockUpdatedAt:  p.lockToken(models.EntityProject, proj.UUID, proj.LockUpdatedAt),
		},
		Name:       proj.Name,
		Alias:      proj.Alias,
		CompanyID:  proj.CompanyID,
		Street:     proj.Street,
		City:       proj.City,
		Province:   proj.Province,
		PostalCode: proj.PostalCode,
		Country:    proj.Country,
	}
	return p.enqueue(models.EntityProject, operation, proj.LocalID, proj.UUID, proj.Synced(), payload)
}

// EnqueueProperty queues a property mutation.
func (p *Processor) EnqueueProperty(operation models.OperationType, prop *models.Property) error {
	payload := &PropertyPayload{
		Base: Base{
			UUID:           string(prop.UUID),
			IdempotencyKey: string(prop.UUID),
			LockUpdatedAt:  p.lockToken(models.EntityProperty, prop.UUID, prop.LockUpdatedAt),
		},
		ProjectUUID: string(prop.ProjectUUID),
		Name:        prop.Name,
	}
	return p.enqueue(models.EntityProperty, operation, prop.LocalID, prop.UUID, prop.Synced(), payload)
}

// EnqueueLocation queues a location mutation.
func (p *Processor) EnqueueLocation(operation models.OperationType, loc *models.Location) error {
	payload := &LocationPayload{
		Base: Base{
			UUID:           string(loc.UUID),
			IdempotencyKey: string(loc.UUID),
			LockUpdatedAt:  p.lockToken(models.EntityLocation, loc.UUID, loc.LockUpdatedAt),
		},
		ProjectUUID:  string(loc.ProjectUUID),
		PropertyUUID: string(loc.PropertyUUID),
		Name:         loc.Name,
		IsSingleUnit: loc.IsSingleUnit,
	}
	return p.enqueue(models.EntityLocation, operation, loc.LocalID, loc.UUID, loc.Synced(), payload)
}

// EnqueueRoom queues a room mutation.
func (p *Processor) EnqueueRoom(operation models.OperationType, room *models.Room) error {
	payload := &RoomPayload{
		Base: Base{
			UUID:           string(room.UUID),
			IdempotencyKey: string(room.UUID),
			LockUpdatedAt:  p.lockToken(models.EntityRoom, room.UUID, room.LockUpdatedAt),
		},
		ProjectUUID:  string(room.ProjectUUID),
		PropertyUUID: string(room.PropertyUUID),
		LevelUUID:    string(room.LevelUUID),
		LocationUUID: string(room.LocationUUID),
		Name:         room.Name,
		RoomType:     room.RoomType,
	}
	return p.enqueue(models.EntityRoom, operation, room.LocalID, room.UUID, room.Synced(), payload)
}

// EnqueuePhotoDelete queues a photo delete. Photo creation goes through
// the upload assembly pipeline, never the queue.
func (p *Processor) EnqueuePhotoDelete(photo *models.Photo) error {
	payload := &PhotoPayload{
		Base: Base{
			UUID:          string(photo.UUID),
			LockUpdatedAt: p.lockToken(models.EntityPhoto, photo.UUID, photo.LockUpdatedAt),
		},
		ProjectUUID: string(photo.ProjectUUID),
		RoomUUID:    string(photo.RoomUUID),
	}
	return p.enqueue(models.EntityPhoto, models.OpDelete, photo.LocalID, photo.UUID, photo.Synced(), payload)
}

// EnqueueNote queues a note mutation.
func (p *Processor) EnqueueNote(operation models.OperationType, note *models.Note) error {
	payload := &NotePayload{
		Base: Base{
			UUID:           string(note.UUID),
			IdempotencyKey: string(note.UUID),
			LockUpdatedAt:  p.lockToken(models.EntityNote, note.UUID, note.LockUpdatedAt),
		},
		ProjectUUID: string(note.ProjectUUID),
		RoomUUID:    string(note.RoomUUID),
		PhotoUUID:   string(note.PhotoUUID),
		Body:        note.Body,
	}
	return p.enqueue(models.EntityNote, operation, note.LocalID, note.UUID, note.Synced(), payload)
}

// EnqueueEquipment queues an equipment mutation.
func (p *Processor) EnqueueEquipment(operation models.OperationType, eq *models.Equipment) error {
	payload := &EquipmentPayload{
		Base: Base{
			UUID:           string(eq.UUID),
			IdempotencyKey: string(eq.UUID),
			LockUpdatedAt:  p.lockToken(models.EntityEquipment, eq.UUID, eq.LockUpdatedAt),
		},
		ProjectUUID:   string(eq.ProjectUUID),
		RoomUUID:      string(eq.RoomUUID),
		Name:          eq.Name,
		EquipmentType: eq.EquipmentType,
		Quantity:      eq.Quantity,
	}
	return p.enqueue(models.EntityEquipment, operation, eq.LocalID, eq.UUID, eq.Synced(), payload)
}

// EnqueueMoistureLog queues a moisture reading mutation.
func (p *Processor) EnqueueMoistureLog(operation models.OperationType, ml *models.MoistureLog) error {
	payload := &MoistureLogPayload{
		Base: Base{
			UUID:           string(ml.UUID),
			IdempotencyKey: string(ml.UUID),
			LockUpdatedAt:  p.lockToken(models.EntityMoistureLog, ml.UUID, ml.LockUpdatedAt),
		},
		ProjectUUID:  string(ml.ProjectUUID),
		RoomUUID:     string(ml.RoomUUID),
		MaterialName: ml.MaterialName,
		Reading:      ml.Reading,
		RecordedAt:   ml.RecordedAt,
	}
	return p.enqueue(models.EntityMoistureLog, operation, ml.LocalID, ml.UUID, ml.Synced(), payload)
}

// EnqueueAtmosphericLog queues an atmospheric reading mutation.
func (p *Processor) EnqueueAtmosphericLog(operation models.OperationType, al *models.AtmosphericLog) error {
	payload := &AtmosphericLogPayload{
		Base: Base{
			UUID:           string(al.UUID),
			IdempotencyKey: string(al.UUID),
			LockUpdatedAt:  p.lockToken(models.EntityAtmosphericLog, al.UUID, al.LockUpdatedAt),
		},
		ProjectUUID:      string(al.ProjectUUID),
		RoomUUID:         string(al.RoomUUID),
		TemperatureC:     al.TemperatureC,
		RelativeHumidity: al.RelativeHumidity,
		GrainsPerPound:   al.GrainsPerPound,
		RecordedAt:       al.RecordedAt,
	}
	return p.enqueue(models.EntityAtmosphericLog, operation, al.LocalID, al.UUID, al.Synced(), payload)
}

// EnqueueConversation queues a support conversation create.
func (p *Processor) EnqueueConversation(conv *models.SupportConversation) error {
	payload := &ConversationPayload{
		Base: Base{
			UUID:           string(conv.UUID),
			IdempotencyKey: string(conv.UUID),
		},
		Subject: conv.Subject,
	}
	return p.enqueue(models.EntityConversation, models.OpCreate, conv.LocalID, conv.UUID, conv.Synced(), payload)
}

// EnqueueMessage queues a support message create.
func (p *Processor) EnqueueMessage(msg *models.SupportMessage) error {
	payload := &MessagePayload{
		Base: Base{
			UUID:           string(msg.UUID),
			IdempotencyKey: string(msg.UUID),
		},
		ConversationUUID: string(msg.ConversationUUID),
		Body:             msg.Body,
	}
	return p.enqueue(models.EntitySupportMessage, models.OpCreate, msg.LocalID, msg.UUID, msg.Synced(), payload)
}
