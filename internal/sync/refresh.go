// Package sync replays locally queued mutations against the backend.
package sync

import (
	"context"
	"log"

	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
)

// RefreshOnce pulls fresh server ids for a project's subtree at most
// once per drain. Child creates that skip on an unresolved parent call
// this before giving up; a batch of skipping siblings costs one fetch.
func (p *Processor) RefreshOnce(ctx context.Context, projectUUID models.UUID) {
	if p.refreshed == nil {
		p.refreshed = make(map[models.UUID]struct{})
	}
	if _, done := p.refreshed[projectUUID]; done {
		return
	}
	p.refreshed[projectUUID] = struct{}{}

	if err := p.RefreshProjectEssentials(ctx, projectUUID); err != nil {
		log.Printf("[Processor] essentials refresh for project %s failed: %v", projectUUID, err)
	}
}

// RefreshProjectEssentials fetches the project's remote snapshot and
// records server ids for every local property, location and room the
// snapshot covers. Rows are matched by client UUID; unknown server rows
// are ignored.
func (p *Processor) RefreshProjectEssentials(ctx context.Context, projectUUID models.UUID) error {
	projectID, err := p.store.ServerIDByUUID("projects", projectUUID)
	if store.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if projectID == 0 {
		return nil
	}

	detail, err := p.api.GetProjectDetail(ctx, projectID)
	if err != nil {
		return err
	}

	for _, prop := range detail.Properties {
		if prop.UUID != "" && prop.ID > 0 {
			p.adoptServerID("properties", models.UUID(prop.UUID), prop.ID, prop.UpdatedAt)
		}
		for _, loc := range prop.Locations {
			if loc.UUID != "" && loc.ID > 0 {
				p.adoptServerID("locations", models.UUID(loc.UUID), loc.ID, loc.UpdatedAt)
			}
			for _, room := range loc.Rooms {
				if room.UUID != "" && room.ID > 0 {
					p.adoptServerID("rooms", models.UUID(room.UUID), room.ID, room.UpdatedAt)
				}
			}
		}
	}
	return nil
}

// adoptServerID records a server id for a local row when the row exists
// and has none yet.
func (p *Processor) adoptServerID(table string, uuid models.UUID, serverID int64, lockUpdatedAt string) {
	current, err := p.store.ServerIDByUUID(table, uuid)
	if store.IsNotFound(err) {
		return
	}
	if err != nil {
		log.Printf("[Processor] server id lookup failed for %s %s: %v", table, uuid, err)
		return
	}
	if current > 0 {
		return
	}
	if err := p.store.SetServerID(table, uuid, serverID, lockUpdatedAt); err != nil {
		log.Printf("[Processor] failed to record server id for %s %s: %v", table, uuid, err)
	}
}
