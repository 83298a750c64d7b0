// Package sync replays locally queued mutations against the backend.
package sync

import (
	"encoding/json"
	"fmt"

	"github.com/restohub/fieldsync/internal/models"
)

// Payload is the typed body of a queue entry. Each entity type has its
// own variant; Decode picks the right one from the entry's entity type.
type Payload interface {
	isPayload()
}

// Base carries the fields every payload shares. LockUpdatedAt is the
// optimistic lock token captured at enqueue time; IdempotencyKey makes
// create replays safe after a crash.
type Base struct {
	UUID           string `json:"uuid"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	LockUpdatedAt  string `json:"lock_updated_at,omitempty"`
}

func (Base) isPayload() {}

// ProjectPayload replays project mutations.
type ProjectPayload struct {
	Base
	Name       string `json:"name,omitempty"`
	Alias      string `json:"alias,omitempty"`
	CompanyID  int64  `json:"company_id,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// PropertyPayload replays property mutations.
type PropertyPayload struct {
	Base
	ProjectUUID string `json:"project_uuid"`
	Name        string `json:"name,omitempty"`
}

// LocationPayload replays location mutations.
type LocationPayload struct {
	Base
	ProjectUUID  string `json:"project_uuid"`
	PropertyUUID string `json:"property_uuid,omitempty"`
	Name         string `json:"name,omitempty"`
	IsSingleUnit bool   `json:"is_single_unit,omitempty"`
}

// RoomPayload replays room mutations.
type RoomPayload struct {
	Base
	ProjectUUID  string `json:"project_uuid"`
	PropertyUUID string `json:"property_uuid,omitempty"`
	LevelUUID    string `json:"level_uuid,omitempty"`
	LocationUUID string `json:"location_uuid,omitempty"`
	Name         string `json:"name,omitempty"`
	RoomType     string `json:"room_type,omitempty"`
}

// PhotoPayload replays photo deletes; creation runs through the upload
// assembly pipeline.
type PhotoPayload struct {
	Base
	ProjectUUID string `json:"project_uuid"`
	RoomUUID    string `json:"room_uuid,omitempty"`
}

// NotePayload replays note mutations.
type NotePayload struct {
	Base
	ProjectUUID string `json:"project_uuid"`
	RoomUUID    string `json:"room_uuid,omitempty"`
	PhotoUUID   string `json:"photo_uuid,omitempty"`
	Body        string `json:"body,omitempty"`
}

// EquipmentPayload replays equipment mutations.
type EquipmentPayload struct {
	Base
	ProjectUUID   string `json:"project_uuid"`
	RoomUUID      string `json:"room_uuid,omitempty"`
	Name          string `json:"name,omitempty"`
	EquipmentType string `json:"equipment_type,omitempty"`
	Quantity      int    `json:"quantity,omitempty"`
}

// MoistureLogPayload replays moisture reading mutations.
type MoistureLogPayload struct {
	Base
	ProjectUUID  string  `json:"project_uuid"`
	RoomUUID     string  `json:"room_uuid,omitempty"`
	MaterialName string  `json:"material_name,omitempty"`
	Reading      float64 `json:"reading,omitempty"`
	RecordedAt   int64   `json:"recorded_at,omitempty"`
}

// AtmosphericLogPayload replays atmospheric reading mutations.
type AtmosphericLogPayload struct {
	Base
	ProjectUUID      string  `json:"project_uuid"`
	RoomUUID         string  `json:"room_uuid,omitempty"`
	TemperatureC     float64 `json:"temperature_c,omitempty"`
	RelativeHumidity float64 `json:"relative_humidity,omitempty"`
	GrainsPerPound   float64 `json:"grains_per_pound,omitempty"`
	RecordedAt       int64   `json:"recorded_at,omitempty"`
}

// ConversationPayload replays support conversation creates.
type ConversationPayload struct {
	Base
	Subject string `json:"subject,omitempty"`
}

// MessagePayload replays support message creates.
type MessagePayload struct {
	Base
	ConversationUUID string `json:"conversation_uuid"`
	Body             string `json:"body,omitempty"`
}

// DecodePayload unmarshals a queue entry payload into its typed variant.
func DecodePayload(entityType string, data []byte) (Payload, error) {
	var p Payload
	switch entityType {
	case models.EntityProject:
		p = &ProjectPayload{}
	case models.EntityProperty:
		p = &PropertyPayload{}
	case models.EntityLocation:
		p = &LocationPayload{}
	case models.EntityRoom:
		p = &RoomPayload{}
	case models.EntityPhoto:
		p = &PhotoPayload{}
	case models.EntityNote:
		p = &NotePayload{}
	case models.EntityEquipment:
		p = &EquipmentPayload{}
	case models.EntityMoistureLog:
		p = &MoistureLogPayload{}
	case models.EntityAtmosphericLog:
		p = &AtmosphericLogPayload{}
	case models.EntityConversation:
		p = &ConversationPayload{}
	case models.EntitySupportMessage:
		p = &MessagePayload{}
	default:
		return nil, fmt.Errorf("no payload variant for entity type %q", entityType)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", entityType, err)
	}
	return p, nil
}

// EncodePayload marshals a typed payload for queue storage.
func EncodePayload(p Payload) (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}
