// Package models provides data model definitions for FieldSync.
package models

// SupportConversation is a help thread opened from the field.
type SupportConversation struct {
	LocalID   int64  `db:"local_id" json:"local_id"`
	UUID      UUID   `db:"uuid" json:"uuid"`
	Subject   string `db:"subject" json:"subject"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	SyncState
}

// TableName returns the table name for SupportConversation.
func (SupportConversation) TableName() string {
	return "support_conversations"
}

// SupportMessage is a message within a support conversation.
// Messages cannot push until their conversation has a ServerID.
type SupportMessage struct {
	LocalID          int64  `db:"local_id" json:"local_id"`
	UUID             UUID   `db:"uuid" json:"uuid"`
	ConversationUUID UUID   `db:"conversation_uuid" json:"conversation_uuid"`
	Body             string `db:"body" json:"body"`
	CreatedAt        int64  `db:"created_at" json:"created_at"`
	SyncState
}

// TableName returns the table name for SupportMessage.
func (SupportMessage) TableName() string {
	return "support_messages"
}
