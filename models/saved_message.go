package models

import (
	"encoding/json"
	"time"
)

// SavedMessage is a raw message captured by a listener worker. Rows are
// unique on (listener_id, message_id) and are purged after the retention
// window (30 days) by the cleanup loop.
type SavedMessage struct {
	ID         int64 `json:"id"`
	ListenerID int64 `json:"listener_id"`

	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`

	// Data is an optional structured blob attached by the worker
	// (media descriptors, forward info), stored as JSONB.
	Data json.RawMessage `json:"data,omitempty"`

	SenderID   int64  `json:"sender_id"`
	SenderName string `json:"sender_name,omitempty"`

	MessageDate time.Time `json:"message_date"`
	SavedAt     time.Time `json:"saved_at"`
}

// TableName returns the database table backing SavedMessage rows.
func (m SavedMessage) TableName() string {
	return "saved_messages"
}

// ExtractedValue is one substring captured by an extractor elaboration.
// Unique on (elaboration_id, message_id, rule_name, occurrence_index) so a
// replayed message never duplicates its extractions.
type ExtractedValue struct {
	ID            int64 `json:"id"`
	ElaborationID int64 `json:"elaboration_id"`

	// MessageID references the saved_messages row the value came from.
	MessageID int64 `json:"message_id"`

	RuleName        string `json:"rule_name"`
	ExtractedValue  string `json:"extracted_value"`
	OccurrenceIndex int    `json:"occurrence_index"`

	ExtractedAt time.Time `json:"extracted_at"`
}

// TableName returns the database table backing ExtractedValue rows.
func (v ExtractedValue) TableName() string {
	return "extracted_values"
}
