package models

import (
	"encoding/json"
	"time"
)

// ElaborationType selects the processing applied by a listener worker to each
// captured message.
type ElaborationType string

const (
	// ElaborationTypeExtractor captures substrings by rule
	// (search text + value length) into extracted_values.
	ElaborationTypeExtractor ElaborationType = "extractor"

	// ElaborationTypeRedirect forwards the message to a destination chat.
	// At most one redirect may exist per listener.
	ElaborationTypeRedirect ElaborationType = "redirect"
)

// MessageListener is a per-(user, source chat) worker that saves raw messages
// and runs an ordered list of elaborations over them. Unlike logging
// sessions, a listener row is unique on (user_id, source_chat_id) regardless
// of is_active.
type MessageListener struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`

	SourceChatID       int64    `json:"source_chat_id"`
	SourceChatTitle    string   `json:"source_chat_title"`
	SourceChatUsername string   `json:"source_chat_username,omitempty"`
	SourceChatType     ChatType `json:"source_chat_type"`

	IsActive bool `json:"is_active"`

	ContainerName   string          `json:"container_name"`
	ContainerID     string          `json:"container_id,omitempty"`
	ContainerStatus ContainerStatus `json:"container_status"`

	MessagesSaved int64  `json:"messages_saved"`
	ErrorsCount   int    `json:"errors_count"`
	LastError     string `json:"last_error,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	StoppedAt     *time.Time `json:"stopped_at,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`

	// Elaborations is populated on reads that join the child table, ordered
	// by priority. Not a database column.
	Elaborations []MessageElaboration `json:"elaborations,omitempty"`
}

// TableName returns the database table backing MessageListener rows.
func (l MessageListener) TableName() string {
	return "message_listeners"
}

// ActiveRedirect returns the listener's redirect elaboration, or nil.
func (l MessageListener) ActiveRedirect() *MessageElaboration {
	for i := range l.Elaborations {
		e := &l.Elaborations[i]
		if e.Type == ElaborationTypeRedirect && e.IsActive {
			return e
		}
	}
	return nil
}

// MessageElaboration is one processing rule attached to a listener. Names are
// unique per listener, and the database enforces at most one redirect row per
// listener through a partial unique index.
type MessageElaboration struct {
	ID         int64 `json:"id"`
	ListenerID int64 `json:"listener_id"`

	Type ElaborationType `json:"type"`
	Name string          `json:"name"`

	// Config is the type-specific rule payload, stored as JSONB.
	Config ElaborationConfig `json:"config"`

	IsActive bool `json:"is_active"`

	// Priority orders elaborations within one listener; lower runs first.
	Priority int `json:"priority"`

	MatchesCount int64 `json:"matches_count"`
	ErrorsCount  int   `json:"errors_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table backing MessageElaboration rows.
func (e MessageElaboration) TableName() string {
	return "message_elaborations"
}

// ElaborationConfig is the structured rule payload. Extractors use SearchText
// and ValueLength; redirects use TargetChatID and TargetTitle. Unused fields
// are omitted from the stored JSON.
type ElaborationConfig struct {
	// SearchText is the literal marker an extractor scans for.
	SearchText string `json:"search_text,omitempty"`

	// ValueLength is the number of characters captured after each
	// occurrence of SearchText (surrounding whitespace is then stripped).
	ValueLength int `json:"value_length,omitempty"`

	// TargetChatID is the destination chat of a redirect.
	TargetChatID int64 `json:"target_chat_id,omitempty"`

	// TargetTitle is the resolved display title of the destination chat.
	TargetTitle string `json:"target_title,omitempty"`
}

// Value serializes the config for storage in a JSONB column.
func (c ElaborationConfig) Value() ([]byte, error) {
	return json.Marshal(c)
}

// ScanConfig decodes a JSONB payload into c.
func (c *ElaborationConfig) ScanConfig(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, c)
}
