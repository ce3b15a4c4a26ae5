package models

import "time"

// MessageType classifies the payload of a captured message.
type MessageType string

// Message payload kinds stored in message_logs.message_type.
const (
	MessageTypeText     MessageType = "text"
	MessageTypePhoto    MessageType = "photo"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
	MessageTypeSticker  MessageType = "sticker"
	MessageTypeOther    MessageType = "other"
)

// MessageLog is one message captured by a logging session. The ID column is a
// database sequence and provides the globally progressive number required by
// the platform; it is monotonic but not gap-free.
//
// Rows are unique on (chat_id, message_id, logging_session_id); replays from
// a restarted worker are absorbed by ON CONFLICT DO NOTHING.
type MessageLog struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`

	ChatID       int64    `json:"chat_id"`
	ChatTitle    string   `json:"chat_title"`
	ChatUsername string   `json:"chat_username,omitempty"`
	ChatType     ChatType `json:"chat_type"`

	MessageID      int64  `json:"message_id"`
	SenderID       int64  `json:"sender_id"`
	SenderName     string `json:"sender_name,omitempty"`
	SenderUsername string `json:"sender_username,omitempty"`

	MessageText string      `json:"message_text"`
	MessageType MessageType `json:"message_type"`
	MediaFileID string      `json:"media_file_id,omitempty"`

	// MessageDate is the wall clock reported by Telegram for the message;
	// LoggedAt is the wall clock at the moment of insert.
	MessageDate time.Time `json:"message_date"`
	LoggedAt    time.Time `json:"logged_at"`

	LoggingSessionID int64 `json:"logging_session_id"`
}

// TableName returns the database table backing MessageLog rows.
func (m MessageLog) TableName() string {
	return "message_logs"
}
