package models

import "time"

// ContainerStatus is the lifecycle state of a worker container row.
type ContainerStatus string

// Worker row states. Transitions: creating → running → stopped, with
// creating/running → error on launch failure or crash, and error → removed
// after the retention window.
const (
	ContainerStatusCreating ContainerStatus = "creating"
	ContainerStatusRunning  ContainerStatus = "running"
	ContainerStatusError    ContainerStatus = "error"
	ContainerStatusStopped  ContainerStatus = "stopped"
	ContainerStatusRemoved  ContainerStatus = "removed"
)

// LoggingSession is a per-(user, chat) background worker that captures every
// message from the source chat into message_logs. At most one row per
// (user_id, chat_id) may be active at a time; historical rows are retained
// with is_active = false.
type LoggingSession struct {
	ID           int64    `json:"id"`
	UserID       int64    `json:"user_id"`
	ChatID       int64    `json:"chat_id"`
	ChatTitle    string   `json:"chat_title"`
	ChatUsername string   `json:"chat_username,omitempty"`
	ChatType     ChatType `json:"chat_type"`

	IsActive bool `json:"is_active"`

	// ContainerName is the deterministic docker container name,
	// solanagram-log-{user_id}-{safe_chat_id}. Unique while active.
	ContainerName   string          `json:"container_name"`
	ContainerID     string          `json:"container_id,omitempty"`
	ContainerStatus ContainerStatus `json:"container_status"`

	MessagesLogged int64  `json:"messages_logged"`
	ErrorsCount    int    `json:"errors_count"`
	LastError      string `json:"last_error,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	StoppedAt     *time.Time `json:"stopped_at,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// TableName returns the database table backing LoggingSession rows.
func (s LoggingSession) TableName() string {
	return "logging_sessions"
}
