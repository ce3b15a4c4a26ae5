package models

import "time"

// User represents a registered platform account. Each account is identified
// by its phone number and owns at most one attached Telegram account.
// Sensitive fields must never be exposed outside trusted boundaries.
type User struct {
	// UserID is the internal unique identifier of the user.
	UserID int64 `json:"-"`

	// Phone is the E.164 phone number the account was registered with.
	// It doubles as the login identifier and as the Telegram account number.
	Phone string `json:"phone"`

	// PasswordHash stores the bcrypt hash of the platform password.
	// Never plaintext, never serialized.
	PasswordHash string `json:"-"`

	// APIID is the numeric Telegram API id the user obtained from
	// my.telegram.org. Zero means credentials are not set.
	APIID int `json:"api_id,omitempty"`

	// APIHashEncrypted is the Telegram api_hash wrapped by the credential
	// store. Only ciphertext is ever persisted or carried in this struct.
	APIHashEncrypted []byte `json:"-"`

	// TelegramSession is the wrapped opaque session blob produced by the
	// Telegram client library, or nil when the user has never completed
	// sign-in (or the authorization was revoked).
	TelegramSession []byte `json:"-"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at"`

	// LastLogin is the timestamp of the most recent successful login.
	LastLogin time.Time `json:"last_login"`

	// IsActive reports whether the account is enabled. Inactive accounts
	// are refused at login and by session validation.
	IsActive bool `json:"is_active"`
}

// TableName returns the name of the database table
// associated with the User model.
func (u User) TableName() string {
	return "users"
}

// HasAPICredentials reports whether both api_id and api_hash are present.
func (u User) HasAPICredentials() bool {
	return u.APIID != 0 && len(u.APIHashEncrypted) > 0
}

// HasTelegramSession reports whether a persisted session blob exists.
func (u User) HasTelegramSession() bool {
	return len(u.TelegramSession) > 0
}
