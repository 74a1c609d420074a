package models

import "time"

// NotConfigured replaces both credential fields when the API key is deleted.
const NotConfigured = "not-configured"

// UserSettings holds the encrypted analysis-service credential for one identity.
type UserSettings struct {
	ID              int64     `json:"-"`
	UserID          string    `json:"user_id"`
	EncryptedAPIKey string    `json:"-"`
	EncryptionIV    string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasAPIKey reports whether a real credential is stored.
func (s *UserSettings) HasAPIKey() bool {
	return s != nil && s.EncryptedAPIKey != "" && s.EncryptedAPIKey != NotConfigured
}
