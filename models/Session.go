package models

import "time"

//goland:noinspection ALL
const (
	ROLE_USER      = "user"
	ROLE_ASSISTANT = "assistant"
)

// Session holds per-browser console state. ID is the SHA-512 of the cookie token.
type Session struct {
	ID        string    `gorm:"primaryKey;size:128"`
	ExpiresAt time.Time `gorm:"index"`

	LastResults    []Policy `gorm:"serializer:json;type:mediumtext"`
	PolicyCreated  bool
	LastPolicyName string
	Flash          string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TakeFlash returns the pending flash message and clears it.
func (s *Session) TakeFlash() string {
	f := s.Flash
	s.Flash = ""
	return f
}

type ChatMessage struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"index;size:128"`
	Role      string `gorm:"size:16"`
	Content   string `gorm:"type:mediumtext"`
	CreatedAt time.Time
}
