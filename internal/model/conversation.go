package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatRole is the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// Conversation scopes a teacher-bot chat to one user, optionally tied to a
// practice session for context.
type Conversation struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID     `gorm:"type:uuid;not null;index" json:"user_id"`
	SessionID *uuid.UUID    `gorm:"type:uuid;index" json:"session_id,omitempty"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type ChatMessage struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index" json:"conversation_id"`
	Role           ChatRole  `gorm:"not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	TokensUsed     *int32    `json:"tokens_used,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
