package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ActionKind names a metered action in the usage ledger.
type ActionKind string

const (
	ActionGrading     ActionKind = "grading"
	ActionChatMessage ActionKind = "chat_message"
)

// UsageRecord is an immutable ledger entry for one metered action. Rows are
// only ever inserted; quota computations sum over them.
type UsageRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_usage_user_time" json:"user_id"`
	ActionKind ActionKind     `gorm:"not null" json:"action_kind"`
	Credits    int64          `gorm:"not null" json:"credits"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"index:idx_usage_user_time" json:"created_at"`
}

// CreditBalance is the spendable balance for one user. Mutated only through
// the conditional deduct in the usage repository.
type CreditBalance struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Balance   int64     `gorm:"not null" json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
