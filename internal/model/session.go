package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SessionStatus enumerates the lifecycle states of a practice session.
// Tokens are part of the API contract, exactly these six.
type SessionStatus string

const (
	SessionCreated    SessionStatus = "created"
	SessionReady      SessionStatus = "ready"
	SessionInProgress SessionStatus = "in_progress"
	SessionSubmitted  SessionStatus = "submitted"
	SessionGraded     SessionStatus = "graded"
	SessionExpired    SessionStatus = "expired"
)

// sessionEdges lists the only legal forward transitions. expired and graded
// are terminal.
var sessionEdges = map[SessionStatus][]SessionStatus{
	SessionCreated:    {SessionReady},
	SessionReady:      {SessionInProgress},
	SessionInProgress: {SessionSubmitted, SessionExpired},
	SessionSubmitted:  {SessionGraded},
}

// CanTransitionTo reports whether next is a legal successor of s. No skipping,
// no running backward.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, n := range sessionEdges[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Question is one entry of an inline question set. Stored as JSONB on the
// session; immutable after creation.
type Question struct {
	ID           string     `json:"id"`
	Number       string     `json:"number"`
	Text         string     `json:"text"`
	Points       float64    `json:"points"`
	SubQuestions []Question `json:"sub_questions,omitempty"`
}

// PracticeSession is one timed exam attempt.
//
// Configuration fields (title, time limit, question set, marking scheme, max
// score) are fixed at creation. Lifecycle fields are monotonic: StartedAt and
// SubmittedAt are each set at most once, by the transition that owns them.
type PracticeSession struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	SubjectID *uuid.UUID `gorm:"type:uuid;index" json:"subject_id,omitempty"`

	Title            string                          `gorm:"not null" json:"title"`
	TimeLimitMinutes int                             `gorm:"not null" json:"time_limit_minutes"`
	Questions        datatypes.JSONType[[]Question]  `json:"questions"`
	QuestionDocID    *uuid.UUID                      `gorm:"type:uuid" json:"question_doc_id,omitempty"`
	MarkingScheme    datatypes.JSON                  `json:"marking_scheme,omitempty"`
	MarkingSchemeDoc *uuid.UUID                      `gorm:"type:uuid" json:"marking_scheme_doc_id,omitempty"`
	MaxScore         float64                         `json:"max_score"`

	Status      SessionStatus `gorm:"not null;default:'created';index" json:"status"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Deadline returns the instant past which a started session counts as expired,
// including the grace window. Zero time if the session never started.
func (s *PracticeSession) Deadline(grace time.Duration) time.Time {
	if s.StartedAt == nil {
		return time.Time{}
	}
	return s.StartedAt.Add(time.Duration(s.TimeLimitMinutes)*time.Minute + grace)
}
