package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubmissionKind discriminates the answer payload. Exactly one of the content
// fields must be populated, matching the kind.
type SubmissionKind string

const (
	SubmissionText     SubmissionKind = "text"
	SubmissionDocument SubmissionKind = "document"
)

// QuestionGrade is one per-question entry of a grading result, in question
// order as returned by the grader.
type QuestionGrade struct {
	QuestionNumber string  `json:"question_number"`
	MarksAwarded   float64 `json:"marks_awarded"`
	MarksPossible  float64 `json:"marks_possible"`
	Feedback       string  `json:"feedback"`
	StudentAnswer  string  `json:"student_answer"`
}

// PracticeSubmission is the answer artifact for one session, created once at
// submit time. Grading fields stay null until the orchestrator fills them,
// exactly once.
type PracticeSubmission struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"session_id"`

	Kind        SubmissionKind `gorm:"not null" json:"kind"`
	TextContent *string        `gorm:"type:text" json:"text_content,omitempty"`
	DocumentID  *uuid.UUID     `gorm:"type:uuid" json:"document_id,omitempty"`

	OverallScore   *float64                            `json:"overall_score,omitempty"`
	MaxScore       *float64                            `json:"max_score,omitempty"`
	Feedback       *string                             `gorm:"type:text" json:"feedback,omitempty"`
	QuestionGrades datatypes.JSONType[[]QuestionGrade] `json:"question_grades,omitempty"`
	GradedAt       *time.Time                          `json:"graded_at,omitempty"`
	GradingMillis  *int64                              `json:"grading_millis,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
