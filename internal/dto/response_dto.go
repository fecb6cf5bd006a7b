package dto

import (
	"time"

	"github.com/google/uuid"
)

type SessionDTO struct {
	ID               uuid.UUID     `json:"id"`
	UserID           uuid.UUID     `json:"user_id"`
	SubjectID        *uuid.UUID    `json:"subject_id,omitempty"`
	Title            string        `json:"title"`
	TimeLimitMinutes int           `json:"time_limit_minutes"`
	Questions        []QuestionDTO `json:"questions,omitempty"`
	QuestionDocID    *uuid.UUID    `json:"question_doc_id,omitempty"`
	MaxScore         float64       `json:"max_score"`
	Status           string        `json:"status"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	SubmittedAt      *time.Time    `json:"submitted_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

type SessionSummaryDTO struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	TimeLimitMinutes int        `json:"time_limit_minutes"`
	Status           string     `json:"status"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type QuestionGradeDTO struct {
	QuestionNumber string  `json:"question_number"`
	MarksAwarded   float64 `json:"marks_awarded"`
	MarksPossible  float64 `json:"marks_possible"`
	Feedback       string  `json:"feedback"`
	StudentAnswer  string  `json:"student_answer"`
}

type SubmissionDTO struct {
	ID             uuid.UUID          `json:"id"`
	SessionID      uuid.UUID          `json:"session_id"`
	Kind           string             `json:"kind"`
	TextContent    *string            `json:"text_content,omitempty"`
	DocumentID     *uuid.UUID         `json:"document_id,omitempty"`
	OverallScore   *float64           `json:"overall_score,omitempty"`
	MaxScore       *float64           `json:"max_score,omitempty"`
	Feedback       *string            `json:"feedback,omitempty"`
	QuestionGrades []QuestionGradeDTO `json:"question_grades,omitempty"`
	GradedAt       *time.Time         `json:"graded_at,omitempty"`
	GradingMillis  *int64             `json:"grading_millis,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

type ChatMessageDTO struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	TokensUsed     *int32    `json:"tokens_used,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ConversationDTO struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	SessionID *uuid.UUID       `json:"session_id,omitempty"`
	Title     string           `json:"title"`
	Messages  []ChatMessageDTO `json:"messages,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type ConversationSummaryDTO struct {
	ID        uuid.UUID  `json:"id"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type UsageSummaryDTO struct {
	UserID            uuid.UUID `json:"user_id"`
	RemainingCredits  int64     `json:"remaining_credits"`
	CreditsSpentToday int64     `json:"credits_spent_today"`
	ChatMessagesToday int64     `json:"chat_messages_today"`
}

type ErrorResponse struct {
	Message string   `json:"message"`
	Kind    string   `json:"kind,omitempty"`
	Details []string `json:"details,omitempty"`
}
