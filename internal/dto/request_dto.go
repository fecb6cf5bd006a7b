package dto

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QuestionDTO is one inline question in a session's question set.
type QuestionDTO struct {
	ID           string        `json:"id" binding:"required"`
	Number       string        `json:"number" binding:"required"`
	Text         string        `json:"text" binding:"required"`
	Points       float64       `json:"points" binding:"required,gt=0"`
	SubQuestions []QuestionDTO `json:"sub_questions,omitempty" binding:"omitempty,dive"`
}

// SessionCreateDTO is the payload for creating a practice session. The
// question set is either inline questions or a document reference.
type SessionCreateDTO struct {
	Title            string          `json:"title" binding:"required"`
	TimeLimitMinutes int             `json:"time_limit_minutes" binding:"required,gt=0"`
	SubjectID        *uuid.UUID      `json:"subject_id,omitempty"`
	Questions        []QuestionDTO   `json:"questions,omitempty" binding:"omitempty,dive"`
	QuestionDocID    *uuid.UUID      `json:"question_doc_id,omitempty"`
	MarkingScheme    json.RawMessage `json:"marking_scheme,omitempty"`
	MarkingSchemeDoc *uuid.UUID      `json:"marking_scheme_doc_id,omitempty"`
	MaxScore         float64         `json:"max_score,omitempty"`
}

// SubmissionCreateDTO is the payload for submitting answers to a session.
type SubmissionCreateDTO struct {
	Kind           string     `json:"kind" binding:"required,oneof=text document"`
	TextContent    *string    `json:"text_content,omitempty"`
	DocumentID     *uuid.UUID `json:"document_id,omitempty"`
	RequestGrading bool       `json:"request_grading"`
}

type ConversationCreateDTO struct {
	Title     string     `json:"title"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
}

type ChatMessageSendDTO struct {
	Content string `json:"content" binding:"required"`
}
