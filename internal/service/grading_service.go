package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lshigami/Marmoset/config"
	"github.com/lshigami/Marmoset/internal/apperr"
	"github.com/lshigami/Marmoset/internal/model"
	"github.com/lshigami/Marmoset/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// gradingTemperature keeps the grader near-deterministic; consistency of
// marking matters more than variety.
const gradingTemperature = 0.1

const gradingMaxTokens = 8192

// GradingService scores an accepted submission through the completion gateway.
// It runs detached from the submitting request; failures leave the session in
// submitted and are retryable via regrade, never fatal to the session.
type GradingService interface {
	Grade(ctx context.Context, task GradingTask) error
}

type gradingService struct {
	sessionRepo    repository.SessionRepository
	submissionRepo repository.SubmissionRepository
	usageService   UsageService
	gateway        CompletionGateway
	cfg            *config.Config
	now            func() time.Time
}

func NewGradingService(
	sessionRepo repository.SessionRepository,
	submissionRepo repository.SubmissionRepository,
	usageService UsageService,
	gateway CompletionGateway,
	cfg *config.Config,
) GradingService {
	return &gradingService{
		sessionRepo:    sessionRepo,
		submissionRepo: submissionRepo,
		usageService:   usageService,
		gateway:        gateway,
		cfg:            cfg,
		now:            time.Now,
	}
}

// gradingPayload is the strict output contract the gateway must satisfy.
// overall_score and questions are required; a response missing either is
// rejected rather than coerced.
type gradingPayload struct {
	OverallScore *float64               `json:"overall_score"`
	MaxScore     float64                `json:"max_score"`
	Feedback     string                 `json:"feedback"`
	Questions    *[]model.QuestionGrade `json:"questions"`
}

func (s *gradingService) Grade(ctx context.Context, task GradingTask) error {
	started := s.now()

	submission, err := s.submissionRepo.FindByID(task.SubmissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindNotFound, "submission not found")
		}
		return err
	}
	if submission.GradedAt != nil {
		log.Info().Str("submissionID", task.SubmissionID.String()).Msg("Submission already graded, skipping")
		return nil
	}

	session, err := s.sessionRepo.FindByID(submission.SessionID)
	if err != nil {
		return err
	}
	if session.Status != model.SessionSubmitted {
		log.Info().Str("sessionID", session.ID.String()).Str("status", string(session.Status)).
			Msg("Session no longer awaiting grading, skipping")
		return nil
	}
	if submission.Kind != model.SubmissionText || submission.TextContent == nil {
		return apperr.New(apperr.KindValidation, "only text submissions can be graded")
	}

	// Metering gate: deny before any external call so a quota miss never
	// charges and never reaches the gateway.
	granted, err := s.usageService.CheckAndReserve(task.UserID, model.ActionGrading, s.cfg.Practice.GradingCreditCost,
		map[string]any{"session_id": session.ID.String(), "submission_id": submission.ID.String()})
	if err != nil {
		return err
	}
	if !granted {
		return apperr.New(apperr.KindQuotaExceeded, "insufficient credits for grading")
	}

	messages := buildGradingPrompt(session, *submission.TextContent)
	completion, err := s.gateway.Complete(ctx, messages, gradingTemperature, gradingMaxTokens)
	if err != nil {
		log.Error().Err(err).Str("submissionID", submission.ID.String()).Msg("Completion gateway failed during grading")
		return apperr.Wrap(apperr.KindGatewayFailure, "completion gateway call failed", err)
	}

	result, err := parseGradingResult(completion.Content, session.MaxScore)
	if err != nil {
		// Keep the raw text for diagnosis; nothing partial is persisted.
		log.Error().Err(err).Str("submissionID", submission.ID.String()).
			Str("rawResponse", completion.Content).Msg("Failed to parse grading response")
		return apperr.Wrap(apperr.KindGatewayFailure, "grading response failed validation", err)
	}

	gradedAt := s.now()
	millis := gradedAt.Sub(started).Milliseconds()
	grades, err := json.Marshal(result.Questions)
	if err != nil {
		return apperr.Wrap(apperr.KindGatewayFailure, "failed to serialize question grades", err)
	}

	ok, err := s.submissionRepo.UpdateGradingIfUngraded(submission.ID, map[string]any{
		"overall_score":   result.OverallScore,
		"max_score":       result.MaxScore,
		"feedback":        result.Feedback,
		"question_grades": datatypes.JSON(grades),
		"graded_at":       gradedAt,
		"grading_millis":  millis,
	})
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Str("submissionID", submission.ID.String()).Msg("Grading result already persisted by another run")
		return nil
	}

	ok, err = s.sessionRepo.UpdateStatusIf(session.ID, model.SessionSubmitted, model.SessionGraded, nil)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Str("sessionID", session.ID.String()).Msg("Session left submitted state before grading transition")
	}

	log.Info().Str("submissionID", submission.ID.String()).
		Float64("overallScore", result.OverallScore).
		Int64("durationMs", millis).
		Int32("tokens", completion.TotalTokens).
		Msg("Submission graded")
	return nil
}

// gradedResult is the reconciled, clamped form that gets persisted.
type gradedResult struct {
	OverallScore float64
	MaxScore     float64
	Feedback     string
	Questions    []model.QuestionGrade
}

// parseGradingResult extracts the embedded JSON object, validates the required
// fields and clamps the score. The external model is untrusted to respect
// numeric bounds.
func parseGradingResult(raw string, sessionMax float64) (*gradedResult, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var payload gradingPayload
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return nil, fmt.Errorf("invalid JSON in grading response: %w", err)
	}
	if payload.OverallScore == nil {
		return nil, fmt.Errorf("grading response missing required field overall_score")
	}
	if payload.Questions == nil {
		return nil, fmt.Errorf("grading response missing required field questions")
	}

	maxScore := sessionMax
	if maxScore <= 0 {
		maxScore = payload.MaxScore
	}

	overall := *payload.OverallScore
	if maxScore > 0 && overall > maxScore {
		overall = maxScore
	}
	if overall < 0 {
		overall = 0
	}

	return &gradedResult{
		OverallScore: overall,
		MaxScore:     maxScore,
		Feedback:     payload.Feedback,
		Questions:    *payload.Questions,
	}, nil
}

// buildGradingPrompt assembles the deterministic grading request: rubric and
// output contract, the serialized question set, the answer, and the marking
// scheme when present.
func buildGradingPrompt(session *model.PracticeSession, answer string) []GatewayMessage {
	var system strings.Builder
	system.WriteString("You are an experienced examiner marking a student's practice exam.\n")
	system.WriteString("Mark strictly against the question set and, when provided, the marking scheme.\n")
	system.WriteString("Respond with a single JSON object and nothing else, in exactly this shape:\n")
	system.WriteString(`{"overall_score": number, "max_score": number, "feedback": string, ` +
		`"questions": [{"question_number": string, "marks_awarded": number, "marks_possible": number, ` +
		`"feedback": string, "student_answer": string}]}` + "\n")
	fmt.Fprintf(&system, "The maximum obtainable score is %.1f. overall_score must not exceed it.\n", session.MaxScore)

	var user strings.Builder
	fmt.Fprintf(&user, "Exam title: %s\n\n", session.Title)

	questions := session.Questions.Data()
	if len(questions) > 0 {
		user.WriteString("Question set:\n")
		if serialized, err := json.Marshal(questions); err == nil {
			user.Write(serialized)
		}
		user.WriteString("\n\n")
	}
	if len(session.MarkingScheme) > 0 {
		user.WriteString("Marking scheme:\n")
		user.Write(session.MarkingScheme)
		user.WriteString("\n\n")
	}

	user.WriteString("Student's answers:\n---\n")
	user.WriteString(answer)
	user.WriteString("\n---\n")

	return []GatewayMessage{
		{Role: "system", Content: system.String()},
		{Role: "user", Content: user.String()},
	}
}
