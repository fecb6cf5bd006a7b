package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/lshigami/Marmoset/internal/apperr"
	"github.com/lshigami/Marmoset/internal/dto"
	"github.com/lshigami/Marmoset/internal/model"
	"github.com/lshigami/Marmoset/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GradingTask is the unit of work handed to the grading pool after a
// submission is accepted.
type GradingTask struct {
	SubmissionID uuid.UUID
	SessionID    uuid.UUID
	UserID       uuid.UUID
}

// GradingQueue is the detached handoff between submit and the grading workers.
// Enqueue must not block the submitting request; false means the queue is full
// and the submission stays ungraded until a regrade is requested.
type GradingQueue interface {
	Enqueue(task GradingTask) bool
}

// SessionService owns the practice-session state machine. Every transition is
// a compare-and-swap keyed on the expected current status, so concurrent
// requests race safely: the loser gets a typed precondition failure instead of
// overwriting.
type SessionService interface {
	Create(userID uuid.UUID, req dto.SessionCreateDTO) (*dto.SessionDTO, error)
	Activate(userID uuid.UUID, sessionID uuid.UUID) (*dto.SessionDTO, error)
	Start(userID uuid.UUID, sessionID uuid.UUID) (*dto.SessionDTO, error)
	Submit(userID uuid.UUID, sessionID uuid.UUID, req dto.SubmissionCreateDTO) (*dto.SubmissionDTO, error)
	Get(userID uuid.UUID, sessionID uuid.UUID) (*dto.SessionDTO, error)
	List(userID uuid.UUID) ([]dto.SessionSummaryDTO, error)
	GetSubmission(userID uuid.UUID, sessionID uuid.UUID) (*dto.SubmissionDTO, error)
	// RequestRegrade re-enqueues grading for a submission whose earlier grading
	// run failed. Idempotent: a graded submission is rejected, and the
	// graded-at guard plus the submitted→graded CAS make duplicate runs safe.
	RequestRegrade(userID uuid.UUID, submissionID uuid.UUID) error
}

type sessionService struct {
	sessionRepo    repository.SessionRepository
	submissionRepo repository.SubmissionRepository
	usageService   UsageService
	expiry         *ExpiryMonitor
	gradingQueue   GradingQueue
	now            func() time.Time
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	submissionRepo repository.SubmissionRepository,
	usageService UsageService,
	expiry *ExpiryMonitor,
	gradingQueue GradingQueue,
) SessionService {
	return &sessionService{
		sessionRepo:    sessionRepo,
		submissionRepo: submissionRepo,
		usageService:   usageService,
		expiry:         expiry,
		gradingQueue:   gradingQueue,
		now:            time.Now,
	}
}

func (s *sessionService) Create(userID uuid.UUID, req dto.SessionCreateDTO) (*dto.SessionDTO, error) {
	if req.Title == "" {
		return nil, apperr.New(apperr.KindValidation, "title must not be empty")
	}
	if req.TimeLimitMinutes <= 0 {
		return nil, apperr.New(apperr.KindValidation, "time limit must be positive")
	}
	if len(req.Questions) == 0 && req.QuestionDocID == nil {
		return nil, apperr.New(apperr.KindValidation, "question set requires inline questions or a document reference")
	}
	if len(req.Questions) > 0 && req.QuestionDocID != nil {
		return nil, apperr.New(apperr.KindValidation, "question set must be inline or a document reference, not both")
	}

	questions := make([]model.Question, 0, len(req.Questions))
	for _, q := range req.Questions {
		questions = append(questions, questionFromDTO(q))
	}

	maxScore := req.MaxScore
	if maxScore <= 0 {
		maxScore = totalPoints(questions)
	}

	session := &model.PracticeSession{
		ID:               uuid.New(),
		UserID:           userID,
		SubjectID:        req.SubjectID,
		Title:            req.Title,
		TimeLimitMinutes: req.TimeLimitMinutes,
		Questions:        datatypes.NewJSONType(questions),
		QuestionDocID:    req.QuestionDocID,
		MarkingSchemeDoc: req.MarkingSchemeDoc,
		MaxScore:         maxScore,
		Status:           model.SessionCreated,
	}
	if len(req.MarkingScheme) > 0 {
		session.MarkingScheme = datatypes.JSON(req.MarkingScheme)
	}

	if err := s.sessionRepo.Create(session); err != nil {
		log.Error().Err(err).Str("userID", userID.String()).Msg("Failed to create practice session")
		return nil, err
	}
	log.Info().Str("sessionID", session.ID.String()).Str("title", session.Title).Msg("Practice session created")
	return sessionToDTO(session), nil
}

// Activate runs the eligibility pre-check (lazy credit provisioning) and flips
// created → ready. Separated from Create so the two can fail independently.
func (s *sessionService) Activate(userID uuid.UUID, sessionID uuid.UUID) (*dto.SessionDTO, error) {
	session, err := s.loadOwned(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionCreated {
		return nil, apperr.Newf(apperr.KindInvalidState, "cannot activate session in status %q", session.Status)
	}
	if err := s.usageService.EnsureAllowance(userID); err != nil {
		return nil, err
	}
	ok, err := s.sessionRepo.UpdateStatusIf(sessionID, model.SessionCreated, model.SessionReady, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.KindConflict, "session status changed concurrently")
	}
	session.Status = model.SessionReady
	return sessionToDTO(session), nil
}

func (s *sessionService) Start(userID uuid.UUID, sessionID uuid.UUID) (*dto.SessionDTO, error) {
	session, err := s.loadOwned(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionReady {
		return nil, apperr.Newf(apperr.KindInvalidState, "cannot start session in status %q", session.Status)
	}

	startedAt := s.now()
	ok, err := s.sessionRepo.UpdateStatusIf(sessionID, model.SessionReady, model.SessionInProgress,
		map[string]any{"started_at": startedAt})
	if err != nil {
		return nil, err
	}
	if !ok {
		// Another request won the transition; started_at stays theirs.
		return nil, apperr.New(apperr.KindConflict, "session was started concurrently")
	}
	session.Status = model.SessionInProgress
	session.StartedAt = &startedAt
	log.Info().Str("sessionID", sessionID.String()).Msg("Practice session started")
	return sessionToDTO(session), nil
}

func (s *sessionService) Submit(userID uuid.UUID, sessionID uuid.UUID, req dto.SubmissionCreateDTO) (*dto.SubmissionDTO, error) {
	session, err := s.loadOwned(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionInProgress {
		return nil, apperr.Newf(apperr.KindInvalidState, "cannot submit to session in status %q", session.Status)
	}

	// Expiry is checked before accepting the payload: a late submission is
	// rejected outright, never accepted and then discarded.
	if s.expiry.IsExpired(session) {
		s.markExpired(session)
		return nil, apperr.New(apperr.KindSessionExpired, "session time limit exceeded")
	}

	submission, err := buildSubmission(session.ID, req)
	if err != nil {
		return nil, err
	}

	if err := s.submissionRepo.Create(submission); err != nil {
		// The unique index on session_id makes the second of two concurrent
		// submits fail here; report it as the lost race it is.
		log.Warn().Err(err).Str("sessionID", sessionID.String()).Msg("Submission insert failed")
		return nil, apperr.Wrap(apperr.KindConflict, "a submission already exists for this session", err)
	}

	submittedAt := s.now()
	ok, err := s.sessionRepo.UpdateStatusIf(sessionID, model.SessionInProgress, model.SessionSubmitted,
		map[string]any{"submitted_at": submittedAt})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.KindConflict, "session status changed concurrently")
	}
	log.Info().Str("sessionID", sessionID.String()).Str("submissionID", submission.ID.String()).Msg("Submission accepted")

	if req.RequestGrading {
		task := GradingTask{SubmissionID: submission.ID, SessionID: sessionID, UserID: userID}
		if !s.gradingQueue.Enqueue(task) {
			// Not fatal: the session stays submitted and a regrade can be
			// requested later.
			log.Warn().Str("submissionID", submission.ID.String()).Msg("Grading queue full, submission left ungraded")
		}
	}
	return submissionToDTO(submission), nil
}

func (s *sessionService) Get(userID uuid.UUID, sessionID uuid.UUID) (*dto.SessionDTO, error) {
	session, err := s.loadOwned(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if s.expiry.IsExpired(session) {
		s.markExpired(session)
		session.Status = model.SessionExpired
	}
	return sessionToDTO(session), nil
}

func (s *sessionService) List(userID uuid.UUID) ([]dto.SessionSummaryDTO, error) {
	sessions, err := s.sessionRepo.FindAllByUser(userID)
	if err != nil {
		return nil, err
	}
	dtos := make([]dto.SessionSummaryDTO, 0, len(sessions))
	for i := range sessions {
		if s.expiry.IsExpired(&sessions[i]) {
			s.markExpired(&sessions[i])
			sessions[i].Status = model.SessionExpired
		}
		var summary dto.SessionSummaryDTO
		if err := copier.Copy(&summary, &sessions[i]); err != nil {
			log.Error().Err(err).Str("sessionID", sessions[i].ID.String()).Msg("Failed to copy session summary")
			continue
		}
		summary.Status = string(sessions[i].Status)
		dtos = append(dtos, summary)
	}
	return dtos, nil
}

func (s *sessionService) GetSubmission(userID uuid.UUID, sessionID uuid.UUID) (*dto.SubmissionDTO, error) {
	if _, err := s.loadOwned(sessionID, userID); err != nil {
		return nil, err
	}
	submission, err := s.submissionRepo.FindBySessionID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "no submission for this session")
		}
		return nil, err
	}
	return submissionToDTO(submission), nil
}

func (s *sessionService) RequestRegrade(userID uuid.UUID, submissionID uuid.UUID) error {
	submission, err := s.submissionRepo.FindByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindNotFound, "submission not found")
		}
		return err
	}
	session, err := s.loadOwned(submission.SessionID, userID)
	if err != nil {
		return err
	}
	if session.Status != model.SessionSubmitted {
		return apperr.Newf(apperr.KindInvalidState, "cannot regrade session in status %q", session.Status)
	}
	if submission.GradedAt != nil {
		return apperr.New(apperr.KindInvalidState, "submission is already graded")
	}
	task := GradingTask{SubmissionID: submission.ID, SessionID: session.ID, UserID: userID}
	if !s.gradingQueue.Enqueue(task) {
		return apperr.New(apperr.KindQuotaExceeded, "grading queue is full, try again later")
	}
	log.Info().Str("submissionID", submissionID.String()).Msg("Regrade enqueued")
	return nil
}

// markExpired persists the expired status best-effort. The computed result is
// authoritative for the current call whether or not this write lands.
func (s *sessionService) markExpired(session *model.PracticeSession) {
	ok, err := s.sessionRepo.UpdateStatusIf(session.ID, model.SessionInProgress, model.SessionExpired, nil)
	if err != nil {
		log.Warn().Err(err).Str("sessionID", session.ID.String()).Msg("Failed to persist expired status")
		return
	}
	if ok {
		log.Info().Str("sessionID", session.ID.String()).Msg("Session marked expired")
	}
}

func (s *sessionService) loadOwned(sessionID uuid.UUID, userID uuid.UUID) (*model.PracticeSession, error) {
	session, err := s.sessionRepo.FindByIDForUser(sessionID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "session not found")
		}
		return nil, err
	}
	return session, nil
}

func buildSubmission(sessionID uuid.UUID, req dto.SubmissionCreateDTO) (*model.PracticeSubmission, error) {
	kind := model.SubmissionKind(req.Kind)
	switch kind {
	case model.SubmissionText:
		if req.TextContent == nil || *req.TextContent == "" {
			return nil, apperr.New(apperr.KindValidation, "text submission requires non-empty text_content")
		}
		if req.DocumentID != nil {
			return nil, apperr.New(apperr.KindValidation, "text submission must not carry a document_id")
		}
	case model.SubmissionDocument:
		if req.DocumentID == nil {
			return nil, apperr.New(apperr.KindValidation, "document submission requires document_id")
		}
		if req.TextContent != nil {
			return nil, apperr.New(apperr.KindValidation, "document submission must not carry text_content")
		}
	default:
		return nil, apperr.Newf(apperr.KindValidation, "unknown submission kind %q", req.Kind)
	}
	return &model.PracticeSubmission{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Kind:        kind,
		TextContent: req.TextContent,
		DocumentID:  req.DocumentID,
	}, nil
}

func questionFromDTO(q dto.QuestionDTO) model.Question {
	subs := make([]model.Question, 0, len(q.SubQuestions))
	for _, sub := range q.SubQuestions {
		subs = append(subs, questionFromDTO(sub))
	}
	return model.Question{ID: q.ID, Number: q.Number, Text: q.Text, Points: q.Points, SubQuestions: subs}
}

func totalPoints(questions []model.Question) float64 {
	total := 0.0
	for _, q := range questions {
		if len(q.SubQuestions) > 0 {
			total += totalPoints(q.SubQuestions)
			continue
		}
		total += q.Points
	}
	return total
}

func sessionToDTO(session *model.PracticeSession) *dto.SessionDTO {
	var resp dto.SessionDTO
	if err := copier.Copy(&resp, session); err != nil {
		log.Error().Err(err).Msg("Failed to copy session to DTO")
	}
	resp.Status = string(session.Status)
	resp.Questions = questionsToDTO(session.Questions.Data())
	return &resp
}

func questionsToDTO(questions []model.Question) []dto.QuestionDTO {
	dtos := make([]dto.QuestionDTO, 0, len(questions))
	for _, q := range questions {
		dtos = append(dtos, dto.QuestionDTO{
			ID:           q.ID,
			Number:       q.Number,
			Text:         q.Text,
			Points:       q.Points,
			SubQuestions: questionsToDTO(q.SubQuestions),
		})
	}
	return dtos
}

func submissionToDTO(sub *model.PracticeSubmission) *dto.SubmissionDTO {
	var resp dto.SubmissionDTO
	if err := copier.Copy(&resp, sub); err != nil {
		log.Error().Err(err).Msg("Failed to copy submission to DTO")
	}
	resp.Kind = string(sub.Kind)
	grades := sub.QuestionGrades.Data()
	if len(grades) > 0 {
		resp.QuestionGrades = make([]dto.QuestionGradeDTO, 0, len(grades))
		for _, g := range grades {
			resp.QuestionGrades = append(resp.QuestionGrades, dto.QuestionGradeDTO(g))
		}
	}
	return &resp
}
