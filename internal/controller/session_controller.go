package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/Marmoset/internal/dto"
	"github.com/lshigami/Marmoset/internal/service"
	"github.com/rs/zerolog/log"
)

type SessionController struct {
	sessionService service.SessionService
}

func NewSessionController(sessionService service.SessionService) *SessionController {
	return &SessionController{sessionService: sessionService}
}

// CreateSession godoc
// @Summary Create a practice session
// @Description Creates a timed practice session and immediately runs the activation pre-check. On activation failure the session is returned in status "created" and can be activated later.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param user_id query string true "Owning user ID"
// @Param session body dto.SessionCreateDTO true "Session configuration"
// @Success 201 {object} dto.SessionDTO
// @Failure 400 {object} dto.ErrorResponse
// @Router /sessions [post]
func (c *SessionController) CreateSession(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}
	var req dto.SessionCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	session, err := c.sessionService.Create(userID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	activated, err := c.sessionService.Activate(userID, session.ID)
	if err != nil {
		// Creation stands; the client can retry activation on its own.
		log.Warn().Err(err).Str("sessionID", session.ID.String()).Msg("Activation after create failed")
		ctx.JSON(http.StatusCreated, session)
		return
	}
	ctx.JSON(http.StatusCreated, activated)
}

// ActivateSession godoc
// @Summary Activate a created session
// @Tags Sessions
// @Produce json
// @Param user_id query string true "Owning user ID"
// @Param session_id path string true "Session ID"
// @Success 200 {object} dto.SessionDTO
// @Failure 409 {object} dto.ErrorResponse
// @Router /sessions/{session_id}/activate [post]
func (c *SessionController) ActivateSession(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(ctx, "session_id")
	if !ok {
		return
	}
	session, err := c.sessionService.Activate(userID, sessionID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, session)
}

// StartSession godoc
// @Summary Start a ready session
// @Description Stamps started_at and begins the countdown. Fails if the session is not in status "ready".
// @Tags Sessions
// @Produce json
// @Param user_id query string true "Owning user ID"
// @Param session_id path string true "Session ID"
// @Success 200 {object} dto.SessionDTO
// @Failure 409 {object} dto.ErrorResponse
// @Router /sessions/{session_id}/start [post]
func (c *SessionController) StartSession(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(ctx, "session_id")
	if !ok {
		return
	}
	session, err := c.sessionService.Start(userID, sessionID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, session)
}

// SubmitSession godoc
// @Summary Submit answers for an in-progress session
// @Description Accepts the answer payload, flips the session to "submitted" and, when request_grading is set, hands off to the asynchronous grader. Poll the submission to observe grading completion.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param user_id query string true "Owning user ID"
// @Param session_id path string true "Session ID"
// @Param submission body dto.SubmissionCreateDTO true "Answer payload"
// @Success 201 {object} dto.SubmissionDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 410 {object} dto.ErrorResponse "Session expired"
// @Router /sessions/{session_id}/submissions [post]
func (c *SessionController) SubmitSession(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(ctx, "session_id")
	if !ok {
		return
	}
	var req dto.SubmissionCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	submission, err := c.sessionService.Submit(userID, sessionID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, submission)
}

// GetSession godoc
// @Summary Get a session
// @Description Returns the session with its effective status; an in-progress session past its deadline reads as "expired".
// @Tags Sessions
// @Produce json
// @Param user_id query string true "Owning user ID"
// @Param session_id path string true "Session ID"
// @Success 200 {object} dto.SessionDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /sessions/{session_id} [get]
func (c *SessionController) GetSession(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(ctx, "session_id")
	if !ok {
		return
	}
	session, err := c.sessionService.Get(userID, sessionID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, session)
}

// ListSessions godoc
// @Summary List the caller's sessions
// @Tags Sessions
// @Produce json
// @Param user_id query string true "Owning user ID"
// @Success 200 {array} dto.SessionSummaryDTO
// @Router /sessions [get]
func (c *SessionController) ListSessions(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}
	sessions, err := c.sessionService.List(userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, sessions)
}

// GetSubmission godoc
// @Summary Get the submission for a session
// @Tags Sessions
// @Produce json
// @Param user_id query string true "Owning user ID"
// @Param session_id path string true "Session ID"
// @Success 200 {object} dto.SubmissionDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /sessions/{session_id}/submission [get]
func (c *SessionController) GetSubmission(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(ctx, "session_id")
	if !ok {
		return
	}
	submission, err := c.sessionService.GetSubmission(userID, sessionID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, submission)
}

// RegradeSubmission godoc
// @Summary Re-enqueue grading for an ungraded submission
// @Description Retry path after a grading failure. Safe to call repeatedly; an already-graded submission is rejected.
// @Tags Sessions
// @Produce json
// @Param user_id query string true "Owning user ID"
// @Param submission_id path string true "Submission ID"
// @Success 202 {object} map[string]string
// @Failure 409 {object} dto.ErrorResponse
// @Router /submissions/{submission_id}/regrade [post]
func (c *SessionController) RegradeSubmission(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}
	submissionID, ok := pathUUID(ctx, "submission_id")
	if !ok {
		return
	}
	if err := c.sessionService.RequestRegrade(userID, submissionID); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"status": "grading enqueued"})
}
