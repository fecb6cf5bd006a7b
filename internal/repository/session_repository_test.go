package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lshigami/Marmoset/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func seedSession(t *testing.T, repo SessionRepository, status model.SessionStatus) *model.PracticeSession {
	t.Helper()
	session := &model.PracticeSession{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		Title:            "Mechanics past paper",
		TimeLimitMinutes: 45,
		MaxScore:         60,
		Status:           status,
		Questions: datatypes.NewJSONType([]model.Question{
			{ID: "q1", Number: "1", Text: "State Newton's second law", Points: 60},
		}),
	}
	require.NoError(t, repo.Create(session))
	return session
}

func TestUpdateStatusIfCAS(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)
	session := seedSession(t, repo, model.SessionCreated)

	ok, err := repo.UpdateStatusIf(session.ID, model.SessionCreated, model.SessionReady, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// The expected status no longer matches; the swap must not apply.
	ok, err = repo.UpdateStatusIf(session.ID, model.SessionCreated, model.SessionReady, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded, err := repo.FindByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionReady, reloaded.Status)
}

func TestUpdateStatusIfWritesExtraFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)
	session := seedSession(t, repo, model.SessionReady)

	startedAt := time.Now().UTC().Truncate(time.Second)
	ok, err := repo.UpdateStatusIf(session.ID, model.SessionReady, model.SessionInProgress,
		map[string]any{"started_at": startedAt})
	require.NoError(t, err)
	require.True(t, ok)

	reloaded, err := repo.FindByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionInProgress, reloaded.Status)
	require.NotNil(t, reloaded.StartedAt)
	assert.True(t, reloaded.StartedAt.Equal(startedAt))
}

func TestUpdateStatusIfUnknownSession(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)

	ok, err := repo.UpdateStatusIf(uuid.New(), model.SessionCreated, model.SessionReady, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindByIDForUserScoping(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)
	session := seedSession(t, repo, model.SessionCreated)

	found, err := repo.FindByIDForUser(session.ID, session.UserID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.ID)

	_, err = repo.FindByIDForUser(session.ID, uuid.New())
	assert.Error(t, err, "another user's session must not be visible")
}

func TestQuestionsRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)
	session := seedSession(t, repo, model.SessionCreated)

	reloaded, err := repo.FindByID(session.ID)
	require.NoError(t, err)
	questions := reloaded.Questions.Data()
	require.Len(t, questions, 1)
	assert.Equal(t, "State Newton's second law", questions[0].Text)
	assert.Equal(t, 60.0, questions[0].Points)
}
