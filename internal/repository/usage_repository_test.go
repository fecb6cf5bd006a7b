package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lshigami/Marmoset/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradingRecord(userID uuid.UUID, credits int64) *model.UsageRecord {
	return &model.UsageRecord{
		ID:         uuid.New(),
		UserID:     userID,
		ActionKind: model.ActionGrading,
		Credits:    credits,
	}
}

func TestEnsureBalanceLazyProvisioning(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUsageRepository(db)
	userID := uuid.New()

	balance, err := repo.EnsureBalance(userID, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Balance)

	// Existing balances are returned untouched, never reset.
	granted, err := repo.DeductIfAvailable(userID, 30, gradingRecord(userID, 30))
	require.NoError(t, err)
	require.True(t, granted)

	balance, err = repo.EnsureBalance(userID, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance.Balance)
}

func TestDeductIfAvailable(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUsageRepository(db)
	userID := uuid.New()

	_, err := repo.EnsureBalance(userID, 50)
	require.NoError(t, err)

	granted, err := repo.DeductIfAvailable(userID, 30, gradingRecord(userID, 30))
	require.NoError(t, err)
	assert.True(t, granted)

	// 20 left, a 30 credit request must be denied without a ledger entry.
	granted, err = repo.DeductIfAvailable(userID, 30, gradingRecord(userID, 30))
	require.NoError(t, err)
	assert.False(t, granted)

	balance, err := repo.GetBalance(userID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance.Balance)

	count, err := repo.CountSince(userID, model.ActionGrading, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeductIfAvailableUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUsageRepository(db)
	userID := uuid.New()

	granted, err := repo.DeductIfAvailable(userID, 10, gradingRecord(userID, 10))
	require.NoError(t, err)
	assert.False(t, granted, "no balance row means no credit")
}

func TestDeductIfAvailableConcurrentSingleWinner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUsageRepository(db)
	userID := uuid.New()

	_, err := repo.EnsureBalance(userID, 50)
	require.NoError(t, err)

	// Every request wants the whole balance; exactly one may win.
	const attempts = 8
	var wg sync.WaitGroup
	grants := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted, err := repo.DeductIfAvailable(userID, 50, gradingRecord(userID, 50))
			assert.NoError(t, err)
			if granted {
				grants <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(grants)

	count := 0
	for range grants {
		count++
	}
	assert.Equal(t, 1, count)

	balance, err := repo.GetBalance(userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Balance)

	records, err := repo.CountSince(userID, model.ActionGrading, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), records, "denied attempts leave no ledger entry")
}

func TestCountAndSumSince(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUsageRepository(db)
	userID := uuid.New()

	require.NoError(t, repo.InsertRecord(&model.UsageRecord{
		ID: uuid.New(), UserID: userID, ActionKind: model.ActionChatMessage, Credits: 0,
	}))
	require.NoError(t, repo.InsertRecord(&model.UsageRecord{
		ID: uuid.New(), UserID: userID, ActionKind: model.ActionGrading, Credits: 10,
	}))
	require.NoError(t, repo.InsertRecord(&model.UsageRecord{
		ID: uuid.New(), UserID: uuid.New(), ActionKind: model.ActionGrading, Credits: 99,
	}))

	chats, err := repo.CountSince(userID, model.ActionChatMessage, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), chats)

	total, err := repo.SumSince(userID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(10), total, "other users' spend is excluded")

	// A cutoff in the future matches nothing.
	future := time.Now().Add(time.Hour)
	chats, err = repo.CountSince(userID, model.ActionChatMessage, future)
	require.NoError(t, err)
	assert.Equal(t, int64(0), chats)
}
