package service

import (
	"testing"
	"time"

	"github.com/lshigami/Marmoset/config"
	"github.com/lshigami/Marmoset/internal/model"
	"github.com/stretchr/testify/assert"
)

func testConfig() *config.Config {
	return &config.Config{
		Practice: config.Practice{
			GraceMinutes:       2,
			GradingCreditCost:  10,
			DefaultCredits:     100,
			ChatDailyLimit:     50,
			GradingWorkerCount: 1,
			GradingQueueSize:   8,
		},
	}
}

func TestExpiredBoundary(t *testing.T) {
	startedAt := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	grace := 2 * time.Minute
	deadline := startedAt.Add(60*time.Minute + grace)

	assert.False(t, Expired(startedAt, 60, grace, deadline.Add(-time.Second)))
	assert.False(t, Expired(startedAt, 60, grace, deadline))
	assert.True(t, Expired(startedAt, 60, grace, deadline.Add(time.Second)))
}

func TestExpiryMonitorOnlyInProgress(t *testing.T) {
	monitor := NewExpiryMonitor(testConfig())
	startedAt := time.Now().Add(-3 * time.Hour)

	session := &model.PracticeSession{
		Status:           model.SessionSubmitted,
		StartedAt:        &startedAt,
		TimeLimitMinutes: 30,
	}
	assert.False(t, monitor.IsExpired(session), "submitted sessions never expire")

	session.Status = model.SessionInProgress
	assert.True(t, monitor.IsExpired(session))
	assert.Equal(t, model.SessionExpired, monitor.EffectiveStatus(session))
}

func TestExpiryMonitorNotStarted(t *testing.T) {
	monitor := NewExpiryMonitor(testConfig())
	session := &model.PracticeSession{Status: model.SessionInProgress, TimeLimitMinutes: 30}
	assert.False(t, monitor.IsExpired(session))
}
