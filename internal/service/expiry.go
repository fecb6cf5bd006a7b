package service

import (
	"time"

	"github.com/lshigami/Marmoset/config"
	"github.com/lshigami/Marmoset/internal/model"
)

// Expired reports whether a session started at startedAt with the given time
// limit has passed its deadline plus grace at instant now. Pure function; the
// grace window absorbs clock skew and network latency, and is not
// user-configurable.
func Expired(startedAt time.Time, limitMinutes int, grace time.Duration, now time.Time) bool {
	deadline := startedAt.Add(time.Duration(limitMinutes)*time.Minute + grace)
	return now.After(deadline)
}

// ExpiryMonitor evaluates session expiry lazily on read and submit. There is
// no background sweep; persisted status may lag the computed result, and the
// computed result is authoritative for the current call.
type ExpiryMonitor struct {
	grace time.Duration
	now   func() time.Time
}

func NewExpiryMonitor(cfg *config.Config) *ExpiryMonitor {
	return &ExpiryMonitor{
		grace: time.Duration(cfg.Practice.GraceMinutes) * time.Minute,
		now:   time.Now,
	}
}

// IsExpired reports the computed expiry of an in_progress session. Sessions in
// any other state never expire here.
func (m *ExpiryMonitor) IsExpired(session *model.PracticeSession) bool {
	if session.Status != model.SessionInProgress || session.StartedAt == nil {
		return false
	}
	return Expired(*session.StartedAt, session.TimeLimitMinutes, m.grace, m.now())
}

// EffectiveStatus is the status callers should act on: the stored status,
// overridden to expired when the deadline has passed.
func (m *ExpiryMonitor) EffectiveStatus(session *model.PracticeSession) model.SessionStatus {
	if m.IsExpired(session) {
		return model.SessionExpired
	}
	return session.Status
}
