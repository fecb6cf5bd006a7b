package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lshigami/Marmoset/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// In-memory doubles for the repository and gateway contracts. They mirror the
// atomicity semantics of the real implementations: status updates are
// compare-and-swap, one submission per session, deduct-if-available under a
// single lock.

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.PracticeSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*model.PracticeSession)}
}

func (r *fakeSessionRepo) Create(session *model.PracticeSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *session
	r.sessions[session.ID] = &clone
	return nil
}

func (r *fakeSessionRepo) FindByID(id uuid.UUID) (*model.PracticeSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *session
	return &clone, nil
}

func (r *fakeSessionRepo) FindByIDForUser(id uuid.UUID, userID uuid.UUID) (*model.PracticeSession, error) {
	session, err := r.FindByID(id)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return session, nil
}

func (r *fakeSessionRepo) FindAllByUser(userID uuid.UUID) ([]model.PracticeSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PracticeSession
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) UpdateStatusIf(id uuid.UUID, expected, next model.SessionStatus, extra map[string]any) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok || session.Status != expected {
		return false, nil
	}
	session.Status = next
	for k, v := range extra {
		t, ok := v.(time.Time)
		if !ok {
			continue
		}
		switch k {
		case "started_at":
			session.StartedAt = &t
		case "submitted_at":
			session.SubmittedAt = &t
		}
	}
	return true, nil
}

type fakeSubmissionRepo struct {
	mu          sync.Mutex
	submissions map[uuid.UUID]*model.PracticeSubmission
	bySession   map[uuid.UUID]uuid.UUID
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{
		submissions: make(map[uuid.UUID]*model.PracticeSubmission),
		bySession:   make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *fakeSubmissionRepo) Create(sub *model.PracticeSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bySession[sub.SessionID]; exists {
		return fmt.Errorf("duplicate key value violates unique constraint on session_id")
	}
	clone := *sub
	r.submissions[sub.ID] = &clone
	r.bySession[sub.SessionID] = sub.ID
	return nil
}

func (r *fakeSubmissionRepo) FindByID(id uuid.UUID) (*model.PracticeSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.submissions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *sub
	return &clone, nil
}

func (r *fakeSubmissionRepo) FindBySessionID(sessionID uuid.UUID) (*model.PracticeSubmission, error) {
	r.mu.Lock()
	subID, ok := r.bySession[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(subID)
}

func (r *fakeSubmissionRepo) UpdateGradingIfUngraded(id uuid.UUID, fields map[string]any) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.submissions[id]
	if !ok || sub.GradedAt != nil {
		return false, nil
	}
	if v, ok := fields["overall_score"].(float64); ok {
		sub.OverallScore = &v
	}
	if v, ok := fields["max_score"].(float64); ok {
		sub.MaxScore = &v
	}
	if v, ok := fields["feedback"].(string); ok {
		sub.Feedback = &v
	}
	if v, ok := fields["question_grades"].(datatypes.JSON); ok {
		var grades []model.QuestionGrade
		if err := json.Unmarshal(v, &grades); err == nil {
			sub.QuestionGrades = datatypes.NewJSONType(grades)
		}
	}
	if v, ok := fields["graded_at"].(time.Time); ok {
		sub.GradedAt = &v
	}
	if v, ok := fields["grading_millis"].(int64); ok {
		sub.GradingMillis = &v
	}
	return true, nil
}

// fakeUsage implements UsageService with a plain balance under a lock.
type fakeUsage struct {
	mu           sync.Mutex
	balance      int64
	dailyUsed    int64
	reserveCalls int
	records      []model.ActionKind
}

func newFakeUsage(balance int64) *fakeUsage {
	return &fakeUsage{balance: balance}
}

func (u *fakeUsage) EnsureAllowance(uuid.UUID) error { return nil }

func (u *fakeUsage) CheckAndReserve(_ uuid.UUID, action model.ActionKind, cost int64, _ map[string]any) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reserveCalls++
	if u.balance < cost {
		return false, nil
	}
	u.balance -= cost
	u.records = append(u.records, action)
	return true, nil
}

func (u *fakeUsage) CheckDailyAllowance(_ uuid.UUID, _ model.ActionKind, dailyLimit int64) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dailyUsed < dailyLimit, nil
}

func (u *fakeUsage) RecordAction(_ uuid.UUID, action model.ActionKind, _ int64, _ map[string]any) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.dailyUsed++
	u.records = append(u.records, action)
	return nil
}

func (u *fakeUsage) GetSummary(userID uuid.UUID) (*UsageSummary, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return &UsageSummary{UserID: userID, RemainingCredits: u.balance}, nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []GradingTask
	full  bool
}

func (q *fakeQueue) Enqueue(task GradingTask) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.tasks = append(q.tasks, task)
	return true
}

type fakeGateway struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (g *fakeGateway) Complete(_ context.Context, _ []GatewayMessage, _ float32, _ int32) (*Completion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &Completion{Content: g.response, TotalTokens: 42}, nil
}
