package repository

import (
	"github.com/google/uuid"
	"github.com/lshigami/Marmoset/internal/model"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(session *model.PracticeSession) error
	FindByID(id uuid.UUID) (*model.PracticeSession, error)
	FindByIDForUser(id uuid.UUID, userID uuid.UUID) (*model.PracticeSession, error)
	FindAllByUser(userID uuid.UUID) ([]model.PracticeSession, error)
	// UpdateStatusIf performs a compare-and-swap on the status column. extra
	// fields (e.g. started_at) are written in the same statement. Returns false
	// when the session was not in the expected status at write time.
	UpdateStatusIf(id uuid.UUID, expected, next model.SessionStatus, extra map[string]any) (bool, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(session *model.PracticeSession) error {
	return r.db.Create(session).Error
}

func (r *sessionRepository) FindByID(id uuid.UUID) (*model.PracticeSession, error) {
	var session model.PracticeSession
	if err := r.db.First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) FindByIDForUser(id uuid.UUID, userID uuid.UUID) (*model.PracticeSession, error) {
	var session model.PracticeSession
	if err := r.db.First(&session, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) FindAllByUser(userID uuid.UUID) ([]model.PracticeSession, error) {
	var sessions []model.PracticeSession
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) UpdateStatusIf(id uuid.UUID, expected, next model.SessionStatus, extra map[string]any) (bool, error) {
	fields := map[string]any{"status": next}
	for k, v := range extra {
		fields[k] = v
	}
	res := r.db.Model(&model.PracticeSession{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
