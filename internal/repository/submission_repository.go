package repository

import (
	"github.com/google/uuid"
	"github.com/lshigami/Marmoset/internal/model"
	"gorm.io/gorm"
)

type SubmissionRepository interface {
	Create(sub *model.PracticeSubmission) error
	FindByID(id uuid.UUID) (*model.PracticeSubmission, error)
	FindBySessionID(sessionID uuid.UUID) (*model.PracticeSubmission, error)
	// UpdateGradingIfUngraded writes the grading fields only when no result has
	// been persisted yet, so a duplicate grading run cannot overwrite one that
	// already landed. Returns false when the guard failed.
	UpdateGradingIfUngraded(id uuid.UUID, fields map[string]any) (bool, error)
}

type submissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(sub *model.PracticeSubmission) error {
	return r.db.Create(sub).Error
}

func (r *submissionRepository) FindByID(id uuid.UUID) (*model.PracticeSubmission, error) {
	var sub model.PracticeSubmission
	if err := r.db.First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepository) FindBySessionID(sessionID uuid.UUID) (*model.PracticeSubmission, error) {
	var sub model.PracticeSubmission
	if err := r.db.First(&sub, "session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepository) UpdateGradingIfUngraded(id uuid.UUID, fields map[string]any) (bool, error) {
	res := r.db.Model(&model.PracticeSubmission{}).
		Where("id = ? AND graded_at IS NULL", id).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
