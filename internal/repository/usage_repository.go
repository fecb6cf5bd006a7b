package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/lshigami/Marmoset/internal/model"
	"gorm.io/gorm"
)

type UsageRepository interface {
	// EnsureBalance lazily creates the balance row with the default free-tier
	// allowance on first sight of a user.
	EnsureBalance(userID uuid.UUID, defaultCredits int64) (*model.CreditBalance, error)
	GetBalance(userID uuid.UUID) (*model.CreditBalance, error)
	// DeductIfAvailable runs the check-and-deduct as a single conditional
	// UPDATE and appends the ledger record in the same transaction. A plain
	// read-then-write pair would let two concurrent calls both pass the check.
	// Returns false when the balance was insufficient; that is not an error.
	DeductIfAvailable(userID uuid.UUID, cost int64, record *model.UsageRecord) (bool, error)
	InsertRecord(record *model.UsageRecord) error
	CountSince(userID uuid.UUID, kind model.ActionKind, since time.Time) (int64, error)
	SumSince(userID uuid.UUID, since time.Time) (int64, error)
}

type usageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) EnsureBalance(userID uuid.UUID, defaultCredits int64) (*model.CreditBalance, error) {
	balance := model.CreditBalance{UserID: userID, Balance: defaultCredits}
	err := r.db.Where("user_id = ?", userID).
		Attrs(model.CreditBalance{Balance: defaultCredits}).
		FirstOrCreate(&balance).Error
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *usageRepository) GetBalance(userID uuid.UUID) (*model.CreditBalance, error) {
	var balance model.CreditBalance
	if err := r.db.First(&balance, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *usageRepository) DeductIfAvailable(userID uuid.UUID, cost int64, record *model.UsageRecord) (bool, error) {
	granted := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.CreditBalance{}).
			Where("user_id = ? AND balance >= ?", userID, cost).
			Update("balance", gorm.Expr("balance - ?", cost))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // insufficient credits, not an error
		}
		granted = true
		return tx.Create(record).Error
	})
	if err != nil {
		return false, err
	}
	return granted, nil
}

func (r *usageRepository) InsertRecord(record *model.UsageRecord) error {
	return r.db.Create(record).Error
}

func (r *usageRepository) CountSince(userID uuid.UUID, kind model.ActionKind, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.UsageRecord{}).
		Where("user_id = ? AND action_kind = ? AND created_at >= ?", userID, kind, since).
		Count(&count).Error
	return count, err
}

func (r *usageRepository) SumSince(userID uuid.UUID, since time.Time) (int64, error) {
	var total int64
	err := r.db.Model(&model.UsageRecord{}).
		Select("COALESCE(SUM(credits), 0)").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Scan(&total).Error
	return total, err
}
