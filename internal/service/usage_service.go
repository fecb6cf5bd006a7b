package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lshigami/Marmoset/config"
	"github.com/lshigami/Marmoset/internal/model"
	"github.com/lshigami/Marmoset/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// UsageService is the credit-metered rate limiter in front of every AI-backed
// action.
type UsageService interface {
	// EnsureAllowance lazily provisions the default free-tier balance for a
	// user the ledger has never seen.
	EnsureAllowance(userID uuid.UUID) error
	// CheckAndReserve atomically verifies remaining quota >= cost, deducts it
	// and appends the ledger record. Returns false (not an error) when credits
	// are insufficient.
	CheckAndReserve(userID uuid.UUID, action model.ActionKind, cost int64, metadata map[string]any) (bool, error)
	// CheckDailyAllowance gates count-per-day actions by summing today's UTC
	// ledger entries. The day resets at midnight UTC by construction.
	CheckDailyAllowance(userID uuid.UUID, action model.ActionKind, dailyLimit int64) (bool, error)
	// RecordAction appends a ledger entry without touching the balance, for
	// actions quota'd by count rather than spend.
	RecordAction(userID uuid.UUID, action model.ActionKind, credits int64, metadata map[string]any) error
	GetSummary(userID uuid.UUID) (*UsageSummary, error)
}

// UsageSummary reports a user's remaining credits and today's metered counts.
type UsageSummary struct {
	UserID            uuid.UUID `json:"user_id"`
	RemainingCredits  int64     `json:"remaining_credits"`
	CreditsSpentToday int64     `json:"credits_spent_today"`
	ChatMessagesToday int64     `json:"chat_messages_today"`
}

type usageService struct {
	usageRepo repository.UsageRepository
	cfg       *config.Config
}

func NewUsageService(usageRepo repository.UsageRepository, cfg *config.Config) UsageService {
	return &usageService{usageRepo: usageRepo, cfg: cfg}
}

func (s *usageService) EnsureAllowance(userID uuid.UUID) error {
	_, err := s.usageRepo.EnsureBalance(userID, s.cfg.Practice.DefaultCredits)
	if err != nil {
		log.Error().Err(err).Str("userID", userID.String()).Msg("Failed to ensure credit balance")
	}
	return err
}

func (s *usageService) CheckAndReserve(userID uuid.UUID, action model.ActionKind, cost int64, metadata map[string]any) (bool, error) {
	// Fail open on the lookup: an unknown user gets the default allowance.
	// The conditional deduct below still fails closed once it is exhausted.
	if _, err := s.usageRepo.EnsureBalance(userID, s.cfg.Practice.DefaultCredits); err != nil {
		return false, err
	}

	record := &model.UsageRecord{
		ID:         uuid.New(),
		UserID:     userID,
		ActionKind: action,
		Credits:    cost,
		Metadata:   marshalMetadata(metadata),
	}
	granted, err := s.usageRepo.DeductIfAvailable(userID, cost, record)
	if err != nil {
		return false, err
	}
	if !granted {
		log.Info().Str("userID", userID.String()).Str("action", string(action)).Int64("cost", cost).
			Msg("Credit reservation denied: insufficient balance")
	}
	return granted, nil
}

func (s *usageService) CheckDailyAllowance(userID uuid.UUID, action model.ActionKind, dailyLimit int64) (bool, error) {
	count, err := s.usageRepo.CountSince(userID, action, startOfUTCDay(time.Now()))
	if err != nil {
		return false, err
	}
	return count < dailyLimit, nil
}

func (s *usageService) RecordAction(userID uuid.UUID, action model.ActionKind, credits int64, metadata map[string]any) error {
	return s.usageRepo.InsertRecord(&model.UsageRecord{
		ID:         uuid.New(),
		UserID:     userID,
		ActionKind: action,
		Credits:    credits,
		Metadata:   marshalMetadata(metadata),
	})
}

func (s *usageService) GetSummary(userID uuid.UUID) (*UsageSummary, error) {
	balance, err := s.usageRepo.EnsureBalance(userID, s.cfg.Practice.DefaultCredits)
	if err != nil {
		return nil, err
	}
	since := startOfUTCDay(time.Now())
	spent, err := s.usageRepo.SumSince(userID, since)
	if err != nil {
		return nil, err
	}
	chats, err := s.usageRepo.CountSince(userID, model.ActionChatMessage, since)
	if err != nil {
		return nil, err
	}
	return &UsageSummary{
		UserID:            userID,
		RemainingCredits:  balance.Balance,
		CreditsSpentToday: spent,
		ChatMessagesToday: chats,
	}, nil
}

func startOfUTCDay(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour)
}

func marshalMetadata(metadata map[string]any) datatypes.JSON {
	if len(metadata) == 0 {
		return nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal usage metadata, storing none")
		return nil
	}
	return datatypes.JSON(raw)
}
