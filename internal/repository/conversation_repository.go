package repository

import (
	"github.com/google/uuid"
	"github.com/lshigami/Marmoset/internal/model"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	Create(conv *model.Conversation) error
	FindByIDForUser(id uuid.UUID, userID uuid.UUID) (*model.Conversation, error)
	FindByIDWithMessages(id uuid.UUID, userID uuid.UUID) (*model.Conversation, error)
	FindAllByUser(userID uuid.UUID) ([]model.Conversation, error)
	AppendMessage(msg *model.ChatMessage) error
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(conv *model.Conversation) error {
	return r.db.Create(conv).Error
}

func (r *conversationRepository) FindByIDForUser(id uuid.UUID, userID uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.First(&conv, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) FindByIDWithMessages(id uuid.UUID, userID uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("chat_messages.created_at ASC")
	}).First(&conv, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) FindAllByUser(userID uuid.UUID) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&convs).Error
	return convs, err
}

func (r *conversationRepository) AppendMessage(msg *model.ChatMessage) error {
	return r.db.Create(msg).Error
}
