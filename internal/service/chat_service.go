package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/lshigami/Marmoset/config"
	"github.com/lshigami/Marmoset/internal/apperr"
	"github.com/lshigami/Marmoset/internal/dto"
	"github.com/lshigami/Marmoset/internal/model"
	"github.com/lshigami/Marmoset/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const chatTemperature = 0.7

const chatMaxTokens = 2048

const teacherSystemPrompt = "You are a patient, encouraging revision tutor. " +
	"Explain concepts step by step, ask guiding questions instead of giving answers away, " +
	"and keep replies focused on the student's question."

// ChatService is the conversation-scoped variant of the metering + gateway +
// persistence pattern. Unlike grading it runs inline with the request: the
// caller waits for the tutor's reply.
type ChatService interface {
	CreateConversation(userID uuid.UUID, req dto.ConversationCreateDTO) (*dto.ConversationDTO, error)
	GetConversation(userID uuid.UUID, conversationID uuid.UUID) (*dto.ConversationDTO, error)
	ListConversations(userID uuid.UUID) ([]dto.ConversationSummaryDTO, error)
	SendMessage(ctx context.Context, userID uuid.UUID, conversationID uuid.UUID, req dto.ChatMessageSendDTO) (*dto.ChatMessageDTO, error)
}

type chatService struct {
	conversationRepo repository.ConversationRepository
	usageService     UsageService
	gateway          CompletionGateway
	cfg              *config.Config
}

func NewChatService(
	conversationRepo repository.ConversationRepository,
	usageService UsageService,
	gateway CompletionGateway,
	cfg *config.Config,
) ChatService {
	return &chatService{
		conversationRepo: conversationRepo,
		usageService:     usageService,
		gateway:          gateway,
		cfg:              cfg,
	}
}

func (s *chatService) CreateConversation(userID uuid.UUID, req dto.ConversationCreateDTO) (*dto.ConversationDTO, error) {
	conv := &model.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		SessionID: req.SessionID,
		Title:     req.Title,
	}
	if conv.Title == "" {
		conv.Title = "New conversation"
	}
	if err := s.conversationRepo.Create(conv); err != nil {
		log.Error().Err(err).Str("userID", userID.String()).Msg("Failed to create conversation")
		return nil, err
	}
	return conversationToDTO(conv), nil
}

func (s *chatService) GetConversation(userID uuid.UUID, conversationID uuid.UUID) (*dto.ConversationDTO, error) {
	conv, err := s.conversationRepo.FindByIDWithMessages(conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "conversation not found")
		}
		return nil, err
	}
	return conversationToDTO(conv), nil
}

func (s *chatService) ListConversations(userID uuid.UUID) ([]dto.ConversationSummaryDTO, error) {
	convs, err := s.conversationRepo.FindAllByUser(userID)
	if err != nil {
		return nil, err
	}
	dtos := make([]dto.ConversationSummaryDTO, 0, len(convs))
	for i := range convs {
		var summary dto.ConversationSummaryDTO
		if err := copier.Copy(&summary, &convs[i]); err != nil {
			continue
		}
		dtos = append(dtos, summary)
	}
	return dtos, nil
}

func (s *chatService) SendMessage(ctx context.Context, userID uuid.UUID, conversationID uuid.UUID, req dto.ChatMessageSendDTO) (*dto.ChatMessageDTO, error) {
	if req.Content == "" {
		return nil, apperr.New(apperr.KindValidation, "message content must not be empty")
	}

	conv, err := s.conversationRepo.FindByIDWithMessages(conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "conversation not found")
		}
		return nil, err
	}

	// Chat is quota'd by count per UTC day, not by spendable credits.
	allowed, err := s.usageService.CheckDailyAllowance(userID, model.ActionChatMessage, s.cfg.Practice.ChatDailyLimit)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperr.New(apperr.KindQuotaExceeded, "daily chat message limit reached")
	}

	userMsg := &model.ChatMessage{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        req.Content,
	}
	if err := s.conversationRepo.AppendMessage(userMsg); err != nil {
		return nil, err
	}

	messages := make([]GatewayMessage, 0, len(conv.Messages)+2)
	messages = append(messages, GatewayMessage{Role: "system", Content: teacherSystemPrompt})
	for _, m := range conv.Messages {
		messages = append(messages, GatewayMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, GatewayMessage{Role: string(model.RoleUser), Content: req.Content})

	completion, err := s.gateway.Complete(ctx, messages, chatTemperature, chatMaxTokens)
	if err != nil {
		log.Error().Err(err).Str("conversationID", conv.ID.String()).Msg("Completion gateway failed for chat message")
		return nil, apperr.Wrap(apperr.KindGatewayFailure, "tutor is unavailable right now", err)
	}

	assistantMsg := &model.ChatMessage{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           model.RoleAssistant,
		Content:        completion.Content,
		TokensUsed:     &completion.TotalTokens,
	}
	if err := s.conversationRepo.AppendMessage(assistantMsg); err != nil {
		return nil, err
	}

	if err := s.usageService.RecordAction(userID, model.ActionChatMessage, 0,
		map[string]any{"conversation_id": conv.ID.String()}); err != nil {
		// The reply already went out; a missing ledger row only loosens
		// today's count.
		log.Warn().Err(err).Str("conversationID", conv.ID.String()).Msg("Failed to record chat usage")
	}

	var resp dto.ChatMessageDTO
	if err := copier.Copy(&resp, assistantMsg); err != nil {
		return nil, err
	}
	resp.Role = string(assistantMsg.Role)
	return &resp, nil
}

func conversationToDTO(conv *model.Conversation) *dto.ConversationDTO {
	var resp dto.ConversationDTO
	if err := copier.Copy(&resp, conv); err != nil {
		log.Error().Err(err).Msg("Failed to copy conversation to DTO")
	}
	resp.Messages = make([]dto.ChatMessageDTO, 0, len(conv.Messages))
	for i := range conv.Messages {
		var msg dto.ChatMessageDTO
		if err := copier.Copy(&msg, &conv.Messages[i]); err != nil {
			continue
		}
		msg.Role = string(conv.Messages[i].Role)
		resp.Messages = append(resp.Messages, msg)
	}
	return &resp
}
