package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/Marmoset/internal/dto"
	"github.com/lshigami/Marmoset/internal/service"
)

type ChatController struct {
	chatService service.ChatService
}

func NewChatController(chatService service.ChatService) *ChatController {
	return &ChatController{chatService: chatService}
}

// CreateConversation godoc
// @Summary Start a tutor conversation
// @Tags Chat
// @Accept json
// @Produce json
// @Param user_id query string true "Owning user ID"
// @Param conversation body dto.ConversationCreateDTO true "Conversation metadata"
// @Success 201 {object} dto.ConversationDTO
// @Router /conversations [post]
func (c *ChatController) CreateConversation(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}
	var req dto.ConversationCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	conv, err := c.chatService.CreateConversation(userID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, conv)
}

// GetConversation godoc
// @Summary Get a conversation with its messages
// @Tags Chat
// @Produce json
// @Param user_id query string true "Owning user ID"
// @Param conversation_id path string true "Conversation ID"
// @Success 200 {object} dto.ConversationDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /conversations/{conversation_id} [get]
func (c *ChatController) GetConversation(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(ctx, "conversation_id")
	if !ok {
		return
	}
	conv, err := c.chatService.GetConversation(userID, conversationID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, conv)
}

// ListConversations godoc
// @Summary List the caller's conversations
// @Tags Chat
// @Produce json
// @Param user_id query string true "Owning user ID"
// @Success 200 {array} dto.ConversationSummaryDTO
// @Router /conversations [get]
func (c *ChatController) ListConversations(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}
	convs, err := c.chatService.ListConversations(userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, convs)
}

// SendMessage godoc
// @Summary Send a message to the tutor
// @Description Gated by the per-day chat allowance. Returns the tutor's reply inline.
// @Tags Chat
// @Accept json
// @Produce json
// @Param user_id query string true "Owning user ID"
// @Param conversation_id path string true "Conversation ID"
// @Param message body dto.ChatMessageSendDTO true "Message content"
// @Success 201 {object} dto.ChatMessageDTO
// @Failure 429 {object} dto.ErrorResponse "Daily limit reached"
// @Failure 502 {object} dto.ErrorResponse "Tutor unavailable"
// @Router /conversations/{conversation_id}/messages [post]
func (c *ChatController) SendMessage(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(ctx, "conversation_id")
	if !ok {
		return
	}
	var req dto.ChatMessageSendDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	msg, err := c.chatService.SendMessage(ctx.Request.Context(), userID, conversationID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, msg)
}
