package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/Marmoset/internal/dto"
	"github.com/lshigami/Marmoset/internal/service"
)

type UsageController struct {
	usageService service.UsageService
}

func NewUsageController(usageService service.UsageService) *UsageController {
	return &UsageController{usageService: usageService}
}

// GetUsage godoc
// @Summary Get the caller's remaining credits and today's counts
// @Tags Usage
// @Produce json
// @Param user_id query string true "User ID"
// @Success 200 {object} dto.UsageSummaryDTO
// @Router /usage [get]
func (c *UsageController) GetUsage(ctx *gin.Context) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return
	}
	summary, err := c.usageService.GetSummary(userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.UsageSummaryDTO{
		UserID:            summary.UserID,
		RemainingCredits:  summary.RemainingCredits,
		CreditsSpentToday: summary.CreditsSpentToday,
		ChatMessagesToday: summary.ChatMessagesToday,
	})
}
