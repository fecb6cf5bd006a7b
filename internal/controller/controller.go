package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lshigami/Marmoset/internal/apperr"
	"github.com/lshigami/Marmoset/internal/dto"
)

// userIDFrom reads the caller identity from the user_id query parameter.
// Authentication lives in front of this service; the id is trusted here.
func userIDFrom(ctx *gin.Context) (uuid.UUID, bool) {
	raw := ctx.Query("user_id")
	if raw == "" {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "user_id query parameter is required"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid user_id format"})
		return uuid.Nil, false
	}
	return id, true
}

func pathUUID(ctx *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format"})
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps the error taxonomy to HTTP statuses. Quota denials and
// expired sessions get their own statuses so clients can show upgrade vs
// session-over UI without string matching.
func respondError(ctx *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindInvalidState, apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindSessionExpired:
		status = http.StatusGone
	case apperr.KindQuotaExceeded:
		status = http.StatusTooManyRequests
	case apperr.KindGatewayFailure:
		status = http.StatusBadGateway
	}
	ctx.JSON(status, dto.ErrorResponse{Message: err.Error(), Kind: string(kind)})
}
