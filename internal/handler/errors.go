package handler

import (
	"errors"
	"net/http"

	"huddle-chat/internal/transport/httpdto"
	huddle_errors "huddle-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// writeError translates the error taxonomy into HTTP statuses. Typed
// outcomes keep their own code strings so clients can branch without
// parsing messages.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, huddle_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_INPUT"))
	case errors.Is(err, huddle_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse(err.Error(), "NOT_FOUND"))
	case errors.Is(err, huddle_errors.ErrNotAMember):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse(err.Error(), "NOT_A_MEMBER"))
	case errors.Is(err, huddle_errors.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse(err.Error(), "PERMISSION_DENIED"))
	case errors.Is(err, huddle_errors.ErrAlreadyMember):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), "ALREADY_MEMBER"))
	case errors.Is(err, huddle_errors.ErrCapacityExceeded):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), "CAPACITY_EXCEEDED"))
	case errors.Is(err, huddle_errors.ErrRelationship):
		code := "RELATIONSHIP"
		var relErr *huddle_errors.RelationshipError
		if errors.As(err, &relErr) {
			code = "RELATIONSHIP_" + string(relErr.Reason)
		}
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse(err.Error(), code))
	case errors.Is(err, huddle_errors.ErrConflict):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), "CONFLICT"))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
	}
}

// actorID reads the caller identity set by the upstream gateway.
// Authentication itself is outside this core.
func actorID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetHeader("X-User-Id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("missing or invalid X-User-Id", "UNAUTHORIZED"))
		return uuid.Nil, false
	}
	return id, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid "+name, "INVALID_INPUT"))
		return uuid.Nil, false
	}
	return id, true
}
