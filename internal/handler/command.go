package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/keybind-service/internal/command"
	"github.com/makkenzo/keybind-service/internal/handler/dto"
	"github.com/makkenzo/keybind-service/internal/handler/middleware"
	"github.com/makkenzo/keybind-service/internal/ierr"
	"go.uber.org/zap"
)

type CommandHandler struct {
	dispatcher *command.Dispatcher
	logger     *zap.Logger
}

func NewCommandHandler(dispatcher *command.Dispatcher, logger *zap.Logger) *CommandHandler {
	return &CommandHandler{
		dispatcher: dispatcher,
		logger:     logger.Named("CommandHandler"),
	}
}

func (h *CommandHandler) Execute(c *gin.Context) {
	var req dto.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind command request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %w", ierr.ErrValidation, err))
		return
	}

	requestID := middleware.GetRequestID(c)
	h.logger.Debug("Received command",
		zap.String("request_id", requestID),
		zap.String("command", req.Name),
		zap.String("caller_id", req.Caller.ID),
	)

	res, err := h.dispatcher.Execute(c.Request.Context(), req.Invocation())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewCommandResponse(requestID, res))
}
