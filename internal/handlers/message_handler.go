package handlers

import (
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/egendata/operator/internal/messages"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/internal/utils"
)

// MessageHandler is the entry point for JWT messages.
type MessageHandler struct {
	dispatcher *messages.Dispatcher
}

// NewMessageHandler creates a new message handler instance
func NewMessageHandler(dispatcher *messages.Dispatcher) *MessageHandler {
	return &MessageHandler{dispatcher: dispatcher}
}

// Handle handles POST /api
func (h *MessageHandler) Handle(c *gin.Context) {
	if !strings.HasPrefix(c.ContentType(), "application/jwt") {
		utils.SendBadRequestError(c, "Expected an application/jwt body", "")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.SendServiceError(c, serviceerror.Validation("Could not read body", err))
		return
	}

	resp, err := h.dispatcher.Dispatch(c.Request.Context(), strings.TrimSpace(string(body)))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	c.Data(resp.Status, resp.ContentType, resp.Body)
}
