package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/service"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/internal/signature"
	"github.com/egendata/operator/internal/utils"
)

// ClientHandler handles client registration
type ClientHandler struct {
	clientService *service.ClientService
}

// NewClientHandler creates a new client handler instance
func NewClientHandler(clientService *service.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// RegisterClient handles POST /api/clients. The client is registered with
// the key its envelope was verified with.
func (h *ClientHandler) RegisterClient(c *gin.Context) {
	var request models.ClientRegistrationRequest
	if err := json.Unmarshal(signature.Data(c), &request); err != nil {
		utils.SendServiceError(c, serviceerror.Validation("Invalid payload", err))
		return
	}

	verified := signature.From(c)
	if verified == nil {
		utils.SendServiceError(c, serviceerror.Unauthorized("Missing signature"))
		return
	}

	resp, err := h.clientService.RegisterClient(c.Request.Context(), &request, verified.Key)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendOKResponse(c, resp)
}
