package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/service"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/internal/signature"
	"github.com/egendata/operator/internal/utils"
)

// ConsentHandler handles consent-related HTTP requests
type ConsentHandler struct {
	consentService *service.ConsentService
}

// NewConsentHandler creates a new consent handler instance
func NewConsentHandler(consentService *service.ConsentService) *ConsentHandler {
	return &ConsentHandler{consentService: consentService}
}

// CreateRequest handles POST /api/consents/requests
func (h *ConsentHandler) CreateRequest(c *gin.Context) {
	verified := signature.From(c)
	if verified == nil {
		utils.SendServiceError(c, serviceerror.Unauthorized("Missing signature"))
		return
	}

	created, err := h.consentService.CreateRequest(c.Request.Context(), signature.Data(c), models.SignatureInfo{
		Alg:    verified.Alg,
		Kid:    verified.Kid,
		Data:   verified.Data,
		Client: verified.Client,
	})
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendCreatedResponse(c, gin.H{"data": created})
}

// GetRequest handles GET /api/consents/requests/:id
func (h *ConsentHandler) GetRequest(c *gin.Context) {
	view, err := h.consentService.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendOKResponse(c, view)
}

// Approve handles POST /api/consents
func (h *ConsentHandler) Approve(c *gin.Context) {
	var request models.ConsentApprovalRequest
	if err := json.Unmarshal(signature.Data(c), &request); err != nil {
		utils.SendServiceError(c, serviceerror.Validation("Invalid payload", err))
		return
	}

	if _, err := h.consentService.Approve(c.Request.Context(), &request); err != nil {
		utils.SendServiceError(c, err)
		return
	}

	c.String(http.StatusOK, "ok")
}
