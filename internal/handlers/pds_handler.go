package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/egendata/operator/internal/service"
	"github.com/egendata/operator/internal/utils"
)

// PDSHandler exposes the PDS providers an account can register with.
type PDSHandler struct {
	pdsService *service.PDSService
}

// NewPDSHandler creates a new PDS handler instance
func NewPDSHandler(pdsService *service.PDSService) *PDSHandler {
	return &PDSHandler{pdsService: pdsService}
}

// Providers handles GET /api/pds/providers
func (h *PDSHandler) Providers(c *gin.Context) {
	utils.SendOKResponse(c, gin.H{"data": h.pdsService.Providers()})
}

// Callback handles GET /api/pds/:provider/callback?code=
func (h *PDSHandler) Callback(c *gin.Context) {
	creds, err := h.pdsService.Authorize(c.Request.Context(), c.Param("provider"), c.Query("code"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendOKResponse(c, gin.H{"data": creds})
}
