package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/egendata/operator/internal/service"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/internal/utils"
)

// DataHandler serves documents to holders of a consent access token.
type DataHandler struct {
	dataService *service.LegacyDataService
}

// NewDataHandler creates a new data handler instance
func NewDataHandler(dataService *service.LegacyDataService) *DataHandler {
	return &DataHandler{dataService: dataService}
}

type writeBody struct {
	Data json.RawMessage `json:"data"`
}

// Read handles GET /api/data/:domain/:area. Domain and area are optional.
func (h *DataHandler) Read(c *gin.Context) {
	consentID, ok := h.consent(c)
	if !ok {
		return
	}

	data, err := h.dataService.Read(c.Request.Context(), consentID, c.Param("domain"), c.Param("area"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendOKResponse(c, gin.H{"data": data})
}

// Write handles POST /api/data/:domain/:area
func (h *DataHandler) Write(c *gin.Context) {
	consentID, ok := h.consent(c)
	if !ok {
		return
	}

	var body writeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendBadRequestError(c, "Invalid request body", err.Error())
		return
	}

	if err := h.dataService.Write(c.Request.Context(), consentID, c.Param("domain"), c.Param("area"), body.Data); err != nil {
		utils.SendServiceError(c, err)
		return
	}

	c.String(http.StatusCreated, http.StatusText(http.StatusCreated))
}

// consent resolves the bearer token to its consent id, answering 401 when
// it cannot.
func (h *DataHandler) consent(c *gin.Context) (string, bool) {
	token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !found || token == "" {
		utils.SendServiceError(c, serviceerror.Unauthorized("Missing access token"))
		return "", false
	}

	consentID, err := h.dataService.ConsentID(token)
	if err != nil {
		utils.SendServiceError(c, err)
		return "", false
	}
	return consentID, true
}
