package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/service"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/internal/signature"
	"github.com/egendata/operator/internal/utils"
)

// AccountHandler handles account-related HTTP requests
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler creates a new account handler instance
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// CreateAccount handles POST /api/accounts. The body is a signed envelope.
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var request models.AccountCreateRequest
	if err := json.Unmarshal(signature.Data(c), &request); err != nil {
		utils.SendServiceError(c, serviceerror.Validation("Invalid payload", err))
		return
	}

	id, err := h.accountService.CreateAccount(c.Request.Context(), &request)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendCreatedResponse(c, gin.H{
		"data":  gin.H{"id": id},
		"links": models.Links{Self: selfLink(c, id)},
	})
}

// GetAccount handles GET /api/accounts/:accountId
func (h *AccountHandler) GetAccount(c *gin.Context) {
	accountID := c.Param("accountId")

	account, err := h.accountService.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendOKResponse(c, gin.H{
		"data":  account,
		"links": models.Links{Self: selfLink(c, "")},
	})
}

// Login handles POST /api/accounts/:accountId/login
func (h *AccountHandler) Login(c *gin.Context) {
	var request models.AccountLoginRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendBadRequestError(c, "Invalid request body", err.Error())
		return
	}

	if err := h.accountService.Login(c.Request.Context(), c.Param("accountId"), &request); err != nil {
		utils.SendServiceError(c, err)
		return
	}

	c.String(http.StatusOK, "Login successful")
}

// selfLink is the request URL, extended with id when given.
func selfLink(c *gin.Context, id string) string {
	self := c.Request.URL.Path
	if id == "" {
		return self
	}
	return strings.TrimSuffix(self, "/") + "/" + id
}
