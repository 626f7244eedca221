package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/serviceerror"
	pkgutils "github.com/egendata/operator/pkg/utils"
)

// SendSuccessResponse sends a successful JSON response
func SendSuccessResponse(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// SendErrorResponse sends an error JSON response
func SendErrorResponse(c *gin.Context, statusCode int, errCode, message, details string) {
	c.JSON(statusCode, models.NewErrorResponse(errCode, message, details))
}

// SendCreatedResponse sends a 201 Created response
func SendCreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// SendOKResponse sends a 200 OK response
func SendOKResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// SendJWTResponse sends a signed token as application/jwt
func SendJWTResponse(c *gin.Context, statusCode int, token string) {
	c.Data(statusCode, "application/jwt", []byte(token))
}

// SendBadRequestError sends a 400 Bad Request error
func SendBadRequestError(c *gin.Context, message, details string) {
	SendErrorResponse(c, http.StatusBadRequest, models.ErrCodeBadRequest, message, details)
}

// SendNotFoundError sends a 404 Not Found error
func SendNotFoundError(c *gin.Context, message string) {
	SendErrorResponse(c, http.StatusNotFound, models.ErrCodeNotFound, message, "")
}

// SendInternalServerError sends a 500 Internal Server Error
func SendInternalServerError(c *gin.Context, message, details string) {
	SendErrorResponse(c, http.StatusInternalServerError, models.ErrCodeInternalError, message, details)
}

// SendValidationError sends a validation error response
func SendValidationError(c *gin.Context, details string) {
	SendErrorResponse(c, http.StatusBadRequest, models.ErrCodeValidationError, "Validation failed", details)
}

// SendServiceError maps err to its status and error body. Internal causes
// are recorded on the gin context, never sent to the client.
func SendServiceError(c *gin.Context, err error) {
	_ = c.Error(err)

	se, ok := serviceerror.As(err)
	if !ok {
		SendInternalServerError(c, "Internal server error", "")
		return
	}

	switch se.Kind {
	case serviceerror.KindValidation:
		details := ""
		if se.Err != nil {
			details = pkgutils.FormatValidationErrors(se.Err)
		}
		SendErrorResponse(c, se.Status, models.ErrCodeValidationError, se.Message, details)
	case serviceerror.KindStorage:
		SendErrorResponse(c, se.Status, models.ErrCodeStorageError, se.Message, "")
	case serviceerror.KindTransaction:
		SendErrorResponse(c, se.Status, models.ErrCodeDatabaseError, se.Message, "")
	default:
		SendErrorResponse(c, se.Status, models.ErrorCodeForStatus(se.Status), se.Message, "")
	}
}

// GetCorrelationIDFromContext extracts correlation ID from context
func GetCorrelationIDFromContext(c *gin.Context) string {
	correlationID, exists := c.Get("correlationID")
	if !exists {
		return pkgutils.GenerateID()
	}
	return correlationID.(string)
}
