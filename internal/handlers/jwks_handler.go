package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/egendata/operator/internal/utils"
)

// KeySource publishes the operator's public keys.
type KeySource interface {
	JWKS() (jwk.Set, error)
}

// JWKSHandler serves the operator's public keys.
type JWKSHandler struct {
	keys KeySource
}

// NewJWKSHandler creates a new JWKS handler instance
func NewJWKSHandler(keys KeySource) *JWKSHandler {
	return &JWKSHandler{keys: keys}
}

// JWKS handles GET /jwks
func (h *JWKSHandler) JWKS(c *gin.Context) {
	set, err := h.keys.JWKS()
	if err != nil {
		utils.SendInternalServerError(c, "Could not load keys", "")
		return
	}
	utils.SendOKResponse(c, set)
}

// Key handles GET /jwks/:kid. The kid may be the bare name or the full key
// id URL.
func (h *JWKSHandler) Key(c *gin.Context) {
	set, err := h.keys.JWKS()
	if err != nil {
		utils.SendInternalServerError(c, "Could not load keys", "")
		return
	}

	kid := c.Param("kid")
	for i := 0; i < set.Len(); i++ {
		key, _ := set.Key(i)
		if id := key.KeyID(); id == kid || strings.HasSuffix(id, "/jwks/"+kid) {
			utils.SendOKResponse(c, key)
			return
		}
	}
	utils.SendNotFoundError(c, "No such key")
}
