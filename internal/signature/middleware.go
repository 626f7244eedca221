package signature

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/internal/utils"
)

const (
	verifiedKey = "signature"
	dataKey     = "signedData"
)

// Signed rejects requests whose envelope does not verify. Handlers read the
// payload with Data and the signer with From.
func Signed(v *Verifier, mode Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			utils.SendServiceError(c, serviceerror.Validation("Could not read body", err))
			c.Abort()
			return
		}

		data, verified, err := v.Verify(c.Request.Context(), body, mode)
		if err != nil {
			utils.SendServiceError(c, err)
			c.Abort()
			return
		}

		Set(c, data, verified)
		c.Next()
	}
}

// Set records a verified envelope on c.
func Set(c *gin.Context, data json.RawMessage, verified *Verified) {
	c.Set(verifiedKey, verified)
	c.Set(dataKey, data)
}

// From returns the signer context set by Signed.
func From(c *gin.Context) *Verified {
	v, _ := c.Get(verifiedKey)
	verified, _ := v.(*Verified)
	return verified
}

// Data returns the verified payload set by Signed.
func Data(c *gin.Context) json.RawMessage {
	v, _ := c.Get(dataKey)
	data, _ := v.(json.RawMessage)
	return data
}
