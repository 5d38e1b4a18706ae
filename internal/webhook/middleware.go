package webhook

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// TokenAuthMiddleware validates the X-Webhook-Token header against the
// configured shared secret. Comparison is constant time over digests so token
// length is not observable.
func TokenAuthMiddleware(token string) gin.HandlerFunc {
	expected := sha256.Sum256([]byte(token))

	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "webhook ingestion not configured"})
			return
		}

		presented := c.GetHeader("X-Webhook-Token")
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing webhook token"})
			return
		}

		digest := sha256.Sum256([]byte(presented))
		if subtle.ConstantTimeCompare(expected[:], digest[:]) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
			return
		}
		c.Next()
	}
}
