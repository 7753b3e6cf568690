package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	idempotencyKeyCtxKey = "idempotency_key"
)

// RequireIdempotencyKey rejects a POST request that lacks the header. The
// per-key hash-conflict check itself runs in the handler, which is the
// layer that owns the raw request body.
func RequireIdempotencyKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + IdempotencyKeyHeader + " header"})
			c.Abort()
			return
		}
		c.Set(idempotencyKeyCtxKey, key)
		c.Next()
	}
}

func GetIdempotencyKey(c *gin.Context) string {
	v, _ := c.Get(idempotencyKeyCtxKey)
	s, _ := v.(string)
	return s
}
