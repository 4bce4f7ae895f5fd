package api

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// BearerAuth validates Authorization: Bearer <token> against API_AUTH_TOKEN.
// An unset token degrades to dev mode (all requests allowed) — grounded on
// the teacher's AuthMiddleware, same degrade-to-open-in-dev tradeoff.
func BearerAuth() gin.HandlerFunc {
	token := os.Getenv("API_AUTH_TOKEN")
	if token == "" && os.Getenv("GIN_MODE") == "release" {
		log.Println("[api] API_AUTH_TOKEN unset in release mode: dashboard endpoints are unauthenticated")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "malformed Authorization header"})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		c.Next()
	}
}
