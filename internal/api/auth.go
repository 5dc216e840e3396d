package api

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────
// Bearer Token Authentication Middleware
//
// Reads API_AUTH_TOKEN from environment. If set, the protected group
// (requests, votes — committee traffic) requires:
// Authorization: Bearer <token>
//
// Public endpoints (status stream, lock lookups) are excluded.
// ──────────────────────────────────────────────────────────────────

// AuthMiddleware returns a Gin middleware that validates bearer tokens.
// If API_AUTH_TOKEN is not set, all requests are allowed (dev mode).
// WARNING: In GIN_MODE=release, leaving API_AUTH_TOKEN unset exposes all
// protected routes to the public internet. Always set a strong token in prod.
func AuthMiddleware() gin.HandlerFunc {
	token := os.Getenv("API_AUTH_TOKEN")

	// Fail loudly in production if auth is not configured.
	if token == "" && os.Getenv("GIN_MODE") == "release" {
		log.Println("[SECURITY WARNING] API_AUTH_TOKEN is not set in release mode. " +
			"All protected endpoints are publicly accessible. " +
			"Set API_AUTH_TOKEN in your environment to enforce authentication.")
	}

	return func(c *gin.Context) {
		// If no token is configured, skip auth (development mode)
		if token == "" {
			c.Next()
			return
		}

		// Rejections here happen before a handler ever mints its own
		// correlationId (handleProcessRequest/handleProcessVote), so the
		// middleware mints its own to keep every JSON response in the
		// same correlation scheme.
		correlationID := uuid.New().String()

		auth := c.GetHeader("Authorization")
		if auth == "" {
			log.Printf("[txlock-api] auth rejected (missing header) ip=%s correlationId=%s", c.ClientIP(), correlationID)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":         "Missing Authorization header",
				"hint":          "Use: Authorization: Bearer <API_AUTH_TOKEN>",
				"correlationId": correlationID,
			})
			c.Abort()
			return
		}

		// Parse "Bearer <token>"
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.Printf("[txlock-api] auth rejected (malformed header) ip=%s correlationId=%s", c.ClientIP(), correlationID)
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid Authorization header format", "correlationId": correlationID})
			c.Abort()
			return
		}

		// Use constant-time comparison to prevent timing-based token enumeration.
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			log.Printf("[txlock-api] auth rejected (bad token) ip=%s correlationId=%s", c.ClientIP(), correlationID)
			c.JSON(http.StatusForbidden, gin.H{
				"error":         "Invalid or expired token",
				"correlationId": correlationID,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
