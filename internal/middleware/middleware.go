package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reserva/internal/cache"
	"reserva/internal/repository"
)

// Ctx key and helpers for the authenticated consumer id.
// Using unexported type to avoid collisions

type ctxKey string

const consumerIDKey ctxKey = "consumer_id"

func ContextWithConsumerID(ctx context.Context, consumerID string) context.Context {
	return context.WithValue(ctx, consumerIDKey, consumerID)
}

func ConsumerIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(consumerIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// CORS handles cross-origin requests.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	}
}

// Logger emits one structured log line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		consumerID, exists := c.Get("consumer_id")

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}

		if exists {
			logFields = append(logFields, "consumer_id", consumerID)
		}

		if c.Writer.Status() >= 400 {
			if len(c.Errors) > 0 {
				logFields = append(logFields, "error", c.Errors.String())
			}
			slog.Error("Request completed with error", logFields...)
		}
	}
}

// Recovery converts panics into 500 responses with full logging.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		slog.Error("PANIC recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"client_ip", c.ClientIP(),
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
	})
}

// BasicAuth authenticates a consumer via HTTP Basic Auth, checking the
// Valkey auth cache first and falling back to the database.
func BasicAuth(consumerRepo *repository.ConsumerRepository, valkeyClient *cache.ValkeyClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", "Basic realm=\"Restricted\"")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		ctx := c.Request.Context()

		hash := sha256.Sum256([]byte(password))
		passwordHash := fmt.Sprintf("%x", hash)

		if valkeyClient != nil {
			consumerID, err := valkeyClient.GetConsumerIDByAuth(ctx, email, passwordHash)
			if err == nil && consumerID != "" {
				c.Set("consumer_id", consumerID)
				c.Request = c.Request.WithContext(ContextWithConsumerID(c.Request.Context(), consumerID))
				c.Next()
				return
			}
		}

		consumer, err := consumerRepo.GetByEmail(ctx, email)
		if err != nil || consumer == nil || !consumer.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		if consumer.PasswordHash == "" || passwordHash != consumer.PasswordHash {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		c.Set("consumer_id", consumer.ID)
		c.Request = c.Request.WithContext(ContextWithConsumerID(c.Request.Context(), consumer.ID))

		c.Next()
	}
}
