package auth

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Middleware extracts the operator identity from the Authorization header,
// resolves the tenant from the operator context table, and injects an Actor
// into the request context.
//
// If any step fails (missing token, invalid token, unknown operator), the
// request proceeds without an actor. Handlers that mutate state must check
// for actor availability; read-only public endpoints may not.
func Middleware(service *Service, extractor *TokenExtractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			slog.Debug("no authorization header provided")
			c.Next()
			return
		}

		userID, err := extractor.ExtractUserIDFromHeader(authHeader)
		if err != nil {
			slog.Warn("failed to extract user ID from token",
				"error", err,
				"auth_header_length", len(authHeader),
			)
			c.Next()
			return
		}

		opCtx, err := service.GetOperatorContext(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				slog.Info("operator context not found, request proceeds unauthenticated", "user_id", userID)
			} else {
				slog.Warn("failed to get operator context from database",
					"user_id", userID,
					"error", err,
				)
			}
			c.Next()
			return
		}

		actor := Actor{UserID: opCtx.UserID, TenantID: opCtx.TenantID}
		c.Request = c.Request.WithContext(WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
