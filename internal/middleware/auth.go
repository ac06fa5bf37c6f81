package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"groupchat-service/internal/auth"
	"groupchat-service/internal/models"
)

type tokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

type identityRecorder interface {
	Upsert(ctx context.Context, userID, displayName, email string) (models.DirectoryEntry, error)
}

// AuthMiddleware validates the bearer token, stores the caller's id under
// "userID" and records the caller's profile claims in the directory.
// Browsers cannot set headers on websocket handshakes, so a ?token= query
// parameter is accepted as well.
func AuthMiddleware(verifier tokenVerifier, directory identityRecorder, logger zerolog.Logger) gin.HandlerFunc {
	logger = logger.With().Str("component", "auth").Logger()
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if directory != nil && (identity.Name != "" || identity.Email != "") {
			if _, err := directory.Upsert(c.Request.Context(), identity.UserID, identity.Name, identity.Email); err != nil {
				logger.Warn().Err(err).Str("user_id", identity.UserID).Msg("directory upsert failed")
			}
		}

		c.Set("userID", identity.UserID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		token := strings.TrimSpace(c.Query("token"))
		return token, token != ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
