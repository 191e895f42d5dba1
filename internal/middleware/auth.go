package middleware

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"muscleai_backend/internal/model"
	"muscleai_backend/pkg/apperror"
	"muscleai_backend/pkg/utils/jwt"
)

const (
	localClaims = "user"
	localUserID = "user_id"
)

// ProfileStore is implemented by *repository.Store.
type ProfileStore interface {
	EnsureProfile(ctx context.Context, p *model.Profile) error
}

// Auth verifies the Supabase bearer token and mirrors the caller into the
// profiles table. The upsert runs the first time this process sees a user and
// again whenever the token carries a different email.
func Auth(verifier *jwt.Verifier, profiles ProfileStore, log *slog.Logger) fiber.Handler {
	var seen sync.Map

	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return apperror.Unauthorized("Missing or malformed authorization header")
		}

		claims, err := verifier.ValidateToken(token)
		if err != nil {
			log.Debug("token rejected", "path", c.Path(), "error", err)
			return apperror.Unauthorized("Invalid or expired token")
		}
		userID, _ := claims.UserID()

		if email, ok := seen.Load(userID); !ok || email.(string) != claims.Email {
			p := &model.Profile{ID: userID, Email: claims.Email, FullName: claims.UserMetadata.FullName}
			if err := profiles.EnsureProfile(c.UserContext(), p); err != nil {
				return apperror.Internal("", err)
			}
			seen.Store(userID, claims.Email)
		}

		c.Locals(localClaims, claims)
		c.Locals(localUserID, userID)
		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UserID returns the authenticated caller. Only valid behind Auth.
func UserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(localUserID).(uuid.UUID)
	return id
}

func Claims(c *fiber.Ctx) *jwt.Claims {
	claims, _ := c.Locals(localClaims).(*jwt.Claims)
	return claims
}
