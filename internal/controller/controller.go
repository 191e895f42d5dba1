// Package controller holds the fiber handlers. Handlers parse the request,
// call one service and return its result; failures are returned as errors and
// rendered by middleware.ErrorHandler.
package controller

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"muscleai_backend/internal/middleware"
	"muscleai_backend/internal/service"
	"muscleai_backend/pkg/apperror"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	subscriptions *service.SubscriptionService
	reconciler    *service.Reconciler
	quota         *service.QuotaService
	streaks       *service.StreakService
	notifications *service.NotificationService
	expiry        *service.ExpiryService
	analyses      *service.AnalysisService
	accounts      *service.AccountService
	health        map[string]HealthCheck
	log           *slog.Logger
}

type Services struct {
	Subscriptions *service.SubscriptionService
	Reconciler    *service.Reconciler
	Quota         *service.QuotaService
	Streaks       *service.StreakService
	Notifications *service.NotificationService
	Expiry        *service.ExpiryService
	Analyses      *service.AnalysisService
	Accounts      *service.AccountService
}

func New(svc Services, health map[string]HealthCheck, log *slog.Logger) *Handler {
	return &Handler{
		subscriptions: svc.Subscriptions,
		reconciler:    svc.Reconciler,
		quota:         svc.Quota,
		streaks:       svc.Streaks,
		notifications: svc.Notifications,
		expiry:        svc.Expiry,
		analyses:      svc.Analyses,
		accounts:      svc.Accounts,
		health:        health,
		log:           log,
	}
}

func parseBody(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(dst); err != nil {
		return apperror.Validation("Invalid request body")
	}
	return nil
}

func parseID(value, field string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, apperror.Validation(field + " is required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apperror.Validation("Invalid " + field)
	}
	return id, nil
}

// caller returns the authenticated user, rejecting a body user_id that names
// someone else.
func caller(c *fiber.Ctx, claimed string) (uuid.UUID, error) {
	userID := middleware.UserID(c)
	if claimed != "" && claimed != userID.String() {
		return uuid.Nil, apperror.Unauthorized("User mismatch")
	}
	return userID, nil
}

func data(c *fiber.Ctx, v interface{}) error {
	return c.JSON(fiber.Map{"success": true, "data": v})
}
