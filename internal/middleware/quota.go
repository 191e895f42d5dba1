package middleware

import (
	"github.com/gofiber/fiber/v2"

	"muscleai_backend/internal/service"
)

const localEligibility = "eligibility"

// RequireQuota rejects the request unless the caller has an active plan with
// analyses left.
func RequireQuota(quota *service.QuotaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		e, err := quota.CanAnalyze(c.UserContext(), UserID(c))
		if err != nil {
			return err
		}
		if err := e.Denied(); err != nil {
			return err
		}
		c.Locals(localEligibility, e)
		return c.Next()
	}
}

// Eligibility returns the check made by RequireQuota.
func Eligibility(c *fiber.Ctx) *service.Eligibility {
	e, _ := c.Locals(localEligibility).(*service.Eligibility)
	return e
}
