package controller

import (
	"github.com/gofiber/fiber/v2"

	"muscleai_backend/internal/middleware"
	"muscleai_backend/internal/service"
)

func (h *Handler) CanAnalyze(c *fiber.Ctx) error {
	e, err := h.quota.CanAnalyze(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return data(c, e)
}

func (h *Handler) IncrementUsage(c *fiber.Ctx) error {
	input := new(service.IncrementInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	res, err := h.quota.Increment(c.UserContext(), middleware.UserID(c), *input)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *Handler) UsageHistory(c *fiber.Ctx) error {
	recs, err := h.quota.UsageHistory(c.UserContext(), middleware.UserID(c), c.QueryInt("limit"))
	if err != nil {
		return err
	}
	return data(c, recs)
}
