package controller

import (
	"github.com/gofiber/fiber/v2"

	"muscleai_backend/internal/middleware"
)

func (h *Handler) GetStreak(c *fiber.Ctx) error {
	res, err := h.streaks.Get(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return data(c, res)
}

// UpdateStreak records an analysis for today.
func (h *Handler) UpdateStreak(c *fiber.Ctx) error {
	res, err := h.streaks.Update(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return data(c, res)
}

func (h *Handler) ResetStreak(c *fiber.Ctx) error {
	res, err := h.streaks.Reset(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return data(c, res)
}

func (h *Handler) StreakMilestones(c *fiber.Ctx) error {
	res, err := h.streaks.Milestones(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return data(c, res)
}
