package controller

import (
	"github.com/gofiber/fiber/v2"

	"muscleai_backend/internal/middleware"
	"muscleai_backend/internal/service"
)

func (h *Handler) GetProfile(c *fiber.Ctx) error {
	p, err := h.accounts.Profile(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return data(c, p)
}

func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	input := new(service.UpdateProfileInput)
	if err := parseBody(c, input); err != nil {
		return err
	}

	p, err := h.accounts.UpdateProfile(c.UserContext(), middleware.UserID(c), *input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated successfully",
		"data":    p,
	})
}

func (h *Handler) ListDeletionRequests(c *fiber.Ctx) error {
	reqs, err := h.accounts.DeletionRequests(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return data(c, reqs)
}

func (h *Handler) RequestAccountDeletion(c *fiber.Ctx) error {
	input := new(service.DeletionRequestInput)
	if err := parseBody(c, input); err != nil {
		return err
	}

	req, err := h.accounts.RequestDeletion(c.UserContext(), middleware.UserID(c), *input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Account deletion requested",
		"data":    req,
	})
}

func (h *Handler) CancelAccountDeletion(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"), "request id")
	if err != nil {
		return err
	}
	if err := h.accounts.CancelDeletion(c.UserContext(), middleware.UserID(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Deletion request cancelled"})
}
