package controller

import (
	"github.com/gofiber/fiber/v2"

	"muscleai_backend/internal/middleware"
	"muscleai_backend/internal/service"
)

// ListNotifications also runs the caller's expiry checks so warnings and
// expiries show up without waiting for the scheduler.
func (h *Handler) ListNotifications(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := middleware.UserID(c)

	if err := h.expiry.RunForUser(ctx, userID); err != nil {
		h.log.Error("expiry check failed", "user_id", userID, "error", err)
	}

	list, err := h.notifications.List(ctx, userID, c.QueryInt("limit"))
	if err != nil {
		return err
	}
	unread, err := h.notifications.UnreadCount(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": list, "unread_count": unread})
}

func (h *Handler) UnreadCount(c *fiber.Ctx) error {
	n, err := h.notifications.UnreadCount(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "count": n})
}

func (h *Handler) CreateNotification(c *fiber.Ctx) error {
	input := new(service.CreateNotificationInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	n, err := h.notifications.Create(c.UserContext(), middleware.UserID(c), *input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": n})
}

func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"), "notification id")
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.UserContext(), middleware.UserID(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) MarkAllNotificationsRead(c *fiber.Ctx) error {
	n, err := h.notifications.MarkAllRead(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "updated": n})
}

func (h *Handler) DeleteNotification(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"), "notification id")
	if err != nil {
		return err
	}
	if err := h.notifications.Delete(c.UserContext(), middleware.UserID(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}
