package controller

import (
	"github.com/gofiber/fiber/v2"

	"muscleai_backend/internal/middleware"
	"muscleai_backend/internal/service"
)

type CreateSubscriptionInput struct {
	PlanID string `json:"plan_id"`
	UserID string `json:"user_id"`
}

type CancelSubscriptionInput struct {
	SubscriptionID string `json:"subscription_id"`
}

type ChangePlanInput struct {
	NewPlanID string `json:"new_plan_id"`
	UserID    string `json:"user_id"`
}

func (h *Handler) ListPlans(c *fiber.Ctx) error {
	plans, err := h.subscriptions.Plans(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, plans)
}

func (h *Handler) CreateSubscription(c *fiber.Ctx) error {
	input := new(CreateSubscriptionInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	userID, err := caller(c, input.UserID)
	if err != nil {
		return err
	}
	planID, err := parseID(input.PlanID, "plan_id")
	if err != nil {
		return err
	}

	res, err := h.subscriptions.Create(c.UserContext(), userID, planID)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *Handler) CancelSubscription(c *fiber.Ctx) error {
	input := new(CancelSubscriptionInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	subID, err := parseID(input.SubscriptionID, "subscription_id")
	if err != nil {
		return err
	}

	res, err := h.subscriptions.Cancel(c.UserContext(), middleware.UserID(c), subID)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *Handler) ChangeSubscriptionPlan(c *fiber.Ctx) error {
	input := new(ChangePlanInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	userID, err := caller(c, input.UserID)
	if err != nil {
		return err
	}
	planID, err := parseID(input.NewPlanID, "new_plan_id")
	if err != nil {
		return err
	}

	res, err := h.subscriptions.ChangePlan(c.UserContext(), userID, planID)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *Handler) VerifyPayment(c *fiber.Ctx) error {
	input := new(service.VerifyPaymentInput)
	if err := parseBody(c, input); err != nil {
		return err
	}

	res, err := h.reconciler.VerifyPayment(c.UserContext(), middleware.UserID(c), *input)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *Handler) GetMySubscription(c *fiber.Ctx) error {
	sub, err := h.subscriptions.Current(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return data(c, sub)
}

func (h *Handler) PaymentHistory(c *fiber.Ctx) error {
	txns, err := h.subscriptions.PaymentHistory(c.UserContext(), middleware.UserID(c), c.QueryInt("limit"))
	if err != nil {
		return err
	}
	return data(c, txns)
}
