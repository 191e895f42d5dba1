package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"muscleai_backend/internal/middleware"
)

// Routes mounts every endpoint. auth guards everything except webhooks, the
// checkout callback, the plan list and the operational endpoints.
func Routes(app *fiber.App, h *Handler, auth fiber.Handler) {
	app.Get("/healthz", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Gateway-facing endpoints authenticate by signature.
	functions := app.Group("/functions/v1")
	functions.Post("/webhook-razorpay", h.RazorpayWebhook)
	functions.Post("/webhook-stripe", h.StripeWebhook)
	functions.Get("/payment-callback", h.PaymentCallback)
	functions.Get("/payment-callback/:provider", h.PaymentCallback)

	functions.Post("/create-subscription", auth, h.CreateSubscription)
	functions.Post("/cancel-subscription", auth, h.CancelSubscription)
	functions.Post("/change-subscription-plan", auth, h.ChangeSubscriptionPlan)
	functions.Post("/verify-payment", auth, h.VerifyPayment)

	api := app.Group("/api")
	api.Get("/subscriptions/plans", h.ListPlans)

	protected := api.Group("", auth)
	protected.Get("/subscriptions/me", h.GetMySubscription)
	protected.Get("/payments/history", h.PaymentHistory)

	usage := protected.Group("/usage")
	usage.Get("/can-analyze", h.CanAnalyze)
	usage.Post("/increment", h.IncrementUsage)
	usage.Get("/history", h.UsageHistory)

	streak := protected.Group("/streak")
	streak.Get("/", h.GetStreak)
	streak.Post("/", h.UpdateStreak)
	streak.Delete("/", h.ResetStreak)
	streak.Get("/milestones", h.StreakMilestones)

	notifications := protected.Group("/notifications")
	notifications.Get("/", h.ListNotifications)
	notifications.Post("/", h.CreateNotification)
	notifications.Get("/unread-count", h.UnreadCount)
	notifications.Post("/read-all", h.MarkAllNotificationsRead)
	notifications.Post("/:id/read", h.MarkNotificationRead)
	notifications.Delete("/:id", h.DeleteNotification)

	analyses := protected.Group("/analyses")
	analyses.Post("/", middleware.RequireQuota(h.quota), h.RecordAnalysis)
	analyses.Get("/stats", h.AnalysisStats)

	protected.Get("/profile", h.GetProfile)
	protected.Put("/profile", h.UpdateProfile)

	account := protected.Group("/account")
	account.Get("/deletion-requests", h.ListDeletionRequests)
	account.Post("/deletion-requests", h.RequestAccountDeletion)
	account.Post("/deletion-requests/:id/cancel", h.CancelAccountDeletion)
}
