package controller

import (
	"bytes"
	"html/template"

	"github.com/gofiber/fiber/v2"

	"muscleai_backend/internal/middleware"
	"muscleai_backend/pkg/apperror"
	"muscleai_backend/pkg/gateway"
)

var callbackTemplate = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
</head>
<body style="font-family: sans-serif; text-align: center; padding: 48px;">
  <h1>{{.Title}}</h1>
  <p>{{.Message}}</p>
  <script>
    alert({{.Message}});
    window.close();
  </script>
</body>
</html>`))

func (h *Handler) webhook(provider string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := h.reconciler.Webhook(c.UserContext(), provider, c.Body(), func(key string) string {
			return c.Get(key)
		})
		if err != nil {
			// Providers expect 400 for a rejected signature.
			if apperror.KindOf(err) == apperror.KindUnauthorized {
				return c.Status(fiber.StatusBadRequest).JSON(middleware.ErrorResponse{
					Error: apperror.MessageOf(err),
					Code:  apperror.KindUnauthorized,
				})
			}
			return err
		}
		return c.JSON(fiber.Map{"success": true, "event": res.Event, "outcome": res.Outcome})
	}
}

func (h *Handler) RazorpayWebhook(c *fiber.Ctx) error {
	return h.webhook(gateway.ProviderRazorpay)(c)
}

func (h *Handler) StripeWebhook(c *fiber.Ctx) error {
	return h.webhook(gateway.ProviderStripe)(c)
}

// PaymentCallback is where the checkout page redirects the browser. It always
// answers with a page, never with the JSON error envelope.
func (h *Handler) PaymentCallback(c *fiber.Ctx) error {
	provider := c.Params("provider", c.Query("provider", gateway.ProviderRazorpay))
	res := h.reconciler.Callback(c.UserContext(), provider, func(key string) string {
		return c.Query(key)
	})

	var buf bytes.Buffer
	if err := callbackTemplate.Execute(&buf, res); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(res.HTTPStatus).Send(buf.Bytes())
}
