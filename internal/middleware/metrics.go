package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"muscleai_backend/pkg/apperror"
	"muscleai_backend/pkg/metrics"
)

// Metrics records request counts and latency labelled by route pattern, so
// path parameters do not blow up label cardinality.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = apperror.HTTPStatus(apperror.KindOf(err))
			}
		}
		path := c.Route().Path
		code := strconv.Itoa(status)
		metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), path, code).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Method(), path, code).Observe(time.Since(start).Seconds())
		return err
	}
}
