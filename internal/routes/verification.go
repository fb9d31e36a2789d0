package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/bankverify/bankverify/internal/identity"
	"github.com/bankverify/bankverify/internal/middleware"
	"github.com/bankverify/bankverify/internal/verification"
)

// RegisterVerificationRoutes wires the admin verification management endpoints.
func RegisterVerificationRoutes(r fiber.Router, h *verification.Handler, idempotent, resendLimiter fiber.Handler) {
	read := middleware.RequirePermission(identity.PermVerificationsRead)
	write := middleware.RequirePermission(identity.PermVerificationsWrite)

	r.Get("/dashboard/stats", read, h.Stats)
	r.Get("/statuses", read, h.Statuses)

	g := r.Group("/verifications")
	g.Get("/", read, h.List)
	g.Post("/", write, idempotent, h.Create)
	g.Post("/bulk", write, notImplemented("bulk upload"))
	g.Get("/:id", read, h.Get)
	g.Get("/:id/audit", read, h.Trail)
	g.Post("/:id/resend", write, resendLimiter, idempotent, h.Resend)
	g.Post("/:id/extend", write, idempotent, h.Extend)
	g.Post("/:id/cancel", write, idempotent, h.Cancel)

	r.Get("/reports/:id/download", read, notImplemented("report download"))
}

func notImplemented(feature string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return fiber.NewError(http.StatusNotImplemented, feature+" is not available yet")
	}
}
