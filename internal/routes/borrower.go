package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bankverify/bankverify/internal/borrower"
)

// RegisterBorrowerRoutes wires the token-gated wizard endpoints.
func RegisterBorrowerRoutes(r fiber.Router, h *borrower.Handler) {
	g := r.Group("/borrower")
	g.Get("/errors/:kind", h.ErrorInfo)
	g.Post("/audit", h.Audit)

	v := g.Group("/verify/:token")
	v.Get("/", h.Validate)
	v.Post("/start", h.Start)
	v.Post("/customer-info", h.CustomerInfo)
	v.Post("/consent", h.Consent)
	v.Post("/connect", h.Connect)
	v.Post("/accounts", h.Accounts)
	v.Post("/complete", h.Complete)
	v.Get("/completion", h.Completion)
}
