package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bankverify/bankverify/internal/identity"
	"github.com/bankverify/bankverify/internal/middleware"
	"github.com/bankverify/bankverify/internal/profile"
)

// RegisterProfileRoutes wires the read-only customer profile tabs.
func RegisterProfileRoutes(r fiber.Router, h *profile.Handler) {
	g := r.Group("/customers/:id", middleware.RequirePermission(identity.PermProfilesRead))
	g.Get("/profile", h.Profile)
	g.Get("/cashflow", h.Cashflow)
	g.Get("/spending", h.Spending)
	g.Get("/income", h.Income)
	g.Get("/transactions", h.Transactions)
	g.Get("/accounts", h.Accounts)
}
