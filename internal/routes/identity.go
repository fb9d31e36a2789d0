package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bankverify/bankverify/internal/identity"
	"github.com/bankverify/bankverify/internal/middleware"
)

// RegisterIdentityRoutes wires the current-user and staff management endpoints.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Get("/me", h.Me)
	users := r.Group("/users", middleware.RequirePermission(identity.PermUsersManage))
	users.Get("/", h.List)
	users.Post("/", h.Create)
}
