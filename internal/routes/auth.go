package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bankverify/bankverify/internal/auth"
)

// RegisterAuthRoutes wires the public login and refresh endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, loginLimiter fiber.Handler) {
	g := r.Group("/auth")
	g.Post("/login", loginLimiter, h.Login)
	g.Post("/refresh", h.Refresh)
}
