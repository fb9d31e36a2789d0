package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bankverify/bankverify/internal/identity"
)

// Authenticator resolves an access token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (identity.User, error)
}

const userLocal = "user"

// JWTAuth validates bearer access tokens and stores the user in locals.
func JWTAuth(tokens Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		user, err := tokens.Authenticate(c.UserContext(), strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		c.Locals("user_id", user.ID)
		c.Locals("role", string(user.Role))
		c.Locals(userLocal, user)
		return c.Next()
	}
}

// CurrentUser returns the user stored by JWTAuth.
func CurrentUser(c *fiber.Ctx) (identity.User, bool) {
	user, ok := c.Locals(userLocal).(identity.User)
	return user, ok
}

// RequirePermission rejects users lacking perm. It must run after JWTAuth.
func RequirePermission(perm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "not authenticated")
		}
		if !user.Can(perm) {
			return fiber.NewError(http.StatusForbidden, "missing permission "+perm)
		}
		return c.Next()
	}
}
