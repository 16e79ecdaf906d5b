package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/helpdesk-routing/pkg/util"
)

// RequireScope ensures the calling service holds scope.
func RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.HasScope(scope) {
			return apperrors.NewForbidden("missing scope " + scope)
		}
		return c.Next()
	}
}
