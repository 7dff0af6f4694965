package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/vasiprashanti/techlearn-api/internal/utils"
)

// RequireRole ensures that the authenticated staff member holds one of the allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("staff_role").(string)
		if _, ok := allowed[role]; !ok {
			return utils.FailKind(c, fiber.StatusForbidden, errorKindUnauthorized, "insufficient permissions", nil)
		}
		return c.Next()
	}
}
