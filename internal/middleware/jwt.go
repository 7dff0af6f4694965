package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/vasiprashanti/techlearn-api/internal/utils"
)

const errorKindUnauthorized = "unauthorized"

// JWTProtected validates staff bearer tokens issued by the platform auth service and
// exposes the subject and role to later handlers.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return utils.FailKind(c, fiber.StatusUnauthorized, errorKindUnauthorized, "authorization header missing or malformed", nil)
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.FailKind(c, fiber.StatusUnauthorized, errorKindUnauthorized, "invalid token", nil)
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.FailKind(c, fiber.StatusUnauthorized, errorKindUnauthorized, "invalid token claims", nil)
		}

		if subject := claimString(claims["sub"]); subject != "" {
			c.Locals("staff_id", subject)
		}
		for _, key := range []string{"role", "roles"} {
			if role := normalizeRole(claims[key]); role != "" {
				c.Locals("staff_role", role)
				break
			}
		}

		return c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(c *fiber.Ctx) (string, bool) {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	const bearer = "bearer "
	if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(authorization[len(bearer):])
	return token, token != ""
}

func claimString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				if role := strings.ToLower(strings.TrimSpace(str)); role != "" {
					return role
				}
			}
		}
	}
	return ""
}
