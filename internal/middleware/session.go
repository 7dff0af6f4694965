package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vasiprashanti/techlearn-api/internal/utils"
)

// SessionVerifier resolves an examinee session token to the identity it was issued
// for, provided it belongs to the given round.
type SessionVerifier interface {
	Subject(token, accessKey string) (string, error)
}

// ExamineeSession requires a session token minted by OTP verification for the round
// named by the accessKey route parameter.
func ExamineeSession(verifier SessionVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return utils.FailKind(c, fiber.StatusUnauthorized, errorKindUnauthorized, "session token required", nil)
		}

		identity, err := verifier.Subject(token, c.Params("accessKey"))
		if err != nil {
			return utils.FailKind(c, fiber.StatusUnauthorized, errorKindUnauthorized, "invalid or expired session", nil)
		}

		c.Locals("examinee_identity", identity)
		return c.Next()
	}
}

// ExamineeIdentity returns the identity bound by ExamineeSession.
func ExamineeIdentity(c *fiber.Ctx) string {
	identity, _ := c.Locals("examinee_identity").(string)
	return identity
}
