package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"paygate/helpers"
)

// UserAuth extracts the authenticated principal id from a bearer token.
// Token issuance lives in the auth service; this only validates and reads
// the "sub" claim.
func UserAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return helpers.JSONError(c, fiber.StatusUnauthorized, "MISSING_AUTHORIZATION")
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return helpers.JSONError(c, fiber.StatusUnauthorized, "INVALID_TOKEN")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return helpers.JSONError(c, fiber.StatusUnauthorized, "INVALID_TOKEN")
		}
		sub, ok := claims["sub"].(float64)
		if !ok {
			return helpers.JSONError(c, fiber.StatusUnauthorized, "INVALID_TOKEN")
		}

		c.Locals("user_id", uint(sub))
		return c.Next()
	}
}
