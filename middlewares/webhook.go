package middlewares

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log"

	"github.com/gofiber/fiber/v2"

	"paygate/helpers"
)

// WebhookSignature verifies the HMAC-SHA256 of the exact raw request body
// against the Signature header. Rejected bodies are logged for audit but
// never reach the reconciler.
func WebhookSignature(signKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		signature := c.Get("Signature")
		body := c.Body()

		h := hmac.New(sha256.New, []byte(signKey))
		h.Write(body)
		expected := hex.EncodeToString(h.Sum(nil))

		if !hmac.Equal([]byte(signature), []byte(expected)) {
			log.Printf("webhook signature mismatch, body: %s", body)
			return helpers.JSONError(c, fiber.StatusBadRequest, "INVALID_SIGNATURE")
		}

		return c.Next()
	}
}
