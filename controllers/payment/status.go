package payment

import (
	"github.com/gofiber/fiber/v2"

	"paygate/helpers"
)

// CheckStatus polls the gateway for the current state and reconciles the
// ledger row when the reported state is a legal next step.
func (ct *Controller) CheckStatus(c *fiber.Ctx) error {
	paymentID := c.Query("payment_id")
	if paymentID == "" {
		return helpers.JSONError(c, fiber.StatusBadRequest, "PAYMENT_ID_REQUIRED")
	}

	payment, err := ct.orchestrator.CheckStatus(c.Context(), principal(c), paymentID)
	if err != nil {
		return fail(c, err)
	}
	return helpers.JSONSuccess(c, "Payment status", payment)
}

func (ct *Controller) ListPayments(c *fiber.Ctx) error {
	payments, err := ct.orchestrator.ListPayments(c.Context(), principal(c))
	if err != nil {
		return fail(c, err)
	}
	return helpers.JSONSuccess(c, "Payments", payments)
}
