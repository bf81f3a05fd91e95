package payment

import (
	"github.com/gofiber/fiber/v2"

	"paygate/helpers"
)

func (ct *Controller) CreatePayout(c *fiber.Ctx) error {
	in, err := ct.parseCreate(c)
	if err != nil {
		return helpers.JSONError(c, fiber.StatusBadRequest, err.Error())
	}

	payout, err := ct.orchestrator.CreatePayout(c.Context(), principal(c), in)
	if err != nil {
		return fail(c, err)
	}
	return helpers.JSONSuccess(c, "Payout created", payout)
}

type confirmRequest struct {
	PaymentID string `json:"paymentId" validate:"required"`
}

func (ct *Controller) ConfirmPayout(c *fiber.Ctx) error {
	var req confirmRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, fiber.StatusBadRequest, "INVALID_JSON")
	}
	if err := ct.validate.Struct(req); err != nil {
		return helpers.JSONError(c, fiber.StatusBadRequest, err.Error())
	}

	payout, err := ct.orchestrator.ConfirmPayout(c.Context(), principal(c), req.PaymentID)
	if err != nil {
		return fail(c, err)
	}
	return helpers.JSONSuccess(c, "Payout confirmed", payout)
}
