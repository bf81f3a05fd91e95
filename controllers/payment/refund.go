package payment

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"paygate/helpers"
	"paygate/services"
)

type refundRequest struct {
	ReferenceID     string `json:"referenceId" validate:"omitempty,max=64"`
	ParentPaymentID string `json:"parentPaymentId" validate:"required"`
	Amount          string `json:"amount" validate:"required"`
	Currency        string `json:"currency" validate:"required,len=3,uppercase"`
}

// CreateRefund refunds a completed payment. The parent must exist, belong
// to the caller and be COMPLETED; anything else is rejected before the
// gateway is contacted.
func (ct *Controller) CreateRefund(c *fiber.Ctx) error {
	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, fiber.StatusBadRequest, "INVALID_JSON")
	}
	if err := ct.validate.Struct(req); err != nil {
		return helpers.JSONError(c, fiber.StatusBadRequest, err.Error())
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return helpers.JSONError(c, fiber.StatusBadRequest, "INVALID_AMOUNT")
	}

	refund, err := ct.orchestrator.CreateRefund(c.Context(), principal(c), services.RefundInput{
		ReferenceID:     req.ReferenceID,
		ParentGatewayID: req.ParentPaymentID,
		Amount:          amount,
		Currency:        req.Currency,
	})
	if err != nil {
		return fail(c, err)
	}
	return helpers.JSONSuccess(c, "Refund created", refund)
}
