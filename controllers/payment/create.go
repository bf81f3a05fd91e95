package payment

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"paygate/helpers"
	"paygate/providers"
	"paygate/services"
)

type createRequest struct {
	ReferenceID string              `json:"referenceId" validate:"omitempty,max=64"`
	Amount      string              `json:"amount" validate:"required"`
	Currency    string              `json:"currency" validate:"required,len=3,uppercase"`
	Customer    *providers.Customer `json:"customer"`
}

var (
	errInvalidJSON   = errors.New("INVALID_JSON")
	errInvalidAmount = errors.New("INVALID_AMOUNT")
)

func (ct *Controller) parseCreate(c *fiber.Ctx) (services.CreateInput, error) {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return services.CreateInput{}, errInvalidJSON
	}
	if err := ct.validate.Struct(req); err != nil {
		return services.CreateInput{}, err
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return services.CreateInput{}, errInvalidAmount
	}

	return services.CreateInput{
		ReferenceID: req.ReferenceID,
		Amount:      amount,
		Currency:    req.Currency,
		Customer:    req.Customer,
	}, nil
}

// CreatePayment submits a deposit. Retrying with the same referenceId
// returns the original payment instead of creating a second one.
func (ct *Controller) CreatePayment(c *fiber.Ctx) error {
	in, err := ct.parseCreate(c)
	if err != nil {
		return helpers.JSONError(c, fiber.StatusBadRequest, err.Error())
	}

	payment, err := ct.orchestrator.CreatePayment(c.Context(), principal(c), in)
	if err != nil {
		return fail(c, err)
	}
	return helpers.JSONSuccess(c, "Payment created", payment)
}
