package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paygate/models"
	"paygate/providers"
)

// Gateway is the outbound contract the orchestrator drives. Satisfied by
// providers.PayAdmitClient; tests substitute a stub.
type Gateway interface {
	Submit(ctx context.Context, req providers.SubmitRequest) (*providers.GatewayResult, error)
	ConfirmPayout(ctx context.Context, gatewayID string) (*providers.GatewayResult, error)
	Query(ctx context.Context, gatewayID string) (*providers.GatewayResult, error)
}

// EventPublisher pushes state-change events to downstream consumers.
type EventPublisher interface {
	PublishStateChange(payment *models.Payment)
}

// Orchestrator coordinates client-initiated actions against the gateway and
// the ledger. It reserves a PENDING ledger row before every gateway call so
// a crash between submit and write stays detectable, and it never waits for
// terminal states: asynchronous completion belongs to the webhook path.
type Orchestrator struct {
	ledger  *Ledger
	gateway Gateway
	events  EventPublisher
}

func NewOrchestrator(ledger *Ledger, gateway Gateway, events EventPublisher) *Orchestrator {
	return &Orchestrator{ledger: ledger, gateway: gateway, events: events}
}

type CreateInput struct {
	ReferenceID string
	Amount      decimal.Decimal
	Currency    string
	Customer    *providers.Customer
}

type RefundInput struct {
	ReferenceID     string
	ParentGatewayID string
	Amount          decimal.Decimal
	Currency        string
}

func (o *Orchestrator) CreatePayment(ctx context.Context, userID uint, in CreateInput) (*models.Payment, error) {
	return o.create(ctx, userID, models.TypeDeposit, in, nil)
}

func (o *Orchestrator) CreatePayout(ctx context.Context, userID uint, in CreateInput) (*models.Payment, error) {
	return o.create(ctx, userID, models.TypeWithdrawal, in, nil)
}

// CreateRefund validates the refund preconditions before any gateway call:
// the parent payment must exist, belong to the caller and be COMPLETED.
func (o *Orchestrator) CreateRefund(ctx context.Context, userID uint, in RefundInput) (*models.Payment, error) {
	parent, err := o.ledger.GetByGatewayID(ctx, in.ParentGatewayID)
	if errors.Is(err, ErrPaymentNotFound) {
		return nil, fmt.Errorf("%w: parent payment %s not found", ErrValidation, in.ParentGatewayID)
	}
	if err != nil {
		return nil, err
	}
	if parent.UserID != userID {
		return nil, fmt.Errorf("%w: parent payment belongs to another user", ErrValidation)
	}
	if parent.State != models.StateCompleted {
		return nil, ErrParentNotCompleted
	}
	if in.Currency != parent.Currency {
		return nil, fmt.Errorf("%w: refund currency %s does not match parent %s", ErrValidation, in.Currency, parent.Currency)
	}
	if in.Amount.GreaterThan(parent.Amount) {
		return nil, fmt.Errorf("%w: refund amount exceeds parent amount", ErrValidation)
	}

	return o.create(ctx, userID, models.TypeRefund, CreateInput{
		ReferenceID: in.ReferenceID,
		Amount:      in.Amount,
		Currency:    in.Currency,
	}, &in.ParentGatewayID)
}

func (o *Orchestrator) create(ctx context.Context, userID uint, typ models.PaymentType, in CreateInput, parentGatewayID *string) (*models.Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if len(in.Currency) != 3 {
		return nil, fmt.Errorf("%w: invalid currency %q", ErrValidation, in.Currency)
	}

	referenceID := in.ReferenceID
	if referenceID == "" {
		referenceID = uuid.NewString()
	}

	// Reserve before submit. A retried request with the same reference id
	// lands on the existing row instead of creating a second payment.
	payment, created, err := o.ledger.CreateIfAbsent(ctx, models.Payment{
		ReferenceID:     referenceID,
		UserID:          userID,
		Type:            typ,
		Amount:          in.Amount,
		Currency:        in.Currency,
		ParentGatewayID: parentGatewayID,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		// A previous attempt may have crashed between reserving the row and
		// submitting. A row still on its PENDING marker with no gateway id is
		// safe to resubmit: the reference id dedupes at the gateway, and
		// AssignGateway is guarded on the row still being PENDING.
		if payment.State != models.StatePending || payment.GatewayID != nil {
			return payment, nil
		}
	}

	result, err := o.gateway.Submit(ctx, providers.SubmitRequest{
		ReferenceID:     referenceID,
		PaymentType:     string(typ),
		Amount:          in.Amount.StringFixed(2),
		Currency:        in.Currency,
		Customer:        in.Customer,
		ParentPaymentID: deref(parentGatewayID),
	})
	if err != nil {
		code := ""
		var gerr *providers.GatewayError
		if errors.As(err, &gerr) {
			code = gerr.Code
		}
		if merr := o.ledger.MarkError(ctx, payment.ID, code); merr != nil {
			log.Printf("failed to mark payment %d as error: %v", payment.ID, merr)
		}
		return nil, err
	}

	initial := models.StatePending
	if state, ok := models.ParseState(result.State); ok {
		initial = state
	}

	updated, err := o.ledger.AssignGateway(ctx, payment.ID, result.ID, initial)
	if errors.Is(err, ErrLedgerConflict) {
		// A concurrent attempt already moved the row past PENDING.
		return o.ledger.GetByReferenceID(ctx, referenceID)
	}
	if err != nil {
		return nil, err
	}

	o.publish(updated)
	return updated, nil
}

// ConfirmPayout approves a payout at the gateway and reflects any reported
// state change in the ledger.
func (o *Orchestrator) ConfirmPayout(ctx context.Context, userID uint, gatewayID string) (*models.Payment, error) {
	payment, err := o.ledger.GetByGatewayID(ctx, gatewayID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, fmt.Errorf("%w: payment belongs to another user", ErrValidation)
	}
	if payment.Type != models.TypeWithdrawal {
		return nil, fmt.Errorf("%w: payment %s is not a payout", ErrValidation, gatewayID)
	}

	result, err := o.gateway.ConfirmPayout(ctx, gatewayID)
	if err != nil {
		return nil, err
	}

	return o.reconcileReported(ctx, payment, result.State)
}

// CheckStatus is the polling path: it queries the gateway and applies the
// reported state when the transition is legal. Queries are retried inside
// the gateway client, never here.
func (o *Orchestrator) CheckStatus(ctx context.Context, userID uint, gatewayID string) (*models.Payment, error) {
	payment, err := o.ledger.GetByGatewayID(ctx, gatewayID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, fmt.Errorf("%w: payment belongs to another user", ErrValidation)
	}

	result, err := o.gateway.Query(ctx, gatewayID)
	if err != nil {
		return nil, err
	}

	return o.reconcileReported(ctx, payment, result.State)
}

func (o *Orchestrator) ListPayments(ctx context.Context, userID uint) ([]models.Payment, error) {
	return o.ledger.ListByUser(ctx, userID)
}

// reconcileReported applies a gateway-reported state through the state
// machine. Illegal or unknown states leave the row untouched; a CAS
// conflict means someone else already advanced it, so the fresh row wins.
func (o *Orchestrator) reconcileReported(ctx context.Context, payment *models.Payment, reported string) (*models.Payment, error) {
	state, ok := models.ParseState(reported)
	if !ok {
		if reported != "" {
			log.Printf("gateway reported unknown state %q for payment %s", reported, deref(payment.GatewayID))
		}
		return payment, nil
	}
	if !CanTransition(payment.State, state, false) {
		return payment, nil
	}

	updated, err := o.ledger.ApplyTransition(ctx, deref(payment.GatewayID), state, payment.State)
	if errors.Is(err, ErrLedgerConflict) {
		return o.ledger.GetByGatewayID(ctx, deref(payment.GatewayID))
	}
	if err != nil {
		return nil, err
	}

	o.publish(updated)
	return updated, nil
}

func (o *Orchestrator) publish(payment *models.Payment) {
	if o.events != nil && payment != nil {
		o.events.PublishStateChange(payment)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
