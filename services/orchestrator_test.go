package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"paygate/models"
	"paygate/providers"
)

// stubGateway scripts gateway responses and counts calls.
type stubGateway struct {
	submitResult  *providers.GatewayResult
	submitErr     error
	queryResult   *providers.GatewayResult
	queryErr      error
	confirmResult *providers.GatewayResult
	confirmErr    error

	submitCalls  int
	queryCalls   int
	confirmCalls int
}

func (s *stubGateway) Submit(ctx context.Context, req providers.SubmitRequest) (*providers.GatewayResult, error) {
	s.submitCalls++
	return s.submitResult, s.submitErr
}

func (s *stubGateway) Query(ctx context.Context, gatewayID string) (*providers.GatewayResult, error) {
	s.queryCalls++
	return s.queryResult, s.queryErr
}

func (s *stubGateway) ConfirmPayout(ctx context.Context, gatewayID string) (*providers.GatewayResult, error) {
	s.confirmCalls++
	return s.confirmResult, s.confirmErr
}

func TestCreatePaymentIdempotent(t *testing.T) {
	ledger := NewLedger(newTestDB(t))
	gw := &stubGateway{submitResult: &providers.GatewayResult{ID: "g-1", State: "CHECKOUT"}}
	orch := NewOrchestrator(ledger, gw, nil)
	ctx := context.Background()

	in := CreateInput{
		ReferenceID: "r-1",
		Amount:      decimal.RequireFromString("100.00"),
		Currency:    "EUR",
	}

	first, err := orch.CreatePayment(ctx, 1, in)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if first.GatewayID == nil || *first.GatewayID != "g-1" {
		t.Error("Expected gateway id g-1")
	}
	if first.State != models.StateCheckout {
		t.Errorf("Expected CHECKOUT, got %s", first.State)
	}
	if first.Type != models.TypeDeposit {
		t.Errorf("Expected DEPOSIT, got %s", first.Type)
	}

	second, err := orch.CreatePayment(ctx, 1, in)
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected the existing row, got id %d vs %d", second.ID, first.ID)
	}
	if gw.submitCalls != 1 {
		t.Errorf("Expected 1 gateway submit, got %d", gw.submitCalls)
	}
}

func TestCreatePaymentResubmitsOrphanedReservation(t *testing.T) {
	ledger := NewLedger(newTestDB(t))
	gw := &stubGateway{submitResult: &providers.GatewayResult{ID: "g-o", State: "CHECKOUT"}}
	orch := NewOrchestrator(ledger, gw, nil)
	ctx := context.Background()

	// A prior attempt reserved the row and crashed before submitting: the
	// row sits on PENDING with no gateway id.
	orphan, _, err := ledger.CreateIfAbsent(ctx, models.Payment{
		ReferenceID: "r-o",
		UserID:      1,
		Type:        models.TypeDeposit,
		Amount:      decimal.RequireFromString("25.00"),
		Currency:    "EUR",
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	// The client retry with the same reference id must submit, not hand back
	// the dead reservation.
	recovered, err := orch.CreatePayment(ctx, 1, CreateInput{
		ReferenceID: "r-o",
		Amount:      decimal.RequireFromString("25.00"),
		Currency:    "EUR",
	})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if gw.submitCalls != 1 {
		t.Errorf("Expected 1 gateway submit, got %d", gw.submitCalls)
	}
	if recovered.ID != orphan.ID {
		t.Errorf("Expected the reserved row to be reused, got id %d vs %d", recovered.ID, orphan.ID)
	}
	if recovered.GatewayID == nil || *recovered.GatewayID != "g-o" {
		t.Error("Expected gateway id g-o")
	}
	if recovered.State != models.StateCheckout {
		t.Errorf("Expected CHECKOUT, got %s", recovered.State)
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	ledger := NewLedger(newTestDB(t))
	gw := &stubGateway{}
	orch := NewOrchestrator(ledger, gw, nil)

	cases := []CreateInput{
		{Amount: decimal.Zero, Currency: "EUR"},
		{Amount: decimal.RequireFromString("-1"), Currency: "EUR"},
		{Amount: decimal.RequireFromString("10"), Currency: "EURO"},
	}
	for _, in := range cases {
		if _, err := orch.CreatePayment(context.Background(), 1, in); !errors.Is(err, ErrValidation) {
			t.Errorf("Expected ErrValidation for %+v, got %v", in, err)
		}
	}
	if gw.submitCalls != 0 {
		t.Errorf("Expected no gateway calls, got %d", gw.submitCalls)
	}
}

func TestCreatePaymentGatewayFailureMarksError(t *testing.T) {
	ledger := NewLedger(newTestDB(t))
	gw := &stubGateway{submitErr: &providers.GatewayError{Code: "HTTP_422", Message: "bad request"}}
	orch := NewOrchestrator(ledger, gw, nil)
	ctx := context.Background()

	_, err := orch.CreatePayment(ctx, 1, CreateInput{
		ReferenceID: "r-fail",
		Amount:      decimal.RequireFromString("10.00"),
		Currency:    "EUR",
	})

	var gerr *providers.GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("Expected GatewayError, got %v", err)
	}

	// The attempt row survives as an ERROR audit trail.
	row, err := ledger.GetByReferenceID(ctx, "r-fail")
	if err != nil {
		t.Fatalf("Expected the row to survive, got %v", err)
	}
	if row.State != models.StateError {
		t.Errorf("Expected ERROR, got %s", row.State)
	}
	if row.ErrorCode == nil || *row.ErrorCode != "HTTP_422" {
		t.Error("Expected error code HTTP_422 to be recorded")
	}
}

func TestCreatePayoutType(t *testing.T) {
	ledger := NewLedger(newTestDB(t))
	gw := &stubGateway{submitResult: &providers.GatewayResult{ID: "g-p", State: "AWAITING_APPROVAL"}}
	orch := NewOrchestrator(ledger, gw, nil)

	payout, err := orch.CreatePayout(context.Background(), 1, CreateInput{
		Amount:   decimal.RequireFromString("50.00"),
		Currency: "USD",
	})
	if err != nil {
		t.Fatalf("create payout failed: %v", err)
	}
	if payout.Type != models.TypeWithdrawal {
		t.Errorf("Expected WITHDRAWAL, got %s", payout.Type)
	}
	if payout.ReferenceID == "" {
		t.Error("Expected a generated reference id")
	}
	if payout.State != models.StateAwaitingApproval {
		t.Errorf("Expected AWAITING_APPROVAL, got %s", payout.State)
	}
}

func TestCreateRefundPreconditions(t *testing.T) {
	ledger := NewLedger(newTestDB(t))
	gw := &stubGateway{}
	orch := NewOrchestrator(ledger, gw, nil)
	ctx := context.Background()

	refund := RefundInput{
		ParentGatewayID: "g-none",
		Amount:          decimal.RequireFromString("10.00"),
		Currency:        "EUR",
	}

	// Nonexistent parent.
	if _, err := orch.CreateRefund(ctx, 1, refund); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for missing parent, got %v", err)
	}

	// Parent exists but is not COMPLETED.
	parent, _, _ := ledger.CreateIfAbsent(ctx, models.Payment{
		ReferenceID: "parent-1",
		UserID:      1,
		Type:        models.TypeDeposit,
		Amount:      decimal.RequireFromString("10.00"),
		Currency:    "EUR",
	})
	if _, err := ledger.AssignGateway(ctx, parent.ID, "g-parent", models.StateAwaitingWebhook); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	refund.ParentGatewayID = "g-parent"
	if _, err := orch.CreateRefund(ctx, 1, refund); !errors.Is(err, ErrParentNotCompleted) {
		t.Errorf("Expected ErrParentNotCompleted, got %v", err)
	}

	// Wrong owner.
	if _, err := ledger.ApplyTransition(ctx, "g-parent", models.StateCompleted, models.StateAwaitingWebhook); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if _, err := orch.CreateRefund(ctx, 2, refund); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for wrong owner, got %v", err)
	}

	if gw.submitCalls != 0 {
		t.Fatalf("Expected no gateway calls before preconditions pass, got %d", gw.submitCalls)
	}

	// All preconditions satisfied.
	gw.submitResult = &providers.GatewayResult{ID: "g-refund", State: "PENDING"}
	created, err := orch.CreateRefund(ctx, 1, refund)
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if created.Type != models.TypeRefund {
		t.Errorf("Expected REFUND, got %s", created.Type)
	}
	if created.ParentGatewayID == nil || *created.ParentGatewayID != "g-parent" {
		t.Error("Expected parent gateway id to be recorded")
	}
}

func TestCheckStatusReconciles(t *testing.T) {
	ledger := NewLedger(newTestDB(t))
	gw := &stubGateway{submitResult: &providers.GatewayResult{ID: "g-s", State: "AWAITING_WEBHOOK"}}
	orch := NewOrchestrator(ledger, gw, nil)
	ctx := context.Background()

	if _, err := orch.CreatePayment(ctx, 1, CreateInput{
		ReferenceID: "r-s",
		Amount:      decimal.RequireFromString("10.00"),
		Currency:    "EUR",
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	gw.queryResult = &providers.GatewayResult{ID: "g-s", State: "COMPLETED"}
	updated, err := orch.CheckStatus(ctx, 1, "g-s")
	if err != nil {
		t.Fatalf("check status failed: %v", err)
	}
	if updated.State != models.StateCompleted {
		t.Errorf("Expected COMPLETED, got %s", updated.State)
	}

	// A later poll claiming a non-terminal state must not resurrect it.
	gw.queryResult = &providers.GatewayResult{ID: "g-s", State: "PENDING"}
	again, err := orch.CheckStatus(ctx, 1, "g-s")
	if err != nil {
		t.Fatalf("second check failed: %v", err)
	}
	if again.State != models.StateCompleted {
		t.Errorf("Expected state to stay COMPLETED, got %s", again.State)
	}
}

func TestCheckStatusUnknownGatewayState(t *testing.T) {
	ledger := NewLedger(newTestDB(t))
	gw := &stubGateway{submitResult: &providers.GatewayResult{ID: "g-u", State: "CHECKOUT"}}
	orch := NewOrchestrator(ledger, gw, nil)
	ctx := context.Background()

	if _, err := orch.CreatePayment(ctx, 1, CreateInput{
		ReferenceID: "r-u",
		Amount:      decimal.RequireFromString("10.00"),
		Currency:    "EUR",
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	gw.queryResult = &providers.GatewayResult{ID: "g-u", State: "SOME_FUTURE_STATE"}
	p, err := orch.CheckStatus(ctx, 1, "g-u")
	if err != nil {
		t.Fatalf("check status failed: %v", err)
	}
	if p.State != models.StateCheckout {
		t.Errorf("Expected unknown state to be a no-op, got %s", p.State)
	}
}

func TestConfirmPayoutRejectsNonPayout(t *testing.T) {
	ledger := NewLedger(newTestDB(t))
	gw := &stubGateway{submitResult: &providers.GatewayResult{ID: "g-d", State: "CHECKOUT"}}
	orch := NewOrchestrator(ledger, gw, nil)
	ctx := context.Background()

	if _, err := orch.CreatePayment(ctx, 1, CreateInput{
		ReferenceID: "r-d",
		Amount:      decimal.RequireFromString("10.00"),
		Currency:    "EUR",
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := orch.ConfirmPayout(ctx, 1, "g-d"); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for deposit confirm, got %v", err)
	}
	if gw.confirmCalls != 0 {
		t.Errorf("Expected no confirm calls, got %d", gw.confirmCalls)
	}
}
