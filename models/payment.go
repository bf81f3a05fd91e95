package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentType string

const (
	TypeDeposit    PaymentType = "DEPOSIT"
	TypeWithdrawal PaymentType = "WITHDRAWAL"
	TypeRefund     PaymentType = "REFUND"
	TypeCardVerify PaymentType = "CARDVERIFY"
)

type PaymentState string

const (
	StateCheckout              PaymentState = "CHECKOUT"
	StateAwaitingRedirect      PaymentState = "AWAITING_REDIRECT"
	StateAwaitingApproval      PaymentState = "AWAITING_APPROVAL"
	StateAwaitingReturn        PaymentState = "AWAITING_RETURN"
	StateAwaitingWebhook       PaymentState = "AWAITING_WEBHOOK"
	StateCascadingConfirmation PaymentState = "CASCADING_CONFIRMATION"
	StateReconciliation        PaymentState = "RECONCILIATION"
	StatePending               PaymentState = "PENDING"
	StateCompleted             PaymentState = "COMPLETED"
	StateDeclined              PaymentState = "DECLINED"
	StateCancelled             PaymentState = "CANCELLED"
	StateError                 PaymentState = "ERROR"
)

// ParseState maps a gateway state string to the internal enum. Unknown
// strings return ok=false so new gateway states degrade to a logged no-op.
func ParseState(s string) (PaymentState, bool) {
	switch PaymentState(s) {
	case StateCheckout, StateAwaitingRedirect, StateAwaitingApproval,
		StateAwaitingReturn, StateAwaitingWebhook, StateCascadingConfirmation,
		StateReconciliation, StatePending, StateCompleted, StateDeclined,
		StateCancelled, StateError:
		return PaymentState(s), true
	}
	return "", false
}

// Payment is the ledger row, the single source of truth for a transaction.
// The row is created as PENDING before the gateway submit; GatewayID is
// assigned once the gateway acknowledges. ReferenceID is the merchant-side
// idempotency key. State changes only through Ledger.ApplyTransition.
type Payment struct {
	gorm.Model

	GatewayID   *string `gorm:"uniqueIndex;size:64" json:"gateway_id"`
	ReferenceID string  `gorm:"uniqueIndex;size:64;not null" json:"reference_id"`
	UserID      uint    `gorm:"index" json:"user_id"`

	Type  PaymentType  `gorm:"size:16;not null" json:"type"`
	State PaymentState `gorm:"size:32;not null;index" json:"state"`

	Amount   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Currency string          `gorm:"size:3;not null" json:"currency"`

	ParentGatewayID *string `gorm:"size:64" json:"parent_gateway_id,omitempty"`
	ErrorCode       *string `gorm:"size:32" json:"error_code,omitempty"`
}
