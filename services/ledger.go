package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paygate/models"
)

// Ledger owns every mutation of payment rows. Transitions go through
// ApplyTransition, a compare-and-swap on state, so concurrent webhook
// deliveries and orchestration on the same row serialize at the database.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// CreateIfAbsent inserts a reserved PENDING row for referenceID, or returns
// the existing row when a concurrent or retried caller already created one.
// Atomic against the unique reference_id index via ON CONFLICT DO NOTHING.
func (l *Ledger) CreateIfAbsent(ctx context.Context, payment models.Payment) (*models.Payment, bool, error) {
	payment.State = models.StatePending

	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference_id"}},
			DoNothing: true,
		}).
		Create(&payment)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return &payment, true, nil
	}

	var existing models.Payment
	if err := l.db.WithContext(ctx).
		First(&existing, "reference_id = ?", payment.ReferenceID).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (l *Ledger) GetByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error) {
	var payment models.Payment
	err := l.db.WithContext(ctx).First(&payment, "gateway_id = ?", gatewayID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (l *Ledger) GetByReferenceID(ctx context.Context, referenceID string) (*models.Payment, error) {
	var payment models.Payment
	err := l.db.WithContext(ctx).First(&payment, "reference_id = ?", referenceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (l *Ledger) ListByUser(ctx context.Context, userID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

// AssignGateway moves a reserved row past its PENDING marker: it records
// the gateway-assigned id and the gateway's initial state in one update,
// guarded on the row still being PENDING.
func (l *Ledger) AssignGateway(ctx context.Context, paymentID uint, gatewayID string, initial models.PaymentState) (*models.Payment, error) {
	res := l.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND state = ?", paymentID, models.StatePending).
		Updates(map[string]any{
			"gateway_id": gatewayID,
			"state":      initial,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrLedgerConflict
	}

	var payment models.Payment
	if err := l.db.WithContext(ctx).First(&payment, paymentID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkError records a failed or timed-out submission attempt. The row is
// kept, never deleted, so the attempt stays auditable.
func (l *Ledger) MarkError(ctx context.Context, paymentID uint, errorCode string) error {
	updates := map[string]any{
		"state":      models.StateError,
		"updated_at": time.Now(),
	}
	if errorCode != "" {
		updates["error_code"] = errorCode
	}
	return l.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Updates(updates).Error
}

// ApplyTransition sets state to newState only if the stored state is one of
// expected. A mismatch returns ErrLedgerConflict without mutating, which is
// how stale and duplicate webhook deliveries are rejected.
func (l *Ledger) ApplyTransition(ctx context.Context, gatewayID string, newState models.PaymentState, expected ...models.PaymentState) (*models.Payment, error) {
	updates := map[string]any{
		"state":      newState,
		"updated_at": time.Now(),
	}

	res := l.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("gateway_id = ? AND state IN ?", gatewayID, expected).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := l.GetByGatewayID(ctx, gatewayID); err != nil {
			return nil, err
		}
		return nil, ErrLedgerConflict
	}

	return l.GetByGatewayID(ctx, gatewayID)
}

// ListStuck returns payments in a non-terminal state that have not moved
// since the cutoff. Rows with a gateway id get polled by the reconciliation
// job; rows still on their PENDING marker with no gateway id are orphaned
// reservations whose submitting attempt crashed, returned so the job can
// expire them.
func (l *Ledger) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := l.db.WithContext(ctx).
		Where("gateway_id IS NOT NULL OR state = ?", models.StatePending).
		Where("state NOT IN ?", []models.PaymentState{
			models.StateCompleted, models.StateDeclined,
			models.StateCancelled, models.StateError,
		}).
		Where("updated_at < ?", cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// ExpireReservation moves an aged PENDING row that never received a gateway
// id to ERROR. Guarded on the state and the missing gateway id so a late
// submit racing the expiry loses cleanly with ErrLedgerConflict.
func (l *Ledger) ExpireReservation(ctx context.Context, paymentID uint) error {
	res := l.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND state = ? AND gateway_id IS NULL", paymentID, models.StatePending).
		Updates(map[string]any{
			"state":      models.StateError,
			"error_code": "RESERVATION_EXPIRED",
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrLedgerConflict
	}
	return nil
}

// RecordWebhookEvent persists the audit row for a received notification.
func (l *Ledger) RecordWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return l.db.WithContext(ctx).Create(event).Error
}
