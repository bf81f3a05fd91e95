package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"

	"paygate/models"
)

// DedupStore short-circuits repeated webhook deliveries. Best effort only:
// the ledger CAS remains the correctness mechanism when the store is down.
// Keys are marked only after a delivery was applied, so a redelivery of a
// notification that could not land yet is processed again rather than
// skipped.
type DedupStore interface {
	Seen(ctx context.Context, key string) bool
	Mark(ctx context.Context, key string)
}

const (
	lookupAttempts = 3
	lookupDelay    = 100 * time.Millisecond
)

// Notification is the parsed webhook body. Amount and currency are carried
// for the audit trail; the ledger row's own values stay write-once.
type Notification struct {
	ID          string          `json:"id"`
	State       string          `json:"state"`
	PaymentType string          `json:"paymentType"`
	Amount      json.RawMessage `json:"amount"`
	Currency    string          `json:"currency"`
	ErrorCode   string          `json:"errorCode"`
}

// Reconciler applies gateway notifications to the ledger through the state
// machine. Signature verification happens upstream in the webhook
// middleware; by the time Handle runs the body is authenticated.
type Reconciler struct {
	ledger *Ledger
	dedup  DedupStore
	events EventPublisher
}

func NewReconciler(ledger *Ledger, dedup DedupStore, events EventPublisher) *Reconciler {
	return &Reconciler{ledger: ledger, dedup: dedup, events: events}
}

// Handle processes one delivery. A nil return means the delivery must be
// acknowledged with 200, including anomalies (unknown payment, unknown
// state, stale duplicates): webhook senders retry on non-2xx, and
// redelivering an unprocessable notification forever helps nobody.
func (r *Reconciler) Handle(ctx context.Context, rawBody []byte, signature string) error {
	var note Notification
	if err := json.Unmarshal(rawBody, &note); err != nil {
		return fmt.Errorf("%w: malformed webhook body: %v", ErrValidation, err)
	}
	if note.ID == "" {
		return fmt.Errorf("%w: webhook body missing id", ErrValidation)
	}

	dedupKey := note.ID + ":" + note.State
	if r.dedup != nil && r.dedup.Seen(ctx, dedupKey) {
		log.Printf("webhook for payment %s state %s already processed, skipping", note.ID, note.State)
		return nil
	}

	event := &models.WebhookEvent{
		GatewayID: note.ID,
		State:     note.State,
		Signature: signature,
		Payload:   datatypes.JSON(rawBody),
	}

	state, ok := models.ParseState(note.State)
	if !ok {
		log.Printf("webhook for payment %s carries unknown state %q, ignoring", note.ID, note.State)
		event.Note = "unknown state"
		r.record(ctx, event)
		return nil
	}

	applied, noteMsg := r.apply(ctx, note.ID, state)
	event.Applied = applied
	event.Note = noteMsg
	r.record(ctx, event)

	if applied && r.dedup != nil {
		r.dedup.Mark(ctx, dedupKey)
	}
	return nil
}

// apply looks up the payment and runs the CAS, retrying briefly when the
// row does not exist yet or is still sitting on its reserved marker: a
// webhook can outrun the synchronous path that writes the gateway id.
func (r *Reconciler) apply(ctx context.Context, gatewayID string, state models.PaymentState) (bool, string) {
	for attempt := 0; attempt < lookupAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(lookupDelay)
		}

		payment, err := r.ledger.GetByGatewayID(ctx, gatewayID)
		if errors.Is(err, ErrPaymentNotFound) {
			continue
		}
		if err != nil {
			log.Printf("webhook lookup for payment %s failed: %v", gatewayID, err)
			return false, "ledger lookup failed"
		}

		if !CanTransition(payment.State, state, true) {
			// Stale or duplicate delivery; terminal rows stay put.
			return false, fmt.Sprintf("transition %s -> %s rejected", payment.State, state)
		}

		updated, err := r.ledger.ApplyTransition(ctx, gatewayID, state, payment.State)
		if errors.Is(err, ErrLedgerConflict) {
			// Lost the race against another writer; re-read and retry.
			continue
		}
		if err != nil {
			log.Printf("webhook transition for payment %s failed: %v", gatewayID, err)
			return false, "ledger transition failed"
		}

		if r.events != nil {
			r.events.PublishStateChange(updated)
		}
		return true, ""
	}

	log.Printf("webhook anomaly: payment %s not reconcilable after %d attempts", gatewayID, lookupAttempts)
	return false, "not reconcilable"
}

func (r *Reconciler) record(ctx context.Context, event *models.WebhookEvent) {
	if err := r.ledger.RecordWebhookEvent(ctx, event); err != nil {
		log.Printf("failed to record webhook event for payment %s: %v", event.GatewayID, err)
	}
}
