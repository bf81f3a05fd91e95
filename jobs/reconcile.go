package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"paygate/models"
	"paygate/services"
)

const stuckBatchSize = 50

// StartReconcileScheduler periodically re-queries the gateway for payments
// that have not moved out of a non-terminal state, covering webhooks that
// were never delivered. Transitions still go through the state machine and
// the ledger CAS, so a webhook landing mid-poll cannot be clobbered.
func StartReconcileScheduler(ledger *services.Ledger, gateway services.Gateway, events services.EventPublisher, interval, stuckAge time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			if err := reconcileOnce(ledger, gateway, events, stuckAge); err != nil {
				log.Printf("❌ error reconciling stuck payments: %v", err)
			}
		}
	}()
}

func reconcileOnce(ledger *services.Ledger, gateway services.Gateway, events services.EventPublisher, stuckAge time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	payments, err := ledger.ListStuck(ctx, time.Now().Add(-stuckAge), stuckBatchSize)
	if err != nil {
		return err
	}

	for _, p := range payments {
		if p.GatewayID == nil {
			// Reservation that never made it to the gateway; the attempt that
			// wrote it is long gone, so expire it.
			err := ledger.ExpireReservation(ctx, p.ID)
			switch {
			case errors.Is(err, services.ErrLedgerConflict):
				// A concurrent resubmit claimed the row; leave it alone.
			case err != nil:
				log.Printf("❌ expiring orphaned reservation %s failed: %v", p.ReferenceID, err)
			default:
				log.Printf("expired orphaned reservation %s", p.ReferenceID)
			}
			continue
		}
		gatewayID := *p.GatewayID

		result, err := gateway.Query(ctx, gatewayID)
		if err != nil {
			log.Printf("❌ query for stuck payment %s failed: %v", gatewayID, err)
			continue
		}

		state, ok := models.ParseState(result.State)
		if !ok || !services.CanTransition(p.State, state, false) {
			continue
		}

		updated, err := ledger.ApplyTransition(ctx, gatewayID, state, p.State)
		if errors.Is(err, services.ErrLedgerConflict) {
			// Another writer got there first; fine either way.
			continue
		}
		if err != nil {
			log.Printf("❌ transition for stuck payment %s failed: %v", gatewayID, err)
			continue
		}

		log.Printf("reconciled stuck payment %s: %s -> %s", gatewayID, p.State, state)
		if events != nil {
			events.PublishStateChange(updated)
		}
	}

	return nil
}
