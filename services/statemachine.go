package services

import "paygate/models"

// Forward edges between non-terminal states along the documented gateway
// flow. Terminal targets are handled separately: every non-terminal state
// may settle into COMPLETED, DECLINED, CANCELLED or ERROR.
var forward = map[models.PaymentState][]models.PaymentState{
	models.StateCheckout:              {models.StateAwaitingRedirect},
	models.StateAwaitingRedirect:      {models.StateAwaitingReturn},
	models.StateAwaitingReturn:        {models.StateAwaitingWebhook},
	models.StateAwaitingApproval:      {models.StateAwaitingWebhook, models.StateCascadingConfirmation},
	models.StateAwaitingWebhook:       {models.StateCascadingConfirmation, models.StateReconciliation},
	models.StateCascadingConfirmation: {models.StateReconciliation},

	// PENDING is the local reserved placeholder written before the gateway
	// call; the gateway may report any of its own states from there.
	models.StatePending: {
		models.StateCheckout, models.StateAwaitingRedirect,
		models.StateAwaitingApproval, models.StateAwaitingReturn,
		models.StateAwaitingWebhook, models.StateCascadingConfirmation,
		models.StateReconciliation,
	},
}

// IsTerminal reports whether a state has no outgoing transitions.
func IsTerminal(s models.PaymentState) bool {
	switch s {
	case models.StateCompleted, models.StateDeclined, models.StateCancelled, models.StateError:
		return true
	}
	return false
}

// CanTransition reports whether current -> next is a legal transition.
// webhookAuthority marks callers applying an authoritative gateway
// notification; only those may move a payment out of ERROR, covering the
// case where a timed-out submit was in fact applied by the gateway.
func CanTransition(current, next models.PaymentState, webhookAuthority bool) bool {
	if current == next {
		return false
	}
	if current == models.StateError {
		return webhookAuthority
	}
	if IsTerminal(current) {
		return false
	}
	if IsTerminal(next) {
		return true
	}
	for _, s := range forward[current] {
		if s == next {
			return true
		}
	}
	return false
}
