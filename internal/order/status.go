package order

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrOrderNotDelivered = errors.New("order has not been delivered")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
)

// IllegalTransitionError reports a status change that the lifecycle graph
// does not allow.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition from %s to %s", e.From, e.To)
}

// allowedTransitions is the order lifecycle graph. The happy path runs
// pending through delivered; cancellation is reachable from every state
// before delivery, and refunds only follow a cancelled or delivered
// order.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusPreparing: true,
		StatusCancelled: true,
	},
	StatusPreparing: {
		StatusReady:     true,
		StatusCancelled: true,
	},
	StatusReady: {
		StatusPickedUp:  true,
		StatusCancelled: true,
	},
	StatusPickedUp: {
		StatusOutForDelivery: true,
		StatusCancelled:      true,
	},
	StatusOutForDelivery: {
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusDelivered: {
		StatusRefunded: true,
	},
	StatusCancelled: {
		StatusRefunded: true,
	},
	StatusRefunded: {},
}

// CanTransition reports whether the lifecycle graph permits moving from
// one status to another.
func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

// IsTerminal reports whether the customer-facing lifecycle has ended.
// Delivered and cancelled orders can still be refunded, but that is a
// payment settlement, not lifecycle progress: a terminal order can never
// be cancelled, confirmed, or moved back into preparation.
func IsTerminal(s Status) bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

// Transition moves the order to newStatus, appending a timestamped entry
// to the status history. Delivery stamps the actual delivery time.
func (o *Order) Transition(newStatus Status, note string, now time.Time) error {
	if !CanTransition(o.Status, newStatus) {
		return &IllegalTransitionError{From: o.Status, To: newStatus}
	}

	o.Status = newStatus
	o.StatusHistory = append(o.StatusHistory, StatusChange{
		Status:    newStatus,
		Timestamp: now,
		Note:      note,
	})

	if newStatus == StatusDelivered {
		t := now
		o.ActualDeliveryTime = &t
	}

	return nil
}

// Cancel transitions the order to cancelled, recording who cancelled it
// and why. A completed payment queues a refund of the full order total.
func (o *Order) Cancel(reason string, by CancelledBy, now time.Time) error {
	if err := o.Transition(StatusCancelled, reason, now); err != nil {
		return err
	}

	o.CancellationReason = reason
	o.CancelledBy = by

	if o.PaymentStatus == PaymentStatusCompleted {
		o.RefundStatus = RefundPending
		o.RefundAmount = o.Pricing.Total
	}

	return nil
}

// ProcessRefund transitions a cancelled or delivered order to refunded
// and settles the pending refund.
func (o *Order) ProcessRefund(note string, now time.Time) error {
	if err := o.Transition(StatusRefunded, note, now); err != nil {
		return err
	}

	if o.RefundAmount == 0 {
		o.RefundAmount = o.Pricing.Total
	}
	o.RefundStatus = RefundCompleted
	o.PaymentStatus = PaymentStatusRefunded

	return nil
}

// AttachReview records a rating and comment. Reviews are only legal on
// delivered orders.
func (o *Order) AttachReview(rating int, comment string) error {
	if o.Status != StatusDelivered {
		return ErrOrderNotDelivered
	}
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}

	o.Review = &Review{Rating: rating, Comment: comment}
	return nil
}
