package order

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/feastline/feastline/internal/pricing"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusPickedUp       Status = "picked-up"
	StatusOutForDelivery Status = "out-for-delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusRefunded       Status = "refunded"
)

func (s Status) String() string {
	return string(s)
}

type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentCash   PaymentMethod = "cash"
	PaymentWallet PaymentMethod = "wallet"
	PaymentUPI    PaymentMethod = "upi"
	PaymentGPay   PaymentMethod = "gpay"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type RefundStatus string

const (
	RefundNone      RefundStatus = ""
	RefundPending   RefundStatus = "pending"
	RefundCompleted RefundStatus = "completed"
)

// CancelledBy identifies which party cancelled an order.
type CancelledBy string

const (
	CancelledByUser       CancelledBy = "user"
	CancelledByRestaurant CancelledBy = "restaurant"
	CancelledByAdmin      CancelledBy = "admin"
	CancelledBySystem     CancelledBy = "system"
)

// StatusChange is one entry of the append-only status history.
type StatusChange struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// DeliveryAddress is the drop-off address captured at checkout.
type DeliveryAddress struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Phone    string `json:"phone,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Review is a post-delivery rating with an optional comment.
type Review struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// Order is the persisted order aggregate. It is created once at checkout
// and afterwards mutated only through status transitions, cancellation,
// refund processing, and review attachment; orders are never deleted.
// Version backs optimistic concurrency on those mutations.
type Order struct {
	ID                    uuid.UUID          `json:"id"`
	UserID                uuid.UUID          `json:"user_id"`
	RestaurantID          uuid.UUID          `json:"restaurant_id"`
	Items                 []pricing.LineItem `json:"items"`
	Pricing               pricing.Breakdown  `json:"pricing"`
	DeliveryAddress       DeliveryAddress    `json:"delivery_address"`
	PaymentMethod         PaymentMethod      `json:"payment_method"`
	PaymentStatus         PaymentStatus      `json:"payment_status"`
	Status                Status             `json:"status"`
	StatusHistory         []StatusChange     `json:"status_history"`
	EstimatedDeliveryTime time.Time          `json:"estimated_delivery_time"`
	ActualDeliveryTime    *time.Time         `json:"actual_delivery_time,omitempty"`
	CancellationReason    string             `json:"cancellation_reason,omitempty"`
	CancelledBy           CancelledBy        `json:"cancelled_by,omitempty"`
	RefundStatus          RefundStatus       `json:"refund_status,omitempty"`
	RefundAmount          float64            `json:"refund_amount,omitempty"`
	Review                *Review            `json:"review,omitempty"`
	LoyaltyPointsEarned   int64              `json:"loyalty_points_earned"`
	Version               int64              `json:"version"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}
