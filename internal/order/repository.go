package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/feastline/feastline/internal/pricing"
)

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// Create inserts the order and credits the buyer's loyalty balance in a
// single transaction, so a failure partway leaves neither behind.
func (r *postgresRepository) Create(ctx context.Context, o *Order, loyaltyPoints int64) (err error) {
	itemsJSON, historyJSON, pricingJSON, addressJSON, err := marshalAggregate(o)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("repository: failed to rollback create transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	query := `
		INSERT INTO orders (
			id, user_id, restaurant_id, items, pricing, delivery_address,
			payment_method, payment_status, status, status_history,
			estimated_delivery_time, loyalty_points_earned, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = tx.Exec(ctx, query,
		o.ID,
		o.UserID,
		o.RestaurantID,
		itemsJSON,
		pricingJSON,
		addressJSON,
		string(o.PaymentMethod),
		string(o.PaymentStatus),
		string(o.Status),
		historyJSON,
		o.EstimatedDeliveryTime,
		o.LoyaltyPointsEarned,
		o.Version,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	if loyaltyPoints > 0 {
		cmdTag, creditErr := tx.Exec(ctx,
			`UPDATE users SET loyalty_points = loyalty_points + $1, updated_at = $2 WHERE id = $3`,
			loyaltyPoints, time.Now().UTC(), o.UserID,
		)
		if creditErr != nil {
			err = fmt.Errorf("repository: failed to credit loyalty points: %w", creditErr)
			return err
		}
		if cmdTag.RowsAffected() == 0 {
			err = fmt.Errorf("repository: loyalty credit matched no user %s", o.UserID)
			return err
		}
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := selectColumns + ` FROM orders WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order %s: %w", id, err)
	}

	return o, nil
}

func (r *postgresRepository) List(ctx context.Context, filter Filter) ([]Order, error) {
	query := selectColumns + ` FROM orders WHERE 1=1`
	args := make([]any, 0, 3)

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.RestaurantID != nil {
		args = append(args, *filter.RestaurantID)
		query += fmt.Sprintf(" AND restaurant_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	return orders, nil
}

// Update writes the mutable part of the aggregate guarded by the version
// the caller loaded. A concurrent writer bumps the version first and this
// write then matches no row, surfacing ErrVersionConflict instead of a
// silent lost update.
func (r *postgresRepository) Update(ctx context.Context, o *Order) error {
	_, historyJSON, pricingJSON, _, err := marshalAggregate(o)
	if err != nil {
		return err
	}

	var reviewRating *int
	var reviewComment *string
	if o.Review != nil {
		reviewRating = &o.Review.Rating
		reviewComment = &o.Review.Comment
	}

	query := `
		UPDATE orders SET
			status = $1,
			status_history = $2,
			pricing = $3,
			payment_status = $4,
			actual_delivery_time = $5,
			cancellation_reason = $6,
			cancelled_by = $7,
			refund_status = $8,
			refund_amount = $9,
			rating = $10,
			review = $11,
			version = version + 1,
			updated_at = $12
		WHERE id = $13 AND version = $14
	`

	cmdTag, err := r.db.Exec(ctx, query,
		string(o.Status),
		historyJSON,
		pricingJSON,
		string(o.PaymentStatus),
		o.ActualDeliveryTime,
		nullIfEmpty(o.CancellationReason),
		nullIfEmpty(string(o.CancelledBy)),
		nullIfEmpty(string(o.RefundStatus)),
		o.RefundAmount,
		reviewRating,
		reviewComment,
		time.Now().UTC(),
		o.ID,
		o.Version,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update order %s: %w", o.ID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		// Either the order vanished or someone updated it first.
		var exists bool
		if checkErr := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); checkErr == nil && !exists {
			return ErrOrderNotFound
		}
		log.Warn().Stringer("order_id", o.ID).Int64("version", o.Version).Msg("repository: version conflict on order update")
		return ErrVersionConflict
	}

	o.Version++
	return nil
}

const selectColumns = `
	SELECT id, user_id, restaurant_id, items, pricing, delivery_address,
		payment_method, payment_status, status, status_history,
		estimated_delivery_time, actual_delivery_time,
		cancellation_reason, cancelled_by, refund_status, refund_amount,
		rating, review, loyalty_points_earned, version, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                  Order
		itemsJSON          []byte
		pricingJSON        []byte
		addressJSON        []byte
		historyJSON        []byte
		paymentMethod      string
		paymentStatus      string
		status             string
		cancellationReason *string
		cancelledBy        *string
		refundStatus       *string
		refundAmount       *float64
		rating             *int
		reviewComment      *string
	)

	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.RestaurantID,
		&itemsJSON,
		&pricingJSON,
		&addressJSON,
		&paymentMethod,
		&paymentStatus,
		&status,
		&historyJSON,
		&o.EstimatedDeliveryTime,
		&o.ActualDeliveryTime,
		&cancellationReason,
		&cancelledBy,
		&refundStatus,
		&refundAmount,
		&rating,
		&reviewComment,
		&o.LoyaltyPointsEarned,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(pricingJSON, &o.Pricing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order pricing: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.DeliveryAddress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal delivery address: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &o.StatusHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status history: %w", err)
	}

	o.PaymentMethod = PaymentMethod(paymentMethod)
	o.PaymentStatus = PaymentStatus(paymentStatus)
	o.Status = Status(status)
	if cancellationReason != nil {
		o.CancellationReason = *cancellationReason
	}
	if cancelledBy != nil {
		o.CancelledBy = CancelledBy(*cancelledBy)
	}
	if refundStatus != nil {
		o.RefundStatus = RefundStatus(*refundStatus)
	}
	if refundAmount != nil {
		o.RefundAmount = *refundAmount
	}
	if rating != nil {
		o.Review = &Review{Rating: *rating}
		if reviewComment != nil {
			o.Review.Comment = *reviewComment
		}
	}

	return &o, nil
}

func marshalAggregate(o *Order) (items, history, pricingJSON, address []byte, err error) {
	if o.Items == nil {
		o.Items = []pricing.LineItem{}
	}
	if items, err = json.Marshal(o.Items); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("repository: failed to marshal order items: %w", err)
	}
	if history, err = json.Marshal(o.StatusHistory); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("repository: failed to marshal status history: %w", err)
	}
	if pricingJSON, err = json.Marshal(o.Pricing); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("repository: failed to marshal pricing: %w", err)
	}
	if address, err = json.Marshal(o.DeliveryAddress); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("repository: failed to marshal delivery address: %w", err)
	}
	return items, history, pricingJSON, address, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
