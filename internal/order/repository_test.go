package order_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feastline/feastline/internal/order"
	"github.com/feastline/feastline/internal/pricing"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		envOr("TEST_DB_HOST", "localhost"),
		envOr("TEST_DB_PORT", "5432"),
		envOr("TEST_DB_USER", "postgres"),
		envOr("TEST_DB_PASSWORD", "postgres"),
		envOr("TEST_DB_NAME", "feastline_test"),
	)

	pool, err := pgxpool.New(context.Background(), connStr)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if pingErr := pool.Ping(ctx); pingErr != nil {
			log.Printf("test database unreachable, skipping repository tests: %v", pingErr)
			pool.Close()
			pool = nil
		}
		cancel()
	}
	testPool = pool

	exitCode := m.Run()

	if testPool != nil {
		testPool.Close()
	}
	os.Exit(exitCode)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// setupRepo truncates the tables the tests touch and seeds one user and
// one restaurant so the order foreign keys resolve.
func setupRepo(t *testing.T) (order.Repository, uuid.UUID, uuid.UUID) {
	if testPool == nil {
		t.Skip("test database is not available")
	}

	ctx := context.Background()
	truncate := func() {
		_, err := testPool.Exec(ctx, "TRUNCATE TABLE orders, menu_items, restaurants, users CASCADE")
		require.NoError(t, err, "failed to truncate tables")
	}
	truncate()
	t.Cleanup(truncate)

	userID := uuid.Must(uuid.NewV4())
	restaurantID := uuid.Must(uuid.NewV4())

	_, err := testPool.Exec(ctx,
		`INSERT INTO users (id, name, email, password_hash, loyalty_points) VALUES ($1, $2, $3, $4, $5)`,
		userID, "Test Customer", fmt.Sprintf("%s@example.com", userID), "x", 0)
	require.NoError(t, err)

	_, err = testPool.Exec(ctx,
		`INSERT INTO restaurants (id, name) VALUES ($1, $2)`,
		restaurantID, "Test Kitchen")
	require.NoError(t, err)

	return order.NewRepository(testPool), userID, restaurantID
}

func buildOrder(userID, restaurantID uuid.UUID) *order.Order {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &order.Order{
		ID:           uuid.Must(uuid.NewV4()),
		UserID:       userID,
		RestaurantID: restaurantID,
		Items: []pricing.LineItem{
			{MenuItemID: uuid.Must(uuid.NewV4()).String(), Name: "Margherita", UnitPrice: 12.50, Quantity: 1},
		},
		Pricing: pricing.Breakdown{
			Subtotal:    12.50,
			DeliveryFee: 2.99,
			ServiceFee:  0.63,
			TaxAmount:   1.00,
			Total:       17.12,
		},
		DeliveryAddress: order.DeliveryAddress{
			Street:   "1 Main St",
			City:     "Springfield",
			Postcode: "12345",
		},
		PaymentMethod: order.PaymentCard,
		PaymentStatus: order.PaymentStatusCompleted,
		Status:        order.StatusPending,
		StatusHistory: []order.StatusChange{
			{Status: order.StatusPending, Timestamp: now, Note: "Order placed successfully"},
		},
		EstimatedDeliveryTime: now.Add(45 * time.Minute),
		LoyaltyPointsEarned:   1,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func TestRepositoryCreateAndGetByID(t *testing.T) {
	repo, userID, restaurantID := setupRepo(t)
	ctx := context.Background()

	o := buildOrder(userID, restaurantID)
	require.NoError(t, repo.Create(ctx, o, o.LoyaltyPointsEarned))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, o.UserID, got.UserID)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, o.Pricing.Total, got.Pricing.Total)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Margherita", got.Items[0].Name)
	assert.Equal(t, "Springfield", got.DeliveryAddress.City)
	require.Len(t, got.StatusHistory, 1)
	assert.Equal(t, int64(1), got.Version)
}

func TestRepositoryCreateCreditsLoyaltyPoints(t *testing.T) {
	repo, userID, restaurantID := setupRepo(t)
	ctx := context.Background()

	o := buildOrder(userID, restaurantID)
	o.LoyaltyPointsEarned = 5
	require.NoError(t, repo.Create(ctx, o, 5))

	var balance int64
	err := testPool.QueryRow(ctx, `SELECT loyalty_points FROM users WHERE id = $1`, userID).Scan(&balance)
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)
}

func TestRepositoryCreateRollsBackOnUnknownUser(t *testing.T) {
	repo, userID, restaurantID := setupRepo(t)
	ctx := context.Background()

	o := buildOrder(userID, restaurantID)
	o.UserID = uuid.Must(uuid.NewV4()) // no such user

	err := repo.Create(ctx, o, 5)
	require.Error(t, err)

	_, err = repo.GetByID(ctx, o.ID)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestRepositoryGetByIDNotFound(t *testing.T) {
	repo, _, _ := setupRepo(t)

	_, err := repo.GetByID(context.Background(), uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestRepositoryList(t *testing.T) {
	repo, userID, restaurantID := setupRepo(t)
	ctx := context.Background()

	first := buildOrder(userID, restaurantID)
	require.NoError(t, repo.Create(ctx, first, 0))

	second := buildOrder(userID, restaurantID)
	second.Status = order.StatusDelivered
	second.CreatedAt = second.CreatedAt.Add(time.Minute)
	require.NoError(t, repo.Create(ctx, second, 0))

	all, err := repo.List(ctx, order.Filter{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest order should come first")

	delivered := order.StatusDelivered
	filtered, err := repo.List(ctx, order.Filter{UserID: &userID, Status: &delivered})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, second.ID, filtered[0].ID)

	other := uuid.Must(uuid.NewV4())
	none, err := repo.List(ctx, order.Filter{UserID: &other})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepositoryUpdateBumpsVersion(t *testing.T) {
	repo, userID, restaurantID := setupRepo(t)
	ctx := context.Background()

	o := buildOrder(userID, restaurantID)
	require.NoError(t, repo.Create(ctx, o, 0))

	require.NoError(t, o.Transition(order.StatusConfirmed, "accepted", time.Now().UTC()))
	require.NoError(t, repo.Update(ctx, o))
	assert.Equal(t, int64(2), o.Version)

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
	assert.Equal(t, int64(2), got.Version)
	require.Len(t, got.StatusHistory, 2)
}

func TestRepositoryUpdateVersionConflict(t *testing.T) {
	repo, userID, restaurantID := setupRepo(t)
	ctx := context.Background()

	o := buildOrder(userID, restaurantID)
	require.NoError(t, repo.Create(ctx, o, 0))

	stale, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)

	require.NoError(t, o.Transition(order.StatusConfirmed, "", time.Now().UTC()))
	require.NoError(t, repo.Update(ctx, o))

	require.NoError(t, stale.Transition(order.StatusConfirmed, "", time.Now().UTC()))
	err = repo.Update(ctx, stale)
	assert.ErrorIs(t, err, order.ErrVersionConflict)
}

func TestRepositoryUpdateMissingOrder(t *testing.T) {
	repo, userID, restaurantID := setupRepo(t)

	o := buildOrder(userID, restaurantID)
	err := repo.Update(context.Background(), o)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestRepositoryUpdatePersistsReview(t *testing.T) {
	repo, userID, restaurantID := setupRepo(t)
	ctx := context.Background()

	o := buildOrder(userID, restaurantID)
	o.Status = order.StatusDelivered
	require.NoError(t, repo.Create(ctx, o, 0))

	require.NoError(t, o.AttachReview(4, "good pizza"))
	require.NoError(t, repo.Update(ctx, o))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Review)
	assert.Equal(t, 4, got.Review.Rating)
	assert.Equal(t, "good pizza", got.Review.Comment)
}
