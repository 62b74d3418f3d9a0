package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feastline/feastline/internal/auth"
)

func TestTokenRoundTrip(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)
	userID := uuid.Must(uuid.NewV4())

	token, err := m.IssueToken(userID, "customer")
	require.NoError(t, err)

	identity, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, "customer", identity.Role)
}

func TestVerifyToken_Rejections(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)

	t.Run("garbage", func(t *testing.T) {
		_, err := m.VerifyToken("not-a-token")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("wrong_secret", func(t *testing.T) {
		other := auth.NewManager("other-secret", time.Hour)
		token, err := other.IssueToken(uuid.Must(uuid.NewV4()), "customer")
		require.NoError(t, err)

		_, err = m.VerifyToken(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		short := auth.NewManager("test-secret", -time.Minute)
		token, err := short.IssueToken(uuid.Must(uuid.NewV4()), "customer")
		require.NoError(t, err)

		_, err = m.VerifyToken(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestMiddleware(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)
	userID := uuid.Must(uuid.NewV4())

	var gotIdentity *auth.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := auth.FromContext(r.Context()); ok {
			gotIdentity = &id
		}
		w.WriteHeader(http.StatusOK)
	})
	protected := m.Middleware(next)

	t.Run("missing_header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed_header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid_token", func(t *testing.T) {
		token, err := m.IssueToken(userID, "admin")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotIdentity)
		assert.Equal(t, userID, gotIdentity.UserID)
		assert.Equal(t, "admin", gotIdentity.Role)
	})
}
