package user_test

import (
	"context"
	"strings"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/feastline/feastline/internal/user"
)

type mockRepository struct {
	byEmail map[string]*user.User
	created []*user.User
}

func (m *mockRepository) Create(_ context.Context, u *user.User) error {
	if _, exists := m.byEmail[strings.ToLower(u.Email)]; exists {
		return user.ErrEmailExists
	}
	m.created = append(m.created, u)
	if m.byEmail == nil {
		m.byEmail = make(map[string]*user.User)
	}
	m.byEmail[strings.ToLower(u.Email)] = u
	return nil
}

func (m *mockRepository) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *mockRepository) GetByEmail(_ context.Context, email string) (*user.User, error) {
	u, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func TestRegister(t *testing.T) {
	repo := &mockRepository{}
	svc := user.NewService(repo)

	u, err := svc.Register(context.Background(), "Alice", "alice@example.com", "s3cretpass")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, user.RoleCustomer, u.Role)
	assert.NotEqual(t, "s3cretpass", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cretpass")))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := &mockRepository{}
	svc := user.NewService(repo)

	_, err := svc.Register(context.Background(), "Alice", "alice@example.com", "s3cretpass")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "Alice Again", "alice@example.com", "otherpass1")
	assert.ErrorIs(t, err, user.ErrEmailExists)
}

func TestRegister_EmptyPassword(t *testing.T) {
	svc := user.NewService(&mockRepository{})

	_, err := svc.Register(context.Background(), "Bob", "bob@example.com", "")
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	repo := &mockRepository{}
	svc := user.NewService(repo)

	registered, err := svc.Register(context.Background(), "Alice", "alice@example.com", "s3cretpass")
	require.NoError(t, err)

	t.Run("valid_credentials", func(t *testing.T) {
		u, err := svc.Authenticate(context.Background(), "alice@example.com", "s3cretpass")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, u.ID)
	})

	t.Run("wrong_password", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "alice@example.com", "wrongpass")
		assert.ErrorIs(t, err, user.ErrInvalidCredentials)
	})

	t.Run("unknown_email", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "nobody@example.com", "s3cretpass")
		assert.ErrorIs(t, err, user.ErrInvalidCredentials)
	})
}
