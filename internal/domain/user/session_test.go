package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	byID map[string]*User
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *mockRepo) GetByEmail(context.Context, string) (*User, error)      { return nil, ErrNotFound }
func (m *mockRepo) GetByExternalID(context.Context, string) (*User, error) { return nil, ErrNotFound }
func (m *mockRepo) Create(context.Context, *User) error                    { return nil }
func (m *mockRepo) ListIDsByRole(context.Context, Role) ([]string, error)  { return nil, nil }

func TestResolve(t *testing.T) {
	repo := &mockRepo{byID: map[string]*User{
		"u1": {ID: "u1", Email: "ana@example.com", Role: RoleCustomer},
	}}

	t.Run("known user", func(t *testing.T) {
		s, err := Resolve(context.Background(), repo, "u1")
		require.NoError(t, err)
		assert.Equal(t, Session{UserID: "u1", Email: "ana@example.com"}, s)
		assert.False(t, s.Guest())
	})

	t.Run("guest", func(t *testing.T) {
		s, err := Resolve(context.Background(), repo, "")
		require.NoError(t, err)
		assert.True(t, s.Guest())
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := Resolve(context.Background(), repo, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestContextProvider(t *testing.T) {
	var p ContextProvider

	s, err := p.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Guest())

	ctx := WithSession(context.Background(), Session{UserID: "u1", Email: "a@b.c"})
	s, err = p.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleDelivery.Valid())
	assert.True(t, RoleCustomer.Valid())
	assert.False(t, Role("root").Valid())
}
