package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model_gateway/internal/models"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	user := &models.User{ID: uuid.New(), Email: "admin@example.com", IsAdmin: true}

	token, err := m.Issue(user)
	require.NoError(t, err)

	got, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.Email, got.Email)
	assert.True(t, got.IsAdmin)
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-a", time.Hour).Issue(&models.User{ID: uuid.New()})
	require.NoError(t, err)

	_, err = NewJWTManager("secret-b", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpired(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)
	token, err := m.Issue(&models.User{ID: uuid.New()})
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyGarbage(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	_, err := m.Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashTokenDeterministic(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "mgt_"))

	assert.Equal(t, HashToken(token), HashToken(token))
	assert.NotEqual(t, HashToken(token), HashToken(token+"x"))
}

func TestRoleCovers(t *testing.T) {
	assert.True(t, RoleAdmin.Covers(RoleViewer))
	assert.True(t, RoleAdmin.Covers(RoleProber))
	assert.True(t, RoleProber.Covers(RoleViewer))
	assert.False(t, RoleProber.Covers(RoleAdmin))
	assert.False(t, RoleViewer.Covers(RoleAdmin))
	assert.True(t, RoleViewer.Covers(RoleViewer))
	assert.False(t, Role("bogus").IsValid())
}
