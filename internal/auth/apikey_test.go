package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/opsdeck/platform/internal/domain"
)

func hashKey(t *testing.T, key string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestParseAPIKeys_Empty(t *testing.T) {
	v, err := ParseAPIKeys("")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestParseAPIKeys_Malformed(t *testing.T) {
	_, err := ParseAPIKeys("missing-fields")
	require.Error(t, err)
}

func TestAPIKeyVerifier_VerifiesKnownKey(t *testing.T) {
	hash := hashKey(t, "sk-live-0001")
	v, err := ParseAPIKeys("reporting:admin:" + hash)
	require.NoError(t, err)

	identity, err := v.Verify(context.Background(), "sk-live-0001")
	require.NoError(t, err)
	assert.Equal(t, "service:reporting", identity.Subject)
	assert.Equal(t, domain.RoleAdmin, identity.Role)
}

func TestAPIKeyVerifier_RejectsUnknownKey(t *testing.T) {
	v, err := ParseAPIKeys("reporting:admin:" + hashKey(t, "sk-live-0001"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "sk-live-9999")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestMultiVerifier_FirstSuccessWins(t *testing.T) {
	jwtV := NewJWTVerifier(testSecret, time.Hour)
	apiV, err := ParseAPIKeys("reporting:viewer:" + hashKey(t, "sk-live-0001"))
	require.NoError(t, err)

	multi := NewMultiVerifier(jwtV, apiV)

	token, err := jwtV.GenerateToken("user-1", "", domain.RoleEditor)
	require.NoError(t, err)

	identity, err := multi.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.Subject)

	identity, err = multi.Verify(context.Background(), "sk-live-0001")
	require.NoError(t, err)
	assert.Equal(t, "service:reporting", identity.Subject)
}

func TestMultiVerifier_AllFail(t *testing.T) {
	multi := NewMultiVerifier(NewJWTVerifier(testSecret, time.Hour))

	_, err := multi.Verify(context.Background(), "nonsense")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestMultiVerifier_SkipsNil(t *testing.T) {
	jwtV := NewJWTVerifier(testSecret, time.Hour)
	multi := NewMultiVerifier(nil, jwtV, nil)

	token, err := jwtV.GenerateToken("user-1", "", "")
	require.NoError(t, err)

	_, err = multi.Verify(context.Background(), token)
	assert.NoError(t, err)
}

func TestHasRole(t *testing.T) {
	admin := domain.Identity{Subject: "a", Role: domain.RoleAdmin}
	editor := domain.Identity{Subject: "e", Role: domain.RoleEditor}

	assert.True(t, HasRole(admin, ""))
	assert.True(t, HasRole(admin, domain.RoleAdmin))
	assert.False(t, HasRole(editor, domain.RoleAdmin))
	assert.True(t, HasRole(editor, domain.RoleEditor))
	assert.False(t, HasRole(editor, domain.RoleViewer))
}
