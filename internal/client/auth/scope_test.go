package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sadman-Ilham/opencrvs-core/internal/common"
)

func sign(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return tok
}

func TestParseClaims_ScopeArray(t *testing.T) {
	t.Parallel()

	tok := sign(t, jwt.MapClaims{
		"sub":   "user-1",
		"scope": []string{"declare", "validate", "register"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	claims, err := ParseClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.True(t, claims.CanRegister())
	assert.True(t, claims.Has(ScopeValidate))
	assert.False(t, claims.Has(ScopeCertify))
}

func TestParseClaims_ScopeString(t *testing.T) {
	t.Parallel()

	tok := sign(t, jwt.MapClaims{"scope": "declare validate"})
	claims, err := ParseClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, Scopes{"declare", "validate"}, claims.Scope)
	assert.False(t, claims.CanRegister())
}

func TestParseClaims_Malformed(t *testing.T) {
	t.Parallel()

	_, err := ParseClaims("not-a-token")
	require.ErrorIs(t, err, common.ErrInvalidToken)
	assert.False(t, CanRegister("not-a-token"))
	assert.False(t, CanRegister(""))
}

func TestCanRegister_IgnoresSignature(t *testing.T) {
	t.Parallel()

	tok := sign(t, jwt.MapClaims{"scope": []string{"register"}})
	assert.True(t, CanRegister(tok))

	var nilClaims *Claims
	assert.False(t, nilClaims.CanRegister())
}
