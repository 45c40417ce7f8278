package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
)

func generateKeyPEM(t *testing.T) ([]byte, []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return privPEM, pubPEM
}

func newTestService(t *testing.T, access time.Duration) *TokenService {
	t.Helper()
	priv, pub := generateKeyPEM(t)
	svc, err := NewTokenService(priv, pub, "test-key", access, time.Hour, "crm-test")
	require.NoError(t, err)
	return svc
}

func TestGenerateAndValidate(t *testing.T) {
	svc := newTestService(t, time.Minute)
	sub := "acme"
	user := &domain.User{
		ID:        uuid.New(),
		Email:     "owner@acme.test",
		Role:      domain.RoleCompanyOwner,
		Subdomain: &sub,
	}
	sid := uuid.New()

	pair, err := svc.GenerateTokenPair(user, "company", sid)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, domain.RoleCompanyOwner, claims.Role)
	assert.Equal(t, "acme", claims.Subdomain)
	assert.Equal(t, "company", claims.Portal)
	assert.False(t, claims.Internal)
	require.NotNil(t, claims.SessionID)
	assert.Equal(t, sid, *claims.SessionID)

	refresh, err := svc.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, sid, *refresh.SessionID)
	assert.Empty(t, refresh.Email)
	assert.Equal(t, "company", refresh.Portal)
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	svc := newTestService(t, time.Minute)
	pair, err := svc.GenerateTokenPair(&domain.User{ID: uuid.New()}, "staff", uuid.New())
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	_, err = svc.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := newTestService(t, -time.Minute)
	pair, err := svc.GenerateTokenPair(&domain.User{ID: uuid.New()}, "staff", uuid.New())
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, gojwt.ErrTokenExpired)
}

func TestForeignKeyRejected(t *testing.T) {
	a := newTestService(t, time.Minute)
	b := newTestService(t, time.Minute)
	pair, err := a.GenerateTokenPair(&domain.User{ID: uuid.New()}, "staff", uuid.New())
	require.NoError(t, err)

	_, err = b.ValidateToken(pair.AccessToken)
	assert.Error(t, err)
}

func TestKeyIDHeader(t *testing.T) {
	svc := newTestService(t, time.Minute)
	pair, err := svc.GenerateTokenPair(&domain.User{ID: uuid.New()}, "staff", uuid.New())
	require.NoError(t, err)

	token, _, err := gojwt.NewParser().ParseUnverified(pair.AccessToken, &domain.Claims{})
	require.NoError(t, err)
	assert.Equal(t, "test-key", token.Header["kid"])
	assert.Equal(t, "test-key", svc.KeyID())
}
