package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var testCfg = config.JWTConfig{Secret: "secret", Issuer: "storefront-idp"}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	token, err := MintAccessToken(testCfg, now, 30*time.Minute, Identity{UserID: "seller-7", Role: enums.RoleSeller})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testCfg, token)
	require.NoError(t, err)
	require.Equal(t, Identity{UserID: "seller-7", Role: enums.RoleSeller}, claims.Identity())
	require.Equal(t, testCfg.Issuer, claims.Issuer)
	require.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now(), time.Minute, Identity{UserID: "u", Role: enums.RoleCustomer})
	require.NoError(t, err)

	_, err = ParseAccessToken(config.JWTConfig{Secret: "other", Issuer: testCfg.Issuer}, token)
	require.Error(t, err)
}

func TestParseAccessTokenWrongIssuer(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now(), time.Minute, Identity{UserID: "u", Role: enums.RoleCustomer})
	require.NoError(t, err)

	_, err = ParseAccessToken(config.JWTConfig{Secret: testCfg.Secret, Issuer: "someone-else"}, token)
	require.Error(t, err)
}

func TestParseAccessTokenExpired(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now().Add(-time.Hour), time.Minute, Identity{UserID: "u", Role: enums.RoleAdmin})
	require.NoError(t, err)

	_, err = ParseAccessToken(testCfg, token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseAccessTokenRejectsUnknownRole(t *testing.T) {
	claims := AccessTokenClaims{
		UserID: "u",
		Role:   enums.Role("superuser"),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testCfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testCfg.Secret))
	require.NoError(t, err)

	_, err = ParseAccessToken(testCfg, token)
	require.Error(t, err)
}

func TestMintAccessTokenValidation(t *testing.T) {
	now := time.Now()
	_, err := MintAccessToken(config.JWTConfig{Issuer: "x"}, now, time.Minute, Identity{UserID: "u", Role: enums.RoleCustomer})
	require.Error(t, err)
	_, err = MintAccessToken(testCfg, now, 0, Identity{UserID: "u", Role: enums.RoleCustomer})
	require.Error(t, err)
	_, err = MintAccessToken(testCfg, now, time.Minute, Identity{UserID: " ", Role: enums.RoleCustomer})
	require.Error(t, err)
	_, err = MintAccessToken(testCfg, now, time.Minute, Identity{UserID: "u", Role: "root"})
	require.Error(t, err)
}
