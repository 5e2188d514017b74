package integration

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"maps"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testKeyID         = "portal-key-1"
	testHMACSecret    = "integration-shared-secret"
	testHMACSecretEnv = "REPORTAL_IT_HMAC_SECRET"
)

// TestClaims holds the claims placed in generated tokens.
type TestClaims struct {
	SubjectID string
	Email     string
	Roles     []string
	Offices   []string
	Extra     map[string]any
}

// tokenIssuer signs RS256 tokens and serves the matching JWKS. It also signs
// HS256 tokens with the shared secret the harness configures.
type tokenIssuer struct {
	privateKey *rsa.PrivateKey
	jwksServer *httptest.Server
	issuer     string
	audience   string
}

func newTokenIssuer(t *testing.T) *tokenIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}

	jwk := map[string]any{
		"kid": testKeyID,
		"kty": "RSA",
		"alg": "RS256",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]any{jwk},
		})
	}))
	t.Cleanup(srv.Close)

	return &tokenIssuer{
		privateKey: key,
		jwksServer: srv,
		issuer:     "https://auth.portal.test",
		audience:   "reportal-test",
	}
}

func (ti *tokenIssuer) mapClaims(claims TestClaims, issuedAt, expires time.Time) jwt.MapClaims {
	mc := jwt.MapClaims{
		"iss":   ti.issuer,
		"aud":   ti.audience,
		"iat":   jwt.NewNumericDate(issuedAt),
		"exp":   jwt.NewNumericDate(expires),
		"sub":   claims.SubjectID,
		"email": claims.Email,
	}
	if len(claims.Roles) > 0 {
		roles := make([]any, len(claims.Roles))
		for i, r := range claims.Roles {
			roles[i] = r
		}
		mc["roles"] = roles
	}
	if len(claims.Offices) > 0 {
		offices := make([]any, len(claims.Offices))
		for i, o := range claims.Offices {
			offices[i] = o
		}
		mc["offices"] = offices
	}
	maps.Copy(mc, claims.Extra)
	return mc
}

func (ti *tokenIssuer) signRS256(mc jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, mc)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(ti.privateKey)
	if err != nil {
		panic("sign JWT: " + err.Error())
	}
	return signed
}

// GenerateToken creates a valid RS256 token.
func (ti *tokenIssuer) GenerateToken(claims TestClaims) string {
	now := time.Now()
	return ti.signRS256(ti.mapClaims(claims, now, now.Add(time.Hour)))
}

// GenerateExpiredToken creates an RS256 token that expired an hour ago.
func (ti *tokenIssuer) GenerateExpiredToken(claims TestClaims) string {
	now := time.Now()
	return ti.signRS256(ti.mapClaims(claims, now.Add(-2*time.Hour), now.Add(-time.Hour)))
}

// GenerateHMACToken creates a valid HS256 token signed with the shared secret.
func (ti *tokenIssuer) GenerateHMACToken(claims TestClaims) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ti.mapClaims(claims, now, now.Add(time.Hour)))
	signed, err := token.SignedString([]byte(testHMACSecret))
	if err != nil {
		panic("sign JWT: " + err.Error())
	}
	return signed
}

func (ti *tokenIssuer) JWKSURL() string { return ti.jwksServer.URL }
