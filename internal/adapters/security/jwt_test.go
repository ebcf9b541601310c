package security

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viralforge/donor-ledger/internal/domain"
)

func signHS256(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func validClaims(email string) ledgerClaims {
	now := time.Now()
	return ledgerClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "identity",
			Audience:  jwt.ClaimStrings{"donor-ledger"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestJWTVerifierHS256(t *testing.T) {
	t.Parallel()

	verifier, err := NewJWTVerifier(JWTVerifierConfig{HMACSecret: "s3cret", Issuer: "identity", Audience: "donor-ledger"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	claims, err := verifier.Verify(context.Background(), signHS256(t, "s3cret", validClaims("donor@example.com")))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Email != "donor@example.com" || claims.Subject != "user-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestJWTVerifierRejects(t *testing.T) {
	t.Parallel()

	verifier, err := NewJWTVerifier(JWTVerifierConfig{HMACSecret: "s3cret", Issuer: "identity"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	expired := validClaims("donor@example.com")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	wrongIssuer := validClaims("donor@example.com")
	wrongIssuer.Issuer = "elsewhere"

	cases := map[string]string{
		"wrong secret": signHS256(t, "other", validClaims("donor@example.com")),
		"expired":      signHS256(t, "s3cret", expired),
		"wrong issuer": signHS256(t, "s3cret", wrongIssuer),
		"no email":     signHS256(t, "s3cret", validClaims("")),
		"garbage":      "not.a.token",
	}
	for name, raw := range cases {
		if _, err := verifier.Verify(context.Background(), raw); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
	}
}

func TestJWTVerifierRS256(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	verifier, err := NewJWTVerifier(JWTVerifierConfig{PublicKeyPEM: pubPEM, HMACSecret: "ignored"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims("owner@example.com")).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Verify(context.Background(), raw); err != nil {
		t.Fatalf("verify rs256: %v", err)
	}
	if _, err := verifier.Verify(context.Background(), signHS256(t, "ignored", validClaims("owner@example.com"))); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("hs256 token must be rejected by an rs256 verifier, got %v", err)
	}
}
