package security

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
)

// JWTVerifierConfig selects how incoming tokens are checked. A public key
// switches to RS256; otherwise the shared HMAC secret is used.
type JWTVerifierConfig struct {
	HMACSecret   string
	PublicKeyPEM string
	Issuer       string
	Audience     string
	Leeway       time.Duration
}

// JWTVerifier validates tokens minted by the identity provider. The ledger
// never issues tokens itself.
type JWTVerifier struct {
	methods  []string
	key      any
	issuer   string
	audience string
	leeway   time.Duration
}

type ledgerClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func NewJWTVerifier(cfg JWTVerifierConfig) (*JWTVerifier, error) {
	v := &JWTVerifier{
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		leeway:   cfg.Leeway,
	}
	if v.leeway <= 0 {
		v.leeway = 30 * time.Second
	}
	switch {
	case strings.TrimSpace(cfg.PublicKeyPEM) != "":
		pub, err := parseRSAPublic(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		v.key = pub
		v.methods = []string{jwt.SigningMethodRS256.Alg()}
	case cfg.HMACSecret != "":
		v.key = []byte(cfg.HMACSecret)
		v.methods = []string{jwt.SigningMethodHS256.Alg()}
	default:
		return nil, errors.New("jwt verifier requires a public key or hmac secret")
	}
	return v, nil
}

func (v *JWTVerifier) Verify(_ context.Context, raw string) (ports.AuthClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	parsed, err := jwt.ParseWithClaims(raw, &ledgerClaims{}, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return ports.AuthClaims{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*ledgerClaims)
	if !ok || !parsed.Valid {
		return ports.AuthClaims{}, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthorized)
	}
	email := strings.TrimSpace(claims.Email)
	if email == "" {
		return ports.AuthClaims{}, fmt.Errorf("%w: token has no email", domain.ErrUnauthorized)
	}

	out := ports.AuthClaims{
		Subject: claims.Subject,
		Email:   email,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return out, nil
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		if cert, certErr := x509.ParseCertificate(block.Bytes); certErr == nil {
			keyAny = cert.PublicKey
		} else {
			return nil, err
		}
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
