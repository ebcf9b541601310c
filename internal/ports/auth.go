package ports

import (
	"context"
	"time"
)

// AuthClaims is what the external identity provider vouches for.
type AuthClaims struct {
	Subject   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (AuthClaims, error)
}
