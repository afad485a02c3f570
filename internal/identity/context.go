package identity

import (
	"context"
	"strings"
)

type principalKey struct{}

// Principal is the caller as authenticated by the upstream gateway.
type Principal struct {
	ID    string
	Email string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	p.ID = strings.TrimSpace(p.ID)
	p.Email = strings.TrimSpace(p.Email)
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// RequestFromContext combines the context principal with an unauthenticated email hint.
func RequestFromContext(ctx context.Context, emailHint string) Request {
	p, _ := PrincipalFromContext(ctx)
	return Request{
		PrincipalID:    p.ID,
		PrincipalEmail: p.Email,
		QueryEmail:     emailHint,
	}
}
