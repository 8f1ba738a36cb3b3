package auth

import (
	"context"
	"errors"

	"github.com/opsdeck/platform/internal/domain"
)

// ErrInvalidCredential is returned for any credential that fails verification.
// Missing, malformed and cryptographically invalid tokens are deliberately
// indistinguishable to callers.
var ErrInvalidCredential = errors.New("invalid credential")

// Verifier validates a bearer credential and yields the subject identity.
// Implementations may call out to a remote identity provider, so the context
// carries the caller's deadline.
type Verifier interface {
	Verify(ctx context.Context, credential string) (domain.Identity, error)
}

// MultiVerifier tries each verifier in order; the first success wins.
type MultiVerifier struct {
	verifiers []Verifier
}

// NewMultiVerifier chains verifiers. Nil entries are skipped.
func NewMultiVerifier(verifiers ...Verifier) *MultiVerifier {
	vs := make([]Verifier, 0, len(verifiers))
	for _, v := range verifiers {
		if v != nil {
			vs = append(vs, v)
		}
	}
	return &MultiVerifier{verifiers: vs}
}

// Verify returns the first successful identity, or ErrInvalidCredential.
func (m *MultiVerifier) Verify(ctx context.Context, credential string) (domain.Identity, error) {
	for _, v := range m.verifiers {
		if identity, err := v.Verify(ctx, credential); err == nil {
			return identity, nil
		}
		if err := ctx.Err(); err != nil {
			return domain.Identity{}, err
		}
	}
	return domain.Identity{}, ErrInvalidCredential
}
