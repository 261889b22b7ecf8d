// Package oidc verifies ID tokens from the configured OpenID Connect issuer.
package oidc

import (
	"context"
	"fmt"

	gooidc "github.com/coreos/go-oidc/v3/oidc"

	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
)

type claims struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// Verifier checks ID token signatures against the issuer's published keys.
type Verifier struct {
	verifier *gooidc.IDTokenVerifier
}

// NewVerifier discovers the issuer's configuration. It makes a network call.
func NewVerifier(ctx context.Context, issuerURL, clientID string) (*Verifier, error) {
	provider, err := gooidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	return &Verifier{verifier: provider.Verifier(&gooidc.Config{ClientID: clientID})}, nil
}

// NewVerifierWithKeySet skips discovery; tests use it with a static key set.
func NewVerifierWithKeySet(issuerURL, clientID string, keySet gooidc.KeySet) *Verifier {
	return &Verifier{verifier: gooidc.NewVerifier(issuerURL, keySet, &gooidc.Config{ClientID: clientID})}
}

func (v *Verifier) Verify(ctx context.Context, rawToken string) (*id.ExternalIdentity, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid id token")
	}
	var c claims
	if err := token.Claims(&c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid id token claims")
	}
	return &id.ExternalIdentity{
		Subject:   token.Subject,
		Issuer:    token.Issuer,
		Email:     c.Email,
		FirstName: c.GivenName,
		LastName:  c.FamilyName,
	}, nil
}
