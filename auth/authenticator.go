package auth

import (
	"context"
	"crypto/rsa"
)

// Authenticator verifies tokens and authorizes channels against the result.
// For the plain authorize action, the client presents a token directly. For
// kuksa-authorize, command first exchanges a client id/secret for a token
// and public key via an ExchangeClient, installs the key with
// UpdatePublicKey, and then calls Validate exactly as for a direct token.
type Authenticator struct {
	verifier *Verifier
}

// NewAuthenticator builds an Authenticator around verifier.
func NewAuthenticator(verifier *Verifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// Validate verifies rawToken and, on success, authorizes ch against its
// claims. The returned error, if any, is already a *errors.CodedError.
func (a *Authenticator) Validate(_ context.Context, ch *Channel, rawToken string) error {
	claims, err := a.verifier.Verify(rawToken)
	if err != nil {
		return err
	}
	ch.Install(claims)
	return nil
}

// UpdatePublicKey rotates the RS256 key used to verify future tokens.
func (a *Authenticator) UpdatePublicKey(pub *rsa.PublicKey) {
	a.verifier.keys.Install(pub)
}
