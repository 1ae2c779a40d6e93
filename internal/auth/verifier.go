// Copyright 2025 Takhin Data, Inc.

// Package auth implements the Token Verifier (spec §4.A): it extracts
// and verifies the bearer token carried in the x-tapis-token header,
// returning the caller's subject claim.
package auth

import (
	"crypto/rsa"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joestubbs/tagent/internal/apperr"
)

// HeaderName is the header every protected endpoint requires.
const HeaderName = "x-tapis-token"

// claims is the minimal claim set this agent requires: a subject, and
// whatever standard claims (notably exp) the library enforces for us.
type claims struct {
	jwt.RegisteredClaims
}

// Verifier verifies RS256-signed bearer tokens against a single
// preloaded public key. There is no per-request key fetch; key refresh
// is handled outside the core (spec §1, §4.A).
type Verifier struct {
	publicKey *rsa.PublicKey
}

// New builds a Verifier that checks tokens against publicKey.
func New(publicKey *rsa.PublicKey) *Verifier {
	return &Verifier{publicKey: publicKey}
}

// Subject extracts and verifies the bearer token from r, returning the
// caller's subject on success. All four failure modes of spec §4.A
// collapse into a single AuthInvalid/AuthMissing apperr.Error.
func (v *Verifier) Subject(r *http.Request) (string, error) {
	token := r.Header.Get(HeaderName)
	if token == "" {
		return "", apperr.New(apperr.KindAuthMissing, "missing "+HeaderName+" header")
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		return v.publicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return "", apperr.Wrap(apperr.KindAuthInvalid, "invalid signature or claims", err)
	}
	if !parsed.Valid {
		return "", apperr.New(apperr.KindAuthInvalid, "token failed validation")
	}

	c, ok := parsed.Claims.(*claims)
	if !ok {
		return "", apperr.New(apperr.KindAuthInvalid, "unparsable claims")
	}

	sub := c.Subject
	if sub == "" {
		return "", apperr.New(apperr.KindAuthInvalid, "token carries no subject claim")
	}

	return sub, nil
}
