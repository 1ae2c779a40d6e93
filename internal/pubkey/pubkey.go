// Copyright 2025 Takhin Data, Inc.

// Package pubkey resolves the RSA public key the Token Verifier checks
// bearer tokens against. This is one of the external collaborators the
// core treats as out of scope (spec §1): the core only ever sees the
// resolved *rsa.PublicKey.
package pubkey

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Source resolves the current verification key.
type Source interface {
	Resolve(ctx context.Context) (*rsa.PublicKey, error)
}

// Literal wraps a PEM-encoded public key supplied directly in
// configuration (settings.yaml's public_key).
type Literal struct {
	PEM string
}

// Resolve parses the wrapped PEM block.
func (l Literal) Resolve(_ context.Context) (*rsa.PublicKey, error) {
	return parsePEM([]byte(l.PEM))
}

// File reads a PEM-encoded public key from disk at Path.
type File struct {
	Path string
}

// Resolve reads and parses the file named by f.Path.
func (f File) Resolve(_ context.Context) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read public key file: %w", err)
	}
	return parsePEM(data)
}

// Remote fetches a PEM-encoded public key over HTTP from URL, per the
// public_key_url configuration option.
type Remote struct {
	URL    string
	Client *http.Client
}

// Resolve performs a single GET against r.URL and parses the body as a
// PEM-encoded public key.
func (r Remote) Resolve(ctx context.Context) (*rsa.PublicKey, error) {
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build public key request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch public key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch public key: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read public key response: %w", err)
	}

	return parsePEM(body)
}

func parsePEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found in public key material")
	}

	if pub, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if rsaKey, ok := pub.(*rsa.PublicKey); ok {
			return rsaKey, nil
		}
		return nil, errors.New("public key is not an RSA key")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err == nil {
		if rsaKey, ok := cert.PublicKey.(*rsa.PublicKey); ok {
			return rsaKey, nil
		}
		return nil, errors.New("certificate public key is not an RSA key")
	}

	return nil, errors.New("unrecognized public key PEM encoding")
}
