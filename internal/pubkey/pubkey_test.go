// Copyright 2025 Takhin Data, Inc.

package pubkey

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func genPEM(t *testing.T) (string, *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), &key.PublicKey
}

func TestLiteral_Resolve(t *testing.T) {
	pemStr, want := genPEM(t)
	got, err := Literal{PEM: pemStr}.Resolve(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.N.Cmp(want.N) != 0 {
		t.Fatal("resolved key does not match expected key")
	}
}

func TestFile_Resolve(t *testing.T) {
	pemStr, want := genPEM(t)
	path := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(path, []byte(pemStr), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := File{Path: path}.Resolve(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.N.Cmp(want.N) != 0 {
		t.Fatal("resolved key does not match expected key")
	}
}

func TestRemote_Resolve(t *testing.T) {
	pemStr, want := genPEM(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pemStr))
	}))
	defer srv.Close()

	got, err := Remote{URL: srv.URL}.Resolve(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.N.Cmp(want.N) != 0 {
		t.Fatal("resolved key does not match expected key")
	}
}

func TestRemote_Resolve_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := (Remote{URL: srv.URL}).Resolve(context.Background()); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestParsePEM_Invalid(t *testing.T) {
	if _, err := parsePEM([]byte("not a pem")); err == nil {
		t.Fatal("expected error for non-PEM input")
	}
}
