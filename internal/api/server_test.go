// Copyright 2025 Takhin Data, Inc.

package api

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joestubbs/tagent/internal/aclstore"
	"github.com/joestubbs/tagent/internal/auth"
	"github.com/joestubbs/tagent/internal/authz"
	"github.com/joestubbs/tagent/internal/envelope"
	"github.com/joestubbs/tagent/internal/files"
	"github.com/joestubbs/tagent/internal/logging"
)

type harness struct {
	srv  *Server
	key  *rsa.PrivateKey
	root string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	verifier := auth.New(&key.PublicKey)

	store, err := aclstore.Open(filepath.Join(t.TempDir(), "acls.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	engine := authz.New(store)

	root := t.TempDir()
	gate := files.New(root, engine)

	srv := New(verifier, engine, store, gate, nil, logging.New(logging.Config{}))

	return &harness{srv: srv, key: key, root: root}
}

func (h *harness) token(t *testing.T, sub string) string {
	t.Helper()
	c := jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	signed, err := tok.SignedString(h.key)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func (h *harness) do(t *testing.T, method, path, sub string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if sub != "" {
		req.Header.Set(auth.HeaderName, h.token(t, sub))
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope.Envelope {
	t.Helper()
	var env envelope.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body=%s)", err, rec.Body.String())
	}
	return env
}

func TestStatusReady_RequiresToken(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/status/ready", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without token, got %d", rec.Code)
	}
}

func TestStatusReady_Success(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/status/ready", "agent1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Result != "None" {
		t.Fatalf("expected result=None, got %v", env.Result)
	}
}

func TestACLLifecycle(t *testing.T) {
	h := newHarness(t)

	body, _ := json.Marshal(aclRequest{Subject: "agent1", User: "*", Action: "Read", Path: "/data/*", Decision: "Allow"})
	rec := h.do(t, http.MethodPost, "/acls/", "agent1", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	id := env.Result.(string)

	rec = h.do(t, http.MethodGet, "/acls/"+id, "agent1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = h.do(t, http.MethodGet, "/acls/isauthz/agent1/bob/Read/data/report.csv", "agent1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	env = decodeEnvelope(t, rec)
	ans := env.Result.(map[string]any)
	if allowed, _ := ans["Allowed"].(bool); !allowed {
		t.Fatalf("expected authorized answer, got %+v", ans)
	}

	rec = h.do(t, http.MethodDelete, "/acls/"+id, "agent1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateACL_RejectsUnknownAction(t *testing.T) {
	h := newHarness(t)
	body, _ := json.Marshal(aclRequest{Subject: "agent1", Path: "/x", Action: "fly", Decision: "Allow"})
	rec := h.do(t, http.MethodPost, "/acls/", "agent1", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestFileList_DeniedWithoutACL(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/files/list/", "agent1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unauthorized list, got %d", rec.Code)
	}
}

func TestFileList_AllowedAndDownload(t *testing.T) {
	h := newHarness(t)
	if err := os.WriteFile(filepath.Join(h.root, "report.csv"), []byte("a,b,c"), 0o644); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(aclRequest{Subject: "agent1", User: "self", Action: "Read", Path: "/*", Decision: "Allow"})
	h.do(t, http.MethodPost, "/acls/", "agent1", body)

	rec := h.do(t, http.MethodGet, "/files/list/", "agent1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = h.do(t, http.MethodGet, "/files/contents/report.csv", "agent1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "a,b,c" {
		t.Fatalf("unexpected file contents: %q", rec.Body.String())
	}
}

func TestFileUpload_AllowedByWriteACL(t *testing.T) {
	h := newHarness(t)
	body, _ := json.Marshal(aclRequest{Subject: "agent1", User: "self", Action: "Write", Path: "/*", Decision: "Allow"})
	h.do(t, http.MethodPost, "/acls/", "agent1", body)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "upload.txt")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(part, "payload")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/files/contents/", &buf)
	req.Header.Set(auth.HeaderName, h.token(t, "agent1"))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got, err := os.ReadFile(filepath.Join(h.root, "upload.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Fatalf("unexpected file contents: %q", got)
	}
}

func TestUnknownRoute_Returns400NotImplemented(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/nonexistent", "agent1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
