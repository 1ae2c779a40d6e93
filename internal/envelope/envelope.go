// Copyright 2025 Takhin Data, Inc.

// Package envelope writes the uniform {status,message,result,version}
// response wrapper (spec §4.G) and classifies errors into the HTTP
// status codes of spec §7. Every response — success or error — carries
// the running agent's semantic version.
package envelope

import (
	"encoding/json"
	"net/http"

	"github.com/joestubbs/tagent/internal/apperr"
)

// Version is the running agent's semantic version. It is set once at
// process startup from a build-time ldflags var (cmd/tagent/main.go),
// mirroring the teacher's version/commit/buildTime pattern.
var Version = "dev"

// Envelope is the wire shape every response carries.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result"`
	Version string `json:"version"`
}

// Success writes a 200 success envelope with the given result payload.
func Success(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, Envelope{
		Status:  "success",
		Message: "OK",
		Result:  result,
		Version: Version,
	})
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusCreated, Envelope{
		Status:  "success",
		Message: "created",
		Result:  result,
		Version: Version,
	})
}

// Error writes an error envelope. Every error is mapped to HTTP 400 per
// spec §7 ("The envelope maps all of them to HTTP 400"), except
// NotImplemented which the HTTP surface maps to 400 as well — the
// status code is uniform; the classification lives in the message.
func Error(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeJSON(w, http.StatusBadRequest, Envelope{
		Status:  "error",
		Message: errorMessage(kind, err),
		Result:  nil,
		Version: Version,
	})
}

func errorMessage(kind apperr.Kind, err error) string {
	return string(kind) + ": " + err.Error()
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
