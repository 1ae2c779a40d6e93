// Copyright 2025 Takhin Data, Inc.

// Package audit records security-relevant events — ACL authorship,
// auth failures and file-operation denials — by appending them to a
// single log file (no rotation), grounded on the
// teacher's pkg/audit but narrowed to the events this agent actually
// produces.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joestubbs/tagent/internal/logging"
)

// EventType identifies the kind of audit event.
type EventType string

const (
	EventACLCreate  EventType = "acl.create"
	EventACLUpdate  EventType = "acl.update"
	EventACLDelete  EventType = "acl.delete"
	EventAuthFail   EventType = "auth.failure"
	EventFileDenied EventType = "file.denied"
)

// Event is one audit record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventID   string    `json:"event_id"`
	EventType EventType `json:"event_type"`
	Principal string    `json:"principal"`
	Path      string    `json:"path,omitempty"`
	Result    string    `json:"result"`
	Error     string    `json:"error,omitempty"`
}

// Config controls whether, and where, the audit trail is written.
type Config struct {
	Enabled    bool   `koanf:"enabled"`
	OutputPath string `koanf:"output.path"`
}

// Logger appends Events to a file, one JSON object per line.
type Logger struct {
	mu     sync.Mutex
	writer io.Writer
	closer io.Closer
	cfg    Config
	log    *logging.Logger
}

// NewLogger opens (creating if necessary) the audit log named by
// cfg.OutputPath. If cfg.Enabled is false, the returned Logger
// discards every event.
func NewLogger(cfg Config) (*Logger, error) {
	l := &Logger{cfg: cfg, log: logging.Default().WithComponent("audit")}
	if !cfg.Enabled {
		l.writer = io.Discard
		return l, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}

	f, err := os.OpenFile(cfg.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	l.writer = f
	l.closer = f
	return l, nil
}

// Close releases the underlying file handle, if any.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *Logger) record(evt Event) {
	evt.Timestamp = time.Now().UTC()
	evt.EventID = uuid.NewString()

	l.mu.Lock()
	defer l.mu.Unlock()

	enc := json.NewEncoder(l.writer)
	if err := enc.Encode(evt); err != nil {
		l.log.Error("write audit event", "error", err, "event_type", evt.EventType)
	}
}

// ACLCreated records the creation of a new ACL entry.
func (l *Logger) ACLCreated(principal string, id int64) {
	l.record(Event{EventType: EventACLCreate, Principal: principal, Result: "success", Path: fmt.Sprintf("id=%d", id)})
}

// ACLUpdated records the update of an existing ACL entry.
func (l *Logger) ACLUpdated(principal string, id int64) {
	l.record(Event{EventType: EventACLUpdate, Principal: principal, Result: "success", Path: fmt.Sprintf("id=%d", id)})
}

// ACLDeleted records the removal of an ACL entry.
func (l *Logger) ACLDeleted(principal string, id int64) {
	l.record(Event{EventType: EventACLDelete, Principal: principal, Result: "success", Path: fmt.Sprintf("id=%d", id)})
}

// AuthFailure records a rejected bearer token.
func (l *Logger) AuthFailure(reason string) {
	l.record(Event{EventType: EventAuthFail, Result: "failure", Error: reason})
}

// FileDenied records a Decision Engine rejection of a file operation.
func (l *Logger) FileDenied(principal, path string) {
	l.record(Event{EventType: EventFileDenied, Principal: principal, Path: path, Result: "denied"})
}
