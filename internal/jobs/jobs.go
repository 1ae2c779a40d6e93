// Copyright 2025 Takhin Data, Inc.

// Package jobs implements the minimal background-subprocess launcher
// described as an external collaborator in spec §1 ("Background job
// execution ... a separate component that does not participate in
// authorization"). It does not consult the Decision Engine and is not
// exposed on the HTTP surface; it exists so the job_info table isn't
// orphaned schema.
package jobs

import (
	"context"
	"database/sql"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/joestubbs/tagent/internal/apperr"
)

// Status is the lifecycle state of a launched job.
type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Info describes one launched job's current state.
type Info struct {
	JobID     string
	Status    Status
	CreatedAt string
}

// Launcher runs subprocesses and tracks their status in the job_info
// table of the same database the ACL store uses.
type Launcher struct {
	db *sql.DB
}

// New builds a Launcher persisting job status to db.
func New(db *sql.DB) *Launcher {
	return &Launcher{db: db}
}

// Run launches program with args and blocks until it exits, recording
// the job's lifecycle in job_info. It returns the job's generated ID,
// the command's stdout (on success) or its stderr (on a non-zero exit,
// which is not reported as an error), and any launch-level error.
func (l *Launcher) Run(ctx context.Context, program string, args []string, dir string) (jobID, output string, err error) {
	jobID = uuid.NewString()
	createdAt := time.Now().UTC().Format(time.RFC3339)

	if err := l.insert(ctx, jobID, StatusRunning, createdAt); err != nil {
		return "", "", err
	}

	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = dir

	out, runErr := cmd.Output()
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			_ = l.updateStatus(ctx, jobID, StatusFailed)
			return jobID, string(exitErr.Stderr), nil
		}
		_ = l.updateStatus(ctx, jobID, StatusFailed)
		return jobID, "", apperr.Wrap(apperr.KindIOError, "launch job", runErr)
	}

	if err := l.updateStatus(ctx, jobID, StatusFinished); err != nil {
		return jobID, "", err
	}

	return jobID, string(out), nil
}

// Load fetches the current status of a previously-launched job.
func (l *Launcher) Load(ctx context.Context, jobID string) (Info, error) {
	row := l.db.QueryRowContext(ctx, `SELECT job_id, status, created_at FROM job_info WHERE job_id = ?`, jobID)

	var info Info
	if err := row.Scan(&info.JobID, &info.Status, &info.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Info{}, apperr.New(apperr.KindNotFound, "no such job: "+jobID)
		}
		return Info{}, apperr.Wrap(apperr.KindStorageError, "load job", err)
	}
	return info, nil
}

func (l *Launcher) insert(ctx context.Context, jobID string, status Status, createdAt string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO job_info (job_id, status, created_at) VALUES (?, ?, ?)`,
		jobID, status, createdAt)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageError, "insert job record", err)
	}
	return nil
}

func (l *Launcher) updateStatus(ctx context.Context, jobID string, status Status) error {
	_, err := l.db.ExecContext(ctx, `UPDATE job_info SET status = ? WHERE job_id = ?`, status, jobID)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageError, "update job status", err)
	}
	return nil
}
