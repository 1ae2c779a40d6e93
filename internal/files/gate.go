// Copyright 2025 Takhin Data, Inc.

// Package files implements the File Operation Gate (spec §4.F): list,
// download, and upload, each anchored under a configured root
// directory and gated by the Decision Engine.
package files

import (
	"context"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/joestubbs/tagent/internal/apperr"
	"github.com/joestubbs/tagent/internal/authz"
)

// SelfUser is the default end-user when the caller doesn't supply one,
// per spec §4.F ("user = self unless supplied").
const SelfUser = "self"

// Decider is the slice of the Decision Engine the gate needs.
type Decider interface {
	Decide(ctx context.Context, q authz.Query) (authz.Answer, error)
}

// Gate mediates filesystem access under root, consulting a Decider
// before every operation.
type Gate struct {
	root    string
	decider Decider
}

// New builds a Gate rooted at root. root must already exist.
func New(root string, decider Decider) *Gate {
	return &Gate{root: filepath.Clean(root), decider: decider}
}

// resolve turns a caller-supplied relative path into an absolute
// filesystem path under root, and the normalized "/"-prefixed logical
// path used for authorization and ACL matching. It rejects any attempt
// to escape root via ".." segments.
func (g *Gate) resolve(relPath string) (absPath, logicalPath string, err error) {
	abs := filepath.Join(g.root, relPath)

	if abs != g.root && !strings.HasPrefix(abs, g.root+string(os.PathSeparator)) {
		return "", "", apperr.New(apperr.KindInputInvalid, "path escapes root directory")
	}

	rel, err := filepath.Rel(g.root, abs)
	if err != nil {
		return "", "", apperr.Wrap(apperr.KindInputInvalid, "resolve path under root directory", err)
	}
	return abs, filepath.Clean("/" + rel), nil
}

func (g *Gate) authorize(ctx context.Context, subject, user string, action authz.Action, logicalPath string) error {
	if user == "" {
		user = SelfUser
	}

	ans, err := g.decider.Decide(ctx, authz.Query{
		Subject: subject,
		User:    user,
		Action:  action,
		Path:    logicalPath,
	})
	if err != nil {
		return err
	}
	if !ans.Allowed {
		return apperr.New(apperr.KindAuthInvalid, "not authorized for "+action.String()+" on "+logicalPath)
	}
	return nil
}

// List returns the names of entries under relPath. If relPath names a
// file rather than a directory, it returns that file's own name.
func (g *Gate) List(ctx context.Context, subject, user, relPath string) ([]string, error) {
	abs, logical, err := g.resolve(relPath)
	if err != nil {
		return nil, err
	}
	if err := g.authorize(ctx, subject, user, authz.ActionRead, logical); err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return nil, apperr.New(apperr.KindNotFound, "path does not exist: "+relPath)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, "stat path", err)
	}

	if !info.IsDir() {
		return []string{info.Name()}, nil
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, "read directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Download opens relPath for streaming. The caller is responsible for
// closing the returned file. Directories are rejected.
func (g *Gate) Download(ctx context.Context, subject, user, relPath string) (*os.File, os.FileInfo, error) {
	abs, logical, err := g.resolve(relPath)
	if err != nil {
		return nil, nil, err
	}
	if err := g.authorize(ctx, subject, user, authz.ActionRead, logical); err != nil {
		return nil, nil, err
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return nil, nil, apperr.New(apperr.KindNotFound, "path does not exist: "+relPath)
	}
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindIOError, "stat path", err)
	}
	if info.IsDir() {
		return nil, nil, apperr.New(apperr.KindInputInvalid, "cannot download a directory")
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindIOError, "open file", err)
	}
	return f, info, nil
}

// UploadedFile describes one file written by Upload.
type UploadedFile struct {
	Name string
	Size int64
}

// Upload parses a multipart body and writes each part into the
// directory named by relPath. A part's filename is sanitized (any
// directory separators removed) or, if absent, replaced by a fresh
// UUID. relPath must already exist and be a directory.
func (g *Gate) Upload(ctx context.Context, subject, user, relPath string, reader *multipart.Reader) ([]UploadedFile, error) {
	abs, logical, err := g.resolve(relPath)
	if err != nil {
		return nil, err
	}
	if err := g.authorize(ctx, subject, user, authz.ActionWrite, logical); err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return nil, apperr.New(apperr.KindNotFound, "path does not exist: "+relPath)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, "stat path", err)
	}
	if !info.IsDir() {
		return nil, apperr.New(apperr.KindInputInvalid, "upload target must be a directory")
	}

	var uploaded []UploadedFile
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindIOError, "read multipart body", err)
		}

		name := sanitizeFilename(part.FileName())
		dest := filepath.Join(abs, name)

		out, err := os.Create(dest)
		if err != nil {
			part.Close()
			return nil, apperr.Wrap(apperr.KindIOError, "create uploaded file", err)
		}

		n, err := io.Copy(out, part)
		closeErr := out.Close()
		part.Close()
		if err != nil {
			return nil, apperr.Wrap(apperr.KindIOError, "write uploaded file", err)
		}
		if closeErr != nil {
			return nil, apperr.Wrap(apperr.KindIOError, "close uploaded file", closeErr)
		}

		uploaded = append(uploaded, UploadedFile{Name: name, Size: n})
	}

	return uploaded, nil
}

// sanitizeFilename strips any directory components from name (so a
// malicious "../../etc/passwd" filename can't escape the upload
// directory) and falls back to a fresh UUID when name is empty.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return uuid.NewString()
	}
	return name
}
