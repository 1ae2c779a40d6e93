// Copyright 2025 Takhin Data, Inc.

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joestubbs/tagent/internal/apperr"
	"github.com/joestubbs/tagent/internal/envelope"
	"github.com/joestubbs/tagent/internal/files"
)

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request, subject string) {
	path := chi.URLParam(r, "*")

	names, err := s.gate.List(r.Context(), subject, "", path)
	if err != nil {
		s.recordFileDenial(r, err, subject, path)
		envelope.Error(w, err)
		return
	}
	envelope.Success(w, names)
}

func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request, subject string) {
	path := chi.URLParam(r, "*")

	f, info, err := s.gate.Download(r.Context(), subject, "", path)
	if err != nil {
		s.recordFileDenial(r, err, subject, path)
		envelope.Error(w, err)
		return
	}
	defer f.Close()

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *Server) handleFileUpload(w http.ResponseWriter, r *http.Request, subject string) {
	path := chi.URLParam(r, "*")

	mr, err := r.MultipartReader()
	if err != nil {
		envelope.Error(w, apperr.Wrap(apperr.KindInputInvalid, "expected multipart/form-data body", err))
		return
	}

	uploaded, err := s.gate.Upload(r.Context(), subject, "", path, mr)
	if err != nil {
		s.recordFileDenial(r, err, subject, path)
		envelope.Error(w, err)
		return
	}

	envelope.Success(w, namesOf(uploaded))
}

func namesOf(uploaded []files.UploadedFile) []string {
	names := make([]string, 0, len(uploaded))
	for _, f := range uploaded {
		names = append(names, f.Name)
	}
	return names
}

func (s *Server) recordFileDenial(r *http.Request, err error, subject, path string) {
	if apperr.KindOf(err) == apperr.KindAuthInvalid {
		s.log.FromContext(r.Context()).Warn("file access denied", "subject", subject, "path", path)
		s.auditLog.FileDenied(subject, path)
	}
}
