// Copyright 2025 Takhin Data, Inc.

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/joestubbs/tagent/internal/aclstore"
	"github.com/joestubbs/tagent/internal/apperr"
	"github.com/joestubbs/tagent/internal/authz"
	"github.com/joestubbs/tagent/internal/envelope"
	"github.com/joestubbs/tagent/internal/metrics"
)

// aclRequest is the wire shape of POST/PUT /acls, per spec §6.
type aclRequest struct {
	Subject  string `json:"subject"`
	User     string `json:"user"`
	Action   string `json:"action"`
	Path     string `json:"path"`
	Decision string `json:"decision"`
}

// aclResponse is the wire shape of one returned ACL record.
type aclResponse struct {
	ID         int64  `json:"id"`
	Subject    string `json:"subject"`
	User       string `json:"user"`
	Path       string `json:"path"`
	Action     string `json:"action"`
	Decision   string `json:"decision"`
	CreateBy   string `json:"create_by"`
	CreateTime string `json:"create_time"`
}

func toResponse(r aclstore.Record) aclResponse {
	return aclResponse{
		ID:         r.ID,
		Subject:    r.Subject,
		User:       r.User,
		Path:       r.Path,
		Action:     r.Action.String(),
		Decision:   r.Decision.String(),
		CreateBy:   r.CreateBy,
		CreateTime: r.CreateTime,
	}
}

func decodeACLRequest(r *http.Request) (aclstore.Fields, error) {
	var req aclRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return aclstore.Fields{}, apperr.Wrap(apperr.KindInputInvalid, "malformed JSON body", err)
	}

	if req.Path == "" {
		return aclstore.Fields{}, apperr.New(apperr.KindInputInvalid, "path must not be empty")
	}

	action, ok := authz.ParseAction(req.Action)
	if !ok {
		return aclstore.Fields{}, apperr.New(apperr.KindInputInvalid, "unknown action: "+req.Action)
	}

	decision, ok := authz.ParseDecision(req.Decision)
	if !ok {
		return aclstore.Fields{}, apperr.New(apperr.KindInputInvalid, "unknown decision: "+req.Decision)
	}

	return aclstore.Fields{
		Subject:  req.Subject,
		User:     req.User,
		Path:     req.Path,
		Action:   action,
		Decision: decision,
	}, nil
}

func parseIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInputInvalid, "bad id parameter", err)
	}
	return id, nil
}

func (s *Server) handleCreateACL(w http.ResponseWriter, r *http.Request, subject string) {
	fields, err := decodeACLRequest(r)
	if err != nil {
		envelope.Error(w, err)
		return
	}

	id, err := s.store.Insert(r.Context(), fields, subject)
	if err != nil {
		envelope.Error(w, err)
		return
	}

	s.auditLog.ACLCreated(subject, id)
	envelope.Created(w, strconv.FormatInt(id, 10))
}

func (s *Server) handleGetACL(w http.ResponseWriter, r *http.Request, _ string) {
	id, err := parseIDParam(r)
	if err != nil {
		envelope.Error(w, err)
		return
	}

	rec, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.Success(w, toResponse(rec))
}

func (s *Server) handleUpdateACL(w http.ResponseWriter, r *http.Request, subject string) {
	id, err := parseIDParam(r)
	if err != nil {
		envelope.Error(w, err)
		return
	}

	fields, err := decodeACLRequest(r)
	if err != nil {
		envelope.Error(w, err)
		return
	}

	n, err := s.store.UpdateByID(r.Context(), id, fields, subject)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	if n == 0 {
		envelope.Error(w, apperr.New(apperr.KindNotFound, "no ACL with that id"))
		return
	}

	s.auditLog.ACLUpdated(subject, id)
	envelope.Success(w, "updated")
}

func (s *Server) handleDeleteACL(w http.ResponseWriter, r *http.Request, subject string) {
	id, err := parseIDParam(r)
	if err != nil {
		envelope.Error(w, err)
		return
	}

	n, err := s.store.DeleteByID(r.Context(), id)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	if n == 0 {
		envelope.Error(w, apperr.New(apperr.KindNotFound, "no ACL with that id"))
		return
	}

	s.auditLog.ACLDeleted(subject, id)
	envelope.Success(w, "deleted")
}

func (s *Server) handleListACLs(w http.ResponseWriter, r *http.Request, _ string) {
	recs, err := s.store.ListAll(r.Context())
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.Success(w, toResponses(recs))
}

func (s *Server) handleListBySubject(w http.ResponseWriter, r *http.Request, _ string) {
	subject := chi.URLParam(r, "subject")
	recs, err := s.store.ListBySubject(r.Context(), subject)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.Success(w, toResponses(recs))
}

func (s *Server) handleListBySubjectAndUser(w http.ResponseWriter, r *http.Request, _ string) {
	subject := chi.URLParam(r, "subject")
	user := chi.URLParam(r, "user")
	recs, err := s.store.ListBySubjectAndUser(r.Context(), subject, user)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.Success(w, toResponses(recs))
}

func (s *Server) handleIsAuthz(w http.ResponseWriter, r *http.Request, _ string) {
	subject := chi.URLParam(r, "subject")
	user := chi.URLParam(r, "user")
	actionParam := chi.URLParam(r, "action")
	path := chi.URLParam(r, "*")

	action, ok := authz.ParseAction(actionParam)
	if !ok {
		envelope.Error(w, apperr.New(apperr.KindInputInvalid, "unknown action: "+actionParam))
		return
	}

	ans, err := s.engine.Decide(r.Context(), authz.Query{
		Subject: subject,
		User:    user,
		Action:  action,
		Path:    "/" + path,
	})
	if err != nil {
		envelope.Error(w, err)
		return
	}

	metrics.DecisionsTotal.WithLabelValues(strconv.FormatBool(ans.Allowed)).Inc()
	envelope.Success(w, ans)
}

func toResponses(recs []aclstore.Record) []aclResponse {
	out := make([]aclResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, toResponse(r))
	}
	return out
}
