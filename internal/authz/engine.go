// Copyright 2025 Takhin Data, Inc.

package authz

import (
	"context"

	"github.com/joestubbs/tagent/internal/aclmatch"
	"github.com/joestubbs/tagent/internal/apperr"
)

// EntryLister is the slice of the ACL Store the Decision Engine needs:
// indexed lookup by subject and decision. Satisfied by
// internal/aclstore.Store.
type EntryLister interface {
	ListBySubjectAndDecision(ctx context.Context, subject string, decision Decision) ([]Entry, error)
}

// Engine evaluates authorization queries against an EntryLister.
type Engine struct {
	store EntryLister
}

// New builds a Decision Engine backed by store.
func New(store EntryLister) *Engine {
	return &Engine{store: store}
}

// Decide implements the algorithm of spec §4.D: fetch Deny-class
// entries for subject and check each against the match predicate,
// returning the first match as a denial; if none match, fetch
// Allow-class entries and return the first match as a grant; if
// neither pass matches anything, return default-deny.
//
// The Deny pass runs strictly before the Allow pass within one call —
// an intra-call ordering guarantee unaffected by concurrent handlers.
func (e *Engine) Decide(ctx context.Context, q Query) (Answer, error) {
	denies, err := e.store.ListBySubjectAndDecision(ctx, q.Subject, DecisionDeny)
	if err != nil {
		return Answer{}, apperr.Wrap(apperr.KindPolicyCheckError, "list deny ACLs", err)
	}
	for i := range denies {
		ok, err := matches(denies[i], q)
		if err != nil {
			return Answer{}, apperr.Wrap(apperr.KindPolicyCheckError, "evaluate deny ACL", err)
		}
		if ok {
			id := denies[i].ID
			return Answer{Allowed: false, MatchingACLID: &id}, nil
		}
	}

	allows, err := e.store.ListBySubjectAndDecision(ctx, q.Subject, DecisionAllow)
	if err != nil {
		return Answer{}, apperr.Wrap(apperr.KindPolicyCheckError, "list allow ACLs", err)
	}
	for i := range allows {
		ok, err := matches(allows[i], q)
		if err != nil {
			return Answer{}, apperr.Wrap(apperr.KindPolicyCheckError, "evaluate allow ACL", err)
		}
		if ok {
			id := allows[i].ID
			return Answer{Allowed: true, MatchingACLID: &id}, nil
		}
	}

	return Answer{Allowed: false}, nil
}

// matches implements the match predicate of spec §4.D: subject, user,
// path, and action must all pass for the ACL to match the query.
func matches(e Entry, q Query) (bool, error) {
	if e.Subject != q.Subject {
		return false, nil
	}

	if q.User != e.User {
		ok, err := aclmatch.Matches(e.User, q.User)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	if q.Path != e.Path {
		ok, err := aclmatch.Matches(e.Path, q.Path)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	if !actionMatches(e, q.Action) {
		return false, nil
	}

	return true, nil
}

// actionMatches applies the action hierarchy: an Allow ACL matches any
// query action at or below its own (a higher privilege implies the
// lower ones); a Deny ACL matches any query action at or above its own
// (a lower-privilege deny implies denial of the higher ones).
func actionMatches(e Entry, queryAction Action) bool {
	if e.Action == queryAction {
		return true
	}
	if e.Decision == DecisionAllow {
		return e.Action >= queryAction
	}
	return e.Action <= queryAction
}
