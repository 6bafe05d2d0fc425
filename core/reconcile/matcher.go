package reconcile

import (
	"context"

	"github.com/pkg/errors"

	"github.com/soptable/portal/core/user"
)

// Gateway is the user store as seen by the engine.
type Gateway interface {
	// FindByEmail returns user.ErrNotFound when no user owns email.
	FindByEmail(ctx context.Context, email string) (user.User, error)
	InsertCandidate(ctx context.Context, c user.Candidate) (int, error)
	UpdateFields(ctx context.Context, id int, changes map[string]string) error
}

//go:generate mockgen -destination=mocks/gateway_mock.go -package=mocks . Gateway

// Diff maps each changed field to its new value.
type Diff map[string]string

// Fields returns the changed field names in schema order.
func (d Diff) Fields() []string {
	names := make([]string, 0, len(d))
	for _, f := range ReconciledFields() {
		if _, ok := d[f]; ok {
			names = append(names, f)
		}
	}
	return names
}

type MatchResult struct {
	Found    bool
	StoredID int
	Diff     Diff
}

// LookupError is a store failure while looking a candidate up.
type LookupError struct {
	Err error
}

func (e *LookupError) Error() string { return e.Err.Error() }
func (e *LookupError) Unwrap() error { return e.Err }

// PersistenceError is a store failure while writing a candidate.
type PersistenceError struct {
	Op  string // insert | update
	Err error
}

func (e *PersistenceError) Error() string { return e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// ComputeDiff compares every reconciled attribute supplied by c with the stored one.
func ComputeDiff(c user.Candidate, stored user.User) Diff {
	diff := make(Diff)
	for _, f := range ReconciledFields() {
		v := c.Attr(f)
		if !v.Set {
			continue
		}
		if v.Value != stored.Attr(f) {
			diff[f] = v.Value
		}
	}
	return diff
}

// Match looks c up by email and diffs it against the stored user when there is one.
func Match(ctx context.Context, c user.Candidate, gw Gateway) (MatchResult, error) {
	stored, err := gw.FindByEmail(ctx, c.Email.Value)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return MatchResult{}, nil
		}
		return MatchResult{}, &LookupError{Err: err}
	}
	return MatchResult{Found: true, StoredID: stored.ID, Diff: ComputeDiff(c, stored)}, nil
}
