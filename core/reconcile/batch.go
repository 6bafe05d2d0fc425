package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/soptable/portal/core"
	"github.com/soptable/portal/core/user"
)

var (
	ErrMissingUsers = errors.New("users is required")
	ErrUsersNotList = errors.New("users must be an array")
	ErrEmptyBatch   = errors.New("users must not be empty")
)

// BatchRequest is the body of a batch upsert.
type BatchRequest struct {
	Users json.RawMessage `json:"users"`
}

// DecodeBatch turns the raw users member of a request into candidates. Shape problems of the
// batch as a whole are returned as a *core.ValidationError; maxRows <= 0 means no limit.
// An element that is not a user object becomes an empty candidate, so validation reports it
// at its own index instead of failing the batch.
func DecodeBatch(raw json.RawMessage, maxRows int) ([]user.Candidate, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, core.NewValidationError(ErrMissingUsers)
	}
	if raw[0] != '[' {
		return nil, core.NewValidationError(ErrUsersNotList)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, core.NewValidationError(errors.Wrap(err, "decoding users"))
	}
	if len(elems) == 0 {
		return nil, core.NewValidationError(ErrEmptyBatch)
	}
	if maxRows > 0 && len(elems) > maxRows {
		return nil, core.NewValidationError(fmt.Errorf("too many users: %d (max %d)", len(elems), maxRows))
	}

	candidates := make([]user.Candidate, len(elems))
	for i, elem := range elems {
		var c user.Candidate
		if err := json.Unmarshal(elem, &c); err == nil {
			candidates[i] = c
		}
	}
	return candidates, nil
}
