package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrNotCancellable = errors.New("job is already terminal")
	ErrNotRetryable   = errors.New("only failed jobs can be retried")
	ErrDuplicate      = errors.New("a live queue entry already exists for this dedup key")
)

// QuotaExceededError tells the caller which ceiling was hit and where the
// tenant stands against it.
type QuotaExceededError struct {
	Scope   string
	Current int
	Limit   int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d of %d", e.Scope, e.Current, e.Limit)
}
