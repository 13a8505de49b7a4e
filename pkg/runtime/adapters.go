// verdict/pkg/runtime/adapters.go

package runtime

import (
	"context"
	"errors"
)

// ListResult is the outcome of one managed-list membership check.
type ListResult struct {
	Found        bool
	MatchedValue string
	Metadata     map[string]string
}

// ListAdapter answers membership checks against managed lists. An error
// return aborts the whole evaluation as retryable; a clean miss is
// (ListResult{Found: false}, nil).
type ListAdapter interface {
	Contains(ctx context.Context, listID, value string) (ListResult, error)
}

// FeatureAdapter enriches the event payload before evaluation starts.
// Returned fields are merged under the adapter's namespace; fields the
// adapter cannot produce are simply absent and read as null.
type FeatureAdapter interface {
	Name() string
	Enrich(ctx context.Context, eventType string, payload map[string]interface{}) (map[string]interface{}, error)
}

// retryableError marks infrastructure failures the caller may retry,
// as opposed to evaluation failures that are deterministic.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable wraps err as retryable.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err stems from a transient failure, such
// as a list backend being unreachable.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
