package gateway

import (
	"errors"
	"fmt"

	"github.com/Project-Sylos/Archivist/internal/cmis"
)

// ErrNotFound is returned when an operation's target does not exist
var ErrNotFound = errors.New("not found")

// PermissionError means the session lacks an allowable action on a node
type PermissionError struct {
	Path   string
	Action cmis.Action
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s is not allowed on %s", e.Action, e.Path)
}

// Unwrap lets callers match cmis.ErrPermissionDenied
func (e *PermissionError) Unwrap() error {
	return cmis.ErrPermissionDenied
}

// requireAction is the single capability check used by every operation
func requireAction(obj *cmis.Object, action cmis.Action) error {
	if obj.AllowableActions.Has(action) {
		return nil
	}
	return &PermissionError{Path: obj.Path, Action: action}
}

func notFound(kind, path string) error {
	return fmt.Errorf("%s %s: %w", kind, path, ErrNotFound)
}
