package cmis

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by all bindings
var (
	ErrObjectNotFound       = errors.New("object not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrContentAlreadyExists = errors.New("content already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrConnection           = errors.New("repository connection failed")
)

// Exception names used by the browser binding
const (
	ExceptionObjectNotFound           = "objectNotFound"
	ExceptionPermissionDenied         = "permissionDenied"
	ExceptionUnauthorized             = "unauthorized"
	ExceptionContentAlreadyExists     = "contentAlreadyExists"
	ExceptionNameConstraintViolation  = "nameConstraintViolation"
	ExceptionInvalidArgument          = "invalidArgument"
	ExceptionNotSupported             = "notSupported"
	ExceptionConstraint               = "constraint"
	ExceptionStreamNotSupported       = "streamNotSupported"
	ExceptionUpdateConflict           = "updateConflict"
	ExceptionVersioning               = "versioning"
	ExceptionRuntime                  = "runtime"
	ExceptionFilterNotValid           = "filterNotValid"
	ExceptionStorage                  = "storage"
	ExceptionServiceUnavailableRemote = "serviceUnavailable"
)

// Error is a failure reported by the repository
type Error struct {
	Status    int    // HTTP status, 0 when not transported over HTTP
	Exception string // repository exception name
	Message   string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("cmis %s (HTTP %d): %s", e.Exception, e.Status, e.Message)
	}
	return fmt.Sprintf("cmis %s: %s", e.Exception, e.Message)
}

// Unwrap maps the exception onto the shared sentinels
func (e *Error) Unwrap() error {
	switch e.Exception {
	case ExceptionObjectNotFound:
		return ErrObjectNotFound
	case ExceptionPermissionDenied, ExceptionUnauthorized:
		return ErrPermissionDenied
	case ExceptionContentAlreadyExists, ExceptionNameConstraintViolation:
		return ErrContentAlreadyExists
	case ExceptionInvalidArgument, ExceptionFilterNotValid:
		return ErrInvalidArgument
	case ExceptionServiceUnavailableRemote:
		return ErrConnection
	}
	switch e.Status {
	case http.StatusNotFound:
		return ErrObjectNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrPermissionDenied
	case http.StatusConflict:
		return ErrContentAlreadyExists
	case http.StatusBadRequest:
		return ErrInvalidArgument
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrConnection
	}
	return nil
}

// ExceptionForStatus guesses the exception name when a response carries none
func ExceptionForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return ExceptionObjectNotFound
	case http.StatusUnauthorized:
		return ExceptionUnauthorized
	case http.StatusForbidden:
		return ExceptionPermissionDenied
	case http.StatusConflict:
		return ExceptionContentAlreadyExists
	case http.StatusBadRequest:
		return ExceptionInvalidArgument
	case http.StatusMethodNotAllowed:
		return ExceptionNotSupported
	case http.StatusServiceUnavailable:
		return ExceptionServiceUnavailableRemote
	}
	return ExceptionRuntime
}

// IsNotFound reports whether err means the object does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}
