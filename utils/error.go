package utils

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

type ErrorKind string

const (
	KindValidation         ErrorKind = "VALIDATION"
	KindConflict           ErrorKind = "CONFLICT"
	KindIntegrityViolation ErrorKind = "INTEGRITY_VIOLATION"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindStorage            ErrorKind = "STORAGE"
)

// AppError is the error every ledger operation returns to its caller.
// Message is safe to show to clients; Err is only logged.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func newAppError(kind ErrorKind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(format string, args ...any) error {
	return newAppError(KindValidation, format, args...)
}

func ConflictError(format string, args ...any) error {
	return newAppError(KindConflict, format, args...)
}

func IntegrityViolation(format string, args ...any) error {
	return newAppError(KindIntegrityViolation, format, args...)
}

func NotFoundError(entity string, id any) error {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", entity, id), Err: ErrorRecordNotFound}
}

// StorageError hides the driver error from clients.
func StorageError(err error) error {
	return &AppError{Kind: KindStorage, Message: "storage error", Err: err}
}

// ErrorKindOf reports the kind of err, defaulting to STORAGE for anything that
// is not an AppError.
func ErrorKindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorage
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && ErrorKindOf(err) == kind
}

// ClassifyDBError maps gorm errors into the taxonomy. AppErrors pass through.
func ClassifyDBError(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFoundError(entity, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &AppError{Kind: KindConflict, Message: fmt.Sprintf("%s already exists", entity), Err: err}
	default:
		return StorageError(err)
	}
}

// HTTPStatus maps an error kind to the status code the REST layer returns.
func HTTPStatus(err error) int {
	switch ErrorKindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindIntegrityViolation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-safe message of err.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "storage error"
}
