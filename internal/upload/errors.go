package upload

import (
	"errors"
	"fmt"
)

// Kind classifies a Manager failure.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindObjectStore Kind = "object_store_error"
	KindPersistence Kind = "persistence_error"
	KindValidation  Kind = "validation_error"
	KindCompletion  Kind = "completion_error"
)

// ErrRecordNotFound is returned by stores when the requested row is absent.
var ErrRecordNotFound = errors.New("upload: record not found")

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrObjectStore = &Error{Kind: KindObjectStore}
	ErrPersistence = &Error{Kind: KindPersistence}
	ErrValidation  = &Error{Kind: KindValidation}
	ErrCompletion  = &Error{Kind: KindCompletion}
)

// Error is the error type returned by every Manager operation.
type Error struct {
	Kind Kind

	// Op is the Manager operation that failed (e.g. "create_upload").
	Op string

	// UploadID or file id the operation was about, if any.
	ID string

	// Status is the remote HTTP status when the object store reported one.
	Status int

	Err error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.ID != "" {
		msg += " (" + e.ID + ")"
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" status=%d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.ID == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// statusCoder is implemented by object store errors that carry the remote
// HTTP status.
type statusCoder interface {
	StatusCode() int
}

func remoteStatus(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

func newError(kind Kind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Status: remoteStatus(err), Err: err}
}

func validationError(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: errors.New(msg)}
}

// storeError maps a store failure to NotFound or PersistenceError.
func storeError(op, id string, err error) *Error {
	if errors.Is(err, ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Op: op, ID: id, Err: err}
	}
	return &Error{Kind: KindPersistence, Op: op, ID: id, Err: err}
}
