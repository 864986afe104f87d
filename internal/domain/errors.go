package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transports (status codes, error frames).
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindConflict      Kind = "conflict"
	KindUnavailable   Kind = "unavailable"
	KindInternal      Kind = "internal"
)

// Error is the domain error type. Sentinels below are *Error values so errors.Is works by identity.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

var (
	// ErrSessionNotFound is returned when no retained session matches an id or code.
	ErrSessionNotFound = &Error{Kind: KindNotFound, Message: "quiz session not found"}
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = &Error{Kind: KindNotFound, Message: "participant not found in session"}
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = &Error{Kind: KindNotFound, Message: "quiz not found"}

	ErrForbidden = &Error{Kind: KindAuthorization, Message: "only the session creator or an admin may do this"}

	ErrInvalidTransition  = &Error{Kind: KindState, Message: "operation not allowed in current session status"}
	ErrSessionEnded       = &Error{Kind: KindState, Message: "quiz session has ended"}
	ErrNotCurrentQuestion = &Error{Kind: KindState, Message: "question is not the current question"}
	ErrAlreadyAnswered    = &Error{Kind: KindState, Message: "question already answered"}

	// ErrDuplicateCode is reported by stores when an insert violates code uniqueness.
	ErrDuplicateCode = &Error{Kind: KindConflict, Message: "session code already in use"}
	// ErrLiveSessionExists is reported by stores when (quiz, creator) already has a live session.
	ErrLiveSessionExists = &Error{Kind: KindConflict, Message: "live session already exists for quiz and creator"}
	// ErrStaleSession is reported by stores when a conditional update lost a race.
	ErrStaleSession = &Error{Kind: KindConflict, Message: "session was modified concurrently"}
	// ErrTemporarilyUnavailable is surfaced when insert retries are exhausted.
	ErrTemporarilyUnavailable = &Error{Kind: KindConflict, Message: "session creation temporarily unavailable, retry later"}

	ErrCodeSpaceExhausted = &Error{Kind: KindUnavailable, Message: "session code allocation unavailable"}
	ErrStorageUnavailable = &Error{Kind: KindUnavailable, Message: "session storage unavailable"}
)

// Validationf builds a validation error with a formatted message.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Transient wraps an infrastructure failure (timeout, dropped connection) as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return err
	}
	return &Error{Kind: KindUnavailable, Message: ErrStorageUnavailable.Message, Err: err}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return KindOf(err) == KindUnavailable && !errors.Is(err, ErrCodeSpaceExhausted)
}

// KindOf maps any error to its kind; unknown errors are internal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
