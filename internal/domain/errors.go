package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidPrompt    = errors.New("invalid prompt")
	ErrIndexOutOfRange  = errors.New("artifact index out of range")
	ErrArtifactLocked   = errors.New("artifact is locked")
	ErrNoPaymentSession = errors.New("no payment session")
	ErrStalePayment     = errors.New("payment callback does not match the pending session")
	ErrGenerationBusy   = errors.New("generation superseded by a newer request")
	ErrGenerating       = errors.New("generation in progress")
)

// ErrorKind classifies failures surfaced to the user.
type ErrorKind string

const (
	KindGeneration        ErrorKind = "generation_error"
	KindTimeout           ErrorKind = "timeout"
	KindContentPolicy     ErrorKind = "content_policy_warning"
	KindDownload          ErrorKind = "download_error"
	KindPaymentInitiation ErrorKind = "payment_initiation_error"
)

// Error carries a user-facing message together with its kind. None of the
// kinds are fatal; callers turn them into a Notice.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed error of the given kind.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a *Error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// Notice is the transient notification shown for a handled failure.
type Notice struct {
	Kind     ErrorKind     `json:"kind"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
}

// Display durations per kind. Content-policy warnings stay up longer.
const (
	noticeDefaultDuration = 5 * time.Second
	noticeWarningDuration = 8 * time.Second
)

// NoticeFor converts a handled error into its notification. Untyped errors are
// reported as generation errors.
func NoticeFor(err error) Notice {
	if err == nil {
		return Notice{}
	}
	var de *Error
	if !errors.As(err, &de) {
		return Notice{Kind: KindGeneration, Message: err.Error(), Duration: noticeDefaultDuration}
	}
	msg := de.Message
	if msg == "" && de.Err != nil {
		msg = de.Err.Error()
	}
	n := Notice{Kind: de.Kind, Message: msg, Duration: noticeDefaultDuration}
	switch de.Kind {
	case KindContentPolicy:
		n.Duration = noticeWarningDuration
	case KindTimeout:
		if n.Message == "" {
			n.Message = "request timed out"
		}
	}
	return n
}
