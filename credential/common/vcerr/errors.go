// Package vcerr defines the error kinds surfaced by the issuing pipeline.
package vcerr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// InternalFailure is the kind of any error that was not classified.
	InternalFailure Kind = iota
	MalformedDocument
	CanonicalizationTimeout
	UnsupportedKeyType
	SigningFailure
	KeyFileUnavailable
	ConflictingProofField
	InvalidVerificationMethod
)

var kindNames = map[Kind]string{
	InternalFailure:           "InternalFailure",
	MalformedDocument:         "MalformedDocument",
	CanonicalizationTimeout:   "CanonicalizationTimeout",
	UnsupportedKeyType:        "UnsupportedKeyType",
	SigningFailure:            "SigningFailure",
	KeyFileUnavailable:        "KeyFileUnavailable",
	ConflictingProofField:     "ConflictingProofField",
	InvalidVerificationMethod: "InvalidVerificationMethod",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ClientFault reports whether the failure was caused by the request content.
func (k Kind) ClientFault() bool {
	return k == MalformedDocument || k == ConflictingProofField || k == InvalidVerificationMethod
}

// Error is a classified failure. Message is safe to show to callers, Err carries the cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

var (
	ErrInternal                  = &Error{Kind: InternalFailure}
	ErrMalformedDocument         = &Error{Kind: MalformedDocument}
	ErrCanonicalizationTimeout   = &Error{Kind: CanonicalizationTimeout}
	ErrUnsupportedKeyType        = &Error{Kind: UnsupportedKeyType}
	ErrSigningFailure            = &Error{Kind: SigningFailure}
	ErrKeyFileUnavailable        = &Error{Kind: KeyFileUnavailable}
	ErrConflictingProofField     = &Error{Kind: ConflictingProofField}
	ErrInvalidVerificationMethod = &Error{Kind: InvalidVerificationMethod}
)

// New returns a classified error.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf returns a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. An err that already carries a kind keeps it.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or InternalFailure when err is unclassified.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return InternalFailure
}
