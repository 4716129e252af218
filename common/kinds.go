// file: common/kinds.go

package common

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the token core can report. Callers switch on
// the kind instead of on concrete error values.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindCredentialNotFound
	KindDirectoryUnavailable
	KindTokenNotFound
	KindTokenRevoked
	KindTokenExpired
	KindMalformedOrInvalidToken
	KindStoreUnavailable
)

var kindNames = map[Kind]string{
	KindUnknown:                 "unknown",
	KindInvalidCredentials:      "invalid credentials",
	KindCredentialNotFound:      "credential not found",
	KindDirectoryUnavailable:    "directory unavailable",
	KindTokenNotFound:           "token not found",
	KindTokenRevoked:            "token revoked",
	KindTokenExpired:            "token expired",
	KindMalformedOrInvalidToken: "malformed or invalid token",
	KindStoreUnavailable:        "store unavailable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error tags an underlying cause with a Kind. Two *Error values match under
// errors.Is when their kinds are equal, so the sentinels below can be used as
// targets regardless of the wrapped cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidCredentials      = &Error{Kind: KindInvalidCredentials}
	ErrCredentialNotFound      = &Error{Kind: KindCredentialNotFound}
	ErrDirectoryUnavailable    = &Error{Kind: KindDirectoryUnavailable}
	ErrTokenNotFound           = &Error{Kind: KindTokenNotFound}
	ErrTokenRevoked            = &Error{Kind: KindTokenRevoked}
	ErrTokenExpired            = &Error{Kind: KindTokenExpired}
	ErrMalformedOrInvalidToken = &Error{Kind: KindMalformedOrInvalidToken}
	ErrStoreUnavailable        = &Error{Kind: KindStoreUnavailable}
)

// Wrap tags err with kind. A nil err yields a bare kind error.
func Wrap(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Wrapf is Wrap with a formatted cause.
func Wrapf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the outermost Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
