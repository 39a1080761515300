package presence

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("presence: not connected")
	ErrRejected     = errors.New("presence: payload rejected")
	ErrTimeout      = errors.New("presence: timeout")
)

type ErrorKind int

const (
	KindNotConnected ErrorKind = iota + 1
	KindRejected
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotConnected:
		return "not_connected"
	case KindRejected:
		return "rejected"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// PublishError is returned by every Client operation that fails. Code and
// Message carry Discord's error payload for rejections and handshake closes.
type PublishError struct {
	Kind    ErrorKind
	Code    int
	Message string
	Err     error
}

func (e *PublishError) Error() string {
	msg := "presence: " + e.Kind.String()
	if e.Message != "" {
		msg += fmt.Sprintf(" (%d: %s)", e.Code, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Is(target error) bool {
	switch e.Kind {
	case KindNotConnected:
		return target == ErrNotConnected
	case KindRejected:
		return target == ErrRejected
	case KindTimeout:
		return target == ErrTimeout
	}
	return false
}

func IsNotConnected(err error) bool { return errors.Is(err, ErrNotConnected) }
func IsRejected(err error) bool     { return errors.Is(err, ErrRejected) }
func IsTimeout(err error) bool      { return errors.Is(err, ErrTimeout) }

// IsConnectionFailure reports errors after which the channel must be re-established.
func IsConnectionFailure(err error) bool {
	return IsNotConnected(err) || IsTimeout(err)
}

func notConnected(err error) error {
	return &PublishError{Kind: KindNotConnected, Err: err}
}
