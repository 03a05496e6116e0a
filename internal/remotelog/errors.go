package remotelog

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport covers network failures: unreachable host, reset, timeout.
	ErrTransport = errors.New("remote log unreachable")
	// ErrRejected covers non-2xx statuses and explicit {"ok": false} replies.
	ErrRejected = errors.New("remote log rejected request")
	// ErrMalformedResponse covers bodies that are not a JSON object.
	ErrMalformedResponse = errors.New("remote log returned malformed response")
)

// Kind classifies a DeliveryError.
type Kind int

const (
	KindTransport Kind = iota
	KindRejected
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRejected:
		return "rejected"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// DeliveryError reports why an action did not reach the remote log.
type DeliveryError struct {
	Action string
	Kind   Kind
	Status int
	Reason string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Reason)
}

// Unwrap exposes the underlying transport or decode error, if any.
func (e *DeliveryError) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *DeliveryError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrRejected:
		return e.Kind == KindRejected
	case ErrMalformedResponse:
		return e.Kind == KindMalformed
	}
	return false
}
