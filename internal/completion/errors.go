package completion

import (
	"context"
	"errors"
	"fmt"
	"net"

	openai "github.com/sashabaranov/go-openai"
)

// Kind classifies a failed completion call.
type Kind int

const (
	// TransportFailure covers connection errors, timeouts, and cancelled waits.
	TransportFailure Kind = iota + 1
	// BackendRejected means the backend answered with a non-success status.
	BackendRejected
	// MalformedResponse means a success status with an unusable payload.
	MalformedResponse
)

func (k Kind) String() string {
	switch k {
	case TransportFailure:
		return "transport_failure"
	case BackendRejected:
		return "backend_rejected"
	case MalformedResponse:
		return "malformed_response"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// unknownMessage is reported when the backend rejects a request without saying why.
const unknownMessage = "unknown"

// BackendError is the only error type returned by Gateway.Complete.
type BackendError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("completion %s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("completion %s: %v", e.Kind, e.Err)
	}
	return "completion " + e.Kind.String()
}

func (e *BackendError) Unwrap() error { return e.Err }

// Rejection reports the backend's own message when the backend rejected the
// request and said why.
func (e *BackendError) Rejection() (string, bool) {
	if e.Kind != BackendRejected || e.Message == "" || e.Message == unknownMessage {
		return "", false
	}
	return e.Message, true
}

// AsBackendError unwraps err into a *BackendError.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// classify converts a go-openai client error into a BackendError.
func classify(err error) *BackendError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = unknownMessage
		}
		return &BackendError{Kind: BackendRejected, Message: msg, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &BackendError{Kind: BackendRejected, Message: unknownMessage, Err: err}
	}

	if isTransport(err) {
		return &BackendError{Kind: TransportFailure, Err: err}
	}
	return &BackendError{Kind: MalformedResponse, Err: err}
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
