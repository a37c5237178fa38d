package services

import (
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

var (
	// ErrDecode marks a provider response that parsed but lacked a field the
	// pipeline consumes, or did not parse at all.
	ErrDecode = errors.New("malformed provider response")
	// ErrInvalidInput marks a missing or unreadable local upload.
	ErrInvalidInput = errors.New("invalid input document")
	// ErrProvider marks a non-success status returned by the provider.
	ErrProvider = errors.New("provider returned an error")
)

// DecodeError reports which provider call returned an unusable body.
type DecodeError struct {
	Op    string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: decode %s: %v", e.Op, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: response missing %s", e.Op, e.Field)
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}

// ProviderError is a non-2xx answer, or a run that ended in a failure state.
type ProviderError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return ErrProvider
}

// ErrorKind names the failure class for logging.
func ErrorKind(err error) string {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrProvider), errors.As(err, &apiErr), errors.As(err, &reqErr):
		return "provider_status"
	default:
		return "transport"
	}
}
