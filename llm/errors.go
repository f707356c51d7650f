package llm

import (
	"errors"
	"fmt"
	"strings"
)

// SDKError is the base of every error produced by this package.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// ProviderError is an error reported by a model backend.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	Retryable  bool
	RetryAfter *float64
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d, retryable=%v)", e.Provider, e.Message, e.StatusCode, e.Retryable)
}

type AuthenticationError struct{ ProviderError }
type AccessDeniedError struct{ ProviderError }
type NotFoundError struct{ ProviderError }
type InvalidRequestError struct{ ProviderError }
type RateLimitError struct{ ProviderError }
type ServerError struct{ ProviderError }
type ContentFilterError struct{ ProviderError }
type ContextLengthError struct{ ProviderError }
type QuotaExceededError struct{ ProviderError }

type RequestTimeoutError struct{ SDKError }
type AbortError struct{ SDKError }
type NetworkError struct{ SDKError }
type ConfigurationError struct{ SDKError }

// ErrorFromStatusCode maps an HTTP status to the matching error type.
func ErrorFromStatusCode(statusCode int, message, provider string, cause error) error {
	pe := ProviderError{
		SDKError:   SDKError{Message: message, Cause: cause},
		Provider:   provider,
		StatusCode: statusCode,
	}

	switch statusCode {
	case 400, 422:
		return &InvalidRequestError{ProviderError: pe}
	case 401:
		return &AuthenticationError{ProviderError: pe}
	case 402:
		return &QuotaExceededError{ProviderError: pe}
	case 403:
		return &AccessDeniedError{ProviderError: pe}
	case 404:
		return &NotFoundError{ProviderError: pe}
	case 408:
		return &RequestTimeoutError{SDKError: pe.SDKError}
	case 413:
		return &ContextLengthError{ProviderError: pe}
	case 429:
		pe.Retryable = true
		return &RateLimitError{ProviderError: pe}
	case 500, 502, 503, 504:
		pe.Retryable = true
		return &ServerError{ProviderError: pe}
	default:
		pe.Retryable = true
		return &pe
	}
}

// classifyError maps a backend error without a status code onto the
// hierarchy by inspecting its message.
func classifyError(provider string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	contains := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("401", "unauthorized", "invalid key", "invalid api key", "api key not"):
		return ErrorFromStatusCode(401, msg, provider, err)
	case contains("403", "forbidden"):
		return ErrorFromStatusCode(403, msg, provider, err)
	case contains("404", "not found"):
		return ErrorFromStatusCode(404, msg, provider, err)
	case contains("429", "rate limit"):
		return ErrorFromStatusCode(429, msg, provider, err)
	case contains("quota", "insufficient_quota", "billing"):
		return ErrorFromStatusCode(402, msg, provider, err)
	case contains("context length", "too many tokens", "maximum context"):
		return ErrorFromStatusCode(413, msg, provider, err)
	case contains("500", "502", "503", "internal server", "bad gateway", "unavailable"):
		return ErrorFromStatusCode(500, msg, provider, err)
	case contains("timeout", "deadline exceeded"):
		return &RequestTimeoutError{SDKError: SDKError{Message: msg, Cause: err}}
	case contains("connection refused", "no such host", "connection reset"):
		return &NetworkError{SDKError: SDKError{Message: msg, Cause: err}}
	case contains("content filter", "safety"):
		return &ContentFilterError{ProviderError: ProviderError{
			SDKError: SDKError{Message: msg, Cause: err}, Provider: provider,
		}}
	default:
		return &ProviderError{
			SDKError:  SDKError{Message: msg, Cause: err},
			Provider:  provider,
			Retryable: true,
		}
	}
}

// retryClassifier is implemented by every error type in the hierarchy
// that knows whether another attempt can succeed.
type retryClassifier interface {
	retryable() bool
}

func (e *ProviderError) retryable() bool { return e.Retryable }

func (*RateLimitError) retryable() bool      { return true }
func (*ServerError) retryable() bool         { return true }
func (*RequestTimeoutError) retryable() bool { return true }
func (*NetworkError) retryable() bool        { return true }

func (*AuthenticationError) retryable() bool { return false }
func (*AccessDeniedError) retryable() bool   { return false }
func (*NotFoundError) retryable() bool       { return false }
func (*InvalidRequestError) retryable() bool { return false }
func (*ContentFilterError) retryable() bool  { return false }
func (*ContextLengthError) retryable() bool  { return false }
func (*QuotaExceededError) retryable() bool  { return false }
func (*ConfigurationError) retryable() bool  { return false }
func (*AbortError) retryable() bool          { return false }

// IsRetryable reports whether err is worth another attempt. Errors outside
// the hierarchy are retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rc retryClassifier
	if errors.As(err, &rc) {
		return rc.retryable()
	}
	return true
}
