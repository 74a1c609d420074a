// Package apperr defines the failure taxonomy shared by ingestion, the analysis client and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindCredentialMissing Kind = "API_KEY_NOT_CONFIGURED"
	KindExternalService   Kind = "AI_SERVICE_ERROR"
	KindMalformedResponse Kind = "MALFORMED_RESPONSE"
	KindCryptoFailure     Kind = "CRYPTO_FAILURE"
	KindNotFound          Kind = "NOT_FOUND"
	KindInternal          Kind = "INTERNAL_ERROR"
)

// External service sub-codes.
const (
	CodeUnauthorized = "unauthorized"
	CodeRateLimited  = "rate_limited"
	CodeBadRequest   = "bad_request"
	CodeTimeout      = "timeout"
	CodeOther        = "other"
	CodeTransport    = "transport"
)

// Error is a classified failure. Message is safe to show to callers.
type Error struct {
	Kind       Kind
	Code       string // external sub-code, empty for other kinds
	StatusCode int    // upstream HTTP status when known
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// InvalidInput reports malformed caller input.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// CredentialMissing reports that no API key is configured for the identity.
func CredentialMissing() *Error {
	return &Error{Kind: KindCredentialMissing, Message: "API key not configured. Please configure your Anthropic API key in settings."}
}

// External reports a classified failure of the analysis service.
func External(code string, status int, message string, err error) *Error {
	return &Error{Kind: KindExternalService, Code: code, StatusCode: status, Message: message, Err: err}
}

// Malformed reports an analysis response that does not have the expected shape.
func Malformed(message string, err error) *Error {
	return &Error{Kind: KindMalformedResponse, Message: message, Err: err}
}

// Crypto reports a credential encryption or decryption failure. err must not carry key material or plaintext.
func Crypto(message string, err error) *Error {
	return &Error{Kind: KindCryptoFailure, Message: message, Err: err}
}

// NotFound reports a missing record.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// ExternalCode returns the external sub-code of err, or "" when err is not an external service failure.
func ExternalCode(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindExternalService {
		return e.Code
	}
	return ""
}

// HTTPStatus maps err to the status returned to API callers.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindCredentialMissing:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindExternalService:
		switch e.Code {
		case CodeUnauthorized:
			return http.StatusUnauthorized
		case CodeRateLimited:
			return http.StatusTooManyRequests
		case CodeBadRequest:
			return http.StatusBadRequest
		case CodeTimeout:
			return http.StatusGatewayTimeout
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the caller-facing message and code for err. Unclassified faults get a generic message.
func PublicMessage(err error) (code, message string) {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return string(KindInternal), "An unexpected error occurred. Please try again later."
	}
	switch e.Kind {
	case KindCryptoFailure:
		return string(e.Kind), "failed to process stored credential"
	case KindMalformedResponse:
		return string(e.Kind), "analysis service returned an unusable response"
	}
	return string(e.Kind), e.Message
}
