package services

import (
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// ErrorKind tells callers how to react to a provider failure.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindCredentialMissing
	KindCredentialInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindCredentialMissing:
		return "credential_missing"
	case KindCredentialInvalid:
		return "credential_invalid"
	default:
		return "generic"
	}
}

// ErrMissingAPIKey is returned before any call when no key is configured.
var ErrMissingAPIKey = errors.New("API_KEY is not configured")

// ProviderError wraps every failure leaving a provider adapter. Error()
// returns the provider's own message so it can be surfaced verbatim.
type ProviderError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ProviderError) Error() string {
	return e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, KindGeneric if it is unclassified.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindGeneric
}

// IsCredentialError reports whether err means the key is missing or rejected.
func IsCredentialError(err error) bool {
	k := KindOf(err)
	return k == KindCredentialMissing || k == KindCredentialInvalid
}

// classify wraps a raw SDK error into a ProviderError. This is the only place
// that inspects provider error shapes.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Kind: kindFromError(op, err), Op: op, Err: err}
}

// notFoundMeansKey reports whether op is a Veo call, where a key bound to a
// project without access is answered with NOT_FOUND. Elsewhere a 404 is a
// plain missing resource.
func notFoundMeansKey(op string) bool {
	return op == "generate_video" || op == "poll_video"
}

func kindFromError(op string, err error) ErrorKind {
	if errors.Is(err, ErrMissingAPIKey) {
		return KindCredentialMissing
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return kindFromStatus(op, apiErr.Code, apiErr.Status, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return kindFromStatus(op, apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message)
	}

	var oaErr *openai.APIError
	if errors.As(err, &oaErr) {
		return kindFromStatus(op, oaErr.HTTPStatusCode, "", oaErr.Message)
	}

	return kindFromMessage(op, err.Error())
}

func kindFromStatus(op string, code int, status, message string) ErrorKind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindCredentialInvalid
	case status == "UNAUTHENTICATED", status == "PERMISSION_DENIED":
		return KindCredentialInvalid
	case code == http.StatusNotFound, status == "NOT_FOUND":
		if notFoundMeansKey(op) {
			return KindCredentialInvalid
		}
		return KindGeneric
	}
	return kindFromMessage(op, message)
}

func kindFromMessage(op, msg string) ErrorKind {
	if strings.Contains(msg, "API_KEY") {
		return KindCredentialInvalid
	}
	if notFoundMeansKey(op) && strings.Contains(msg, "Requested entity was not found") {
		return KindCredentialInvalid
	}
	return KindGeneric
}
