package internal

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrKind is the closed set of failure classes the gateway distinguishes.
// Every error that crosses a component boundary carries one of these so the
// HTTP layer can map it to a status without string matching.
type ErrKind int

const (
	KindUnsupported ErrKind = iota
	KindInvalidRequest
	KindAuthRequired
	KindUnavailable
	KindTimeout
	KindProcessFailed
	KindEmptyOutput
	KindNotFound
	KindExhausted
)

func (k ErrKind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported platform"
	case KindInvalidRequest:
		return "invalid request"
	case KindAuthRequired:
		return "authentication required"
	case KindUnavailable:
		return "video unavailable"
	case KindTimeout:
		return "extraction timed out"
	case KindProcessFailed:
		return "extraction failed"
	case KindEmptyOutput:
		return "extractor returned no output"
	case KindNotFound:
		return "not found or expired"
	case KindExhausted:
		return "too many concurrent requests"
	}
	return "unknown error"
}

// Retryable reports whether a bounded local retry makes sense for this kind.
func (k ErrKind) Retryable() bool {
	return k == KindTimeout || k == KindEmptyOutput
}

var kindStatus = map[ErrKind]int{
	KindUnsupported:    http.StatusBadRequest,
	KindInvalidRequest: http.StatusBadRequest,
	KindAuthRequired:   http.StatusForbidden,
	KindUnavailable:    http.StatusNotFound,
	KindTimeout:        http.StatusGatewayTimeout,
	KindProcessFailed:  http.StatusInternalServerError,
	KindEmptyOutput:    http.StatusInternalServerError,
	KindNotFound:       http.StatusNotFound,
	KindExhausted:      http.StatusServiceUnavailable,
}

// HTTPStatus maps the kind to its response status.
func (k ErrKind) HTTPStatus() int {
	if s, ok := kindStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// GatewayError is the error type used across the extraction/preview/stream
// pipeline. Detail holds the subprocess stderr tail when there is one.
type GatewayError struct {
	Kind   ErrKind
	Detail string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return e.Kind.String()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// NewError builds a GatewayError of the given kind.
func NewError(kind ErrKind, detail string) *GatewayError {
	return &GatewayError{Kind: kind, Detail: detail}
}

// KindOf extracts the ErrKind from an error chain, defaulting to ProcessFailed.
func KindOf(err error) ErrKind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindProcessFailed
}

// ErrDetail returns the stderr detail carried by the error, if any.
func ErrDetail(err error) string {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Detail
	}
	return ""
}

// Upstream tools report permanent conditions only as free text on stderr, so
// classification stays a best-effort substring table. Checked in order; first
// match wins.
var stderrKinds = []struct {
	needle string
	kind   ErrKind
}{
	{"sign in to confirm you're not a bot", KindAuthRequired},
	{"sign in to confirm your age", KindAuthRequired},
	{"login required", KindAuthRequired},
	{"age-restricted", KindAuthRequired},
	{"use --cookies", KindAuthRequired},
	{"private video", KindUnavailable},
	{"video unavailable", KindUnavailable},
	{"has been removed", KindUnavailable},
	{"copyright", KindUnavailable},
	{"account associated with this video has been terminated", KindUnavailable},
	{"unsupported url", KindUnsupported},
	{"429", KindExhausted},
	{"too many requests", KindExhausted},
}

// KindFromStderr refines a generic process failure using the stderr text.
func KindFromStderr(stderr string) ErrKind {
	lower := strings.ToLower(stderr)
	for _, m := range stderrKinds {
		if strings.Contains(lower, m.needle) {
			return m.kind
		}
	}
	return KindProcessFailed
}
