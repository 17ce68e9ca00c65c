package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"subseek/internal/services"
)

// kindError is a provider error kind. Each kind unwraps to the services
// marker used in reports, so services.FailureReason keeps working.
type kindError struct {
	label  string
	marker error
}

func (e *kindError) Error() string { return e.label }

func (e *kindError) Unwrap() error { return e.marker }

var (
	// ErrConfiguration means the provider cannot work with the supplied
	// settings. The provider is discarded for the life of the pool.
	ErrConfiguration = &kindError{"provider configuration error", services.ErrConfiguration}
	// ErrAuthentication means credentials were rejected.
	ErrAuthentication = &kindError{"provider authentication error", services.ErrConfiguration}
	// ErrDownloadLimitExceeded means a provider-side quota or rate limit was hit.
	ErrDownloadLimitExceeded = &kindError{"provider download limit exceeded", services.ErrTransient}
	// ErrServiceUnavailable means the provider reported an outage.
	ErrServiceUnavailable = &kindError{"provider service unavailable", services.ErrTransient}
	// ErrTimeout means a call did not finish in time.
	ErrTimeout = &kindError{"provider timeout", services.ErrTimeout}
	// ErrTransient covers network and parsing failures worth retrying later.
	ErrTransient = &kindError{"provider transient error", services.ErrTransient}
	// ErrNotInitialized means a call was made outside Initialize/Terminate.
	ErrNotInitialized = &kindError{"provider not initialized", services.ErrConfiguration}
)

var kinds = []*kindError{
	ErrConfiguration,
	ErrAuthentication,
	ErrDownloadLimitExceeded,
	ErrServiceUnavailable,
	ErrTimeout,
	ErrNotInitialized,
	ErrTransient,
}

// Wrap tags err with kind and provider context. kind must be one of the
// sentinels above; nil means ErrTransient.
func Wrap(kind error, provider, operation, message string, err error) error {
	if kind == nil {
		kind = ErrTransient
	}
	return services.Wrap(kind, provider, operation, message, err)
}

// HTTPError is a non-success HTTP response from a provider API.
type HTTPError struct {
	Provider   string
	Operation  string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	status := http.StatusText(e.StatusCode)
	if status == "" {
		status = "unexpected status"
	}
	msg := fmt.Sprintf("%s %s: %d %s", e.Provider, e.Operation, e.StatusCode, status)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

// Classify returns the kind err belongs to, or nil for a nil error. Errors
// already tagged by Wrap keep their kind.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr.StatusCode)
	}
	if errors.Is(err, services.ErrConfiguration) {
		return ErrConfiguration
	}
	if errors.Is(err, services.ErrTimeout) {
		return ErrTimeout
	}
	return ErrTransient
}

func classifyStatus(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotAcceptable:
		return ErrAuthentication
	case http.StatusProxyAuthRequired, http.StatusTooManyRequests:
		// opensubtitles answers 407 when the daily download quota is spent.
		return ErrDownloadLimitExceeded
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrServiceUnavailable
	case http.StatusRequestTimeout:
		return ErrTimeout
	default:
		return ErrTransient
	}
}

// IsDiscarding reports whether the provider should not be called again for
// the rest of the pool's life.
func IsDiscarding(err error) bool {
	switch Classify(err) {
	case ErrConfiguration, ErrAuthentication, ErrDownloadLimitExceeded, ErrServiceUnavailable, ErrNotInitialized:
		return true
	default:
		return false
	}
}

// CooldownFor reports whether err should also suppress the provider in
// later runs until the configured cooldown expires.
func CooldownFor(err error) bool {
	switch Classify(err) {
	case ErrAuthentication, ErrDownloadLimitExceeded, ErrServiceUnavailable:
		return true
	default:
		return false
	}
}

// Reason is a short label for reports and logs.
func Reason(err error) string {
	switch Classify(err) {
	case nil:
		return ""
	case ErrConfiguration:
		return "configuration"
	case ErrAuthentication:
		return "authentication"
	case ErrDownloadLimitExceeded:
		return "download_limit"
	case ErrServiceUnavailable:
		return "service_unavailable"
	case ErrTimeout:
		return "timeout"
	case ErrNotInitialized:
		return "not_initialized"
	default:
		return "transient"
	}
}
