package models

import "fmt"

// Auth failure reasons, assigned at the point of failure so callers can
// branch without inspecting message text.
const (
	AuthReasonInvalidClient = "invalid_client"
	AuthReasonOther         = "other"
)

// ConfigError is fatal: it aborts the run before any account is processed.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Msg
}

// AuthError reports a failed token exchange for one account.
type AuthError struct {
	Reason string
	Status int
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("auth: %s (status %d): %s", e.Reason, e.Status, e.Detail)
	}
	return fmt.Sprintf("auth: %s (status %d)", e.Reason, e.Status)
}

// InvalidClient reports whether the provider rejected the credentials.
func (e *AuthError) InvalidClient() bool {
	return e.Reason == AuthReasonInvalidClient
}

// RateLimitError reports that the configured rate-limit retry budget was
// exhausted while fetching.
type RateLimitError struct {
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit: retries exhausted after %d attempts", e.Attempts)
}

// NetworkError reports that the network retry budget was exhausted.
type NetworkError struct {
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %d attempts failed: %v", e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError reports a non-success, non-429 provider response. Not retried.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Body)
}

// PermissionDenied reports whether the provider rejected the call for
// missing API scope.
func (e *APIError) PermissionDenied() bool {
	return e.Status == 403
}
