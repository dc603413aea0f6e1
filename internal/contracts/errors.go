package contracts

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrScanInProgress is returned when a scan trigger fires while a
	// previous scan is still running. The trigger is skipped, not queued.
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrNoData marks an empty or unusable upstream payload. Treated as a
	// cache miss by callers, never as a crash.
	ErrNoData = errors.New("no data available")
)

// ConnectionError wraps feed/transport failures. Retried with bounded
// attempts; exhaustion is logged, never fatal.
type ConnectionError struct {
	Venue string
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Venue, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError marks rejected credentials. Fatal for the venue: no retry loop.
type AuthError struct {
	Venue  string
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication with %s rejected: %s", e.Venue, e.Reason)
}

// RateLimitError carries an explicit upstream rate-limit signal. The caller
// backs off exponentially on the specific call.
type RateLimitError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited on %s, retry after %s", e.Endpoint, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited on %s", e.Endpoint)
}

// ValidationError marks a refresh payload that failed sanity checks
// (insufficient trading days, malformed bar counts). The refresh is
// rejected and the previous valid cache retained.
type ValidationError struct {
	Subject string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Subject, e.Reason)
}

// IsDataUnavailable reports whether err should be handled as a cache miss.
func IsDataUnavailable(err error) bool {
	return errors.Is(err, ErrNoData)
}
