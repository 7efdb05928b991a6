package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrConfig             = errors.New("configuration error")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNetwork            = errors.New("network error")
	ErrProtocol           = errors.New("protocol error")
	ErrSubmissionRejected = errors.New("submission rejected")
	ErrAPI                = errors.New("provider api error")
	ErrJobFailed          = errors.New("job failed")
	ErrTimeout            = errors.New("timed out waiting for job")
	ErrFetch              = errors.New("artifact fetch failed")
)

// ConfigError reports missing or malformed configuration detected before any
// network activity.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// ValidationError reports a GenerationRequest field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRequest }

// NetworkError wraps a socket-level or timeout failure of a single call.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// ProtocolError reports a response body that could not be decoded as text.
type ProtocolError struct {
	URL    string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s: %s", e.URL, e.Reason)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// SubmissionError is returned when the creation acknowledgment does not carry
// a task identifier. Raw keeps the provider payload verbatim for diagnosis.
type SubmissionError struct {
	Status  int
	Code    string
	Message string
	Raw     string
}

func (e *SubmissionError) Error() string {
	switch {
	case e.Message != "" && e.Code != "":
		return fmt.Sprintf("submission rejected: %s (%s)", e.Message, e.Code)
	case e.Message != "":
		return "submission rejected: " + e.Message
	case strings.TrimSpace(e.Raw) != "":
		return fmt.Sprintf("submission rejected: status %d: %s", e.Status, strings.TrimSpace(e.Raw))
	default:
		return fmt.Sprintf("submission rejected: status %d", e.Status)
	}
}

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmissionRejected }

// APIError carries an error envelope returned while querying a task.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: status %d: %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

func (e *APIError) Is(target error) bool { return target == ErrAPI }

// JobFailedError reports a job the provider marked as FAILED.
type JobFailedError struct {
	Handle  JobHandle
	Code    string
	Message string
}

func (e *JobFailedError) Error() string {
	return "job failed: " + e.Message
}

func (e *JobFailedError) Is(target error) bool { return target == ErrJobFailed }

// TimeoutError reports that the polling deadline elapsed before the job
// reached a terminal state.
type TimeoutError struct {
	Handle    JobHandle
	Deadline  time.Duration
	LastState JobState
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for task %s", e.Deadline, e.Handle)
	if e.LastState != "" {
		msg += fmt.Sprintf(" (last state %s)", e.LastState)
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// FetchError reports the first artifact that could not be materialized.
// Saved lists the files written before the failure; they are left in place.
// Total is the number of artifacts the job produced.
type FetchError struct {
	Index int
	Total int
	URL   string
	Saved []string
	Err   error
}

func (e *FetchError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("fetch artifact %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("fetch artifact %d (%s): %v", e.Index, RedactURL(e.URL), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// RedactURL drops the query string, which carries signatures on artifact
// URLs.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		base, _, _ := strings.Cut(raw, "?")
		return base
	}
	u.RawQuery = ""
	u.ForceQuery = false
	return u.String()
}
