package game

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or missing required request field.
// It is never retried and maps to HTTP 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ThrottledError marks an explicit 429 from an upstream provider. Calls
// failing with it are retried per the shared backoff schedule, then surfaced.
type ThrottledError struct {
	Provider string
	Body     string
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("%s rate limited (429): %s", e.Provider, e.Body)
}

// ContentFilteredError marks an upstream safety rejection. Never retried.
type ContentFilteredError struct {
	Provider string
	Detail   string
}

func (e *ContentFilteredError) Error() string {
	return fmt.Sprintf("%s rejected content: %s", e.Provider, e.Detail)
}

// MalformedOutputError marks unparsable or incomplete model output. The story
// generator retries it once through the repair sub-dialogue, then surfaces it.
type MalformedOutputError struct {
	Reason string
}

func (e *MalformedOutputError) Error() string {
	return "malformed story output: " + e.Reason
}

func IsThrottled(err error) bool {
	var te *ThrottledError
	return errors.As(err, &te)
}

func IsContentFiltered(err error) bool {
	var ce *ContentFilteredError
	return errors.As(err, &ce)
}
