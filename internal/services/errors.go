package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport marks device listing/download failures. Not retried at the
	// call site; the availability monitor picks the work up on its next poll.
	ErrTransport = errors.New("device transport error")
	// ErrTransient marks generation-service failures worth retrying.
	ErrTransient = errors.New("transient service error")
	// ErrInvalidResponse marks a service response that did not match the
	// expected structure. Never retried.
	ErrInvalidResponse = errors.New("invalid service response")
	// ErrConfiguration marks unusable configuration, such as an unknown model
	// identifier. Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrIdentity marks an artifact that cannot be mapped back to its source
	// note. Fatal for that single item only.
	ErrIdentity = errors.New("identity resolution error")
	// ErrNotFound marks a missing local file or directory.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the gateway should re-attempt the failed call.
// Only transient service failures qualify; invalid responses and configuration
// problems fail immediately.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
