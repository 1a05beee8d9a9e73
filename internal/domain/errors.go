package domain

import (
	"fmt"
)

// UpstreamError is any non-200 or transport failure from the rank provider
// or the Discord API. Callers decide retry policy.
type UpstreamError struct {
	Status int
	URL    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: %d from %s", e.Status, e.URL)
}

// ConflictError reports a uniqueness violation on upsert. Not retryable.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s %q already linked to another account", e.Field, e.Value)
}

// PermissionError means a Discord mutation was forbidden for the bot. The
// single mutation is skipped; processing continues.
type PermissionError struct {
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("missing permissions for %s", e.Action)
}

// NotFoundError covers members or accounts that vanished mid-cycle.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}
