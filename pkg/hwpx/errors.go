// Package hwpx provides custom error types for better error handling and reporting.
package hwpx

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned by providers when a key has no document.
var ErrNotFound = errors.New("document not found")

// LoadError reports that the bytes of a source or of the template could not
// be obtained.
type LoadError struct {
	Key   string
	Cause error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("load error for '%s': %v", e.Key, e.Cause)
	}
	return fmt.Sprintf("load error for '%s'", e.Key)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// NewLoadError creates a new load error
func NewLoadError(key string, cause error) error {
	return &LoadError{Key: key, Cause: cause}
}

// FormatError reports a container whose zip structure, required stream,
// or root element is missing or unreadable.
type FormatError struct {
	Key     string
	Part    string
	Message string
	Cause   error
}

func (e *FormatError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "format error in '%s'", e.Key)
	if e.Part != "" {
		fmt.Fprintf(&b, " part %s", e.Part)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *FormatError) Unwrap() error {
	return e.Cause
}

// NewFormatError creates a new format error
func NewFormatError(key, part, message string, cause error) error {
	return &FormatError{Key: key, Part: part, Message: message, Cause: cause}
}

// ResourceMissingError reports a binary item declared by a source whose
// payload is not in the source container. It is never fatal.
type ResourceMissingError struct {
	Key    string
	ItemID string
	Path   string
}

func (e *ResourceMissingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("binary item '%s' of '%s' missing payload %s", e.ItemID, e.Key, e.Path)
	}
	return fmt.Sprintf("binary item '%s' of '%s' missing payload", e.ItemID, e.Key)
}

// DegradedError reports a source whose pre-extracted fragment could not be
// used, so its full body was merged instead.
type DegradedError struct {
	Key   string
	Cause error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("fragment of '%s' unusable, merged full body: %v", e.Key, e.Cause)
}

func (e *DegradedError) Unwrap() error {
	return e.Cause
}

// IntegrityIssue is a single violated post-merge invariant.
type IntegrityIssue struct {
	Check   string
	Message string
}

// IntegrityError reports a merged document that violates a structural
// invariant. The merge is aborted and no bytes are returned.
type IntegrityError struct {
	Issues []IntegrityIssue
}

func (e *IntegrityError) Error() string {
	if len(e.Issues) == 0 {
		return "integrity error"
	}

	if len(e.Issues) == 1 {
		return fmt.Sprintf("integrity error: %s - %s", e.Issues[0].Check, e.Issues[0].Message)
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%d integrity issues:", len(e.Issues)))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("  %s: %s", issue.Check, issue.Message))
	}
	return strings.Join(parts, "\n")
}

// ContextError adds context to an existing error
type ContextError struct {
	Operation string
	Context   map[string]interface{}
	Cause     error
}

func (e *ContextError) Error() string {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var contextParts []string
	for _, k := range keys {
		contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
	}

	if len(contextParts) > 0 {
		return fmt.Sprintf("%s [%s]: %v", e.Operation, strings.Join(contextParts, ", "), e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
}

func (e *ContextError) Unwrap() error {
	return e.Cause
}

// WithContext wraps an error with additional context
func WithContext(err error, operation string, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ContextError{
		Operation: operation,
		Context:   context,
		Cause:     err,
	}
}

// RecoverError converts a panic recovery value to an error
func RecoverError(r interface{}) error {
	switch v := r.(type) {
	case error:
		return fmt.Errorf("panic recovered: %w", v)
	case string:
		return fmt.Errorf("panic recovered: %s", v)
	default:
		return fmt.Errorf("panic recovered: %v", v)
	}
}

// IsLoadError checks if an error is or wraps a load error
func IsLoadError(err error) bool {
	var target *LoadError
	return errors.As(err, &target)
}

// IsFormatError checks if an error is or wraps a format error
func IsFormatError(err error) bool {
	var target *FormatError
	return errors.As(err, &target)
}

// IsResourceMissingError checks if an error is or wraps a resource missing error
func IsResourceMissingError(err error) bool {
	var target *ResourceMissingError
	return errors.As(err, &target)
}

// IsIntegrityError checks if an error is or wraps an integrity error
func IsIntegrityError(err error) bool {
	var target *IntegrityError
	return errors.As(err, &target)
}
