package schema

import (
	"fmt"
	"strings"
)

// Issue is a single problem found in a template, located by a JSON-pointer-like path.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationReport collects template problems. Warnings never block an import.
type ValidationReport struct {
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// OK reports whether no errors were recorded.
func (r *ValidationReport) OK() bool {
	return len(r.Errors) == 0
}

// Errorf records an error at path.
func (r *ValidationReport) Errorf(path, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Warnf records a warning at path.
func (r *ValidationReport) Warnf(path, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Merge appends the issues of other.
func (r *ValidationReport) Merge(other *ValidationReport) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Err returns a VALIDATION_ERROR listing every error, or nil when the report is OK.
func (r *ValidationReport) Err() error {
	if r.OK() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, is := range r.Errors {
		msgs[i] = is.String()
	}
	return NewErrorf(ErrCodeValidation, "invalid template: %s", strings.Join(msgs, "; ")).
		WithDetails(map[string]any{
			"errors":   r.Errors,
			"warnings": r.Warnings,
		})
}
