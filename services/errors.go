package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrJobConflict means a job of the requested type is already scheduled or
	// running for the (tenant, user) pair. The caller must finish or drop the
	// current job first; conflicting work is never silently queued.
	ErrJobConflict = errors.New("a job of this type is already in progress")

	// ErrJobNotFound covers an absent job ID, a job owned by another tenant,
	// and a mismatched monitor token. All three look identical to callers so
	// job existence never leaks across tenants.
	ErrJobNotFound = errors.New("job not found")

	// ErrUnknownOperation indicates a corrupted or unexpected phase marker.
	// The job is marked failed and the anomaly logged; it is not retried.
	ErrUnknownOperation = errors.New("unknown job operation")

	// ErrScanCircuitBreaker is returned when the chunk scanner's fail-safe
	// iteration cap trips. Distinct from normal completion so the job can be
	// failed with a diagnostic reason instead of polling forever at <100%.
	ErrScanCircuitBreaker = errors.New("record scan exceeded fail-safe iteration cap")

	// ErrReportPending means the report's backing work has not finished yet;
	// the client should keep polling with its monitor token.
	ErrReportPending = errors.New("report not ready")

	// ErrMapFinalized rejects column-map edits after complete-col-map was recorded.
	ErrMapFinalized = errors.New("column map already finalized")

	// ErrUnknownReportType rejects report operations naming a type outside
	// csv/data/import/rejection.
	ErrUnknownReportType = errors.New("unknown report type")
)

// FieldError names one offending mapping field with a human-readable message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries an itemized field→message list so callers can
// highlight each offending field rather than showing one opaque string.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) HasErrors() bool { return len(e.Fields) > 0 }
