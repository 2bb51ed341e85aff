package custom_err

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ingestion errors
	ErrNotFound     = errors.New("resource not found")
	ErrStaleVersion = errors.New("settlement version is not greater than the stored one")
	ErrRateNotFound = errors.New("no exchange rate on file for currency")

	// Workflow guard errors
	ErrDuplicateRequest  = errors.New("release already requested by this user")
	ErrSelfAuthorisation = errors.New("requester cannot authorise own release")
	ErrNotBlocked        = errors.New("settlement is not currently blocked")
	ErrAlreadyAuthorised = errors.New("settlement is already authorised")
	ErrNoReleaseRequest  = errors.New("no release request to authorise")

	// Concurrency and identity errors
	ErrConcurrencyConflict = errors.New("lost the per-group update race, retry the operation")
	ErrInvalidToken        = errors.New("invalid or expired identity token")
	ErrTokenExpired        = errors.New("identity token has expired")
	ErrUnauthorized        = errors.New("unauthorized")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// FieldViolation — одно нарушение валидации
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError несет полный список нарушений, а не только первое.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func (e *ValidationError) Add(field, message string) {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Message: message})
}

func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}
