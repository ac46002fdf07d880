package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrCapacityExceeded matches any CapacityExceededError.
	ErrCapacityExceeded = errors.New("deduction exceeds available stock")
	// ErrDataIntegrity matches any DataIntegrityError.
	ErrDataIntegrity = errors.New("ledger data integrity violation")
	// ErrNotFound matches any NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrQuantityOverflow is returned when a stock quantity does not fit in base units.
	ErrQuantityOverflow = errors.New("stock quantity out of range")
	// ErrValidation matches any ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrVersionConflict is returned when a batch changed between read and save.
	ErrVersionConflict = errors.New("batch was modified concurrently")
)

// CapacityExceededError reports a proposed deduction larger than the available stock.
type CapacityExceededError struct {
	Requested int64
	Available int64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("amount cannot exceed available quantity (requested %d, available %d)", e.Requested, e.Available)
}

func (e *CapacityExceededError) Is(target error) bool { return target == ErrCapacityExceeded }

// DataIntegrityError reports a deduction entry that holds no usable amount.
type DataIntegrityError struct {
	List  string
	Index int
	Ref   string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("%s deduction #%d (ref %q) has a missing or non-numeric amount", e.List, e.Index, e.Ref)
}

func (e *DataIntegrityError) Is(target error) bool { return target == ErrDataIntegrity }

// NotFoundError reports a missing category, fruit, batch, sale or spoilage.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFound builds a NotFoundError.
func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ValidationError carries user facing messages keyed by form field.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns a ValidationError with a single field message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records a message for field, keeping the first message per field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// Empty reports whether no field message was recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Messages returns the field messages in a stable order.
func (e *ValidationError) Messages() []string {
	if e == nil {
		return nil
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, e.Fields[k])
	}
	return out
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
