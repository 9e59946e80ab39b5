package service

import (
	"errors"
	"fmt"
	"strings"

	"catalog-service/internal/attr"
)

// Sentinel errors of the catalog core. Handlers map these onto HTTP status
// codes; everything else propagates as a server fault.
var (
	ErrInvalidID         = errors.New("invalid identifier")
	ErrProductNotFound   = errors.New("product not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrVariationNotFound = errors.New("variation not found")
	ErrCategoryInUse     = errors.New("category is referenced by existing products")
	ErrLastVariation     = errors.New("a product must keep at least one variation")
	ErrForbidden         = errors.New("actor lacks the required role")
)

// ViolationKind classifies one field-level validation failure.
type ViolationKind string

const (
	ViolationMissingRequired ViolationKind = "MISSING_REQUIRED_FIELD"
	ViolationUndefinedField  ViolationKind = "UNDEFINED_FIELD"
	ViolationTypeMismatch    ViolationKind = "FIELD_TYPE_MISMATCH"
	ViolationInvalidValue    ViolationKind = "INVALID_VALUE"
)

// FieldViolation is one entry in an accumulated validation failure.
type FieldViolation struct {
	Kind   ViolationKind `json:"kind"`
	Field  string        `json:"field"`
	Reason string        `json:"reason"`
}

// ValidationError accumulates every field violation found in a request
// before anything is persisted. Validation never stops at the first
// violation: API consumers get the complete list in one round trip.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		v := e.Violations[0]
		return fmt.Sprintf("validation failed: %s: %s", v.Field, v.Reason)
	}
	fields := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		fields[i] = v.Field
	}
	return fmt.Sprintf("validation failed on %d fields: %s", len(e.Violations), strings.Join(fields, ", "))
}

// MissingFields returns the names flagged as missing required fields.
func (e *ValidationError) MissingFields() []string {
	var names []string
	for _, v := range e.Violations {
		if v.Kind == ViolationMissingRequired {
			names = append(names, v.Field)
		}
	}
	return names
}

// violationCollector builds up a ValidationError across checks.
type violationCollector struct {
	violations []FieldViolation
}

func (c *violationCollector) add(kind ViolationKind, field, reason string) {
	c.violations = append(c.violations, FieldViolation{Kind: kind, Field: field, Reason: reason})
}

func (c *violationCollector) missingRequired(field string) {
	c.add(ViolationMissingRequired, field, "required field is missing")
}

func (c *violationCollector) undefined(field string) {
	c.add(ViolationUndefinedField, field, "field is not defined by the product's category")
}

func (c *violationCollector) typeMismatch(field string, tag attr.TypeTag, err error) {
	reason := fmt.Sprintf("expected type %s", tag)
	var typeErr *attr.TypeError
	if errors.As(err, &typeErr) {
		reason = fmt.Sprintf("expected type %s: %s", tag, typeErr.Reason)
	}
	c.add(ViolationTypeMismatch, field, reason)
}

func (c *violationCollector) invalid(field, reason string) {
	c.add(ViolationInvalidValue, field, reason)
}

// err returns the accumulated ValidationError, or nil when every check
// passed.
func (c *violationCollector) err() error {
	if len(c.violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: c.violations}
}
