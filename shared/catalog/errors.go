package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError via errors.Is
var ErrNotFound = errors.New("not found")

// NotFoundError reports a missing or inactive entity
type NotFoundError struct {
	Entity string
	ID     interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(entity string, id interface{}) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// Conflict reasons
const (
	ReasonChildren         = "children"
	ReasonDocuments        = "documents"
	ReasonCycle            = "cycle"
	ReasonRejectsDocuments = "catalog_rejects_documents"
	ReasonInactiveCatalog  = "inactive_catalog"
)

// ConflictError reports an operation blocked by the current state of the tree
type ConflictError struct {
	Reason  string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ValidationError reports malformed input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AsConflict returns the ConflictError wrapped in err, if any
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// AsValidation returns the ValidationError wrapped in err, if any
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
