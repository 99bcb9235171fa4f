package service

import "fmt"

// SchemaError reports an unknown entity type or attribute name on a write
// path. Read paths return empty results instead.
type SchemaError struct {
	EntityType string
	Attribute  string
}

func (e *SchemaError) Error() string {
	if e.Attribute == "" {
		return fmt.Sprintf("unknown entity type %q", e.EntityType)
	}
	return fmt.Sprintf("attribute %q is not defined for entity type %q", e.Attribute, e.EntityType)
}

// ValidationError reports a value rejected before any write was attempted.
type ValidationError struct {
	Attribute string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for attribute %q: %s", e.Attribute, e.Reason)
}

// ReferenceError reports an entity id that does not exist in its owning
// table. Only raised when the caller asked for reference validation.
type ReferenceError struct {
	EntityType string
	EntityID   int64
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %d does not exist", e.EntityType, e.EntityID)
}

// ConstraintError reports a storage-level constraint violation outside the
// expected upsert path.
type ConstraintError struct {
	Op  string
	Err error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violation during %s: %v", e.Op, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// TransactionError reports a failed and rolled-back transaction. The entire
// call's effects, including audit writes, are undone.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction failed during %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }
