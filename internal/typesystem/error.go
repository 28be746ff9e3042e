package typesystem

import (
	"errors"
	"fmt"
	"strings"
)

// SymbolNotFoundError indicates a symbol was not found
type SymbolNotFoundError struct {
	Name string
}

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("symbol not found: %s", e.Name)
}

func NewSymbolNotFoundError(name string) *SymbolNotFoundError {
	return &SymbolNotFoundError{Name: name}
}

// AmbiguousTypeError indicates a name matched definitions in several assemblies.
type AmbiguousTypeError struct {
	Name       string
	Assemblies []string
}

func (e *AmbiguousTypeError) Error() string {
	return fmt.Sprintf("ambiguous type %s: defined in %s", e.Name, strings.Join(e.Assemblies, ", "))
}

// WellKnownRole says which predefined type a lookup was for.
type WellKnownRole int

const (
	RoleMarker WellKnownRole = iota + 1
	RoleValueTypeBase
)

func (r WellKnownRole) String() string {
	switch r {
	case RoleMarker:
		return "unmanaged marker"
	case RoleValueTypeBase:
		return "value type base"
	}
	return "predefined"
}

var (
	ErrMarkerTypeMissing    = errors.New("unmanaged marker type not found")
	ErrValueTypeBaseMissing = errors.New("value type base not found")
)

// PredefinedTypeNotFoundError reports a missing well-known type. It matches
// ErrMarkerTypeMissing or ErrValueTypeBaseMissing under errors.Is.
type PredefinedTypeNotFoundError struct {
	Name string
	Role WellKnownRole
}

func (e *PredefinedTypeNotFoundError) Error() string {
	return fmt.Sprintf("predefined type '%s' is not defined or imported", e.Name)
}

func (e *PredefinedTypeNotFoundError) Is(target error) bool {
	switch target {
	case ErrMarkerTypeMissing:
		return e.Role == RoleMarker
	case ErrValueTypeBaseMissing:
		return e.Role == RoleValueTypeBase
	}
	return false
}

func NewPredefinedTypeNotFoundError(name string, role WellKnownRole) *PredefinedTypeNotFoundError {
	return &PredefinedTypeNotFoundError{Name: name, Role: role}
}

// Resolver finds well-known types for the constraint encoding. Duplicate
// definitions of the marker are not an error; the first candidate wins.
type Resolver interface {
	LookupWellKnown(fullName string, role WellKnownRole) (*Definition, error)
}
