// Package checker decides whether type arguments satisfy the constraints of
// the parameters they are substituted for.
package checker

import (
	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/typesystem"
)

// ViolationKind is the rule a candidate failed.
type ViolationKind int

const (
	RefTypeRequired ViolationKind = iota + 1
	ValTypeRequired
	NotUnmanaged
	ConstraintTypeNotSatisfied
	NewConstraintNotSatisfied
	UnsupportedSymbol
	BadTypeArgument
	ManagedPointer
)

var violationNames = map[ViolationKind]string{
	RefTypeRequired:            "reference type required",
	ValTypeRequired:            "value type required",
	NotUnmanaged:               "not unmanaged",
	ConstraintTypeNotSatisfied: "constraint type not satisfied",
	NewConstraintNotSatisfied:  "new() not satisfied",
	UnsupportedSymbol:          "unsupported symbol",
	BadTypeArgument:            "bad type argument",
	ManagedPointer:             "pointer to managed type",
}

func (k ViolationKind) String() string {
	if s, ok := violationNames[k]; ok {
		return s
	}
	return "unknown"
}

// Violation is one failed rule. Constraint is set for
// ConstraintTypeNotSatisfied (after substitution) and ValTypeRequired.
type Violation struct {
	Kind       ViolationKind
	Param      *constraints.TypeParameter
	Candidate  typesystem.Type
	Constraint typesystem.Type
}

// Check returns every constraint of tp that candidate fails, in rule order.
// subst maps the declaring entity's parameters to the other arguments of the
// same instantiation so that bounds like `T : IEquatable<U>` are compared
// against the right types.
func Check(tp *constraints.TypeParameter, candidate typesystem.Type, subst typesystem.Subst) []Violation {
	if tp.IsUnsupported() {
		return []Violation{{Kind: UnsupportedSymbol, Param: tp, Candidate: candidate}}
	}
	switch candidate.(type) {
	case typesystem.TError:
		return nil
	case typesystem.TPointer:
		return []Violation{{Kind: BadTypeArgument, Param: tp, Candidate: candidate}}
	}

	var out []Violation
	add := func(kind ViolationKind, constraint typesystem.Type) {
		out = append(out, Violation{Kind: kind, Param: tp, Candidate: candidate, Constraint: constraint})
	}

	if tp.HasReferenceTypeConstraint() {
		if !typesystem.IsReferenceType(candidate) {
			add(RefTypeRequired, nil)
		}
	} else if tp.HasValueTypeConstraint() {
		if !typesystem.IsValueType(candidate) {
			add(ValTypeRequired, typesystem.TError{Name: config.ValueTypeName})
		}
	}

	if tp.HasUnmanagedConstraint() && typesystem.IsValueType(candidate) && !typesystem.IsUnmanaged(candidate) {
		add(NotUnmanaged, nil)
	}

	for _, c := range tp.ExplicitConstraintTypes() {
		bound := c.Apply(subst)
		if !typesystem.ConvertsTo(candidate, bound) {
			add(ConstraintTypeNotSatisfied, bound)
		}
	}

	if tp.HasConstructorConstraint() && !typesystem.HasPublicDefaultConstructor(candidate) {
		add(NewConstraintNotSatisfied, nil)
	}
	return out
}

// CheckPointer validates a pointer declaration's element type.
func CheckPointer(elem typesystem.Type) []Violation {
	if _, ok := elem.(typesystem.TError); ok {
		return nil
	}
	if typesystem.IsUnmanaged(elem) {
		return nil
	}
	return []Violation{{Kind: ManagedPointer, Candidate: elem}}
}
