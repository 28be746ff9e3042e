package typesystem

import (
	"github.com/hashicorp/go-set/v3"

	"github.com/funvibe/typecon/internal/config"
)

// maxNesting bounds the field walk for generic structs that expand forever.
const maxNesting = 64

// IsWellKnown reports whether t names the given well-known type, regardless
// of which assembly hosts it.
func IsWellKnown(t Type, fullName string) bool {
	n, ok := t.(TNamed)
	return ok && n.Def != nil && len(n.Args) == 0 && n.Def.FullName() == fullName
}

// IsValueType reports whether t is known to be a non-nullable value type.
func IsValueType(t Type) bool {
	switch typ := t.(type) {
	case Param:
		return typ.IsKnownValueType()
	case TNamed:
		return typ.Def != nil && typ.Def.IsValueKind()
	}
	return false
}

// IsReferenceType reports whether t is known to be a reference type.
func IsReferenceType(t Type) bool {
	switch typ := t.(type) {
	case Param:
		return typ.IsKnownReferenceType()
	case TNamed:
		if typ.Def == nil {
			return false
		}
		switch typ.Def.Kind {
		case KindClass, KindInterface, KindDelegate:
			return true
		}
	}
	return false
}

// IsUnmanaged reports whether t is a value type with no reference-typed
// fields at any level of nesting. Recursive struct layouts are treated as
// unmanaged on the back edge.
func IsUnmanaged(t Type) bool {
	return isUnmanaged(t, set.New[string](8), 0)
}

func isUnmanaged(t Type, visiting *set.Set[string], depth int) bool {
	switch typ := t.(type) {
	case Param:
		return typ.IsKnownUnmanaged()
	case TPointer:
		return true
	case TNamed:
		if typ.Def == nil || typ.Def.Unsupported {
			return false
		}
		switch typ.Def.Kind {
		case KindEnum:
			return true
		case KindStruct:
			if depth > maxNesting {
				return false
			}
			key := typ.Def.Assembly + "!" + typ.String()
			if !visiting.Insert(key) {
				return true
			}
			defer visiting.Remove(key)
			subst := Instantiate(typ)
			for _, f := range typ.Def.Fields {
				if f.Static {
					continue
				}
				if !isUnmanaged(f.Type.Apply(subst), visiting, depth+1) {
					return false
				}
			}
			return true
		}
	}
	return false
}

// Identical reports type identity.
func Identical(a, b Type) bool {
	switch x := a.(type) {
	case Param:
		y, ok := b.(Param)
		return ok && x.Key() == y.Key()
	case TNamed:
		y, ok := b.(TNamed)
		if !ok || !SameDefinition(x.Def, y.Def) || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !Identical(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	case TPointer:
		y, ok := b.(TPointer)
		return ok && Identical(x.Elem, y.Elem)
	}
	return false
}

// SameDefinition compares definitions by identity or by name within one assembly.
func SameDefinition(a, b *Definition) bool {
	if a == nil || b == nil {
		return false
	}
	if a == b {
		return true
	}
	return a.FullName() == b.FullName() && a.Assembly == b.Assembly
}

// BaseOf returns the direct base type of t with t's type arguments applied.
func BaseOf(t TNamed) Type {
	if t.Def == nil || t.Def.Base == nil {
		return nil
	}
	return t.Def.Base.Apply(Instantiate(t))
}

// ConvertsTo reports whether an implicit identity, reference, or boxing
// conversion exists from t to target.
func ConvertsTo(t, target Type) bool {
	return convertsTo(t, target, set.New[string](8))
}

func convertsTo(t, target Type, visiting *set.Set[string]) bool {
	if Identical(t, target) {
		return true
	}
	if _, ok := t.(TPointer); ok {
		return false
	}
	if IsWellKnown(target, config.ObjectTypeName) {
		return true
	}

	switch typ := t.(type) {
	case Param:
		if !visiting.Insert(typ.Key()) {
			return false
		}
		if typ.IsKnownValueType() && IsWellKnown(target, config.ValueTypeName) {
			return true
		}
		for _, c := range typ.ConstraintTypes() {
			if convertsTo(c, target, visiting) {
				return true
			}
		}
		return false

	case TNamed:
		if typ.Def == nil {
			return false
		}
		targetNamed, ok := target.(TNamed)
		if !ok || targetNamed.Def == nil {
			return false
		}
		if !visiting.Insert(typ.Def.Assembly + "!" + typ.String()) {
			return false
		}
		subst := Instantiate(typ)
		if targetNamed.Def.Kind == KindInterface {
			for _, iface := range typ.Def.Interfaces {
				if convertsTo(iface.Apply(subst), target, visiting) {
					return true
				}
			}
		}
		if base := BaseOf(typ); base != nil {
			return convertsTo(base, target, visiting)
		}
		// A struct whose definition omits its base still boxes to System.ValueType.
		if typ.Def.IsValueKind() && IsWellKnown(target, config.ValueTypeName) {
			return true
		}
	}
	return false
}

// HasPublicDefaultConstructor reports whether `new T()` is valid for t.
func HasPublicDefaultConstructor(t Type) bool {
	switch typ := t.(type) {
	case Param:
		if typ.IsKnownValueType() {
			return true
		}
		if c, ok := typ.(interface{ HasConstructorConstraint() bool }); ok {
			return c.HasConstructorConstraint()
		}
		return false
	case TNamed:
		if typ.Def == nil {
			return false
		}
		if typ.Def.IsValueKind() {
			return true
		}
		return typ.Def.Kind == KindClass && !typ.Def.Abstract && typ.Def.DefaultCtor
	}
	return false
}
