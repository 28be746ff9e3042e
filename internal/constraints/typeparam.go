// Package constraints models the constraint set of a generic type parameter.
//
// A TypeParameter is created unbound, bound exactly once (from a source
// declaration, from imported metadata, or by propagation from a base member)
// and is read-only afterwards. Bound parameters may be shared freely between
// goroutines.
package constraints

import (
	"errors"
	"fmt"

	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/typesystem"
)

// OwnerKind is the kind of generic entity declaring a type parameter.
type OwnerKind int

const (
	OwnerType OwnerKind = iota
	OwnerMethod
	OwnerDelegate
	OwnerLocalFunction
	OwnerLambda
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerType:
		return "type"
	case OwnerMethod:
		return "method"
	case OwnerDelegate:
		return "delegate"
	case OwnerLocalFunction:
		return "local function"
	case OwnerLambda:
		return "lambda"
	}
	return "unknown"
}

// Owner identifies the declaring entity by its qualified name. Assembly is
// set for entities declared in a referenced assembly or the compilation, and
// tells apart same-named entities of different assemblies.
type Owner struct {
	Name     string
	Kind     OwnerKind
	Assembly string
}

// ID is the owner's identity across assemblies: "[Assembly]Name".
func (o Owner) ID() string {
	if o.Assembly == "" {
		return o.Name
	}
	return "[" + o.Assembly + "]" + o.Name
}

// Origin records how a parameter's constraints were obtained.
type Origin int

const (
	OriginSource Origin = iota
	OriginImported
	OriginPropagated
	OriginSynthesized
)

func (o Origin) String() string {
	switch o {
	case OriginSource:
		return "source"
	case OriginImported:
		return "imported"
	case OriginPropagated:
		return "propagated"
	case OriginSynthesized:
		return "synthesized"
	}
	return "unknown"
}

// Flags are the special constraints of a parameter.
type Flags struct {
	ValueType     bool
	ReferenceType bool
	Constructor   bool
	Unmanaged     bool
}

// Normalize applies unmanaged => value type.
func (f Flags) Normalize() Flags {
	if f.Unmanaged {
		f.ValueType = true
	}
	return f
}

var ErrAlreadyBound = errors.New("type parameter already bound")

// TypeParameter is one generic parameter and its constraint set.
type TypeParameter struct {
	name    string
	ordinal int
	owner   Owner

	bound       bool
	flags       Flags
	explicit    []typesystem.Type
	origin      Origin
	unsupported bool
	reason      string
}

// NewTypeParameter creates an unbound parameter. Parameters of one entity are
// created together so their constraints can refer to each other, then bound.
func NewTypeParameter(owner Owner, ordinal int, name string) *TypeParameter {
	return &TypeParameter{name: name, ordinal: ordinal, owner: owner}
}

// FromDeclaration creates and binds a parameter from declared constraints.
// It never fails; unmanaged is normalized to imply value type.
func FromDeclaration(owner Owner, ordinal int, name string, flags Flags, explicit []typesystem.Type) *TypeParameter {
	tp := NewTypeParameter(owner, ordinal, name)
	_ = tp.Bind(flags, explicit, OriginSource)
	return tp
}

// Bind sets the constraint set. It fails if the parameter is already bound.
func (tp *TypeParameter) Bind(flags Flags, explicit []typesystem.Type, origin Origin) error {
	if tp.bound {
		return fmt.Errorf("%s: %w", tp.Key(), ErrAlreadyBound)
	}
	tp.bound = true
	tp.flags = flags.Normalize()
	tp.explicit = append([]typesystem.Type(nil), explicit...)
	tp.origin = origin
	return nil
}

// BindCopy binds tp to the constraint set of src, mapping explicit types
// through subst. An unsupported source stays unsupported in the copy.
func (tp *TypeParameter) BindCopy(src *TypeParameter, subst typesystem.Subst, origin Origin) error {
	explicit := make([]typesystem.Type, len(src.explicit))
	for i, t := range src.explicit {
		explicit[i] = t.Apply(subst)
	}
	if err := tp.Bind(src.flags, explicit, origin); err != nil {
		return err
	}
	tp.unsupported = src.unsupported
	tp.reason = src.reason
	return nil
}

// ImportedShape is a decoded constraint set from metadata.
type ImportedShape struct {
	ValueType     bool // raw value-type flag
	ReferenceType bool
	Constructor   bool // raw constructor flag, possibly an encoding artifact
	Unmanaged     bool // set only for a well-formed encoding
	Malformed     bool
	Reason        string
	Explicit      []typesystem.Type
}

// BindImported binds a parameter reconstructed from metadata. A constructor
// flag accompanying the value-type flag is the metadata form of `struct` and
// is not surfaced. A malformed shape leaves the parameter listed but unusable.
func (tp *TypeParameter) BindImported(shape ImportedShape) error {
	flags := Flags{
		ValueType:     shape.ValueType,
		ReferenceType: shape.ReferenceType,
		Constructor:   shape.Constructor && !shape.ValueType,
		Unmanaged:     shape.Unmanaged && !shape.Malformed,
	}
	explicit := make([]typesystem.Type, 0, len(shape.Explicit))
	for _, t := range shape.Explicit {
		// System.ValueType is the carrier of the struct constraint, not a bound.
		if shape.ValueType && typesystem.IsWellKnown(t, config.ValueTypeName) {
			continue
		}
		explicit = append(explicit, t)
	}
	if err := tp.Bind(flags, explicit, OriginImported); err != nil {
		return err
	}
	if shape.Malformed {
		tp.unsupported = true
		tp.reason = shape.Reason
	}
	return nil
}

// FromImported creates and binds a parameter from a decoded metadata shape.
func FromImported(owner Owner, ordinal int, name string, shape ImportedShape) *TypeParameter {
	tp := NewTypeParameter(owner, ordinal, name)
	_ = tp.BindImported(shape)
	return tp
}

func (tp *TypeParameter) Name() string   { return tp.name }
func (tp *TypeParameter) Ordinal() int   { return tp.ordinal }
func (tp *TypeParameter) Owner() Owner   { return tp.owner }
func (tp *TypeParameter) Origin() Origin { return tp.origin }
func (tp *TypeParameter) IsBound() bool  { return tp.bound }

// Key identifies the parameter across its declaring entity.
func (tp *TypeParameter) Key() string {
	return tp.owner.Name + "::" + tp.name
}

func (tp *TypeParameter) String() string { return tp.name }

func (tp *TypeParameter) Apply(s typesystem.Subst) typesystem.Type {
	return typesystem.ApplySubst(tp, s)
}

// Flags returns the normalized special constraints.
func (tp *TypeParameter) Flags() Flags { return tp.flags }

// HasValueTypeConstraint is true for `struct` and for `unmanaged`.
func (tp *TypeParameter) HasValueTypeConstraint() bool {
	return tp.flags.ValueType || tp.flags.Unmanaged
}

func (tp *TypeParameter) HasReferenceTypeConstraint() bool { return tp.flags.ReferenceType }
func (tp *TypeParameter) HasConstructorConstraint() bool   { return tp.flags.Constructor }
func (tp *TypeParameter) HasUnmanagedConstraint() bool     { return tp.flags.Unmanaged }

// ExplicitConstraintTypes returns the declared bound types in order.
func (tp *TypeParameter) ExplicitConstraintTypes() []typesystem.Type {
	return append([]typesystem.Type(nil), tp.explicit...)
}

func (tp *TypeParameter) ConstraintTypes() []typesystem.Type { return tp.explicit }

// IsUnsupported reports a parameter whose metadata encoding is malformed.
func (tp *TypeParameter) IsUnsupported() bool       { return tp.unsupported }
func (tp *TypeParameter) UnsupportedReason() string { return tp.reason }

func (tp *TypeParameter) IsKnownValueType() bool {
	return tp.knownValueType(make(map[*TypeParameter]bool))
}

func (tp *TypeParameter) knownValueType(seen map[*TypeParameter]bool) bool {
	if tp.HasValueTypeConstraint() {
		return true
	}
	if seen[tp] {
		return false
	}
	seen[tp] = true
	for _, c := range tp.explicit {
		if p, ok := c.(*TypeParameter); ok && p.knownValueType(seen) {
			return true
		}
	}
	return false
}

func (tp *TypeParameter) IsKnownReferenceType() bool {
	return tp.knownReferenceType(make(map[*TypeParameter]bool))
}

func (tp *TypeParameter) knownReferenceType(seen map[*TypeParameter]bool) bool {
	if tp.flags.ReferenceType {
		return true
	}
	if seen[tp] {
		return false
	}
	seen[tp] = true
	for _, c := range tp.explicit {
		switch ct := c.(type) {
		case *TypeParameter:
			if ct.knownReferenceType(seen) {
				return true
			}
		case typesystem.TNamed:
			if ct.Def != nil && ct.Def.Kind == typesystem.KindClass &&
				!typesystem.IsWellKnown(ct, config.ObjectTypeName) &&
				!typesystem.IsWellKnown(ct, config.ValueTypeName) &&
				!typesystem.IsWellKnown(ct, config.EnumTypeName) {
				return true
			}
		}
	}
	return false
}

func (tp *TypeParameter) IsKnownUnmanaged() bool { return tp.flags.Unmanaged }

// SameConstraints reports whether two parameters declare the same constraint
// set once explicit types are mapped through subst.
func SameConstraints(a, b *TypeParameter, subst typesystem.Subst) bool {
	if a.flags != b.flags || len(a.explicit) != len(b.explicit) {
		return false
	}
	for i := range a.explicit {
		if !typesystem.Identical(a.explicit[i].Apply(subst), b.explicit[i]) {
			return false
		}
	}
	return true
}

var _ typesystem.Param = (*TypeParameter)(nil)
