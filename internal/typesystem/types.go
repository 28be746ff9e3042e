package typesystem

import (
	"strconv"
	"strings"

	"github.com/funvibe/typecon/internal/config"
)

// Type is the interface for all types in our system.
type Type interface {
	String() string
	Apply(Subst) Type
}

// Param is implemented by type parameters. Predicates consult it instead of
// importing the constraint model.
type Param interface {
	Type
	// Key identifies the parameter across its declaring entity ("Owner::T").
	Key() string
	IsKnownValueType() bool
	IsKnownReferenceType() bool
	IsKnownUnmanaged() bool
	ConstraintTypes() []Type
	IsUnsupported() bool
}

// TypeKind classifies a named type definition.
type TypeKind int

const (
	KindClass TypeKind = iota
	KindStruct
	KindInterface
	KindEnum
	KindDelegate
)

var kindNames = map[TypeKind]string{
	KindClass:     "class",
	KindStruct:    "struct",
	KindInterface: "interface",
	KindEnum:      "enum",
	KindDelegate:  "delegate",
}

func (k TypeKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseTypeKind maps a universe keyword to a TypeKind.
func ParseTypeKind(s string) (TypeKind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return KindClass, false
}

// Field is an instance or static field of a definition.
type Field struct {
	Name   string
	Type   Type
	Static bool
}

// Definition is a named type as declared in one assembly.
type Definition struct {
	Namespace   string
	Name        string
	Assembly    string
	Kind        TypeKind
	TypeParams  []Param
	Base        Type // nil for System.Object and interfaces
	Interfaces  []Type
	Fields      []Field
	Sealed      bool
	Abstract    bool
	DefaultCtor bool // public parameterless constructor (classes only; structs always have one)
	Unsupported bool // loaded from metadata the language cannot represent
}

// FullName is the namespace-qualified name, with generic arity suffix.
func (d *Definition) FullName() string {
	name := d.Name
	if len(d.TypeParams) > 0 {
		name += "`" + strconv.Itoa(len(d.TypeParams))
	}
	if d.Namespace == "" {
		return name
	}
	return d.Namespace + "." + name
}

// IsValueKind reports whether instances of the definition are value types.
func (d *Definition) IsValueKind() bool {
	return d.Kind == KindStruct || d.Kind == KindEnum
}

// SplitFullName splits "A.B.C" into ("A.B", "C"). Arity suffixes are dropped.
func SplitFullName(fqn string) (namespace, name string) {
	if i := strings.IndexByte(fqn, '`'); i >= 0 {
		fqn = fqn[:i]
	}
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		return fqn[:i], fqn[i+1:]
	}
	return "", fqn
}

// TNamed is a reference to a definition, possibly constructed with type arguments.
type TNamed struct {
	Def  *Definition
	Args []Type
}

func (t TNamed) String() string {
	if t.Def == nil {
		return "?"
	}
	full := t.Def.Namespace + "." + t.Def.Name
	if t.Def.Namespace == "" {
		full = t.Def.Name
	}
	name := full
	if alias, ok := primitiveDisplay[full]; ok && len(t.Args) == 0 {
		name = alias
	}
	if len(t.Args) == 0 {
		return name
	}
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.String()
	}
	return name + "<" + strings.Join(args, ", ") + ">"
}

func (t TNamed) Apply(s Subst) Type {
	return ApplySubst(t, s)
}

// TPointer is an unmanaged pointer type (T*).
type TPointer struct {
	Elem Type
}

func (t TPointer) String() string {
	return t.Elem.String() + "*"
}

func (t TPointer) Apply(s Subst) Type {
	return ApplySubst(t, s)
}

// TError stands for a type that could not be resolved or is not supported.
type TError struct {
	Name string
}

func (t TError) String() string {
	if t.Name == "" {
		return "?"
	}
	return t.Name
}

func (t TError) Apply(Subst) Type { return t }

// Subst maps type parameter keys to replacement types.
type Subst map[string]Type

// ApplySubst replaces type parameters simultaneously. A replacement is
// taken as is and never rewritten again, so {T: U, U: T} swaps T and U.
func ApplySubst(t Type, s Subst) Type {
	if t == nil || len(s) == 0 {
		return t
	}

	switch typ := t.(type) {
	case Param:
		if replacement, ok := s[typ.Key()]; ok {
			return replacement
		}
		return typ

	case TNamed:
		if len(typ.Args) == 0 {
			return typ
		}
		newArgs := make([]Type, len(typ.Args))
		for i, arg := range typ.Args {
			newArgs[i] = ApplySubst(arg, s)
		}
		return TNamed{Def: typ.Def, Args: newArgs}

	case TPointer:
		return TPointer{Elem: ApplySubst(typ.Elem, s)}

	default:
		return t
	}
}

// Instantiate returns the substitution that maps a constructed type's
// definition parameters to its arguments.
func Instantiate(t TNamed) Subst {
	s := make(Subst)
	if t.Def == nil {
		return s
	}
	for i, p := range t.Def.TypeParams {
		if i < len(t.Args) {
			s[p.Key()] = t.Args[i]
		}
	}
	return s
}

var primitiveDisplay = func() map[string]string {
	m := make(map[string]string, len(config.PrimitiveAliases))
	for alias, full := range config.PrimitiveAliases {
		m[full] = alias
	}
	return m
}()
