package typesystem

import (
	"testing"

	"github.com/funvibe/typecon/internal/config"
)

type fakeParam struct {
	key       string
	value     bool
	ref       bool
	unmanaged bool
	bounds    []Type
}

func (p *fakeParam) String() string             { return p.key }
func (p *fakeParam) Apply(s Subst) Type         { return ApplySubst(p, s) }
func (p *fakeParam) Key() string                { return p.key }
func (p *fakeParam) IsKnownValueType() bool     { return p.value || p.unmanaged }
func (p *fakeParam) IsKnownReferenceType() bool { return p.ref }
func (p *fakeParam) IsKnownUnmanaged() bool     { return p.unmanaged }
func (p *fakeParam) ConstraintTypes() []Type    { return p.bounds }
func (p *fakeParam) IsUnsupported() bool        { return false }

type world struct {
	object, valueType, enum, str, marker, i32 *Definition
}

func newWorld() *world {
	w := &world{}
	w.object = &Definition{Namespace: "System", Name: "Object", Assembly: "corlib", Kind: KindClass, DefaultCtor: true}
	w.valueType = &Definition{Namespace: "System", Name: "ValueType", Assembly: "corlib", Kind: KindClass,
		Base: TNamed{Def: w.object}, Abstract: true}
	w.enum = &Definition{Namespace: "System", Name: "Enum", Assembly: "corlib", Kind: KindClass,
		Base: TNamed{Def: w.valueType}, Abstract: true}
	w.str = &Definition{Namespace: "System", Name: "String", Assembly: "corlib", Kind: KindClass,
		Base: TNamed{Def: w.object}, Sealed: true}
	w.marker = &Definition{Namespace: "System.Runtime.InteropServices", Name: "UnmanagedType", Assembly: "corlib",
		Kind: KindEnum, Base: TNamed{Def: w.enum}, Sealed: true}
	w.i32 = w.structDef("System", "Int32")
	return w
}

func (w *world) structDef(ns, name string, fields ...Field) *Definition {
	return &Definition{Namespace: ns, Name: name, Assembly: "corlib", Kind: KindStruct,
		Base: TNamed{Def: w.valueType}, Fields: fields, Sealed: true}
}

func TestIsUnmanaged(t *testing.T) {
	w := newWorld()
	str := TNamed{Def: w.str}
	i32 := TNamed{Def: w.i32}

	point := w.structDef("", "Point", Field{Name: "X", Type: i32}, Field{Name: "Y", Type: i32})
	withString := w.structDef("", "Named", Field{Name: "Name", Type: str})
	staticString := w.structDef("", "Holder", Field{Name: "Cache", Type: str, Static: true}, Field{Name: "V", Type: i32})
	outer := w.structDef("", "Outer", Field{Name: "Inner", Type: TNamed{Def: withString}})
	pointerField := w.structDef("", "Ptr", Field{Name: "P", Type: TPointer{Elem: TNamed{Def: withString}}})

	// struct Wrapper<T> { T Value; }
	wrapperT := &fakeParam{key: "Wrapper`1::T"}
	wrapper := w.structDef("", "Wrapper", Field{Name: "Value", Type: wrapperT})
	wrapper.TypeParams = []Param{wrapperT}

	// struct Node { Node* Next; } is fine; a self-referential value field is
	// cut on the back edge.
	node := w.structDef("", "Node")
	node.Fields = []Field{{Name: "Self", Type: TNamed{Def: node}}}

	bogus := w.structDef("", "Bogus")
	bogus.Unsupported = true

	tests := []struct {
		name string
		typ  Type
		want bool
	}{
		{"primitive", i32, true},
		{"enum", TNamed{Def: w.marker}, true},
		{"string", str, false},
		{"object", TNamed{Def: w.object}, false},
		{"struct of primitives", TNamed{Def: point}, true},
		{"struct with reference field", TNamed{Def: withString}, false},
		{"static reference field ignored", TNamed{Def: staticString}, true},
		{"nested reference field", TNamed{Def: outer}, false},
		{"pointer field", TNamed{Def: pointerField}, true},
		{"generic struct over int", TNamed{Def: wrapper, Args: []Type{i32}}, true},
		{"generic struct over string", TNamed{Def: wrapper, Args: []Type{str}}, false},
		{"recursive layout", TNamed{Def: node}, true},
		{"unsupported definition", TNamed{Def: bogus}, false},
		{"pointer", TPointer{Elem: str}, true},
		{"unmanaged parameter", &fakeParam{key: "M::T", unmanaged: true}, true},
		{"struct parameter", &fakeParam{key: "M::T", value: true}, false},
		{"error type", TError{Name: "Missing"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUnmanaged(tt.typ); got != tt.want {
				t.Errorf("IsUnmanaged(%s) = %v, want %v", tt.typ, got, tt.want)
			}
		})
	}
}

func TestConvertsTo(t *testing.T) {
	w := newWorld()
	i32 := TNamed{Def: w.i32}
	object := TNamed{Def: w.object}
	valueType := TNamed{Def: w.valueType}

	iface := &Definition{Name: "IThing", Assembly: "lib", Kind: KindInterface}
	impl := w.structDef("", "Thing")
	impl.Interfaces = []Type{TNamed{Def: iface}}
	bare := &Definition{Name: "Bare", Assembly: "lib", Kind: KindStruct}

	bounded := &fakeParam{key: "M::U", bounds: []Type{TNamed{Def: iface}}}
	structParam := &fakeParam{key: "M::S", value: true}

	tests := []struct {
		name   string
		from   Type
		to     Type
		expect bool
	}{
		{"identity", i32, i32, true},
		{"anything to object", TNamed{Def: w.str}, object, true},
		{"struct boxes to ValueType", i32, valueType, true},
		{"struct without base boxes to ValueType", TNamed{Def: bare}, valueType, true},
		{"struct to implemented interface", TNamed{Def: impl}, TNamed{Def: iface}, true},
		{"struct to other interface", i32, TNamed{Def: iface}, false},
		{"string is not a ValueType", TNamed{Def: w.str}, valueType, false},
		{"pointer never converts", TPointer{Elem: i32}, object, false},
		{"parameter through bound", bounded, TNamed{Def: iface}, true},
		{"struct parameter to ValueType", structParam, valueType, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertsTo(tt.from, tt.to); got != tt.expect {
				t.Errorf("ConvertsTo(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.expect)
			}
		})
	}
}

func TestHasPublicDefaultConstructor(t *testing.T) {
	w := newWorld()
	abstract := &Definition{Name: "Shape", Assembly: "lib", Kind: KindClass, Abstract: true, DefaultCtor: true}
	private := &Definition{Name: "Singleton", Assembly: "lib", Kind: KindClass}

	tests := []struct {
		name string
		typ  Type
		want bool
	}{
		{"struct", TNamed{Def: w.i32}, true},
		{"object", TNamed{Def: w.object}, true},
		{"abstract class", TNamed{Def: abstract}, false},
		{"no public constructor", TNamed{Def: private}, false},
		{"value parameter", &fakeParam{key: "M::T", value: true}, true},
		{"plain parameter", &fakeParam{key: "M::T"}, false},
	}
	for _, tt := range tests {
		if got := HasPublicDefaultConstructor(tt.typ); got != tt.want {
			t.Errorf("%s: HasPublicDefaultConstructor = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNamedString(t *testing.T) {
	w := newWorld()
	list := &Definition{Namespace: "System.Collections.Generic", Name: "List", Assembly: "corlib", Kind: KindClass,
		TypeParams: []Param{&fakeParam{key: "List`1::T"}}}

	if got := (TNamed{Def: w.i32}).String(); got != "int" {
		t.Errorf("Int32 displays as %q, want int", got)
	}
	if got := (TNamed{Def: list, Args: []Type{TNamed{Def: w.str}}}).String(); got != "System.Collections.Generic.List<string>" {
		t.Errorf("List<string> displays as %q", got)
	}
	if got := list.FullName(); got != "System.Collections.Generic.List`1" {
		t.Errorf("FullName() = %q", got)
	}
	if !IsWellKnown(TNamed{Def: w.marker}, config.UnmanagedMarkerTypeName) {
		t.Errorf("marker not recognized as well-known")
	}
}

func TestSplitFullName(t *testing.T) {
	tests := []struct{ in, ns, name string }{
		{"System.ValueType", "System", "ValueType"},
		{"Point", "", "Point"},
		{"A.B.List`1", "A.B", "List"},
	}
	for _, tt := range tests {
		ns, name := SplitFullName(tt.in)
		if ns != tt.ns || name != tt.name {
			t.Errorf("SplitFullName(%q) = (%q, %q), want (%q, %q)", tt.in, ns, name, tt.ns, tt.name)
		}
	}
}

func TestApplySubstIsSimultaneous(t *testing.T) {
	w := newWorld()
	pairDef := &Definition{Name: "Pair", Assembly: "app", Kind: KindClass}
	tp, up := &fakeParam{key: "M#0"}, &fakeParam{key: "M#1"}
	pair := TNamed{Def: pairDef, Args: []Type{tp, up}}

	swapped := pair.Apply(Subst{"M#0": up, "M#1": tp})
	want := TNamed{Def: pairDef, Args: []Type{up, tp}}
	if !Identical(swapped, want) {
		t.Errorf("swap produced %s, want %s", swapped, want)
	}

	chained := TPointer{Elem: tp}.Apply(Subst{"M#0": up, "M#1": TNamed{Def: w.i32}})
	if !Identical(chained, TPointer{Elem: up}) {
		t.Errorf("replacement was rewritten again: %s", chained)
	}
}
