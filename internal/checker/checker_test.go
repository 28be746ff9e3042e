package checker

import (
	"context"
	"fmt"
	"testing"

	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/diagnostics"
	"github.com/funvibe/typecon/internal/typesystem"
)

type world struct {
	object, valueType, str, i32, point, named, shape, iface, circle *typesystem.Definition
}

func newWorld() *world {
	w := &world{}
	w.object = &typesystem.Definition{Namespace: "System", Name: "Object", Assembly: "corlib", Kind: typesystem.KindClass, DefaultCtor: true}
	w.valueType = &typesystem.Definition{Namespace: "System", Name: "ValueType", Assembly: "corlib", Kind: typesystem.KindClass,
		Base: typesystem.TNamed{Def: w.object}, Abstract: true}
	w.str = &typesystem.Definition{Namespace: "System", Name: "String", Assembly: "corlib", Kind: typesystem.KindClass,
		Base: typesystem.TNamed{Def: w.object}, Sealed: true}
	w.i32 = w.structDef("System", "Int32")
	w.point = w.structDef("", "Point",
		typesystem.Field{Name: "X", Type: typesystem.TNamed{Def: w.i32}},
		typesystem.Field{Name: "Y", Type: typesystem.TNamed{Def: w.i32}})
	w.named = w.structDef("", "Named", typesystem.Field{Name: "Name", Type: typesystem.TNamed{Def: w.str}})
	w.iface = &typesystem.Definition{Name: "IShape", Assembly: "app", Kind: typesystem.KindInterface}
	w.shape = &typesystem.Definition{Name: "Shape", Assembly: "app", Kind: typesystem.KindClass,
		Base: typesystem.TNamed{Def: w.object}, Abstract: true}
	w.circle = &typesystem.Definition{Name: "Circle", Assembly: "app", Kind: typesystem.KindClass,
		Base: typesystem.TNamed{Def: w.shape}, Interfaces: []typesystem.Type{typesystem.TNamed{Def: w.iface}}, DefaultCtor: true}
	return w
}

func (w *world) structDef(ns, name string, fields ...typesystem.Field) *typesystem.Definition {
	return &typesystem.Definition{Namespace: ns, Name: name, Assembly: "corlib", Kind: typesystem.KindStruct,
		Base: typesystem.TNamed{Def: w.valueType}, Fields: fields, Sealed: true}
}

func named(d *typesystem.Definition) typesystem.Type { return typesystem.TNamed{Def: d} }

func param(flags constraints.Flags, explicit ...typesystem.Type) *constraints.TypeParameter {
	return constraints.FromDeclaration(constraints.Owner{Name: "C.M", Kind: constraints.OwnerMethod}, 0, "T", flags, explicit)
}

func kinds(vs []Violation) []ViolationKind {
	out := make([]ViolationKind, len(vs))
	for i, v := range vs {
		out[i] = v.Kind
	}
	return out
}

func TestCheck(t *testing.T) {
	w := newWorld()
	unmanaged := constraints.Flags{Unmanaged: true}

	tests := []struct {
		name      string
		tp        *constraints.TypeParameter
		candidate typesystem.Type
		want      []ViolationKind
	}{
		{"unmanaged int", param(unmanaged), named(w.i32), nil},
		{"unmanaged string", param(unmanaged), named(w.str), []ViolationKind{ValTypeRequired}},
		{"unmanaged struct of ints", param(unmanaged), named(w.point), nil},
		{"unmanaged struct with string field", param(unmanaged), named(w.named), []ViolationKind{NotUnmanaged}},
		{"struct string", param(constraints.Flags{ValueType: true}), named(w.str), []ViolationKind{ValTypeRequired}},
		{"struct with string field satisfies struct", param(constraints.Flags{ValueType: true}), named(w.named), nil},
		{"class int", param(constraints.Flags{ReferenceType: true}), named(w.i32), []ViolationKind{RefTypeRequired}},
		{"class string", param(constraints.Flags{ReferenceType: true}), named(w.str), nil},
		{"interface bound satisfied", param(constraints.Flags{}, named(w.iface)), named(w.circle), nil},
		{"interface bound not satisfied", param(constraints.Flags{}, named(w.iface)), named(w.str), []ViolationKind{ConstraintTypeNotSatisfied}},
		{"new on abstract class", param(constraints.Flags{Constructor: true}), named(w.shape), []ViolationKind{NewConstraintNotSatisfied}},
		{"new on concrete class", param(constraints.Flags{Constructor: true}), named(w.circle), nil},
		{
			name:      "violations accumulate",
			tp:        param(unmanaged, named(w.iface)),
			candidate: named(w.named),
			want:      []ViolationKind{NotUnmanaged, ConstraintTypeNotSatisfied},
		},
		{
			name:      "class bound and new together",
			tp:        param(constraints.Flags{ReferenceType: true, Constructor: true}, named(w.iface)),
			candidate: named(w.i32),
			want:      []ViolationKind{RefTypeRequired, ConstraintTypeNotSatisfied},
		},
		{"pointer argument", param(unmanaged), typesystem.TPointer{Elem: named(w.i32)}, []ViolationKind{BadTypeArgument}},
		{"unresolved argument", param(unmanaged), typesystem.TError{Name: "Missing"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kinds(Check(tt.tp, tt.candidate, nil))
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Check(%s) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestCheckUnmanagedParameterArguments(t *testing.T) {
	outer := constraints.FromDeclaration(constraints.Owner{Name: "D.N"}, 0, "U", constraints.Flags{Unmanaged: true}, nil)
	structOnly := constraints.FromDeclaration(constraints.Owner{Name: "D.N"}, 1, "S", constraints.Flags{ValueType: true}, nil)
	tp := param(constraints.Flags{Unmanaged: true})

	if vs := Check(tp, outer, nil); len(vs) != 0 {
		t.Errorf("unmanaged parameter as argument: %v", kinds(vs))
	}
	got := kinds(Check(tp, structOnly, nil))
	if fmt.Sprint(got) != fmt.Sprint([]ViolationKind{NotUnmanaged}) {
		t.Errorf("struct parameter as argument: %v, want [not unmanaged]", got)
	}
}

func TestCheckUnsupportedParameter(t *testing.T) {
	w := newWorld()
	tp := constraints.FromImported(constraints.Owner{Name: "Lib.M"}, 0, "T",
		constraints.ImportedShape{ValueType: true, Malformed: true, Reason: "modopt marker"})

	got := Check(tp, named(w.str), nil)
	if len(got) != 1 || got[0].Kind != UnsupportedSymbol {
		t.Errorf("Check() = %v, want a single unsupported violation", kinds(got))
	}
}

func TestCheckBoundSubstitution(t *testing.T) {
	w := newWorld()
	owner := constraints.Owner{Name: "C.M", Kind: constraints.OwnerMethod}
	u := constraints.FromDeclaration(owner, 1, "U", constraints.Flags{}, nil)
	tp := constraints.FromDeclaration(owner, 0, "T", constraints.Flags{}, []typesystem.Type{u})

	subst := typesystem.Subst{u.Key(): named(w.iface)}
	if vs := Check(tp, named(w.circle), subst); len(vs) != 0 {
		t.Errorf("Circle : IShape reported %v", kinds(vs))
	}
	vs := Check(tp, named(w.i32), subst)
	if len(vs) != 1 || vs[0].Constraint.String() != "IShape" {
		t.Errorf("int : IShape reported %v", vs)
	}
}

func TestCheckPointer(t *testing.T) {
	w := newWorld()
	tests := []struct {
		name string
		elem typesystem.Type
		ok   bool
	}{
		{"int", named(w.i32), true},
		{"struct of ints", named(w.point), true},
		{"string", named(w.str), false},
		{"struct with string field", named(w.named), false},
		{"pointer to pointer", typesystem.TPointer{Elem: named(w.i32)}, true},
		{"unresolved", typesystem.TError{}, true},
	}
	for _, tt := range tests {
		if got := len(CheckPointer(tt.elem)) == 0; got != tt.ok {
			t.Errorf("%s: CheckPointer ok = %v, want %v", tt.name, got, tt.ok)
		}
	}
}

// M<T, U> where T : IEq<U> where U : IEq<T>, instantiated from inside M.
func TestCheckArgumentsMutualBounds(t *testing.T) {
	ieq := &typesystem.Definition{Name: "IEq", Assembly: "app", Kind: typesystem.KindInterface}
	owner := constraints.Owner{Name: "C.M", Kind: constraints.OwnerMethod}
	tp := constraints.NewTypeParameter(owner, 0, "T")
	up := constraints.NewTypeParameter(owner, 1, "U")
	if err := tp.Bind(constraints.Flags{}, []typesystem.Type{typesystem.TNamed{Def: ieq, Args: []typesystem.Type{up}}}, constraints.OriginSource); err != nil {
		t.Fatal(err)
	}
	if err := up.Bind(constraints.Flags{}, []typesystem.Type{typesystem.TNamed{Def: ieq, Args: []typesystem.Type{tp}}}, constraints.OriginSource); err != nil {
		t.Fatal(err)
	}
	params := []*constraints.TypeParameter{tp, up}

	tests := []struct {
		name string
		args []typesystem.Type
		want int
	}{
		{"same order", []typesystem.Type{tp, up}, 0},
		{"swapped", []typesystem.Type{up, tp}, 0},
		{"repeated", []typesystem.Type{tp, tp}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bag := diagnostics.NewBag()
			ok := CheckArguments("C.M<T, U>", params, tt.args, diagnostics.Location{File: "a.cs", Line: 1}, bag)
			if ok != (tt.want == 0) || bag.Len() != tt.want {
				t.Errorf("CheckArguments() = %v with %v, want %d diagnostics", ok, bag.Errors(), tt.want)
			}
		})
	}
}

func TestCheckArgumentsDiagnostics(t *testing.T) {
	w := newWorld()
	loc := diagnostics.Location{File: "a.cs", Line: 4, Column: 9}
	tp := param(constraints.Flags{Unmanaged: true})

	tests := []struct {
		name   string
		params []*constraints.TypeParameter
		args   []typesystem.Type
		want   string
	}{
		{
			name:   "boxing",
			params: []*constraints.TypeParameter{tp},
			args:   []typesystem.Type{named(w.str)},
			want:   "a.cs:4:9: error C002: The type 'string' must be a non-nullable value type in order to use it as parameter 'T' in the generic type or method 'C.M<T>'. There is no boxing conversion to 'System.ValueType'",
		},
		{
			name:   "not unmanaged",
			params: []*constraints.TypeParameter{tp},
			args:   []typesystem.Type{named(w.named)},
			want:   "a.cs:4:9: error C003: The type 'Named' cannot be a reference type, or contain reference type fields at any level of nesting, in order to use it as parameter 'T' in the generic type or method 'C.M<T>'",
		},
		{
			name:   "arity",
			params: []*constraints.TypeParameter{tp},
			args:   nil,
			want:   "a.cs:4:9: error C010: The generic type or method 'C.M<T>' requires 1 type arguments",
		},
		{
			name: "unsupported",
			params: []*constraints.TypeParameter{constraints.FromImported(constraints.Owner{Name: "Lib.M"}, 0, "T",
				constraints.ImportedShape{Malformed: true})},
			args: []typesystem.Type{named(w.i32)},
			want: "a.cs:4:9: error C006: 'C.M<T>' is not supported by the language",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bag := diagnostics.NewBag()
			if CheckArguments("C.M<T>", tt.params, tt.args, loc, bag) {
				t.Fatal("CheckArguments() = true, want false")
			}
			errs := bag.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d diagnostics %v, want 1", len(errs), errs)
			}
			if got := errs[0].Error(); got != tt.want {
				t.Errorf("diagnostic =\n  %s\nwant\n  %s", got, tt.want)
			}
		})
	}
}

func TestCheckSites(t *testing.T) {
	w := newWorld()
	tp := param(constraints.Flags{Unmanaged: true})

	var sites []Site
	for i := 0; i < 40; i++ {
		arg := named(w.i32)
		if i%4 == 0 {
			arg = named(w.str)
		}
		sites = append(sites, Site{
			Entity:   "C.M<T>",
			Params:   []*constraints.TypeParameter{tp},
			Args:     []typesystem.Type{arg},
			Location: diagnostics.Location{File: "a.cs", Line: i + 1},
		})
	}
	sites = append(sites, Site{Pointer: named(w.named), Location: diagnostics.Location{File: "a.cs", Line: 100}})

	bag := diagnostics.NewBag()
	failed, err := CheckSites(context.Background(), sites, bag, 3)
	if err != nil {
		t.Fatal(err)
	}
	if failed != 11 {
		t.Errorf("CheckSites() failed = %d, want 11", failed)
	}
	if bag.Len() != 11 {
		t.Errorf("got %d diagnostics, want 11", bag.Len())
	}
	last := bag.Errors()[10]
	if last.Code != diagnostics.ErrC008 {
		t.Errorf("pointer site reported %s, want C008", last.Code)
	}
}

func TestCheckSitesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := CheckSites(ctx, []Site{{Entity: "C.M"}}, diagnostics.NewBag(), 1)
	if err == nil {
		t.Errorf("CheckSites() on a cancelled context returned no error")
	}
}
