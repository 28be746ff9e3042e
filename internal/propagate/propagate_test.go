package propagate

import (
	"errors"
	"testing"

	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/diagnostics"
	"github.com/funvibe/typecon/internal/typesystem"
)

var (
	baseOwner    = constraints.Owner{Name: "Base.M", Kind: constraints.OwnerMethod}
	derivedOwner = constraints.Owner{Name: "Derived.M", Kind: constraints.OwnerMethod}
)

func unmanagedBase() []*constraints.TypeParameter {
	return []*constraints.TypeParameter{
		constraints.FromDeclaration(baseOwner, 0, "T", constraints.Flags{Unmanaged: true}, nil),
	}
}

func TestOverrideCopiesUnmanaged(t *testing.T) {
	bag := diagnostics.NewBag()
	fresh, err := Override(unmanagedBase(), Request{
		Member: derivedOwner,
		Names:  []string{"T"},
		Sink:   bag,
	})
	if err != nil {
		t.Fatal(err)
	}
	tp := fresh[0]
	if !tp.HasUnmanagedConstraint() || !tp.HasValueTypeConstraint() || tp.HasConstructorConstraint() {
		t.Errorf("override flags = %+v, want unmanaged and value type without constructor", tp.Flags())
	}
	if tp.Origin() != constraints.OriginPropagated || tp.Owner() != derivedOwner {
		t.Errorf("override parameter origin %s owner %v", tp.Origin(), tp.Owner())
	}
	if bag.Len() != 0 {
		t.Errorf("unexpected diagnostics: %v", bag.Errors())
	}
}

func TestImplementRenamesAndSubstitutes(t *testing.T) {
	iface := constraints.Owner{Name: "IRunner.Run", Kind: constraints.OwnerMethod}
	a := constraints.NewTypeParameter(iface, 0, "A")
	b := constraints.NewTypeParameter(iface, 1, "B")
	_ = a.Bind(constraints.Flags{Unmanaged: true}, nil, constraints.OriginSource)
	_ = b.Bind(constraints.Flags{}, []typesystem.Type{a}, constraints.OriginSource)

	fresh, err := Implement([]*constraints.TypeParameter{a, b}, Request{
		Member: constraints.Owner{Name: "Runner.Run", Kind: constraints.OwnerMethod},
		Names:  []string{"X", "Y"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if fresh[0].Name() != "X" || fresh[1].Name() != "Y" {
		t.Errorf("names = %s, %s", fresh[0].Name(), fresh[1].Name())
	}
	bounds := fresh[1].ExplicitConstraintTypes()
	if len(bounds) != 1 || bounds[0] != typesystem.Type(fresh[0]) {
		t.Errorf("Y's bound = %v, want X", bounds)
	}
	if !fresh[1].IsKnownValueType() {
		t.Errorf("Y : X with X unmanaged is not a known value type")
	}
}

func TestOverrideOuterSubstitution(t *testing.T) {
	container := constraints.FromDeclaration(constraints.Owner{Name: "Base`1"}, 0, "K", constraints.Flags{}, nil)
	iface := &typesystem.Definition{Name: "IShape", Assembly: "app", Kind: typesystem.KindInterface}
	base := []*constraints.TypeParameter{
		constraints.FromDeclaration(baseOwner, 0, "T", constraints.Flags{}, []typesystem.Type{container}),
	}
	fresh, err := Override(base, Request{
		Member: derivedOwner,
		Names:  []string{"T"},
		Outer:  typesystem.Subst{container.Key(): typesystem.TNamed{Def: iface}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := fresh[0].ExplicitConstraintTypes()[0].String(); got != "IShape" {
		t.Errorf("bound = %s, want IShape", got)
	}
}

func TestOverrideRedeclaration(t *testing.T) {
	tests := []struct {
		name     string
		declared constraints.Flags
		want     int
	}{
		{"same constraints are redundant", constraints.Flags{Unmanaged: true}, 0},
		{"different constraints", constraints.Flags{ReferenceType: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bag := diagnostics.NewBag()
			decl := constraints.FromDeclaration(derivedOwner, 0, "T", tt.declared, nil)
			fresh, err := Override(unmanagedBase(), Request{
				Member:   derivedOwner,
				Names:    []string{"T"},
				Declared: []*constraints.TypeParameter{decl},
				Location: diagnostics.Location{File: "a.cs", Line: 7},
				Sink:     bag,
			})
			if err != nil {
				t.Fatal(err)
			}
			if !fresh[0].HasUnmanagedConstraint() {
				t.Errorf("base constraints were not kept")
			}
			errs := bag.Errors()
			if len(errs) != tt.want {
				t.Fatalf("got %d diagnostics %v, want %d", len(errs), errs, tt.want)
			}
			if tt.want > 0 && errs[0].Code != diagnostics.ErrU007 {
				t.Errorf("reported %s, want U007", errs[0].Code)
			}
		})
	}
}

func TestOverrideArityMismatch(t *testing.T) {
	_, err := Override(unmanagedBase(), Request{Member: derivedOwner, Names: []string{"T", "U"}})
	if !errors.Is(err, ErrArityMismatch) {
		t.Errorf("Override() error = %v, want ErrArityMismatch", err)
	}
}

func TestOverrideOfUnsupportedBase(t *testing.T) {
	base := []*constraints.TypeParameter{
		constraints.FromImported(constraints.Owner{Name: "Lib.Base.M"}, 0, "T",
			constraints.ImportedShape{ValueType: true, Malformed: true, Reason: "modopt marker"}),
	}
	bag := diagnostics.NewBag()
	fresh, err := Override(base, Request{Member: derivedOwner, Names: []string{"T"}, Sink: bag})
	if err != nil {
		t.Fatal(err)
	}
	if !fresh[0].IsUnsupported() {
		t.Errorf("override of an unsupported parameter is supported")
	}
	errs := bag.Errors()
	if len(errs) != 1 || errs[0].Code != diagnostics.ErrC007 {
		t.Errorf("diagnostics = %v, want one C007", errs)
	}
}

func TestClosure(t *testing.T) {
	method := unmanagedBase()
	closureOwner := constraints.Owner{Name: "Base.<>c__DisplayClass0_0`1", Kind: constraints.OwnerType}
	fresh, subst := Closure(method, closureOwner)

	tp := fresh[0]
	if tp == method[0] {
		t.Fatal("closure shares the method's parameter")
	}
	if !tp.HasUnmanagedConstraint() || !tp.HasValueTypeConstraint() || tp.HasConstructorConstraint() {
		t.Errorf("closure flags = %+v", tp.Flags())
	}
	if tp.Origin() != constraints.OriginSynthesized {
		t.Errorf("Origin() = %s, want synthesized", tp.Origin())
	}
	if got := method[0].Apply(subst); got != typesystem.Type(tp) {
		t.Errorf("subst maps T to %v, want the closure parameter", got)
	}
}
