// Package propagate copies constraint sets from base members onto the
// members that override or implement them, and onto closure types that
// capture a generic method's type parameters.
package propagate

import (
	"errors"
	"fmt"

	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/diagnostics"
	"github.com/funvibe/typecon/internal/typesystem"
)

var ErrArityMismatch = errors.New("type parameter count differs from the base member")

// Request describes the member receiving constraints.
type Request struct {
	Member constraints.Owner
	Names  []string
	// Declared holds the member's own bound declaration per position, nil
	// where the member wrote no constraint clause.
	Declared []*constraints.TypeParameter
	// Outer maps the base's containing type parameters to the arguments the
	// member's containing type supplies for them.
	Outer    typesystem.Subst
	Location diagnostics.Location
	Sink     diagnostics.Sink
}

// Override gives the overriding member fresh parameters carrying the base
// method's constraints.
func Override(base []*constraints.TypeParameter, req Request) ([]*constraints.TypeParameter, error) {
	return propagate(base, req)
}

// Implement is Override for interface members, implicit or explicit.
func Implement(iface []*constraints.TypeParameter, req Request) ([]*constraints.TypeParameter, error) {
	return propagate(iface, req)
}

func propagate(base []*constraints.TypeParameter, req Request) ([]*constraints.TypeParameter, error) {
	if len(base) != len(req.Names) {
		return nil, fmt.Errorf("%s: %w (%d, base has %d)", req.Member.Name, ErrArityMismatch, len(req.Names), len(base))
	}

	fresh := make([]*constraints.TypeParameter, len(base))
	subst := make(typesystem.Subst, len(base)+len(req.Outer))
	for k, v := range req.Outer {
		subst[k] = v
	}
	for i, name := range req.Names {
		fresh[i] = constraints.NewTypeParameter(req.Member, i, name)
		subst[base[i].Key()] = fresh[i]
	}
	for i, b := range base {
		if err := fresh[i].BindCopy(b, subst, constraints.OriginPropagated); err != nil {
			return nil, err
		}
	}

	reported := false
	for i, decl := range req.Declared {
		if decl == nil || i >= len(fresh) {
			continue
		}
		if !constraints.SameConstraints(fresh[i], decl, nil) && !reported && req.Sink != nil {
			req.Sink.Report(diagnostics.NewError(diagnostics.ErrU007, req.Location))
			reported = true
		}
	}
	for i, p := range fresh {
		if p.IsUnsupported() && req.Sink != nil {
			req.Sink.Report(diagnostics.NewError(diagnostics.ErrC007, req.Location, base[i].String()))
		}
	}
	return fresh, nil
}

// Closure synthesizes the type parameters of a closure class capturing
// method's parameters. The returned substitution rewrites captured types
// from the method's parameters to the closure's.
func Closure(method []*constraints.TypeParameter, closure constraints.Owner) ([]*constraints.TypeParameter, typesystem.Subst) {
	fresh := make([]*constraints.TypeParameter, len(method))
	subst := make(typesystem.Subst, len(method))
	for i, p := range method {
		fresh[i] = constraints.NewTypeParameter(closure, i, p.Name())
		subst[p.Key()] = fresh[i]
	}
	for i, p := range method {
		// Fresh parameters cannot already be bound.
		_ = fresh[i].BindCopy(p, subst, constraints.OriginSynthesized)
	}
	return fresh, subst
}
