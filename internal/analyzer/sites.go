package analyzer

import (
	"strconv"

	"github.com/funvibe/typecon/internal/checker"
	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/diagnostics"
	"github.com/funvibe/typecon/internal/symbols"
	"github.com/funvibe/typecon/internal/universe"
)

// Sites binds the compilation's use sites and pointer declarations. Sites
// whose target cannot be found are reported here and left out.
func (a *Analyzer) Sites(c universe.CompilationDecl) []checker.Site {
	var sites []checker.Site
	for _, use := range c.Uses {
		loc := diagnostics.ParseLocation(use.At)
		sc := a.scopeOf(use.In, loc)
		entity, params, ok := a.target(use.Target, len(use.TypeArgs), loc)
		if !ok {
			continue
		}
		site := checker.Site{Entity: entity, Params: params, Location: loc}
		for _, arg := range use.TypeArgs {
			site.Args = append(site.Args, a.resolveType(arg, sc, loc))
		}
		sites = append(sites, site)
	}
	for _, p := range c.Pointers {
		loc := diagnostics.ParseLocation(p.At)
		elem := a.resolveType(p.Elem, a.scopeOf(p.In, loc), loc)
		sites = append(sites, checker.Site{Pointer: elem, Location: loc})
	}
	return sites
}

// target finds the generic member or type a use instantiates.
func (a *Analyzer) target(name string, arity int, loc diagnostics.Location) (string, []*constraints.TypeParameter, bool) {
	if m, ok := a.table.Member(name); ok {
		return m.Display(), m.TypeParams, true
	}

	r := a.table.Lookup(name + "`" + strconv.Itoa(arity))
	if r.Kind == symbols.NotFound {
		r = a.table.Lookup(name)
	}
	switch r.Kind {
	case symbols.NotFound:
		a.report(diagnostics.ErrR001, loc, name)
		return "", nil, false
	case symbols.Ambiguous:
		a.report(diagnostics.ErrR002, loc, name, candidateList(r.Candidates))
		return "", nil, false
	}
	return typeDisplay(r.Definition), typeParams(r.Definition), true
}

// scopeOf returns the type parameters visible inside a member or type.
func (a *Analyzer) scopeOf(in string, loc diagnostics.Location) scope {
	if in == "" {
		return scope{}
	}
	if me, ok := a.byOwner[in]; ok {
		return newScope(typeParams(me.member.Container), me.member.TypeParams)
	}
	for _, c := range a.closures {
		if c.Owner.Name == in || c.Namespace+"."+c.Name == in {
			return newScope(c.Params)
		}
	}
	r := a.table.Lookup(in)
	if r.Kind == symbols.Found {
		return newScope(typeParams(r.Definition))
	}
	a.report(diagnostics.ErrR001, loc, in)
	return scope{}
}
