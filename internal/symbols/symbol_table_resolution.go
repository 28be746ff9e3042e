package symbols

import (
	"strings"

	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/metadata"
	"github.com/funvibe/typecon/internal/typesystem"
)

// ResultKind distinguishes a missing name from an ambiguous one.
type ResultKind int

const (
	NotFound ResultKind = iota
	Found
	Ambiguous
)

// Result is the outcome of a name lookup. Candidates are in lookup order.
type Result struct {
	Kind       ResultKind
	Definition *typesystem.Definition
	Candidates []*typesystem.Definition
}

// Lookup finds a type by full name across all reachable assemblies. A name
// without an arity suffix matches definitions of any arity when no exact
// match exists. Keyword aliases (int, string) are accepted.
func (s *SymbolTable) Lookup(fqn string) Result {
	if full, ok := config.PrimitiveAliases[fqn]; ok {
		fqn = full
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []*typesystem.Definition
	for _, name := range s.order {
		found = append(found, s.assemblies[name].types[fqn]...)
	}
	if len(found) == 0 && !strings.Contains(fqn, "`") {
		for _, name := range s.order {
			for _, def := range s.assemblies[name].order {
				if len(def.TypeParams) > 0 && plainName(def) == fqn {
					found = append(found, def)
				}
			}
		}
	}
	return resultOf(found)
}

func plainName(def *typesystem.Definition) string {
	if def.Namespace == "" {
		return def.Name
	}
	return def.Namespace + "." + def.Name
}

// LookupIn finds a type in one assembly.
func (s *SymbolTable) LookupIn(assembly, fqn string) Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assemblies[assembly]
	if !ok {
		return Result{Kind: NotFound}
	}
	return resultOf(a.types[fqn])
}

func resultOf(found []*typesystem.Definition) Result {
	switch len(found) {
	case 0:
		return Result{Kind: NotFound}
	case 1:
		return Result{Kind: Found, Definition: found[0], Candidates: found}
	}
	return Result{Kind: Ambiguous, Definition: found[0], Candidates: found}
}

// Resolve is Lookup with the outcome as an error.
func (s *SymbolTable) Resolve(fqn string) (*typesystem.Definition, error) {
	r := s.Lookup(fqn)
	switch r.Kind {
	case Found:
		return r.Definition, nil
	case Ambiguous:
		asms := make([]string, len(r.Candidates))
		for i, c := range r.Candidates {
			asms[i] = c.Assembly
		}
		return nil, &typesystem.AmbiguousTypeError{Name: fqn, Assemblies: asms}
	}
	return nil, typesystem.NewSymbolNotFoundError(fqn)
}

// LookupWellKnown resolves a predefined type. The unmanaged marker is matched
// by name and arity and the first reachable candidate wins, so a marker
// defined by several references is never ambiguous. Every other well-known
// type must come from a corlib assembly.
func (s *SymbolTable) LookupWellKnown(fullName string, role typesystem.WellKnownRole) (*typesystem.Definition, error) {
	r := s.Lookup(fullName)
	if r.Kind == NotFound {
		return nil, typesystem.NewPredefinedTypeNotFoundError(fullName, role)
	}
	if role == typesystem.RoleMarker {
		return r.Candidates[0], nil
	}
	for _, c := range r.Candidates {
		if a, ok := s.Assembly(c.Assembly); ok && a.Corlib {
			return c, nil
		}
	}
	return nil, typesystem.NewPredefinedTypeNotFoundError(fullName, role)
}

// ResolveName resolves a metadata reference, preferring the assembly the
// reference names. Well-known names go through LookupWellKnown so that
// duplicated markers resolve the same way everywhere.
func (s *SymbolTable) ResolveName(ref metadata.TypeName) (*typesystem.Definition, error) {
	full := ref.FullName()
	if ref.Assembly != "" {
		if r := s.LookupIn(ref.Assembly, full); r.Kind != NotFound {
			return r.Definition, nil
		}
	}
	switch {
	case ref.Is(config.UnmanagedMarkerTypeName):
		return s.LookupWellKnown(full, typesystem.RoleMarker)
	case ref.Is(config.ValueTypeName):
		return s.LookupWellKnown(full, typesystem.RoleValueTypeBase)
	}
	return s.Resolve(full)
}

var _ metadata.TypeResolver = (*SymbolTable)(nil)
