package analyzer

import (
	"strings"

	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/diagnostics"
	"github.com/funvibe/typecon/internal/metadata"
	"github.com/funvibe/typecon/internal/symbols"
	"github.com/funvibe/typecon/internal/typesystem"
)

// scope maps type parameter names to the parameters visible at a site.
type scope map[string]typesystem.Type

func newScope(params ...[]*constraints.TypeParameter) scope {
	sc := make(scope)
	for _, ps := range params {
		for _, p := range ps {
			sc[p.Name()] = p
		}
	}
	return sc
}

// resolveType binds a type expression: a type parameter in scope, a keyword
// alias, or a metadata-style name ("System.IComparable<T>", "[Lib]N.S"),
// optionally followed by '*'. Unresolvable names are reported and come back
// as error types so that checks against them are skipped.
func (a *Analyzer) resolveType(expr string, sc scope, loc diagnostics.Location) typesystem.Type {
	expr = strings.TrimSpace(expr)
	depth := 0
	for strings.HasSuffix(expr, "*") {
		expr = strings.TrimSpace(strings.TrimSuffix(expr, "*"))
		depth++
	}

	var t typesystem.Type
	if p, ok := sc[expr]; ok {
		t = p
	} else if name, err := metadata.ParseTypeName(expr); err != nil {
		a.report(diagnostics.ErrR001, loc, expr)
		t = typesystem.TError{Name: expr}
	} else {
		t = a.typeOfName(name, sc, loc)
	}

	for ; depth > 0; depth-- {
		t = typesystem.TPointer{Elem: t}
	}
	return t
}

// typeOfName binds a parsed name. It serves both universe expressions and
// the references stored in images.
func (a *Analyzer) typeOfName(n metadata.TypeName, sc scope, loc diagnostics.Location) typesystem.Type {
	if n.Param != "" {
		if p, ok := sc[n.Param]; ok {
			return p
		}
		a.report(diagnostics.ErrR001, loc, n.Param)
		return typesystem.TError{Name: n.Param}
	}
	if len(n.Args) == 0 && strings.HasSuffix(n.Name, "*") {
		n.Name = strings.TrimSuffix(n.Name, "*")
		return typesystem.TPointer{Elem: a.typeOfName(n, sc, loc)}
	}
	if n.Assembly == "" && n.Namespace == "" && n.Arity == 0 {
		if p, ok := sc[n.Name]; ok {
			return p
		}
	}

	display := displayName(n)
	var r symbols.Result
	if n.Assembly != "" {
		r = a.table.LookupIn(n.Assembly, n.FullName())
	} else {
		r = a.table.Lookup(n.FullName())
	}
	switch r.Kind {
	case symbols.NotFound:
		a.report(diagnostics.ErrR001, loc, display)
		return typesystem.TError{Name: display}
	case symbols.Ambiguous:
		a.report(diagnostics.ErrR002, loc, display, candidateList(r.Candidates))
		return typesystem.TError{Name: display}
	}

	t := typesystem.TNamed{Def: r.Definition}
	for _, arg := range n.Args {
		t.Args = append(t.Args, a.typeOfName(arg, sc, loc))
	}
	return t
}

// displayName renders a name the way a user wrote it: aliases kept, no
// arity suffix.
func displayName(n metadata.TypeName) string {
	name := n.Name
	if n.Namespace != "" {
		name = n.Namespace + "." + name
	}
	if len(n.Args) == 0 {
		return name
	}
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = displayName(arg)
	}
	return name + "<" + strings.Join(args, ", ") + ">"
}

func candidateList(defs []*typesystem.Definition) string {
	quoted := make([]string, len(defs))
	for i, d := range defs {
		quoted[i] = "'" + metadata.NameOf(typesystem.TNamed{Def: d}).String() + "'"
	}
	return strings.Join(quoted, " and ")
}

// defaultBase is the implicit base of a type declared without one.
func (a *Analyzer) defaultBase(def *typesystem.Definition) typesystem.Type {
	var name string
	switch def.Kind {
	case typesystem.KindInterface:
		return nil
	case typesystem.KindStruct:
		name = config.ValueTypeName
	case typesystem.KindEnum:
		name = config.EnumTypeName
	default:
		if typesystem.IsWellKnown(typesystem.TNamed{Def: def}, config.ObjectTypeName) {
			return nil
		}
		name = config.ObjectTypeName
	}
	return a.wellKnownType(name)
}

// wellKnownType returns the first definition of a predefined type, or nil.
func (a *Analyzer) wellKnownType(fullName string) typesystem.Type {
	r := a.table.Lookup(fullName)
	if r.Kind == symbols.NotFound {
		return nil
	}
	return typesystem.TNamed{Def: r.Candidates[0]}
}

// typeParams returns a definition's parameters in the constraint model.
func typeParams(def *typesystem.Definition) []*constraints.TypeParameter {
	out := make([]*constraints.TypeParameter, 0, len(def.TypeParams))
	for _, p := range def.TypeParams {
		if tp, ok := p.(*constraints.TypeParameter); ok {
			out = append(out, tp)
		}
	}
	return out
}

func setTypeParams(def *typesystem.Definition, params []*constraints.TypeParameter) {
	def.TypeParams = make([]typesystem.Param, len(params))
	for i, p := range params {
		def.TypeParams[i] = p
	}
}

// typeDisplay renders a generic definition as "S<T, U>".
func typeDisplay(def *typesystem.Definition) string {
	name := def.Name
	if def.Namespace != "" {
		name = def.Namespace + "." + name
	}
	if len(def.TypeParams) == 0 {
		return name
	}
	names := make([]string, len(def.TypeParams))
	for i, p := range def.TypeParams {
		names[i] = p.String()
	}
	return name + "<" + strings.Join(names, ", ") + ">"
}
