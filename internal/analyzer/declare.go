package analyzer

import (
	"fmt"

	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/diagnostics"
	"github.com/funvibe/typecon/internal/image"
	"github.com/funvibe/typecon/internal/metadata"
	"github.com/funvibe/typecon/internal/symbols"
	"github.com/funvibe/typecon/internal/typesystem"
	"github.com/funvibe/typecon/internal/universe"
)

// Declare builds the symbol table for u. The compilation is defined first,
// then its references in order; images supplies the referenced assemblies
// loaded from files. Errors returned here are structural (a type defined
// twice); everything else is reported to the sink.
func (a *Analyzer) Declare(u *universe.Universe, images map[string]*image.Image) error {
	a.version = u.Version()
	a.compilation = u.Compilation.Name
	a.references = u.Compilation.References

	decls := make(map[string]*universe.AssemblyDecl, len(u.Assemblies))
	for i := range u.Assemblies {
		decls[u.Assemblies[i].Name] = &u.Assemblies[i]
	}

	if _, err := a.table.DefineAssembly(u.Compilation.Name, false); err != nil {
		return err
	}
	for _, name := range u.Compilation.References {
		decl := decls[name]
		img := images[name]
		corlib := decl.Corlib || img != nil && img.Corlib
		if _, err := a.table.DefineAssembly(name, corlib); err != nil {
			return err
		}
		if decl.Builtin {
			if err := a.table.InitCorlib(name); err != nil {
				return err
			}
		}
		if img != nil {
			a.images[name] = img
			if err := a.declareImageTypes(name, img); err != nil {
				return err
			}
			continue
		}
		a.images[name] = image.New(name)
		a.images[name].Corlib = corlib
		if err := a.declareTypes(name, decl.Types, false); err != nil {
			return err
		}
	}
	if err := a.declareTypes(u.Compilation.Name, u.Compilation.Types, true); err != nil {
		return err
	}

	// Type parameters before structure: bases and fields may mention them.
	for _, e := range a.types {
		a.bindTypeParams(e)
	}
	for _, e := range a.types {
		a.resolveStructure(e)
	}
	for _, e := range a.types {
		if err := a.declareMembers(e); err != nil {
			return err
		}
	}
	for _, name := range u.Compilation.References {
		if img := images[name]; img != nil {
			if err := a.declareImageMembers(name, img); err != nil {
				return err
			}
			continue
		}
		a.describe(a.images[name], name)
	}

	a.logger.Debug("declared universe",
		"compilation", a.compilation,
		"references", len(a.references),
		"types", len(a.types),
		"members", len(a.members))
	return nil
}

func (a *Analyzer) declareTypes(assembly string, decls []universe.TypeDecl, compiled bool) error {
	for i := range decls {
		d := &decls[i]
		kind, _ := typesystem.ParseTypeKind(d.Kind)
		def := &typesystem.Definition{
			Namespace:   d.Namespace,
			Name:        d.Name,
			Assembly:    assembly,
			Kind:        kind,
			Sealed:      d.Sealed || kind != typesystem.KindClass && kind != typesystem.KindInterface,
			Abstract:    d.Abstract || kind == typesystem.KindInterface,
			DefaultCtor: d.DefaultCtor != nil && *d.DefaultCtor,
		}
		names := make([]string, len(d.TypeParams))
		for j, tp := range d.TypeParams {
			names[j] = tp.Name
		}
		e := &typeEntry{def: def, assembly: assembly, compiled: compiled, decl: d}
		if err := a.defineType(e, names); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) declareImageTypes(assembly string, img *image.Image) error {
	for i := range img.Types {
		td := &img.Types[i]
		kind, ok := typesystem.ParseTypeKind(td.Kind)
		def := &typesystem.Definition{
			Namespace:   td.Namespace,
			Name:        td.Name,
			Assembly:    assembly,
			Kind:        kind,
			Sealed:      td.Sealed,
			Abstract:    td.Abstract,
			DefaultCtor: td.DefaultCtor,
			Unsupported: !ok,
		}
		e := &typeEntry{def: def, assembly: assembly, image: td}
		if err := a.defineType(e, td.TypeParams); err != nil {
			return err
		}
	}
	return nil
}

// defineType creates the entry's placeholder parameters and registers it.
func (a *Analyzer) defineType(e *typeEntry, paramNames []string) error {
	kind := constraints.OwnerType
	if e.def.Kind == typesystem.KindDelegate {
		kind = constraints.OwnerDelegate
	}
	owner := constraints.Owner{
		Name:     metadata.TypeName{Namespace: e.def.Namespace, Name: e.def.Name, Arity: len(paramNames)}.FullName(),
		Kind:     kind,
		Assembly: e.assembly,
	}
	e.params = make([]*constraints.TypeParameter, len(paramNames))
	for i, name := range paramNames {
		e.params[i] = constraints.NewTypeParameter(owner, i, name)
	}
	setTypeParams(e.def, e.params)

	if err := a.table.DefineType(e.def); err != nil {
		return err
	}
	a.types = append(a.types, e)
	a.byName[entryKey(e.assembly, e.qualified())] = e
	return nil
}

func (a *Analyzer) bindTypeParams(e *typeEntry) {
	if len(e.params) == 0 {
		return
	}
	owner := e.params[0].Owner()
	switch {
	case e.image != nil:
		e.params = a.importParams(owner, e.params, nil, a.images[e.assembly], diagnostics.Location{})
	case e.compiled:
		e.clauses = a.bindSource(e.params, e.decl.TypeParams, newScope(e.params))
	default:
		e.params = a.bindReference(owner, e.params, nil, e.decl.TypeParams, newScope(e.params), e.assembly, diagnostics.ParseLocation(e.decl.At))
	}
	setTypeParams(e.def, e.params)
}

// resolveStructure binds base, interfaces and fields.
func (a *Analyzer) resolveStructure(e *typeEntry) {
	sc := newScope(e.params)
	if e.image != nil {
		var loc diagnostics.Location
		if e.image.Base != nil {
			e.def.Base = a.typeOfName(*e.image.Base, sc, loc)
		}
		for _, iface := range e.image.Interfaces {
			e.def.Interfaces = append(e.def.Interfaces, a.typeOfName(iface, sc, loc))
		}
		for _, f := range e.image.Fields {
			e.def.Fields = append(e.def.Fields, typesystem.Field{Name: f.Name, Type: a.typeOfName(f.Type, sc, loc), Static: f.Static})
		}
		return
	}

	loc := diagnostics.ParseLocation(e.decl.At)
	if e.decl.Base != "" {
		e.def.Base = a.resolveType(e.decl.Base, sc, loc)
	} else {
		e.def.Base = a.defaultBase(e.def)
	}
	for _, iface := range e.decl.Interfaces {
		e.def.Interfaces = append(e.def.Interfaces, a.resolveType(iface, sc, loc))
	}
	for _, f := range e.decl.Fields {
		e.def.Fields = append(e.def.Fields, typesystem.Field{Name: f.Name, Type: a.resolveType(f.Type, sc, loc), Static: f.Static})
	}
}

var memberKinds = map[string]constraints.OwnerKind{
	"method":         constraints.OwnerMethod,
	"delegate":       constraints.OwnerDelegate,
	"local_function": constraints.OwnerLocalFunction,
}

func (a *Analyzer) declareMembers(e *typeEntry) error {
	if e.image != nil {
		return nil
	}
	for i := range e.decl.Members {
		md := &e.decl.Members[i]
		owner := constraints.Owner{Name: e.qualified() + "." + md.Name, Kind: memberKinds[md.Kind], Assembly: e.assembly}
		params := make([]*constraints.TypeParameter, len(md.TypeParams))
		for j, tp := range md.TypeParams {
			params[j] = constraints.NewTypeParameter(owner, j, tp.Name)
		}
		sc := newScope(e.params, params)

		me := &memberEntry{container: e, compiled: e.compiled, decl: md, kind: md.Kind}
		if e.compiled {
			me.clauses = a.bindSource(params, md.TypeParams, sc)
			if forbidsConstraints(md) {
				me.declared = make([]*constraints.TypeParameter, len(params))
				for j, c := range me.clauses {
					if len(c) > 0 {
						me.declared[j] = params[j]
					}
				}
			}
		} else {
			params = a.bindReference(owner, params, e.params, md.TypeParams, sc, e.assembly, diagnostics.ParseLocation(md.At))
		}
		me.member = &symbols.Member{
			Name:       md.Name,
			Owner:      owner,
			Container:  e.def,
			Assembly:   e.assembly,
			TypeParams: params,
			Overrides:  md.Override,
			Implements: md.Implements,
			Explicit:   md.Explicit,
		}
		if err := a.defineMember(me); err != nil {
			return err
		}
	}
	return nil
}

// declareImageMembers registers the generic members stored in an image.
func (a *Analyzer) declareImageMembers(assembly string, img *image.Image) error {
	for i := range img.Members {
		md := &img.Members[i]
		container, ok := a.byName[entryKey(assembly, md.Container)]
		if !ok {
			return fmt.Errorf("image %s: member %s: unknown container %s", assembly, md.Name, md.Container)
		}
		owner := constraints.Owner{Name: md.QualifiedName(), Kind: memberKinds[md.Kind], Assembly: assembly}
		params := make([]*constraints.TypeParameter, len(md.TypeParams))
		for j, name := range md.TypeParams {
			params[j] = constraints.NewTypeParameter(owner, j, name)
		}
		params = a.importParams(owner, params, container.params, img, diagnostics.Location{})
		me := &memberEntry{
			container: container,
			kind:      md.Kind,
			member: &symbols.Member{
				Name:       md.Name,
				Owner:      owner,
				Container:  container.def,
				Assembly:   assembly,
				TypeParams: params,
				Overrides:  md.Overrides,
				Implements: md.Implements,
				Explicit:   md.Explicit,
			},
		}
		if err := a.defineMember(me); err != nil {
			return err
		}
	}
	return nil
}

// inheritsConstraints reports a member whose constraints come from the member
// it overrides or implements, implicitly or explicitly.
func inheritsConstraints(md *universe.MemberDecl) bool {
	return md.Override != "" || md.Implements != ""
}

// forbidsConstraints reports a member that may not write constraint clauses
// of its own: overrides and explicit implementations.
func forbidsConstraints(md *universe.MemberDecl) bool {
	return md.Override != "" || md.Explicit && md.Implements != ""
}

func (a *Analyzer) defineMember(me *memberEntry) error {
	if err := a.table.DefineMember(me.member); err != nil {
		return err
	}
	a.members = append(a.members, me)
	a.byOwner[me.member.Owner.Name] = me
	return nil
}
