package analyzer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/diagnostics"
	"github.com/funvibe/typecon/internal/image"
	"github.com/funvibe/typecon/internal/metadata"
	"github.com/funvibe/typecon/internal/symbols"
	"github.com/funvibe/typecon/internal/typesystem"
	"github.com/funvibe/typecon/internal/universe"
)

// clauses binds the constraint list of one declared parameter.
func (a *Analyzer) clauses(decl universe.TypeParamDecl, sc scope) []constraints.Clause {
	out := make([]constraints.Clause, 0, len(decl.Constraints))
	for i, text := range decl.Constraints {
		at := decl.At
		if i < len(decl.ConstraintsAt) && decl.ConstraintsAt[i] != "" {
			at = decl.ConstraintsAt[i]
		}
		loc := diagnostics.ParseLocation(at)
		text = strings.TrimSpace(text)

		c := constraints.Clause{Kind: constraints.ClauseType, Location: loc}
		switch text {
		case config.ClassKeyword:
			c.Kind = constraints.ClauseClass
		case config.StructKeyword:
			c.Kind = constraints.ClauseStruct
		case config.NewKeyword:
			c.Kind = constraints.ClauseNew
		case config.UnmanagedConstraintKeyword:
			// A type named "unmanaged" in scope takes precedence over the keyword.
			if _, ok := sc[text]; !ok && a.table.Lookup(text).Kind == symbols.NotFound {
				c.Kind = constraints.ClauseUnmanaged
			}
		}
		if c.Kind == constraints.ClauseType {
			c.Type = a.resolveType(text, sc, loc)
		}
		out = append(out, c)
	}
	return out
}

// bindSource binds compilation parameters from their clauses. The clauses
// are kept for declaration validation.
func (a *Analyzer) bindSource(params []*constraints.TypeParameter, decls []universe.TypeParamDecl, sc scope) [][]constraints.Clause {
	all := make([][]constraints.Clause, len(params))
	for i, p := range params {
		all[i] = a.clauses(decls[i], sc)
		flags, explicit := constraints.FlagsFromClauses(all[i])
		if err := p.Bind(flags, explicit, constraints.OriginSource); err != nil {
			a.logger.Warn("binding type parameter", "param", p.Key(), "err", err)
		}
	}
	return all
}

// bindReference gives a declared reference member the parameters a consumer
// of its metadata would see: declared constraints are encoded, raw rows are
// taken as written, and the rows are imported back. If the reference itself
// cannot encode (a predefined type is missing) the source binding is kept.
func (a *Analyzer) bindReference(owner constraints.Owner, params, outer []*constraints.TypeParameter, decls []universe.TypeParamDecl, sc scope, assembly string, at diagnostics.Location) []*constraints.TypeParameter {
	for i, p := range params {
		if decls[i].Metadata != nil {
			continue
		}
		flags, explicit := constraints.FlagsFromClauses(a.clauses(decls[i], sc))
		if err := p.Bind(flags, explicit, constraints.OriginSource); err != nil {
			a.logger.Warn("binding type parameter", "param", p.Key(), "err", err)
		}
	}

	img := a.images[assembly]
	for i, p := range params {
		loc := diagnostics.ParseLocation(decls[i].At)
		if decls[i].Metadata != nil {
			raw, err := rawFromDecl(owner.Name, i, decls[i])
			if err != nil {
				a.report(diagnostics.ErrR001, loc, err.Error())
				continue
			}
			_ = img.WriteTypeParameter(raw)
			continue
		}
		enc, err := metadata.Encode(p, a.table)
		if err != nil {
			a.reportPredefined(err, loc)
			a.logger.Debug("reference keeps source constraints", "owner", owner.Name, "err", err)
			for j, q := range params {
				if q.IsBound() {
					continue
				}
				if decls[j].Metadata != nil {
					a.bindRaw(q, owner.Name, decls[j], sc)
					continue
				}
				_ = q.Bind(constraints.Flags{}, nil, constraints.OriginSource)
			}
			return params
		}
		_ = img.WriteTypeParameter(enc.Raw(owner.Name, p.Name(), p.Ordinal()))
	}
	return a.importParams(owner, params, outer, img, at)
}

// bindRaw binds p straight from its raw row. It serves references whose
// rows cannot all be written, so a malformed row still leaves p unsupported.
func (a *Analyzer) bindRaw(p *constraints.TypeParameter, owner string, decl universe.TypeParamDecl, sc scope) {
	raw, err := rawFromDecl(owner, p.Ordinal(), decl)
	if err != nil {
		_ = p.Bind(constraints.Flags{}, nil, constraints.OriginSource)
		return
	}
	shape, refs, err := metadata.DecodeTypeParameter(raw, a.table)
	if err != nil {
		a.logger.Debug("decoding raw parameter", "param", p.Key(), "err", err)
	}
	for _, ref := range refs {
		shape.Explicit = append(shape.Explicit, a.rawRef(ref, sc))
	}
	_ = p.BindImported(shape)
}

// rawRef resolves a row's type reference without reporting; unresolvable
// references become error types.
func (a *Analyzer) rawRef(ref metadata.TypeName, sc scope) typesystem.Type {
	if ref.Param != "" {
		if p, ok := sc[ref.Param]; ok {
			return p
		}
		return typesystem.TError{Name: ref.Param}
	}
	r := a.table.Lookup(ref.FullName())
	if ref.Assembly != "" {
		r = a.table.LookupIn(ref.Assembly, ref.FullName())
	}
	if r.Kind != symbols.Found {
		return typesystem.TError{Name: ref.FullName()}
	}
	t := typesystem.TNamed{Def: r.Definition}
	for _, arg := range ref.Args {
		t.Args = append(t.Args, a.rawRef(arg, sc))
	}
	return t
}

// importParams replaces placeholders with the parameters decoded from the
// rows stored for owner. Missing rows mean an unconstrained parameter. outer
// are the containing type's parameters.
func (a *Analyzer) importParams(owner constraints.Owner, params, outer []*constraints.TypeParameter, r metadata.Reader, loc diagnostics.Location) []*constraints.TypeParameter {
	raws, err := r.TypeParameters(owner.Name)
	if err != nil {
		raws = nil
	}
	have := make(map[int]bool, len(raws))
	for _, raw := range raws {
		have[raw.Ordinal] = true
	}
	for i, p := range params {
		if !have[i] {
			raws = append(raws, metadata.RawTypeParameter{Owner: owner.Name, Name: p.Name(), Ordinal: i})
		}
	}

	imported, err := a.importer.Import(owner, raws, outer...)
	if err != nil {
		a.reportImport(err, loc)
	}
	if len(imported) != len(params) {
		a.logger.Warn("imported parameter count differs", "owner", owner.Name, "want", len(params), "got", len(imported))
		return params
	}
	// Rows may come in any order; parameters are positional.
	out := make([]*constraints.TypeParameter, len(params))
	for _, p := range imported {
		if p.Ordinal() >= 0 && p.Ordinal() < len(out) {
			out[p.Ordinal()] = p
		}
	}
	for i := range out {
		if out[i] == nil {
			return params
		}
	}
	return out
}

func (a *Analyzer) reportImport(err error, loc diagnostics.Location) {
	var ie *metadata.ImportError
	if !errors.As(err, &ie) {
		a.logger.Warn("import failed", "err", err)
		return
	}
	for _, e := range ie.Errs {
		if !a.reportPredefined(e, loc) {
			a.logger.Debug("import error", "owner", ie.Owner, "err", e)
		}
	}
}

// reportPredefined reports a missing predefined type, if err is one.
func (a *Analyzer) reportPredefined(err error, loc diagnostics.Location) bool {
	var missing *typesystem.PredefinedTypeNotFoundError
	if !errors.As(err, &missing) {
		return false
	}
	a.report(diagnostics.ErrU001, loc, missing.Name)
	return true
}

var rawFlags = map[string]metadata.GenericParamAttributes{
	"class":     metadata.AttrReferenceTypeConstraint,
	"valuetype": metadata.AttrNotNullableValueTypeConstraint,
	"ctor":      metadata.AttrDefaultConstructorConstraint,
}

// rawFromDecl builds a row from a raw metadata declaration.
func rawFromDecl(owner string, ordinal int, decl universe.TypeParamDecl) (metadata.RawTypeParameter, error) {
	raw := metadata.RawTypeParameter{Owner: owner, Name: decl.Name, Ordinal: ordinal}
	md := decl.Metadata
	for _, f := range md.Flags {
		raw.Flags |= rawFlags[f]
	}
	for _, c := range md.Constraints {
		t, err := metadata.ParseTypeName(c.Type)
		if err != nil {
			return raw, err
		}
		rc := metadata.RawConstraint{Type: t}
		for _, m := range c.Modifiers {
			mt, err := metadata.ParseTypeName(m.Type)
			if err != nil {
				return raw, err
			}
			kind := metadata.ModOptional
			if m.Kind == "modreq" {
				kind = metadata.ModRequired
			}
			rc.Modifiers = append(rc.Modifiers, metadata.ModifierSpec{Kind: kind, Type: mt})
		}
		raw.Constraints = append(raw.Constraints, rc)
	}
	for _, attr := range md.Attributes {
		t, err := metadata.ParseTypeName(attr)
		if err != nil {
			return raw, fmt.Errorf("attribute %q: %w", attr, err)
		}
		raw.Attributes = append(raw.Attributes, t)
	}
	return raw, nil
}

// describe records the declared types and members of an assembly in its
// image, completing the rows written while binding.
func (a *Analyzer) describe(img *image.Image, assembly string) {
	for _, e := range a.types {
		if e.assembly == assembly {
			img.Types = append(img.Types, typeDef(e.def))
		}
	}
	for _, me := range a.members {
		if me.member.Assembly == assembly {
			img.Members = append(img.Members, memberDef(me))
		}
	}
}
