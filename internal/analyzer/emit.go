package analyzer

import (
	"errors"
	"fmt"

	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/image"
	"github.com/funvibe/typecon/internal/metadata"
	"github.com/funvibe/typecon/internal/typesystem"
)

// Emit writes the compilation's metadata: its types, generic members and
// closure classes, with every type parameter encoded. Parameters that cannot
// be encoded are left out and reported in the returned error; the image is
// usable either way.
func (a *Analyzer) Emit() (*image.Image, error) {
	img := image.New(a.compilation)
	img.References = append([]string(nil), a.references...)

	var errs []error
	write := func(owner string, params []*constraints.TypeParameter) {
		for _, p := range params {
			enc, err := metadata.Encode(p, a.table)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Key(), err))
				continue
			}
			_ = img.WriteTypeParameter(enc.Raw(owner, p.Name(), p.Ordinal()))
		}
	}

	for _, e := range a.types {
		if !e.compiled {
			continue
		}
		img.Types = append(img.Types, typeDef(e.def))
		write(e.def.FullName(), typeParams(e.def))
	}
	for _, me := range a.members {
		if !me.compiled {
			continue
		}
		img.Members = append(img.Members, memberDef(me))
		write(me.member.Owner.Name, me.member.TypeParams)
	}
	for _, c := range a.closures {
		img.Types = append(img.Types, image.TypeDef{
			Namespace:  c.Namespace,
			Name:       c.Name,
			Kind:       typesystem.KindClass.String(),
			TypeParams: paramNames(c.Params),
			Base:       baseName(a.wellKnownType(config.ObjectTypeName)),
			Sealed:     true,
		})
		write(c.Owner.Name, c.Params)
	}

	a.logger.Debug("emitted image",
		"assembly", img.Assembly,
		"types", len(img.Types),
		"members", len(img.Members),
		"params", len(img.Params))
	return img, errors.Join(errs...)
}

func typeDef(def *typesystem.Definition) image.TypeDef {
	td := image.TypeDef{
		Namespace:   def.Namespace,
		Name:        def.Name,
		Kind:        def.Kind.String(),
		TypeParams:  make([]string, len(def.TypeParams)),
		Base:        baseName(def.Base),
		Sealed:      def.Sealed,
		Abstract:    def.Abstract,
		DefaultCtor: def.DefaultCtor,
	}
	for i, p := range def.TypeParams {
		td.TypeParams[i] = p.String()
	}
	for _, iface := range def.Interfaces {
		td.Interfaces = append(td.Interfaces, metadata.NameOf(iface))
	}
	for _, f := range def.Fields {
		td.Fields = append(td.Fields, image.FieldDef{Name: f.Name, Type: metadata.NameOf(f.Type), Static: f.Static})
	}
	return td
}

func baseName(t typesystem.Type) *metadata.TypeName {
	if t == nil {
		return nil
	}
	n := metadata.NameOf(t)
	return &n
}

func memberDef(me *memberEntry) image.MemberDef {
	return image.MemberDef{
		Name:       me.member.Name,
		Container:  me.container.qualified(),
		Kind:       me.kind,
		TypeParams: paramNames(me.member.TypeParams),
		Overrides:  me.member.Overrides,
		Implements: me.member.Implements,
		Explicit:   me.member.Explicit,
	}
}

func paramNames(params []*constraints.TypeParameter) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name()
	}
	return names
}
