package metadata

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/typesystem"
)

// TypeResolver resolves metadata references for the importer.
type TypeResolver interface {
	typesystem.Resolver
	ResolveName(ref TypeName) (*typesystem.Definition, error)
}

// ImportError collects what went wrong decoding one member's parameters.
// The parameters are still returned; the affected ones are unsupported.
type ImportError struct {
	Owner string
	Errs  []error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("importing %s: %v", e.Owner, errors.Join(e.Errs...))
}

func (e *ImportError) Unwrap() []error { return e.Errs }

type imported struct {
	params []*constraints.TypeParameter
	err    error
}

// Importer decodes raw parameters once per session. Results are keyed by
// the parameter's identity ([assembly]owner#ordinal) and never invalidated;
// concurrent imports of the same member share one decode.
type Importer struct {
	resolver TypeResolver
	group    singleflight.Group
	members  sync.Map // [assembly]owner -> *imported
	params   sync.Map // [assembly]owner#ordinal -> *constraints.TypeParameter
	decodes  atomic.Int64
}

func NewImporter(resolver TypeResolver) *Importer {
	return &Importer{resolver: resolver}
}

// ParamKey is the cache identity of a type parameter.
func ParamKey(owner string, ordinal int) string {
	return owner + "#" + strconv.Itoa(ordinal)
}

// Import decodes the generic parameters of one member. Constraint references
// to parameters not among raws resolve against outer, the containing type's
// parameters. A non-nil error is an *ImportError; the returned parameters are
// usable either way.
func (im *Importer) Import(owner constraints.Owner, raws []RawTypeParameter, outer ...*constraints.TypeParameter) ([]*constraints.TypeParameter, error) {
	id := owner.ID()
	if v, ok := im.members.Load(id); ok {
		res := v.(*imported)
		return res.params, res.err
	}
	v, _, _ := im.group.Do(id, func() (any, error) {
		if v, ok := im.members.Load(id); ok {
			return v, nil
		}
		res := im.decodeMember(owner, raws, outer)
		im.members.Store(id, res)
		return res, nil
	})
	res := v.(*imported)
	return res.params, res.err
}

// Lookup returns an already imported parameter.
func (im *Importer) Lookup(owner constraints.Owner, ordinal int) (*constraints.TypeParameter, bool) {
	v, ok := im.params.Load(ParamKey(owner.ID(), ordinal))
	if !ok {
		return nil, false
	}
	return v.(*constraints.TypeParameter), true
}

// Decodes reports how many parameters were actually decoded.
func (im *Importer) Decodes() int64 { return im.decodes.Load() }

func (im *Importer) decodeMember(owner constraints.Owner, raws []RawTypeParameter, outer []*constraints.TypeParameter) *imported {
	params := make([]*constraints.TypeParameter, len(raws))
	byName := make(map[string]*constraints.TypeParameter, len(raws)+len(outer))
	for _, p := range outer {
		byName[p.Name()] = p
	}
	for i, raw := range raws {
		params[i] = constraints.NewTypeParameter(owner, raw.Ordinal, raw.Name)
		byName[raw.Name] = params[i]
	}

	var errs []error
	for i, raw := range raws {
		im.decodes.Add(1)
		shape, refs, err := DecodeTypeParameter(raw, im.resolver)
		if err != nil {
			errs = append(errs, err)
		}
		for _, ref := range refs {
			shape.Explicit = append(shape.Explicit, im.typeOf(ref, byName))
		}
		if err := params[i].BindImported(shape); err != nil {
			errs = append(errs, err)
		}
		im.params.Store(ParamKey(owner.ID(), raw.Ordinal), params[i])
	}

	res := &imported{params: params}
	if len(errs) > 0 {
		res.err = &ImportError{Owner: owner.Name, Errs: errs}
	}
	return res
}

// typeOf resolves a reference; anything unresolvable becomes an error type
// so that checks against it fail rather than pass.
func (im *Importer) typeOf(ref TypeName, params map[string]*constraints.TypeParameter) typesystem.Type {
	if ref.Param != "" {
		if p, ok := params[ref.Param]; ok {
			return p
		}
		return typesystem.TError{Name: ref.Param}
	}
	if im.resolver == nil {
		return typesystem.TError{}
	}
	def, err := im.resolver.ResolveName(ref)
	if err != nil {
		return typesystem.TError{}
	}
	named := typesystem.TNamed{Def: def}
	for _, a := range ref.Args {
		named.Args = append(named.Args, im.typeOf(a, params))
	}
	return named
}
