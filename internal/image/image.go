// Package image reads and writes portable metadata images: one assembly's
// type definitions, generic members and raw generic parameter rows, stored
// as a protobuf message.
package image

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/metadata"
)

// FieldDef is an instance or static field.
type FieldDef struct {
	Name   string
	Type   metadata.TypeName
	Static bool
}

// TypeDef is a type definition as stored. Its generic parameters' constraint
// rows live in Image.Params under the type's full name.
type TypeDef struct {
	Namespace   string
	Name        string
	Kind        string
	TypeParams  []string
	Base        *metadata.TypeName
	Interfaces  []metadata.TypeName
	Fields      []FieldDef
	Sealed      bool
	Abstract    bool
	DefaultCtor bool
}

// FullName matches typesystem.Definition.FullName.
func (t TypeDef) FullName() string {
	return metadata.TypeName{Namespace: t.Namespace, Name: t.Name, Arity: len(t.TypeParams)}.FullName()
}

// MemberDef is a generic member. Its qualified name is Container + "." + Name.
type MemberDef struct {
	Name       string
	Container  string
	Kind       string
	TypeParams []string
	Overrides  string
	Implements string
	Explicit   bool
}

func (m MemberDef) QualifiedName() string {
	if m.Container == "" {
		return m.Name
	}
	return m.Container + "." + m.Name
}

// Image is one assembly's metadata. It is a metadata.Reader and Writer over
// its generic parameter rows.
type Image struct {
	ID         uuid.UUID
	Assembly   string
	Corlib     bool
	References []string
	Types      []TypeDef
	Members    []MemberDef
	Params     []metadata.RawTypeParameter
}

// New creates an empty image. In test mode the id is derived from the
// assembly name so output is reproducible.
func New(assembly string) *Image {
	id := uuid.New()
	if config.IsTestMode {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(assembly))
	}
	return &Image{ID: id, Assembly: assembly}
}

func (img *Image) Owners() ([]string, error) {
	seen := make(map[string]bool)
	var owners []string
	for _, p := range img.Params {
		if !seen[p.Owner] {
			seen[p.Owner] = true
			owners = append(owners, p.Owner)
		}
	}
	sort.Strings(owners)
	return owners, nil
}

func (img *Image) TypeParameters(owner string) ([]metadata.RawTypeParameter, error) {
	var out []metadata.RawTypeParameter
	for _, p := range img.Params {
		if p.Owner == owner {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("image %s: no generic parameters for %s", img.Assembly, owner)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (img *Image) WriteTypeParameter(raw metadata.RawTypeParameter) error {
	for i := range img.Params {
		if img.Params[i].Owner == raw.Owner && img.Params[i].Ordinal == raw.Ordinal {
			img.Params[i] = raw
			return nil
		}
	}
	img.Params = append(img.Params, raw)
	return nil
}

var (
	_ metadata.Reader = (*Image)(nil)
	_ metadata.Writer = (*Image)(nil)
)
