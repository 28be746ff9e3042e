package metadata

import (
	"fmt"
	"sort"
	"sync"
)

// GenericParamAttributes are the special-constraint bits of a generic
// parameter row.
type GenericParamAttributes uint16

const (
	AttrReferenceTypeConstraint        GenericParamAttributes = 0x0004
	AttrNotNullableValueTypeConstraint GenericParamAttributes = 0x0008
	AttrDefaultConstructorConstraint   GenericParamAttributes = 0x0010

	specialConstraintMask = AttrReferenceTypeConstraint | AttrNotNullableValueTypeConstraint | AttrDefaultConstructorConstraint
)

func (a GenericParamAttributes) Has(bit GenericParamAttributes) bool { return a&bit != 0 }

func (a GenericParamAttributes) String() string {
	s := ""
	if a.Has(AttrReferenceTypeConstraint) {
		s += "class "
	}
	if a.Has(AttrNotNullableValueTypeConstraint) {
		s += "valuetype "
	}
	if a.Has(AttrDefaultConstructorConstraint) {
		s += ".ctor "
	}
	if s == "" {
		return "none"
	}
	return s[:len(s)-1]
}

// ModifierKind distinguishes modreq from modopt.
type ModifierKind int

const (
	ModRequired ModifierKind = iota + 1
	ModOptional
)

func (k ModifierKind) String() string {
	if k == ModRequired {
		return "modreq"
	}
	return "modopt"
}

// ModifierSpec is one custom modifier on a constraint entry.
type ModifierSpec struct {
	Kind ModifierKind
	Type TypeName
}

func (m ModifierSpec) String() string {
	return fmt.Sprintf("%s(%s)", m.Kind, m.Type)
}

// MarkerAttribute is the zero-argument attribute written next to the modifier.
type MarkerAttribute struct {
	Type TypeName
}

// RawConstraint is one GenericParamConstraint row: a type plus the custom
// modifiers written on it.
type RawConstraint struct {
	Type      TypeName
	Modifiers []ModifierSpec
}

// RawTypeParameter is a generic parameter as stored, before decoding.
type RawTypeParameter struct {
	Owner       string
	Name        string
	Ordinal     int
	Flags       GenericParamAttributes
	Constraints []RawConstraint
	Attributes  []TypeName
}

// HasAttribute reports a custom attribute of the given full name.
func (r RawTypeParameter) HasAttribute(fullName string) bool {
	for _, a := range r.Attributes {
		if a.Is(fullName) {
			return true
		}
	}
	return false
}

// Reader gives raw per-type-parameter access to a metadata source.
type Reader interface {
	Owners() ([]string, error)
	TypeParameters(owner string) ([]RawTypeParameter, error)
}

// Writer stores raw type parameters at emission time.
type Writer interface {
	WriteTypeParameter(raw RawTypeParameter) error
}

// MemoryImage is an in-memory Reader and Writer.
type MemoryImage struct {
	mu     sync.RWMutex
	params map[string][]RawTypeParameter
}

func NewMemoryImage() *MemoryImage {
	return &MemoryImage{params: make(map[string][]RawTypeParameter)}
}

func (m *MemoryImage) WriteTypeParameter(raw RawTypeParameter) error {
	if raw.Owner == "" {
		return fmt.Errorf("type parameter %s: missing owner", raw.Name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.params[raw.Owner]
	for i := range list {
		if list[i].Ordinal == raw.Ordinal {
			list[i] = raw
			return nil
		}
	}
	list = append(list, raw)
	sort.Slice(list, func(i, j int) bool { return list[i].Ordinal < list[j].Ordinal })
	m.params[raw.Owner] = list
	return nil
}

func (m *MemoryImage) Owners() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owners := make([]string, 0, len(m.params))
	for o := range m.params {
		owners = append(owners, o)
	}
	sort.Strings(owners)
	return owners, nil
}

func (m *MemoryImage) TypeParameters(owner string) ([]RawTypeParameter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list, ok := m.params[owner]
	if !ok {
		return nil, fmt.Errorf("no generic parameters recorded for %s", owner)
	}
	return append([]RawTypeParameter(nil), list...), nil
}

// CopyAll writes every parameter of src into dst, owners in sorted order.
func CopyAll(dst Writer, src Reader) error {
	owners, err := src.Owners()
	if err != nil {
		return err
	}
	for _, owner := range owners {
		raws, err := src.TypeParameters(owner)
		if err != nil {
			return fmt.Errorf("reading %s: %w", owner, err)
		}
		for _, raw := range raws {
			if err := dst.WriteTypeParameter(raw); err != nil {
				return fmt.Errorf("writing %s: %w", owner, err)
			}
		}
	}
	return nil
}
