package metadata

import (
	"encoding/binary"
	"fmt"

	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/typesystem"
)

// DecodedKind is the outcome of decoding the value-type constraint entry.
type DecodedKind int

const (
	DecodedPlainValueType DecodedKind = iota
	DecodedUnmanaged
	DecodedMalformed
)

func (k DecodedKind) String() string {
	switch k {
	case DecodedPlainValueType:
		return "plain"
	case DecodedUnmanaged:
		return "unmanaged"
	case DecodedMalformed:
		return "malformed"
	}
	return "unknown"
}

// DecodedResult carries the kind and, for Malformed, why.
type DecodedResult struct {
	Kind   DecodedKind
	Reason string
}

func malformed(format string, args ...any) DecodedResult {
	return DecodedResult{Kind: DecodedMalformed, Reason: fmt.Sprintf(format, args...)}
}

// Decode classifies the modifiers on a value-type constraint entry. Exactly
// one required marker modifier makes the parameter unmanaged; the marker
// attribute is not needed for that. Optional modifiers of other types are
// ignored. Every other combination carrying the marker in any form is
// malformed.
func Decode(mods []ModifierSpec, markerPresent bool, resolver typesystem.Resolver) (DecodedResult, error) {
	var reqMarker, optMarker, reqOther int
	for _, m := range mods {
		isMarker := m.Type.Is(config.UnmanagedMarkerTypeName)
		switch {
		case isMarker && m.Kind == ModRequired:
			reqMarker++
		case isMarker:
			optMarker++
		case m.Kind == ModRequired:
			reqOther++
		}
	}

	switch {
	case optMarker > 0:
		return malformed("marker type used as an optional modifier"), nil
	case reqOther > 0:
		return malformed("required modifier of an unrecognized type"), nil
	case reqMarker > 1:
		return malformed("%d required marker modifiers", reqMarker), nil
	case reqMarker == 1:
		if resolver != nil {
			if _, err := resolver.LookupWellKnown(config.UnmanagedMarkerTypeName, typesystem.RoleMarker); err != nil {
				return DecodedResult{}, err
			}
		}
		return DecodedResult{Kind: DecodedUnmanaged}, nil
	case markerPresent:
		return malformed("marker attribute without a required modifier"), nil
	}
	return DecodedResult{Kind: DecodedPlainValueType}, nil
}

// DecodeTypeParameter decodes a raw parameter into the shape the constraint
// model binds. Explicit constraint types are returned as references for the
// caller to resolve against the owning member's parameters.
func DecodeTypeParameter(raw RawTypeParameter, resolver typesystem.Resolver) (constraints.ImportedShape, []TypeName, error) {
	shape := constraints.ImportedShape{
		ValueType:     raw.Flags.Has(AttrNotNullableValueTypeConstraint),
		ReferenceType: raw.Flags.Has(AttrReferenceTypeConstraint),
		Constructor:   raw.Flags.Has(AttrDefaultConstructorConstraint),
	}
	markerPresent := raw.HasAttribute(config.IsUnmanagedAttributeName)

	var explicit []TypeName
	var carrier *RawConstraint
	for i := range raw.Constraints {
		c := &raw.Constraints[i]
		if c.Type.Is(config.ValueTypeName) && carrier == nil && len(c.Modifiers) > 0 {
			carrier = c
			continue
		}
		for _, m := range c.Modifiers {
			if m.Kind == ModRequired || m.Type.Is(config.UnmanagedMarkerTypeName) {
				shape.Malformed = true
				shape.Reason = fmt.Sprintf("%s on constraint %s", m, c.Type)
			}
		}
		explicit = append(explicit, c.Type)
	}
	if shape.Malformed {
		return shape, explicit, nil
	}

	var mods []ModifierSpec
	if carrier != nil {
		mods = carrier.Modifiers
	}
	res, err := Decode(mods, markerPresent, resolver)
	if err != nil {
		shape.Malformed = true
		shape.Reason = err.Error()
		return shape, explicit, err
	}

	switch res.Kind {
	case DecodedMalformed:
		shape.Malformed = true
		shape.Reason = res.Reason
	case DecodedUnmanaged:
		if !shape.ValueType {
			shape.Malformed = true
			shape.Reason = "unmanaged modifier without the value type flag"
			break
		}
		if resolver != nil {
			if _, err := resolver.LookupWellKnown(config.ValueTypeName, typesystem.RoleValueTypeBase); err != nil {
				shape.Malformed = true
				shape.Reason = err.Error()
				return shape, explicit, err
			}
		}
		shape.Unmanaged = true
	case DecodedPlainValueType:
		if carrier != nil {
			// Benign modifiers only; the entry is an ordinary System.ValueType bound.
			explicit = append(explicit, carrier.Type)
		}
	}
	return shape, explicit, nil
}

// EncodedConstraint is the metadata form of one parameter's constraints.
type EncodedConstraint struct {
	Flags       GenericParamAttributes
	Constraints []RawConstraint
	Marker      *MarkerAttribute
}

// Modifier returns the unmanaged marker modifier, if the encoding has one.
func (e EncodedConstraint) Modifier() (ModifierSpec, bool) {
	for _, c := range e.Constraints {
		for _, m := range c.Modifiers {
			if m.Type.Is(config.UnmanagedMarkerTypeName) {
				return m, true
			}
		}
	}
	return ModifierSpec{}, false
}

// Raw attaches the encoding to a parameter row.
func (e EncodedConstraint) Raw(owner, name string, ordinal int) RawTypeParameter {
	raw := RawTypeParameter{
		Owner:       owner,
		Name:        name,
		Ordinal:     ordinal,
		Flags:       e.Flags,
		Constraints: e.Constraints,
	}
	if e.Marker != nil {
		raw.Attributes = []TypeName{e.Marker.Type}
	}
	return raw
}

// Encode produces the metadata form of tp. For an unmanaged parameter this is
// the value-type and constructor flags, a System.ValueType entry carrying
// modreq(UnmanagedType) ahead of the explicit bounds, and the marker
// attribute. A nil resolver writes unqualified references.
func Encode(tp *constraints.TypeParameter, resolver typesystem.Resolver) (EncodedConstraint, error) {
	var enc EncodedConstraint
	flags := tp.Flags()
	if flags.ReferenceType {
		enc.Flags |= AttrReferenceTypeConstraint
	}
	if tp.HasValueTypeConstraint() {
		enc.Flags |= AttrNotNullableValueTypeConstraint | AttrDefaultConstructorConstraint
	}
	if flags.Constructor {
		enc.Flags |= AttrDefaultConstructorConstraint
	}

	if tp.HasUnmanagedConstraint() {
		marker, err := wellKnownName(resolver, config.UnmanagedMarkerTypeName, typesystem.RoleMarker)
		if err != nil {
			return EncodedConstraint{}, err
		}
		base, err := wellKnownName(resolver, config.ValueTypeName, typesystem.RoleValueTypeBase)
		if err != nil {
			return EncodedConstraint{}, err
		}
		attrNS, attrName := typesystem.SplitFullName(config.IsUnmanagedAttributeName)
		enc.Constraints = append(enc.Constraints, RawConstraint{
			Type:      base,
			Modifiers: []ModifierSpec{{Kind: ModRequired, Type: marker}},
		})
		enc.Marker = &MarkerAttribute{Type: TypeName{Namespace: attrNS, Name: attrName}}
	}
	for _, t := range tp.ExplicitConstraintTypes() {
		enc.Constraints = append(enc.Constraints, RawConstraint{Type: NameOf(t)})
	}
	return enc, nil
}

func wellKnownName(resolver typesystem.Resolver, fullName string, role typesystem.WellKnownRole) (TypeName, error) {
	ns, name := typesystem.SplitFullName(fullName)
	n := TypeName{Namespace: ns, Name: name}
	if resolver == nil {
		return n, nil
	}
	def, err := resolver.LookupWellKnown(fullName, role)
	if err != nil {
		return TypeName{}, err
	}
	n.Assembly = def.Assembly
	return n, nil
}

// Signature blob element tags.
const (
	elemCModReqd    = 0x1f
	elemCModOpt     = 0x20
	elemTypeRef     = 0x12
	elemGenericInst = 0x15
	elemVar         = 0x13
	elemAttribute   = 0x2a
)

// Bytes renders the encoding as a deterministic blob: flags, then each
// constraint entry with its modifiers in order, then the marker attribute.
func (e EncodedConstraint) Bytes() []byte {
	buf := binary.LittleEndian.AppendUint16(nil, uint16(e.Flags&specialConstraintMask))
	buf = binary.AppendUvarint(buf, uint64(len(e.Constraints)))
	for _, c := range e.Constraints {
		for _, m := range c.Modifiers {
			if m.Kind == ModRequired {
				buf = append(buf, elemCModReqd)
			} else {
				buf = append(buf, elemCModOpt)
			}
			buf = appendTypeName(buf, m.Type)
		}
		buf = appendTypeName(buf, c.Type)
	}
	if e.Marker != nil {
		buf = append(buf, elemAttribute)
		buf = appendTypeName(buf, e.Marker.Type)
	}
	return buf
}

func appendTypeName(buf []byte, n TypeName) []byte {
	switch {
	case n.Param != "":
		buf = append(buf, elemVar)
		return appendString(buf, n.Param)
	case len(n.Args) > 0:
		buf = append(buf, elemGenericInst)
		buf = appendString(buf, "["+n.Assembly+"]"+n.FullName())
		buf = binary.AppendUvarint(buf, uint64(len(n.Args)))
		for _, a := range n.Args {
			buf = appendTypeName(buf, a)
		}
		return buf
	}
	buf = append(buf, elemTypeRef)
	return appendString(buf, "["+n.Assembly+"]"+n.FullName())
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}
