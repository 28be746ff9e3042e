package symbols

import (
	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/typesystem"
)

// InitCorlib defines the predefined types in a corlib assembly: System.Object,
// System.ValueType, System.Enum, System.String, the UnmanagedType enum used
// as the unmanaged marker, and the primitive structs.
// Universes that want a partial corlib define the types themselves instead.
func (s *SymbolTable) InitCorlib(assembly string) error {
	define := func(full string, kind typesystem.TypeKind, base typesystem.Type, sealed bool) (*typesystem.Definition, error) {
		ns, name := typesystem.SplitFullName(full)
		def := &typesystem.Definition{
			Namespace:   ns,
			Name:        name,
			Assembly:    assembly,
			Kind:        kind,
			Base:        base,
			Sealed:      sealed,
			DefaultCtor: kind == typesystem.KindClass,
		}
		return def, s.DefineType(def)
	}

	object, err := define(config.ObjectTypeName, typesystem.KindClass, nil, false)
	if err != nil {
		return err
	}
	objectType := typesystem.TNamed{Def: object}
	valueType, err := define(config.ValueTypeName, typesystem.KindClass, objectType, false)
	if err != nil {
		return err
	}
	valueTypeType := typesystem.TNamed{Def: valueType}
	valueType.Abstract = true
	enum, err := define(config.EnumTypeName, typesystem.KindClass, valueTypeType, false)
	if err != nil {
		return err
	}
	enum.Abstract = true
	str, err := define(config.StringTypeName, typesystem.KindClass, objectType, true)
	if err != nil {
		return err
	}
	str.DefaultCtor = false

	enumType := typesystem.TNamed{Def: enum}
	if _, err := define(config.UnmanagedMarkerTypeName, typesystem.KindEnum, enumType, true); err != nil {
		return err
	}

	for _, full := range corlibPrimitives() {
		if _, err := define(full, typesystem.KindStruct, valueTypeType, true); err != nil {
			return err
		}
	}
	return nil
}

func corlibPrimitives() []string {
	seen := make(map[string]bool)
	var out []string
	for _, alias := range []string{"bool", "byte", "sbyte", "char", "short", "ushort", "int", "uint", "long", "ulong", "float", "double", "decimal", "nint", "nuint"} {
		full := config.PrimitiveAliases[alias]
		if !seen[full] {
			seen[full] = true
			out = append(out, full)
		}
	}
	return out
}
