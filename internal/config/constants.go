package config

// UniverseFileExt is the extension of universe documents.
const UniverseFileExt = ".yaml"

// UniverseFileExtensions are all recognized universe document extensions
var UniverseFileExtensions = []string{".yaml", ".yml"}

// ImageFileExt is the extension of portable metadata images written by `emit`.
const ImageFileExt = ".img"

// IsTestMode indicates if the program is running in test mode.
// When set, diagnostics render without color and sessions use a fixed id.
var IsTestMode = false

// Well-known type names
const (
	ObjectTypeName             = "System.Object"
	ValueTypeName              = "System.ValueType"
	EnumTypeName               = "System.Enum"
	StringTypeName             = "System.String"
	UnmanagedMarkerTypeName    = "System.Runtime.InteropServices.UnmanagedType"
	IsUnmanagedAttributeName   = "System.Runtime.CompilerServices.IsUnmanagedAttribute"
	UnmanagedConstraintKeyword = "unmanaged"
)

// Constraint clause keywords as they appear in universe documents.
const (
	StructKeyword = "struct"
	ClassKeyword  = "class"
	NewKeyword    = "new()"
)

// Keyword aliases for the built-in types.
var PrimitiveAliases = map[string]string{
	"bool":    "System.Boolean",
	"byte":    "System.Byte",
	"sbyte":   "System.SByte",
	"char":    "System.Char",
	"short":   "System.Int16",
	"ushort":  "System.UInt16",
	"int":     "System.Int32",
	"uint":    "System.UInt32",
	"long":    "System.Int64",
	"ulong":   "System.UInt64",
	"float":   "System.Single",
	"double":  "System.Double",
	"decimal": "System.Decimal",
	"nint":    "System.IntPtr",
	"nuint":   "System.UIntPtr",
	"string":  StringTypeName,
	"object":  ObjectTypeName,
}

// LanguageVersion is a major*10+minor encoding (7.3 => 73).
type LanguageVersion int

const (
	LanguageVersion7_2    LanguageVersion = 72
	LanguageVersion7_3    LanguageVersion = 73
	LanguageVersion8      LanguageVersion = 80
	LanguageVersionLatest LanguageVersion = 120
)

// Feature gates
const (
	UnmanagedConstraintVersion     = LanguageVersion7_3
	UnmanagedLocalFunctionsVersion = LanguageVersion8
)

// Feature names used in diagnostics.
const (
	UnmanagedConstraintFeature = "unmanaged generic type constraints"
)
