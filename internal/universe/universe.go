// Package universe loads universe documents: YAML descriptions of a
// compilation, the assemblies it references, the generic declarations in
// both, and the use sites to check.
//
// A universe stands in for source text and binary references. Referenced
// assemblies are declared either like source (constraints are encoded as the
// compiler would emit them) or with raw metadata rows, so that malformed
// encodings can be written down directly.
package universe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/funvibe/typecon/internal/config"
)

// Universe is the top-level document.
type Universe struct {
	// LanguageVersion is "7.2", "7.3", "8", ... or "latest" (the default).
	LanguageVersion string `yaml:"language_version,omitempty"`

	// Assemblies lists the referenced assemblies, in lookup order.
	Assemblies []AssemblyDecl `yaml:"assemblies" validate:"dive"`

	// Compilation is the assembly being checked.
	Compilation CompilationDecl `yaml:"compilation"`

	// Dir is the directory of the document; image paths are relative to it.
	Dir string `yaml:"-"`

	// Path is the document path, used for error messages.
	Path string `yaml:"-"`
}

// AssemblyDecl is one referenced assembly.
type AssemblyDecl struct {
	Name string `yaml:"name" validate:"required"`

	// Corlib marks the assembly hosting System.Object and System.ValueType.
	Corlib bool `yaml:"corlib,omitempty"`

	// Builtin fills a corlib with the standard predefined types. Without it
	// a corlib only has the types listed, for partial-corlib scenarios.
	Builtin bool `yaml:"builtin,omitempty"`

	// Image loads the assembly from a file written by `typecon emit`.
	// Mutually exclusive with Types.
	Image string `yaml:"image,omitempty"`

	Types []TypeDecl `yaml:"types,omitempty" validate:"dive"`
}

// CompilationDecl is the assembly under analysis.
type CompilationDecl struct {
	Name       string        `yaml:"name" validate:"required"`
	References []string      `yaml:"references,omitempty"`
	Types      []TypeDecl    `yaml:"types,omitempty" validate:"dive"`
	Uses       []UseDecl     `yaml:"uses,omitempty" validate:"dive"`
	Pointers   []PointerDecl `yaml:"pointers,omitempty" validate:"dive"`
}

// TypeDecl is a type definition.
type TypeDecl struct {
	Namespace  string          `yaml:"namespace,omitempty"`
	Name       string          `yaml:"name" validate:"required"`
	Kind       string          `yaml:"kind,omitempty" validate:"omitempty,oneof=class struct interface enum delegate"`
	TypeParams []TypeParamDecl `yaml:"type_params,omitempty" validate:"dive"`
	Base       string          `yaml:"base,omitempty"`
	Interfaces []string        `yaml:"interfaces,omitempty"`
	Fields     []FieldDecl     `yaml:"fields,omitempty" validate:"dive"`
	Sealed     bool            `yaml:"sealed,omitempty"`
	Abstract   bool            `yaml:"abstract,omitempty"`

	// DefaultCtor defaults to true for classes.
	DefaultCtor *bool `yaml:"default_ctor,omitempty"`

	Members []MemberDecl `yaml:"members,omitempty" validate:"dive"`
	At      string       `yaml:"at,omitempty"`
}

// FullName is the namespace-qualified name without arity.
func (t TypeDecl) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// FieldDecl is a field; Type is a type expression.
type FieldDecl struct {
	Name   string `yaml:"name" validate:"required"`
	Type   string `yaml:"type" validate:"required"`
	Static bool   `yaml:"static,omitempty"`
}

// MemberDecl is a generic method, delegate or local function.
type MemberDecl struct {
	Name       string          `yaml:"name" validate:"required"`
	Kind       string          `yaml:"kind,omitempty" validate:"omitempty,oneof=method delegate local_function"`
	TypeParams []TypeParamDecl `yaml:"type_params,omitempty" validate:"dive"`

	// Override names the overridden member, "Base.M".
	Override string `yaml:"override,omitempty"`

	// Implements names the interface member, "I.M".
	Implements string `yaml:"implements,omitempty"`

	// Explicit marks an explicit interface implementation.
	Explicit bool `yaml:"explicit,omitempty"`

	// Closures are lambdas in the member body capturing its type parameters.
	Closures []ClosureDecl `yaml:"closures,omitempty" validate:"dive"`

	At string `yaml:"at,omitempty"`
}

// TypeParamDecl is a declared type parameter.
type TypeParamDecl struct {
	Name string `yaml:"name" validate:"required"`

	// Constraints are clause texts in declaration order: class, struct,
	// unmanaged, new(), or a type expression.
	Constraints []string `yaml:"constraints,omitempty"`

	// ConstraintsAt gives a location per clause; missing entries use At.
	ConstraintsAt []string `yaml:"constraints_at,omitempty"`

	// Metadata replaces Constraints with raw rows. Referenced assemblies only.
	Metadata *RawParamDecl `yaml:"metadata,omitempty"`

	At string `yaml:"at,omitempty"`
}

// RawParamDecl is a generic parameter row as stored in metadata.
type RawParamDecl struct {
	Flags       []string            `yaml:"flags,omitempty" validate:"dive,oneof=class valuetype ctor"`
	Constraints []RawConstraintDecl `yaml:"constraints,omitempty" validate:"dive"`
	Attributes  []string            `yaml:"attributes,omitempty"`
}

// RawConstraintDecl is one constraint row with its custom modifiers.
type RawConstraintDecl struct {
	Type      string         `yaml:"type" validate:"required"`
	Modifiers []ModifierDecl `yaml:"modifiers,omitempty" validate:"dive"`
}

// ModifierDecl is modreq(Type) or modopt(Type).
type ModifierDecl struct {
	Kind string `yaml:"kind" validate:"required,oneof=modreq modopt"`
	Type string `yaml:"type" validate:"required"`
}

// ClosureDecl is a lambda capturing the member's type parameters.
type ClosureDecl struct {
	Name string `yaml:"name" validate:"required"`
}

// UseDecl instantiates Target ("C.M" or a generic type name) with TypeArgs.
// In names the member or type whose type parameters are in scope for the
// arguments.
type UseDecl struct {
	Target   string   `yaml:"target" validate:"required"`
	TypeArgs []string `yaml:"type_args,omitempty"`
	In       string   `yaml:"in,omitempty"`
	At       string   `yaml:"at,omitempty"`
}

// PointerDecl declares a pointer to Elem.
type PointerDecl struct {
	Elem string `yaml:"elem" validate:"required"`
	In   string `yaml:"in,omitempty"`
	At   string `yaml:"at,omitempty"`
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Load reads and parses a universe document.
func Load(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading universe %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses universe content. The path is used for error messages and to
// resolve image paths.
func Parse(data []byte, path string) (*Universe, error) {
	var u Universe
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	u.Path = path
	u.Dir = filepath.Dir(path)
	if err := u.validate(); err != nil {
		return nil, err
	}
	u.setDefaults()
	return &u, nil
}

// validate checks struct tags first, then cross-references.
func (u *Universe) validate() error {
	if err := structValidator.Struct(u); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q", strings.TrimPrefix(fe.Namespace(), "Universe."), fe.Tag())
			}
			return fmt.Errorf("%s: %s", u.Path, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%s: %w", u.Path, err)
	}

	if _, err := config.ParseLanguageVersion(u.LanguageVersion); err != nil {
		return fmt.Errorf("%s: %w", u.Path, err)
	}

	seen := make(map[string]bool)
	for i, a := range u.Assemblies {
		if seen[a.Name] {
			return fmt.Errorf("%s: assemblies[%d]: duplicate assembly %q", u.Path, i, a.Name)
		}
		seen[a.Name] = true
		if a.Image != "" && len(a.Types) > 0 {
			return fmt.Errorf("%s: assemblies[%d] (%s): image and types are mutually exclusive", u.Path, i, a.Name)
		}
		if a.Builtin && !a.Corlib {
			return fmt.Errorf("%s: assemblies[%d] (%s): builtin requires corlib", u.Path, i, a.Name)
		}
	}
	if seen[u.Compilation.Name] {
		return fmt.Errorf("%s: compilation %q has the name of a referenced assembly", u.Path, u.Compilation.Name)
	}
	for i, ref := range u.Compilation.References {
		if !seen[ref] {
			return fmt.Errorf("%s: compilation.references[%d]: unknown assembly %q", u.Path, i, ref)
		}
	}

	for _, t := range u.Compilation.Types {
		for _, tp := range t.TypeParams {
			if tp.Metadata != nil {
				return fmt.Errorf("%s: %s: raw metadata is only allowed in referenced assemblies", u.Path, t.FullName())
			}
		}
		for _, m := range t.Members {
			for _, tp := range m.TypeParams {
				if tp.Metadata != nil {
					return fmt.Errorf("%s: %s.%s: raw metadata is only allowed in referenced assemblies", u.Path, t.FullName(), m.Name)
				}
			}
		}
	}
	return nil
}

// setDefaults fills in default values for omitted fields.
func (u *Universe) setDefaults() {
	if u.LanguageVersion == "" {
		u.LanguageVersion = "latest"
	}
	if len(u.Compilation.References) == 0 {
		for _, a := range u.Assemblies {
			u.Compilation.References = append(u.Compilation.References, a.Name)
		}
	}
	for i := range u.Assemblies {
		setTypeDefaults(u.Assemblies[i].Types)
	}
	setTypeDefaults(u.Compilation.Types)
}

func setTypeDefaults(types []TypeDecl) {
	for i := range types {
		t := &types[i]
		if t.Kind == "" {
			t.Kind = "class"
		}
		if t.DefaultCtor == nil {
			v := t.Kind == "class" && !t.Abstract
			t.DefaultCtor = &v
		}
		for j := range t.Members {
			if t.Members[j].Kind == "" {
				t.Members[j].Kind = "method"
			}
		}
	}
}

// Version returns the parsed language version.
func (u *Universe) Version() config.LanguageVersion {
	v, _ := config.ParseLanguageVersion(u.LanguageVersion)
	return v
}

// ImagePath resolves an assembly's image path against the document.
func (u *Universe) ImagePath(a AssemblyDecl) string {
	if a.Image == "" || filepath.IsAbs(a.Image) {
		return a.Image
	}
	return filepath.Join(u.Dir, a.Image)
}
