package constraints

import (
	"errors"

	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/diagnostics"
	"github.com/funvibe/typecon/internal/typesystem"
)

// ClauseKind is one entry of a `where T : ...` list.
type ClauseKind int

const (
	ClauseClass ClauseKind = iota
	ClauseStruct
	ClauseUnmanaged
	ClauseNew
	ClauseType
)

func (k ClauseKind) String() string {
	switch k {
	case ClauseClass:
		return config.ClassKeyword
	case ClauseStruct:
		return config.StructKeyword
	case ClauseUnmanaged:
		return config.UnmanagedConstraintKeyword
	case ClauseNew:
		return config.NewKeyword
	}
	return "type"
}

// Clause is a single declared constraint. Type is set for ClauseType only.
type Clause struct {
	Kind     ClauseKind
	Type     typesystem.Type
	Location diagnostics.Location
}

func (c Clause) String() string {
	if c.Kind == ClauseType && c.Type != nil {
		return c.Type.String()
	}
	return c.Kind.String()
}

// FlagsFromClauses folds a clause list into special flags and explicit types.
func FlagsFromClauses(clauses []Clause) (Flags, []typesystem.Type) {
	var flags Flags
	var explicit []typesystem.Type
	for _, c := range clauses {
		switch c.Kind {
		case ClauseClass:
			flags.ReferenceType = true
		case ClauseStruct:
			flags.ValueType = true
		case ClauseUnmanaged:
			flags.Unmanaged = true
		case ClauseNew:
			flags.Constructor = true
		case ClauseType:
			if c.Type != nil {
				explicit = append(explicit, c.Type)
			}
		}
	}
	return flags.Normalize(), explicit
}

// DeclarationEnv is the context a constraint clause list is checked in.
type DeclarationEnv struct {
	LanguageVersion config.LanguageVersion
	Resolver        typesystem.Resolver
	Sink            diagnostics.Sink
}

// ValidateDeclaration reports the declaration-site errors for the clauses of
// one type parameter and reports whether none were found. Parameters it
// refers to must already be bound.
func ValidateDeclaration(env DeclarationEnv, owner Owner, name string, clauses []Clause, loc diagnostics.Location) bool {
	v := &declValidator{env: env, ok: true}

	unmanagedAt := -1
	for i, c := range clauses {
		if c.Kind == ClauseUnmanaged {
			unmanagedAt = i
			break
		}
	}

	if unmanagedAt >= 0 {
		at := clauses[unmanagedAt].Location
		if env.LanguageVersion != 0 && env.LanguageVersion < config.UnmanagedConstraintVersion {
			v.report(diagnostics.ErrU005, at,
				config.UnmanagedConstraintFeature, env.LanguageVersion.String(), config.UnmanagedConstraintVersion.String())
		}
		if owner.Kind == OwnerLocalFunction && env.LanguageVersion != 0 && env.LanguageVersion < config.UnmanagedLocalFunctionsVersion {
			v.report(diagnostics.ErrU006, at)
		}
		v.checkPredefined(at)
		v.checkAlone(clauses)
	}

	hasClass, hasStruct := false, false
	for _, c := range clauses {
		switch c.Kind {
		case ClauseClass:
			if hasStruct {
				v.report(diagnostics.ErrU009, c.Location, name)
			}
			hasClass = true
		case ClauseStruct:
			if hasClass {
				v.report(diagnostics.ErrU009, c.Location, name)
			}
			hasStruct = true
		case ClauseType:
			v.checkConstraintType(name, c)
		}
	}
	return v.ok
}

type declValidator struct {
	env DeclarationEnv
	ok  bool
}

func (v *declValidator) report(code diagnostics.ErrorCode, loc diagnostics.Location, args ...string) {
	v.ok = false
	if v.env.Sink != nil {
		v.env.Sink.Report(diagnostics.NewError(code, loc, args...))
	}
}

// checkAlone flags every clause other than new() that accompanies unmanaged,
// and new() itself separately.
func (v *declValidator) checkAlone(clauses []Clause) {
	seenOther := false
	for _, c := range clauses {
		switch c.Kind {
		case ClauseNew:
			v.report(diagnostics.ErrU003, c.Location)
		default:
			if seenOther {
				v.report(diagnostics.ErrU002, c.Location)
			}
			seenOther = true
		}
	}
}

// checkPredefined resolves the marker first, then the value-type base.
func (v *declValidator) checkPredefined(at diagnostics.Location) {
	if v.env.Resolver == nil {
		return
	}
	for _, want := range []struct {
		name string
		role typesystem.WellKnownRole
	}{
		{config.UnmanagedMarkerTypeName, typesystem.RoleMarker},
		{config.ValueTypeName, typesystem.RoleValueTypeBase},
	} {
		if _, err := v.env.Resolver.LookupWellKnown(want.name, want.role); err != nil {
			var missing *typesystem.PredefinedTypeNotFoundError
			if errors.As(err, &missing) {
				v.report(diagnostics.ErrU001, at, missing.Name)
			} else {
				v.report(diagnostics.ErrU001, at, want.name)
			}
			return
		}
	}
}

func (v *declValidator) checkConstraintType(name string, c Clause) {
	switch t := c.Type.(type) {
	case *TypeParameter:
		if t.HasUnmanagedConstraint() {
			v.report(diagnostics.ErrU004, c.Location, name, t.Name())
		}
	case typesystem.TPointer:
		v.report(diagnostics.ErrU008, c.Location, t.String())
	case typesystem.TNamed:
		if t.Def == nil {
			return
		}
		if t.Def.IsValueKind() || t.Def.Sealed || t.Def.Kind == typesystem.KindDelegate ||
			typesystem.IsWellKnown(t, config.ObjectTypeName) {
			v.report(diagnostics.ErrU008, c.Location, t.String())
		}
	}
}
