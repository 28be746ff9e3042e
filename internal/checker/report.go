package checker

import (
	"context"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/diagnostics"
	"github.com/funvibe/typecon/internal/typesystem"
)

// Diagnostic maps a violation to its diagnostic. entity is the display name
// of the generic type or method being instantiated.
func (v Violation) Diagnostic(entity string, loc diagnostics.Location) *diagnostics.DiagnosticError {
	param := ""
	if v.Param != nil {
		param = v.Param.Name()
	}
	cand := display(v.Candidate)
	switch v.Kind {
	case RefTypeRequired:
		return diagnostics.NewError(diagnostics.ErrC001, loc, entity, param, cand)
	case ValTypeRequired:
		return diagnostics.NewError(diagnostics.ErrC002, loc, entity, param, cand, config.ValueTypeName)
	case NotUnmanaged:
		return diagnostics.NewError(diagnostics.ErrC003, loc, entity, param, cand)
	case ConstraintTypeNotSatisfied:
		return diagnostics.NewError(diagnostics.ErrC004, loc, entity, display(v.Constraint), param, cand)
	case NewConstraintNotSatisfied:
		return diagnostics.NewError(diagnostics.ErrC005, loc, entity, param, cand)
	case UnsupportedSymbol:
		return diagnostics.NewError(diagnostics.ErrC006, loc, entity)
	case BadTypeArgument:
		return diagnostics.NewError(diagnostics.ErrC009, loc, cand)
	case ManagedPointer:
		return diagnostics.NewError(diagnostics.ErrC008, loc, cand)
	}
	return diagnostics.NewError(diagnostics.ErrC009, loc, cand)
}

func display(t typesystem.Type) string {
	if t == nil {
		return "?"
	}
	return t.String()
}

// CheckArguments checks one instantiation and reports every violation.
// It reports whether the instantiation is valid.
func CheckArguments(entity string, params []*constraints.TypeParameter, args []typesystem.Type, loc diagnostics.Location, sink diagnostics.Sink) bool {
	if len(params) != len(args) {
		sink.Report(diagnostics.NewError(diagnostics.ErrC010, loc, entity, strconv.Itoa(len(params))))
		return false
	}

	// Bogus parameters make the whole entity unusable; one report per site.
	for _, p := range params {
		if p.IsUnsupported() {
			sink.Report(Violation{Kind: UnsupportedSymbol, Param: p}.Diagnostic(entity, loc))
			return false
		}
	}

	subst := make(typesystem.Subst, len(params))
	for i, p := range params {
		subst[p.Key()] = args[i]
	}
	ok := true
	for i, p := range params {
		for _, v := range Check(p, args[i], subst) {
			sink.Report(v.Diagnostic(entity, loc))
			ok = false
		}
	}
	return ok
}

// ReportPointer checks a pointer declaration and reports a managed pointee.
func ReportPointer(elem typesystem.Type, loc diagnostics.Location, sink diagnostics.Sink) bool {
	vs := CheckPointer(elem)
	for _, v := range vs {
		sink.Report(v.Diagnostic("", loc))
	}
	return len(vs) == 0
}

// Site is one use to check: an instantiation of Entity with Args, or, when
// Pointer is set, a pointer declaration to that element type.
type Site struct {
	Entity   string
	Params   []*constraints.TypeParameter
	Args     []typesystem.Type
	Pointer  typesystem.Type
	Location diagnostics.Location
}

// CheckSites checks sites concurrently with at most limit workers
// (GOMAXPROCS when limit <= 0). Parameters are read-only at this point, so
// the only shared state is the sink. It returns the number of failing sites.
func CheckSites(ctx context.Context, sites []Site, sink diagnostics.Sink, limit int) (int, error) {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	failed := make([]bool, len(sites))
	for i, site := range sites {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if site.Pointer != nil {
				failed[i] = !ReportPointer(site.Pointer, site.Location, sink)
			} else {
				failed[i] = !CheckArguments(site.Entity, site.Params, site.Args, site.Location, sink)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	return n, err
}
