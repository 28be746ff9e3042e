package analyzer

import (
	"errors"

	"github.com/hashicorp/go-set/v3"

	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/diagnostics"
	"github.com/funvibe/typecon/internal/metadata"
	"github.com/funvibe/typecon/internal/propagate"
	"github.com/funvibe/typecon/internal/typesystem"
)

// Validate reports declaration-site errors for the compilation's own type
// parameters. Overrides and explicit implementations are skipped: their
// clauses are compared against the base by Propagate instead. It reports
// whether every declaration is valid.
func (a *Analyzer) Validate() bool {
	env := constraints.DeclarationEnv{
		LanguageVersion: a.version,
		Resolver:        a.table,
		Sink:            a.sink,
	}
	ok := true
	check := func(params []*constraints.TypeParameter, clauses [][]constraints.Clause, at string) {
		for i, p := range params {
			if i >= len(clauses) || len(clauses[i]) == 0 {
				continue
			}
			if !constraints.ValidateDeclaration(env, p.Owner(), p.Name(), clauses[i], diagnostics.ParseLocation(at)) {
				ok = false
			}
		}
	}
	for _, e := range a.types {
		if !e.compiled {
			continue
		}
		for i, tp := range e.decl.TypeParams {
			check(e.params[i:i+1], e.clauses[i:i+1], tp.At)
		}
	}
	for _, me := range a.members {
		if !me.compiled || forbidsConstraints(me.decl) {
			continue
		}
		for i, tp := range me.decl.TypeParams {
			check(me.member.TypeParams[i:i+1], me.clauses[i:i+1], tp.At)
		}
	}
	return ok
}

// Propagate gives overrides and interface implementations the constraints of
// the member they inherit from, base members first, then synthesizes the
// closure classes of every compilation member.
func (a *Analyzer) Propagate() {
	done := set.New[string](len(a.members))
	visiting := set.New[string](4)
	for _, me := range a.members {
		if me.compiled {
			a.propagateMember(me, done, visiting)
		}
	}
	for _, me := range a.members {
		if me.compiled {
			a.synthesizeClosures(me)
		}
	}
}

func (a *Analyzer) propagateMember(me *memberEntry, done, visiting *set.Set[string]) {
	name := me.member.Owner.Name
	if done.Contains(name) || visiting.Contains(name) {
		return
	}
	visiting.Insert(name)
	defer func() {
		visiting.Remove(name)
		done.Insert(name)
	}()

	if !inheritsConstraints(me.decl) {
		return
	}
	target, implement := me.decl.Override, false
	if target == "" {
		target, implement = me.decl.Implements, true
	}
	loc := diagnostics.ParseLocation(me.decl.At)

	base, ok := a.byOwner[target]
	if !ok {
		a.report(diagnostics.ErrR004, loc, me.member.Display(), target)
		return
	}
	if base.compiled {
		a.propagateMember(base, done, visiting)
	}

	req := propagate.Request{
		Member:   me.member.Owner,
		Names:    paramNames(me.member.TypeParams),
		Declared: me.declared,
		Outer:    outerSubst(me.member.Container, base.member.Container),
		Location: loc,
		Sink:     a.sink,
	}
	var (
		fresh []*constraints.TypeParameter
		err   error
	)
	if implement {
		fresh, err = propagate.Implement(base.member.TypeParams, req)
	} else {
		fresh, err = propagate.Override(base.member.TypeParams, req)
	}
	if err != nil {
		if errors.Is(err, propagate.ErrArityMismatch) {
			a.report(diagnostics.ErrR004, loc, me.member.Display(), target)
		} else {
			a.logger.Warn("propagating constraints", "member", name, "err", err)
		}
		return
	}
	me.member.TypeParams = fresh
	a.logger.Debug("propagated constraints", "member", name, "from", target)
}

// outerSubst maps the parameters of target, a supertype of from, to the
// arguments from supplies for them along its base and interface chain.
func outerSubst(from, target *typesystem.Definition) typesystem.Subst {
	if from == nil || target == nil {
		return nil
	}
	visited := set.New[*typesystem.Definition](4)
	var walk func(t typesystem.TNamed) typesystem.Subst
	walk = func(t typesystem.TNamed) typesystem.Subst {
		if t.Def == nil || visited.Contains(t.Def) {
			return nil
		}
		visited.Insert(t.Def)
		inst := typesystem.Instantiate(t)
		if typesystem.SameDefinition(t.Def, target) {
			return inst
		}
		supers := append([]typesystem.Type{t.Def.Base}, t.Def.Interfaces...)
		for _, sup := range supers {
			if sup == nil {
				continue
			}
			if named, ok := sup.Apply(inst).(typesystem.TNamed); ok {
				if s := walk(named); s != nil {
					return s
				}
			}
		}
		return nil
	}

	self := typesystem.TNamed{Def: from}
	for _, p := range from.TypeParams {
		self.Args = append(self.Args, p)
	}
	return walk(self)
}

func (a *Analyzer) synthesizeClosures(me *memberEntry) {
	for _, cd := range me.decl.Closures {
		ns := me.container.qualified()
		owner := constraints.Owner{
			Name:     metadata.TypeName{Namespace: ns, Name: cd.Name, Arity: len(me.member.TypeParams)}.FullName(),
			Kind:     constraints.OwnerType,
			Assembly: me.container.assembly,
		}
		params, subst := propagate.Closure(me.member.TypeParams, owner)
		a.closures = append(a.closures, &Closure{
			Owner:     owner,
			Namespace: ns,
			Name:      cd.Name,
			Member:    me.member,
			Params:    params,
			Subst:     subst,
		})
		a.logger.Debug("synthesized closure", "closure", owner.Name, "member", me.member.Owner.Name)
	}
}
