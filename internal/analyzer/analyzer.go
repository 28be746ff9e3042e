// Package analyzer binds a universe document into a symbol table. It
// declares the types and generic members of every reachable assembly, brings
// referenced constraints in through the metadata codec, propagates
// constraints onto overrides and closures, and collects the use sites to
// check.
package analyzer

import (
	"log/slog"

	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/diagnostics"
	"github.com/funvibe/typecon/internal/image"
	"github.com/funvibe/typecon/internal/metadata"
	"github.com/funvibe/typecon/internal/symbols"
	"github.com/funvibe/typecon/internal/typesystem"
	"github.com/funvibe/typecon/internal/universe"
)

// Analyzer binds one universe. Its phases run in order: Declare, Validate,
// Propagate, then Sites and Emit.
type Analyzer struct {
	table    *symbols.SymbolTable
	importer *metadata.Importer
	sink     diagnostics.Sink
	logger   *slog.Logger
	version  config.LanguageVersion

	compilation string
	references  []string

	types   []*typeEntry
	byName  map[string]*typeEntry // assembly|qualified name
	members []*memberEntry
	byOwner map[string]*memberEntry

	closures []*Closure
	images   map[string]*image.Image
}

// typeEntry is a declared type: from the universe (decl set) or from an
// image (image set).
type typeEntry struct {
	def      *typesystem.Definition
	assembly string
	compiled bool
	decl     *universe.TypeDecl
	image    *image.TypeDef
	params   []*constraints.TypeParameter
	clauses  [][]constraints.Clause
}

// qualified is the namespace-qualified name without arity, as used for
// member owners.
func (e *typeEntry) qualified() string {
	if e.def.Namespace == "" {
		return e.def.Name
	}
	return e.def.Namespace + "." + e.def.Name
}

type memberEntry struct {
	member    *symbols.Member
	container *typeEntry
	compiled  bool
	decl      *universe.MemberDecl
	kind      string
	clauses   [][]constraints.Clause

	// declared holds the member's own binding per position when it wrote
	// constraint clauses; only consulted for overrides.
	declared []*constraints.TypeParameter
}

// Closure is a synthesized class capturing a generic member's parameters.
type Closure struct {
	Owner     constraints.Owner
	Namespace string
	Name      string
	Member    *symbols.Member
	Params    []*constraints.TypeParameter
	Subst     typesystem.Subst
}

// New creates an analyzer reporting into sink. A nil logger discards.
func New(table *symbols.SymbolTable, sink diagnostics.Sink, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{
		table:    table,
		importer: metadata.NewImporter(table),
		sink:     sink,
		logger:   logger,
		version:  config.LanguageVersionLatest,
		byName:   make(map[string]*typeEntry),
		byOwner:  make(map[string]*memberEntry),
		images:   make(map[string]*image.Image),
	}
}

func (a *Analyzer) Table() *symbols.SymbolTable  { return a.table }
func (a *Analyzer) Importer() *metadata.Importer { return a.importer }

// Images returns the metadata of the referenced assemblies by name: loaded
// images as read, declared assemblies as the codec wrote them.
func (a *Analyzer) Images() map[string]*image.Image {
	out := make(map[string]*image.Image, len(a.images))
	for k, v := range a.images {
		out[k] = v
	}
	return out
}

// Closures returns the synthesized closure classes in declaration order.
func (a *Analyzer) Closures() []*Closure {
	return append([]*Closure(nil), a.closures...)
}

func (a *Analyzer) report(code diagnostics.ErrorCode, loc diagnostics.Location, args ...string) {
	a.sink.Report(diagnostics.NewError(code, loc, args...))
}

func entryKey(assembly, qualified string) string {
	return assembly + "|" + qualified
}
