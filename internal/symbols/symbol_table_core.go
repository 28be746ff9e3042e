package symbols

import (
	"sort"
	"sync"

	"github.com/funvibe/typecon/internal/constraints"
	"github.com/funvibe/typecon/internal/typesystem"
)

// Assembly is one metadata source: the compilation itself or a reference.
type Assembly struct {
	Name   string
	Corlib bool // hosts the predefined types (System.Object, System.ValueType)

	types map[string][]*typesystem.Definition // FullName -> definitions, in declaration order
	order []*typesystem.Definition
}

// Definitions returns the assembly's types in declaration order.
func (a *Assembly) Definitions() []*typesystem.Definition {
	return append([]*typesystem.Definition(nil), a.order...)
}

// Member is a generic method, local function or delegate invoke signature.
type Member struct {
	Name       string // simple name
	Owner      constraints.Owner
	Container  *typesystem.Definition
	Assembly   string
	TypeParams []*constraints.TypeParameter

	Overrides  string // qualified name of the overridden member
	Implements string // qualified name of the implemented interface member
	Explicit   bool   // explicit interface implementation
}

// Display renders "C.M<T, U>" for diagnostics.
func (m *Member) Display() string {
	s := m.Owner.Name
	if len(m.TypeParams) == 0 {
		return s
	}
	s += "<"
	for i, p := range m.TypeParams {
		if i > 0 {
			s += ", "
		}
		s += p.Name()
	}
	return s + ">"
}

// Unsupported reports a member with a malformed type parameter.
func (m *Member) Unsupported() bool {
	for _, p := range m.TypeParams {
		if p.IsUnsupported() {
			return true
		}
	}
	return false
}

// SymbolTable holds every assembly visible to one compilation.
// Definition is single-threaded; lookups may run concurrently afterwards.
type SymbolTable struct {
	mu         sync.RWMutex
	assemblies map[string]*Assembly
	order      []string // reachable assemblies, lookup order
	members    map[string]*Member
}

func NewEmptySymbolTable() *SymbolTable {
	return &SymbolTable{
		assemblies: make(map[string]*Assembly),
		members:    make(map[string]*Member),
	}
}

// Assembly returns a defined assembly.
func (s *SymbolTable) Assembly(name string) (*Assembly, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assemblies[name]
	return a, ok
}

// Assemblies returns the reachable assemblies in lookup order.
func (s *SymbolTable) Assemblies() []*Assembly {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Assembly, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.assemblies[name])
	}
	return out
}

// Members returns all members sorted by qualified name.
func (s *SymbolTable) Members() []*Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner.Name < out[j].Owner.Name })
	return out
}
