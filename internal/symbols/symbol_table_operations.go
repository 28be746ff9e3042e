package symbols

import (
	"fmt"

	"github.com/funvibe/typecon/internal/typesystem"
)

// DefineAssembly adds an assembly to the end of the lookup order.
func (s *SymbolTable) DefineAssembly(name string, corlib bool) (*Assembly, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assemblies[name]; ok {
		return nil, fmt.Errorf("assembly %s defined twice", name)
	}
	a := &Assembly{Name: name, Corlib: corlib, types: make(map[string][]*typesystem.Definition)}
	s.assemblies[name] = a
	s.order = append(s.order, name)
	return a, nil
}

// DefineType adds def to its assembly. Two assemblies may define the same
// name; one assembly may not.
func (s *SymbolTable) DefineType(def *typesystem.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assemblies[def.Assembly]
	if !ok {
		return fmt.Errorf("type %s: unknown assembly %s", def.FullName(), def.Assembly)
	}
	name := def.FullName()
	if len(a.types[name]) > 0 {
		return fmt.Errorf("type %s defined twice in %s", name, a.Name)
	}
	a.types[name] = append(a.types[name], def)
	a.order = append(a.order, def)
	return nil
}

// DefineMember registers a generic member under its qualified name.
func (s *SymbolTable) DefineMember(m *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[m.Owner.Name]; ok {
		return fmt.Errorf("member %s defined twice", m.Owner.Name)
	}
	s.members[m.Owner.Name] = m
	return nil
}

// Member returns a registered member by qualified name.
func (s *SymbolTable) Member(name string) (*Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[name]
	return m, ok
}
