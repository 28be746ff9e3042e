// Package metadata implements the on-disk form of type parameter constraints:
// raw generic parameter rows, custom modifiers on constraint entries, and the
// codec that maps the unmanaged constraint to and from them.
package metadata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/typecon/internal/typesystem"
)

// TypeName is a reference to a type as written in metadata. Param is set
// instead of the name fields when the reference is to a type parameter of the
// owning member.
type TypeName struct {
	Assembly  string
	Namespace string
	Name      string
	Arity     int
	Args      []TypeName
	Param     string
}

// FullName returns the namespace-qualified name with arity suffix.
func (n TypeName) FullName() string {
	if n.Param != "" {
		return "!" + n.Param
	}
	name := n.Name
	if n.Arity > 0 {
		name += "`" + strconv.Itoa(n.Arity)
	}
	if n.Namespace == "" {
		return name
	}
	return n.Namespace + "." + name
}

// Is reports a structural match on full name and arity, ignoring the assembly.
func (n TypeName) Is(fullName string) bool {
	return n.Param == "" && len(n.Args) == 0 && n.FullName() == fullName
}

func (n TypeName) String() string {
	var sb strings.Builder
	if n.Assembly != "" && n.Param == "" {
		sb.WriteString("[" + n.Assembly + "]")
	}
	sb.WriteString(n.FullName())
	if len(n.Args) > 0 {
		sb.WriteString("<")
		for i, a := range n.Args {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(a.String())
		}
		sb.WriteString(">")
	}
	return sb.String()
}

// ParseTypeName parses the textual form produced by String:
//
//	[mscorlib]System.ValueType
//	System.IComparable`1<!T>
//	!T
func ParseTypeName(s string) (TypeName, error) {
	p := &nameParser{src: s}
	n, err := p.parse()
	if err != nil {
		return TypeName{}, err
	}
	if p.pos != len(p.src) {
		return TypeName{}, fmt.Errorf("type name %q: unexpected %q at offset %d", s, p.src[p.pos:], p.pos)
	}
	return n, nil
}

type nameParser struct {
	src string
	pos int
}

func (p *nameParser) parse() (TypeName, error) {
	var n TypeName
	p.skipSpace()
	if p.peek() == '!' {
		p.pos++
		n.Param = p.ident()
		if n.Param == "" {
			return n, fmt.Errorf("type name %q: empty type parameter reference", p.src)
		}
		return n, nil
	}
	if p.peek() == '[' {
		end := strings.IndexByte(p.src[p.pos:], ']')
		if end < 0 {
			return n, fmt.Errorf("type name %q: unterminated assembly", p.src)
		}
		n.Assembly = strings.TrimSpace(p.src[p.pos+1 : p.pos+end])
		p.pos += end + 1
		p.skipSpace()
	}
	full := p.ident()
	if full == "" {
		return n, fmt.Errorf("type name %q: missing name", p.src)
	}
	if i := strings.IndexByte(full, '`'); i >= 0 {
		arity, err := strconv.Atoi(full[i+1:])
		if err != nil {
			return n, fmt.Errorf("type name %q: bad arity: %w", p.src, err)
		}
		n.Arity = arity
		full = full[:i]
	}
	n.Namespace, n.Name = typesystem.SplitFullName(full)
	if p.peek() == '<' {
		p.pos++
		for {
			arg, err := p.parse()
			if err != nil {
				return n, err
			}
			n.Args = append(n.Args, arg)
			p.skipSpace()
			switch p.peek() {
			case ',':
				p.pos++
				continue
			case '>':
				p.pos++
			default:
				return n, fmt.Errorf("type name %q: expected ',' or '>'", p.src)
			}
			break
		}
		if n.Arity == 0 {
			n.Arity = len(n.Args)
		}
	}
	return n, nil
}

func (p *nameParser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '<' || c == '>' || c == ',' || c == ' ' || c == '[' || c == ']' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *nameParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *nameParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

// NameOf returns the metadata reference for a resolved type.
func NameOf(t typesystem.Type) TypeName {
	switch typ := t.(type) {
	case typesystem.Param:
		return TypeName{Param: typ.String()}
	case typesystem.TNamed:
		if typ.Def == nil {
			return TypeName{Name: "?"}
		}
		n := TypeName{
			Assembly:  typ.Def.Assembly,
			Namespace: typ.Def.Namespace,
			Name:      typ.Def.Name,
			Arity:     len(typ.Def.TypeParams),
		}
		for _, a := range typ.Args {
			n.Args = append(n.Args, NameOf(a))
		}
		return n
	}
	return TypeName{Name: t.String()}
}
