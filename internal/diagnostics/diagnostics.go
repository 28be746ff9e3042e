package diagnostics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrorCode identifies a diagnostic kind. Rendering is driven by messages.
type ErrorCode string

// Declaration-site codes
const (
	ErrU001 ErrorCode = "U001" // predefined type not defined or imported
	ErrU002 ErrorCode = "U002" // unmanaged must be alone
	ErrU003 ErrorCode = "U003" // new() with unmanaged
	ErrU004 ErrorCode = "U004" // constraint is an unmanaged type parameter
	ErrU005 ErrorCode = "U005" // feature not available in language version
	ErrU006 ErrorCode = "U006" // unmanaged on local function type parameter
	ErrU007 ErrorCode = "U007" // override/explicit implementation with constraints
	ErrU008 ErrorCode = "U008" // bad constraint type
	ErrU009 ErrorCode = "U009" // value and reference constraint together
)

// Use-site codes
const (
	ErrC001 ErrorCode = "C001" // reference type constraint not satisfied
	ErrC002 ErrorCode = "C002" // value type constraint not satisfied (no boxing conversion)
	ErrC003 ErrorCode = "C003" // unmanaged constraint not satisfied
	ErrC004 ErrorCode = "C004" // explicit constraint type not satisfied
	ErrC005 ErrorCode = "C005" // new() constraint not satisfied
	ErrC006 ErrorCode = "C006" // symbol not supported by the language
	ErrC007 ErrorCode = "C007" // type not supported by the language
	ErrC008 ErrorCode = "C008" // pointer to managed type
	ErrC009 ErrorCode = "C009" // bad type argument
	ErrC010 ErrorCode = "C010" // wrong number of type arguments
)

// Resolution codes
const (
	ErrR001 ErrorCode = "R001" // type or member not found
	ErrR002 ErrorCode = "R002" // ambiguous type
	ErrR003 ErrorCode = "R003" // reference not found
	ErrR004 ErrorCode = "R004" // override target mismatch
)

var messages = map[ErrorCode]string{
	ErrU001: "Predefined type '%s' is not defined or imported",
	ErrU002: "The 'unmanaged' constraint cannot be specified with other constraints",
	ErrU003: "The 'new()' constraint cannot be used with the 'unmanaged' constraint",
	ErrU004: "Type parameter '%[2]s' has the 'unmanaged' constraint so '%[2]s' cannot be used as a constraint for '%[1]s'",
	ErrU005: "Feature '%s' is not available in language version %s. Please use language version %s or greater",
	ErrU006: "Using unmanaged constraint on local functions type parameters is not supported",
	ErrU007: "Constraints for override and explicit interface implementation methods are inherited from the base method, so they cannot be specified directly",
	ErrU008: "Invalid constraint type '%s'. A type used as a constraint must be an interface, a non-sealed class or a type parameter",
	ErrU009: "The 'class' and 'struct' constraints cannot be combined on '%s'",

	ErrC001: "The type '%[3]s' must be a reference type in order to use it as parameter '%[2]s' in the generic type or method '%[1]s'",
	ErrC002: "The type '%[3]s' must be a non-nullable value type in order to use it as parameter '%[2]s' in the generic type or method '%[1]s'. There is no boxing conversion to '%[4]s'",
	ErrC003: "The type '%[3]s' cannot be a reference type, or contain reference type fields at any level of nesting, in order to use it as parameter '%[2]s' in the generic type or method '%[1]s'",
	ErrC004: "The type '%[4]s' cannot be used as type parameter '%[3]s' in the generic type or method '%[1]s'. There is no implicit conversion from '%[4]s' to '%[2]s'",
	ErrC005: "'%[3]s' must be a non-abstract type with a public parameterless constructor in order to use it as parameter '%[2]s' in the generic type or method '%[1]s'",
	ErrC006: "'%s' is not supported by the language",
	ErrC007: "'%s' is a type not supported by the language",
	ErrC008: "Cannot take the address of, get the size of, or declare a pointer to a managed type ('%s')",
	ErrC009: "The type '%s' may not be used as a type argument",
	ErrC010: "The generic type or method '%s' requires %s type arguments",

	ErrR001: "The type or member '%s' could not be found",
	ErrR002: "'%s' is an ambiguous reference between %s",
	ErrR003: "Referenced assembly '%s' could not be found",
	ErrR004: "'%s': no suitable member found to override or implement ('%s')",
}

// Location is a source position in "file:line:col" form.
type Location struct {
	File   string
	Line   int
	Column int
	Span   string // text of the offending token, informational
}

// ParseLocation parses "file:line:col" (file and col optional).
func ParseLocation(s string) Location {
	var loc Location
	if s == "" {
		return loc
	}
	parts := strings.Split(s, ":")
	nums := make([]int, 0, 2)
	for len(parts) > 0 && len(nums) < 2 {
		n, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			break
		}
		nums = append([]int{n}, nums...)
		parts = parts[:len(parts)-1]
	}
	loc.File = strings.Join(parts, ":")
	switch len(nums) {
	case 2:
		loc.Line, loc.Column = nums[0], nums[1]
	case 1:
		loc.Line = nums[0]
	}
	return loc
}

func (l Location) String() string {
	if l.Line == 0 {
		return l.File
	}
	if l.Column == 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// DiagnosticError is a reported diagnostic: the kind, where, and arguments.
type DiagnosticError struct {
	Code     ErrorCode
	Location Location
	Args     []string
}

func NewError(code ErrorCode, loc Location, args ...string) *DiagnosticError {
	return &DiagnosticError{Code: code, Location: loc, Args: args}
}

// Message renders the diagnostic text without the location prefix.
func (e *DiagnosticError) Message() string {
	tmpl, ok := messages[e.Code]
	if !ok {
		return strings.Join(e.Args, ", ")
	}
	args := make([]any, len(e.Args))
	for i, a := range e.Args {
		args[i] = a
	}
	msg := fmt.Sprintf(tmpl, args...)
	// Templates with fewer verbs than args append %!(EXTRA ...); keep the text clean.
	if i := strings.Index(msg, "%!(EXTRA"); i >= 0 {
		msg = strings.TrimSpace(msg[:i])
	}
	return msg
}

func (e *DiagnosticError) Error() string {
	if loc := e.Location.String(); loc != "" {
		return fmt.Sprintf("%s: error %s: %s", loc, e.Code, e.Message())
	}
	return fmt.Sprintf("error %s: %s", e.Code, e.Message())
}

// key deduplicates identical reports from repeated passes over one site.
func (e *DiagnosticError) key() string {
	return fmt.Sprintf("%s:%s:%s", e.Location, e.Code, strings.Join(e.Args, "\x00"))
}

// Sink accepts diagnostics. Implementations must be safe for concurrent use.
type Sink interface {
	Report(err *DiagnosticError)
}

// Bag collects diagnostics, deduplicating by location, code and arguments.
type Bag struct {
	mu     sync.Mutex
	seen   map[string]bool
	errors []*DiagnosticError
}

func NewBag() *Bag {
	return &Bag{seen: make(map[string]bool)}
}

func (b *Bag) Report(err *DiagnosticError) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seen == nil {
		b.seen = make(map[string]bool)
	}
	k := err.key()
	if b.seen[k] {
		return
	}
	b.seen[k] = true
	b.errors = append(b.errors, err)
}

// Errors returns the collected diagnostics sorted by location then code.
func (b *Bag) Errors() []*DiagnosticError {
	b.mu.Lock()
	out := make([]*DiagnosticError, len(b.errors))
	copy(out, b.errors)
	b.mu.Unlock()
	Sort(out)
	return out
}

func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.errors)
}

// Sort orders diagnostics deterministically.
func Sort(errs []*DiagnosticError) {
	sort.SliceStable(errs, func(i, j int) bool {
		a, b := errs[i], errs[j]
		if a.Location.File != b.Location.File {
			return a.Location.File < b.Location.File
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		if a.Location.Column != b.Location.Column {
			return a.Location.Column < b.Location.Column
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return strings.Join(a.Args, ",") < strings.Join(b.Args, ",")
	})
}
