package diagnostics

import (
	"sync"
	"testing"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in   string
		want Location
	}{
		{"", Location{}},
		{"a.cs", Location{File: "a.cs"}},
		{"a.cs:12", Location{File: "a.cs", Line: 12}},
		{"a.cs:12:5", Location{File: "a.cs", Line: 12, Column: 5}},
		{"C:/src/a.cs:3:7", Location{File: "C:/src/a.cs", Line: 3, Column: 7}},
	}
	for _, tt := range tests {
		got := ParseLocation(tt.in)
		if got != tt.want {
			t.Errorf("ParseLocation(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if tt.in != "" && got.String() != tt.in {
			t.Errorf("ParseLocation(%q).String() = %q", tt.in, got.String())
		}
	}
}

func TestErrorRendering(t *testing.T) {
	tests := []struct {
		name string
		err  *DiagnosticError
		want string
	}{
		{
			name: "with location",
			err:  NewError(ErrU002, ParseLocation("a.cs:1:20")),
			want: "a.cs:1:20: error U002: The 'unmanaged' constraint cannot be specified with other constraints",
		},
		{
			name: "without location",
			err:  NewError(ErrR003, Location{}, "Lib"),
			want: "error R003: Referenced assembly 'Lib' could not be found",
		},
		{
			name: "positional arguments",
			err:  NewError(ErrU004, ParseLocation("a.cs:2"), "U", "T"),
			want: "a.cs:2: error U004: Type parameter 'T' has the 'unmanaged' constraint so 'T' cannot be used as a constraint for 'U'",
		},
		{
			name: "use-site argument order",
			err:  NewError(ErrC003, ParseLocation("a.cs:9:1"), "C.M<T>", "T", "W"),
			want: "a.cs:9:1: error C003: The type 'W' cannot be a reference type, or contain reference type fields at any level of nesting, in order to use it as parameter 'T' in the generic type or method 'C.M<T>'",
		},
		{
			name: "extra arguments dropped",
			err:  NewError(ErrU006, Location{}, "ignored"),
			want: "error U006: Using unmanaged constraint on local functions type parameters is not supported",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() =\n  %s\nwant\n  %s", got, tt.want)
			}
		})
	}
}

func TestEveryCodeHasMessage(t *testing.T) {
	codes := []ErrorCode{
		ErrU001, ErrU002, ErrU003, ErrU004, ErrU005, ErrU006, ErrU007, ErrU008, ErrU009,
		ErrC001, ErrC002, ErrC003, ErrC004, ErrC005, ErrC006, ErrC007, ErrC008, ErrC009, ErrC010,
		ErrR001, ErrR002, ErrR003, ErrR004,
	}
	for _, c := range codes {
		if _, ok := messages[c]; !ok {
			t.Errorf("no message for %s", c)
		}
	}
}

func TestBagDeduplicatesAndSorts(t *testing.T) {
	b := NewBag()
	b.Report(NewError(ErrC003, ParseLocation("b.cs:1:1"), "M", "T", "X"))
	b.Report(NewError(ErrU002, ParseLocation("a.cs:5:1")))
	b.Report(NewError(ErrC001, ParseLocation("a.cs:5:1"), "M", "T", "X"))
	b.Report(NewError(ErrU002, ParseLocation("a.cs:5:1")))
	b.Report(NewError(ErrU003, ParseLocation("a.cs:2:9")))

	errs := b.Errors()
	if len(errs) != 4 || b.Len() != 4 {
		t.Fatalf("got %d errors (Len %d), want 4", len(errs), b.Len())
	}
	want := []ErrorCode{ErrU003, ErrC001, ErrU002, ErrC003}
	for i, e := range errs {
		if e.Code != want[i] {
			t.Errorf("errs[%d] = %s, want %s", i, e.Code, want[i])
		}
	}
}

func TestBagConcurrentReports(t *testing.T) {
	b := NewBag()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(line int) {
			defer wg.Done()
			b.Report(NewError(ErrC005, Location{File: "a.cs", Line: line%10 + 1}, "M", "T", "X"))
		}(i)
	}
	wg.Wait()
	if b.Len() != 10 {
		t.Errorf("Len() = %d, want 10", b.Len())
	}
}
