package universe

import (
	"strings"
	"testing"

	"github.com/funvibe/typecon/internal/config"
)

func TestParseDefaults(t *testing.T) {
	u, err := Parse([]byte(`
assemblies:
  - {name: mscorlib, corlib: true, builtin: true}
  - name: Lib
    types:
      - {name: Api, members: [{name: M}]}
      - {name: S, kind: struct}
      - {name: A, abstract: true}
compilation:
  name: App
`), "dir/u.yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if u.LanguageVersion != "latest" || u.Version() != config.LanguageVersionLatest {
		t.Errorf("language version = %q", u.LanguageVersion)
	}
	if got := strings.Join(u.Compilation.References, ","); got != "mscorlib,Lib" {
		t.Errorf("references = %s", got)
	}
	if u.Dir != "dir" {
		t.Errorf("Dir = %q", u.Dir)
	}

	types := u.Assemblies[1].Types
	tests := []struct {
		name string
		kind string
		ctor bool
	}{
		{"Api", "class", true},
		{"S", "struct", false},
		{"A", "class", false},
	}
	for i, tt := range tests {
		if types[i].Kind != tt.kind {
			t.Errorf("%s: kind = %q, want %q", tt.name, types[i].Kind, tt.kind)
		}
		if *types[i].DefaultCtor != tt.ctor {
			t.Errorf("%s: default ctor = %v, want %v", tt.name, *types[i].DefaultCtor, tt.ctor)
		}
	}
	if types[0].Members[0].Kind != "method" {
		t.Errorf("member kind = %q", types[0].Members[0].Kind)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing compilation name",
			doc:  "compilation: {}",
			want: `Compilation.Name: failed "required"`,
		},
		{
			name: "bad kind",
			doc:  "compilation: {name: App, types: [{name: X, kind: record}]}",
			want: `failed "oneof"`,
		},
		{
			name: "bad language version",
			doc:  "language_version: seven\ncompilation: {name: App}",
			want: "language version",
		},
		{
			name: "duplicate assembly",
			doc:  "assemblies: [{name: L}, {name: L}]\ncompilation: {name: App}",
			want: `duplicate assembly "L"`,
		},
		{
			name: "image with types",
			doc:  "assemblies: [{name: L, image: l.img, types: [{name: X}]}]\ncompilation: {name: App}",
			want: "mutually exclusive",
		},
		{
			name: "builtin without corlib",
			doc:  "assemblies: [{name: L, builtin: true}]\ncompilation: {name: App}",
			want: "builtin requires corlib",
		},
		{
			name: "compilation named like a reference",
			doc:  "assemblies: [{name: L}]\ncompilation: {name: L}",
			want: "has the name of a referenced assembly",
		},
		{
			name: "unknown reference",
			doc:  "assemblies: [{name: L}]\ncompilation: {name: App, references: [M]}",
			want: `unknown assembly "M"`,
		},
		{
			name: "raw metadata in compilation",
			doc: `compilation:
  name: App
  types:
    - name: C
      members:
        - name: M
          type_params:
            - {name: T, metadata: {flags: [valuetype]}}`,
			want: "raw metadata is only allowed in referenced assemblies",
		},
		{
			name: "bad modifier kind",
			doc: `assemblies:
  - name: L
    types:
      - name: C
        type_params:
          - name: T
            metadata:
              constraints:
                - type: System.ValueType
                  modifiers: [{kind: modfoo, type: X}]
compilation: {name: App}`,
			want: `failed "oneof"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), "u.yaml")
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestImagePath(t *testing.T) {
	u := &Universe{Dir: "base"}
	if got := u.ImagePath(AssemblyDecl{Image: "lib.img"}); got != "base/lib.img" {
		t.Errorf("relative image path = %q", got)
	}
	if got := u.ImagePath(AssemblyDecl{Image: "/abs/lib.img"}); got != "/abs/lib.img" {
		t.Errorf("absolute image path = %q", got)
	}
	if got := u.ImagePath(AssemblyDecl{}); got != "" {
		t.Errorf("empty image path = %q", got)
	}
}
