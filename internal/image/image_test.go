package image

import (
	"bytes"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/funvibe/typecon/internal/config"
	"github.com/funvibe/typecon/internal/metadata"
)

func sampleImage() *Image {
	img := New("Lib")
	img.References = []string{"mscorlib"}
	base := metadata.TypeName{Assembly: "mscorlib", Namespace: "System", Name: "ValueType"}
	img.Types = []TypeDef{{
		Namespace:  "Lib",
		Name:       "Buffer",
		Kind:       "struct",
		TypeParams: []string{"T"},
		Base:       &base,
		Fields: []FieldDef{
			{Name: "Item", Type: metadata.TypeName{Param: "T"}},
			{Name: "Count", Type: metadata.TypeName{Assembly: "mscorlib", Namespace: "System", Name: "Int32"}, Static: true},
		},
		Sealed: true,
	}}
	img.Members = []MemberDef{{
		Name:       "Copy",
		Container:  "Lib.Buffer",
		Kind:       "method",
		TypeParams: []string{"U"},
		Overrides:  "Lib.Base.Copy",
	}}
	img.Params = []metadata.RawTypeParameter{{
		Owner: "Lib.Buffer`1",
		Name:  "T",
		Flags: metadata.AttrNotNullableValueTypeConstraint | metadata.AttrDefaultConstructorConstraint,
		Constraints: []metadata.RawConstraint{{
			Type: base,
			Modifiers: []metadata.ModifierSpec{{
				Kind: metadata.ModRequired,
				Type: metadata.TypeName{Assembly: "mscorlib", Namespace: "System.Runtime.InteropServices", Name: "UnmanagedType"},
			}},
		}},
		Attributes: []metadata.TypeName{{Namespace: "System.Runtime.CompilerServices", Name: "IsUnmanagedAttribute"}},
	}}
	return img
}

func TestWriteReadFile(t *testing.T) {
	img := sampleImage()
	path := filepath.Join(t.TempDir(), "lib"+config.ImageFileExt)
	if err := WriteFile(path, img); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if got.ID != img.ID || got.Assembly != "Lib" || len(got.References) != 1 {
		t.Errorf("header = %s %s %v", got.ID, got.Assembly, got.References)
	}
	if len(got.Types) != 1 {
		t.Fatalf("got %d types", len(got.Types))
	}
	typ := got.Types[0]
	if typ.FullName() != "Lib.Buffer`1" || typ.Base == nil || typ.Base.String() != "[mscorlib]System.ValueType" {
		t.Errorf("type = %s base %v", typ.FullName(), typ.Base)
	}
	if len(typ.Fields) != 2 || typ.Fields[0].Type.Param != "T" || !typ.Fields[1].Static {
		t.Errorf("fields = %+v", typ.Fields)
	}
	if len(got.Members) != 1 || got.Members[0].QualifiedName() != "Lib.Buffer.Copy" || got.Members[0].Overrides != "Lib.Base.Copy" {
		t.Errorf("members = %+v", got.Members)
	}

	raws, err := got.TypeParameters("Lib.Buffer`1")
	if err != nil {
		t.Fatal(err)
	}
	shape, _, err := metadata.DecodeTypeParameter(raws[0], nil)
	if err != nil || !shape.Unmanaged || shape.Malformed {
		t.Errorf("stored parameter decodes to %+v, %v", shape, err)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	img := sampleImage()
	a, err := Marshal(img)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(img)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("Marshal() is not deterministic")
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.img"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile() error = %v, want fs.ErrNotExist", err)
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Errorf("Unmarshal() accepted garbage")
	}
}

func TestImageReaderWriter(t *testing.T) {
	img := New("Lib")
	rows := []metadata.RawTypeParameter{
		{Owner: "C.M", Name: "U", Ordinal: 1},
		{Owner: "C.M", Name: "T", Ordinal: 0},
		{Owner: "A`1", Name: "K"},
	}
	for _, r := range rows {
		if err := img.WriteTypeParameter(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := img.WriteTypeParameter(metadata.RawTypeParameter{Owner: "C.M", Name: "V", Ordinal: 1}); err != nil {
		t.Fatal(err)
	}

	owners, _ := img.Owners()
	if len(owners) != 2 || owners[0] != "A`1" || owners[1] != "C.M" {
		t.Errorf("Owners() = %v", owners)
	}
	params, err := img.TypeParameters("C.M")
	if err != nil || len(params) != 2 || params[0].Name != "T" || params[1].Name != "V" {
		t.Errorf("TypeParameters(C.M) = %+v, %v", params, err)
	}
	if _, err := img.TypeParameters("nope"); err == nil {
		t.Errorf("unknown owner gave no error")
	}
}

func TestNewInTestModeIsReproducible(t *testing.T) {
	prev := config.IsTestMode
	config.IsTestMode = true
	defer func() { config.IsTestMode = prev }()

	if New("Lib").ID != New("Lib").ID {
		t.Errorf("image ids differ in test mode")
	}
	if New("Lib").ID == New("Other").ID {
		t.Errorf("different assemblies share an id")
	}
}
