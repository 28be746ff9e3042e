package image

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/funvibe/typecon/internal/metadata"
)

//go:embed image.proto
var schemaSource string

const schemaFile = "image.proto"

var (
	schemaOnce sync.Once
	schemaFD   *desc.FileDescriptor
	schemaErr  error
)

func schema() (*desc.FileDescriptor, error) {
	schemaOnce.Do(func() {
		parser := protoparse.Parser{
			Accessor: protoparse.FileContentsFromMap(map[string]string{schemaFile: schemaSource}),
		}
		fds, err := parser.ParseFiles(schemaFile)
		if err != nil {
			schemaErr = fmt.Errorf("parsing image schema: %w", err)
			return
		}
		schemaFD = fds[0]
	})
	return schemaFD, schemaErr
}

func messageType(name string) (*desc.MessageDescriptor, error) {
	fd, err := schema()
	if err != nil {
		return nil, err
	}
	md := fd.FindMessage("typecon.image." + name)
	if md == nil {
		return nil, fmt.Errorf("image schema: message %s not found", name)
	}
	return md, nil
}

// Marshal encodes img deterministically: the same image always yields the
// same bytes.
func Marshal(img *Image) ([]byte, error) {
	md, err := messageType("Image")
	if err != nil {
		return nil, err
	}
	w := &writer{}
	msg := dynamic.NewMessage(md)
	w.set(msg, "id", img.ID.String())
	w.set(msg, "assembly", img.Assembly)
	w.set(msg, "corlib", img.Corlib)
	for _, r := range img.References {
		w.add(msg, "references", r)
	}
	for _, t := range img.Types {
		w.add(msg, "types", w.typeDef(msg, t))
	}
	for _, m := range img.Members {
		w.add(msg, "members", w.member(msg, m))
	}
	for _, p := range img.Params {
		w.add(msg, "params", w.param(msg, p))
	}
	if w.err != nil {
		return nil, w.err
	}
	return msg.MarshalDeterministic()
}

// Unmarshal decodes an image produced by Marshal.
func Unmarshal(data []byte) (*Image, error) {
	md, err := messageType("Image")
	if err != nil {
		return nil, err
	}
	msg := dynamic.NewMessage(md)
	if err := msg.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	r := &reader{}
	img := &Image{
		Assembly: r.str(msg, "assembly"),
		Corlib:   r.boolean(msg, "corlib"),
	}
	if id := r.str(msg, "id"); id != "" {
		img.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("decoding image id: %w", err)
		}
	}
	img.References = r.strs(msg, "references")
	for _, m := range r.msgs(msg, "types") {
		img.Types = append(img.Types, r.typeDef(m))
	}
	for _, m := range r.msgs(msg, "members") {
		img.Members = append(img.Members, r.member(m))
	}
	for _, m := range r.msgs(msg, "params") {
		img.Params = append(img.Params, r.param(m))
	}
	if r.err != nil {
		return nil, r.err
	}
	return img, nil
}

// WriteFile marshals img to path.
func WriteFile(path string, img *Image) error {
	data, err := Marshal(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing image %s: %w", path, err)
	}
	return nil
}

// ReadFile loads an image from path.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", path, err)
	}
	img, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// writer builds nested messages, keeping the first error.
type writer struct {
	err error
}

func (w *writer) child(parent *dynamic.Message, field string) *dynamic.Message {
	fd := parent.GetMessageDescriptor().FindFieldByName(field)
	if fd == nil || fd.GetMessageType() == nil {
		if w.err == nil {
			w.err = fmt.Errorf("image schema: %s has no message field %s", parent.GetMessageDescriptor().GetName(), field)
		}
		return dynamic.NewMessage(parent.GetMessageDescriptor())
	}
	return dynamic.NewMessage(fd.GetMessageType())
}

func (w *writer) set(msg *dynamic.Message, field string, v any) {
	if w.err != nil {
		return
	}
	fd := msg.GetMessageDescriptor().FindFieldByName(field)
	if fd == nil {
		w.err = fmt.Errorf("image schema: unknown field %s", field)
		return
	}
	v, err := convertScalar(v, fd)
	if err != nil {
		w.err = fmt.Errorf("field %s: %w", field, err)
		return
	}
	if err := msg.TrySetField(fd, v); err != nil {
		w.err = fmt.Errorf("field %s: %w", field, err)
	}
}

func (w *writer) add(msg *dynamic.Message, field string, v any) {
	if w.err != nil {
		return
	}
	fd := msg.GetMessageDescriptor().FindFieldByName(field)
	if fd == nil {
		w.err = fmt.Errorf("image schema: unknown field %s", field)
		return
	}
	v, err := convertScalar(v, fd)
	if err != nil {
		w.err = fmt.Errorf("field %s: %w", field, err)
		return
	}
	if err := msg.TryAddRepeatedField(fd, v); err != nil {
		w.err = fmt.Errorf("field %s: %w", field, err)
	}
}

// convertScalar narrows Go ints to the field's wire type.
func convertScalar(v any, fd *desc.FieldDescriptor) (any, error) {
	switch fd.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32:
		switch n := v.(type) {
		case int:
			return int32(n), nil
		case int32:
			return n, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32:
		switch n := v.(type) {
		case int:
			return uint32(n), nil
		case uint32:
			return n, nil
		case metadata.GenericParamAttributes:
			return uint32(n), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:
		if m, ok := v.(*dynamic.Message); ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("cannot store %T as %v", v, fd.GetType())
}

func (w *writer) typeRef(parent *dynamic.Message, field string, n metadata.TypeName) *dynamic.Message {
	msg := w.child(parent, field)
	if n.Param != "" {
		w.set(msg, "param", n.Param)
		return msg
	}
	if n.Assembly != "" {
		w.set(msg, "assembly", n.Assembly)
	}
	w.set(msg, "namespace", n.Namespace)
	w.set(msg, "name", n.Name)
	if n.Arity > 0 {
		w.set(msg, "arity", n.Arity)
	}
	for _, a := range n.Args {
		w.add(msg, "args", w.typeRef(msg, "args", a))
	}
	return msg
}

func (w *writer) typeDef(parent *dynamic.Message, t TypeDef) *dynamic.Message {
	msg := w.child(parent, "types")
	w.set(msg, "namespace", t.Namespace)
	w.set(msg, "name", t.Name)
	w.set(msg, "kind", t.Kind)
	for _, p := range t.TypeParams {
		w.add(msg, "type_params", p)
	}
	if t.Base != nil {
		w.set(msg, "base", w.typeRef(msg, "base", *t.Base))
	}
	for _, i := range t.Interfaces {
		w.add(msg, "interfaces", w.typeRef(msg, "interfaces", i))
	}
	for _, f := range t.Fields {
		fm := w.child(msg, "fields")
		w.set(fm, "name", f.Name)
		w.set(fm, "type", w.typeRef(fm, "type", f.Type))
		w.set(fm, "static", f.Static)
		w.add(msg, "fields", fm)
	}
	w.set(msg, "sealed", t.Sealed)
	w.set(msg, "abstract", t.Abstract)
	w.set(msg, "default_ctor", t.DefaultCtor)
	return msg
}

func (w *writer) member(parent *dynamic.Message, m MemberDef) *dynamic.Message {
	msg := w.child(parent, "members")
	w.set(msg, "name", m.Name)
	w.set(msg, "container", m.Container)
	w.set(msg, "kind", m.Kind)
	for _, p := range m.TypeParams {
		w.add(msg, "type_params", p)
	}
	w.set(msg, "overrides", m.Overrides)
	w.set(msg, "implements", m.Implements)
	w.set(msg, "explicit", m.Explicit)
	return msg
}

func (w *writer) param(parent *dynamic.Message, p metadata.RawTypeParameter) *dynamic.Message {
	msg := w.child(parent, "params")
	w.set(msg, "owner", p.Owner)
	w.set(msg, "name", p.Name)
	w.set(msg, "ordinal", p.Ordinal)
	w.set(msg, "flags", p.Flags)
	for _, c := range p.Constraints {
		cm := w.child(msg, "constraints")
		w.set(cm, "type", w.typeRef(cm, "type", c.Type))
		for _, mod := range c.Modifiers {
			mm := w.child(cm, "modifiers")
			w.set(mm, "required", mod.Kind == metadata.ModRequired)
			w.set(mm, "type", w.typeRef(mm, "type", mod.Type))
			w.add(cm, "modifiers", mm)
		}
		w.add(msg, "constraints", cm)
	}
	for _, a := range p.Attributes {
		w.add(msg, "attributes", w.typeRef(msg, "attributes", a))
	}
	return msg
}

// reader extracts fields, keeping the first error.
type reader struct {
	err error
}

func (r *reader) get(msg *dynamic.Message, field string) any {
	if r.err != nil {
		return nil
	}
	v, err := msg.TryGetFieldByName(field)
	if err != nil {
		r.err = fmt.Errorf("image field %s: %w", field, err)
		return nil
	}
	return v
}

func (r *reader) str(msg *dynamic.Message, field string) string {
	s, _ := r.get(msg, field).(string)
	return s
}

func (r *reader) boolean(msg *dynamic.Message, field string) bool {
	b, _ := r.get(msg, field).(bool)
	return b
}

func (r *reader) num(msg *dynamic.Message, field string) int {
	n, _ := r.get(msg, field).(int32)
	return int(n)
}

func (r *reader) unum(msg *dynamic.Message, field string) uint32 {
	n, _ := r.get(msg, field).(uint32)
	return n
}

func (r *reader) strs(msg *dynamic.Message, field string) []string {
	list, _ := r.get(msg, field).([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (r *reader) msgs(msg *dynamic.Message, field string) []*dynamic.Message {
	list, _ := r.get(msg, field).([]any)
	out := make([]*dynamic.Message, 0, len(list))
	for _, v := range list {
		if m, ok := v.(*dynamic.Message); ok {
			out = append(out, m)
		}
	}
	return out
}

// msg returns a singular message field, nil when unset.
func (r *reader) msg(msg *dynamic.Message, field string) *dynamic.Message {
	if !msg.HasFieldName(field) {
		return nil
	}
	m, _ := r.get(msg, field).(*dynamic.Message)
	return m
}

func (r *reader) typeRef(msg *dynamic.Message) metadata.TypeName {
	if msg == nil {
		return metadata.TypeName{}
	}
	if p := r.str(msg, "param"); p != "" {
		return metadata.TypeName{Param: p}
	}
	n := metadata.TypeName{
		Assembly:  r.str(msg, "assembly"),
		Namespace: r.str(msg, "namespace"),
		Name:      r.str(msg, "name"),
		Arity:     r.num(msg, "arity"),
	}
	for _, a := range r.msgs(msg, "args") {
		n.Args = append(n.Args, r.typeRef(a))
	}
	return n
}

func (r *reader) typeDef(msg *dynamic.Message) TypeDef {
	t := TypeDef{
		Namespace:   r.str(msg, "namespace"),
		Name:        r.str(msg, "name"),
		Kind:        r.str(msg, "kind"),
		TypeParams:  r.strs(msg, "type_params"),
		Sealed:      r.boolean(msg, "sealed"),
		Abstract:    r.boolean(msg, "abstract"),
		DefaultCtor: r.boolean(msg, "default_ctor"),
	}
	if b := r.msg(msg, "base"); b != nil {
		base := r.typeRef(b)
		t.Base = &base
	}
	for _, i := range r.msgs(msg, "interfaces") {
		t.Interfaces = append(t.Interfaces, r.typeRef(i))
	}
	for _, f := range r.msgs(msg, "fields") {
		t.Fields = append(t.Fields, FieldDef{
			Name:   r.str(f, "name"),
			Type:   r.typeRef(r.msg(f, "type")),
			Static: r.boolean(f, "static"),
		})
	}
	return t
}

func (r *reader) member(msg *dynamic.Message) MemberDef {
	return MemberDef{
		Name:       r.str(msg, "name"),
		Container:  r.str(msg, "container"),
		Kind:       r.str(msg, "kind"),
		TypeParams: r.strs(msg, "type_params"),
		Overrides:  r.str(msg, "overrides"),
		Implements: r.str(msg, "implements"),
		Explicit:   r.boolean(msg, "explicit"),
	}
}

func (r *reader) param(msg *dynamic.Message) metadata.RawTypeParameter {
	p := metadata.RawTypeParameter{
		Owner:   r.str(msg, "owner"),
		Name:    r.str(msg, "name"),
		Ordinal: r.num(msg, "ordinal"),
		Flags:   metadata.GenericParamAttributes(r.unum(msg, "flags")),
	}
	for _, c := range r.msgs(msg, "constraints") {
		rc := metadata.RawConstraint{Type: r.typeRef(r.msg(c, "type"))}
		for _, m := range r.msgs(c, "modifiers") {
			kind := metadata.ModOptional
			if r.boolean(m, "required") {
				kind = metadata.ModRequired
			}
			rc.Modifiers = append(rc.Modifiers, metadata.ModifierSpec{Kind: kind, Type: r.typeRef(r.msg(m, "type"))})
		}
		p.Constraints = append(p.Constraints, rc)
	}
	for _, a := range r.msgs(msg, "attributes") {
		p.Attributes = append(p.Attributes, r.typeRef(a))
	}
	return p
}
