package schema

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

var protoKinds = map[protoreflect.Kind]Kind{
	protoreflect.DoubleKind:   KindDouble,
	protoreflect.FloatKind:    KindFloat,
	protoreflect.Int32Kind:    KindInt32,
	protoreflect.Int64Kind:    KindInt64,
	protoreflect.Uint32Kind:   KindUint32,
	protoreflect.Uint64Kind:   KindUint64,
	protoreflect.Sint32Kind:   KindSint32,
	protoreflect.Sint64Kind:   KindSint64,
	protoreflect.Fixed32Kind:  KindFixed32,
	protoreflect.Fixed64Kind:  KindFixed64,
	protoreflect.Sfixed32Kind: KindSfixed32,
	protoreflect.Sfixed64Kind: KindSfixed64,
	protoreflect.BoolKind:     KindBool,
	protoreflect.StringKind:   KindString,
	protoreflect.BytesKind:    KindBytes,
	protoreflect.EnumKind:     KindEnum,
	protoreflect.MessageKind:  KindMessage,
	protoreflect.GroupKind:    KindMessage,
}

// FromProto converts a protobuf message descriptor. Field names use the
// descriptor's JSON (lowerCamelCase) names, matching the keys produced by the
// row decoder. Recursive message types are converted once and shared.
func FromProto(md protoreflect.MessageDescriptor) *Message {
	c := converter{
		messages: make(map[protoreflect.FullName]*Message),
		enums:    make(map[protoreflect.FullName]*Enum),
	}
	return c.message(md)
}

type converter struct {
	messages map[protoreflect.FullName]*Message
	enums    map[protoreflect.FullName]*Enum
}

func (c *converter) message(md protoreflect.MessageDescriptor) *Message {
	if m, ok := c.messages[md.FullName()]; ok {
		return m
	}
	m := NewMessage(string(md.FullName()))
	c.messages[md.FullName()] = m

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.IsMap() {
			// Map fields decode as repeated key/value entries.
			m.AddField(&Field{
				Name:     fd.JSONName(),
				Kind:     KindMessage,
				Repeated: true,
				Message:  c.message(fd.Message()),
			})
			continue
		}
		f := &Field{
			Name:     fd.JSONName(),
			Kind:     protoKinds[fd.Kind()],
			Repeated: fd.IsList(),
		}
		switch f.Kind {
		case KindMessage:
			f.Message = c.message(fd.Message())
		case KindEnum:
			f.Enum = c.enum(fd.Enum())
		}
		m.AddField(f)
	}
	return m
}

func (c *converter) enum(ed protoreflect.EnumDescriptor) *Enum {
	if e, ok := c.enums[ed.FullName()]; ok {
		return e
	}
	values := ed.Values()
	out := make([]EnumValue, 0, values.Len())
	for i := 0; i < values.Len(); i++ {
		v := values.Get(i)
		out = append(out, EnumValue{Number: int32(v.Number()), Name: string(v.Name())})
	}
	e := NewEnum(string(ed.FullName()), out...)
	c.enums[ed.FullName()] = e
	return e
}

// LoadDescriptorSet parses a serialized FileDescriptorSet (as written by
// `protoc --descriptor_set_out --include_imports`) and converts the message
// with the given full name.
func LoadDescriptorSet(data []byte, messageName string) (*Message, error) {
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("schema: unmarshal descriptor set: %w", err)
	}
	files, err := protodesc.NewFiles(&set)
	if err != nil {
		return nil, fmt.Errorf("schema: build descriptor registry: %w", err)
	}
	d, err := files.FindDescriptorByName(protoreflect.FullName(messageName))
	if err != nil {
		return nil, fmt.Errorf("schema: find %s: %w", messageName, err)
	}
	md, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, fmt.Errorf("schema: %s is not a message", messageName)
	}
	return FromProto(md), nil
}
