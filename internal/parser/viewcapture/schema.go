package viewcapture

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/ashita-ai/tracelens/internal/schema"
)

// Schemas holds the decoded message types of a ViewCapture trace.
type Schemas struct {
	// Window describes the args of a trace entry.
	Window *schema.Message
	// View describes the args of one view node.
	View *schema.Message
}

// LoadSchemas returns the ViewCapture schemas, building them on first use.
var LoadSchemas = sync.OnceValues(func() (*Schemas, error) {
	fd, err := protodesc.NewFile(viewCaptureFile(), nil)
	if err != nil {
		return nil, fmt.Errorf("viewcapture: build descriptor: %w", err)
	}
	window := fd.Messages().ByName("WindowData")
	view := fd.Messages().ByName("ViewNode")
	if window == nil || view == nil {
		return nil, fmt.Errorf("viewcapture: descriptor is missing WindowData or ViewNode")
	}
	return &Schemas{
		Window: schema.FromProto(window),
		View:   schema.FromProto(view),
	}, nil
})

func field(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func enumField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := field(name, number, descriptorpb.FieldDescriptorProto_TYPE_ENUM)
	f.TypeName = proto.String(typeName)
	return f
}

func viewCaptureFile() *descriptorpb.FileDescriptorProto {
	const (
		i32 = descriptorpb.FieldDescriptorProto_TYPE_INT32
		f32 = descriptorpb.FieldDescriptorProto_TYPE_FLOAT
		str = descriptorpb.FieldDescriptorProto_TYPE_STRING
		b   = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	)
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("tracelens/viewcapture.proto"),
		Package: proto.String("tracelens.viewcapture"),
		Syntax:  proto.String("proto2"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("Visibility"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("VISIBLE"), Number: proto.Int32(0)},
				{Name: proto.String("INVISIBLE"), Number: proto.Int32(4)},
				{Name: proto.String("GONE"), Number: proto.Int32(8)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("WindowData"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("window_name", 1, str),
					field("package_name", 2, str),
					repeated(field("children", 3, i32)),
				},
			},
			{
				Name: proto.String("ViewNode"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("hashcode", 1, i32),
					field("class_name", 2, str),
					field("view_id", 3, str),
					field("left", 4, i32),
					field("top", 5, i32),
					field("width", 6, i32),
					field("height", 7, i32),
					field("scroll_x", 8, i32),
					field("scroll_y", 9, i32),
					field("translation_x", 10, f32),
					field("translation_y", 11, f32),
					field("scale_x", 12, f32),
					field("scale_y", 13, f32),
					field("alpha", 14, f32),
					enumField("visibility", 15, ".tracelens.viewcapture.Visibility"),
					field("will_not_draw", 16, b),
					field("clip_children", 17, b),
					field("elevation", 18, f32),
					repeated(field("children", 19, i32)),
					field("layer_type", 20, i32),
					field("scroll_indicators", 21, i32),
				},
			},
		},
	}
}
