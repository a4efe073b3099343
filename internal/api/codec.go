package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/orrery/internal/render"
	"github.com/signalsfoundry/orrery/kb"
)

// ToStruct converts any JSON-encodable value into a protobuf Struct.
// Numbers travel as doubles.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return s, nil
}

// FromStruct decodes a Struct produced by ToStruct into out.
func FromStruct(s *structpb.Struct, out any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// DecodeFrame decodes a frame message.
func DecodeFrame(s *structpb.Struct) (*render.Frame, error) {
	f := new(render.Frame)
	if err := FromStruct(s, f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}

// DecodeDescription decodes a scene message.
func DecodeDescription(s *structpb.Struct) (*render.Description, error) {
	d := new(render.Description)
	if err := FromStruct(s, d); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	return d, nil
}

// DecodeBody decodes a body message.
func DecodeBody(s *structpb.Struct) (kb.BodyState, error) {
	var b kb.BodyState
	if err := FromStruct(s, &b); err != nil {
		return kb.BodyState{}, fmt.Errorf("decode body: %w", err)
	}
	return b, nil
}
