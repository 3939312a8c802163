// Copyright 2024 Plateau Data Systems, Inc. All rights reserved.
package record

import (
	avro "github.com/go-avro/avro"
	goavro "github.com/linkedin/goavro/v2"
	"github.com/pkg/errors"
)

// PayloadCodec serializes projected payload rows to avro binary for
// the physical writer, and back. It is built once per partition from
// the serialized data-file schema descriptor; schema parsing cost is
// not paid per row.
type PayloadCodec struct {
	schema *avro.RecordSchema
	codec  *goavro.Codec

	// unionBranch maps each union-typed field to the name of its
	// first non-null branch, which goavro needs to wrap native
	// values on encode.
	unionBranch map[string]string
}

// NewPayloadCodec builds a codec from a JSON schema descriptor.
func NewPayloadCodec(schemaJSON string) (*PayloadCodec, error) {
	parsed, err := avro.ParseSchema(schemaJSON)
	if err != nil {
		return nil, errors.Wrap(err, "parsing payload schema")
	}
	rs, ok := parsed.(*avro.RecordSchema)
	if !ok {
		return nil, errors.Errorf("payload schema must be a record, got %q", parsed.GetName())
	}
	codec, err := goavro.NewCodec(schemaJSON)
	if err != nil {
		return nil, errors.Wrap(err, "building payload codec")
	}

	branches := make(map[string]string)
	for _, f := range rs.Fields {
		if u, ok := f.Type.(*avro.UnionSchema); ok {
			for _, t := range u.Types {
				if _, isNull := t.(*avro.NullSchema); !isNull {
					branches[f.Name] = t.GetName()
					break
				}
			}
		}
	}

	return &PayloadCodec{schema: rs, codec: codec, unionBranch: branches}, nil
}

// Schema returns the parsed payload schema.
func (c *PayloadCodec) Schema() *avro.RecordSchema { return c.schema }

// Encode serializes a payload row to avro binary. Fields the row does
// not carry are encoded as null; they must be nullable in the payload
// schema for encoding to succeed.
func (c *PayloadCodec) Encode(row Row) ([]byte, error) {
	native := make(map[string]interface{}, len(c.schema.Fields))
	for _, f := range c.schema.Fields {
		val := row.Value(f.Name)
		if branch, ok := c.unionBranch[f.Name]; ok && val != nil {
			val = map[string]interface{}{branch: val}
		}
		native[f.Name] = val
	}
	buf, err := c.codec.BinaryFromNative(nil, native)
	if err != nil {
		return nil, errors.Wrap(err, "encoding payload")
	}
	return buf, nil
}

// Decode deserializes an avro binary payload into a field-name keyed
// map, unwrapping union values.
func (c *PayloadCodec) Decode(data []byte) (map[string]interface{}, error) {
	native, _, err := c.codec.NativeFromBinary(data)
	if err != nil {
		return nil, errors.Wrap(err, "decoding payload")
	}
	fields, ok := native.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("decoded payload is %T, expected a record", native)
	}
	for name := range c.unionBranch {
		if wrapped, ok := fields[name].(map[string]interface{}); ok && len(wrapped) == 1 {
			for _, v := range wrapped {
				fields[name] = v
			}
		}
	}
	return fields, nil
}
