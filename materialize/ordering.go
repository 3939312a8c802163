// Copyright 2024 Plateau Data Systems, Inc. All rights reserved.
package materialize

import (
	"strings"
	"time"

	avro "github.com/go-avro/avro"

	"github.com/plateaudb/plateau/record"
)

// orderingValue extracts the precombine value from a row. Dotted
// field names traverse nested records on self-describing rows. A
// missing or null value is returned as nil, never as an error; the
// downstream combine stage owns the "no ordering value" policy.
//
// With consistentLogicalTS set, values of timestamp-typed fields are
// surfaced as time.Time rather than their physical epoch integers, so
// records written through logical and physical paths rank
// consistently.
func orderingValue(row record.Row, field string, consistentLogicalTS bool) interface{} {
	if field == "" {
		return nil
	}
	parts := strings.Split(field, ".")
	val := row.Value(parts[0])
	for _, part := range parts[1:] {
		nested, ok := val.(*avro.GenericRecord)
		if !ok {
			return nil
		}
		val = nested.Get(part)
	}
	if val == nil {
		return nil
	}
	if consistentLogicalTS && len(parts) == 1 {
		val = toLogicalTimestamp(row.Schema(), field, val)
	}
	return val
}

func toLogicalTimestamp(schema *avro.RecordSchema, name string, val interface{}) interface{} {
	var fieldSchema avro.Schema
	for _, f := range schema.Fields {
		if f.Name == name {
			fieldSchema = f.Type
			break
		}
	}
	if fieldSchema == nil {
		return val
	}

	var epoch int64
	switch v := val.(type) {
	case int64:
		epoch = v
	case int32:
		epoch = int64(v)
	default:
		return val
	}

	switch logicalTypeOf(fieldSchema) {
	case "timestamp-millis":
		return time.UnixMilli(epoch).UTC()
	case "timestamp-micros":
		return time.UnixMicro(epoch).UTC()
	default:
		return val
	}
}

// logicalTypeOf returns the avro logicalType annotation of a field
// schema, looking through nullable unions.
func logicalTypeOf(s avro.Schema) string {
	if u, ok := s.(*avro.UnionSchema); ok {
		for _, t := range u.Types {
			if _, isNull := t.(*avro.NullSchema); isNull {
				continue
			}
			if lt := logicalTypeOf(t); lt != "" {
				return lt
			}
		}
		return ""
	}
	if v, ok := s.Prop("logicalType"); ok {
		if lt, ok := v.(string); ok {
			return lt
		}
	}
	return ""
}
