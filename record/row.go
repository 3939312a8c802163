// Copyright 2024 Plateau Data Systems, Inc. All rights reserved.
package record

import (
	avro "github.com/go-avro/avro"
)

// Row is the read contract shared by the two row representations the
// write path accepts: self-describing avro rows and positional
// columnar rows. Value returns nil for fields the row does not carry;
// existence checks go through the row's schema.
type Row interface {
	// Value returns the named field's value, or nil if absent.
	Value(name string) interface{}

	// ValueAt returns the value at the given schema position, or nil
	// if the position is out of range.
	ValueAt(pos int) interface{}

	// Schema returns the record schema describing this row.
	Schema() *avro.RecordSchema
}

// AvroRow is the self-describing row variant: an avro generic record
// carrying its own schema.
type AvroRow struct {
	rec *avro.GenericRecord
}

// NewAvroRow wraps an avro generic record as a Row.
func NewAvroRow(rec *avro.GenericRecord) AvroRow {
	return AvroRow{rec: rec}
}

// Record returns the underlying generic record.
func (r AvroRow) Record() *avro.GenericRecord { return r.rec }

func (r AvroRow) Value(name string) interface{} { return r.rec.Get(name) }

func (r AvroRow) ValueAt(pos int) interface{} {
	fields := r.Schema().Fields
	if pos < 0 || pos >= len(fields) {
		return nil
	}
	return r.rec.Get(fields[pos].Name)
}

func (r AvroRow) Schema() *avro.RecordSchema {
	return r.rec.Schema().(*avro.RecordSchema)
}

// ColumnLayout maps the field names of a parsed schema to their
// positions. It is built once per partition and shared by every
// columnar row in it, so per-row field lookup is a map hit rather
// than a schema walk.
type ColumnLayout struct {
	schema *avro.RecordSchema
	index  map[string]int
}

// NewColumnLayout builds a layout for schema.
func NewColumnLayout(schema *avro.RecordSchema) *ColumnLayout {
	index := make(map[string]int, len(schema.Fields))
	for i, f := range schema.Fields {
		index[f.Name] = i
	}
	return &ColumnLayout{schema: schema, index: index}
}

// Schema returns the schema this layout was built from.
func (l *ColumnLayout) Schema() *avro.RecordSchema { return l.schema }

// Row wraps a positional value slice as a ColumnarRow against this
// layout. The slice is used as-is, not copied.
func (l *ColumnLayout) Row(values []interface{}) ColumnarRow {
	return ColumnarRow{layout: l, values: values}
}

// ColumnarRow is the fixed-layout row variant: positional values
// against a schema shared by the whole partition.
type ColumnarRow struct {
	layout *ColumnLayout
	values []interface{}
}

func (r ColumnarRow) Value(name string) interface{} {
	i, ok := r.layout.index[name]
	if !ok {
		return nil
	}
	return r.ValueAt(i)
}

func (r ColumnarRow) ValueAt(pos int) interface{} {
	if pos < 0 || pos >= len(r.values) {
		return nil
	}
	return r.values[pos]
}

func (r ColumnarRow) Schema() *avro.RecordSchema { return r.layout.schema }

// Values returns the row's positional values. The slice is shared
// with the row; callers must not modify it.
func (r ColumnarRow) Values() []interface{} { return r.values }

// ReservedValue reads a reserved metadata field from a row: by fixed
// position for columnar rows, by name for self-describing rows. Both
// paths return nil when the field is absent or null. The columnar
// path checks the schema before trusting the fixed position, so data
// columns are never misread as metadata when the schema carries no
// reserved fields.
func ReservedValue(row Row, f ReservedField) interface{} {
	if cr, ok := row.(ColumnarRow); ok {
		if !HasField(cr.Schema(), f.Name()) {
			return nil
		}
		return cr.ValueAt(f.Pos())
	}
	return row.Value(f.Name())
}

// HasField reports whether schema declares a field with the given name.
func HasField(schema *avro.RecordSchema, name string) bool {
	for _, f := range schema.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// MissingReserved returns the names of the reserved metadata fields
// absent from schema, in columnar position order. An empty result
// means the schema is fit for prepped rows.
func MissingReserved(schema *avro.RecordSchema) []string {
	var missing []string
	for _, f := range Reserved() {
		if !HasField(schema, f.Name()) {
			missing = append(missing, f.Name())
		}
	}
	return missing
}

// StripReserved returns a copy of schema without the reserved
// metadata fields. Schemas without reserved fields come back
// unchanged (same pointer), so callers can strip unconditionally.
func StripReserved(schema *avro.RecordSchema) *avro.RecordSchema {
	kept := make([]*avro.SchemaField, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		if !IsReserved(f.Name) {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(schema.Fields) {
		return schema
	}
	return &avro.RecordSchema{
		Name:       schema.Name,
		Namespace:  schema.Namespace,
		Doc:        schema.Doc,
		Aliases:    schema.Aliases,
		Properties: schema.Properties,
		Fields:     kept,
	}
}
