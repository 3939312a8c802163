// Copyright 2024 Plateau Data Systems, Inc. All rights reserved.
package materialize

import (
	avro "github.com/go-avro/avro"

	"github.com/plateaudb/plateau/record"
)

// Projector rewrites rows onto a target schema. It is a best-effort
// structural projection, not a validation step: fields present in
// both source and target keep their values, target fields the source
// lacks come through as nil, and extra source fields are dropped.
// The output row never aliases the input.
type Projector struct {
	target *avro.RecordSchema
	layout *record.ColumnLayout
}

// NewProjector builds a projector onto target. The columnar layout is
// built once here and shared by every projected row.
func NewProjector(target *avro.RecordSchema) *Projector {
	return &Projector{
		target: target,
		layout: record.NewColumnLayout(target),
	}
}

// Schema returns the projection target schema.
func (p *Projector) Schema() *avro.RecordSchema { return p.target }

// Apply projects row onto the target schema, preserving the row's
// representation: columnar rows stay columnar, self-describing rows
// stay self-describing.
func (p *Projector) Apply(row record.Row) record.Row {
	if cr, ok := row.(record.ColumnarRow); ok {
		values := make([]interface{}, len(p.target.Fields))
		for i, f := range p.target.Fields {
			values[i] = cr.Value(f.Name)
		}
		return p.layout.Row(values)
	}

	out := avro.NewGenericRecord(p.target)
	src := row.Schema()
	for _, f := range p.target.Fields {
		if record.HasField(src, f.Name) {
			out.Set(f.Name, row.Value(f.Name))
		}
	}
	return record.NewAvroRow(out)
}
