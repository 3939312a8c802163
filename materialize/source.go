// Copyright 2024 Plateau Data Systems, Inc. All rights reserved.
package materialize

import (
	"io"

	avro "github.com/go-avro/avro"
	"github.com/pkg/errors"

	"github.com/plateaudb/plateau/record"
)

// ErrFlush is returned from RowSource.Next when the source wants to
// signal that there may not be data for a while, so it's a good time
// to cut the current batch. The row must be nil when ErrFlush is
// returned.
var ErrFlush = errors.New("the row source is requesting the batch be flushed")

// RowSource supplies one partition's rows, in order, plus the schema
// they were produced against. Next returns io.EOF when the partition
// is exhausted. Sources are not threadsafe; to process partitions
// concurrently, use one source per partition.
type RowSource interface {
	Next() (record.Row, error)
	// Schema returns the source schema shared by every row, or nil if
	// the source does not know it (the materializer then falls back
	// to the configured writer schema).
	Schema() *avro.RecordSchema
}

type rowsSource struct {
	schema *avro.RecordSchema
	rows   []record.Row
	i      int
}

// NewRows returns an in-memory RowSource over the given rows.
func NewRows(schema *avro.RecordSchema, rows ...record.Row) RowSource {
	return &rowsSource{schema: schema, rows: rows}
}

// NewAvroRows returns an in-memory RowSource over self-describing rows.
func NewAvroRows(schema *avro.RecordSchema, recs ...*avro.GenericRecord) RowSource {
	rows := make([]record.Row, len(recs))
	for i, r := range recs {
		rows[i] = record.NewAvroRow(r)
	}
	return &rowsSource{schema: schema, rows: rows}
}

// NewColumnarRows returns an in-memory RowSource over positional rows
// sharing the layout's schema.
func NewColumnarRows(layout *record.ColumnLayout, values ...[]interface{}) RowSource {
	rows := make([]record.Row, len(values))
	for i, v := range values {
		rows[i] = layout.Row(v)
	}
	return &rowsSource{schema: layout.Schema(), rows: rows}
}

func (s *rowsSource) Next() (record.Row, error) {
	if s.i >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.i]
	s.i++
	return row, nil
}

func (s *rowsSource) Schema() *avro.RecordSchema { return s.schema }
