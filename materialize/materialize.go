// Copyright 2024 Plateau Data Systems, Inc. All rights reserved.
// Package materialize turns raw tabular rows into keyed,
// version-aware records for the write path. Each input partition is
// processed independently; within a partition rows are strictly
// ordered and produce exactly one record each.
package materialize

import (
	"context"
	"fmt"
	"io"
	"strings"

	avro "github.com/go-avro/avro"
	"github.com/pkg/errors"

	"github.com/plateaudb/plateau/keygen"
	"github.com/plateaudb/plateau/logger"
	"github.com/plateaudb/plateau/materialize/egpool"
	"github.com/plateaudb/plateau/record"
)

// DefaultPoolSize bounds how many partitions materialize concurrently.
const DefaultPoolSize = 8

// MissingMetaFieldsError is the fatal, partition-level error raised
// when rows flagged prepped do not carry every reserved metadata
// field. It is detected once per partition, before any row of that
// partition is materialized.
type MissingMetaFieldsError struct {
	// Fields are the missing reserved field names, in columnar
	// position order.
	Fields []string
	// RowFormat names the row representation that was being read,
	// "avro" or "columnar".
	RowFormat string
}

func (e *MissingMetaFieldsError) Error() string {
	return fmt.Sprintf("prepped %s row schema is missing reserved metadata fields: %s",
		e.RowFormat, strings.Join(e.Fields, ", "))
}

// Materializer materializes batches of rows into records according to
// a write configuration. It is immutable after construction and safe
// to share across concurrently processed partitions.
type Materializer struct {
	cfg      Config
	combine  bool
	log      logger.Logger
	poolSize int
}

// Option is a functional option for Materializer objects.
type Option func(m *Materializer) error

func OptLogger(l logger.Logger) Option {
	return func(m *Materializer) error {
		m.log = l
		return nil
	}
}

// OptPoolSize bounds the number of partitions processed concurrently
// by Materialize.
func OptPoolSize(n int) Option {
	return func(m *Materializer) error {
		if n <= 0 {
			return errors.Errorf("pool size must be positive, got %d", n)
		}
		m.poolSize = n
		return nil
	}
}

// NewMaterializer builds a Materializer for one batch. The combine
// decision is taken here, once, not per row.
func NewMaterializer(cfg Config, opts ...Option) (*Materializer, error) {
	if cfg.InstantTime == "" {
		return nil, errors.New("config has no instant time")
	}
	if !cfg.Prepped && cfg.KeyGenerator == "" {
		return nil, errors.New("unprepped writes need a key generator")
	}
	m := &Materializer{
		cfg:      cfg,
		combine:  cfg.ShouldCombine(),
		log:      logger.NopLogger,
		poolSize: DefaultPoolSize,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}
	return m, nil
}

// ShouldCombine reports the batch-level combine decision.
func (m *Materializer) ShouldCombine() bool { return m.combine }

// Materialize processes every partition, each on its own worker, and
// returns one record slice per source in the same order. A fatal
// error aborts only its own partition; the remaining partitions'
// outputs are still returned alongside the first error. All errors
// are wrapped with their partition number.
func (m *Materializer) Materialize(ctx context.Context, sources []RowSource) ([][]*record.Record, error) {
	out := make([][]*record.Record, len(sources))
	pool := egpool.Group{PoolSize: m.poolSize}
	for i, src := range sources {
		i, src := i, src
		pool.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			recs, err := m.Partition(i, src)
			if err != nil {
				m.log.Errorf("materializing partition %d: %v", i, err)
				return errors.Wrapf(err, "partition %d", i)
			}
			out[i] = recs
			return nil
		})
	}
	return out, pool.Wait()
}

// Partition materializes one partition's rows, in input order. All
// per-partition setup (schema parsing, key generator construction,
// reserved-field validation) happens lazily on the first row and is
// amortized across the partition.
func (m *Materializer) Partition(partitionID int, src RowSource) ([]*record.Record, error) {
	p := &partition{m: m, id: partitionID, src: src}
	var out []*record.Record
	for {
		row, err := src.Next()
		// ErrFlush ends the batch cleanly: the rows read so far are the
		// batch, and the source stays usable for the next one.
		if err == io.EOF || err == ErrFlush {
			break
		}
		if err != nil {
			CounterPartitionFailures.Inc()
			return nil, errors.Wrap(err, "reading row")
		}
		if !p.ready {
			if err := p.init(row); err != nil {
				CounterPartitionFailures.Inc()
				return nil, err
			}
		}
		rec, err := p.materialize(row)
		if err != nil {
			CounterPartitionFailures.Inc()
			return nil, err
		}
		out = append(out, rec)
		CounterRowsMaterialized.Inc()
	}
	return out, nil
}

// partition holds the state scoped to one partition's row iteration.
// It is never shared across partitions, so the one-time validation
// gate needs no locking.
type partition struct {
	m   *Materializer
	id  int
	src RowSource

	schema *avro.RecordSchema
	gen    keygen.Generator
	proj   *Projector
	ready  bool
}

// init runs the one-time partition setup against the first row. The
// reserved-field check uses the first row's schema only; schemas are
// uniform within a partition, so checking each row would buy nothing.
func (p *partition) init(first record.Row) error {
	cfg := p.m.cfg

	schema := p.src.Schema()
	if schema == nil {
		if cfg.WriterSchema == "" {
			return errors.New("row source has no schema and no writer schema is configured")
		}
		parsed, err := avro.ParseSchema(cfg.WriterSchema)
		if err != nil {
			return errors.Wrap(err, "parsing writer schema")
		}
		rs, ok := parsed.(*avro.RecordSchema)
		if !ok {
			return errors.Errorf("writer schema must be a record, got %q", parsed.GetName())
		}
		schema = rs
	}
	p.schema = schema

	if cfg.Prepped {
		if missing := record.MissingReserved(first.Schema()); len(missing) > 0 {
			return &MissingMetaFieldsError{Fields: missing, RowFormat: rowFormat(first)}
		}
	} else {
		props := cfg.KeyGenProps
		if props.AutoKey() {
			props = keygen.WithAutoKeyParams(props, p.id, cfg.InstantTime)
		}
		gen, err := keygen.New(cfg.KeyGenerator, props)
		if err != nil {
			return err
		}
		p.gen = gen
	}

	target := schema
	if cfg.DropPartitionColumns {
		if cfg.DataFileSchema == "" {
			return errors.New("dropping partition columns needs a data file schema")
		}
		parsed, err := avro.ParseSchema(cfg.DataFileSchema)
		if err != nil {
			return errors.Wrap(err, "parsing data file schema")
		}
		rs, ok := parsed.(*avro.RecordSchema)
		if !ok {
			return errors.Errorf("data file schema must be a record, got %q", parsed.GetName())
		}
		target = rs
	}
	if cfg.Prepped || cfg.MergePrepped {
		target = record.StripReserved(target)
	}
	p.proj = NewProjector(target)

	p.ready = true
	return nil
}

// materialize turns one row into one record.
func (p *partition) materialize(row record.Row) (*record.Record, error) {
	cfg := p.m.cfg

	key, err := p.resolveKey(row)
	if err != nil {
		return nil, err
	}

	var loc *record.Location
	if cfg.Prepped || cfg.MergePrepped {
		loc = resolveLocation(row)
	}

	data := p.proj.Apply(row)

	var rec *record.Record
	if p.m.combine {
		val := orderingValue(row, cfg.PrecombineField, cfg.ConsistentLogicalTimestamp)
		rec = record.NewWithOrdering(key, data, cfg.PayloadClass, val)
	} else {
		rec = record.New(key, data, cfg.PayloadClass)
	}
	rec.Location = loc
	return rec, nil
}

// resolveKey derives the record key and partition path: from reserved
// fields for prepped rows, from the key generator otherwise. No
// partial key is ever substituted; an empty part is a hard failure
// for the row.
func (p *partition) resolveKey(row record.Row) (record.Key, error) {
	if p.m.cfg.Prepped {
		rk, _ := record.ReservedValue(row, record.RecordKey).(string)
		pp, _ := record.ReservedValue(row, record.PartitionPath).(string)
		if rk == "" {
			return record.Key{}, errors.Errorf("prepped row has no value for %s", record.RecordKeyFieldName)
		}
		if pp == "" {
			return record.Key{}, errors.Errorf("prepped row has no value for %s", record.PartitionPathFieldName)
		}
		CounterPreppedKeysResolved.Inc()
		return record.Key{RecordKey: rk, PartitionPath: pp}, nil
	}

	rk, err := p.gen.RecordKey(row, p.schema)
	if err != nil {
		return record.Key{}, errors.Wrap(err, "generating record key")
	}
	pp, err := p.gen.PartitionPath(row, p.schema)
	if err != nil {
		return record.Key{}, errors.Wrap(err, "generating partition path")
	}
	if rk == "" || pp == "" {
		return record.Key{}, errors.Errorf("key generator returned an empty key part (key %q, partition %q)", rk, pp)
	}
	return record.Key{RecordKey: rk, PartitionPath: pp}, nil
}

// resolveLocation recovers the record's prior storage location from
// the reserved commit-time and file-name fields. Both must be present
// and non-empty; a half-present location is treated as absent.
func resolveLocation(row record.Row) *record.Location {
	commit, _ := record.ReservedValue(row, record.CommitTime).(string)
	fileName, _ := record.ReservedValue(row, record.FileName).(string)
	if commit == "" || fileName == "" {
		return nil
	}
	return &record.Location{
		CommitToken: commit,
		FileID:      record.ParseFileID(fileName),
	}
}

func rowFormat(row record.Row) string {
	if _, ok := row.(record.ColumnarRow); ok {
		return "columnar"
	}
	return "avro"
}
