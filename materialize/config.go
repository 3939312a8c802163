// Copyright 2024 Plateau Data Systems, Inc. All rights reserved.
package materialize

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/plateaudb/plateau/keygen"
)

// Write option keys. Options arrive as a flat key/value map from the
// job layer; ParseConfig turns them into a Config with the documented
// defaults filled in.
const (
	OptOperation                  = "plateau.write.operation"
	OptInstantTime                = "plateau.write.instant.time"
	OptPrepped                    = "plateau.write.prepped"
	OptMergePrepped               = "plateau.write.merge.prepped"
	OptDropPartitionColumns       = "plateau.write.drop.partition.columns"
	OptCombineBeforeInsert        = "plateau.write.combine.before.insert"
	OptCombineBeforeUpsert        = "plateau.write.combine.before.upsert"
	OptInsertDropDuplicates       = "plateau.write.insert.drop.duplicates"
	OptPrecombineField            = "plateau.write.precombine.field"
	OptConsistentLogicalTimestamp = "plateau.write.consistent.logical.timestamp"
	OptPayloadClass               = "plateau.write.payload.class"
	OptKeyGenerator               = "plateau.write.keygen"

	// Options prefixed with this are passed through, whole, to the
	// key generator's property set.
	KeyGenPropPrefix = "plateau.keygen."
)

// Defaults for optional write options.
const (
	DefaultPrecombineField = "ts"
	DefaultPayloadClass    = "overwrite-latest"

	defaultCombineBeforeInsert = false
	defaultCombineBeforeUpsert = true
)

// Operation is the kind of write the batch belongs to.
type Operation string

const (
	OpInsert     Operation = "insert"
	OpBulkInsert Operation = "bulkinsert"
	OpUpsert     Operation = "upsert"
	OpDelete     Operation = "delete"
)

// IsInsert reports whether the operation is insert-class.
func (o Operation) IsInsert() bool {
	return o == OpInsert || o == OpBulkInsert
}

func parseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(s)); op {
	case OpInsert, OpBulkInsert, OpUpsert, OpDelete:
		return op, nil
	default:
		return "", errors.Errorf("unknown write operation %q", s)
	}
}

// Config is the materializer's write configuration, shared read-only
// across all partitions of a batch.
type Config struct {
	Operation   Operation
	InstantTime string

	// Prepped marks rows that already carry reserved metadata from a
	// prior planning pass; MergePrepped marks rows staged for a
	// merge-style write. Both read reserved fields, but only Prepped
	// bypasses key generation.
	Prepped      bool
	MergePrepped bool

	DropPartitionColumns bool

	CombineBeforeInsert  bool
	CombineBeforeUpsert  bool
	InsertDropDuplicates bool

	PrecombineField            string
	ConsistentLogicalTimestamp bool

	// PayloadClass is an opaque identifier forwarded onto every
	// materialized record.
	PayloadClass string

	// KeyGenerator names the registered key generator; KeyGenProps is
	// its property set. Required unless Prepped.
	KeyGenerator string
	KeyGenProps  keygen.Properties

	// WriterSchema is the serialized schema rows were produced
	// against, used when a row source does not supply one.
	// DataFileSchema is the serialized persisted shape, consulted
	// when DropPartitionColumns is set. Both are parsed once per
	// partition, never per row.
	WriterSchema   string
	DataFileSchema string
}

// ParseConfig builds a Config from a flat option map, applying
// defaults for everything optional and failing on malformed values.
func ParseConfig(opts map[string]string) (Config, error) {
	cfg := Config{
		Operation:       OpUpsert,
		PrecombineField: DefaultPrecombineField,
		PayloadClass:    DefaultPayloadClass,
		KeyGenProps:     keygen.Properties{},
	}

	if v, ok := opts[OptOperation]; ok {
		op, err := parseOperation(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Operation = op
	}

	cfg.InstantTime = opts[OptInstantTime]
	if cfg.InstantTime == "" {
		return Config{}, errors.Errorf("%s is required", OptInstantTime)
	}

	var err error
	if cfg.Prepped, err = boolOpt(opts, OptPrepped, false); err != nil {
		return Config{}, err
	}
	if cfg.MergePrepped, err = boolOpt(opts, OptMergePrepped, false); err != nil {
		return Config{}, err
	}
	if cfg.DropPartitionColumns, err = boolOpt(opts, OptDropPartitionColumns, false); err != nil {
		return Config{}, err
	}
	if cfg.CombineBeforeInsert, err = boolOpt(opts, OptCombineBeforeInsert, defaultCombineBeforeInsert); err != nil {
		return Config{}, err
	}
	if cfg.CombineBeforeUpsert, err = boolOpt(opts, OptCombineBeforeUpsert, defaultCombineBeforeUpsert); err != nil {
		return Config{}, err
	}
	if cfg.InsertDropDuplicates, err = boolOpt(opts, OptInsertDropDuplicates, false); err != nil {
		return Config{}, err
	}
	if cfg.ConsistentLogicalTimestamp, err = boolOpt(opts, OptConsistentLogicalTimestamp, false); err != nil {
		return Config{}, err
	}

	if v, ok := opts[OptPrecombineField]; ok {
		cfg.PrecombineField = v
	}
	if v, ok := opts[OptPayloadClass]; ok {
		cfg.PayloadClass = v
	}
	cfg.KeyGenerator = opts[OptKeyGenerator]

	for k, v := range opts {
		if strings.HasPrefix(k, KeyGenPropPrefix) {
			cfg.KeyGenProps[k] = v
		}
	}

	return cfg, nil
}

func boolOpt(opts map[string]string, key string, def bool) (bool, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "parsing %s", key)
	}
	return b, nil
}

// ShouldCombine decides, once per batch, whether duplicate resolution
// runs downstream and therefore whether records are built with an
// ordering value:
//
//   - unprepped insert-class writes combine when either insert-time
//     dedup knob is set (insert.drop.duplicates OR
//     combine.before.insert),
//   - unprepped upserts combine per combine.before.upsert,
//   - everything else combines exactly when the rows are not prepped.
//
// insert.drop.duplicates and combine.before.insert are kept as
// independent knobs; see DESIGN.md.
func (c Config) ShouldCombine() bool {
	switch {
	case !c.Prepped && c.Operation.IsInsert():
		return c.InsertDropDuplicates || c.CombineBeforeInsert
	case !c.Prepped && c.Operation == OpUpsert:
		return c.CombineBeforeUpsert
	default:
		return !c.Prepped
	}
}
