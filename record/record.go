// Copyright 2024 Plateau Data Systems, Inc. All rights reserved.
// Package record defines the storage engine's record model: keys,
// locations, reserved metadata fields, and the materialized record
// handed to the write path.
package record

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Reserved metadata field names. Prepped rows carry these alongside
// their data columns; the write path strips them back out of the
// payload and carries them on the record itself.
const (
	CommitTimeFieldName    = "_plateau_commit_time"
	CommitSeqnoFieldName   = "_plateau_commit_seqno"
	RecordKeyFieldName     = "_plateau_record_key"
	PartitionPathFieldName = "_plateau_partition_path"
	FileNameFieldName      = "_plateau_file_name"
)

// ReservedField enumerates the reserved metadata fields. The integer
// value of each field is also its fixed position in columnar rows
// whose schema carries the reserved fields.
type ReservedField int

const (
	CommitTime ReservedField = iota
	CommitSeqno
	RecordKey
	PartitionPath
	FileName
)

var reservedNames = [...]string{
	CommitTimeFieldName,
	CommitSeqnoFieldName,
	RecordKeyFieldName,
	PartitionPathFieldName,
	FileNameFieldName,
}

// Name returns the canonical field name.
func (f ReservedField) Name() string { return reservedNames[f] }

// Pos returns the field's fixed position in columnar rows.
func (f ReservedField) Pos() int { return int(f) }

// Reserved returns all reserved fields in columnar position order.
func Reserved() []ReservedField {
	return []ReservedField{CommitTime, CommitSeqno, RecordKey, PartitionPath, FileName}
}

// ReservedNames returns the reserved field names in columnar position order.
func ReservedNames() []string {
	names := make([]string, len(reservedNames))
	copy(names, reservedNames[:])
	return names
}

// IsReserved reports whether name is a reserved metadata field name.
func IsReserved(name string) bool {
	for _, n := range reservedNames {
		if n == name {
			return true
		}
	}
	return false
}

// Key uniquely identifies a record within a table: the record key
// plus the partition path placing it in the storage layout. Both
// parts are non-empty in any Key produced by key resolution.
type Key struct {
	RecordKey     string
	PartitionPath string
}

func (k Key) String() string {
	return k.PartitionPath + "/" + k.RecordKey
}

// Location identifies where a prior version of a record resides: the
// commit token of the commit that wrote it, and the file ID of the
// data file holding it.
type Location struct {
	CommitToken string
	FileID      string
}

// Record is a materialized record ready for the write path. Data is
// the projected payload; it never aliases the input row it was
// materialized from.
//
// HasOrdering distinguishes a record built through the combine path
// (an ordering value was selected, possibly nil) from one built
// without ordering at all. Downstream combine logic treats the two
// differently, so the distinction is preserved here rather than
// collapsed into "OrderingVal == nil".
type Record struct {
	Key          Key
	Data         Row
	PayloadClass string
	OrderingVal  interface{}
	HasOrdering  bool

	// Location is the record's current known location when a prior
	// version may already exist on storage, nil otherwise.
	Location *Location
}

// New builds a record without an ordering value.
func New(key Key, data Row, payloadClass string) *Record {
	return &Record{Key: key, Data: data, PayloadClass: payloadClass}
}

// NewWithOrdering builds a record through the combine path. A nil
// orderingVal is recorded as "selected but absent", not as "never
// selected".
func NewWithOrdering(key Key, data Row, payloadClass string, orderingVal interface{}) *Record {
	return &Record{
		Key:          key,
		Data:         data,
		PayloadClass: payloadClass,
		OrderingVal:  orderingVal,
		HasOrdering:  true,
	}
}

const dataFileSuffix = ".parquet"

// NewFileID returns a fresh data file ID.
func NewFileID() string {
	return uuid.NewString()
}

// DataFileName composes a data file name from its file ID, the write
// token of the task producing it, and the commit instant.
func DataFileName(fileID, writeToken, instant string) string {
	return fileID + "_" + writeToken + "_" + instant + dataFileSuffix
}

// ParseFileID extracts the file ID from a data file name or path.
// Data file names look like "<fileID>_<writeToken>_<instant>.parquet";
// anything without an underscore is treated as a bare file ID with an
// optional extension.
func ParseFileID(fileName string) string {
	if fileName == "" {
		return ""
	}
	base := path.Base(fileName)
	if i := strings.Index(base, "_"); i >= 0 {
		return base[:i]
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// SeqID composes a commit sequence number for the record at index idx
// of partition partitionID within the commit named by instant.
func SeqID(instant string, partitionID int, idx int64) string {
	return fmt.Sprintf("%s_%d_%d", instant, partitionID, idx)
}
