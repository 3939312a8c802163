// Package kafka implements a streaming row source over kafka topics:
// avro-binary messages are decoded into self-describing rows against
// a schema parsed once at Open, ready for materialization.
package kafka

import (
	"context"
	"io"
	"time"

	avro "github.com/go-avro/avro"
	"github.com/pkg/errors"
	segmentio "github.com/segmentio/kafka-go"

	"github.com/plateaudb/plateau/logger"
	"github.com/plateaudb/plateau/materialize"
	"github.com/plateaudb/plateau/record"
)

// Source implements materialize.RowSource using kafka as a data
// source. It is not threadsafe! Due to the way kafka clients work, to
// consume concurrently, create multiple Sources.
type Source struct {
	Hosts   []string
	Topics  []string
	Group   string
	Timeout time.Duration
	SkipOld bool
	Log     logger.Logger

	// SchemaJSON is the serialized schema every message on the topics
	// is encoded with.
	SchemaJSON string

	schema  *avro.RecordSchema
	decoder *avro.GenericDatumReader
	reader  Reader

	pending []segmentio.Message
}

// NewSource gets a new Source with local defaults.
func NewSource() *Source {
	return &Source{
		Hosts:  []string{"localhost:9092"},
		Topics: []string{"plateau-rows"},
		Group:  "plateau-writer",
		Log:    logger.NopLogger,
	}
}

var _ materialize.RowSource = (*Source)(nil)

// Open parses the schema and connects the underlying consumers.
func (s *Source) Open() error {
	if s.SchemaJSON == "" {
		return errors.New("needs a row schema")
	}
	parsed, err := avro.ParseSchema(s.SchemaJSON)
	if err != nil {
		return errors.Wrap(err, "parsing row schema")
	}
	rs, ok := parsed.(*avro.RecordSchema)
	if !ok {
		return errors.Errorf("row schema must be a record, got %q", parsed.GetName())
	}
	s.schema = rs
	s.decoder = avro.NewGenericDatumReader()
	s.decoder.SetSchema(rs)

	config := segmentio.ReaderConfig{
		Brokers:     s.Hosts,
		GroupID:     s.Group,
		Logger:      segmentio.LoggerFunc(s.Log.Debugf),
		ErrorLogger: s.Log,
	}
	if s.SkipOld {
		config.StartOffset = segmentio.LastOffset
	}

	readers := make(map[string]Reader, len(s.Topics))
	for _, topic := range s.Topics {
		config := config
		config.Topic = topic
		readers[topic] = segmentio.NewReader(config)
	}
	s.reader = blendReaders(readers)

	return nil
}

// Schema returns the schema rows are decoded against.
func (s *Source) Schema() *avro.RecordSchema { return s.schema }

// Next returns the next message decoded as a self-describing row. It
// returns materialize.ErrFlush when the fetch timeout elapses with no
// data, and io.EOF when the consumer is exhausted.
func (s *Source) Next() (record.Row, error) {
	if s.reader == nil {
		return nil, errors.New("source is not open")
	}
	msg, err := s.fetch()
	switch err {
	case nil:
	case io.EOF:
		return nil, io.EOF
	case context.DeadlineExceeded:
		return nil, materialize.ErrFlush
	default:
		return nil, errors.Wrap(err, "fetching message")
	}

	rec := avro.NewGenericRecord(s.schema)
	if err := s.decoder.Read(rec, avro.NewBinaryDecoder(msg.Value)); err != nil {
		return nil, errors.Wrap(err, "decoding avro row")
	}

	s.pending = append(s.pending, msg)
	return record.NewAvroRow(rec), nil
}

// Commit marks every message returned from Next so far as processed.
// Call it after the batch they fed has been durably written.
func (s *Source) Commit(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.reader.CommitMessages(ctx, s.pending...); err != nil {
		return errors.Wrap(err, "committing messages")
	}
	s.pending = s.pending[:0]
	return nil
}

// Close closes the underlying kafka consumers. Closing a source that
// was never opened is a no-op.
func (s *Source) Close() error {
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	return errors.Wrap(err, "closing kafka consumer")
}

func (s *Source) fetch() (segmentio.Message, error) {
	ctx := context.Background()
	if s.Timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	return s.reader.FetchMessage(ctx)
}
