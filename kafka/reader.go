package kafka

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
	segmentio "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

// Reader is the part of a kafka consumer the source needs. It is
// satisfied by *segmentio.Reader and by the blender below.
type Reader interface {
	FetchMessage(ctx context.Context) (segmentio.Message, error)
	CommitMessages(ctx context.Context, msgs ...segmentio.Message) error
	io.Closer
}

// blendReaders merges per-topic readers into one. Each reader gets a
// fetch goroutine; messages are interleaved in arrival order.
// Committing routes each message back to its topic's reader.
func blendReaders(in map[string]Reader) Reader {
	if len(in) == 1 {
		for _, r := range in {
			return r
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	ch := make(chan segmentio.Message, 10)
	live := uint32(len(in))
	for topic, r := range in {
		topic, r := topic, r
		group.Go(func() (err error) {
			defer func() {
				if atomic.AddUint32(&live, ^uint32(0)) == 0 {
					close(ch)
				}
			}()
			defer func() {
				cerr := r.Close()
				if err == nil {
					err = cerr
				}
			}()

			done := ctx.Done()
			for {
				msg, err := r.FetchMessage(ctx)
				switch err {
				case nil:
				case io.EOF, context.Canceled:
					return nil
				default:
					return errors.Wrapf(err, "fetching message from topic %q", topic)
				}

				select {
				case ch <- msg:
				case <-done:
					return nil
				}
			}
		})
	}

	return &blender{
		readers: in,
		cancel:  cancel,
		eg:      group,
		ch:      ch,
	}
}

type blender struct {
	readers map[string]Reader
	cancel  context.CancelFunc
	eg      *errgroup.Group
	ch      chan segmentio.Message
}

func (b *blender) FetchMessage(ctx context.Context) (segmentio.Message, error) {
	select {
	case msg, ok := <-b.ch:
		if !ok {
			return segmentio.Message{}, io.EOF
		}
		return msg, nil
	case <-ctx.Done():
		return segmentio.Message{}, ctx.Err()
	}
}

func (b *blender) CommitMessages(ctx context.Context, msgs ...segmentio.Message) error {
	byTopic := make(map[string][]segmentio.Message)
	for _, msg := range msgs {
		byTopic[msg.Topic] = append(byTopic[msg.Topic], msg)
	}
	for topic, section := range byTopic {
		r, ok := b.readers[topic]
		if !ok {
			return errors.Errorf("no reader for topic %q", topic)
		}
		if err := r.CommitMessages(ctx, section...); err != nil {
			return errors.Wrapf(err, "committing messages to topic %q", topic)
		}
	}
	return nil
}

func (b *blender) Close() error {
	b.cancel()
	return b.eg.Wait()
}
