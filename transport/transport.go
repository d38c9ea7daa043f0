// Package transport bridges the pipeline to Watermill Pub/Sub systems: a
// Subscriber becomes a line source and a Publisher becomes a batch sink, so
// the same pipeline that reads files can ingest from or feed any broker
// Watermill supports.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/logflume/logflume/internal/runtime/jsoncodec"
	"github.com/logflume/logflume/internal/runtime/record"
)

// SubscriberSource exposes a Watermill subscription as a raw-line source.
// Each message payload is one raw log line. A message is acked only after
// the line has been handed to the pipeline, so broker redelivery lines up
// with the credit protocol's drained notifications.
type SubscriberSource struct {
	messages <-chan *message.Message
	pending  *message.Message
}

// NewSubscriberSource subscribes to topic and wraps the message stream.
func NewSubscriberSource(ctx context.Context, sub message.Subscriber, topic string) (*SubscriberSource, error) {
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	return &SubscriberSource{messages: messages}, nil
}

// Next blocks for the next message. The subscription channel closing is
// end-of-input.
func (s *SubscriberSource) Next(ctx context.Context) (string, bool, error) {
	if s.pending != nil {
		s.pending.Ack()
		s.pending = nil
	}
	select {
	case msg, ok := <-s.messages:
		if !ok {
			return "", false, nil
		}
		s.pending = msg
		return string(msg.Payload), true, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// PublisherSink publishes each batch as one message whose payload is the
// JSON array of structured records.
type PublisherSink struct {
	pub   message.Publisher
	topic string
	newID func() string
}

// NewPublisherSink creates a sink publishing to topic. newID generates
// message UUIDs; the pipeline passes its run-ID generator.
func NewPublisherSink(pub message.Publisher, topic string, newID func() string) *PublisherSink {
	return &PublisherSink{pub: pub, topic: topic, newID: newID}
}

func (p *PublisherSink) Accept(ctx context.Context, batch record.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := jsoncodec.Marshal(batch.Records)
	if err != nil {
		return err
	}
	msg := message.NewMessage(p.newID(), payload)
	return p.pub.Publish(p.topic, msg)
}

// Close closes the underlying publisher, flushing anything it buffers.
func (p *PublisherSink) Close() error {
	return p.pub.Close()
}
