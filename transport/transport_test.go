package transport

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logflume/logflume/internal/runtime/ids"
	"github.com/logflume/logflume/internal/runtime/jsoncodec"
	"github.com/logflume/logflume/internal/runtime/record"
)

func newPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	ps := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}

func TestSubscriberSourceDeliversLines(t *testing.T) {
	ctx := context.Background()
	ps := newPubSub(t)

	src, err := NewSubscriberSource(ctx, ps, "lines")
	require.NoError(t, err)

	lines := []string{
		"[2024-03-01 12:00:00] [ERROR] first",
		"[2024-03-01 12:00:01] [INFO] second",
	}
	for _, l := range lines {
		require.NoError(t, ps.Publish("lines", message.NewMessage(ids.NewRunID(), []byte(l))))
	}

	for _, want := range lines {
		got, ok, err := src.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestSubscriberSourceEndOfInputOnClose(t *testing.T) {
	ctx := context.Background()
	ps := newPubSub(t)

	src, err := NewSubscriberSource(ctx, ps, "lines")
	require.NoError(t, err)

	require.NoError(t, ps.Close())

	_, ok, err := src.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "closed subscription is end-of-input")
}

func TestSubscriberSourceHonorsCancellation(t *testing.T) {
	ps := newPubSub(t)

	src, err := NewSubscriberSource(context.Background(), ps, "lines")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublisherSinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	ps := newPubSub(t)

	msgs, err := ps.Subscribe(ctx, "batches")
	require.NoError(t, err)

	s := NewPublisherSink(ps, "batches", ids.NewRunID)
	batch := record.Batch{Records: []record.Record{
		{Timestamp: "2024-03-01 12:00:00", Level: "ERROR", Message: "a"},
		{Timestamp: "2024-03-01 12:00:01", Level: "ERROR", Message: "b"},
	}}
	require.NoError(t, s.Accept(ctx, batch))

	select {
	case msg := <-msgs:
		var got []record.Record
		require.NoError(t, jsoncodec.Unmarshal(msg.Payload, &got))
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].Message)
		assert.Equal(t, "b", got[1].Message)
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("batch never published")
	}
}

func TestPublisherSinkCancelled(t *testing.T) {
	ps := newPubSub(t)
	s := NewPublisherSink(ps, "batches", ids.NewRunID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Accept(ctx, record.Batch{Records: []record.Record{{Message: "x"}}})
	assert.ErrorIs(t, err, context.Canceled)
}
