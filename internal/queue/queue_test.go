package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: TypeCapturedEncoding, Body: []byte(`{"subject_id":"u1"}`)}))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		require.Equal(t, TypeCapturedEncoding, msg.Type)
		require.JSONEq(t, `{"subject_id":"u1"}`, string(msg.Body))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: TypeCapturedEncoding, Body: []byte(`{"a":"b|c"}`)}
	got := deserialize(serialize(msg))
	require.Equal(t, msg.Type, got.Type)
	require.Equal(t, msg.Body, got.Body)

	// legacy payload without a type prefix
	got = deserialize("raw")
	require.Empty(t, got.Type)
	require.Equal(t, []byte("raw"), got.Body)
}
