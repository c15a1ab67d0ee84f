package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepMessage(t *testing.T) {
	msg, err := NewSweep(SweepRequest{ClassID: "c1", Date: "2024-09-03"})
	require.NoError(t, err)
	assert.Equal(t, TypeSweep, msg.Type)

	req, err := msg.Sweep()
	require.NoError(t, err)
	assert.Equal(t, SweepRequest{ClassID: "c1", Date: "2024-09-03"}, req)

	empty, err := Message{Type: TypeSweep}.Sweep()
	require.NoError(t, err)
	assert.Equal(t, SweepRequest{}, empty)

	_, err = Message{Type: "other"}.Sweep()
	assert.Error(t, err)
}

func TestInMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msg, err := NewSweep(SweepRequest{Date: "2024-09-03"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, msg))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case got := <-ch:
		assert.Equal(t, msg, got)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should close after cancel")
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
