package writer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type collectWriter struct {
	mu      sync.Mutex
	batches [][]int
	closed  bool
}

func (c *collectWriter) BWrite(_ context.Context, batch []int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make([]int, len(batch))
	copy(copied, batch)
	c.batches = append(c.batches, copied)
	return nil
}

func (c *collectWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *collectWriter) items() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []int
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func TestAsyncBatchWriterFlushesOnBatchSize(t *testing.T) {
	sink := &collectWriter{}
	w := NewAsyncBatchWriter[int](zap.NewNop(), sink, 2, time.Hour, "test_writer", 1)
	w.Start(context.Background())

	for i := range 4 {
		w.MustSubmit(i)
	}

	require.Eventually(t, func() bool {
		return len(sink.items()) == 4
	}, 2*time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, batch := range sink.batches {
		assert.LessOrEqual(t, len(batch), 2)
	}
}

func TestAsyncBatchWriterFlushesOnClose(t *testing.T) {
	sink := &collectWriter{}
	w := NewAsyncBatchWriter[int](zap.NewNop(), sink, 100, time.Hour, "test_writer", 1)
	w.Start(context.Background())

	w.MustSubmit(7)
	w.MustSubmit(8)
	w.Close()

	assert.ElementsMatch(t, []int{7, 8}, sink.items())
	assert.True(t, sink.closed)
}

func TestAsyncBatchWriterFlushesOnInterval(t *testing.T) {
	sink := &collectWriter{}
	w := NewAsyncBatchWriter[int](zap.NewNop(), sink, 100, 20*time.Millisecond, "test_writer", 1)
	w.Start(context.Background())
	defer w.Close()

	w.MustSubmit(42)

	require.Eventually(t, func() bool {
		return len(sink.items()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
