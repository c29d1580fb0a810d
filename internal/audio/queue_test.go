package audio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameQueueFIFO(t *testing.T) {
	q := NewFrameQueue(0, DropOldest)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Push(ctx, []int16{int16(i)}))
	}
	require.Equal(t, 5, q.Len())

	for i := 1; i <= 5; i++ {
		buf, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int16{int16(i)}, buf)
	}
	assert.Equal(t, 0, q.Len())
}

func TestFrameQueuePopBlocksUntilPush(t *testing.T) {
	q := NewFrameQueue(0, DropOldest)

	got := make(chan []int16, 1)
	go func() {
		buf, err := q.Pop(context.Background())
		if err == nil {
			got <- buf
		}
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Push(context.Background(), []int16{7, 7}))

	select {
	case buf := <-got:
		assert.Equal(t, []int16{7, 7}, buf)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up after Push")
	}
}

func TestFrameQueuePopHonorsContext(t *testing.T) {
	q := NewFrameQueue(0, DropOldest)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFrameQueueTryPop(t *testing.T) {
	q := NewFrameQueue(0, DropOldest)

	_, ok := q.TryPop()
	assert.False(t, ok)

	require.NoError(t, q.Push(context.Background(), []int16{1}))
	buf, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, []int16{1}, buf)
}

func TestFrameQueueCloseDrainsThenFails(t *testing.T) {
	q := NewFrameQueue(0, DropOldest)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, []int16{1}))
	q.Close()
	q.Close()

	require.ErrorIs(t, q.Push(ctx, []int16{2}), ErrQueueClosed)

	buf, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int16{1}, buf)

	_, err = q.Pop(ctx)
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestFrameQueueCloseWakesWaiters(t *testing.T) {
	q := NewFrameQueue(0, DropOldest)

	errs := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background())
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the waiting Pop")
	}
}

func TestFrameQueueOverflowPolicies(t *testing.T) {
	tests := []struct {
		name    string
		policy  OverflowPolicy
		want    []int16
		dropped uint64
	}{
		{name: "drop oldest", policy: DropOldest, want: []int16{2, 3}, dropped: 1},
		{name: "drop newest", policy: DropNewest, want: []int16{1, 2}, dropped: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewFrameQueue(2, tt.policy)
			ctx := context.Background()
			for i := 1; i <= 3; i++ {
				require.NoError(t, q.Push(ctx, []int16{int16(i)}))
			}

			var got []int16
			for {
				buf, ok := q.TryPop()
				if !ok {
					break
				}
				got = append(got, buf[0])
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.dropped, q.Dropped())
		})
	}
}

func TestFrameQueueBlockPolicyWaitsForRoom(t *testing.T) {
	q := NewFrameQueue(1, Block)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, []int16{1}))

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(ctx, []int16{2})
	}()

	select {
	case <-pushed:
		t.Fatal("Push should block while the queue is full")
	case <-time.After(20 * time.Millisecond):
	}

	buf, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int16{1}, buf)

	select {
	case err := <-pushed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Push did not resume after Pop made room")
	}
	assert.Equal(t, uint64(0), q.Dropped())

	timeout, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.Push(timeout, []int16{3}), context.DeadlineExceeded)
}

func TestFrameQueueConcurrentConsumersGetEachBufferOnce(t *testing.T) {
	const total = 500
	q := NewFrameQueue(0, DropOldest)
	ctx := context.Background()

	var (
		mu   sync.Mutex
		seen = make(map[int16]int)
		wg   sync.WaitGroup
	)
	for c := 0; c < 4; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				buf, err := q.Pop(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[buf[0]]++
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < total; i++ {
		require.NoError(t, q.Push(ctx, []int16{int16(i)}))
	}
	q.Close()
	wg.Wait()

	require.Len(t, seen, total)
	for v, n := range seen {
		assert.Equal(t, 1, n, "buffer %d popped %d times", v, n)
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	for _, p := range []OverflowPolicy{DropOldest, DropNewest, Block} {
		got, err := ParseOverflowPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := ParseOverflowPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DropOldest, got)

	_, err = ParseOverflowPolicy("sometimes")
	assert.Error(t, err)
}
