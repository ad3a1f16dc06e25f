package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnboundedQueue_FIFOOrder(t *testing.T) {
	q := newUnboundedQueue[int]()
	defer q.Close()

	for i := 0; i < 5; i++ {
		q.Push(i)
	}

	for i := 0; i < 5; i++ {
		select {
		case got := <-q.Out():
			require.Equal(t, i, got)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for item")
		}
	}
}

func TestUnboundedQueue_PushNeverBlocksUnderBurst(t *testing.T) {
	q := newUnboundedQueue[int]()
	defer q.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			q.Push(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("push burst did not complete; queue is blocking producers")
	}
}

func TestUnboundedQueue_CloseDrainsPending(t *testing.T) {
	q := newUnboundedQueue[int]()
	q.Push(1)
	q.Push(2)
	q.Close()

	got := []int{}
	for v := range q.Out() {
		got = append(got, v)
	}
	require.Equal(t, []int{1, 2}, got)
}
