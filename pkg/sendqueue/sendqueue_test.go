package sendqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopFIFOOrder(t *testing.T) {
	q := New(1, 4)
	require.NoError(t, q.Push(Entry{Paths: []string{"/3303/0/5700"}, Payload: []byte("a")}))
	require.NoError(t, q.Push(Entry{Paths: []string{"/3303/0/5700"}, Payload: []byte("b")}))

	e, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, []byte("a"), e.Payload)

	e, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, []byte("b"), e.Payload)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestPushRejectsWhenFull(t *testing.T) {
	q := New(1, 2)
	require.NoError(t, q.Push(Entry{Payload: []byte("a")}))
	require.NoError(t, q.Push(Entry{Payload: []byte("b")}))
	assert.ErrorIs(t, q.Push(Entry{Payload: []byte("c")}), ErrFull)
	assert.Equal(t, 2, q.Len())
}

func TestMutedQueueSilentlyDropsSends(t *testing.T) {
	q := New(1, 4)
	q.SetMuted(true)
	require.NoError(t, q.Push(Entry{Payload: []byte("a")}))
	assert.Equal(t, 0, q.Len())
}

func TestClearEmptiesQueueOnRegistrationReset(t *testing.T) {
	q := New(1, 4)
	require.NoError(t, q.Push(Entry{Payload: []byte("a")}))
	q.Clear()
	assert.Equal(t, 0, q.Len())
	_, ok := q.Peek()
	assert.False(t, ok)
}

func TestMutingDoesNotClearAlreadyQueuedEntries(t *testing.T) {
	q := New(1, 4)
	require.NoError(t, q.Push(Entry{Payload: []byte("a")}))
	q.SetMuted(true)
	assert.Equal(t, 1, q.Len())
}
