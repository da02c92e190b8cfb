package channels

import (
	"testing"

	"github.com/stretchr/testify/require"

	"raya/value"
)

func TestSendBuffersUnderCapacity(t *testing.T) {
	r := NewRegistry()
	id := r.New(2)

	res, err := r.Send(id, 1, value.Int32(7))
	require.NoError(t, err)
	require.True(t, res.Delivered)
	require.Equal(t, TaskID(0), res.WokeReceiver)
	require.Equal(t, 1, r.Get(id).Len())
}

func TestSendSuspendsWhenFull(t *testing.T) {
	r := NewRegistry()
	id := r.New(1)

	_, err := r.Send(id, 1, value.Int32(1))
	require.NoError(t, err)

	res, err := r.Send(id, 2, value.Int32(2))
	require.NoError(t, err)
	require.False(t, res.Delivered)
}

func TestRecvDrainsBufferThenPromotesPendingSender(t *testing.T) {
	r := NewRegistry()
	id := r.New(1)

	_, _ = r.Send(id, 1, value.Int32(1))
	res, err := r.Send(id, 2, value.Int32(2)) // sender 2 parks, buffer full
	require.NoError(t, err)
	require.False(t, res.Delivered)

	got, err := r.Recv(id, 9)
	require.NoError(t, err)
	require.True(t, got.Ready)
	require.Equal(t, int32(1), got.Value.AsInt32())
	require.Equal(t, TaskID(2), got.WokeSender)
	require.Equal(t, 1, r.Get(id).Len()) // sender 2's value promoted into the freed slot
}

func TestRecvOnEmptyParksReceiver(t *testing.T) {
	r := NewRegistry()
	id := r.New(1)

	res, err := r.Recv(id, 1)
	require.NoError(t, err)
	require.False(t, res.Ready)
}

func TestSendDirectlyWakesWaitingReceiver(t *testing.T) {
	r := NewRegistry()
	id := r.New(0) // rendezvous channel: no buffer

	res, err := r.Recv(id, 1)
	require.NoError(t, err)
	require.False(t, res.Ready)

	sendRes, err := r.Send(id, 2, value.Int32(42))
	require.NoError(t, err)
	require.True(t, sendRes.Delivered)
	require.Equal(t, TaskID(1), sendRes.WokeReceiver)
}

func TestSendOnClosedChannelFails(t *testing.T) {
	r := NewRegistry()
	id := r.New(1)
	require.NoError(t, r.Close(id))

	_, err := r.Send(id, 1, value.Int32(1))
	require.ErrorIs(t, err, ErrClosed)
}

func TestRootsReturnsBufferedValues(t *testing.T) {
	r := NewRegistry()
	id := r.New(2)
	_, _ = r.Send(id, 1, value.Int32(5))
	_, _ = r.Send(id, 1, value.Int32(6))

	roots := r.Roots()
	require.Len(t, roots, 2)
}
