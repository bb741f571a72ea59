package bus

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Daenzell/emcnow.go/pkg/link"
)

type recorder struct {
	mu       sync.Mutex
	frames   []link.Frame
	statuses map[link.Addr]bool
}

func newRecorder() *recorder {
	return &recorder{statuses: make(map[link.Addr]bool)}
}

func (r *recorder) HandleFrame(_ context.Context, f link.Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *recorder) SendStatus(_ context.Context, dst link.Addr, ok bool) {
	r.mu.Lock()
	r.statuses[dst] = ok
	r.mu.Unlock()
}

func (r *recorder) received() []link.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]link.Frame(nil), r.frames...)
}

func (r *recorder) status(dst link.Addr) (ok, reported bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ok, reported = r.statuses[dst]
	return
}

func attach(b *Bus, last byte) (*Endpoint, *recorder) {
	ep := b.Endpoint(link.Addr{0x02, 0, 0, 0, 0, last})
	rec := newRecorder()
	ep.Bind(rec, rec)
	return ep, rec
}

func TestBroadcastReachesAllButSender(t *testing.T) {
	b := NewBus()
	defer b.Close()
	ep1, rec1 := attach(b, 1)
	_, rec2 := attach(b, 2)
	_, rec3 := attach(b, 3)

	require.NoError(t, ep1.Send(link.WorkerBroadcast, []byte("hi")))
	b.Flush()

	require.Empty(t, rec1.received())
	for _, rec := range []*recorder{rec2, rec3} {
		frames := rec.received()
		require.Len(t, frames, 1)
		require.Equal(t, ep1.Addr(), frames[0].Src)
		require.Equal(t, link.WorkerBroadcast, frames[0].Dst)
		require.Equal(t, []byte("hi"), frames[0].Payload)
	}
	ok, reported := rec1.status(link.WorkerBroadcast)
	require.True(t, reported)
	require.True(t, ok)
}

func TestUnicastDelivery(t *testing.T) {
	b := NewBus()
	defer b.Close()
	ep1, rec1 := attach(b, 1)
	ep2, rec2 := attach(b, 2)
	_, rec3 := attach(b, 3)

	require.NoError(t, ep1.AddPeer(ep2.Addr()))
	require.NoError(t, ep1.Send(ep2.Addr(), []byte("direct")))
	b.Flush()

	require.Len(t, rec2.received(), 1)
	require.Empty(t, rec3.received())
	ok, reported := rec1.status(ep2.Addr())
	require.True(t, reported)
	require.True(t, ok)
}

func TestUnicastToMissingEndpointFails(t *testing.T) {
	b := NewBus()
	defer b.Close()
	ep1, rec1 := attach(b, 1)

	ghost := link.Addr{0x02, 0, 0, 0, 0, 0x99}
	require.NoError(t, ep1.AddPeer(ghost))
	require.NoError(t, ep1.Send(ghost, []byte("lost")))
	b.Flush()

	ok, reported := rec1.status(ghost)
	require.True(t, reported)
	require.False(t, ok)
}

func TestUnicastRequiresPeerEntry(t *testing.T) {
	b := NewBus()
	defer b.Close()
	ep1, _ := attach(b, 1)
	ep2, _ := attach(b, 2)

	require.Equal(t, link.ErrUnknownPeer, ep1.Send(ep2.Addr(), []byte("x")))
}

func TestPeerTableCapacity(t *testing.T) {
	b := NewBus()
	defer b.Close()
	ep, _ := attach(b, 1)

	for i := 0; i < link.MaxPeers; i++ {
		require.NoError(t, ep.AddPeer(link.Addr{0x02, 1, 1, 1, 1, byte(i)}))
	}
	full := link.Addr{0x02, 2, 2, 2, 2, 2}
	require.Equal(t, link.ErrPeerTableFull, ep.AddPeer(full))

	// adding an existing entry is still a no-op, and removal frees a slot
	require.NoError(t, ep.AddPeer(link.Addr{0x02, 1, 1, 1, 1, 0}))
	require.NoError(t, ep.RemovePeer(link.Addr{0x02, 1, 1, 1, 1, 0}))
	require.NoError(t, ep.AddPeer(full))
}

func TestPayloadLimit(t *testing.T) {
	b := NewBus()
	defer b.Close()
	ep, _ := attach(b, 1)
	require.Equal(t, link.ErrPayloadTooLarge, ep.Send(link.WorkerBroadcast, make([]byte, link.MaxPayload+1)))
}

func TestClosedEndpoint(t *testing.T) {
	b := NewBus()
	defer b.Close()
	ep1, _ := attach(b, 1)
	ep2, rec2 := attach(b, 2)

	require.NoError(t, ep2.Close())
	require.Equal(t, link.ErrClosed, ep2.Send(link.WorkerBroadcast, []byte("x")))
	require.Equal(t, link.ErrClosed, ep2.AddPeer(ep1.Addr()))

	// a detached endpoint no longer hears broadcasts
	require.NoError(t, ep1.Send(link.WorkerBroadcast, []byte("y")))
	b.Flush()
	require.Empty(t, rec2.received())
}
