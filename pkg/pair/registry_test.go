package pair

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Daenzell/emcnow.go/pkg/link"
)

func addr(last byte) link.Addr {
	return link.Addr{0x02, 0, 0, 0, 0, last}
}

func TestRegistryHandles(t *testing.T) {
	reg := NewRegistry(newFakeTransport())
	for i := byte(0); i < 5; i++ {
		reg.Add(addr(i))
	}
	require.Equal(t, 5, reg.Len())
	for i, p := range reg.Peers() {
		require.Equal(t, i, p.Handle)
		require.Equal(t, addr(byte(i)), p.Addr)
	}
}

func TestRegistryNoDuplicates(t *testing.T) {
	reg := NewRegistry(newFakeTransport())
	reg.Add(addr(1))
	reg.Add(addr(1))
	require.Equal(t, 1, reg.Len())
}

func TestRegistryHandleNotReused(t *testing.T) {
	reg := NewRegistry(newFakeTransport())
	reg.Add(addr(1))
	reg.Add(addr(2))
	reg.Remove(addr(1))
	reg.Add(addr(1))

	peers := reg.Peers()
	require.Len(t, peers, 2)
	require.Equal(t, 1, peers[0].Handle)
	require.Equal(t, 2, peers[1].Handle)
	require.Equal(t, addr(1), peers[1].Addr)
}

func TestRegistryRemoveAbsent(t *testing.T) {
	reg := NewRegistry(newFakeTransport())
	reg.Add(addr(1))
	reg.Remove(addr(9))
	require.Equal(t, 1, reg.Len())
}

func TestRegistryTransportRejection(t *testing.T) {
	tr := newFakeTransport()
	reg := NewRegistry(tr)
	reg.Add(addr(1))

	tr.addErr = link.ErrPeerTableFull
	reg.Add(addr(2))
	require.Equal(t, 1, reg.Len())
	require.False(t, reg.Contains(addr(2)))

	// implicit retry on the next discovery event succeeds
	tr.addErr = nil
	reg.Add(addr(2))
	require.Equal(t, 2, reg.Len())
}

func TestRegistryCounterpart(t *testing.T) {
	reg := NewRegistry(newFakeTransport())
	reg.Add(link.WorkerBroadcast)
	_, ok := reg.Counterpart()
	require.False(t, ok)

	reg.Add(addr(7))
	p, ok := reg.Counterpart()
	require.True(t, ok)
	require.Equal(t, addr(7), p.Addr)
}

func TestRegistryClear(t *testing.T) {
	tr := newFakeTransport()
	reg := NewRegistry(tr)
	reg.Add(addr(1))
	reg.Add(addr(2))
	reg.Clear()
	require.Equal(t, 0, reg.Len())
	tr.mu.Lock()
	require.Empty(t, tr.peers)
	tr.mu.Unlock()
}
