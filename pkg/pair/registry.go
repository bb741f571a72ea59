package pair

import (
	"github.com/golang/glog"

	"github.com/Daenzell/emcnow.go/pkg/link"
)

// Peer is one known counterpart address with its stable handle.
type Peer struct {
	Handle int
	Addr   link.Addr
}

// Registry owns the list of known peer addresses. Entry 0 is the node's
// own broadcast/self entry inserted at startup, so the first non-self
// entry is by convention the counterpart a worker talks to. Registry is
// not safe for concurrent use; the engine serializes access.
type Registry struct {
	transport  link.Transport
	peers      []Peer
	nextHandle int
}

// NewRegistry creates a Registry backed by the transport's peer table.
func NewRegistry(t link.Transport) *Registry {
	return &Registry{transport: t}
}

// Add registers an address. Duplicates are a no-op. If the transport
// rejects the address (table full), the registry is left unchanged and
// the failure is only logged; the next discovery event retries implicitly.
func (r *Registry) Add(addr link.Addr) {
	if r.Contains(addr) {
		return
	}
	if err := r.transport.AddPeer(addr); err != nil {
		glog.Errorf("add peer %s: %v", addr, err)
		return
	}
	r.peers = append(r.peers, Peer{Handle: r.nextHandle, Addr: addr})
	r.nextHandle++
	glog.V(1).Infof("peer added: %s (handle %d)", addr, r.nextHandle-1)
}

// Remove drops the matching entry, if any. Handles are never reused.
func (r *Registry) Remove(addr link.Addr) {
	for i, p := range r.peers {
		if p.Addr == addr {
			if err := r.transport.RemovePeer(addr); err != nil {
				glog.Warningf("remove peer %s: %v", addr, err)
			}
			r.peers = append(r.peers[:i], r.peers[i+1:]...)
			glog.V(1).Infof("peer removed: %s", addr)
			return
		}
	}
}

// Contains reports whether the address is registered.
func (r *Registry) Contains(addr link.Addr) bool {
	for _, p := range r.peers {
		if p.Addr == addr {
			return true
		}
	}
	return false
}

// Len is the registry size, including the self entry. Size 1 means no
// counterpart is known yet; size >= 2 means at least one is.
func (r *Registry) Len() int {
	return len(r.peers)
}

// Peers returns a copy of all entries in insertion order.
func (r *Registry) Peers() []Peer {
	return append([]Peer(nil), r.peers...)
}

// Counterpart returns the first non-self entry.
func (r *Registry) Counterpart() (Peer, bool) {
	if len(r.peers) < 2 {
		return Peer{}, false
	}
	return r.peers[1], true
}

// Clear removes every entry, tearing down the transport peer table.
func (r *Registry) Clear() {
	for _, p := range r.peers {
		if err := r.transport.RemovePeer(p.Addr); err != nil {
			glog.Warningf("remove peer %s: %v", p.Addr, err)
		}
	}
	r.peers = nil
}
