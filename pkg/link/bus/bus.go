// Package bus provides an in-memory broadcast medium implementing
// link.Transport, used by tests and single-process simulation.
package bus

import (
	"context"
	"sync"

	"github.com/Daenzell/emcnow.go/pkg/link"
)

// Bus connects endpoints in one process. Broadcast frames reach every
// other endpoint; unicast frames reach the endpoint owning the address,
// or report an asynchronous delivery failure when there is none.
type Bus struct {
	mu   sync.Mutex
	eps  map[link.Addr]*Endpoint
	jobs chan func()
	wg   sync.WaitGroup
	once sync.Once
}

// NewBus creates a Bus and starts its dispatch goroutine.
func NewBus() *Bus {
	b := &Bus{
		eps:  make(map[link.Addr]*Endpoint),
		jobs: make(chan func(), 64),
	}
	go b.dispatch()
	return b
}

func (b *Bus) dispatch() {
	for fn := range b.jobs {
		fn()
		b.wg.Done()
	}
}

func (b *Bus) post(fn func()) {
	b.wg.Add(1)
	b.jobs <- fn
}

// Flush blocks until all queued deliveries completed. Test helper.
func (b *Bus) Flush() {
	b.wg.Wait()
}

// Close stops the dispatch goroutine after draining queued deliveries.
func (b *Bus) Close() {
	b.once.Do(func() {
		b.wg.Wait()
		close(b.jobs)
	})
}

// Endpoint attaches a new endpoint with the given unicast address.
func (b *Bus) Endpoint(addr link.Addr) *Endpoint {
	ep := &Endpoint{
		bus:   b,
		addr:  addr,
		peers: make(map[link.Addr]struct{}),
	}
	b.mu.Lock()
	b.eps[addr] = ep
	b.mu.Unlock()
	return ep
}

// Endpoint is one attachment point on the bus, implementing link.Transport.
type Endpoint struct {
	bus  *Bus
	addr link.Addr

	mu       sync.Mutex
	handler  link.FrameHandler
	notifier link.SendStatusNotifier
	peers    map[link.Addr]struct{}
	closed   bool
}

// Addr is the endpoint's unicast address.
func (ep *Endpoint) Addr() link.Addr {
	return ep.addr
}

// Bind implements Transport.
func (ep *Endpoint) Bind(h link.FrameHandler, n link.SendStatusNotifier) {
	ep.mu.Lock()
	ep.handler, ep.notifier = h, n
	ep.mu.Unlock()
}

// AddPeer implements Transport, enforcing the table capacity.
func (ep *Endpoint) AddPeer(addr link.Addr) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.closed {
		return link.ErrClosed
	}
	if _, ok := ep.peers[addr]; ok {
		return nil
	}
	if len(ep.peers) >= link.MaxPeers {
		return link.ErrPeerTableFull
	}
	ep.peers[addr] = struct{}{}
	return nil
}

// RemovePeer implements Transport.
func (ep *Endpoint) RemovePeer(addr link.Addr) error {
	ep.mu.Lock()
	delete(ep.peers, addr)
	ep.mu.Unlock()
	return nil
}

// Send implements Transport. Unicast destinations must be registered in
// the peer table first, mirroring the real link layer. Delivery and the
// completion callback happen asynchronously on the bus goroutine.
func (ep *Endpoint) Send(dst link.Addr, payload []byte) error {
	if len(payload) > link.MaxPayload {
		return link.ErrPayloadTooLarge
	}
	ep.mu.Lock()
	if ep.closed {
		ep.mu.Unlock()
		return link.ErrClosed
	}
	if _, ok := ep.peers[dst]; !ok && !dst.IsBroadcast() {
		ep.mu.Unlock()
		return link.ErrUnknownPeer
	}
	ep.mu.Unlock()

	f := link.Frame{Src: ep.addr, Dst: dst, Payload: append([]byte(nil), payload...)}
	ep.bus.post(func() { ep.bus.deliver(ep, f) })
	return nil
}

// Close implements Transport, detaching the endpoint from the bus.
func (ep *Endpoint) Close() error {
	ep.mu.Lock()
	if ep.closed {
		ep.mu.Unlock()
		return nil
	}
	ep.closed = true
	ep.handler, ep.notifier = nil, nil
	ep.mu.Unlock()
	ep.bus.mu.Lock()
	delete(ep.bus.eps, ep.addr)
	ep.bus.mu.Unlock()
	return nil
}

func (b *Bus) deliver(src *Endpoint, f link.Frame) {
	ctx := context.Background()
	ok := false
	b.mu.Lock()
	var targets []*Endpoint
	if f.Dst.IsBroadcast() {
		ok = true
		for _, ep := range b.eps {
			if ep != src {
				targets = append(targets, ep)
			}
		}
	} else if ep, found := b.eps[f.Dst]; found {
		ok = true
		targets = append(targets, ep)
	}
	b.mu.Unlock()

	for _, ep := range targets {
		ep.mu.Lock()
		h := ep.handler
		ep.mu.Unlock()
		if h != nil {
			h.HandleFrame(ctx, f)
		}
	}

	src.mu.Lock()
	n := src.notifier
	src.mu.Unlock()
	if n != nil {
		n.SendStatus(ctx, f.Dst, ok)
	}
}
