// Package ws bridges link frames over websocket connections to a hub,
// so browser tooling and remote simulators can join the medium.
package ws

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/Daenzell/emcnow.go/pkg/link"
)

// Hub relays every frame received from one connection to all others.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

// Handler returns the websocket handler to mount on an HTTP server.
func (h *Hub) Handler() websocket.Handler {
	return websocket.Handler(h.serve)
}

func (h *Hub) serve(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	glog.V(1).Infof("hub: conn joined (%d total)", n)

	defer func() {
		h.mu.Lock()
		delete(h.conns, c)
		h.mu.Unlock()
		c.Close()
		glog.V(1).Info("hub: conn left")
	}()

	for {
		var b []byte
		if err := websocket.Message.Receive(c, &b); err != nil {
			return
		}
		if _, err := link.DecodeFrame(b); err != nil {
			glog.V(2).Infof("hub: drop message: %v", err)
			continue
		}
		h.mu.Lock()
		peers := make([]*websocket.Conn, 0, len(h.conns))
		for pc := range h.conns {
			if pc != c {
				peers = append(peers, pc)
			}
		}
		h.mu.Unlock()
		for _, pc := range peers {
			if err := websocket.Message.Send(pc, b); err != nil {
				glog.V(2).Infof("hub: relay: %v", err)
			}
		}
	}
}

// Transport implements link.Transport over a websocket connection to a Hub.
type Transport struct {
	conn  *websocket.Conn
	local link.Addr

	mu       sync.Mutex
	handler  link.FrameHandler
	notifier link.SendStatusNotifier
	peers    map[link.Addr]struct{}
	closed   bool
}

// Dial connects to a hub at url (e.g. ws://host:port/air).
func Dial(url, origin string, local link.Addr) (*Transport, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	t := &Transport{
		conn:  conn,
		local: local,
		peers: make(map[link.Addr]struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *Transport) readLoop() {
	for {
		var b []byte
		if err := websocket.Message.Receive(t.conn, &b); err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				glog.Errorf("ws read: %v", err)
			}
			return
		}
		f, err := link.DecodeFrame(b)
		if err != nil {
			continue
		}
		if f.Src == t.local {
			continue
		}
		if f.Dst != t.local && !f.Dst.IsBroadcast() {
			continue
		}
		t.mu.Lock()
		h := t.handler
		t.mu.Unlock()
		if h != nil {
			h.HandleFrame(context.Background(), f)
		}
	}
}

// Bind implements Transport.
func (t *Transport) Bind(h link.FrameHandler, n link.SendStatusNotifier) {
	t.mu.Lock()
	t.handler, t.notifier = h, n
	t.mu.Unlock()
}

// AddPeer implements Transport.
func (t *Transport) AddPeer(addr link.Addr) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return link.ErrClosed
	}
	if _, ok := t.peers[addr]; ok {
		return nil
	}
	if len(t.peers) >= link.MaxPeers {
		return link.ErrPeerTableFull
	}
	t.peers[addr] = struct{}{}
	return nil
}

// RemovePeer implements Transport.
func (t *Transport) RemovePeer(addr link.Addr) error {
	t.mu.Lock()
	delete(t.peers, addr)
	t.mu.Unlock()
	return nil
}

// Send implements Transport.
func (t *Transport) Send(dst link.Addr, payload []byte) error {
	b, err := link.EncodeFrame(link.Frame{Src: t.local, Dst: dst, Payload: payload})
	if err != nil {
		return err
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return link.ErrClosed
	}
	if _, ok := t.peers[dst]; !ok && !dst.IsBroadcast() {
		t.mu.Unlock()
		return link.ErrUnknownPeer
	}
	t.mu.Unlock()

	werr := websocket.Message.Send(t.conn, b)
	go func() {
		t.mu.Lock()
		n := t.notifier
		t.mu.Unlock()
		if n != nil {
			n.SendStatus(context.Background(), dst, werr == nil)
		}
	}()
	return nil
}

// Close implements Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.handler, t.notifier = nil, nil
	t.mu.Unlock()
	return t.conn.Close()
}
