// Package udp carries link frames over UDP multicast on a LAN.
package udp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/Daenzell/emcnow.go/pkg/link"
)

// Defaults for the shared medium.
const (
	DefaultGroup = "239.77.67.78"
	DefaultPort  = 17668
)

// Config selects the interface and multicast group.
type Config struct {
	Interface string // empty means the system default
	Group     string
	Port      int
}

// Transport implements link.Transport over one multicast socket.
// Datagrams carry link.EncodeFrame bytes.
type Transport struct {
	conn  *net.UDPConn
	maddr *net.UDPAddr
	local link.Addr

	mu       sync.Mutex
	handler  link.FrameHandler
	notifier link.SendStatusNotifier
	peers    map[link.Addr]struct{}
	closed   bool
	done     chan struct{}
}

// Dial joins the multicast group and starts the receive loop.
func Dial(conf Config, local link.Addr) (*Transport, error) {
	if conf.Group == "" {
		conf.Group = DefaultGroup
	}
	if conf.Port == 0 {
		conf.Port = DefaultPort
	}
	var iface *net.Interface
	if conf.Interface != "" {
		var err error
		if iface, err = net.InterfaceByName(conf.Interface); err != nil {
			return nil, err
		}
	}
	maddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", conf.Group, conf.Port))
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenMulticastUDP("udp4", iface, maddr)
	if err != nil {
		return nil, err
	}
	if err := conn.SetReadBuffer(1 << 16); err != nil {
		glog.Warningf("set read buffer: %v", err)
	}
	t := &Transport{
		conn:  conn,
		maddr: maddr,
		local: local,
		peers: make(map[link.Addr]struct{}),
		done:  make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *Transport) readLoop() {
	buf := make([]byte, 2048)
	for {
		select {
		case <-t.done:
			return
		default:
		}
		t.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-t.done:
			default:
				glog.Errorf("udp read: %v", err)
			}
			return
		}
		f, err := link.DecodeFrame(buf[:n])
		if err != nil {
			glog.V(2).Infof("drop datagram: %v", err)
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

// Send implements Transport. Every frame goes to the multicast group;
// receivers filter on the destination address.
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

	_, werr := t.conn.WriteToUDP(b, t.maddr)
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
	close(t.done)
	return t.conn.Close()
}
