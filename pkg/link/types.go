package link

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Addr is a 6-byte link-layer address.
type Addr [6]byte

// Reserved broadcast addresses, one per role.
var (
	// WorkerBroadcast is where workers announce themselves.
	WorkerBroadcast = Addr{0xff, 0xff, 0xff, 0xff, 0xff, 0xfd}
	// CoordinatorBroadcast is where the coordinator announces itself.
	CoordinatorBroadcast = Addr{0xff, 0xff, 0xff, 0xff, 0xff, 0xfe}
)

// Channel is the fixed operating channel selected at initialization.
const Channel = 6

// MaxPayload is the largest payload a single frame can carry.
const MaxPayload = 250

// MaxPeers is the capacity of a link-layer peer table.
const MaxPeers = 20

var (
	// ErrPeerTableFull indicates the link-layer peer table has no room.
	ErrPeerTableFull = errors.New("peer table full")
	// ErrUnknownPeer indicates a unicast destination is not registered
	// in the peer table.
	ErrUnknownPeer = errors.New("unknown peer")
	// ErrPayloadTooLarge indicates the payload exceeds MaxPayload.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrClosed indicates the transport has been released.
	ErrClosed = errors.New("transport closed")
)

// String formats the address as aa:bb:cc:dd:ee:ff.
func (a Addr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// IsBroadcast indicates the address is one of the reserved broadcast addresses.
func (a Addr) IsBroadcast() bool {
	return a == WorkerBroadcast || a == CoordinatorBroadcast
}

// ParseAddr parses aa:bb:cc:dd:ee:ff into an Addr. Each octet must be
// exactly two hex digits.
func ParseAddr(s string) (a Addr, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return a, fmt.Errorf("invalid address %q", s)
	}
	for i, p := range parts {
		if len(p) != 2 {
			return a, fmt.Errorf("invalid address %q", s)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return a, fmt.Errorf("invalid address %q: %v", s, err)
		}
		a[i] = byte(v)
	}
	return a, nil
}

// Frame is one received frame with link-layer addressing.
type Frame struct {
	Src     Addr
	Dst     Addr
	Payload []byte
}

// FrameHandler is called when a frame is received.
type FrameHandler interface {
	HandleFrame(context.Context, Frame)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(context.Context, Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, fr Frame) {
	f(ctx, fr)
}

// SendStatusNotifier is called per outbound frame with the delivery outcome.
type SendStatusNotifier interface {
	SendStatus(ctx context.Context, dst Addr, ok bool)
}

// SendStatusFunc is func type of SendStatusNotifier.
type SendStatusFunc func(ctx context.Context, dst Addr, ok bool)

// SendStatus implements SendStatusNotifier.
func (f SendStatusFunc) SendStatus(ctx context.Context, dst Addr, ok bool) {
	f(ctx, dst, ok)
}

// Transport is the connectionless link-layer service. Send is a best-effort
// non-blocking enqueue; completion is reported later through the bound
// SendStatusNotifier. No retransmission or ordering is provided.
type Transport interface {
	// Send enqueues a frame to the address. A non-nil error means the
	// frame was rejected and no completion callback will follow.
	Send(dst Addr, payload []byte) error
	// AddPeer registers an address in the link-layer peer table.
	AddPeer(Addr) error
	// RemovePeer drops an address from the link-layer peer table.
	RemovePeer(Addr) error
	// Bind installs the receive and send-completion callbacks. Passing
	// nils detaches the previous handlers.
	Bind(FrameHandler, SendStatusNotifier)
	// Close releases the transport. No callbacks fire afterwards.
	Close() error
}
