package pair

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/Daenzell/emcnow.go/pkg/link"
)

// Role selects which side of the protocol a node runs. It is fixed for
// the lifetime of the engine.
type Role int

// Roles.
const (
	RoleCoordinator Role = iota
	RoleWorker
)

// String implements fmt.Stringer.
func (r Role) String() string {
	if r == RoleCoordinator {
		return "coordinator"
	}
	return "worker"
}

// Discovery announce payloads. Classification never depends on the
// content, only on destination address and length, but the lengths must
// not collide with either state record size.
const (
	WorkerAnnounce      = "EMCFFBV2 Worker!"
	CoordinatorAnnounce = "EMCFFBV2 Coordinator!"
)

// BeaconInterval is how often an unbound worker announces itself.
const BeaconInterval = 100 * time.Millisecond

// DefaultTickInterval drives Run's periodic Tick.
const DefaultTickInterval = 5 * time.Millisecond

// Config configures an Engine.
type Config struct {
	Role      Role
	Transport link.Transport

	// TickInterval is used by Run. Defaults to DefaultTickInterval.
	TickInterval time.Duration
}

// Engine is the per-role synchronization engine. Once per tick it decides
// whether to broadcast a discovery beacon, unicast fresh state, or do
// nothing; inbound frames and send completions arrive asynchronously via
// the transport callbacks. One mutex serializes the tick path and the
// callbacks around the registry and all state buffers.
type Engine struct {
	role Role
	tr   link.Transport
	reg  *Registry

	tickInterval time.Duration
	tick         func(time.Time)
	receive      func(link.Frame)

	mu         sync.Mutex
	started    bool
	lastBeacon time.Time

	// worker side
	status     WorkerStatus // outbound
	lastStatus WorkerStatus // last transmitted snapshot
	cmdCache   Command      // latest accepted command
	applying   bool         // command copy in progress

	// coordinator side
	cmd         Command      // outbound
	lastCmd     Command      // snapshot kept for parity, sends are unconditional
	statusCache WorkerStatus // latest accepted worker status
}

// New creates an Engine. Call Start before use.
func New(conf Config) *Engine {
	e := &Engine{
		role:         conf.Role,
		tr:           conf.Transport,
		reg:          NewRegistry(conf.Transport),
		tickInterval: conf.TickInterval,
	}
	if e.tickInterval <= 0 {
		e.tickInterval = DefaultTickInterval
	}
	if e.role == RoleCoordinator {
		e.tick, e.receive = e.coordinatorTick, e.coordinatorReceive
	} else {
		e.tick, e.receive = e.workerTick, e.workerReceive
	}
	return e
}

// Role returns the engine's role.
func (e *Engine) Role() Role {
	return e.role
}

// Start binds the transport callbacks, inserts the self broadcast entry
// as handle 0 and zeroes all state buffers. On failure the engine stays
// inert: the registry is empty and no beacon ever fires.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}
	e.tr.Bind(link.HandleFrameFunc(e.handleFrame), link.SendStatusFunc(e.handleSendStatus))
	self := e.selfBroadcast()
	e.reg.Add(self)
	if e.reg.Len() == 0 {
		e.tr.Bind(nil, nil)
		return fmt.Errorf("transport rejected self entry %s", self)
	}
	e.resetLocked()
	e.started = true
	glog.Infof("%s engine started", e.role)
	return nil
}

// Shutdown stops accepting callbacks, clears all state, tears down the
// peer table and releases the transport. Safe to call more than once.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return
	}
	e.tr.Bind(nil, nil)
	e.resetLocked()
	e.reg.Clear()
	if err := e.tr.Close(); err != nil {
		glog.Warningf("transport close: %v", err)
	}
	e.started = false
	glog.Infof("%s engine stopped", e.role)
}

// AddPeer registers a counterpart address.
func (e *Engine) AddPeer(addr link.Addr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reg.Add(addr)
}

// RemovePeer evicts an address. Loss of the counterpart invalidates any
// "last known" comparison baseline, so all state buffers are zeroed first.
func (e *Engine) RemovePeer(addr link.Addr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removePeerLocked(addr)
}

// PeerCount is the registry size including the self entry.
func (e *Engine) PeerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Len()
}

// Peers returns a copy of the registry entries.
func (e *Engine) Peers() []Peer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Peers()
}

// SetStatus deposits the worker's outbound status record.
func (e *Engine) SetStatus(s WorkerStatus) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

// Status reads back the worker's outbound status record.
func (e *Engine) Status() WorkerStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SetCommand deposits the coordinator's outbound command record.
func (e *Engine) SetCommand(c Command) {
	e.mu.Lock()
	e.cmd = c
	e.mu.Unlock()
}

// Command reads back the coordinator's outbound command record.
func (e *Engine) Command() Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cmd
}

// ReceivedStatus is the coordinator's cache of the latest accepted
// worker status.
func (e *Engine) ReceivedStatus() WorkerStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusCache
}

// ReceivedCommand is the worker's cache of the latest accepted command.
func (e *Engine) ReceivedCommand() Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cmdCache
}

// Tick runs one scheduling decision at the given time.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return
	}
	e.tick(now)
}

// Run implements run.Runnable, driving Tick on a periodic ticker until
// the context is canceled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			e.Tick(now)
		}
	}
}

func (e *Engine) selfBroadcast() link.Addr {
	if e.role == RoleCoordinator {
		return link.CoordinatorBroadcast
	}
	return link.WorkerBroadcast
}

func (e *Engine) workerTick(now time.Time) {
	if e.reg.Len() == 1 {
		if now.Sub(e.lastBeacon) > BeaconInterval {
			e.lastBeacon = now
			e.sendAnnounce()
		}
		return
	}
	if e.applying {
		return
	}
	if !e.status.Equal(&e.lastStatus) {
		if p, ok := e.reg.Counterpart(); ok {
			e.send(p.Addr, e.status.Encode())
			e.lastStatus = e.status
		}
	}
}

func (e *Engine) coordinatorTick(time.Time) {
	// Unconditional resend to every peer: a dropped frame heals on the
	// next tick without retries or acknowledgments.
	peers := e.reg.Peers()
	if len(peers) < 2 {
		return
	}
	payload := e.cmd.Encode()
	for _, p := range peers[1:] {
		e.send(p.Addr, payload)
	}
}

func (e *Engine) workerReceive(f link.Frame) {
	if f.Dst == link.CoordinatorBroadcast && !e.reg.Contains(f.Src) {
		e.reg.Add(f.Src)
		// A worker that binds by overhearing an announce meant for
		// another still has to introduce itself, or the coordinator
		// never learns of it.
		if e.reg.Contains(f.Src) {
			e.sendAnnounce()
		}
	}
	if len(f.Payload) == CommandSize {
		// The guard opens and closes within this same call; a
		// concurrent Tick blocked on the mutex never observes it set.
		e.applying = true
		var in Command
		if err := in.Decode(f.Payload); err == nil && !in.Equal(&e.cmdCache) {
			e.cmdCache = in
		}
		e.applying = false
	}
}

func (e *Engine) coordinatorReceive(f link.Frame) {
	if f.Dst == link.WorkerBroadcast {
		// Re-announce right away so joining workers don't wait for
		// a periodic beacon.
		e.sendAnnounce()
		if !e.reg.Contains(f.Src) {
			e.reg.Add(f.Src)
		}
	}
	if len(f.Payload) == WorkerStatusSize {
		var in WorkerStatus
		if err := in.Decode(f.Payload); err == nil && !in.Equal(&e.statusCache) {
			e.statusCache = in
		}
	}
}

func (e *Engine) handleFrame(_ context.Context, f link.Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return
	}
	e.receive(f)
}

func (e *Engine) handleSendStatus(_ context.Context, dst link.Addr, ok bool) {
	if ok {
		return
	}
	// Broadcast frames are unacknowledged; a carrier-level write failure
	// on one says nothing about any peer, and the broadcast entry is our
	// own registry anchor.
	if dst.IsBroadcast() {
		glog.V(1).Infof("broadcast to %s failed", dst)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return
	}
	glog.V(1).Infof("delivery to %s failed, evicting", dst)
	e.removePeerLocked(dst)
}

func (e *Engine) removePeerLocked(addr link.Addr) {
	e.resetLocked()
	e.reg.Remove(addr)
}

func (e *Engine) resetLocked() {
	e.status.Zero()
	e.lastStatus.Zero()
	e.cmdCache.Zero()
	e.cmd.Zero()
	e.lastCmd.Zero()
	e.statusCache.Zero()
}

func (e *Engine) sendAnnounce() {
	if e.role == RoleCoordinator {
		e.send(link.CoordinatorBroadcast, []byte(CoordinatorAnnounce))
	} else {
		e.send(link.WorkerBroadcast, []byte(WorkerAnnounce))
	}
}

func (e *Engine) send(dst link.Addr, payload []byte) {
	if err := e.tr.Send(dst, payload); err != nil {
		glog.V(1).Infof("send to %s rejected: %v", dst, err)
	}
}
