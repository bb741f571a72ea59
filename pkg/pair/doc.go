// Package pair implements the peer discovery and state synchronization
// protocol between input-device workers and their coordinator.
package pair

// The protocol runs over a connectionless broadcast link with no delivery
// or ordering guarantees. A lone worker beacons on the worker broadcast
// address until a coordinator answers; once bound, the worker sends its
// status record only when it changed since the last transmission, while
// the coordinator re-sends its command record to every peer on every tick
// so a single dropped frame heals on the next one.
//
// There is no acknowledgment and no retry of individual frames: a
// reported delivery failure evicts the peer and rediscovery starts over.
