package pair

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Daenzell/emcnow.go/pkg/link/bus"
)

// Round-trip over the in-memory bus: discovery, then state convergence
// in both directions.
func TestPairRoundTrip(t *testing.T) {
	b := bus.NewBus()
	defer b.Close()

	coord := New(Config{Role: RoleCoordinator, Transport: b.Endpoint(coordAddr)})
	worker := New(Config{Role: RoleWorker, Transport: b.Endpoint(workerAddr)})
	require.NoError(t, coord.Start())
	require.NoError(t, worker.Start())

	// worker beacons, coordinator answers, both sides bind
	base := time.Now()
	worker.Tick(base)
	b.Flush() // drains the announce and the cascaded re-announce
	require.Equal(t, 2, coord.PeerCount())
	require.Equal(t, 2, worker.PeerCount())

	// command flows coordinator -> worker
	cmd := Command{MainID: 2, SubID: 7, Value: -0.5, ValueInt: 1234}
	coord.SetCommand(cmd)
	coord.Tick(base.Add(time.Millisecond))
	b.Flush()
	got := worker.ReceivedCommand()
	require.True(t, cmd.Equal(&got))

	// identical retransmissions change nothing
	for i := 0; i < 3; i++ {
		coord.Tick(base.Add(time.Duration(i+2) * time.Millisecond))
	}
	b.Flush()
	got = worker.ReceivedCommand()
	require.True(t, cmd.Equal(&got))

	// status flows worker -> coordinator, once per change
	status := WorkerStatus{Buttons: [16]byte{0x10, 0x20}}
	worker.SetStatus(status)
	worker.Tick(base.Add(10 * time.Millisecond))
	worker.Tick(base.Add(11 * time.Millisecond))
	b.Flush()
	gotStatus := coord.ReceivedStatus()
	require.True(t, status.Equal(&gotStatus))

	worker.Shutdown()
	coord.Shutdown()
}

// A second worker joins through the coordinator's reactive announce.
func TestSecondWorkerJoins(t *testing.T) {
	b := bus.NewBus()
	defer b.Close()

	coord := New(Config{Role: RoleCoordinator, Transport: b.Endpoint(coordAddr)})
	w1 := New(Config{Role: RoleWorker, Transport: b.Endpoint(workerAddr)})
	w2 := New(Config{Role: RoleWorker, Transport: b.Endpoint(worker2)})
	require.NoError(t, coord.Start())
	require.NoError(t, w1.Start())
	require.NoError(t, w2.Start())

	base := time.Now()
	w1.Tick(base)
	b.Flush()
	w2.Tick(base)
	b.Flush()

	require.Equal(t, 3, coord.PeerCount())
	require.Equal(t, 2, w1.PeerCount())
	require.Equal(t, 2, w2.PeerCount())

	// every worker gets the command on each coordinator tick
	cmd := Command{MainID: 1, Index2: 9}
	coord.SetCommand(cmd)
	coord.Tick(base.Add(time.Millisecond))
	b.Flush()
	got1, got2 := w1.ReceivedCommand(), w2.ReceivedCommand()
	require.True(t, cmd.Equal(&got1))
	require.True(t, cmd.Equal(&got2))
}
