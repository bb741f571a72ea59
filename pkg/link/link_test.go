package link

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddrString(t *testing.T) {
	a := Addr{0x02, 0x1a, 0x2b, 0x3c, 0x4d, 0x5e}
	require.Equal(t, "02:1a:2b:3c:4d:5e", a.String())
}

func TestParseAddr(t *testing.T) {
	testCases := []struct {
		in   string
		want Addr
		err  bool
	}{
		{in: "02:1a:2b:3c:4d:5e", want: Addr{0x02, 0x1a, 0x2b, 0x3c, 0x4d, 0x5e}},
		{in: "ff:ff:ff:ff:ff:fd", want: WorkerBroadcast},
		{in: "02:1a:2b:3c:4d", err: true},
		{in: "02:1a:2b:3c:4d:5e:6f", err: true},
		{in: "zz:1a:2b:3c:4d:5e", err: true},
		{in: "021a:2b:3c:4d:5e:6f", err: true},
		{in: "2:1a:2b:3c:4d:5e", err: true},
		{in: "", err: true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			a, err := ParseAddr(tc.in)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, a)
		})
	}
}

func TestBroadcastAddrs(t *testing.T) {
	require.True(t, WorkerBroadcast.IsBroadcast())
	require.True(t, CoordinatorBroadcast.IsBroadcast())
	require.NotEqual(t, WorkerBroadcast, CoordinatorBroadcast)
	require.False(t, Addr{0x02, 1, 2, 3, 4, 5}.IsBroadcast())
}

func TestAddrFromSeed(t *testing.T) {
	a := addrFromSeed("some-machine-id")
	require.Equal(t, a, addrFromSeed("some-machine-id"))
	require.NotEqual(t, a, addrFromSeed("another-machine-id"))
	// locally administered, unicast, never a reserved broadcast
	require.Equal(t, byte(0x02), a[0]&0x03)
	require.False(t, a.IsBroadcast())
}

func TestFrameWire(t *testing.T) {
	f := Frame{
		Src:     Addr{1, 2, 3, 4, 5, 6},
		Dst:     Addr{7, 8, 9, 10, 11, 12},
		Payload: []byte("hello"),
	}
	b, err := EncodeFrame(f)
	require.NoError(t, err)
	require.Len(t, b, 12+5)

	got, err := DecodeFrame(b)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestFrameWireEmptyPayload(t *testing.T) {
	b, err := EncodeFrame(Frame{Src: Addr{1}, Dst: Addr{2}})
	require.NoError(t, err)
	got, err := DecodeFrame(b)
	require.NoError(t, err)
	require.Empty(t, got.Payload)
}

func TestFrameWireErrors(t *testing.T) {
	_, err := EncodeFrame(Frame{Payload: make([]byte, MaxPayload+1)})
	require.Equal(t, ErrPayloadTooLarge, err)

	_, err = DecodeFrame(make([]byte, 11))
	require.Error(t, err)

	_, err = DecodeFrame(make([]byte, 12+MaxPayload+1))
	require.Equal(t, ErrPayloadTooLarge, err)
}
