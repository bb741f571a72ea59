package link

import "fmt"

// frameHeaderLen is the size of the addressing header on byte-oriented
// carriers: 6 bytes source plus 6 bytes destination.
const frameHeaderLen = 12

// EncodeFrame encodes a frame for byte-oriented carriers (UDP datagrams,
// websocket messages): [src 6][dst 6][payload].
func EncodeFrame(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	b := make([]byte, frameHeaderLen+len(f.Payload))
	copy(b[0:6], f.Src[:])
	copy(b[6:12], f.Dst[:])
	copy(b[frameHeaderLen:], f.Payload)
	return b, nil
}

// DecodeFrame decodes bytes produced by EncodeFrame.
func DecodeFrame(b []byte) (f Frame, err error) {
	if len(b) < frameHeaderLen {
		return f, fmt.Errorf("frame too short: %d bytes", len(b))
	}
	if len(b)-frameHeaderLen > MaxPayload {
		return f, ErrPayloadTooLarge
	}
	copy(f.Src[:], b[0:6])
	copy(f.Dst[:], b[6:12])
	f.Payload = append([]byte(nil), b[frameHeaderLen:]...)
	return f, nil
}
