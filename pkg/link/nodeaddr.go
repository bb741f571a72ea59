package link

import (
	"crypto/sha1"

	"github.com/denisbrodbeck/machineid"
)

// NodeAddr derives a stable unicast address for this machine.
// The locally-administered bit is set and the multicast bit cleared
// so the result never collides with the reserved broadcast addresses.
func NodeAddr() Addr {
	id, err := machineid.ID()
	if err != nil {
		panic(err)
	}
	return addrFromSeed(id)
}

func addrFromSeed(seed string) (a Addr) {
	sum := sha1.Sum([]byte(seed))
	copy(a[:], sum[:6])
	a[0] = a[0]&0xfc | 0x02
	return a
}
