package mcml

import (
	"math/big"
	"sync"
)

// RandomStream is a multiply-with-carry generator, x = (x&0xffffffff)*a + x>>32.
// The zero value is not usable; streams come from NewRandomStream.
type RandomStream struct {
	X uint64
	A uint32
}

// Next returns a uniform value in [0,1).
func (r *RandomStream) Next() Real {
	r.X = (r.X&0xffffffff)*uint64(r.A) + r.X>>32
	return Real(uint32(r.X)) / (1 << 32)
}

// NextOC returns a uniform value in (0,1].
func (r *RandomStream) NextOC() Real { return 1 - r.Next() }

var multipliers struct {
	mu   sync.Mutex
	list []uint32
	next uint64
}

// a is usable when both a*2^32-1 and a*2^31-1 are prime.
func safeMultiplier(a uint64) bool {
	p := new(big.Int).SetUint64(a<<32 - 1)
	if !p.ProbablyPrime(0) {
		return false
	}
	p.SetUint64(a<<31 - 1)
	return p.ProbablyPrime(0)
}

// Multipliers returns the first n MWC multipliers, searched downward from
// 4294967118. The list is cached and only grows.
func Multipliers(n int) []uint32 {
	multipliers.mu.Lock()
	defer multipliers.mu.Unlock()
	if multipliers.next == 0 {
		multipliers.next = firstMultiplier
	}
	for len(multipliers.list) < n {
		a := multipliers.next
		multipliers.next--
		if safeMultiplier(a) {
			multipliers.list = append(multipliers.list, uint32(a))
		}
	}
	return multipliers.list[:n:n]
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// NewRandomStream derives the state of stream idx from a user seed.
// The state is reduced into the range the recurrence accepts:
// x != 0, carry < a-1, low word < 0xffffffff.
func NewRandomStream(seed uint64, idx int, a uint32) RandomStream {
	h := splitmix64(seed ^ splitmix64(uint64(idx)))
	for {
		carry := uint32(h>>32) % (a - 1)
		low := uint32(h)
		x := uint64(carry)<<32 | uint64(low)
		if x != 0 && low != 0xffffffff {
			return RandomStream{X: x, A: a}
		}
		h = splitmix64(h)
	}
}

// SeedStreams returns the streams of global indices offset..offset+n-1.
func SeedStreams(seed uint64, offset, n int) []RandomStream {
	as := Multipliers(offset + n)[offset:]
	out := make([]RandomStream, n)
	for i := range out {
		out[i] = NewRandomStream(seed, offset+i, as[i])
	}
	return out
}
