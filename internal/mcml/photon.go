package mcml

// Photon is the working copy of one thread's photon packet.
type Photon struct {
	X, Y, Z    Real // position [cm]
	Ux, Uy, Uz Real // direction cosines
	W          Real // weight
	S          Real // step size [cm]
	Layer      int
	Hit        bool // the current step ends on a boundary
}

// launch resets p to a fresh photon entering layer 1 at the origin.
func (p *Photon) launch(w Real) {
	*p = Photon{Uz: 1, W: w, Layer: 1}
}

// ThreadStates keeps every thread's state between launches, one slice per field.
type ThreadStates struct {
	X, Y, Z    []Real
	Ux, Uy, Uz []Real
	W          []Real
	Layer      []uint32
	Active     []bool
	Launched   []uint64 // photons started by the thread
	RandX      []uint64
	RandA      []uint32
}

func newThreadStates(n int) *ThreadStates {
	return &ThreadStates{
		X:        make([]Real, n),
		Y:        make([]Real, n),
		Z:        make([]Real, n),
		Ux:       make([]Real, n),
		Uy:       make([]Real, n),
		Uz:       make([]Real, n),
		W:        make([]Real, n),
		Layer:    make([]uint32, n),
		Active:   make([]bool, n),
		Launched: make([]uint64, n),
		RandX:    make([]uint64, n),
		RandA:    make([]uint32, n),
	}
}

// Len returns the number of thread slots.
func (ts *ThreadStates) Len() int { return len(ts.W) }

// seed gives slot i the random stream of global stream index offset+i.
func (ts *ThreadStates) seed(seed uint64, offset int) {
	for i, r := range SeedStreams(seed, offset, ts.Len()) {
		ts.RandX[i], ts.RandA[i] = r.X, r.A
	}
}

func (ts *ThreadStates) restore(i int, p *Photon, rng *RandomStream) (active bool, launched uint64) {
	*p = Photon{
		X: ts.X[i], Y: ts.Y[i], Z: ts.Z[i],
		Ux: ts.Ux[i], Uy: ts.Uy[i], Uz: ts.Uz[i],
		W:     ts.W[i],
		Layer: int(ts.Layer[i]),
	}
	rng.X, rng.A = ts.RandX[i], ts.RandA[i]
	return ts.Active[i], ts.Launched[i]
}

func (ts *ThreadStates) save(i int, p *Photon, rng RandomStream, active bool, launched uint64) {
	ts.X[i], ts.Y[i], ts.Z[i] = p.X, p.Y, p.Z
	ts.Ux[i], ts.Uy[i], ts.Uz[i] = p.Ux, p.Uy, p.Uz
	ts.W[i] = p.W
	ts.Layer[i] = uint32(p.Layer)
	ts.RandX[i] = rng.X
	ts.Active[i] = active
	ts.Launched[i] = launched
}

// activeCount counts active slots in [lo,hi).
func (ts *ThreadStates) activeCount(lo, hi int) int {
	n := 0
	for _, a := range ts.Active[lo:hi] {
		if a {
			n++
		}
	}
	return n
}
