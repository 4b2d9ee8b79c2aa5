package mcml

import (
	"math"
	"sync/atomic"
)

// engine binds the read-only inputs of the physics step and the escape grids.
type engine struct {
	table *LayerTable
	grid  DetectorGrid
	rec   recorder
	rd    []uint64 // nr x na, index ir*na + ia
	tt    []uint64
}

// stepSize samples a free path in the current layer.
func (e *engine) stepSize(p *Photon, rng *RandomStream) {
	l := &e.table.Layers[p.Layer]
	if l.Glass() {
		p.S = math.Inf(1)
		return
	}
	p.S = -math.Log(rng.NextOC()) * l.RMuT
}

// hitBoundary clips the step to the layer boundary when the step would cross it.
func (e *engine) hitBoundary(p *Photon) bool {
	if p.Uz == 0 {
		return false
	}
	l := &e.table.Layers[p.Layer]
	zb := l.ZMin
	if p.Uz > 0 {
		zb = l.ZMax
	}
	db := (zb - p.Z) / p.Uz
	if p.S > db {
		p.S = db
		return true
	}
	return false
}

func hop(p *Photon) {
	p.X += p.S * p.Ux
	p.Y += p.S * p.Uy
	p.Z += p.S * p.Uz
}

// reflectTransmit decides what happens to a photon sitting on a boundary.
// Photons leaving the stack are binned into Rd or Tt and lose their weight.
func (e *engine) reflectTransmit(p *Photon, rng *RandomStream) Event {
	cur := &e.table.Layers[p.Layer]
	next, cosCrit := p.Layer-1, cur.CosCritUp
	if p.Uz > 0 {
		next, cosCrit = p.Layer+1, cur.CosCritDown
	}
	uz := p.Uz
	ca1 := math.Abs(uz)
	// The default move is to reflect.
	p.Uz = -uz
	if ca1 <= cosCrit {
		return TIR
	}
	ni, nt := cur.N, e.table.Layers[next].N
	r, ca2 := fresnel(ni, nt, ca1)
	if rng.Next() < r {
		return Reflect
	}
	p.Layer = next
	p.Ux *= ni / nt
	p.Uy *= ni / nt
	p.Uz = math.Copysign(ca2, uz)
	switch {
	case next == 0:
		e.escape(e.rd, p, ca2)
		return Reflected
	case next > e.table.NumLayers():
		e.escape(e.tt, p, ca2)
		return Transmitted
	}
	return Transmit
}

// escape bins the photon's weight by radius and exit angle. Both indices are
// clamped to the last bin so escaping weight is never lost.
func (e *engine) escape(grid []uint64, p *Photon, cosExit Real) {
	g := &e.grid
	ir := int(math.Sqrt(p.X*p.X+p.Y*p.Y) / g.Dr)
	if ir >= g.Nr || ir < 0 {
		ir = g.Nr - 1
	}
	ia := int(math.Acos(cosExit) * twoOverPi * Real(g.Na))
	if ia >= g.Na || ia < 0 {
		ia = g.Na - 1
	}
	atomic.AddUint64(&grid[ir*g.Na+ia], uint64(p.W*WeightScale))
	p.W = 0
}

// spin samples a new direction from the Henyey-Greenstein phase function.
func spin(g Real, p *Photon, rng *RandomStream) {
	cost := 2*rng.Next() - 1
	if g != 0 {
		temp := (1 - g*g) / (1 + g*cost)
		cost = (1 + g*g - temp*temp) / (2 * g)
		cost = max(-1, min(cost, 1))
	}
	sint := math.Sqrt(1 - cost*cost)
	sinp, cosp := math.Sincos(2 * math.Pi * rng.Next())
	ux, uy, uz := p.Ux, p.Uy, p.Uz
	if math.Abs(uz) > cosZero {
		// normal incidence
		p.Ux = sint * cosp
		p.Uy = sint * sinp
		p.Uz = math.Copysign(cost, uz*cost)
	} else {
		temp := math.Sqrt(1 - uz*uz)
		p.Ux = sint*(ux*uz*cosp-uy*sinp)/temp + ux*cost
		p.Uy = sint*(uy*uz*cosp+ux*sinp)/temp + uy*cost
		p.Uz = -sint*cosp*temp + uz*cost
	}
	n := 1 / math.Sqrt(p.Ux*p.Ux+p.Uy*p.Uy+p.Uz*p.Uz)
	p.Ux *= n
	p.Uy *= n
	p.Uz *= n
}

// roulette reports whether a low-weight photon survives. Survivors carry
// 1/Chance times their weight so the expected weight is unchanged.
func roulette(p *Photon, rng *RandomStream) bool {
	u := rng.Next()
	if p.W != 0 && u < Chance {
		p.W *= 1 / Chance
		return true
	}
	return false
}

// step advances the thread's photon by one step and reports whether it terminated.
func (e *engine) step(th *thread) bool {
	p, rng := &th.photon, &th.rng
	e.stepSize(p, rng)
	p.Hit = e.hitBoundary(p)
	l := &e.table.Layers[p.Layer]
	switch {
	case p.Hit:
		hop(p)
		logEvent(e.reflectTransmit(p, rng))
	case l.Glass():
		// parallel to a non-interacting slab, it would never leave
		p.W = 0
	default:
		hop(p)
		dw := p.W * l.MuAOverMuT
		p.W -= dw
		e.rec.drop(th, dw)
		spin(l.G, p, rng)
		logEvent(Absorb)
	}
	if p.W < WeightThreshold {
		if roulette(p, rng) {
			logEvent(Survive)
			return false
		}
		logEvent(Kill)
		return true
	}
	return false
}
