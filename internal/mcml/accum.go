package mcml

import (
	"math"
	"sync/atomic"
)

// pending coalesces consecutive deposits of one thread into the same cell.
type pending struct {
	ir, iz, addr int
	w            uint64
}

const noAddr = -1

// recorder receives absorbed weight from the step engine.
type recorder interface {
	drop(th *thread, dw Real)
	finish(th *thread)
}

// ignoreAbsorption discards absorbed weight and never touches a grid.
type ignoreAbsorption struct{}

func (ignoreAbsorption) drop(*thread, Real) {}
func (ignoreAbsorption) finish(*thread)     {}

// absorptionRecorder bins absorbed weight into A[ir*nz+iz].
type absorptionRecorder struct {
	grid DetectorGrid
}

func (r *absorptionRecorder) drop(th *thread, dw Real) {
	p := &th.photon
	if p.Z < 0 {
		return
	}
	iz := int(p.Z / r.grid.Dz)
	ir := int(math.Sqrt(p.X*p.X+p.Y*p.Y) / r.grid.Dr)
	// Out-of-grid drops are not recorded.
	if iz < 0 || iz >= r.grid.Nz || ir < 0 || ir >= r.grid.Nr {
		return
	}
	addr := ir*r.grid.Nz + iz
	pd := &th.pending
	if addr != pd.addr {
		if pd.w > 0 {
			th.blk.cache.commit(pd.ir, pd.iz, pd.addr, pd.w)
		}
		*pd = pending{ir: ir, iz: iz, addr: addr}
	}
	pd.w += uint64(dw * WeightScale)
}

// finish commits the last coalesced drop straight to the global copy.
func (r *absorptionRecorder) finish(th *thread) {
	if pd := &th.pending; pd.w > 0 {
		atomic.AddUint64(&th.blk.global[pd.addr], pd.w)
		pd.w = 0
	}
}
