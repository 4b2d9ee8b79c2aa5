package mcml

import (
	"math"
	"sync/atomic"
)

// blockCache is the write path a block uses for absorbed weight.
// commit may be called by every thread of the block concurrently.
// reset, resolve and flush are called by each thread for its own cyclic
// slice of cells and must be separated from commits by a block barrier.
type blockCache interface {
	reset(tid int)
	commit(ir, iz, addr int, w uint64)
	stepSync() bool
	resolve(tid int)
	flush(tid int)
}

// globalOnly sends every commit to the block's global copy.
type globalOnly struct {
	global []uint64
}

func (c *globalOnly) reset(int) {}
func (c *globalOnly) commit(_, _, addr int, w uint64) {
	atomic.AddUint64(&c.global[addr], w)
}
func (c *globalOnly) stepSync() bool { return false }
func (c *globalOnly) resolve(int)    {}
func (c *globalOnly) flush(int)      {}

// cacheShape maps the cached corner ir<nir, iz<niz of the grid.
type cacheShape struct {
	nir, niz int
	nz       int // row length of the global grid
	threads  int
}

func newCacheShape(opts Options, g DetectorGrid) cacheShape {
	return cacheShape{
		nir:     min(opts.CachedIR, g.Nr),
		niz:     min(opts.CachedIZ, g.Nz),
		nz:      g.Nz,
		threads: opts.ThreadsPerBlock,
	}
}

func (s cacheShape) size() int { return s.nir * s.niz }

func (s cacheShape) cached(ir, iz int) bool { return ir < s.nir && iz < s.niz }

// globalAddr maps cache cell i back to the global grid.
func (s cacheShape) globalAddr(i int) int { return (i/s.niz)*s.nz + i%s.niz }

// sharedCache64 caches the hot corner of the grid with 64-bit cells.
type sharedCache64 struct {
	cacheShape
	global []uint64
	cells  []uint64
}

func newSharedCache64(shape cacheShape, global []uint64) *sharedCache64 {
	return &sharedCache64{cacheShape: shape, global: global, cells: make([]uint64, shape.size())}
}

func (c *sharedCache64) reset(tid int) {
	for i := tid; i < len(c.cells); i += c.threads {
		atomic.StoreUint64(&c.cells[i], 0)
	}
}

func (c *sharedCache64) commit(ir, iz, addr int, w uint64) {
	if c.cached(ir, iz) {
		atomic.AddUint64(&c.cells[ir*c.niz+iz], w)
		return
	}
	atomic.AddUint64(&c.global[addr], w)
}

func (c *sharedCache64) stepSync() bool { return false }
func (c *sharedCache64) resolve(int)    {}

func (c *sharedCache64) flush(tid int) {
	for i := tid; i < len(c.cells); i += c.threads {
		if v := atomic.SwapUint64(&c.cells[i], 0); v != 0 {
			atomic.AddUint64(&c.global[c.globalAddr(i)], v)
		}
	}
}

// sharedCache32 caches with 32-bit cells. A commit whose result reaches the
// threshold raises the flag of group addr%threads; the owner of a raised
// group flushes the whole group after the step. Commits above maxCommit
// bypass the cache, so threads*maxCommit of headroom above the threshold
// are enough for one step.
type sharedCache32 struct {
	cacheShape
	global    []uint64
	cells     []uint32
	flags     []uint32
	threshold uint32
	maxCommit uint64
	flushes   atomic.Int64
}

func newSharedCache32(shape cacheShape, global []uint64, threshold uint32) *sharedCache32 {
	return &sharedCache32{
		cacheShape: shape,
		global:     global,
		cells:      make([]uint32, shape.size()),
		flags:      make([]uint32, shape.threads),
		threshold:  threshold,
		maxCommit:  uint64(math.MaxUint32-threshold) / uint64(shape.threads),
	}
}

func (c *sharedCache32) reset(tid int) {
	for i := tid; i < len(c.cells); i += c.threads {
		atomic.StoreUint32(&c.cells[i], 0)
	}
	atomic.StoreUint32(&c.flags[tid], 0)
}

func (c *sharedCache32) commit(ir, iz, addr int, w uint64) {
	if !c.cached(ir, iz) || w > c.maxCommit {
		atomic.AddUint64(&c.global[addr], w)
		return
	}
	i := ir*c.niz + iz
	if atomic.AddUint32(&c.cells[i], uint32(w)) >= c.threshold {
		atomic.StoreUint32(&c.flags[i%c.threads], 1)
	}
}

func (c *sharedCache32) stepSync() bool { return true }

func (c *sharedCache32) resolve(tid int) {
	if atomic.LoadUint32(&c.flags[tid]) == 0 {
		return
	}
	c.flush(tid)
	atomic.StoreUint32(&c.flags[tid], 0)
	c.flushes.Add(1)
}

func (c *sharedCache32) flush(tid int) {
	for i := tid; i < len(c.cells); i += c.threads {
		if v := atomic.SwapUint32(&c.cells[i], 0); v != 0 {
			atomic.AddUint64(&c.global[c.globalAddr(i)], uint64(v))
		}
	}
}

// newBlockCache resolves the cache mode into the policy of one block.
func newBlockCache(opts Options, g DetectorGrid, global []uint64) blockCache {
	shape := newCacheShape(opts, g)
	switch opts.Cache {
	case CacheShared64:
		return newSharedCache64(shape, global)
	case CacheShared32:
		return newSharedCache32(shape, global, opts.OverflowThreshold)
	}
	return &globalOnly{global: global}
}
