package mcml

import (
	"context"
	"sync/atomic"
	"time"
)

// Scheduler drives one device: it launches bounded batches of steps until
// every photon of its budget has terminated.
type Scheduler struct {
	opts      Options
	table     *LayerTable
	grid      DetectorGrid
	eng       engine
	states    *ThreadStates
	blocks    []*block
	a         [][]uint64 // global copies of A, nil when absorption is ignored
	rd, tt    []uint64
	photons   uint64
	remaining atomic.Int64
	initW     Real
	specular  Real
	launches  int
}

// NewScheduler prepares a single device for the whole photon budget.
func NewScheduler(desc SimulationDescription, opts Options) (*Scheduler, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	table, err := NewLayerTable(desc.Above, desc.Layers, desc.Below)
	if err != nil {
		return nil, err
	}
	return newScheduler(desc, table, opts, desc.Photons, 0)
}

// newScheduler builds a device running photons photons whose random
// streams start at global stream index offset.
func newScheduler(desc SimulationDescription, table *LayerTable, opts Options, photons uint64, offset int) (*Scheduler, error) {
	g := desc.Grid
	rz, err := cells(g.Nr, g.Nz, opts.GlobalCopies)
	if err != nil {
		return nil, err
	}
	ra, err := cells(g.Nr, g.Na, 2)
	if err != nil {
		return nil, err
	}
	T := opts.ThreadsPerBlock
	n := opts.Blocks * T
	s := &Scheduler{
		opts:     opts,
		table:    table,
		grid:     g,
		states:   newThreadStates(n),
		rd:       make([]uint64, ra),
		tt:       make([]uint64, ra),
		photons:  photons,
		specular: SpecularReflectance(table.Layers[0].N, table.Layers[1].N),
	}
	s.initW = 1 - s.specular
	s.remaining.Store(int64(photons))
	s.eng = engine{table: table, grid: g, rd: s.rd, tt: s.tt, rec: ignoreAbsorption{}}
	if !desc.IgnoreAbsorption {
		s.a = make([][]uint64, opts.GlobalCopies)
		for i := range s.a {
			s.a[i] = make([]uint64, rz)
		}
		s.eng.rec = &absorptionRecorder{grid: g}
	}
	s.blocks = make([]*block, opts.Blocks)
	for b := range s.blocks {
		blk := &block{id: b, barrier: newBarrier(T)}
		if s.a != nil {
			// round-robin assignment of global copies
			blk.global = s.a[b%len(s.a)]
			blk.cache = newBlockCache(opts, g, blk.global)
		} else {
			blk.cache = &globalOnly{}
		}
		s.blocks[b] = blk
	}
	s.states.seed(desc.Seed, offset)
	for i := 0; i < n; i++ {
		if s.quota(i) == 0 {
			continue
		}
		var p Photon
		p.launch(s.initW)
		rng := RandomStream{X: s.states.RandX[i], A: s.states.RandA[i]}
		s.states.save(i, &p, rng, true, 1)
		logEvent(Launch)
	}
	DebugLogOnce("Weight scale %d, roulette below %g with chance %g", WeightScale, WeightThreshold, Chance)
	DebugLog("Device: %d blocks x %d threads, %d photons, cache=%s, copies=%d, assignment=%s", opts.Blocks, T, photons, opts.Cache, opts.GlobalCopies, opts.Assignment)
	return s, nil
}

// quota returns how many photons thread gid owns under static assignment.
// The dynamic policy uses it only to decide which threads start active.
func (s *Scheduler) quota(gid int) uint64 {
	T := uint64(s.states.Len())
	q := s.photons / T
	if uint64(gid) < s.photons%T {
		q++
	}
	if s.opts.Assignment == AssignDynamic {
		return min(q, 1)
	}
	return q
}

// Remaining returns the number of photons not yet terminated.
func (s *Scheduler) Remaining() int64 { return s.remaining.Load() }

// Launches returns the number of launches performed so far.
func (s *Scheduler) Launches() int { return s.launches }

// Run launches until the budget is exhausted. Cancellation is checked
// between launches; a cancelled run returns no results.
func (s *Scheduler) Run(ctx context.Context) (*AccumulatedResults, error) {
	start := time.Now()
	for s.remaining.Load() > 0 && s.states.activeCount(0, s.states.Len()) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.launch()
		s.launches++
		DebugLog("Launch %d: %d photons remaining", s.launches, s.remaining.Load())
	}
	DebugLog("Device done: %d photons, %d launches, time: %s", s.photons, s.launches, time.Since(start))
	return s.results(), nil
}

// results reduces the global copies into one grid.
func (s *Scheduler) results() *AccumulatedResults {
	r := &AccumulatedResults{
		Grid:     s.grid,
		Layers:   s.table,
		Photons:  s.photons,
		Specular: s.specular,
		Rd:       append([]uint64(nil), s.rd...),
		Tt:       append([]uint64(nil), s.tt...),
		Launches: s.launches,
	}
	if s.a != nil {
		r.A = make([]uint64, len(s.a[0]))
		for _, c := range s.a {
			for i, v := range c {
				r.A[i] += v
			}
		}
	}
	return r
}
