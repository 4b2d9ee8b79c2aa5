package mcml

import (
	"sync"
	"sync/atomic"
)

// block is the unit that shares one cache, one barrier and one global copy.
type block struct {
	id      int
	barrier *barrier
	cache   blockCache
	global  []uint64 // the A copy this block writes to, nil when absorption is ignored
	active  atomic.Int32
}

// thread is the register state of one emulated thread during a launch.
type thread struct {
	gid, tid int
	photon   Photon
	rng      RandomStream
	pending  pending
	active   bool
	launched uint64
	blk      *block
}

// launch runs every thread of the device for at most StepsPerLaunch steps.
func (s *Scheduler) launch() {
	T := s.opts.ThreadsPerBlock
	var wg sync.WaitGroup
	for _, blk := range s.blocks {
		lo := blk.id * T
		blk.active.Store(int32(s.states.activeCount(lo, lo+T)))
		wg.Add(T)
		for tid := 0; tid < T; tid++ {
			go func(blk *block, tid int) {
				defer wg.Done()
				s.runThread(blk, tid)
			}(blk, tid)
		}
	}
	wg.Wait()
}

func (s *Scheduler) runThread(blk *block, tid int) {
	th := thread{gid: blk.id*s.opts.ThreadsPerBlock + tid, tid: tid, blk: blk, pending: pending{addr: noAddr}}
	th.active, th.launched = s.states.restore(th.gid, &th.photon, &th.rng)

	cache := blk.cache
	cache.reset(tid)
	blk.barrier.Wait()

	perStep := cache.stepSync()
	for i := 0; i < s.opts.StepsPerLaunch; i++ {
		if th.active && s.eng.step(&th) {
			s.terminate(&th)
		}
		if perStep {
			// Overflow phase: no commits happen between the two barriers.
			blk.barrier.Wait()
			cache.resolve(tid)
			idle := blk.active.Load() == 0
			blk.barrier.Wait()
			if idle {
				break
			}
		} else if !th.active {
			break
		}
	}

	blk.barrier.Wait()
	s.eng.rec.finish(&th)
	cache.flush(tid)
	s.states.save(th.gid, &th.photon, th.rng, th.active, th.launched)
}

// terminate retires the thread's photon and launches the next one if the
// assignment policy allows it.
func (s *Scheduler) terminate(th *thread) {
	old := s.remaining.Add(-1) + 1
	var again bool
	switch s.opts.Assignment {
	case AssignDynamic:
		again = old > int64(s.states.Len())
	default:
		again = th.launched < s.quota(th.gid)
	}
	if again {
		th.photon.launch(s.initW)
		th.launched++
		logEvent(Launch)
		return
	}
	th.active = false
	th.blk.active.Add(-1)
}
