package mcml

import (
	"fmt"
	"runtime"
	"strings"
)

// CacheMode selects how absorbed weight reaches the global grid.
type CacheMode uint8

const (
	CacheShared64 CacheMode = iota // 64-bit block cache, no overflow handling needed
	CacheShared32                  // 32-bit block cache with overflow flags and flushes
	CacheOff                       // every commit goes to the block's global copy
)

var cacheNames = map[CacheMode]string{
	CacheShared64: "shared64",
	CacheShared32: "shared32",
	CacheOff:      "off",
}

func (m CacheMode) String() string {
	if s, ok := cacheNames[m]; ok {
		return s
	}
	return fmt.Sprintf("CacheMode(%d)", m)
}

// ParseCacheMode accepts the names printed by CacheMode.String.
func ParseCacheMode(s string) (CacheMode, error) {
	for m, name := range cacheNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown cache mode %q", ErrBadOptions, s)
}

// Assignment decides which thread runs which photon.
type Assignment uint8

const (
	// AssignStatic gives thread g of T the photons g, g+T, g+2T, ...
	// Results are reproducible bit for bit.
	AssignStatic Assignment = iota
	// AssignDynamic relaunches on whichever thread terminates first while
	// the shared budget lasts. Totals are exact, the trajectories are not reproducible.
	AssignDynamic
)

func (a Assignment) String() string {
	switch a {
	case AssignStatic:
		return "static"
	case AssignDynamic:
		return "dynamic"
	}
	return fmt.Sprintf("Assignment(%d)", a)
}

// ParseAssignment accepts "static" or "dynamic".
func ParseAssignment(s string) (Assignment, error) {
	switch strings.ToLower(s) {
	case "static":
		return AssignStatic, nil
	case "dynamic":
		return AssignDynamic, nil
	}
	return 0, fmt.Errorf("%w: unknown assignment %q", ErrBadOptions, s)
}

// Options is the run configuration resolved once before the first launch.
// Zero fields take defaults.
type Options struct {
	Devices         int // independent device instances
	Blocks          int // blocks per device, defaults to NumCPU
	ThreadsPerBlock int
	StepsPerLaunch  int
	Cache           CacheMode
	CachedIR        int
	CachedIZ        int
	GlobalCopies    int
	// OverflowThreshold is the 32-bit cache value that triggers a flush.
	OverflowThreshold uint32
	Assignment        Assignment
}

// DefaultOptions returns the options used for zero fields.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Devices <= 0 {
		o.Devices = 1
	}
	if o.Blocks <= 0 {
		o.Blocks = runtime.NumCPU()
	}
	if o.ThreadsPerBlock <= 0 {
		o.ThreadsPerBlock = ThreadsPerBlock
	}
	if o.StepsPerLaunch <= 0 {
		o.StepsPerLaunch = StepsPerLaunch
	}
	if o.CachedIR <= 0 {
		o.CachedIR = CachedIR
	}
	if o.CachedIZ <= 0 {
		o.CachedIZ = CachedIZ
	}
	if o.GlobalCopies <= 0 {
		o.GlobalCopies = GlobalCopies
	}
	if o.GlobalCopies > o.Blocks {
		o.GlobalCopies = o.Blocks
	}
	if o.OverflowThreshold == 0 {
		o.OverflowThreshold = defaultThreshold
	}
	return o
}

// Validate checks option values after defaults are applied.
func (o Options) Validate() error {
	o = o.withDefaults()
	if _, ok := cacheNames[o.Cache]; !ok {
		return fmt.Errorf("%w: cache mode %d", ErrBadOptions, o.Cache)
	}
	if o.Assignment > AssignDynamic {
		return fmt.Errorf("%w: assignment %d", ErrBadOptions, o.Assignment)
	}
	if o.Cache == CacheShared32 && uint64(o.OverflowThreshold)+uint64(o.ThreadsPerBlock) > 1<<32-1 {
		return fmt.Errorf("%w: overflow threshold %d leaves no headroom for %d threads", ErrBadOptions, o.OverflowThreshold, o.ThreadsPerBlock)
	}
	if o.Blocks > MaxThreads || o.ThreadsPerBlock > MaxThreads || o.Devices > MaxThreads ||
		o.Devices*o.Blocks*o.ThreadsPerBlock > MaxThreads {
		return fmt.Errorf("%w: %d devices x %d blocks x %d threads (max %d threads)",
			ErrAlloc, o.Devices, o.Blocks, o.ThreadsPerBlock, MaxThreads)
	}
	return nil
}
