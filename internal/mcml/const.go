package mcml

type Real = float64

const (
	// WeightScale converts photon weight to the fixed-point integers stored in the grids.
	WeightScale = 12_000_000
	// WeightThreshold is the weight below which a photon plays roulette.
	WeightThreshold = 1e-4
	// Chance is the roulette survival probability.
	Chance = 0.1

	MaxLayers        = 100 // including the two ambient sentinels
	MaxCells         = 1 << 28
	MaxThreads       = 1 << 16 // goroutines per launch, summed over devices
	StepsPerLaunch   = 50_000 // use 5000 for faster response time
	ThreadsPerBlock  = 64
	CachedIR         = 48
	CachedIZ         = 128
	GlobalCopies     = 4
	firstMultiplier  = 4294967118
	cosZero          = 1 - 1e-12 // cosine of ~1e-6 rad
	cos90D           = 1e-6      // cosine of ~90 deg
	euler            = 2.718281828459045
	twoOverPi        = 0.6366197723675814
	defaultThreshold = 1<<31 - 1 // half of the 32-bit element range
)
