package mcml

import (
	"fmt"
	"math"
)

// DetectorGrid defines the bins of the accumulation grids.
type DetectorGrid struct {
	Dz, Dr     Real // bin sizes [cm]
	Nz, Nr, Na int  // bins in depth, radius and exit angle
}

func (g DetectorGrid) validate() error {
	if !(g.Dz > 0) || !(g.Dr > 0) || math.IsInf(g.Dz, 0) || math.IsInf(g.Dr, 0) {
		return fmt.Errorf("%w: spacing dz=%g dr=%g", ErrBadGrid, g.Dz, g.Dr)
	}
	if g.Nz <= 0 || g.Nr <= 0 || g.Na <= 0 {
		return fmt.Errorf("%w: bins nz=%d nr=%d na=%d", ErrBadGrid, g.Nz, g.Nr, g.Na)
	}
	return nil
}

// Da returns the exit angle bin size [rad].
func (g DetectorGrid) Da() Real { return math.Pi / 2 / Real(g.Na) }

// SimulationDescription is everything a run needs to know about the medium.
type SimulationDescription struct {
	Above            Real // refractive index of the medium above the stack
	Layers           []LayerSpec
	Below            Real // refractive index of the medium below the stack
	Grid             DetectorGrid
	Photons          uint64
	Seed             uint64
	IgnoreAbsorption bool // skip the absorption grid entirely
}

// Validate checks the description without building anything.
func (d *SimulationDescription) Validate() error {
	if d.Photons == 0 {
		return ErrNoPhotons
	}
	if d.Photons > math.MaxInt64 {
		return fmt.Errorf("%w: %d > %d", ErrManyPhotons, d.Photons, uint64(math.MaxInt64))
	}
	if err := d.Grid.validate(); err != nil {
		return err
	}
	_, err := NewLayerTable(d.Above, d.Layers, d.Below)
	return err
}

// cells checks that n*m grid elements (times copies) can be allocated.
func cells(n, m, copies int) (int, error) {
	if n > MaxCells/m || n*m > MaxCells/copies {
		return 0, fmt.Errorf("%w: %d x %d x %d cells", ErrAlloc, n, m, copies)
	}
	return n * m, nil
}
