package mcml

import (
	"fmt"
	"math"
)

// LayerSpec is a physical layer as the caller supplies it.
type LayerSpec struct {
	N         Real // refractive index
	MuA       Real // absorption coefficient [1/cm]
	MuS       Real // scattering coefficient [1/cm]
	G         Real // anisotropy
	Thickness Real // [cm]
}

// OpticalLayer is the prepared, read-only form of a layer.
type OpticalLayer struct {
	N          Real
	MuA, MuS   Real
	MuT        Real // MuA + MuS
	RMuT       Real // 1/MuT, +Inf for a non-interacting layer
	MuAOverMuT Real
	G          Real
	ZMin, ZMax Real
	// Cosines of the critical angles towards the layer above and below,
	// 0 when total internal reflection cannot happen.
	CosCritUp, CosCritDown Real
}

// Glass reports whether photons cross the layer without interacting.
func (l *OpticalLayer) Glass() bool { return l.MuT == 0 }

// LayerTable holds the layers of a run. Index 0 is the ambient medium above
// and the last index the ambient medium below; both only carry N.
type LayerTable struct {
	Layers []OpticalLayer
}

// NumLayers returns the number of physical layers.
func (t *LayerTable) NumLayers() int { return len(t.Layers) - 2 }

// Depth returns the bottom of the deepest physical layer.
func (t *LayerTable) Depth() Real { return t.Layers[t.NumLayers()].ZMax }

// LayerAt returns the physical layer containing depth z, or 0 when z is outside the stack.
func (t *LayerTable) LayerAt(z Real) int {
	for i := 1; i <= t.NumLayers(); i++ {
		if z >= t.Layers[i].ZMin && z < t.Layers[i].ZMax {
			return i
		}
	}
	return 0
}

func cosCrit(n1, n2 Real) Real {
	if n1 > n2 {
		return math.Sqrt(1 - (n2/n1)*(n2/n1))
	}
	return 0
}

// SpecularReflectance returns the normal-incidence reflectance between two media.
func SpecularReflectance(n1, n2 Real) Real {
	r := (n1 - n2) / (n1 + n2)
	return r * r
}

// validIndex reports whether n is a usable refractive index.
func validIndex(n Real) bool { return n > 0 && !math.IsInf(n, 0) }

func (s LayerSpec) validate(i int) error {
	switch {
	case !validIndex(s.N):
		return fmt.Errorf("%w %d: refractive index %g", ErrBadLayer, i, s.N)
	case !(s.MuA >= 0) || !(s.MuS >= 0) || math.IsInf(s.MuA+s.MuS, 0):
		return fmt.Errorf("%w %d: coefficients mua=%g mus=%g must be finite and non-negative", ErrBadLayer, i, s.MuA, s.MuS)
	case !(s.G > -1 && s.G < 1):
		return fmt.Errorf("%w %d: anisotropy %g not in (-1,1)", ErrBadLayer, i, s.G)
	case !(s.Thickness > 0) || math.IsInf(s.Thickness, 0):
		return fmt.Errorf("%w %d: thickness %g", ErrBadLayer, i, s.Thickness)
	}
	return nil
}

// NewLayerTable stacks the layers from z=0 downwards between two ambient media.
func NewLayerTable(above Real, specs []LayerSpec, below Real) (*LayerTable, error) {
	if len(specs) == 0 {
		return nil, ErrNoLayers
	}
	if len(specs)+2 > MaxLayers {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyLayers, len(specs), MaxLayers-2)
	}
	if !validIndex(above) || !validIndex(below) {
		return nil, fmt.Errorf("%w: ambient refractive index above=%g below=%g", ErrBadLayer, above, below)
	}
	t := &LayerTable{Layers: make([]OpticalLayer, len(specs)+2)}
	t.Layers[0].N = above
	t.Layers[len(specs)+1].N = below
	z := Real(0)
	for i, s := range specs {
		if err := s.validate(i + 1); err != nil {
			return nil, err
		}
		l := &t.Layers[i+1]
		l.N, l.MuA, l.MuS, l.G = s.N, s.MuA, s.MuS, s.G
		l.MuT = s.MuA + s.MuS
		if l.MuT > 0 {
			l.RMuT = 1 / l.MuT
			l.MuAOverMuT = s.MuA / l.MuT
		} else {
			l.RMuT = math.Inf(1)
		}
		l.ZMin = z
		z += s.Thickness
		l.ZMax = z
	}
	for i := 1; i <= len(specs); i++ {
		l := &t.Layers[i]
		l.CosCritUp = cosCrit(l.N, t.Layers[i-1].N)
		l.CosCritDown = cosCrit(l.N, t.Layers[i+1].N)
	}
	t.Layers[0].ZMin, t.Layers[0].ZMax = 0, 0
	t.Layers[len(specs)+1].ZMin, t.Layers[len(specs)+1].ZMax = z, z
	DebugLog("Layer table: %d layers, depth %.4f cm", len(specs), z)
	return t, nil
}
