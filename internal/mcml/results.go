package mcml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// AccumulatedResults holds the fixed-point grids of a finished run.
// A is indexed ir*nz+iz, Rd and Tt ir*na+ia.
type AccumulatedResults struct {
	Grid     DetectorGrid
	Layers   *LayerTable
	Photons  uint64
	Specular Real // specular reflectance at the top surface
	A        []uint64
	Rd, Tt   []uint64
	Launches int
}

// Sum adds per-device partial results into one.
func Sum(parts ...*AccumulatedResults) (*AccumulatedResults, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: nothing to sum", ErrBadOptions)
	}
	first := parts[0]
	out := &AccumulatedResults{
		Grid:     first.Grid,
		Layers:   first.Layers,
		Specular: first.Specular,
		Rd:       make([]uint64, len(first.Rd)),
		Tt:       make([]uint64, len(first.Tt)),
	}
	if first.A != nil {
		out.A = make([]uint64, len(first.A))
	}
	for i, p := range parts {
		if p.Grid != first.Grid || len(p.A) != len(out.A) {
			return nil, fmt.Errorf("%w: result %d has a different grid", ErrBadGrid, i)
		}
		out.Photons += p.Photons
		out.Launches = max(out.Launches, p.Launches)
		addInto(out.A, p.A)
		addInto(out.Rd, p.Rd)
		addInto(out.Tt, p.Tt)
	}
	return out, nil
}

func addInto(dst, src []uint64) {
	for i, v := range src {
		dst[i] += v
	}
}

// scaled converts a fixed-point grid into weight fractions of the launched photons.
func (r *AccumulatedResults) scaled(raw []uint64) []Real {
	out := make([]Real, len(raw))
	for i, v := range raw {
		out[i] = Real(v)
	}
	if r.Photons > 0 {
		floats.Scale(1/(WeightScale*Real(r.Photons)), out)
	}
	return out
}

// Absorption returns the absorbed weight fraction per (ir,iz) bin.
func (r *AccumulatedResults) Absorption() []Real { return r.scaled(r.A) }

// DiffuseReflectance returns the reflected weight fraction per (ir,ia) bin.
func (r *AccumulatedResults) DiffuseReflectance() []Real { return r.scaled(r.Rd) }

// Transmittance returns the transmitted weight fraction per (ir,ia) bin.
func (r *AccumulatedResults) Transmittance() []Real { return r.scaled(r.Tt) }

func (r *AccumulatedResults) TotalAbsorption() Real { return floats.Sum(r.Absorption()) }

func (r *AccumulatedResults) TotalDiffuseReflectance() Real {
	return floats.Sum(r.DiffuseReflectance())
}

func (r *AccumulatedResults) TotalTransmittance() Real { return floats.Sum(r.Transmittance()) }

// ringArea is the area of radial bin ir [cm^2].
func (r *AccumulatedResults) ringArea(ir int) Real {
	return 2 * math.Pi * (Real(ir) + 0.5) * r.Grid.Dr * r.Grid.Dr
}

// solidAngle is the solid angle of exit angle bin ia [sr].
func (r *AccumulatedResults) solidAngle(ia int) Real {
	da := r.Grid.Da()
	return 4 * math.Pi * math.Sin((Real(ia)+0.5)*da) * math.Sin(da/2)
}

// AbsorptionDensity returns the absorbed fraction per unit volume [1/cm^3].
func (r *AccumulatedResults) AbsorptionDensity() []Real {
	a := r.Absorption()
	g := r.Grid
	for ir := 0; ir < g.Nr; ir++ {
		v := r.ringArea(ir) * g.Dz
		floats.Scale(1/v, a[ir*g.Nz:(ir+1)*g.Nz])
	}
	return a
}

// AbsorptionZ returns the absorbed fraction per unit depth [1/cm].
func (r *AccumulatedResults) AbsorptionZ() []Real {
	a := r.Absorption()
	g := r.Grid
	out := make([]Real, g.Nz)
	for ir := 0; ir < g.Nr; ir++ {
		floats.Add(out, a[ir*g.Nz:(ir+1)*g.Nz])
	}
	floats.Scale(1/g.Dz, out)
	return out
}

// AbsorptionByLayer returns the absorbed fraction per physical layer, index
// 0 left empty, attributing each depth bin to the layer holding its centre.
func (r *AccumulatedResults) AbsorptionByLayer() []Real {
	out := make([]Real, r.Layers.NumLayers()+1)
	for iz, v := range r.AbsorptionZ() {
		out[r.Layers.LayerAt((Real(iz)+0.5)*r.Grid.Dz)] += v * r.Grid.Dz
	}
	out[0] = 0
	return out
}

// Fluence returns absorption density divided by the local absorption coefficient [1/cm^2].
func (r *AccumulatedResults) Fluence() []Real {
	a := r.AbsorptionDensity()
	g := r.Grid
	for iz := 0; iz < g.Nz; iz++ {
		l := r.Layers.LayerAt((Real(iz) + 0.5) * g.Dz)
		mua := r.Layers.Layers[l].MuA
		for ir := 0; ir < g.Nr; ir++ {
			if l == 0 || mua == 0 {
				a[ir*g.Nz+iz] = 0
				continue
			}
			a[ir*g.Nz+iz] /= mua
		}
	}
	return a
}

// byRadius sums an (ir,ia) grid over angles and divides by the ring area [1/cm^2].
func (r *AccumulatedResults) byRadius(ra []Real) []Real {
	g := r.Grid
	out := make([]Real, g.Nr)
	for ir := range out {
		out[ir] = floats.Sum(ra[ir*g.Na:(ir+1)*g.Na]) / r.ringArea(ir)
	}
	return out
}

// byAngle sums an (ir,ia) grid over radii and divides by the solid angle [1/sr].
func (r *AccumulatedResults) byAngle(ra []Real) []Real {
	g := r.Grid
	out := make([]Real, g.Na)
	for ir := 0; ir < g.Nr; ir++ {
		floats.Add(out, ra[ir*g.Na:(ir+1)*g.Na])
	}
	for ia := range out {
		out[ia] /= r.solidAngle(ia)
	}
	return out
}

func (r *AccumulatedResults) ReflectanceR() []Real   { return r.byRadius(r.DiffuseReflectance()) }
func (r *AccumulatedResults) ReflectanceA() []Real   { return r.byAngle(r.DiffuseReflectance()) }
func (r *AccumulatedResults) TransmittanceR() []Real { return r.byRadius(r.Transmittance()) }
func (r *AccumulatedResults) TransmittanceA() []Real { return r.byAngle(r.Transmittance()) }

// PenetrationDepth returns the depth [cm] at which the beam entering the
// tissue has dropped to 1/e: the first depth bin where the cumulative
// absorbed weight exceeds (1 - 1/e) of the weight entering (A + Tt). When the
// beam never drops that far inside the grid the full tissue depth is returned.
// Zero when nothing was absorbed or absorption was ignored.
func (r *AccumulatedResults) PenetrationDepth() Real {
	if r.A == nil {
		return 0
	}
	var a, t uint64
	for _, v := range r.A {
		a += v
	}
	for _, v := range r.Tt {
		t += v
	}
	if a == 0 {
		return 0
	}
	limit := Real(a+t) * (1 - 1/euler)
	g := r.Grid
	var cum uint64
	for iz := 0; iz < g.Nz; iz++ {
		for ir := 0; ir < g.Nr; ir++ {
			cum += r.A[ir*g.Nz+iz]
		}
		if Real(cum) > limit {
			return Real(iz) * g.Dz
		}
	}
	return r.Layers.Depth()
}
