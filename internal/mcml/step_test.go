package mcml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func testEngine(t *testing.T, above Real, specs []LayerSpec, below Real, g DetectorGrid) *engine {
	t.Helper()
	tab, err := NewLayerTable(above, specs, below)
	require.NoError(t, err)
	return &engine{
		table: tab,
		grid:  g,
		rec:   ignoreAbsorption{},
		rd:    make([]uint64, g.Nr*g.Na),
		tt:    make([]uint64, g.Nr*g.Na),
	}
}

func testStream(idx int) RandomStream {
	return NewRandomStream(1, idx, Multipliers(idx+1)[idx])
}

var smallGrid = DetectorGrid{Dz: 0.01, Dr: 0.01, Nz: 10, Nr: 10, Na: 9}

func TestStepSizeMean(t *testing.T) {
	e := testEngine(t, 1, []LayerSpec{{N: 1, MuA: 2, MuS: 8, Thickness: 1}}, 1, smallGrid)
	rng := testStream(0)
	p := Photon{Layer: 1}
	xs := make([]float64, 100_000)
	for i := range xs {
		e.stepSize(&p, &rng)
		require.True(t, p.S >= 0 && !math.IsInf(p.S, 0))
		xs[i] = p.S
	}
	assert.InEpsilon(t, 0.1, stat.Mean(xs, nil), 0.02)
}

func TestStepSizeGlass(t *testing.T) {
	e := testEngine(t, 1, []LayerSpec{{N: 1.5, Thickness: 1}}, 1, smallGrid)
	rng := testStream(0)
	p := Photon{Layer: 1, Uz: 1}
	e.stepSize(&p, &rng)
	assert.True(t, math.IsInf(p.S, 1))
	assert.True(t, e.hitBoundary(&p))
	assert.Equal(t, 1.0, p.S)
}

func TestHitBoundary(t *testing.T) {
	e := testEngine(t, 1, []LayerSpec{{N: 1, MuA: 1, MuS: 1, Thickness: 1}}, 1, smallGrid)
	p := Photon{Layer: 1, Z: 0.5, Uz: 0.5, S: 2}
	assert.True(t, e.hitBoundary(&p))
	assert.InDelta(t, 1, p.S, 1e-15)

	p = Photon{Layer: 1, Z: 0.5, Uz: -0.25, S: 1}
	assert.False(t, e.hitBoundary(&p))
	assert.Equal(t, 1.0, p.S)

	p = Photon{Layer: 1, Z: 0.5, Ux: 1, S: 100}
	assert.False(t, e.hitBoundary(&p))
}

func TestMatchedIndexAlwaysTransmits(t *testing.T) {
	specs := []LayerSpec{
		{N: 1.4, MuA: 1, MuS: 10, Thickness: 0.1},
		{N: 1.4, MuA: 1, MuS: 10, Thickness: 0.1},
	}
	e := testEngine(t, 1.4, specs, 1.4, smallGrid)
	for i := 0; i < 100; i++ {
		rng := testStream(i % 8)
		p := Photon{Layer: 1, Z: 0.1, Uz: 1, W: 1}
		assert.Equal(t, Transmit, e.reflectTransmit(&p, &rng))
		assert.Equal(t, 2, p.Layer)
		assert.Equal(t, 1.0, p.Uz)

		p = Photon{Layer: 2, Z: 0.2, Uz: 1, W: 1}
		assert.Equal(t, Transmitted, e.reflectTransmit(&p, &rng))
		assert.Equal(t, 0.0, p.W)
	}
	assert.Equal(t, uint64(100*WeightScale), e.tt[0])
}

func TestTotalInternalReflection(t *testing.T) {
	e := testEngine(t, 1, []LayerSpec{{N: 1.5, MuA: 1, MuS: 10, Thickness: 0.1}}, 1, smallGrid)
	ux := math.Sqrt(1 - 0.3*0.3)
	for i := 0; i < 8; i++ {
		rng := testStream(i)
		p := Photon{Layer: 1, Ux: ux, Uz: -0.3, W: 1}
		assert.Equal(t, TIR, e.reflectTransmit(&p, &rng))
		assert.Equal(t, 1, p.Layer)
		assert.Equal(t, 0.3, p.Uz)
		assert.Equal(t, 1.0, p.W)

		p = Photon{Layer: 1, Z: 0.1, Ux: ux, Uz: 0.3, W: 1}
		assert.Equal(t, TIR, e.reflectTransmit(&p, &rng))
		assert.Equal(t, -0.3, p.Uz)
	}
	assert.Zero(t, e.rd[0]+e.tt[0])
}

func TestReflectionFrequency(t *testing.T) {
	e := testEngine(t, 1, []LayerSpec{{N: 1.4, MuA: 1, MuS: 10, Thickness: 0.1}}, 1, smallGrid)
	const ca1 = 0.95
	want, _ := fresnel(1.4, 1, ca1)
	rng := testStream(3)
	n, reflected := 100_000, 0
	for i := 0; i < n; i++ {
		p := Photon{Layer: 1, Ux: math.Sqrt(1 - ca1*ca1), Uz: -ca1, W: 1}
		switch ev := e.reflectTransmit(&p, &rng); ev {
		case Reflect:
			reflected++
			assert.Equal(t, ca1, p.Uz)
		case Reflected:
			// leaving upwards, refracted to a unit vector
			assert.Less(t, p.Uz, 0.0)
			assert.InDelta(t, 1, p.Ux*p.Ux+p.Uy*p.Uy+p.Uz*p.Uz, 1e-12)
		default:
			t.Fatalf("unexpected event %s", ev)
		}
	}
	assert.InDelta(t, want, Real(reflected)/Real(n), 0.005)
}

func TestEscapeBinning(t *testing.T) {
	e := testEngine(t, 1, []LayerSpec{{N: 1, MuA: 1, MuS: 10, Thickness: 0.1}}, 1, smallGrid)
	rng := testStream(0)
	c := math.Cos(45 * math.Pi / 180)
	p := Photon{Layer: 1, X: 0.035, Ux: math.Sqrt(1 - c*c), Uz: -c, W: 0.5}
	assert.Equal(t, Reflected, e.reflectTransmit(&p, &rng))
	assert.Equal(t, uint64(6_000_000), e.rd[3*smallGrid.Na+4])

	// radius beyond the grid lands in the last ring
	p = Photon{Layer: 1, Z: 0.1, X: 100, Uz: 1, W: 0.25}
	assert.Equal(t, Transmitted, e.reflectTransmit(&p, &rng))
	assert.Equal(t, uint64(3_000_000), e.tt[(smallGrid.Nr-1)*smallGrid.Na])
}

func TestSpinAnisotropy(t *testing.T) {
	for _, g := range []Real{0, 0.5, 0.9, -0.7} {
		for _, dir := range [][3]Real{{0, 0, 1}, {0, 0, -1}, {0.6, 0, 0.8}, {0, 0.8, -0.6}} {
			rng := testStream(1)
			cs := make([]float64, 50_000)
			for i := range cs {
				p := Photon{Ux: dir[0], Uy: dir[1], Uz: dir[2]}
				spin(g, &p, &rng)
				require.InDelta(t, 1, p.Ux*p.Ux+p.Uy*p.Uy+p.Uz*p.Uz, 1e-12)
				cs[i] = p.Ux*dir[0] + p.Uy*dir[1] + p.Uz*dir[2]
			}
			assert.InDelta(t, g, stat.Mean(cs, nil), 0.015, "g=%g dir=%v", g, dir)
		}
	}
}

func TestRouletteUnbiased(t *testing.T) {
	rng := testStream(2)
	const w = WeightThreshold / 2
	ws := make([]float64, 200_000)
	survived := 0
	for i := range ws {
		p := Photon{W: w}
		if roulette(&p, &rng) {
			survived++
			ws[i] = p.W
		}
	}
	assert.InDelta(t, Chance, Real(survived)/Real(len(ws)), 0.003)
	assert.InEpsilon(t, w, stat.Mean(ws, nil), 0.05)

	p := Photon{}
	assert.False(t, roulette(&p, &rng))
}

func TestStepThroughGlass(t *testing.T) {
	e := testEngine(t, 1, []LayerSpec{{N: 1, Thickness: 0.05}}, 1, smallGrid)
	th := &thread{rng: testStream(0)}
	th.photon.launch(1)
	assert.True(t, e.step(th))
	assert.Equal(t, 2, th.photon.Layer)
	assert.Equal(t, uint64(WeightScale), e.tt[0])

	// a photon running parallel inside a glass slab is dropped
	th.photon = Photon{Layer: 1, Z: 0.01, Ux: 1, W: 1}
	assert.True(t, e.step(th))
}

func TestStepAbsorbs(t *testing.T) {
	e := testEngine(t, 1, []LayerSpec{{N: 1, MuA: 1, MuS: 3, G: 0.5, Thickness: 100}}, 1, smallGrid)
	th := &thread{rng: testStream(0)}
	th.photon.launch(1)
	assert.False(t, e.step(th))
	p := th.photon
	assert.InDelta(t, 0.75, p.W, 1e-15)
	assert.Greater(t, p.Z, 0.0)
	assert.InDelta(t, 1, p.Ux*p.Ux+p.Uy*p.Uy+p.Uz*p.Uz, 1e-12)
}
