package mcml

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExampleConfig(t *testing.T) {
	cfg, err := ParseConfig(ExampleConfig)
	require.NoError(t, err)
	sims, opts, err := cfg.Build()
	require.NoError(t, err)
	require.Len(t, sims, 2)

	skin, dermis := sims[0], sims[1]
	assert.Equal(t, "skin", skin.Name)
	assert.Equal(t, "dermis", dermis.Name)
	assert.Equal(t, uint64(100000), skin.Desc.Photons)
	assert.Equal(t, uint64(13), skin.Desc.Seed)
	require.Len(t, skin.Desc.Layers, 2)
	assert.Equal(t, LayerSpec{N: 1.4, MuA: 1.5, MuS: 200, G: 0.9, Thickness: 0.01}, skin.Desc.Layers[0])
	assert.Equal(t, 0.85, skin.Desc.Layers[1].G)
	assert.Equal(t, DetectorGrid{Dz: 0.002, Dr: 0.01, Nz: 500, Nr: 100, Na: 10}, skin.Desc.Grid)

	assert.Equal(t, uint64(50000), dermis.Desc.Photons)
	require.Len(t, dermis.Desc.Layers, 1)
	assert.Equal(t, skin.Desc.Layers[1], dermis.Desc.Layers[0])
	assert.Equal(t, skin.Desc.Grid, dermis.Desc.Grid)

	assert.Equal(t, CacheShared64, opts.Cache)
	assert.Equal(t, AssignStatic, opts.Assignment)
	assert.Equal(t, 64, opts.ThreadsPerBlock)
}

func TestBatchOrderDefaultsToNames(t *testing.T) {
	text := strings.Replace(ExampleConfig, "[Batch]\nSimulation = skin\nSimulation = dermis\n", "", 1)
	cfg, err := ParseConfig(text)
	require.NoError(t, err)
	sims, _, err := cfg.Build()
	require.NoError(t, err)
	require.Len(t, sims, 2)
	assert.Equal(t, "dermis", sims[0].Name)
	assert.Equal(t, "skin", sims[1].Name)
}

func TestConfigErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		old, new string
		err      error
	}{
		"undefined layer":      {"Layer = dermis\n\n[Simulation \"dermis\"]", "Layer = fat\n\n[Simulation \"dermis\"]", ErrBadLayer},
		"undefined simulation": {"Simulation = dermis\n", "Simulation = muscle\n", ErrBadConfig},
		"listed twice":         {"Simulation = dermis\n", "Simulation = skin\n", ErrBadConfig},
		"undefined grid":       {"Grid = skin\nLayer = dermis", "Grid = fine\nLayer = dermis", ErrBadConfig},
		"no photons":           {"Photons = 50000", "Photons = 0", ErrNoPhotons},
		"bad cache":            {"Cache = shared64", "Cache = texture", ErrBadOptions},
		"bad assignment":       {"Assignment = static", "Assignment = random", ErrBadOptions},
		"bad grid":             {"Nz = 500", "Nz = 0", ErrBadGrid},
		"bad layer":            {"Mus = 150", "Mus = -1", ErrBadLayer},
	} {
		require.Contains(t, ExampleConfig, tc.old, name)
		cfg, err := ParseConfig(strings.Replace(ExampleConfig, tc.old, tc.new, 1))
		require.NoError(t, err, name)
		sims, _, err := cfg.Build()
		assert.ErrorIs(t, err, tc.err, name)
		assert.Nil(t, sims, name)
	}

	cfg, err := ParseConfig("[Device]\nBlocks = 2\n")
	require.NoError(t, err)
	_, _, err = cfg.Build()
	assert.ErrorIs(t, err, ErrBadConfig)

	// two grids and a simulation that names neither
	text := strings.Replace(ExampleConfig, "Grid = skin\nLayer = epidermis", "Layer = epidermis", 1) +
		"\n[Grid \"coarse\"]\nDz = 0.01\nDr = 0.1\nNz = 10\nNr = 10\n"
	cfg, err = ParseConfig(text)
	require.NoError(t, err)
	_, _, err = cfg.Build()
	assert.ErrorIs(t, err, ErrBadConfig)

	_, err = ParseConfig("[Simulation \"a\"]\nColour = red\n")
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg, err := ParseConfig("[Simulation \"a\"]\nPhotons = 10\nLayer = a\n[Layer \"a\"]\nN = 1.3\nMua = 1\nMus = 1\nThickness = 1\n[Grid \"g\"]\nDz = 0.1\nDr = 0.1\nNz = 10\nNr = 10\n")
	require.NoError(t, err)
	sims, opts, err := cfg.Build()
	require.NoError(t, err)
	require.Len(t, sims, 1)
	desc := sims[0].Desc
	assert.Equal(t, 1.0, desc.Above)
	assert.Equal(t, 1.0, desc.Below)
	assert.Equal(t, 1, desc.Grid.Na)
	assert.Equal(t, Options{}, opts)
}

func TestOverride(t *testing.T) {
	cfg, err := ParseConfig(ExampleConfig)
	require.NoError(t, err)
	seed, devices, ignore := uint64(99), 3, true
	Override{Seed: &seed, Devices: &devices, IgnoreAbsorption: &ignore}.Apply(cfg)
	sims, opts, err := cfg.Build()
	require.NoError(t, err)
	for _, sim := range sims {
		assert.Equal(t, uint64(99), sim.Desc.Seed, sim.Name)
		assert.True(t, sim.Desc.IgnoreAbsorption, sim.Name)
	}
	assert.Equal(t, 3, opts.Devices)

	// unset fields leave the file alone
	cfg, err = ParseConfig(ExampleConfig)
	require.NoError(t, err)
	Override{}.Apply(cfg)
	sims, _, err = cfg.Build()
	require.NoError(t, err)
	assert.Equal(t, uint64(13), sims[0].Desc.Seed)
	assert.Equal(t, uint64(14), sims[1].Desc.Seed)
	assert.False(t, sims[0].Desc.IgnoreAbsorption)
}

func TestRunConfig(t *testing.T) {
	text := strings.NewReplacer(
		"Photons = 100000", "Photons = 500",
		"Photons = 50000", "Photons = 300",
		"Blocks = 0", "Blocks = 2",
		"ThreadsPerBlock = 64", "ThreadsPerBlock = 8",
	).Replace(ExampleConfig)
	path := filepath.Join(t.TempDir(), "run.ini")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	var out bytes.Buffer
	require.NoError(t, RunConfig(context.Background(), path, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for i, name := range []string{"skin", "dermis"} {
		fields := strings.Split(lines[i], ",")
		require.Len(t, fields, 6)
		assert.Equal(t, name, fields[0])
	}
	assert.NotEqual(t, lines[0][len("skin"):], lines[1][len("dermis"):])

	err := RunConfig(context.Background(), filepath.Join(t.TempDir(), "missing.ini"), &out)
	assert.Error(t, err)
}

func TestRunBatchStopsOnCancel(t *testing.T) {
	cfg, err := ParseConfig(ExampleConfig)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	err = RunBatch(ctx, cfg, &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), `"skin"`)
	assert.Empty(t, out.String())
}
