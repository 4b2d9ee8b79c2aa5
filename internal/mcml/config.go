package mcml

import (
	"fmt"
	"maps"
	"slices"

	"gopkg.in/gcfg.v1"
)

// BatchCfg lists the simulations of a run file in the order they run.
type BatchCfg struct {
	Simulation []string
}

type SimulationCfg struct {
	Photons          uint64
	Seed             uint64
	IgnoreAbsorption bool
	Above, Below     float64  // ambient refractive indices, 0 means 1
	Grid             string   // grid name, may be left out when only one grid is defined
	Layer            []string // layer names, top to bottom
}

type GridCfg struct {
	Dz, Dr     float64
	Nz, Nr, Na int // Na 0 means 1
}

type LayerCfg struct {
	N, Mua, Mus, G, Thickness float64
}

type DeviceCfg struct {
	Devices           int
	Blocks            int
	ThreadsPerBlock   int
	StepsPerLaunch    int
	Cache             string
	CachedIR          int
	CachedIZ          int
	GlobalCopies      int
	OverflowThreshold uint32
	Assignment        string
}

// Config mirrors the sections of a run file.
type Config struct {
	Batch      BatchCfg
	Simulation map[string]*SimulationCfg
	Grid       map[string]*GridCfg
	Layer      map[string]*LayerCfg
	Device     DeviceCfg
}

// Simulation is one named, validated entry of a batch.
type Simulation struct {
	Name string
	Desc SimulationDescription
}

// DefaultConfig returns the values used for anything a file leaves out.
func DefaultConfig() *Config {
	return &Config{
		Simulation: map[string]*SimulationCfg{},
		Grid:       map[string]*GridCfg{},
		Layer:      map[string]*LayerCfg{},
		Device:     DeviceCfg{Cache: CacheShared64.String(), Assignment: AssignStatic.String()},
	}
}

const ExampleConfig = `# Simulations run in the order listed here. Without a [Batch]
# section every simulation runs, sorted by name.
[Batch]
Simulation = skin
Simulation = dermis

[Simulation "skin"]
Photons = 100000
Seed = 13
IgnoreAbsorption = false
Above = 1.0
Below = 1.0
Grid = skin
Layer = epidermis
Layer = dermis

[Simulation "dermis"]
Photons = 50000
Seed = 14
Above = 1.0
Below = 1.0
Grid = skin
Layer = dermis

[Grid "skin"]
Dz = 0.002
Dr = 0.01
Nz = 500
Nr = 100
Na = 10

[Layer "epidermis"]
N = 1.4
Mua = 1.5
Mus = 200
G = 0.9
Thickness = 0.01

[Layer "dermis"]
N = 1.4
Mua = 0.5
Mus = 150
G = 0.85
Thickness = 0.5

[Device]
Devices = 1
# Blocks = 0 uses one block per CPU
Blocks = 0
ThreadsPerBlock = 64
StepsPerLaunch = 50000
# shared64, shared32 or off
Cache = shared64
CachedIR = 48
CachedIZ = 128
GlobalCopies = 4
Assignment = static
`

// LoadConfig reads a run file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := gcfg.ReadFileInto(cfg, path); err != nil {
		return nil, err
	}
	DebugLog("Loaded config from %s: %d simulations, %d layers", path, len(cfg.Simulation), len(cfg.Layer))
	return cfg, nil
}

// ParseConfig reads a run file from a string on top of DefaultConfig.
func ParseConfig(text string) (*Config, error) {
	cfg := DefaultConfig()
	if err := gcfg.ReadStringInto(cfg, text); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Override patches settings shared by the whole batch, as from the command line.
type Override struct {
	Seed             *uint64
	IgnoreAbsorption *bool
	Devices          *int
}

// Apply writes every set field of o into c.
func (o Override) Apply(c *Config) {
	for _, sc := range c.Simulation {
		if o.Seed != nil {
			sc.Seed = *o.Seed
		}
		if o.IgnoreAbsorption != nil {
			sc.IgnoreAbsorption = *o.IgnoreAbsorption
		}
	}
	if o.Devices != nil {
		c.Device.Devices = *o.Devices
	}
}

// order returns the simulation names in run order.
func (c *Config) order() ([]string, error) {
	if len(c.Batch.Simulation) == 0 {
		if len(c.Simulation) == 0 {
			return nil, fmt.Errorf("%w: no simulations defined", ErrBadConfig)
		}
		return slices.Sorted(maps.Keys(c.Simulation)), nil
	}
	seen := make(map[string]bool, len(c.Batch.Simulation))
	for _, name := range c.Batch.Simulation {
		if _, ok := c.Simulation[name]; !ok {
			return nil, fmt.Errorf("%w: simulation %q is not defined", ErrBadConfig, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: simulation %q listed twice", ErrBadConfig, name)
		}
		seen[name] = true
	}
	return c.Batch.Simulation, nil
}

func (c *Config) grid(name string, sc *SimulationCfg) (DetectorGrid, error) {
	key := sc.Grid
	if key == "" {
		if len(c.Grid) != 1 {
			return DetectorGrid{}, fmt.Errorf("%w: simulation %q must name one of %d grids", ErrBadConfig, name, len(c.Grid))
		}
		for k := range c.Grid {
			key = k
		}
	}
	gc, ok := c.Grid[key]
	if !ok {
		return DetectorGrid{}, fmt.Errorf("%w: grid %q is not defined", ErrBadConfig, key)
	}
	g := DetectorGrid{Dz: gc.Dz, Dr: gc.Dr, Nz: gc.Nz, Nr: gc.Nr, Na: gc.Na}
	if g.Na == 0 {
		g.Na = 1
	}
	return g, nil
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func (c *Config) simulation(name string) (Simulation, error) {
	sc := c.Simulation[name]
	desc := SimulationDescription{
		Above:            orOne(sc.Above),
		Below:            orOne(sc.Below),
		Photons:          sc.Photons,
		Seed:             sc.Seed,
		IgnoreAbsorption: sc.IgnoreAbsorption,
	}
	g, err := c.grid(name, sc)
	if err != nil {
		return Simulation{}, err
	}
	desc.Grid = g
	for _, ln := range sc.Layer {
		lc, ok := c.Layer[ln]
		if !ok {
			return Simulation{}, fmt.Errorf("%w: simulation %q: layer %q is not defined", ErrBadLayer, name, ln)
		}
		desc.Layers = append(desc.Layers, LayerSpec{N: lc.N, MuA: lc.Mua, MuS: lc.Mus, G: lc.G, Thickness: lc.Thickness})
	}
	if err := desc.Validate(); err != nil {
		return Simulation{}, fmt.Errorf("simulation %q: %w", name, err)
	}
	return Simulation{Name: name, Desc: desc}, nil
}

// Build turns the config into validated simulations, in run order, and the
// run options they share. Nothing is returned unless every entry is valid.
func (c *Config) Build() ([]Simulation, Options, error) {
	names, err := c.order()
	if err != nil {
		return nil, Options{}, err
	}
	sims := make([]Simulation, 0, len(names))
	for _, name := range names {
		sim, err := c.simulation(name)
		if err != nil {
			return nil, Options{}, err
		}
		sims = append(sims, sim)
	}

	dc := c.Device
	cache, err := ParseCacheMode(dc.Cache)
	if err != nil {
		return nil, Options{}, err
	}
	assign, err := ParseAssignment(dc.Assignment)
	if err != nil {
		return nil, Options{}, err
	}
	opts := Options{
		Devices:           dc.Devices,
		Blocks:            dc.Blocks,
		ThreadsPerBlock:   dc.ThreadsPerBlock,
		StepsPerLaunch:    dc.StepsPerLaunch,
		Cache:             cache,
		CachedIR:          dc.CachedIR,
		CachedIZ:          dc.CachedIZ,
		GlobalCopies:      dc.GlobalCopies,
		OverflowThreshold: dc.OverflowThreshold,
		Assignment:        assign,
	}
	if err := opts.Validate(); err != nil {
		return nil, Options{}, err
	}
	return sims, opts, nil
}
