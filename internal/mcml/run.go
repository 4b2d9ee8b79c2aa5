package mcml

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run simulates desc and returns the reduced results. With more than one
// device in opts it delegates to RunDevices.
func Run(ctx context.Context, desc SimulationDescription, opts Options) (*AccumulatedResults, error) {
	if opts.withDefaults().Devices > 1 {
		return RunDevices(ctx, desc, opts)
	}
	s, err := NewScheduler(desc, opts)
	if err != nil {
		return nil, err
	}
	res, err := s.Run(ctx)
	if Debug {
		eventStats()
	}
	return res, err
}

// RunDevices splits the photon budget evenly over opts.Devices independent
// schedulers, runs them concurrently and sums their results. Each device
// draws from its own range of random streams.
func RunDevices(ctx context.Context, desc SimulationDescription, opts Options) (*AccumulatedResults, error) {
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
	D := uint64(opts.Devices)
	threads := opts.Blocks * opts.ThreadsPerBlock
	devices := make([]*Scheduler, 0, opts.Devices)
	for d := uint64(0); d < D; d++ {
		share := desc.Photons / D
		if d < desc.Photons%D {
			share++
		}
		if share == 0 {
			continue
		}
		s, err := newScheduler(desc, table, opts, share, int(d)*threads)
		if err != nil {
			return nil, err
		}
		devices = append(devices, s)
	}

	start := time.Now()
	parts := make([]*AccumulatedResults, len(devices))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range devices {
		g.Go(func() error {
			res, err := s.Run(gctx)
			if err != nil {
				return fmt.Errorf("device %d: %w", i, err)
			}
			parts[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	DebugLog("Devices: %d, photons: %d, time: %s", len(devices), desc.Photons, time.Since(start))
	if Debug {
		eventStats()
	}
	return Sum(parts...)
}

// RunConfig loads a run file and runs its batch, see RunBatch.
func RunConfig(ctx context.Context, cfgPath string, w io.Writer) error {
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	return RunBatch(ctx, cfg, w)
}

// RunBatch runs every simulation of cfg in order and writes one summary
// line per simulation to w as soon as it finishes. Every entry is
// validated before the first one starts.
func RunBatch(ctx context.Context, cfg *Config, w io.Writer) error {
	sims, opts, err := cfg.Build()
	if err != nil {
		return err
	}
	start := time.Now()
	for i, sim := range sims {
		DebugLog("Simulation %d/%d: %s, %d photons", i+1, len(sims), sim.Name, sim.Desc.Photons)
		res, err := Run(ctx, sim.Desc, opts)
		if err != nil {
			return fmt.Errorf("simulation %q: %w", sim.Name, err)
		}
		if err := WriteSummary(w, sim.Name, res); err != nil {
			return err
		}
	}
	DebugLog("Batch: %d simulations, time: %s", len(sims), time.Since(start))
	return nil
}

// WriteSummary prints name,specular,Rd,A,Tt,penetration depth as one CSV line.
func WriteSummary(w io.Writer, name string, res *AccumulatedResults) error {
	_, err := fmt.Fprintf(w, "%s,%g,%g,%g,%g,%g\n",
		name, res.Specular, res.TotalDiffuseReflectance(), res.TotalAbsorption(),
		res.TotalTransmittance(), res.PenetrationDepth())
	return err
}
