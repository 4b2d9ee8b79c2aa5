package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/lukaszgryglicki/mcml/internal/mcml"
)

func main() {
	example := flag.Bool("example", false, "Print an example run file to stdout and exit.")
	seed := flag.Uint64("seed", 0, "Random seed for every simulation, overrides the run file.")
	devices := flag.Int("devices", 0, "Number of devices, overrides the run file.")
	ignoreA := flag.Bool("ignore-absorption", false, "Skip the absorption grid in every simulation.")
	flag.Parse()
	var over mcml.Override
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			over.Seed = seed
		case "devices":
			over.Devices = devices
		case "ignore-absorption":
			over.IgnoreAbsorption = ignoreA
		}
	})
	if *example {
		fmt.Print(mcml.ExampleConfig)
		return
	}

	mcml.Debug = os.Getenv("DEBUG") != ""
	if mcml.Debug {
		mcml.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	profile := os.Getenv("PROFILE") != ""
	if profile {
		f, err := os.Create("cpu.out")
		if err != nil {
			panic(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}()
	}

	cfg := "mcml.ini"
	if flag.NArg() > 0 {
		cfg = flag.Arg(0)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg, over); err != nil {
		fmt.Printf("Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, over mcml.Override) error {
	cfg, err := mcml.LoadConfig(path)
	if err != nil {
		return err
	}
	over.Apply(cfg)
	return mcml.RunBatch(ctx, cfg, os.Stdout)
}
