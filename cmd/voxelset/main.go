// Command voxelset assembles a dataset from a YAML description and reports
// what a model would see: pool sizes, channel order, shapes and pooled
// normalization statistics. With -hist it also renders the raw target
// distribution.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/structml/voxelset/analysis"
	"github.com/structml/voxelset/dataset"
	"github.com/structml/voxelset/normalize"
)

var (
	configPath = flag.String("config", "dataset.yaml", "dataset description to load")
	histPath   = flag.String("hist", "", "write a target-distribution plot to this file (.png, .svg, .pdf)")
	invalidate = flag.Bool("invalidate", false, "drop cached per-shard statistics before setup")
	verbose    = flag.Bool("v", false, "debug logging")
)

func main() {
	flag.Parse()

	log, err := buildLogger(*verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := dataset.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("loading config", zap.Error(err))
	}

	if *invalidate {
		for _, shard := range append(append([]string{}, cfg.TrainShards...), cfg.TestShards...) {
			if err := normalize.Invalidate(shard); err != nil {
				log.Fatal("dropping statistics cache", zap.String("shard", shard), zap.Error(err))
			}
			log.Info("dropped statistics cache", zap.String("shard", shard))
		}
	}

	ds, err := dataset.New(*cfg, dataset.WithLogger(log))
	if err != nil {
		log.Fatal("building dataset", zap.Error(err))
	}
	if err := ds.Setup(); err != nil {
		log.Fatal("setting up dataset", zap.Error(err))
	}
	if ds.Len() == 0 {
		log.Warn("dataset is empty, nothing to report")
		return
	}

	report(ds)

	if *histPath != "" {
		if err := analysis.TargetHistogram(ds, *histPath); err != nil {
			log.Fatal("plotting target distribution", zap.Error(err))
		}
		log.Info("wrote target distribution", zap.String("path", *histPath))
	}
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func report(ds *dataset.Dataset) {
	fmt.Printf("complexes:   %d train, %d test\n", ds.TrainLen(), ds.TestLen())
	fmt.Printf("target:      %s\n", ds.TargetName())
	fmt.Printf("grid shape:  %s\n", ds.GridShape())
	fmt.Printf("data shape:  %v\n", ds.DataShape())
	fmt.Printf("input shape: %v\n", ds.InputShape())

	fmt.Println("channels:")
	for i, ch := range ds.Channels() {
		fmt.Printf("  %3d  %s\n", i, ch)
	}

	if stats := ds.Stats(); stats != nil {
		fmt.Println("pooled statistics:")
		for i, ch := range ds.Channels() {
			fmt.Printf("  %-40s mean %10.4f  std %10.4f\n", ch, stats.Mean[i], stats.Std[i])
		}
		fmt.Printf("  target range [%g, %g]\n", stats.TargetMin, stats.TargetMax)
	}
}
