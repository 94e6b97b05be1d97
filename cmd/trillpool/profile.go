package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"go.uber.org/zap"
)

// profiles names the pprof outputs for a bench run. Empty paths are skipped.
type profiles struct {
	CPU    string
	Memory string
}

// start begins CPU profiling and returns a func that stops it and writes
// the heap profile.
func (p profiles) start(log *zap.Logger) (func(), error) {
	var cpu *os.File
	if p.CPU != "" {
		f, err := os.Create(p.CPU)
		if err != nil {
			return nil, fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("could not start CPU profile: %w", err)
		}
		cpu = f
	}

	return func() {
		if cpu != nil {
			pprof.StopCPUProfile()
			cpu.Close()
			log.Info("CPU profile written", zap.String("file", p.CPU))
		}
		if p.Memory == "" {
			return
		}
		f, err := os.Create(p.Memory)
		if err != nil {
			log.Error("could not create memory profile", zap.Error(err))
			return
		}
		defer f.Close()
		runtime.GC() // up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Error("could not write memory profile", zap.Error(err))
			return
		}
		log.Info("memory profile written", zap.String("file", p.Memory))
	}, nil
}
