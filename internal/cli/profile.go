package cli

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"go.uber.org/zap"
)

// profiler writes CPU, heap and goroutine profiles around a run.
type profiler struct {
	cpuPath       string
	memPath       string
	goroutinePath string

	cpuFile *os.File
	logger  *zap.Logger
}

// start begins CPU profiling if requested.
func (p *profiler) start() error {
	if p.cpuPath == "" {
		return nil
	}
	f, err := os.Create(p.cpuPath)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("could not start CPU profile: %w", err)
	}
	p.cpuFile = f
	return nil
}

// stop ends CPU profiling and writes the heap and goroutine profiles.
// Goroutine profiles taken after a run show VUs that failed to exit.
func (p *profiler) stop() error {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := p.cpuFile.Close(); err != nil {
			return err
		}
		p.logger.Info("cpu profile written", zap.String("path", p.cpuPath))
		p.cpuFile = nil
	}

	if p.memPath != "" {
		runtime.GC() // get up-to-date statistics
		if err := writeProfile("heap", p.memPath); err != nil {
			return err
		}
		p.logger.Info("heap profile written", zap.String("path", p.memPath))
	}

	if p.goroutinePath != "" {
		if err := writeProfile("goroutine", p.goroutinePath); err != nil {
			return err
		}
		p.logger.Info("goroutine profile written",
			zap.String("path", p.goroutinePath), zap.Int("goroutines", runtime.NumGoroutine()))
	}
	return nil
}

func writeProfile(name, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %s profile: %w", name, err)
	}
	defer f.Close()

	if err := pprof.Lookup(name).WriteTo(f, 0); err != nil {
		return fmt.Errorf("could not write %s profile: %w", name, err)
	}
	return nil
}
