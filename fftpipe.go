// Package fftpipe benchmarks repeated forward and inverse FFTs over a
// synthetic signal with a device pipeline and several reference
// implementations.
package fftpipe

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/noriah/fftpipe/bench"
	"github.com/noriah/fftpipe/device"
	"github.com/noriah/fftpipe/dsp"
	"github.com/noriah/fftpipe/fft"
	"github.com/noriah/fftpipe/pipeline"
)

// Runner names.
const (
	RunnerPipeline = "pipeline"
	RunnerRegular  = "regular"
	RunnerPack     = "pack"
	RunnerDevice   = "device"
)

// Runners lists every runner in the order Run executes them.
var Runners = []string{RunnerPipeline, RunnerRegular, RunnerPack, RunnerDevice}

// DefaultRunners are the runners executed when none are selected.
var DefaultRunners = []string{RunnerPipeline, RunnerDevice}

// labels are printed in front of each runner's time.
var labels = map[string]string{
	RunnerPipeline: "Bifrost gets:",
	RunnerRegular:  "Regular single-threaded numpy gets:",
	RunnerPack:     "scipy fftpack gets:",
	RunnerDevice:   "scikit fftpack gets:",
}

// DefaultFile is the name of the generated signal file.
const DefaultFile = "numpy_data0.bin"

// Config is the configuration of one benchmark session.
type Config struct {
	File        string  // signal file written and read by every runner
	SampleCount int     // number of samples in the signal
	Omega       float64 // angular frequency constant of the signal
	GulpSize    int     // samples per pipeline frame
	GulpNFrame  int     // frames per pipeline gulp
	NumberFFT   int     // forward/inverse cycles per run
	Repeat      int     // pipeline runs to average
	Space       string  // memory space of the pipeline FFT stages

	DeviceBackend string // device runtime backend
	CPUBackend    string // fft backend for system space stages

	Runners  []string // runners to execute, nil for DefaultRunners
	Progress bool     // show progress while writing the signal

	ReportPath string    // JSON report destination, "" for none
	Output     io.Writer // where result lines go, nil for stdout
}

// NewConfig returns the configuration of the stock benchmark.
func NewConfig() Config {
	return Config{
		File:          DefaultFile,
		SampleCount:   dsp.DefaultSampleCount,
		Omega:         dsp.DefaultOmega,
		GulpSize:      32768,
		GulpNFrame:    128,
		NumberFFT:     bench.NumberFFT,
		Repeat:        2,
		Space:         string(pipeline.Device),
		DeviceBackend: device.DefaultBackend,
		Runners:       DefaultRunners,
	}
}

func (cfg *Config) runs(name string) bool {
	if cfg.Runners == nil {
		return slices.Contains(DefaultRunners, name)
	}
	return slices.Contains(cfg.Runners, name)
}

func (cfg *Config) needsDevice() bool {
	if cfg.runs(RunnerDevice) {
		return true
	}

	space, err := pipeline.ParseSpace(cfg.Space)
	return cfg.runs(RunnerPipeline) && err == nil && space == pipeline.Device
}

// Validate rejects configurations Run cannot execute. The device backend is
// only checked when a selected runner needs the device.
func (cfg *Config) Validate() error {
	switch {
	case cfg.File == "":
		return errors.New("no signal file")

	case cfg.SampleCount < 1:
		return errors.New("sample count must be positive")

	case cfg.GulpSize < 1:
		return errors.New("gulp size must be positive")

	case cfg.GulpNFrame < 1:
		return errors.New("gulp nframe must be positive")

	case cfg.NumberFFT < 1:
		return errors.New("nfft must be positive")

	case cfg.Repeat < 1:
		return errors.New("repeat must be positive")
	}

	if cfg.SampleCount%cfg.GulpSize != 0 {
		return errors.Errorf("sample count %d is not a multiple of gulp size %d",
			cfg.SampleCount, cfg.GulpSize)
	}

	if _, err := pipeline.ParseSpace(cfg.Space); err != nil {
		return err
	}

	if cfg.CPUBackend != "" && !fft.HasBackend(cfg.CPUBackend) {
		return errors.Wrapf(fft.ErrBackendNotFound, "%q", cfg.CPUBackend)
	}

	for _, name := range cfg.Runners {
		if _, ok := labels[name]; !ok {
			return errors.Errorf("unknown runner %q (want one of %s)",
				name, strings.Join(Runners, ","))
		}
	}

	if cfg.needsDevice() && cfg.DeviceBackend != "" && !device.HasBackend(cfg.DeviceBackend) {
		return errors.Errorf("unknown device backend %q", cfg.DeviceBackend)
	}

	return nil
}

// Run generates the signal file, runs the selected benchmarks in order and
// prints one line per runner.
func Run(cfg *Config, ctx context.Context) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	if cfg.needsDevice() {
		if err := device.Init(cfg.DeviceBackend); err != nil {
			return err
		}
		defer func() {
			if err := device.Shutdown(); err != nil {
				klog.Warningf("device shutdown: %v", err)
			}
		}()
	}

	report := newReport(cfg)

	samples := dsp.GenerateSine(cfg.SampleCount, cfg.Omega)
	if err := dsp.WriteSamples(cfg.File, samples, cfg.Progress); err != nil {
		return err
	}

	for _, name := range Runners {
		if !cfg.runs(name) {
			continue
		}

		klog.V(1).Infof("running %s", name)

		res, err := runOne(ctx, cfg, name)
		if err != nil {
			return errors.Wrapf(err, "%s benchmark failed", name)
		}

		fmt.Fprintln(out, labels[name], res.Mean)

		report.add(name, res)
	}

	if cfg.ReportPath != "" {
		if err := report.write(cfg.ReportPath); err != nil {
			return err
		}
	}

	return nil
}

func runOne(ctx context.Context, cfg *Config, name string) (bench.Result, error) {
	var (
		elapsed time.Duration
		err     error
	)

	switch name {
	case RunnerPipeline:
		b := bench.NewPipelineBenchmarker(cfg.File)
		b.GulpSize = cfg.GulpSize
		b.GulpNFrame = cfg.GulpNFrame
		b.NumberFFT = cfg.NumberFFT
		b.Space = cfg.Space
		b.Backend = cfg.CPUBackend
		return bench.Average(ctx, b, cfg.Repeat)

	case RunnerRegular:
		elapsed, err = bench.RegularFFT(ctx, cfg.File, cfg.NumberFFT)

	case RunnerPack:
		elapsed, err = bench.PackFFT(ctx, cfg.File, cfg.NumberFFT)

	case RunnerDevice:
		elapsed, err = bench.DeviceFFT(ctx, cfg.File, cfg.NumberFFT)
	}

	if err != nil {
		return bench.Result{}, err
	}

	return bench.Result{Mean: elapsed.Seconds(), Runs: []time.Duration{elapsed}}, nil
}
