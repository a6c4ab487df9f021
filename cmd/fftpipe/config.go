package main

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/noriah/fftpipe"
	"github.com/noriah/fftpipe/device"
	"github.com/noriah/fftpipe/dsp"
)

// config is the command line view of fftpipe.Config.
type config struct {
	// file is the signal file written and read back
	file string
	// samples is the signal length
	samples int
	// omega is the angular frequency constant, in radians per sample
	omega float64
	// gulpSize is the number of samples in a frame
	gulpSize int
	// gulpNFrame is the number of frames per gulp
	gulpNFrame int
	// nfft is the number of forward/inverse cycles
	nfft int
	// repeat is how many pipeline runs are averaged
	repeat int
	// backend is the device backend from list-backends
	backend string
	// cpuFFT is the fft backend for system space blocks
	cpuFFT string
	// runners is a comma separated runner list
	runners string
	// space is where the pipeline FFT stages run
	space string
	// progress shows a bar while the signal is written
	progress bool
	// report is the JSON report path
	report string
	// verbosity is the klog level
	verbosity int
}

// newZeroConfig returns the configuration of the stock benchmark.
func newZeroConfig() config {
	def := fftpipe.NewConfig()

	return config{
		file:       def.File,
		samples:    dsp.DefaultSampleCount,
		omega:      dsp.DefaultOmega,
		gulpSize:   def.GulpSize,
		gulpNFrame: def.GulpNFrame,
		nfft:       def.NumberFFT,
		repeat:     def.Repeat,
		backend:    device.DefaultBackend,
		runners:    strings.Join(fftpipe.DefaultRunners, ","),
		space:      def.Space,
	}
}

func (cfg *config) runnerList() []string {
	var list []string
	for _, r := range strings.Split(cfg.runners, ",") {
		if r = strings.TrimSpace(r); r != "" {
			list = append(list, r)
		}
	}
	return list
}

// validate checks what only the command line can get wrong and leaves the
// rest to fftpipe.Config.Validate.
func (cfg *config) validate() error {
	if len(cfg.runnerList()) == 0 {
		return errors.New("no runners selected")
	}

	if !device.HasBackend(cfg.backend) {
		return errors.Errorf("unknown device backend %q", cfg.backend)
	}

	run := cfg.fftpipeConfig()
	return run.Validate()
}

func (cfg *config) fftpipeConfig() fftpipe.Config {
	return fftpipe.Config{
		File:          cfg.file,
		SampleCount:   cfg.samples,
		Omega:         cfg.omega,
		GulpSize:      cfg.gulpSize,
		GulpNFrame:    cfg.gulpNFrame,
		NumberFFT:     cfg.nfft,
		Repeat:        cfg.repeat,
		Space:         cfg.space,
		DeviceBackend: cfg.backend,
		CPUBackend:    cfg.cpuFFT,
		Runners:       cfg.runnerList(),
		Progress:      cfg.progress,
		ReportPath:    cfg.report,
	}
}
