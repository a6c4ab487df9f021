package fftpipe

import (
	"encoding/json"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sys/cpu"
	"k8s.io/klog/v2"

	"github.com/noriah/fftpipe/bench"
	"github.com/noriah/fftpipe/device"
)

// Report is the machine readable record of one Run.
type Report struct {
	ID      string         `json:"id"`
	Started time.Time      `json:"started"`
	Host    Host           `json:"host"`
	Config  ReportConfig   `json:"config"`
	Results []RunnerResult `json:"results"`
}

// Host describes the machine a report was taken on.
type Host struct {
	OS       string   `json:"os"`
	Arch     string   `json:"arch"`
	NumCPU   int      `json:"num_cpu"`
	Features []string `json:"features"`
	Device   string   `json:"device,omitempty"`
}

// ReportConfig is the subset of Config that affects timings.
type ReportConfig struct {
	SampleCount   int     `json:"sample_count"`
	Omega         float64 `json:"omega"`
	GulpSize      int     `json:"gulp_size"`
	GulpNFrame    int     `json:"gulp_nframe"`
	NumberFFT     int     `json:"nfft"`
	Repeat        int     `json:"repeat"`
	Space         string  `json:"space"`
	DeviceBackend string  `json:"device_backend"`
	CPUBackend    string  `json:"cpu_backend,omitempty"`
}

// RunnerResult holds the timings of one runner in seconds.
type RunnerResult struct {
	Runner string    `json:"runner"`
	Label  string    `json:"label"`
	Mean   float64   `json:"mean"`
	StdDev float64   `json:"stddev"`
	Runs   []float64 `json:"runs"`
}

func newReport(cfg *Config) *Report {
	return &Report{
		ID:      uuid.NewString(),
		Started: time.Now().UTC(),
		Host:    hostInfo(),
		Config: ReportConfig{
			SampleCount:   cfg.SampleCount,
			Omega:         cfg.Omega,
			GulpSize:      cfg.GulpSize,
			GulpNFrame:    cfg.GulpNFrame,
			NumberFFT:     cfg.NumberFFT,
			Repeat:        cfg.Repeat,
			Space:         cfg.Space,
			DeviceBackend: cfg.DeviceBackend,
			CPUBackend:    cfg.CPUBackend,
		},
		Results: []RunnerResult{},
	}
}

func (r *Report) add(name string, res bench.Result) {
	runs := make([]float64, len(res.Runs))
	for i, d := range res.Runs {
		runs[i] = d.Seconds()
	}

	r.Results = append(r.Results, RunnerResult{
		Runner: name,
		Label:  labels[name],
		Mean:   res.Mean,
		StdDev: res.StdDev,
		Runs:   runs,
	})
}

func (r *Report) write(name string) error {
	if ctx, err := device.Current(); err == nil {
		r.Host.Device = ctx.Device().String()
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode report")
	}

	if err := os.WriteFile(name, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(err, "failed to write report")
	}

	klog.V(1).Infof("report %s written to %s (%s)", r.ID, name, humanize.Bytes(uint64(len(data)+1)))

	return nil
}

func hostInfo() Host {
	h := Host{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		NumCPU:   runtime.NumCPU(),
		Features: []string{},
	}

	flags := []struct {
		name string
		has  bool
	}{
		{"sse4.1", cpu.X86.HasSSE41},
		{"avx", cpu.X86.HasAVX},
		{"avx2", cpu.X86.HasAVX2},
		{"fma", cpu.X86.HasFMA},
		{"avx512f", cpu.X86.HasAVX512F},
		{"asimd", cpu.ARM64.HasASIMD},
		{"sve", cpu.ARM64.HasSVE},
	}

	for _, f := range flags {
		if f.has {
			h.Features = append(h.Features, f.name)
		}
	}

	return h
}
