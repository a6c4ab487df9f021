package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroConfigIsValid(t *testing.T) {
	cfg := newZeroConfig()
	require.NoError(t, cfg.validate())

	run := cfg.fftpipeConfig()
	assert.Equal(t, 32768*1024, run.SampleCount)
	assert.Equal(t, 32768, run.GulpSize)
	assert.Equal(t, 128, run.GulpNFrame)
	assert.Equal(t, 10, run.NumberFFT)
	assert.Equal(t, 2, run.Repeat)
	assert.Equal(t, "numpy_data0.bin", run.File)
	assert.Equal(t, []string{"pipeline", "device"}, run.Runners)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*config)
	}{
		{"no file", func(c *config) { c.file = "" }},
		{"zero samples", func(c *config) { c.samples = 0 }},
		{"zero gulp", func(c *config) { c.gulpSize = 0 }},
		{"zero nframe", func(c *config) { c.gulpNFrame = 0 }},
		{"zero nfft", func(c *config) { c.nfft = 0 }},
		{"zero repeat", func(c *config) { c.repeat = 0 }},
		{"fragment", func(c *config) { c.samples = c.gulpSize + 1 }},
		{"space", func(c *config) { c.space = "tape" }},
		{"device backend", func(c *config) { c.backend = "opencl" }},
		{"cpu backend", func(c *config) { c.cpuFFT = "numpy" }},
		{"runner", func(c *config) { c.runners = "pipeline,numpy" }},
		{"no runners", func(c *config) { c.runners = " , " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newZeroConfig()
			tt.edit(&cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestRunnerList(t *testing.T) {
	cfg := newZeroConfig()
	cfg.runners = "pack, regular,,device"
	require.NoError(t, cfg.validate())
	assert.Equal(t, []string{"pack", "regular", "device"}, cfg.runnerList())
}
