package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/integrii/flaggy"
	"k8s.io/klog/v2"

	"github.com/noriah/fftpipe"
	"github.com/noriah/fftpipe/device"
	"github.com/noriah/fftpipe/fft"

	_ "github.com/noriah/fftpipe/device/host"
)

// AppName is the app name
const AppName = "fftpipe"

// AppDesc is the app description
const AppDesc = "FFT pipeline micro-benchmark"

// AppSite is the app website
const AppSite = "https://github.com/noriah/fftpipe"

var version = "unknown"

func main() {
	cfg := newZeroConfig()

	if doFlags(&cfg) {
		return
	}

	chk(cfg.validate(), "invalid config")

	runCfg := cfg.fftpipeConfig()

	// Root Context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	chk(fftpipe.Run(&runCfg, ctx), "failed to run fftpipe")

	klog.Flush()
}

func doFlags(cfg *config) bool {

	parser := flaggy.NewParser(AppName)
	parser.Description = AppDesc
	parser.AdditionalHelpPrepend = AppSite
	parser.Version = version

	listBackendsCmd := flaggy.Subcommand{
		Name:        "list-backends",
		ShortName:   "lb",
		Description: "list device and cpu fft backends",
	}

	parser.AttachSubcommand(&listBackendsCmd, 1)

	listDevicesCmd := flaggy.Subcommand{
		Name:                 "list-devices",
		ShortName:            "ld",
		Description:          "list all devices for a device backend",
		AdditionalHelpAppend: "\nselect the backend with -b",
	}

	parser.AttachSubcommand(&listDevicesCmd, 1)

	parser.String(&cfg.file, "f", "file", "signal file")
	parser.Int(&cfg.samples, "n", "samples", "number of samples in the signal")
	parser.Float64(&cfg.omega, "w", "omega", "signal angular frequency constant")
	parser.Int(&cfg.gulpSize, "g", "gulp-size", "samples per frame")
	parser.Int(&cfg.gulpNFrame, "gn", "gulp-nframe", "frames per gulp")
	parser.Int(&cfg.nfft, "k", "nfft", "forward/inverse cycles per run")
	parser.Int(&cfg.repeat, "r", "repeat", "pipeline runs to average")
	parser.String(&cfg.backend, "b", "backend", "device backend name")
	parser.String(&cfg.cpuFFT, "c", "cpu-fft", "fft backend for system space")
	parser.String(&cfg.runners, "R", "runners", "comma separated runners (pipeline,regular,pack,device)")
	parser.String(&cfg.space, "s", "space", "pipeline fft space (device or system)")
	parser.Bool(&cfg.progress, "p", "progress", "show progress while writing the signal")
	parser.String(&cfg.report, "o", "report", "write a JSON report to this path")
	parser.Int(&cfg.verbosity, "v", "verbosity", "log verbosity")

	chk(parser.Parse(), "failed to parse arguments")

	initLogging(cfg.verbosity)

	switch {
	case listBackendsCmd.Used:
		fmt.Println("device backends:")
		for _, backend := range device.Backends {
			fmt.Printf("- %s\n", backend.Name)
		}

		fmt.Println("cpu fft backends:")
		for _, backend := range fft.Backends {
			star := ' '
			if backend.Name == fft.DefaultBackend {
				star = '*'
			}
			fmt.Printf("- %s %c %s\n", backend.Name, star, backend.Description)
		}

		return true

	case listDevicesCmd.Used:
		backend := device.FindBackend(cfg.backend)
		if backend == nil {
			klog.Exitf("device backend not found: %q", cfg.backend)
		}

		devices, err := backend.Devices()
		chk(err, "failed to get devices")

		fmt.Printf("all devices for %q backend\n", cfg.backend)

		for idx := range devices {
			fmt.Printf("- %v (%s, %s)\n", devices[idx], devices[idx].Vendor, devices[idx].Driver)
		}

		return true
	}

	return false
}

func initLogging(verbosity int) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	chk(fs.Set("v", strconv.Itoa(verbosity)), "failed to set verbosity")
}

func chk(err error, wrap string) {
	if err != nil {
		klog.Exitf("%s: %v", wrap, err)
	}
}
