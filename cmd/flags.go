package main

import (
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/cwbudde/clbench/internal/accel"
	"github.com/cwbudde/clbench/internal/harness"
	"github.com/cwbudde/clbench/internal/workloads"
)

// Flags shared by run and suite.
var (
	backendName     string
	platformIndex   int
	deviceIndex     int
	checkLevel      int
	binaryMode      bool
	offsetSupported bool
	kernelsRoot     string
	artifactDir     string
	schedulerTag    string
	chunkHint       int
	dataDir         string

	paramSize        int
	paramHeight      int
	paramFilterWidth int
	paramScene       string
	paramMaxIter     int
	paramXPos        float64
	paramYPos        float64
	paramSeed        int64
)

func backendList() string {
	names := make([]string, 0, 2)
	for _, b := range accel.SupportedBackends() {
		names = append(names, string(b))
	}
	return strings.Join(names, ", ")
}

func addHarnessFlags(fs *pflag.FlagSet) {
	def := harness.DefaultConfig()
	backendHelp := "Accelerator backend (" + backendList() + ")"
	fs.StringVar(&backendName, "backend", def.Backend, backendHelp)
	fs.IntVar(&platformIndex, "platform", 0, "Platform index")
	fs.IntVar(&deviceIndex, "device", 0, "Device index within the platform")
	fs.IntVar(&checkLevel, "check", harness.CheckNone, "Check level: 0 none, 1 verify, 2 verify and write bitmap")
	fs.BoolVar(&binaryMode, "binary", false, "Load programs from a compiled binary instead of source")
	fs.BoolVar(&offsetSupported, "offset-supported", def.OffsetSupported, "Define ECL_KERNEL_GLOBAL_WORK_OFFSET_SUPPORTED when building")
	fs.StringVar(&kernelsRoot, "kernels", def.KernelsRoot, "Directory containing kernel sources")
	fs.StringVar(&artifactDir, "artifacts", def.ArtifactDir, "Directory for check level 2 bitmaps")
	fs.StringVar(&schedulerTag, "scheduler", "", "Scheduler tag recorded with the run")
	fs.IntVar(&chunkHint, "chunk", 0, "Chunk size hint recorded with the run")
	fs.StringVar(&dataDir, "data-dir", "./data", "Base directory for recorded runs")

	fs.IntVar(&paramSize, "size", 0, "Problem size (0 = workload default)")
	fs.IntVar(&paramHeight, "height", 0, "Image height for gaussian and mandelbrot (0 = square)")
	fs.IntVar(&paramFilterWidth, "filter-width", 0, "Gaussian filter width, odd (0 = 5)")
	fs.StringVar(&paramScene, "scene", "", "Ray tracer scene name")
	fs.IntVar(&paramMaxIter, "max-iter", 0, "Mandelbrot iteration limit (0 = 1024)")
	fs.Float64Var(&paramXPos, "xpos", -0.65, "Mandelbrot view center, real part")
	fs.Float64Var(&paramYPos, "ypos", 0.3, "Mandelbrot view center, imaginary part")
	fs.Int64Var(&paramSeed, "seed", 0, "Seed for generated inputs")
}

func harnessConfig() harness.Config {
	mode := harness.ModeSource
	if binaryMode {
		mode = harness.ModeBinary
	}
	return harness.Config{
		Backend:         backendName,
		Selection:       harness.Selection{Platform: platformIndex, Device: deviceIndex},
		KernelsRoot:     kernelsRoot,
		Mode:            mode,
		CheckLevel:      checkLevel,
		ArtifactDir:     artifactDir,
		SchedulerTag:    schedulerTag,
		ChunkHint:       chunkHint,
		OffsetSupported: offsetSupported,
		Report:          os.Stdout,
	}
}

func workloadParams() workloads.Params {
	return workloads.Params{
		Size:        paramSize,
		Height:      paramHeight,
		FilterWidth: paramFilterWidth,
		Scene:       paramScene,
		MaxIter:     paramMaxIter,
		XPos:        &paramXPos,
		YPos:        &paramYPos,
		Seed:        paramSeed,
	}
}
