package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
	"github.com/df07/go-metropolis-raytracer/pkg/metropolis"
	"github.com/df07/go-metropolis-raytracer/pkg/path"
	"github.com/df07/go-metropolis-raytracer/pkg/scene"
)

func main() {
	sceneType := flag.String("scene", "cornell", "Scene type: 'cornell' or 'box'")
	width := flag.Int("width", 400, "Image width in pixels")
	height := flag.Int("height", 400, "Image height in pixels")
	spp := flag.Int("spp", 32, "Average mutations per pixel")
	workers := flag.Int("workers", 0, "Parallel chain workers (0 = CPU count)")
	help := flag.Bool("help", false, "Show help information")

	cfg := metropolis.DefaultConfig()
	flag.IntVar(&cfg.MaxDepth, "max-depth", cfg.MaxDepth, "Maximum path depth (-1 = unbounded)")
	flag.BoolVar(&cfg.TwoStage, "two-stage", cfg.TwoStage, "Run a coarse first stage to build an importance map")
	flag.IntVar(&cfg.FirstStageSizeReduction, "first-stage-reduction", cfg.FirstStageSizeReduction, "Resolution divisor for the first stage")
	flag.IntVar(&cfg.LuminanceSamples, "luminance-samples", cfg.LuminanceSamples, "Sample count for the mean-luminance estimate")
	flag.IntVar(&cfg.DirectSamples, "direct-samples", cfg.DirectSamples, "Direct-lighting samples per pixel (-1 = let the chains handle direct light)")
	flag.IntVar(&cfg.WorkUnits, "work-units", cfg.WorkUnits, "Independent Markov chains (-1 = derive from budget)")
	flag.BoolVar(&cfg.BidirectionalMutation, "bidirectional", cfg.BidirectionalMutation, "Enable the large-step bidirectional mutation")
	flag.BoolVar(&cfg.LensPerturbation, "lens", cfg.LensPerturbation, "Enable lens perturbations")
	flag.BoolVar(&cfg.CausticPerturbation, "caustic", cfg.CausticPerturbation, "Enable caustic perturbations")
	flag.BoolVar(&cfg.MultiChainPerturbation, "multi-chain", cfg.MultiChainPerturbation, "Enable multi-chain perturbations")
	flag.BoolVar(&cfg.ManifoldPerturbation, "manifold", cfg.ManifoldPerturbation, "Enable manifold perturbations")
	flag.Float64Var(&cfg.ProbFactor, "prob-factor", cfg.ProbFactor, "Relative weight of perturbations vs. large steps")
	flag.IntVar(&cfg.Timeout, "timeout", cfg.Timeout, "Stop rendering after this many seconds (0 = no limit)")
	flag.Parse()

	if *help {
		fmt.Println("Metropolis Raytracer")
		fmt.Println("Usage: metropolis-raytracer [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("Available scenes:")
		fmt.Println("  cornell - Cornell box with a diffuse and a mirror sphere")
		fmt.Println("  box     - Minimal single-light scene, fast to render")
		fmt.Println()
		fmt.Println("Output will be saved to output/<scene_type>/render_<timestamp>.png")
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(*sceneType, *width, *height, *spp, *workers, cfg, logger); err != nil {
		logger.Error("render failed", "error", err)
		os.Exit(1)
	}
}

func run(sceneType string, width, height, spp, workers int, cfg *metropolis.Config, logger *slog.Logger) error {
	var selectedScene *scene.Scene
	aspect := float64(width) / float64(height)

	switch sceneType {
	case "cornell":
		selectedScene = scene.NewCornellScene(aspect)
	case "box":
		selectedScene = scene.NewBoxScene(aspect)
	default:
		return fmt.Errorf("unknown scene type %q", sceneType)
	}
	logger.Info("starting render", "scene", sceneType, "size", fmt.Sprintf("%dx%d", width, height), "spp", spp)

	outputDir := filepath.Join("output", sceneType)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tracer := path.NewTracer(selectedScene)
	baseSampler := core.NewRandomSampler(rand.New(rand.NewSource(time.Now().UnixNano())))
	renderer, err := metropolis.NewRenderer(tracer, tracer, baseSampler, cfg, width, height, spp, metropolis.NewDefaultLogger())
	if err != nil {
		return err
	}

	// Ctrl-C cancels the render instead of killing it mid-write
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := renderer.Render(ctx, metropolis.RenderOptions{
		NumWorkers: workers,
		OnUnitComplete: func(p metropolis.UnitProgress) {
			logger.Info("work unit merged", "unit", p.UnitID, "done", p.UnitsDone, "total", p.TotalUnits,
				"acceptance", fmt.Sprintf("%.2f%%", 100*p.Stats.AcceptanceRate()))
		},
	})
	if err != nil {
		return err
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(outputDir, fmt.Sprintf("render_%s.png", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, result.Image); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}

	logger.Info("render saved", "file", filename, "duration", result.Stats.Duration)
	return nil
}
