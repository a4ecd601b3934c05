package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vecindex/internal/service"
	"github.com/vecindex/pkg/utils"
	"github.com/vecindex/pkg/writer"
)

var (
	// Build command flags
	buildInput      string
	buildOutput     string
	buildMetric     string
	buildMaxDegree  int
	buildComplexity int
	buildAlpha      float32
	buildSampleSize uint32
	buildReport     string
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a .diskann index from a binary vector corpus",
	Long: `Build an index from a flat binary corpus file laid out as
[u32 num_vectors][u32 dimension][f32 data], little-endian.

The build is two-pass and streaming: a pilot graph is constructed over a
sample of the corpus, then the remaining vectors are linked in a single
pass against the pilot and a growing secondary graph. Both graphs keep
their vectors in memory; the output's vector segment is copied straight
from the input file.`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	binName := BinName()
	buildCmd.Example = `  # Build with default parameters
  ` + binName + ` build -i ./corpus.bin -o ./corpus.diskann

  # Inner-product index with custom graph parameters
  ` + binName + ` build -i ./corpus.bin -o ./corpus.diskann -m ip -R 64 -L 128 -a 1.3

  # Fix the pilot sample size and write a JSON build report
  ` + binName + ` build -i ./corpus.bin -o ./corpus.diskann --sample 20000 --report ./build.json`

	buildCmd.Flags().StringVarP(&buildInput, "input", "i", "", "Input corpus file (required)")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Output .diskann file (required)")
	buildCmd.MarkFlagRequired("input")
	buildCmd.MarkFlagRequired("output")

	buildCmd.Flags().StringVarP(&buildMetric, "metric", "m", "l2", "Distance metric: l2 or ip")
	buildCmd.Flags().IntVarP(&buildMaxDegree, "max-degree", "R", 32, "Max neighbors per node")
	buildCmd.Flags().IntVarP(&buildComplexity, "build-complexity", "L", 64, "Construction beam width")
	buildCmd.Flags().Float32VarP(&buildAlpha, "alpha", "a", 1.2, "Robust prune factor")
	buildCmd.Flags().Uint32Var(&buildSampleSize, "sample", 0, "Pilot sample size (0 = sqrt(N) clamped to [1000, N])")
	buildCmd.Flags().StringVar(&buildReport, "report", "", "Optional JSON build report path")
}

func runBuild(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	manager := service.New(nil, log)

	stopwatch := utils.NewStopwatch(nil, log)
	stopwatch.Start("build")
	result, err := manager.StreamingBuild(context.Background(), buildInput, buildOutput,
		buildMetric, buildMaxDegree, buildComplexity, buildAlpha, buildSampleSize)
	elapsed := stopwatch.Stop()
	if err != nil {
		return err
	}

	log.Info("built %s in %s", buildOutput, elapsed)
	fmt.Printf("num_vectors: %d\n", result.NumVectors)
	fmt.Printf("dimension:   %d\n", result.Dimension)
	fmt.Printf("sample_size: %d\n", result.SampleSize)

	if buildReport != "" {
		w := writer.NewPrettyJSONWriter[any]()
		report := map[string]interface{}{
			"input":       buildInput,
			"output":      buildOutput,
			"metric":      buildMetric,
			"max_degree":  buildMaxDegree,
			"complexity":  buildComplexity,
			"alpha":       buildAlpha,
			"num_vectors": result.NumVectors,
			"dimension":   result.Dimension,
			"sample_size": result.SampleSize,
			"elapsed":     elapsed.String(),
		}
		if err := w.WriteToFile(report, buildReport); err != nil {
			return err
		}
		log.Info("wrote build report to %s", buildReport)
	}
	return nil
}
