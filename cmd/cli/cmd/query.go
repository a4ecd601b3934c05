package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vecindex/internal/diskindex"
)

var (
	// Query command flags
	queryInput  string
	queryVector string
	queryK      int
	queryBeam   int
	queryAlpha  float32
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a k-nearest-neighbor query against a .diskann file",
	Long: `Memory-map a .diskann index file read-only and run a single
k-nearest-neighbor query against it. The query vector is given as a
comma-separated list of floats and must match the index dimension.`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	binName := BinName()
	queryCmd.Example = `  # Top 10 neighbors under the index's own metric
  ` + binName + ` query -i ./corpus.diskann -q 0.1,0.4,0.2,0.9 -k 10

  # Wider beam for higher recall
  ` + binName + ` query -i ./corpus.diskann -q 0.1,0.4,0.2,0.9 -k 10 --beam 256`

	queryCmd.Flags().StringVarP(&queryInput, "input", "i", "", "Index .diskann file (required)")
	queryCmd.Flags().StringVarP(&queryVector, "query", "q", "", "Comma-separated query vector (required)")
	queryCmd.MarkFlagRequired("input")
	queryCmd.MarkFlagRequired("query")

	queryCmd.Flags().IntVarP(&queryK, "k", "k", 10, "Number of neighbors to return")
	queryCmd.Flags().IntVar(&queryBeam, "beam", 0, "Search beam width (0 = stored build complexity)")
	queryCmd.Flags().Float32Var(&queryAlpha, "alpha", 1.2, "Alpha recorded on the loaded handle")
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		vec = append(vec, float32(f))
	}
	return vec, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	vec, err := parseVector(queryVector)
	if err != nil {
		return err
	}

	ix, err := diskindex.Open(queryInput, queryBeam, queryAlpha)
	if err != nil {
		return err
	}
	defer ix.Close()

	log.Debug("opened %s: %d vectors, dim %d, metric %s",
		queryInput, ix.Count(), ix.Dimension(), ix.Metric())

	results, err := ix.Search(vec, queryK, queryBeam)
	if err != nil {
		return err
	}

	for i, r := range results {
		fmt.Printf("%3d. label=%d distance=%g\n", i+1, r.ID, r.Distance)
	}
	if len(results) == 0 {
		log.Info("no results")
	}
	return nil
}
