package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vecindex/pkg/utils"
)

var (
	// Global flags
	verbose bool
	logger  utils.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "vecindex",
	Short: "A vector similarity index tool",
	Long: `vecindex builds and queries Vamana-style approximate nearest
neighbor indexes over flat binary vector corpora.

It supports two-pass streaming builds from flat binary corpora,
memory-mapped read-only querying of .diskann index files, and a service
daemon that processes queued builds.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	binName := BinName()
	rootCmd.Example = `  # Build an index from a binary corpus
  ` + binName + ` build -i ./corpus.bin -o ./corpus.diskann -m l2 -R 32 -L 64

  # Query an index file
  ` + binName + ` query -i ./corpus.diskann -q 0.1,0.4,0.2,0.9 -k 10

  # Inspect an index file header
  ` + binName + ` inspect -i ./corpus.diskann

  # Start the service daemon API
  ` + binName + ` serve -p 8080`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	return logger
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
