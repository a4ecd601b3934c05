package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vecindex/internal/format"
)

var inspectInput string

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the header of a .diskann index file",
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&inspectInput, "input", "i", "", "Index .diskann file (required)")
	inspectCmd.MarkFlagRequired("input")
}

func runInspect(cmd *cobra.Command, args []string) error {
	f, err := os.Open(inspectInput)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, format.HeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	hdr, err := format.ParseHeader(buf)
	if err != nil {
		return err
	}

	st, err := f.Stat()
	if err != nil {
		return err
	}

	fmt.Printf("file:             %s\n", inspectInput)
	fmt.Printf("num_vectors:      %d\n", hdr.NumVectors)
	fmt.Printf("dimension:        %d\n", hdr.Dimension)
	fmt.Printf("metric:           %s\n", hdr.Metric)
	fmt.Printf("max_degree:       %d\n", hdr.MaxDegree)
	fmt.Printf("entry_points:     %d\n", hdr.NumEntryPoints)
	fmt.Printf("build_complexity: %d\n", hdr.BuildComplexity)
	fmt.Printf("file_size:        %d bytes (expected %d)\n", st.Size(), hdr.TotalFileSize())
	if st.Size() < int64(hdr.TotalFileSize()) {
		fmt.Println("warning: file is shorter than the header describes")
	}
	return nil
}
