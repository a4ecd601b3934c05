package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vecindex/internal/builder"
	"github.com/vecindex/internal/storage"
	"github.com/vecindex/pkg/model"
	"github.com/vecindex/pkg/utils"
)

// StreamingBuilder runs one streaming build; satisfied by
// service.Manager.
type StreamingBuilder interface {
	StreamingBuild(ctx context.Context, inputPath, outputPath, metricName string, maxDegree, buildComplexity int, alpha float32, sampleSize uint32) (*builder.Result, error)
}

// Processor executes a claimed build task: download the corpus, run the
// streaming builder, upload the artifact.
type Processor struct {
	store   storage.Storage
	builder StreamingBuilder
	workDir string
	logger  utils.Logger
}

// NewProcessor creates a Processor. workDir holds per-task scratch
// directories; empty means the system temp dir.
func NewProcessor(store storage.Storage, b StreamingBuilder, workDir string, logger utils.Logger) *Processor {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Processor{
		store:   store,
		builder: b,
		workDir: workDir,
		logger:  logger,
	}
}

// Process runs one build task end to end.
func (p *Processor) Process(ctx context.Context, task *model.BuildTask) (*builder.Result, error) {
	scratch, err := os.MkdirTemp(p.workDir, "build-"+task.UUID+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	inputPath := filepath.Join(scratch, "corpus.bin")
	outputPath := filepath.Join(scratch, "index.diskann")

	if err := p.store.DownloadFile(ctx, task.InputKey, inputPath); err != nil {
		return nil, fmt.Errorf("failed to download corpus %s: %w", task.InputKey, err)
	}

	result, err := p.builder.StreamingBuild(ctx, inputPath, outputPath,
		task.Params.Metric, task.Params.MaxDegree, task.Params.BuildComplexity,
		task.Params.Alpha, task.Params.SampleSize)
	if err != nil {
		return nil, err
	}

	if err := p.store.UploadFile(ctx, task.OutputKey, outputPath); err != nil {
		return nil, fmt.Errorf("failed to upload index %s: %w", task.OutputKey, err)
	}
	return result, nil
}
