package repository

import (
	"context"

	"github.com/vecindex/pkg/model"
)

// CatalogRepository defines index catalog operations.
type CatalogRepository interface {
	// SaveIndex inserts or updates the catalog row for an index.
	SaveIndex(ctx context.Context, info model.IndexInfo, path string) error

	// DeleteIndex removes the catalog row for name.
	DeleteIndex(ctx context.Context, name string) error

	// GetIndex retrieves the catalog row for name.
	GetIndex(ctx context.Context, name string) (*model.IndexInfo, error)

	// ListIndexes retrieves all catalog rows.
	ListIndexes(ctx context.Context) ([]model.IndexInfo, error)

	// UpdateCount updates the stored vector count for name.
	UpdateCount(ctx context.Context, name string, count int) error
}

// BuildTaskRepository defines the streaming build queue operations.
type BuildTaskRepository interface {
	// Enqueue inserts a new pending build task.
	Enqueue(ctx context.Context, task *model.BuildTask) error

	// GetPendingTasks retrieves up to limit pending tasks, oldest first.
	GetPendingTasks(ctx context.Context, limit int) ([]*model.BuildTask, error)

	// GetTaskByUUID retrieves a task by its UUID.
	GetTaskByUUID(ctx context.Context, uuid string) (*model.BuildTask, error)

	// ClaimTask transitions a task from pending to running. Returns false
	// when another worker already claimed it.
	ClaimTask(ctx context.Context, id int64) (bool, error)

	// MarkDone records a successful build and its result figures.
	MarkDone(ctx context.Context, id int64, numVectors, dimension, sampleUsed uint32) error

	// MarkFailed records a failed build with its cause.
	MarkFailed(ctx context.Context, id int64, info string) error
}
