package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/vecindex/pkg/errors"
	"github.com/vecindex/pkg/model"
)

// GormCatalogRepository implements CatalogRepository using GORM.
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository.
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// SaveIndex inserts or updates the catalog row for an index.
func (r *GormCatalogRepository) SaveIndex(ctx context.Context, info model.IndexInfo, path string) error {
	rec := IndexRecord{
		Name:            info.Name,
		Dimension:       info.Dimension,
		Metric:          info.Metric,
		MaxDegree:       info.MaxDegree,
		BuildComplexity: info.BuildComplexity,
		Alpha:           info.Alpha,
		Count:           info.Count,
		Path:            path,
		ReadOnly:        info.ReadOnly,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"dimension", "metric", "max_degree", "build_complexity",
				"alpha", "count", "path", "read_only", "updated_at",
			}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save index record: %w", err)
	}
	return nil
}

// DeleteIndex removes the catalog row for name.
func (r *GormCatalogRepository) DeleteIndex(ctx context.Context, name string) error {
	result := r.db.WithContext(ctx).Where("name = ?", name).Delete(&IndexRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete index record: %w", result.Error)
	}
	return nil
}

// GetIndex retrieves the catalog row for name.
func (r *GormCatalogRepository) GetIndex(ctx context.Context, name string) (*model.IndexInfo, error) {
	var rec IndexRecord
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "index %q not in catalog", name)
		}
		return nil, fmt.Errorf("failed to get index record: %w", err)
	}
	info := rec.ToModel()
	return &info, nil
}

// ListIndexes retrieves all catalog rows.
func (r *GormCatalogRepository) ListIndexes(ctx context.Context) ([]model.IndexInfo, error) {
	var recs []IndexRecord
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list index records: %w", err)
	}
	infos := make([]model.IndexInfo, len(recs))
	for i := range recs {
		infos[i] = recs[i].ToModel()
	}
	return infos, nil
}

// UpdateCount updates the stored vector count for name.
func (r *GormCatalogRepository) UpdateCount(ctx context.Context, name string, count int) error {
	result := r.db.WithContext(ctx).
		Model(&IndexRecord{}).
		Where("name = ?", name).
		Update("count", count)
	if result.Error != nil {
		return fmt.Errorf("failed to update index count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "index %q not in catalog", name)
	}
	return nil
}

// GormBuildTaskRepository implements BuildTaskRepository using GORM.
type GormBuildTaskRepository struct {
	db *gorm.DB
}

// NewGormBuildTaskRepository creates a new GormBuildTaskRepository.
func NewGormBuildTaskRepository(db *gorm.DB) *GormBuildTaskRepository {
	return &GormBuildTaskRepository{db: db}
}

// Enqueue inserts a new pending build task.
func (r *GormBuildTaskRepository) Enqueue(ctx context.Context, task *model.BuildTask) error {
	rec, err := FromBuildTask(task)
	if err != nil {
		return fmt.Errorf("failed to encode build task: %w", err)
	}
	rec.Status = model.BuildStatusPending
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to enqueue build task: %w", err)
	}
	task.ID = rec.ID
	task.Status = model.BuildStatusPending
	return nil
}

// GetPendingTasks retrieves up to limit pending tasks, oldest first.
func (r *GormBuildTaskRepository) GetPendingTasks(ctx context.Context, limit int) ([]*model.BuildTask, error) {
	var recs []BuildTaskRecord
	err := r.db.WithContext(ctx).
		Where("status = ?", model.BuildStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query pending build tasks: %w", err)
	}
	tasks := make([]*model.BuildTask, len(recs))
	for i := range recs {
		tasks[i] = recs[i].ToModel()
	}
	return tasks, nil
}

// GetTaskByUUID retrieves a task by its UUID.
func (r *GormBuildTaskRepository) GetTaskByUUID(ctx context.Context, uuid string) (*model.BuildTask, error) {
	var rec BuildTaskRecord
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "build task %q not found", uuid)
		}
		return nil, fmt.Errorf("failed to get build task: %w", err)
	}
	return rec.ToModel(), nil
}

// ClaimTask transitions a task from pending to running. The guarded
// update makes concurrent claims lose cleanly.
func (r *GormBuildTaskRepository) ClaimTask(ctx context.Context, id int64) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&BuildTaskRecord{}).
		Where("id = ? AND status = ?", id, model.BuildStatusPending).
		Updates(map[string]interface{}{
			"status":     model.BuildStatusRunning,
			"begin_time": &now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim build task: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkDone records a successful build and its result figures.
func (r *GormBuildTaskRepository) MarkDone(ctx context.Context, id int64, numVectors, dimension, sampleUsed uint32) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&BuildTaskRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.BuildStatusDone,
			"num_vectors": numVectors,
			"dimension":   dimension,
			"sample_used": sampleUsed,
			"end_time":    &now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark build task done: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "build task %d not found", id)
	}
	return nil
}

// MarkFailed records a failed build with its cause.
func (r *GormBuildTaskRepository) MarkFailed(ctx context.Context, id int64, info string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&BuildTaskRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.BuildStatusFailed,
			"status_info": info,
			"end_time":    &now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark build task failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "build task %d not found", id)
	}
	return nil
}
