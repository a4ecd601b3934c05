// Package repository provides the catalog database for the vecindex
// service: registered index metadata and the streaming build queue.
package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/vecindex/pkg/model"
)

// JSONField stores arbitrary JSON in a text/json column.
type JSONField []byte

// Value implements driver.Valuer.
func (j JSONField) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = []byte(v)
	default:
		return errors.New("unsupported type for JSONField")
	}
	return nil
}

// IndexRecord represents the index_catalog table.
type IndexRecord struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name            string    `gorm:"column:name;type:varchar(128);uniqueIndex"`
	Dimension       int       `gorm:"column:dimension"`
	Metric          string    `gorm:"column:metric;type:varchar(16)"`
	MaxDegree       int       `gorm:"column:max_degree"`
	BuildComplexity int       `gorm:"column:build_complexity"`
	Alpha           float32   `gorm:"column:alpha"`
	Count           int       `gorm:"column:count"`
	Path            string    `gorm:"column:path;type:varchar(512)"`
	ReadOnly        bool      `gorm:"column:read_only"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name for IndexRecord.
func (IndexRecord) TableName() string {
	return "index_catalog"
}

// ToModel converts IndexRecord to model.IndexInfo.
func (r *IndexRecord) ToModel() model.IndexInfo {
	return model.IndexInfo{
		Name:            r.Name,
		Dimension:       r.Dimension,
		Count:           r.Count,
		Metric:          r.Metric,
		MaxDegree:       r.MaxDegree,
		BuildComplexity: r.BuildComplexity,
		Alpha:           r.Alpha,
		ReadOnly:        r.ReadOnly,
	}
}

// BuildTaskRecord represents the build_tasks table.
type BuildTaskRecord struct {
	ID         int64             `gorm:"column:id;primaryKey;autoIncrement"`
	UUID       string            `gorm:"column:uuid;type:varchar(64);uniqueIndex"`
	InputKey   string            `gorm:"column:input_key;type:varchar(512)"`
	OutputKey  string            `gorm:"column:output_key;type:varchar(512)"`
	Params     JSONField         `gorm:"column:params;type:text"`
	Status     model.BuildStatus `gorm:"column:status;index"`
	StatusInfo string            `gorm:"column:status_info;type:text"`
	NumVectors uint32            `gorm:"column:num_vectors"`
	Dimension  uint32            `gorm:"column:dimension"`
	SampleUsed uint32            `gorm:"column:sample_used"`
	CreateTime time.Time         `gorm:"column:create_time;autoCreateTime"`
	BeginTime  *time.Time        `gorm:"column:begin_time"`
	EndTime    *time.Time        `gorm:"column:end_time"`
}

// TableName returns the table name for BuildTaskRecord.
func (BuildTaskRecord) TableName() string {
	return "build_tasks"
}

// ToModel converts BuildTaskRecord to model.BuildTask.
func (t *BuildTaskRecord) ToModel() *model.BuildTask {
	task := &model.BuildTask{
		ID:         t.ID,
		UUID:       t.UUID,
		InputKey:   t.InputKey,
		OutputKey:  t.OutputKey,
		Status:     t.Status,
		StatusInfo: t.StatusInfo,
		NumVectors: t.NumVectors,
		Dimension:  t.Dimension,
		SampleUsed: t.SampleUsed,
		CreateTime: t.CreateTime,
		BeginTime:  t.BeginTime,
		EndTime:    t.EndTime,
	}
	if t.Params != nil {
		_ = json.Unmarshal(t.Params, &task.Params)
	}
	return task
}

// FromBuildTask converts a model.BuildTask into its record form.
func FromBuildTask(task *model.BuildTask) (*BuildTaskRecord, error) {
	params, err := json.Marshal(task.Params)
	if err != nil {
		return nil, err
	}
	return &BuildTaskRecord{
		ID:         task.ID,
		UUID:       task.UUID,
		InputKey:   task.InputKey,
		OutputKey:  task.OutputKey,
		Params:     params,
		Status:     task.Status,
		StatusInfo: task.StatusInfo,
	}, nil
}
