// Package service exposes the control surface over the index registry:
// create/destroy, add/search, save/load, streaming builds, compaction
// and detached staging handles.
package service

import (
	"bytes"
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vecindex/internal/builder"
	"github.com/vecindex/internal/compact"
	"github.com/vecindex/internal/diskindex"
	"github.com/vecindex/internal/format"
	"github.com/vecindex/internal/index"
	"github.com/vecindex/internal/registry"
	"github.com/vecindex/internal/repository"
	"github.com/vecindex/pkg/config"
	"github.com/vecindex/pkg/errors"
	"github.com/vecindex/pkg/model"
	"github.com/vecindex/pkg/utils"
)

const tracerName = "vecindex"

// Manager drives all index operations. The catalog repositories are
// optional; when absent the registry alone is authoritative.
type Manager struct {
	cfg      *config.Config
	registry *registry.Registry
	repos    *repository.Repositories
	logger   utils.Logger
}

// New creates a Manager over a fresh registry.
func New(cfg *config.Config, logger utils.Logger) *Manager {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Manager{
		cfg:      cfg,
		registry: registry.New(),
		logger:   logger,
	}
}

// WithRepositories attaches the catalog database.
func (m *Manager) WithRepositories(repos *repository.Repositories) *Manager {
	m.repos = repos
	return m
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// graphConfig builds a GraphConfig from explicit parameters, falling
// back to configured defaults for unset values.
func (m *Manager) graphConfig(maxDegree, buildComplexity int, alpha float32) index.GraphConfig {
	cfg := index.DefaultGraphConfig()
	if m.cfg != nil {
		cfg.MaxDegree = m.cfg.Index.MaxDegree
		cfg.DegreeSlack = m.cfg.Index.DegreeSlack
		cfg.BuildComplexity = m.cfg.Index.BuildComplexity
		cfg.Alpha = m.cfg.Index.Alpha
	}
	if maxDegree > 0 {
		cfg.MaxDegree = maxDegree
	}
	if buildComplexity > 0 {
		cfg.BuildComplexity = buildComplexity
	}
	if alpha > 0 {
		cfg.Alpha = alpha
	}
	return cfg
}

// CreateIndex creates an empty named in-memory index.
func (m *Manager) CreateIndex(ctx context.Context, name string, dim int, metricName string, maxDegree, buildComplexity int, alpha float32) (model.IndexInfo, error) {
	metric, err := index.ParseMetric(metricName)
	if err != nil {
		return model.IndexInfo{}, err
	}
	cfg := m.graphConfig(maxDegree, buildComplexity, alpha)
	ix, err := index.New(name, dim, metric, cfg, m.logger)
	if err != nil {
		return model.IndexInfo{}, err
	}
	if err := m.registry.Create(name, ix); err != nil {
		return model.IndexInfo{}, err
	}
	info := instanceInfo(name, ix)
	m.catalogSave(ctx, info, "")
	m.logger.Info("created index %q (dim=%d, metric=%s, R=%d, L=%d)",
		name, dim, metric, cfg.MaxDegree, cfg.BuildComplexity)
	return info, nil
}

// DestroyIndex removes the binding for name. A disk-backed instance is
// closed (unmapped) as soon as the binding is removed, even if other
// holders still reference it.
func (m *Manager) DestroyIndex(ctx context.Context, name string) error {
	inst, err := m.registry.Get(name)
	if err != nil {
		return err
	}
	if err := m.registry.Destroy(name); err != nil {
		return err
	}
	if di, ok := inst.(*diskindex.Index); ok {
		if err := di.Close(); err != nil {
			m.logger.Warn("failed to unmap index %q: %v", name, err)
		}
	}
	m.catalogDelete(ctx, name)
	m.logger.Info("destroyed index %q", name)
	return nil
}

// Add inserts a vector into the named index and returns its label.
func (m *Manager) Add(ctx context.Context, name string, vec []float32) (uint32, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "index.add")
	defer span.End()
	span.SetAttributes(attribute.String("index.name", name))

	inst, err := m.registry.Get(name)
	if err != nil {
		return 0, err
	}
	label, err := inst.Add(vec)
	if err != nil {
		return 0, err
	}
	m.catalogCount(ctx, name, inst.Count())
	return label, nil
}

// AddBatch inserts vectors concurrently on the shared worker pool.
func (m *Manager) AddBatch(ctx context.Context, name string, vectors [][]float32) ([]uint32, error) {
	inst, err := m.registry.Get(name)
	if err != nil {
		return nil, err
	}
	ix, ok := inst.(*index.Index)
	if !ok {
		return nil, errors.Newf(errors.CodeReadOnly, "index %q is read-only", name)
	}
	labels, err := ix.AddBatch(vectors)
	if err != nil {
		return nil, err
	}
	m.catalogCount(ctx, name, ix.Count())
	return labels, nil
}

// Search returns up to k nearest neighbors from the named index.
func (m *Manager) Search(ctx context.Context, name string, query []float32, k, beam int) ([]index.Neighbor, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "index.search")
	defer span.End()
	span.SetAttributes(attribute.String("index.name", name), attribute.Int("search.k", k))
	_ = ctx

	inst, err := m.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return inst.Search(query, k, beam)
}

// Save writes the named index to a .diskann file. Fails on read-only
// instances.
func (m *Manager) Save(ctx context.Context, name, path string) error {
	inst, err := m.registry.Get(name)
	if err != nil {
		return err
	}
	if inst.ReadOnly() {
		return errors.Newf(errors.CodeReadOnly, "index %q is read-only", name)
	}
	src, ok := inst.(format.Source)
	if !ok {
		return errors.Newf(errors.CodeEngineInternal, "index %q cannot be serialized", name)
	}
	if err := format.WriteFile(path, src); err != nil {
		return err
	}
	m.catalogSave(ctx, instanceInfo(name, inst), path)
	m.logger.Info("saved index %q to %s (%d vectors)", name, path, inst.Count())
	return nil
}

// Load memory-maps a .diskann file as a read-only named index.
func (m *Manager) Load(ctx context.Context, name, path string, buildBeamOverride int) error {
	if m.registry.Exists(name) {
		return errors.Newf(errors.CodeAlreadyExists, "index %q already exists", name)
	}
	alpha := float32(1.2)
	if m.cfg != nil {
		alpha = m.cfg.Index.Alpha
	}
	di, err := diskindex.Open(path, buildBeamOverride, alpha)
	if err != nil {
		return err
	}
	if err := m.registry.Create(name, di); err != nil {
		_ = di.Close()
		return err
	}
	m.catalogSave(ctx, instanceInfo(name, di), path)
	m.logger.Info("loaded index %q from %s (%d vectors)", name, path, di.Count())
	return nil
}

// StreamingBuild runs the two-pass builder from a corpus file into a
// .diskann file without registering anything.
func (m *Manager) StreamingBuild(ctx context.Context, inputPath, outputPath, metricName string, maxDegree, buildComplexity int, alpha float32, sampleSize uint32) (*builder.Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "index.streaming_build")
	defer span.End()
	span.SetAttributes(attribute.String("build.input", inputPath))
	_ = ctx

	metric, err := index.ParseMetric(metricName)
	if err != nil {
		return nil, err
	}
	cfg := m.graphConfig(maxDegree, buildComplexity, alpha)
	return builder.Build(inputPath, outputPath, builder.Params{
		Metric:          metric,
		MaxDegree:       cfg.MaxDegree,
		BuildComplexity: cfg.BuildComplexity,
		Alpha:           cfg.Alpha,
		SampleSize:      sampleSize,
	}, m.logger)
}

// CompactIndex rebuilds the named index without the tombstoned labels,
// rebinds the name to the fresh instance and returns the old -> new
// label map. The previous instance stays valid for live borrowers.
func (m *Manager) CompactIndex(ctx context.Context, name string, tombstones []uint32) (map[uint32]uint32, error) {
	inst, err := m.registry.Get(name)
	if err != nil {
		return nil, err
	}
	ix, ok := inst.(*index.Index)
	if !ok {
		return nil, errors.Newf(errors.CodeReadOnly, "index %q is read-only; load it into memory before compacting", name)
	}
	dead := make(map[uint32]struct{}, len(tombstones))
	for _, t := range tombstones {
		dead[t] = struct{}{}
	}
	result, err := compact.Compact(ix, dead, m.logger)
	if err != nil {
		return nil, err
	}
	if err := m.registry.Replace(name, result.Index); err != nil {
		return nil, err
	}
	m.catalogCount(ctx, name, result.Index.Count())
	m.logger.Info("compacted index %q: %d -> %d vectors", name, ix.Count(), result.Index.Count())
	return result.LabelMap, nil
}

// List returns info records for every registered index, sorted by name.
func (m *Manager) List(ctx context.Context) []model.IndexInfo {
	names := m.registry.Names()
	infos := make([]model.IndexInfo, 0, len(names))
	for _, name := range names {
		inst, err := m.registry.Get(name)
		if err != nil {
			continue
		}
		infos = append(infos, instanceInfo(name, inst))
	}
	return infos
}

// Info returns the info record for one index.
func (m *Manager) Info(ctx context.Context, name string) (model.IndexInfo, error) {
	inst, err := m.registry.Get(name)
	if err != nil {
		return model.IndexInfo{}, err
	}
	return instanceInfo(name, inst), nil
}

// Exists reports whether name is registered.
func (m *Manager) Exists(name string) bool {
	return m.registry.Exists(name)
}

func instanceInfo(name string, inst registry.Instance) model.IndexInfo {
	return model.IndexInfo{
		Name:            name,
		Dimension:       inst.Dimension(),
		Count:           inst.Count(),
		Metric:          inst.Metric().String(),
		MaxDegree:       inst.MaxDegree(),
		BuildComplexity: inst.BuildComplexity(),
		Alpha:           inst.Alpha(),
		ReadOnly:        inst.ReadOnly(),
	}
}

// Catalog mirroring is best-effort: the registry stays authoritative
// when no database is attached or a write fails.

func (m *Manager) catalogSave(ctx context.Context, info model.IndexInfo, path string) {
	if m.repos == nil {
		return
	}
	if err := m.repos.Catalog.SaveIndex(ctx, info, path); err != nil {
		m.logger.Warn("catalog save for %q failed: %v", info.Name, err)
	}
}

func (m *Manager) catalogDelete(ctx context.Context, name string) {
	if m.repos == nil {
		return
	}
	if err := m.repos.Catalog.DeleteIndex(ctx, name); err != nil {
		m.logger.Warn("catalog delete for %q failed: %v", name, err)
	}
}

func (m *Manager) catalogCount(ctx context.Context, name string, count int) {
	if m.repos == nil {
		return
	}
	if err := m.repos.Catalog.UpdateCount(ctx, name, count); err != nil {
		m.logger.Debug("catalog count update for %q failed: %v", name, err)
	}
}

// Detached staging handles: anonymous in-memory indexes used to stage
// writes before committing a file. They never touch the registry.

// NewDetached creates an anonymous in-memory index.
func (m *Manager) NewDetached(dim int, metricName string, maxDegree, buildComplexity int, alpha float32) (*index.Index, error) {
	metric, err := index.ParseMetric(metricName)
	if err != nil {
		return nil, err
	}
	return index.NewDetached(dim, metric, m.graphConfig(maxDegree, buildComplexity, alpha))
}

// SerializeDetached encodes a detached index into .diskann bytes.
func (m *Manager) SerializeDetached(ix *index.Index) ([]byte, error) {
	var buf bytes.Buffer
	if err := format.Write(&buf, ix); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DeserializeDetached rebuilds a writable detached index from .diskann
// bytes. Alpha is not stored in the file and must be supplied.
func (m *Manager) DeserializeDetached(data []byte, alpha float32) (*index.Index, error) {
	img, err := format.Decode(data)
	if err != nil {
		return nil, err
	}
	cfg := m.graphConfig(int(img.Header.MaxDegree), int(img.Header.BuildComplexity), alpha)
	return index.Restore("", img.Header.Metric, cfg, int(img.Header.Dimension),
		img.Vectors, img.Adjacency, img.EntryPoints, m.logger)
}

// CompactDetached compacts a detached index and returns the fresh index
// with its label map.
func (m *Manager) CompactDetached(ix *index.Index, tombstones []uint32) (*index.Index, map[uint32]uint32, error) {
	dead := make(map[uint32]struct{}, len(tombstones))
	for _, t := range tombstones {
		dead[t] = struct{}{}
	}
	result, err := compact.Compact(ix, dead, m.logger)
	if err != nil {
		return nil, nil, err
	}
	return result.Index, result.LabelMap, nil
}
