// Package compact rebuilds a live in-memory index without its
// tombstoned labels. Compaction is not in-place: the old index stays
// valid until the caller releases it, and the emitted label map is the
// only way to translate caller-side references.
package compact

import (
	"github.com/vecindex/internal/index"
	"github.com/vecindex/pkg/errors"
	"github.com/vecindex/pkg/utils"
)

// Result holds the rebuilt index and the old -> new label map.
type Result struct {
	Index    *index.Index
	LabelMap map[uint32]uint32
}

// Compact builds a fresh index from src excluding the tombstoned
// labels. Kept vectors are re-inserted in old-label order, so new
// labels are dense and ordered like the survivors.
func Compact(src *index.Index, tombstones map[uint32]struct{}, logger utils.Logger) (*Result, error) {
	if src == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "source index is nil")
	}

	next := src.NextLabel()
	labelMap := make(map[uint32]uint32)
	kept := make([][]float32, 0, int(next)-len(tombstones))

	for old := uint32(0); old < next; old++ {
		if _, dead := tombstones[old]; dead {
			continue
		}
		vec, err := src.GetVector(old)
		if err != nil {
			// Labels without a live vector are skipped like tombstones.
			continue
		}
		labelMap[old] = uint32(len(kept))
		kept = append(kept, vec)
	}

	fresh, err := index.New(src.Name(), src.Dimension(), src.Metric(), src.Config(), logger)
	if err != nil {
		return nil, err
	}
	for i, vec := range kept {
		label, err := fresh.Add(vec)
		if err != nil {
			return nil, err
		}
		if int(label) != i {
			return nil, errors.Newf(errors.CodeEngineInternal,
				"compaction label drift: inserted %d, expected %d", label, i)
		}
	}
	return &Result{Index: fresh, LabelMap: labelMap}, nil
}
