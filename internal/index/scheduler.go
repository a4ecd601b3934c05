package index

import (
	"context"
	"runtime"
	"sync"

	"github.com/vecindex/pkg/errors"
	"github.com/vecindex/pkg/parallel"
)

// The engine's insert/search surfaces are logically asynchronous but are
// exposed as blocking calls driven on a process-wide worker pool sized
// to available parallelism. The pool is initialized lazily and never
// leaks through the API.

type graphOp func()

var (
	schedOnce sync.Once
	schedPool *parallel.WorkerPool[graphOp, struct{}]
)

func scheduler() *parallel.WorkerPool[graphOp, struct{}] {
	schedOnce.Do(func() {
		cfg := parallel.DefaultPoolConfig().WithWorkers(runtime.NumCPU())
		schedPool = parallel.NewWorkerPool[graphOp, struct{}](cfg)
	})
	return schedPool
}

func execOp(_ context.Context, op graphOp) (struct{}, error) {
	op()
	return struct{}{}, nil
}

// runOnScheduler blocks until op has run on the shared pool.
func runOnScheduler(op graphOp) {
	scheduler().ExecuteFunc(context.Background(), []graphOp{op}, execOp)
}

// runBatch drives a set of graph operations concurrently on the shared
// pool and blocks until all complete.
func runBatch(ops []graphOp) {
	scheduler().ExecuteFunc(context.Background(), ops, execOp)
}

// AddBatch inserts vectors concurrently and returns the labels in input
// order. Vectors failing validation abort the batch before any label is
// assigned.
func (ix *Index) AddBatch(vectors [][]float32) ([]uint32, error) {
	for i, v := range vectors {
		if len(v) != ix.dim {
			return nil, errors.Newf(errors.CodeInvalidArgument,
				"vector %d: expected dimension %d, got %d", i, ix.dim, len(v))
		}
	}
	labels := make([]uint32, len(vectors))
	errs := make([]error, len(vectors))
	ops := make([]graphOp, len(vectors))
	for i := range vectors {
		i := i
		ops[i] = func() {
			label := ix.next.Add(1) - 1
			if err := ix.store.Set(label, vectors[i]); err != nil {
				errs[i] = err
				return
			}
			ix.ensureGraph().Insert(label, vectors[i])
			ix.adj.PutIfAbsent(label)
			labels[i] = label
		}
	}
	runBatch(ops)
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return labels, nil
}
