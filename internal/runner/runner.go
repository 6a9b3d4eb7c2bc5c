package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/prefpack/prefpack/internal/metrics"
	"github.com/prefpack/prefpack/pkg/models"
)

// TokenizeFunc converts one example into a tokenized pair.
type TokenizeFunc func(models.PairExample) (models.TokenizedPair, error)

type indexedExample struct {
	idx int
	ex  models.PairExample
}

type indexedPair struct {
	idx  int
	pair models.TokenizedPair
}

// chunkResult carries one processed chunk, or the error that aborted a worker.
type chunkResult struct {
	items []indexedPair
	err   error
}

// Runner fans a tokenize function out over a fixed worker pool. Input is
// chunked onto a bounded task queue; workers share no mutable state and
// communicate only through channels. Output order is restored by sorting on
// carried indices once all workers have finished, so the returned slice is
// index-aligned with the input.
type Runner struct {
	workers   int
	chunkSize int
	mode      string
	logger    *slog.Logger
	metrics   *metrics.Collector
}

// New creates a runner with the given pool size and chunk size.
func New(workers, chunkSize int, mode string, logger *slog.Logger, collector *metrics.Collector) *Runner {
	if workers < 1 {
		workers = 1
	}
	if chunkSize < 1 {
		chunkSize = workers
	}
	return &Runner{
		workers:   workers,
		chunkSize: chunkSize,
		mode:      mode,
		logger:    logger,
		metrics:   collector,
	}
}

// Run tokenizes every example and returns the results in input order.
// A failing example aborts the whole run: the first error cancels the
// remaining work and is propagated, the runner never waits for a completion
// signal that cannot arrive.
func (r *Runner) Run(ctx context.Context, examples []models.PairExample, fn TokenizeFunc) ([]models.TokenizedPair, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("no examples to tokenize")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan []indexedExample, r.workers)
	results := make(chan chunkResult, r.workers)

	r.logger.Info("Tokenizing dataset",
		"examples", len(examples),
		"workers", r.workers,
		"chunk_size", r.chunkSize)
	r.metrics.SetActiveWorkers(r.workers)
	defer r.metrics.SetActiveWorkers(0)

	// Producer: split the (index, example) stream into chunks.
	go func() {
		defer close(tasks)
		for start := 0; start < len(examples); start += r.chunkSize {
			end := min(start+r.chunkSize, len(examples))
			chunk := make([]indexedExample, 0, end-start)
			for i := start; i < end; i++ {
				chunk = append(chunk, indexedExample{idx: i, ex: examples[i]})
			}
			select {
			case tasks <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(r.workers)
	for w := 0; w < r.workers; w++ {
		go r.worker(ctx, w, tasks, results, fn, &wg)
	}

	// Close the result stream once every worker has exited.
	go func() {
		wg.Wait()
		close(results)
	}()

	bar := progressbar.Default(int64(len(examples)), "Tokenizing dataset")

	collected := make([]indexedPair, 0, len(examples))
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
				cancel()
			}
			continue
		}
		collected = append(collected, res.items...)
		_ = bar.Add(len(res.items))
	}

	if firstErr != nil {
		return nil, fmt.Errorf("tokenization failed: %w", firstErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(collected) != len(examples) {
		return nil, fmt.Errorf("tokenization incomplete: got %d of %d results", len(collected), len(examples))
	}

	// Single ordering-repair point: downstream grouping assumes the output
	// sequence is index-aligned with the input.
	sort.Slice(collected, func(i, j int) bool { return collected[i].idx < collected[j].idx })

	pairs := make([]models.TokenizedPair, len(collected))
	for i, item := range collected {
		if item.idx != i {
			return nil, fmt.Errorf("tokenization produced duplicate result for example %d", item.idx)
		}
		pairs[i] = item.pair
	}
	return pairs, nil
}

func (r *Runner) worker(
	ctx context.Context,
	workerID int,
	tasks <-chan []indexedExample,
	results chan<- chunkResult,
	fn TokenizeFunc,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	workerLogger := r.logger.With("worker_id", workerID)
	workerLogger.Debug("Worker started")

	for chunk := range tasks {
		select {
		case <-ctx.Done():
			workerLogger.Debug("Worker cancelled")
			return
		default:
		}

		items := make([]indexedPair, 0, len(chunk))
		for _, task := range chunk {
			start := time.Now()
			pair, err := fn(task.ex)
			r.metrics.RecordTokenize(r.mode, time.Since(start), err == nil)
			if err != nil {
				workerLogger.Error("Tokenization failed", "example", task.idx, "error", err)
				results <- chunkResult{err: fmt.Errorf("example %d: %w", task.idx, err)}
				return
			}
			items = append(items, indexedPair{idx: task.idx, pair: pair})
		}
		results <- chunkResult{items: items}
	}

	workerLogger.Debug("Worker finished")
}
