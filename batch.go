package optz

import (
	"context"
	"errors"
	"sync"

	"github.com/zoobzio/metricz"
)

// Batch metrics, recorded on the pipeline's registry.
const (
	BatchTasksTotal    = metricz.Key("pipeline.batch.tasks.total")
	BatchWorkersMax    = metricz.Key("pipeline.batch.workers.max")
	BatchWorkersActive = metricz.Key("pipeline.batch.workers.active")
)

// BatchResult is the outcome of one input of OptimizeBatch.
type BatchResult struct {
	Index  int
	Result *Result
	Err    error
}

// OptimizeBatch runs Optimize over every input with at most workers runs in
// flight. Results are returned in input order. Runs are independent: one
// input failing its budget does not affect the others. Inputs still waiting
// for a worker when ctx is done report ctx's error.
func (p *Pipeline) OptimizeBatch(ctx context.Context, workers int, inputs []string) []BatchResult {
	if workers <= 0 {
		workers = 1
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.metrics.Gauge(BatchWorkersMax).Set(float64(workers))
	sem := make(chan struct{}, workers)
	results := make([]BatchResult, len(inputs))

	var wg sync.WaitGroup
	for i, code := range inputs {
		wg.Add(1)
		p.metrics.Counter(BatchTasksTotal).Inc()

		go func(i int, code string) {
			defer wg.Done()
			results[i].Index = i

			select {
			case sem <- struct{}{}:
				p.metrics.Gauge(BatchWorkersActive).Set(float64(len(sem)))
				defer func() {
					<-sem
					p.metrics.Gauge(BatchWorkersActive).Set(float64(len(sem)))
				}()
			case <-ctx.Done():
				err := ctx.Err()
				results[i].Err = &Error{
					Err:        err,
					Path:       []Name{p.name},
					InputBytes: len(code),
					Timeout:    errors.Is(err, context.DeadlineExceeded),
					Canceled:   errors.Is(err, context.Canceled),
					Timestamp:  p.getClock().Now(),
				}
				return
			}

			results[i].Result, results[i].Err = p.Optimize(ctx, code)
		}(i, code)
	}
	wg.Wait()
	return results
}
