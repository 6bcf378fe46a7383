package pipeline

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// MultipleResult holds the outcome of a batch keyed by the requested URL.
type MultipleResult struct {
	Documents map[string]*Document
	Errors    map[string]error
}

// TransduceMultiple runs Transduce for every URL on a bounded worker pool.
// Per-URL failures land in Errors; only an invalid batch fails as a whole.
func (p *Pipeline) TransduceMultiple(ctx context.Context, urls []string, apiKey string) (*MultipleResult, error) {
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	if p.cfg.MaxURLs > 0 && len(urls) > p.cfg.MaxURLs {
		return nil, errors.Wrapf(ErrTooManyURLs, "got %d, maximum is %d", len(urls), p.cfg.MaxURLs)
	}
	if err := p.CheckKey(apiKey); err != nil {
		return nil, err
	}

	zap.S().Debugw("transducing multiple urls", "count", len(urls), "workers", p.cfg.MaxWorkers)

	result := &MultipleResult{
		Documents: make(map[string]*Document),
		Errors:    make(map[string]error),
	}

	wg := &sync.WaitGroup{}
	mu := &sync.Mutex{}
	jobs := make(chan string, len(urls))

	nWorkers := p.cfg.MaxWorkers
	if nWorkers > len(urls) {
		nWorkers = len(urls)
	}

	for w := 1; w <= nWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for u := range jobs {
				doc, err := p.Transduce(ctx, u, apiKey)

				mu.Lock()
				if err != nil {
					result.Errors[u] = err
					zap.S().Debugw("transduce failed", "worker_id", workerID, "url", u, "error", err)
				} else {
					result.Documents[u] = doc
				}
				mu.Unlock()
			}
		}(w)
	}

	for _, u := range urls {
		jobs <- u
	}
	close(jobs)
	wg.Wait()

	zap.S().Infow("completed multiple urls",
		"total", len(urls),
		"success", len(result.Documents),
		"errors", len(result.Errors))

	return result, nil
}
