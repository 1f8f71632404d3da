package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Summary totals one batch run by terminal status.
type Summary struct {
	Total            int
	Found            int
	NoContactFound   int
	NoDomainResolved int
	SkippedDuplicate int
	Errors           int
	Elapsed          time.Duration
}

// RunBatch processes organizations concurrently, up to concurrency at
// a time. Each organization gets its own result row; a failure in one
// never cancels the others. Results come back in input order.
func (p *Processor) RunBatch(ctx context.Context, orgs []model.Organization, concurrency int) ([]*model.OutreachResult, Summary) {
	if concurrency <= 0 {
		concurrency = 4
	}
	start := time.Now()

	results := make([]*model.OutreachResult, len(orgs))
	var found, errored atomic.Int64
	var mu sync.Mutex
	counts := map[model.ResultStatus]int{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, org := range orgs {
		g.Go(func() error {
			res := p.Process(gctx, org)
			results[i] = res

			switch res.Status {
			case model.StatusFound:
				found.Add(1)
			case model.StatusError:
				errored.Add(1)
			}
			mu.Lock()
			counts[res.Status]++
			mu.Unlock()
			return nil // per-org failures stay in the result row
		})
	}
	_ = g.Wait()

	sum := Summary{
		Total:            len(orgs),
		Found:            counts[model.StatusFound],
		NoContactFound:   counts[model.StatusNoContactFound],
		NoDomainResolved: counts[model.StatusNoDomainResolved],
		SkippedDuplicate: counts[model.StatusSkippedDuplicate],
		Errors:           counts[model.StatusError],
		Elapsed:          time.Since(start),
	}
	p.log.Info("batch finished",
		zap.Int("total", sum.Total),
		zap.Int("found", sum.Found),
		zap.Int("no_contact", sum.NoContactFound),
		zap.Int("no_domain", sum.NoDomainResolved),
		zap.Int("skipped_duplicate", sum.SkippedDuplicate),
		zap.Int("errors", sum.Errors),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return results, sum
}
