package fetch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/gradebook/internal/alert"
)

// Operation is one member of a batch.
type Operation struct {
	Key      string
	Producer Producer
	Options  Options
}

// Success is a settled batch member that produced data.
type Success struct {
	Key  string
	Data any
}

// Failure is a settled batch member that failed, including soft failures.
type Failure struct {
	Key string
	Err error
}

// BatchResult partitions settled operations in input order.
type BatchResult struct {
	Successful []Success
	Failed     []Failure
}

// SoftFailure is implemented by results that carry an embedded error.
// A result whose FetchError returns non-nil counts as failed and is not kept
// in the cache.
type SoftFailure interface {
	FetchError() error
}

type settled struct {
	data any
	err  error
}

// BatchFetch runs every operation concurrently through FetchData with alerts
// suppressed and waits for all of them to settle. One failure never stops the
// others. When any member fails a single summary warning is raised.
func (o *Orchestrator) BatchFetch(ctx context.Context, ops []Operation) BatchResult {
	results := make([]settled, len(ops))

	var g errgroup.Group
	if o.batchLimit > 0 {
		g.SetLimit(o.batchLimit)
	}

	for i, op := range ops {
		g.Go(func() error {
			opts := op.Options
			opts.SuppressAlert = true

			v, err := o.FetchData(ctx, op.Key, op.Producer, opts)
			if err == nil {
				if sf, ok := v.(SoftFailure); ok {
					if err = sf.FetchError(); err != nil {
						o.cache.Delete(op.Key)
					}
				}
			}
			results[i] = settled{data: v, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var out BatchResult
	for i, r := range results {
		if r.err != nil {
			out.Failed = append(out.Failed, Failure{Key: ops[i].Key, Err: r.err})
			continue
		}
		out.Successful = append(out.Successful, Success{Key: ops[i].Key, Data: r.data})
	}

	if n := len(out.Failed); n > 0 {
		o.classifier.Notify(alert.TypeWarning, "Some data failed to load",
			fmt.Sprintf("%d of %d requests failed", n, len(ops)))
	}
	return out
}
