package convert

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Dispatcher drives a converter over a batch of jobs with a bounded worker
// pool. One failing job never aborts the batch; every job resolves to a
// Result and the results come back in input order.
type Dispatcher struct {
	converter Converter
	workers   int
	resultLog *ResultLog
}

// NewDispatcher builds a dispatcher. The caller picks the worker count:
// the local backend is serialized by the accelerator and should get 1,
// the remote backend is I/O-bound and tolerates more. resultLog may be
// nil when nothing should be persisted.
func NewDispatcher(converter Converter, workers int, resultLog *ResultLog) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{converter: converter, workers: workers, resultLog: resultLog}
}

// Dispatch runs all jobs and returns one Result per job, in job order.
// Each job gets its own timeout. Cancelling ctx lets in-flight jobs run to
// their deadline boundary; jobs not yet started resolve to a failure
// without touching the backend. There is no automatic retry: a backend
// failure may be content-specific, so retrying is the caller's call.
func (d *Dispatcher) Dispatch(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))

	pool := new(errgroup.Group)
	pool.SetLimit(d.workers)
	for i, job := range jobs {
		i, job := i, job
		pool.Go(func() error {
			results[i] = d.runJob(ctx, i, job)
			return nil
		})
	}
	_ = pool.Wait()
	return results
}

func (d *Dispatcher) runJob(ctx context.Context, index int, job Job) Result {
	res := Result{InputPath: job.InputPath}

	if err := ctx.Err(); err != nil {
		res.ErrKind = ErrKindBackend
		res.ErrMsg = "canceled before dispatch"
		d.record(index, res)
		return res
	}

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	out, err := d.converter.Convert(jobCtx, job.InputPath)
	switch {
	case err == nil:
		res.Markdown = out.Markdown
		res.Metadata = out.Metadata
		log.Info().
			Str("input", job.InputPath).
			Dur("took", time.Since(started)).
			Msg("conversion succeeded")
	case errors.Is(err, context.DeadlineExceeded) && jobCtx.Err() != nil && ctx.Err() == nil:
		res.ErrKind = ErrKindTimeout
		res.ErrMsg = "conversion timed out after " + timeout.String()
		log.Warn().
			Str("input", job.InputPath).
			Dur("timeout", timeout).
			Msg("conversion timed out")
	default:
		res.ErrKind = ErrKindBackend
		res.ErrMsg = err.Error()
		log.Warn().
			Str("input", job.InputPath).
			Err(err).
			Msg("conversion failed")
	}

	d.record(index, res)
	return res
}

// record appends to the result log; a log write failure is reported but
// never turns a finished job into a failure.
func (d *Dispatcher) record(index int, res Result) {
	if d.resultLog == nil {
		return
	}
	if err := d.resultLog.Append(index, res); err != nil {
		log.Warn().Str("input", res.InputPath).Err(err).Msg("persist result failed")
	}
}
