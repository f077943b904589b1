package jobs

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "memoflux",
	Name:      "jobs_total",
	Help:      "Processed jobs by type and outcome.",
}, []string{"type", "outcome"})

// Handler processes one claimed job. Returning nil marks it done.
type Handler func(ctx context.Context, job *Job) error

type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

// Retryable marks err as transient. Other handler errors fail the job at once.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retryableError{err: err}
}

func IsRetryable(err error) bool {
	var re retryableError
	return errors.As(err, &re)
}

type Worker struct {
	ID       string
	Repo     *Repo
	Interval time.Duration
	Log      zerolog.Logger

	handlers map[string]Handler
}

func NewWorker(repo *Repo, interval time.Duration, log zerolog.Logger) *Worker {
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	id := "worker-" + ulid.Make().String()
	return &Worker{
		ID:       id,
		Repo:     repo,
		Interval: interval,
		Log:      log.With().Str("worker", id).Logger(),
		handlers: map[string]Handler{},
	}
}

// Handle registers h for jobs of type typ.
func (w *Worker) Handle(typ string, h Handler) {
	if w.handlers == nil {
		w.handlers = map[string]Handler{}
	}
	w.handlers[typ] = h
}

// Run polls until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.Log.Info().Dur("interval", w.Interval).Msg("worker started")
	for {
		select {
		case <-ctx.Done():
			w.Log.Info().Msg("worker stopped")
			return nil
		case <-ticker.C:
			for {
				ok, err := w.RunOnce(ctx)
				if err != nil {
					w.Log.Error().Err(err).Msg("worker claim error")
				}
				if !ok || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// RunOnce claims and processes at most one due job. It reports whether a job was processed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.Repo.Claim(ctx, w.ID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.handle(ctx, job)
	return true, nil
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	log := w.Log.With().Uint64("job_id", job.ID).Str("type", job.Type).Str("memo_id", job.MemoID.String()).Logger()

	h, ok := w.handlers[job.Type]
	if !ok {
		log.Warn().Msg("unknown job type")
		w.finish(ctx, job, "failed", w.Repo.MarkFailed(ctx, job.ID, "unknown job type"))
		return
	}

	err := h(ctx, job)
	switch {
	case err == nil:
		w.finish(ctx, job, "done", w.Repo.MarkDone(ctx, job.ID))
	case IsRetryable(err):
		log.Warn().Err(err).Int("attempts", job.Attempts+1).Msg("job failed, will retry")
		w.retry(ctx, job, err.Error())
	default:
		log.Error().Err(err).Msg("job failed")
		w.finish(ctx, job, "failed", w.Repo.MarkFailed(ctx, job.ID, err.Error()))
	}
}

func (w *Worker) finish(ctx context.Context, job *Job, outcome string, err error) {
	jobsTotal.WithLabelValues(job.Type, outcome).Inc()
	if err != nil {
		w.Log.Error().Err(err).Uint64("job_id", job.ID).Msgf("mark job %s", outcome)
	}
}

func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		w.finish(ctx, job, "failed", w.Repo.MarkFailed(ctx, job.ID, errMsg))
		return
	}

	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	next := w.Repo.now().Add(time.Duration(sec) * time.Second)

	w.finish(ctx, job, "retry", w.Repo.RetryLater(ctx, job.ID, attempts, next, errMsg))
}
