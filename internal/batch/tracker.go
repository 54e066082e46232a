// Package batch runs many clip analyses under one job with bounded
// concurrency and queryable progress. Job state lives in memory for
// fast polling and is mirrored to a store so progress survives a
// restart.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/internal/pipeline"
	"github.com/patchlib/clipsight/pkg/log"
)

type Analyzer interface {
	Analyze(ctx context.Context, ref analysis.ClipReference) (*analysis.AnalysisRecord, error)
}

// JobStore persists job snapshots. All methods must be safe for
// concurrent use.
type JobStore interface {
	SaveJob(ctx context.Context, job *Job) error
	LoadJob(ctx context.Context, jobID string) (*Job, error)
	DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type Tracker struct {
	analyzer Analyzer
	store    JobStore
	workers  int

	mu      sync.Mutex
	jobs    map[string]*Job
	cancels map[string]context.CancelFunc
}

func NewTracker(analyzer Analyzer, store JobStore, workers int) *Tracker {
	if workers <= 0 {
		workers = 1
	}
	return &Tracker{
		analyzer: analyzer,
		store:    store,
		workers:  workers,
		jobs:     make(map[string]*Job),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Submit registers a batch and starts processing it in the background.
// The returned job ID is valid for Progress and Cancel immediately.
func (t *Tracker) Submit(ctx context.Context, refs []analysis.ClipReference) (string, error) {
	if len(refs) == 0 {
		return "", analysis.NewFailure(analysis.FailInvalidInput, analysis.StageValidating,
			"batch contains no clips")
	}

	job := &Job{
		JobID:     uuid.NewString(),
		Status:    StatusStarted,
		Total:     len(refs),
		Results:   []analysis.AnalysisRecord{},
		Errors:    []analysis.FailureDescriptor{},
		StartedAt: time.Now().UTC(),
	}
	job.recalcProgress()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	t.mu.Lock()
	t.jobs[job.JobID] = job
	t.cancels[job.JobID] = cancel
	t.mu.Unlock()
	t.persist(job)

	go t.run(runCtx, job.JobID, refs)

	log.Info("batch %s submitted with %d clips", job.JobID, len(refs))
	return job.JobID, nil
}

func (t *Tracker) run(ctx context.Context, jobID string, refs []analysis.ClipReference) {
	t.update(jobID, func(job *Job) {
		if job.Status == StatusStarted {
			job.Status = StatusInProgress
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)

	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				t.recordFailure(jobID, ref, analysis.NewFailure(analysis.FailCancelled,
					analysis.StageQueued, "batch cancelled before clip started"))
				return nil
			}

			record, err := t.analyzer.Analyze(gctx, ref)
			if err != nil {
				t.recordFailure(jobID, ref, err)
				return nil
			}
			t.update(jobID, func(job *Job) {
				job.Completed++
				job.Results = append(job.Results, *record)
				job.recalcProgress()
			})
			return nil
		})
	}
	_ = g.Wait()

	now := time.Now().UTC()
	t.update(jobID, func(job *Job) {
		if !job.terminal() {
			job.Status = StatusCompleted
		}
		job.CompletedAt = &now
		job.recalcProgress()
	})

	t.mu.Lock()
	if cancel, ok := t.cancels[jobID]; ok {
		cancel()
		delete(t.cancels, jobID)
	}
	t.mu.Unlock()

	if job, _ := t.snapshot(jobID); job != nil {
		log.Info("batch %s finished: %d completed, %d failed of %d",
			jobID, job.Completed, job.Failed, job.Total)
	}
}

func (t *Tracker) recordFailure(jobID string, ref analysis.ClipReference, err error) {
	desc := pipeline.Describe(ref, err)
	t.update(jobID, func(job *Job) {
		job.Failed++
		job.Errors = append(job.Errors, desc)
		job.recalcProgress()
	})
	log.Warn("batch %s clip %s failed at %s: %s", jobID, ref.SourceURL, desc.Stage, desc.Reason)
}

// Progress returns a point-in-time snapshot of the job.
func (t *Tracker) Progress(ctx context.Context, jobID string) (*Job, error) {
	if job, ok := t.snapshot(jobID); ok {
		return job, nil
	}
	if t.store != nil {
		if job, err := t.store.LoadJob(ctx, jobID); err == nil && job != nil {
			return job, nil
		}
	}
	return nil, analysis.NewFailure(analysis.FailNotFound, analysis.StageValidating,
		"unknown job ID")
}

// Cancel stops a running batch. Clips already finished keep their
// results; clips not yet started are reported as cancelled.
func (t *Tracker) Cancel(jobID string) error {
	t.mu.Lock()
	job, ok := t.jobs[jobID]
	if !ok {
		t.mu.Unlock()
		return analysis.NewFailure(analysis.FailNotFound, analysis.StageValidating,
			"unknown job ID")
	}
	if job.terminal() {
		t.mu.Unlock()
		return nil
	}
	job.Status = StatusCancelled
	cancel := t.cancels[jobID]
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.persistByID(jobID)
	log.Info("batch %s cancelled", jobID)
	return nil
}

// PurgeExpired drops terminal jobs older than the TTL from memory and
// the store.
func (t *Tracker) PurgeExpired(ctx context.Context, ttl time.Duration) int {
	cutoff := time.Now().UTC().Add(-ttl)

	t.mu.Lock()
	removed := 0
	for id, job := range t.jobs {
		if job.terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(t.jobs, id)
			removed++
		}
	}
	t.mu.Unlock()

	if t.store != nil {
		if n, err := t.store.DeleteJobsBefore(ctx, cutoff); err != nil {
			log.Warn("job purge store pass failed: %v", err)
		} else if n > removed {
			removed = n
		}
	}
	if removed > 0 {
		log.Info("purged %d expired batch jobs", removed)
	}
	return removed
}

func (t *Tracker) update(jobID string, fn func(*Job)) {
	t.mu.Lock()
	job, ok := t.jobs[jobID]
	if ok {
		fn(job)
	}
	t.mu.Unlock()
	if ok {
		t.persistByID(jobID)
	}
}

func (t *Tracker) snapshot(jobID string) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[jobID]
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

func (t *Tracker) persistByID(jobID string) {
	if job, ok := t.snapshot(jobID); ok {
		t.persist(job)
	}
}

func (t *Tracker) persist(job *Job) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveJob(context.Background(), job); err != nil {
		log.Warn("job %s snapshot not persisted: %v", job.JobID, err)
	}
}
