package services

import (
	"context"
	"log"
	"sync"

	"caseflow-api/models"
)

// JobExecutor runs the resumable work a job's phase marker names.
type JobExecutor interface {
	Run(ctx context.Context, job *models.BatchJob) error
}

type jobWorker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// JobRunner owns one goroutine per running job. Resumption attaches to the
// live worker when one exists; otherwise the caller replays from the job's
// recorded phase by starting a fresh worker. Progress counters and phase
// transitions for a job are written only by its worker (or by drop/create
// under the uniqueness check), so cross-writer races cannot occur.
type JobRunner struct {
	jobs JobStore
	exec JobExecutor

	// OnFinished runs after a worker exits, whatever the outcome. Used for
	// the terminal-status notification hook.
	OnFinished func(jobID uint)

	mu      sync.Mutex
	workers map[uint]*jobWorker
}

func NewJobRunner(jobs JobStore, exec JobExecutor) *JobRunner {
	return &JobRunner{
		jobs:    jobs,
		exec:    exec,
		workers: make(map[uint]*jobWorker),
	}
}

// Running reports whether a worker is currently attached to the job.
func (r *JobRunner) Running(jobID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.workers[jobID]
	return ok
}

// AttachOrStart ensures a worker is driving the job. It returns true when a
// new worker was started, false when one was already attached.
func (r *JobRunner) AttachOrStart(job *models.BatchJob) bool {
	r.mu.Lock()
	if _, ok := r.workers[job.ID]; ok {
		r.mu.Unlock()
		return false
	}

	// Workers outlive the request that started them.
	ctx, cancel := context.WithCancel(context.Background())
	w := &jobWorker{cancel: cancel, done: make(chan struct{})}
	r.workers[job.ID] = w
	r.mu.Unlock()

	go r.run(ctx, job, w)
	return true
}

func (r *JobRunner) run(ctx context.Context, job *models.BatchJob, w *jobWorker) {
	defer func() {
		r.mu.Lock()
		delete(r.workers, job.ID)
		r.mu.Unlock()
		close(w.done)
		if r.OnFinished != nil {
			r.OnFinished(job.ID)
		}
	}()

	if err := r.exec.Run(ctx, job); err != nil {
		log.Printf("job %d worker stopped: %v", job.ID, err)
	}
}

// Cancel cooperatively stops the job's worker at its next chunk boundary and
// waits for it to let go of in-flight writes. No-op when nothing is running.
func (r *JobRunner) Cancel(jobID uint) {
	r.mu.Lock()
	w, ok := r.workers[jobID]
	r.mu.Unlock()
	if !ok {
		return
	}
	w.cancel()
	<-w.done
}
