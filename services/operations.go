package services

import (
	"context"
	"log"
	"sync"

	"caseflow-api/models"
)

// PhaseRequest carries the loaded job plus whatever the client sent along
// with the resume call.
type PhaseRequest struct {
	Job *models.BatchJob

	// MonitorComplete is the client's signal that it observed a terminal
	// poll response; the job's monitor token is revoked in response.
	MonitorComplete bool

	// ReportType narrows gen-*/fetch-* phases when the client asked for a
	// specific artifact.
	ReportType string
}

// PhaseResult is the tagged outcome a handler returns to the state machine.
type PhaseResult struct {
	Success       bool                   `json:"success"`
	NextOperation string                 `json:"-"`
	Ready         bool                   `json:"ready"`
	MonitorToken  string                 `json:"monitor_token,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

// PhaseHandler runs one resumable phase of a job.
//
// Contract: a handler must be safe to re-run from its start. The operation
// marker is only advanced after the handler returns, so a crash mid-phase
// replays the whole phase on the next resume; handlers must not leave
// partial, observable side effects outside their own transactions.
type PhaseHandler func(ctx context.Context, req *PhaseRequest) (*PhaseResult, error)

// OperationRegistry maps operation markers to handlers and dispatches resume
// calls. Phase transitions are linearizable per job: a per-job mutex ensures
// no two phases are in flight simultaneously for the same job, while
// different jobs proceed fully in parallel.
type OperationRegistry struct {
	jobs     JobStore
	handlers map[string]PhaseHandler

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewOperationRegistry(jobs JobStore) *OperationRegistry {
	return &OperationRegistry{
		jobs:     jobs,
		handlers: make(map[string]PhaseHandler),
		locks:    make(map[uint]*sync.Mutex),
	}
}

func (r *OperationRegistry) Register(operation string, handler PhaseHandler) {
	r.handlers[operation] = handler
}

func (r *OperationRegistry) jobLock(jobID uint) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[jobID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[jobID] = l
	}
	return l
}

// Resume loads the job, dispatches to the handler its operation marker names,
// and persists the handler's phase transition before returning.
func (r *OperationRegistry) Resume(ctx context.Context, tenantID, jobID uint, req *PhaseRequest) (*PhaseResult, error) {
	lock := r.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := r.jobs.GetOwned(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}

	handler, ok := r.handlers[job.Operation]
	if !ok {
		// A marker no handler knows means the record is corrupted. Fail the
		// job and log the integrity anomaly; never retry automatically.
		log.Printf("integrity anomaly: job %d carries unknown operation %q", job.ID, job.Operation)
		if err := r.jobs.SetStatus(ctx, job.ID, models.BatchJobStatusFailed, ErrUnknownOperation); err != nil {
			log.Printf("failed to mark job %d failed: %v", job.ID, err)
		}
		return nil, ErrUnknownOperation
	}

	if req == nil {
		req = &PhaseRequest{}
	}
	req.Job = job

	result, err := handler(ctx, req)
	if err != nil {
		return nil, err
	}

	if result.NextOperation != "" && result.NextOperation != job.Operation {
		if err := r.jobs.SetOperation(ctx, job.ID, result.NextOperation); err != nil {
			return nil, err
		}
	}
	return result, nil
}
