package services

import (
	"context"
	"errors"
	"testing"

	"caseflow-api/models"
)

func TestResumeDispatchesByOperationMarker(t *testing.T) {
	jobs := newFakeJobStore()
	job := jobs.put(&models.BatchJob{
		TenantID:  7,
		UserID:    3,
		Operation: models.OpFetchColMap,
		Status:    models.BatchJobStatusScheduled,
	})

	registry := NewOperationRegistry(jobs)
	called := 0
	registry.Register(models.OpFetchColMap, func(ctx context.Context, req *PhaseRequest) (*PhaseResult, error) {
		called++
		return &PhaseResult{Success: true, Ready: true}, nil
	})

	res, err := registry.Resume(context.Background(), 7, job.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || called != 1 {
		t.Fatalf("handler not invoked as expected (called=%d)", called)
	}
}

func TestResumeIsIdempotent(t *testing.T) {
	jobs := newFakeJobStore()
	job := jobs.put(&models.BatchJob{
		TenantID:         7,
		UserID:           3,
		Operation:        models.OpGenImportReport,
		Status:           models.BatchJobStatusRunning,
		RecordsToProcess: 100,
		RecordsCompleted: 60,
	})

	registry := NewOperationRegistry(jobs)
	registry.Register(models.OpGenImportReport, func(ctx context.Context, req *PhaseRequest) (*PhaseResult, error) {
		// Read-only phase: resolves when the counters say the work is done,
		// otherwise leaves everything untouched.
		return &PhaseResult{Success: true, Ready: false}, nil
	})

	for i := 0; i < 2; i++ {
		if _, err := registry.Resume(context.Background(), 7, job.ID, nil); err != nil {
			t.Fatalf("resume %d failed: %v", i+1, err)
		}
	}

	after, err := jobs.GetOwned(context.Background(), 7, job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.Operation != models.OpGenImportReport {
		t.Fatalf("operation changed to %q on repeated resume", after.Operation)
	}
	if after.RecordsCompleted != 60 {
		t.Fatalf("records_completed changed to %d on repeated resume", after.RecordsCompleted)
	}
}

func TestResumePersistsPhaseTransition(t *testing.T) {
	jobs := newFakeJobStore()
	job := jobs.put(&models.BatchJob{
		TenantID:  7,
		UserID:    3,
		Operation: models.OpGenImportReport,
		Status:    models.BatchJobStatusCompleted,
	})

	registry := NewOperationRegistry(jobs)
	registry.Register(models.OpGenImportReport, func(ctx context.Context, req *PhaseRequest) (*PhaseResult, error) {
		return &PhaseResult{Success: true, Ready: true, NextOperation: models.OpFetchImportReport}, nil
	})

	if _, err := registry.Resume(context.Background(), 7, job.ID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, _ := jobs.GetOwned(context.Background(), 7, job.ID)
	if after.Operation != models.OpFetchImportReport {
		t.Fatalf("operation = %q, want %q", after.Operation, models.OpFetchImportReport)
	}
}

func TestResumeUnknownOperationFailsJob(t *testing.T) {
	jobs := newFakeJobStore()
	job := jobs.put(&models.BatchJob{
		TenantID:  7,
		UserID:    3,
		Operation: "totally-bogus",
		Status:    models.BatchJobStatusRunning,
	})

	registry := NewOperationRegistry(jobs)

	_, err := registry.Resume(context.Background(), 7, job.ID, nil)
	if !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("got error %v, want ErrUnknownOperation", err)
	}

	after, _ := jobs.GetOwned(context.Background(), 7, job.ID)
	if after.Status != models.BatchJobStatusFailed {
		t.Fatalf("job status = %q, want failed", after.Status)
	}
}

func TestResumeForeignTenantLooksAbsent(t *testing.T) {
	jobs := newFakeJobStore()
	job := jobs.put(&models.BatchJob{
		TenantID:  7,
		UserID:    3,
		Operation: models.OpFetchColMap,
	})

	registry := NewOperationRegistry(jobs)
	registry.Register(models.OpFetchColMap, func(ctx context.Context, req *PhaseRequest) (*PhaseResult, error) {
		return &PhaseResult{Success: true}, nil
	})

	_, err := registry.Resume(context.Background(), 99, job.ID, nil)
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("got error %v, want ErrJobNotFound", err)
	}
}

func TestCreateJobRejectsSecondActiveJob(t *testing.T) {
	jobs := newFakeJobStore()
	ctx := context.Background()

	first, err := jobs.CreateJob(ctx, 7, 3, models.JobTypeBatchCaseImport, nil, 100)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if err := jobs.SetStatus(ctx, first.ID, models.BatchJobStatusRunning, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := jobs.CreateJob(ctx, 7, 3, models.JobTypeBatchCaseImport, nil, 100); !errors.Is(err, ErrJobConflict) {
		t.Fatalf("got error %v, want ErrJobConflict", err)
	}

	// A terminal job releases the slot.
	if err := jobs.SetStatus(ctx, first.ID, models.BatchJobStatusCompleted, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := jobs.CreateJob(ctx, 7, 3, models.JobTypeBatchCaseImport, nil, 100); err != nil {
		t.Fatalf("create after completion failed: %v", err)
	}
}

func TestCreateJobConflictsPerTypeWithMixedActiveJobs(t *testing.T) {
	jobs := newFakeJobStore()
	ctx := context.Background()

	imp, err := jobs.CreateJob(ctx, 7, 3, models.JobTypeBatchCaseImport, nil, 100)
	if err != nil {
		t.Fatalf("import create failed: %v", err)
	}
	if err := jobs.SetStatus(ctx, imp.ID, models.BatchJobStatusRunning, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A different type may run concurrently; it becomes the newest active row.
	inv, err := jobs.CreateJob(ctx, 7, 3, models.JobTypeMassInvitationOrder, nil, 100)
	if err != nil {
		t.Fatalf("invitation create failed: %v", err)
	}
	if err := jobs.SetStatus(ctx, inv.ID, models.BatchJobStatusRunning, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The older import job still holds its slot.
	if _, err := jobs.CreateJob(ctx, 7, 3, models.JobTypeBatchCaseImport, nil, 100); !errors.Is(err, ErrJobConflict) {
		t.Fatalf("got error %v, want ErrJobConflict", err)
	}
}
