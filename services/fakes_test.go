package services

import (
	"context"
	"fmt"
	"sync"

	"caseflow-api/models"
)

// fakeJobStore is an in-memory JobStore for exercising the state machine and
// runner without a database.
type fakeJobStore struct {
	mu     sync.Mutex
	nextID uint
	jobs   map[uint]*models.BatchJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{nextID: 1, jobs: make(map[uint]*models.BatchJob)}
}

func (f *fakeJobStore) put(job *models.BatchJob) *models.BatchJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.ID == 0 {
		job.ID = f.nextID
		f.nextID++
	}
	f.jobs[job.ID] = job
	return job
}

func (f *fakeJobStore) CreateJob(ctx context.Context, tenantID, userID uint, jobType string, fileID *int, recordCount int) (*models.BatchJob, error) {
	f.mu.Lock()
	for _, j := range f.jobs {
		if j.TenantID == tenantID && j.UserID == userID && j.JobType == jobType && j.IsActive() {
			f.mu.Unlock()
			return nil, ErrJobConflict
		}
	}
	f.mu.Unlock()
	job := &models.BatchJob{
		TenantID:         tenantID,
		UserID:           userID,
		JobType:          jobType,
		Operation:        models.OpFetchColMap,
		Status:           models.BatchJobStatusScheduled,
		FileID:           fileID,
		RecordsToProcess: recordCount,
	}
	return f.put(job), nil
}

func (f *fakeJobStore) GetRunning(ctx context.Context, tenantID, userID uint) (*models.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.TenantID == tenantID && j.UserID == userID && j.IsActive() {
			copied := *j
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeJobStore) GetRunningOfType(ctx context.Context, tenantID, userID uint, jobType string) (*models.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.TenantID == tenantID && j.UserID == userID && j.JobType == jobType && j.IsActive() {
			copied := *j
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeJobStore) GetOwned(ctx context.Context, tenantID, jobID uint) (*models.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok || j.TenantID != tenantID {
		return nil, ErrJobNotFound
	}
	copied := *j
	return &copied, nil
}

func (f *fakeJobStore) AddProgress(ctx context.Context, jobID uint, completedDelta int) error {
	if completedDelta <= 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	j.RecordsCompleted += completedDelta
	if j.RecordsCompleted > j.RecordsToProcess {
		j.RecordsCompleted = j.RecordsToProcess
	}
	return nil
}

func (f *fakeJobStore) AddResultCounts(ctx context.Context, jobID uint, created, updated, skipped, rejected int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	j.CreatedCount += created
	j.UpdatedCount += updated
	j.SkippedCount += skipped
	j.RejectedCount += rejected
	return nil
}

func (f *fakeJobStore) SetOperation(ctx context.Context, jobID uint, operation string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	j.Operation = operation
	return nil
}

func (f *fakeJobStore) SetStatus(ctx context.Context, jobID uint, status string, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	j.Status = status
	if cause != nil {
		msg := cause.Error()
		j.ErrorMessage = &msg
	}
	return nil
}

func (f *fakeJobStore) Drop(ctx context.Context, tenantID, jobID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok || j.TenantID != tenantID {
		return ErrJobNotFound
	}
	j.Status = models.BatchJobStatusDropped
	return nil
}

func (f *fakeJobStore) List(ctx context.Context, tenantID, userID uint) ([]models.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BatchJob
	for _, j := range f.jobs {
		if j.TenantID == tenantID && j.UserID == userID {
			out = append(out, *j)
		}
	}
	return out, nil
}

// fakePager serves staged pages from memory. Records with a non-pending
// status are invisible, mirroring the real pager's predicate.
type fakePager struct {
	mu      sync.Mutex
	records []models.StagingRecord
	fetches int
}

func (p *fakePager) FetchPage(ctx context.Context, jobID uint, afterID uint, limit int) ([]models.StagingRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches++
	var page []models.StagingRecord
	for _, rec := range p.records {
		if rec.JobID == jobID && rec.Status == models.StagingRecordStatusPending && rec.ID > afterID {
			page = append(page, rec)
			if len(page) == limit {
				break
			}
		}
	}
	return page, nil
}

func stagedRecords(jobID uint, n int) []models.StagingRecord {
	records := make([]models.StagingRecord, 0, n)
	for i := 0; i < n; i++ {
		rec := models.StagingRecord{
			ID:       uint(i + 1),
			TenantID: 7,
			JobID:    jobID,
			RowIndex: i + 1,
			Status:   models.StagingRecordStatusPending,
		}
		if err := rec.SetCells([]string{fmt.Sprintf("ref-%d", i+1), fmt.Sprintf("Case %d", i+1)}); err != nil {
			panic(err)
		}
		records = append(records, rec)
	}
	return records
}
