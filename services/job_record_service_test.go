package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"caseflow-api/models"
)

var jobRowColumns = []string{
	"id", "tenant_id", "user_id", "job_type", "operation", "status",
	"records_to_process", "records_completed",
}

func runningJobRow(id int64, jobType string) []driver.Value {
	return []driver.Value{
		id, int64(7), int64(3), jobType, models.OpGenImportReport,
		models.BatchJobStatusRunning, int64(100), int64(40),
	}
}

func TestCreateJobConflictWhenJobAlreadyRunning(t *testing.T) {
	steps := []*sqlStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile(`SELECT GET_LOCK`),
			columns: []string{"status"},
			rows:    [][]driver.Value{{int64(1)}},
		},
		{
			// The uniqueness check must filter by job_type, not inspect the
			// newest active row of any type.
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM .batch_jobs. WHERE .*job_type"),
			columns: jobRowColumns,
			rows:    [][]driver.Value{runningJobRow(41, models.JobTypeBatchCaseImport)},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile(`SELECT RELEASE_LOCK`),
			columns: []string{"status"},
			rows:    [][]driver.Value{{int64(1)}},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewJobRecordService(db)
	_, err := svc.CreateJob(context.Background(), 7, 3, models.JobTypeBatchCaseImport, nil, 100)
	if !errors.Is(err, ErrJobConflict) {
		t.Fatalf("got error %v, want ErrJobConflict", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateJobConflictWhenLockBusy(t *testing.T) {
	steps := []*sqlStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile(`SELECT GET_LOCK`),
			columns: []string{"status"},
			rows:    [][]driver.Value{{int64(0)}},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewJobRecordService(db)
	_, err := svc.CreateJob(context.Background(), 7, 3, models.JobTypeBatchCaseImport, nil, 100)
	if !errors.Is(err, ErrJobConflict) {
		t.Fatalf("got error %v, want ErrJobConflict", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateJobInsertsWhenSlotFree(t *testing.T) {
	steps := []*sqlStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile(`SELECT GET_LOCK`),
			columns: []string{"status"},
			rows:    [][]driver.Value{{int64(1)}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM .batch_jobs. WHERE .*job_type"),
			columns: jobRowColumns,
			rows:    [][]driver.Value{},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO .batch_jobs."),
			result:  scriptedResult{lastInsertID: 42, rowsAffected: 1},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile(`SELECT RELEASE_LOCK`),
			columns: []string{"status"},
			rows:    [][]driver.Value{{int64(1)}},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewJobRecordService(db)
	job, err := svc.CreateJob(context.Background(), 7, 3, models.JobTypeBatchCaseImport, nil, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.ID != 42 {
		t.Fatalf("job ID = %d, want 42", job.ID)
	}
	if job.Status != models.BatchJobStatusScheduled {
		t.Fatalf("status = %q, want scheduled", job.Status)
	}
	if job.Operation != models.OpFetchColMap {
		t.Fatalf("operation = %q, want fetch-col-map", job.Operation)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestDropJobNotFoundWhenForeignTenant(t *testing.T) {
	steps := []*sqlStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE .batch_jobs."),
			result:  scriptedResult{rowsAffected: 0},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	svc := NewJobRecordService(db)
	err := svc.Drop(context.Background(), 99, 42)
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("got error %v, want ErrJobNotFound", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}
