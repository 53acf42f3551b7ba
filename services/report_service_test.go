package services

import (
	"context"
	"errors"
	"testing"

	"caseflow-api/models"
)

func TestReportReady(t *testing.T) {
	scheduled := &models.BatchJob{Status: models.BatchJobStatusScheduled}
	running := &models.BatchJob{Status: models.BatchJobStatusRunning}
	failed := &models.BatchJob{Status: models.BatchJobStatusFailed}
	completed := &models.BatchJob{Status: models.BatchJobStatusCompleted}

	if !reportReady(scheduled, ReportTypeCSV) {
		t.Error("csv preview should not wait for the import to finish")
	}
	if reportReady(running, ReportTypeImport) {
		t.Error("import report should not be ready while the job is running")
	}
	if !reportReady(completed, ReportTypeImport) {
		t.Error("import report should be ready once the job completed")
	}
	if !reportReady(failed, ReportTypeImport) {
		t.Error("a failed job should still render its report")
	}
	if !reportReady(failed, ReportTypeRejection) {
		t.Error("rejection report should render for a failed job")
	}
}

func TestGenOperationForRejectsUnknownType(t *testing.T) {
	for _, rt := range []string{ReportTypeCSV, ReportTypeData, ReportTypeImport, ReportTypeRejection} {
		if _, err := genOperationFor(rt); err != nil {
			t.Errorf("report type %q: unexpected error %v", rt, err)
		}
	}
	if _, err := genOperationFor("pdf"); !errors.Is(err, ErrUnknownReportType) {
		t.Errorf("got error %v, want ErrUnknownReportType", err)
	}
}

func TestFetchOperationFor(t *testing.T) {
	cases := map[string]string{
		ReportTypeCSV:       models.OpFetchCSVReport,
		ReportTypeData:      models.OpFetchDataReport,
		ReportTypeImport:    models.OpFetchImportReport,
		ReportTypeRejection: models.OpFetchRejectReport,
	}
	for rt, want := range cases {
		if got := fetchOperationFor(rt); got != want {
			t.Errorf("fetchOperationFor(%q) = %q, want %q", rt, got, want)
		}
	}
}

func TestFetchReportPendingBeforeTerminal(t *testing.T) {
	jobs := newFakeJobStore()
	job := jobs.put(&models.BatchJob{
		TenantID:  7,
		UserID:    3,
		Operation: models.OpGenImportReport,
		Status:    models.BatchJobStatusRunning,
	})

	svc := &ReportService{jobs: jobs}
	_, err := svc.Fetch(context.Background(), 7, job.ID, ReportTypeImport)
	if !errors.Is(err, ErrReportPending) {
		t.Fatalf("got error %v, want ErrReportPending", err)
	}
}

func TestFetchReportForeignTenantLooksAbsent(t *testing.T) {
	jobs := newFakeJobStore()
	job := jobs.put(&models.BatchJob{
		TenantID: 7,
		UserID:   3,
		Status:   models.BatchJobStatusCompleted,
	})

	svc := &ReportService{jobs: jobs}
	_, err := svc.Fetch(context.Background(), 99, job.ID, ReportTypeImport)
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("got error %v, want ErrJobNotFound", err)
	}
}

func TestImportSummaryReflectsJobCounters(t *testing.T) {
	job := &models.BatchJob{
		Status:           models.BatchJobStatusCompleted,
		RecordsToProcess: 120,
		RecordsCompleted: 120,
		CreatedCount:     80,
		UpdatedCount:     25,
		SkippedCount:     10,
		RejectedCount:    5,
	}

	svc := &ReportService{}
	payload := svc.importSummary(job)

	if payload["status"] != models.BatchJobStatusCompleted {
		t.Errorf("status = %v, want completed", payload["status"])
	}
	if payload["created"] != 80 || payload["rejected"] != 5 {
		t.Errorf("counters not carried through: %v", payload)
	}
	if payload["processed"] != 120 {
		t.Errorf("processed = %v, want 120", payload["processed"])
	}
}
