package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"caseflow-api/config"
	"caseflow-api/models"
	"caseflow-api/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// chunkOutcome tallies one page of import work.
type chunkOutcome struct {
	created  int
	updated  int
	skipped  int
	rejected int
}

// ImportExecutor drives the chunked import for one job: it scans pending
// staging rows, applies the finalized column map, and upserts case profiles.
// Each chunk's row writes and status flips commit in a single transaction,
// so replaying an interrupted run picks up exactly the rows that were never
// committed — the executor as a whole is restartable from its beginning.
type ImportExecutor struct {
	db      *gorm.DB
	jobs    JobStore
	mapping *ColumnMappingService

	PageSize  int
	RecordCap int
}

func NewImportExecutor(db *gorm.DB, jobs JobStore, mapping *ColumnMappingService) *ImportExecutor {
	if db == nil {
		db = config.DB
	}
	return &ImportExecutor{db: db, jobs: jobs, mapping: mapping}
}

// Run executes (or resumes) the import for a running job and records the
// terminal transition. Cancellation is honored at chunk boundaries; a
// cancelled run leaves the job resumable with its partial progress intact.
func (e *ImportExecutor) Run(ctx context.Context, job *models.BatchJob) error {
	entries, err := e.mapping.CurrentMap(ctx, job.ID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		err := fmt.Errorf("job %d has no column map", job.ID)
		if serr := e.jobs.SetStatus(ctx, job.ID, models.BatchJobStatusFailed, err); serr != nil {
			log.Printf("failed to mark job %d failed: %v", job.ID, serr)
		}
		return err
	}

	fieldCols := make(map[string]int, len(entries))
	for _, entry := range entries {
		if _, seen := fieldCols[entry.TargetField]; !seen {
			fieldCols[entry.TargetField] = entry.SourceColumn
		}
	}

	scanner := &RecordScanner{
		Pager:     NewGormRecordPager(e.db),
		PageSize:  e.PageSize,
		RecordCap: e.RecordCap,
		OnProgress: func(ctx context.Context, processed int) error {
			return e.jobs.AddProgress(ctx, job.ID, processed)
		},
	}

	_, scanErr := scanner.Scan(ctx, job.ID, func(ctx context.Context, page []models.StagingRecord) (int, error) {
		outcome, err := e.processChunk(ctx, job, fieldCols, page)
		if err != nil {
			return 0, err
		}
		if err := e.jobs.AddResultCounts(ctx, job.ID,
			outcome.created, outcome.updated, outcome.skipped, outcome.rejected); err != nil {
			return 0, err
		}
		return outcome.created + outcome.updated + outcome.skipped + outcome.rejected, nil
	})

	switch {
	case scanErr == nil:
		if err := e.jobs.SetStatus(ctx, job.ID, models.BatchJobStatusCompleted, nil); err != nil {
			return err
		}
		return e.jobs.SetOperation(ctx, job.ID, models.OpFetchImportReport)
	case errors.Is(scanErr, context.Canceled) || errors.Is(scanErr, context.DeadlineExceeded):
		// Dropped or interrupted; partial progress stays for audit/resume.
		return scanErr
	case errors.Is(scanErr, ErrScanCircuitBreaker):
		if err := e.jobs.SetStatus(ctx, job.ID, models.BatchJobStatusFailed, scanErr); err != nil {
			log.Printf("failed to mark job %d failed: %v", job.ID, err)
		}
		return scanErr
	default:
		// Transient store errors stay untouched: the job keeps its phase and
		// the next client-initiated resume retries the step.
		return scanErr
	}
}

func (e *ImportExecutor) processChunk(ctx context.Context, job *models.BatchJob, fieldCols map[string]int, page []models.StagingRecord) (*chunkOutcome, error) {
	outcome := &chunkOutcome{}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range page {
			rec := &page[i]
			status, reason, err := e.importRecord(tx, job, fieldCols, rec)
			if err != nil {
				return err
			}
			updates := map[string]interface{}{"status": status}
			if reason != "" {
				updates["reject_reason"] = reason
			}
			if err := tx.Model(&models.StagingRecord{}).
				Where("id = ?", rec.ID).
				Updates(updates).Error; err != nil {
				return err
			}
			switch status {
			case models.StagingRecordStatusCreated:
				outcome.created++
			case models.StagingRecordStatusUpdated:
				outcome.updated++
			case models.StagingRecordStatusSkipped:
				outcome.skipped++
			case models.StagingRecordStatusRejected:
				outcome.rejected++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// importRecord maps one staged row onto a case profile. Rejections carry a
// per-row reason for the rejection report; they never abort the chunk.
func (e *ImportExecutor) importRecord(tx *gorm.DB, job *models.BatchJob, fieldCols map[string]int, rec *models.StagingRecord) (status, reason string, err error) {
	cells, err := rec.Cells()
	if err != nil {
		return models.StagingRecordStatusRejected, "unreadable row data", nil
	}

	cell := func(field string) string {
		col, ok := fieldCols[field]
		if !ok || col < 0 || col >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[col])
	}

	ref := cell(models.FieldExternalRef)
	if ref == "" {
		return models.StagingRecordStatusRejected, "missing external reference", nil
	}

	empty := true
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			empty = false
			break
		}
	}
	if empty {
		return models.StagingRecordStatusSkipped, "", nil
	}

	if job.JobType == models.JobTypeMassInvitationOrder {
		email := cell(models.FieldContactEmail)
		if !utils.ValidateEmail(email) {
			return models.StagingRecordStatusRejected, fmt.Sprintf("invalid contact email %q", email), nil
		}
	}

	profileStatus := models.CaseProfileStatusActive
	if job.JobType == models.JobTypeMassInvitationOrder {
		profileStatus = models.CaseProfileStatusInvited
	}
	if mapped := cell(models.FieldStatus); mapped != "" {
		profileStatus = mapped
	}

	profile := &models.CaseProfile{
		TenantID:    job.TenantID,
		ExternalRef: ref,
		DisplayName: cell(models.FieldDisplayName),
		Region:      cell(models.FieldRegion),
		Status:      profileStatus,
	}

	res := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "external_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "region", "status", "updated_at",
		}),
	}).Create(profile)
	if res.Error != nil {
		return "", "", res.Error
	}

	// MySQL reports 1 affected row for an insert and 2 for an upsert that
	// changed an existing row.
	if res.RowsAffected >= 2 {
		return models.StagingRecordStatusUpdated, "", nil
	}
	return models.StagingRecordStatusCreated, "", nil
}
