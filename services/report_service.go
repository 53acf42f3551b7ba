package services

import (
	"context"
	"fmt"

	"caseflow-api/config"
	"caseflow-api/models"

	"gorm.io/gorm"
)

// Report types. Artifacts are derived and regenerable from the job row, the
// column map, and the staged upload; none of them is a source of truth.
const (
	ReportTypeCSV       = "csv"
	ReportTypeData      = "data"
	ReportTypeImport    = "import"
	ReportTypeRejection = "rejection"
)

const (
	reportPreviewRows   = 50
	reportDetailRows    = 1000
	reportSummarySample = 500
)

// GenerateResult tells the client whether the artifact is available now or
// must be polled for with the returned monitor token.
type GenerateResult struct {
	Ready        bool                   `json:"ready"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	MonitorToken string                 `json:"monitor_token,omitempty"`
}

type ReportService struct {
	db      *gorm.DB
	jobs    JobStore
	tokens  *MonitorTokenService
	runner  *JobRunner
	mapping *ColumnMappingService
}

func NewReportService(db *gorm.DB, jobs JobStore, tokens *MonitorTokenService, runner *JobRunner, mapping *ColumnMappingService) *ReportService {
	if db == nil {
		db = config.DB
	}
	return &ReportService{db: db, jobs: jobs, tokens: tokens, runner: runner, mapping: mapping}
}

// genOperationFor returns the resumable phase marker for a report type.
func genOperationFor(reportType string) (string, error) {
	switch reportType {
	case ReportTypeCSV:
		return models.OpGenCSVReport, nil
	case ReportTypeData:
		return models.OpGenDataReport, nil
	case ReportTypeImport:
		return models.OpGenImportReport, nil
	case ReportTypeRejection:
		return models.OpGenRejectionReport, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownReportType, reportType)
}

func fetchOperationFor(reportType string) string {
	switch reportType {
	case ReportTypeCSV:
		return models.OpFetchCSVReport
	case ReportTypeData:
		return models.OpFetchDataReport
	case ReportTypeRejection:
		return models.OpFetchRejectReport
	default:
		return models.OpFetchImportReport
	}
}

// reportReady reports whether the artifact can be rendered right now. The
// pre-mapping CSV preview needs only the staged upload; everything else
// waits for the backing work to reach a terminal status. A failed job still
// renders: clients polling a failure get the detail, not an error.
func reportReady(job *models.BatchJob, reportType string) bool {
	if reportType == ReportTypeCSV {
		return true
	}
	return job.IsTerminal()
}

// Generate renders the artifact when the backing work already completed
// within this request's budget, or hands back a monitor token and makes sure
// a worker is driving the job.
func (s *ReportService) Generate(ctx context.Context, tenantID, userID, jobID uint, reportType string) (*GenerateResult, error) {
	if _, err := genOperationFor(reportType); err != nil {
		return nil, err
	}
	job, err := s.jobs.GetOwned(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}

	if reportReady(job, reportType) {
		payload, err := s.buildPayload(ctx, job, reportType)
		if err != nil {
			return nil, err
		}
		return &GenerateResult{Ready: true, Payload: payload}, nil
	}

	token, err := s.tokens.Issue(ctx, tenantID, userID, jobID, job.JobType)
	if err != nil {
		return nil, err
	}
	if job.Status == models.BatchJobStatusRunning {
		s.runner.AttachOrStart(job)
	}
	return &GenerateResult{Ready: false, MonitorToken: token}, nil
}

// Fetch returns the finished artifact. Idempotent; callable any number of
// times once ready. ErrReportPending until then.
func (s *ReportService) Fetch(ctx context.Context, tenantID, jobID uint, reportType string) (map[string]interface{}, error) {
	if _, err := genOperationFor(reportType); err != nil {
		return nil, err
	}
	job, err := s.jobs.GetOwned(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if !reportReady(job, reportType) {
		return nil, ErrReportPending
	}
	return s.buildPayload(ctx, job, reportType)
}

func (s *ReportService) buildPayload(ctx context.Context, job *models.BatchJob, reportType string) (map[string]interface{}, error) {
	switch reportType {
	case ReportTypeCSV:
		return s.csvPreview(ctx, job)
	case ReportTypeImport:
		return s.importSummary(job), nil
	case ReportTypeData:
		return s.dataSummary(ctx, job)
	case ReportTypeRejection:
		return s.rejectionDetail(ctx, job)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownReportType, reportType)
}

// csvPreview is the raw pre-mapping sample: the first rows of the staged
// upload exactly as parsed.
func (s *ReportService) csvPreview(ctx context.Context, job *models.BatchJob) (map[string]interface{}, error) {
	var records []models.StagingRecord
	err := s.db.WithContext(ctx).
		Where("job_id = ?", job.ID).
		Order("id ASC").
		Limit(reportPreviewRows).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		cells, err := rec.Cells()
		if err != nil {
			return nil, err
		}
		rows = append(rows, cells)
	}
	return map[string]interface{}{
		"report_type": ReportTypeCSV,
		"total_rows":  job.RecordsToProcess,
		"sample":      rows,
	}, nil
}

func (s *ReportService) importSummary(job *models.BatchJob) map[string]interface{} {
	return map[string]interface{}{
		"report_type": ReportTypeImport,
		"status":      job.Status,
		"total":       job.RecordsToProcess,
		"processed":   job.RecordsCompleted,
		"created":     job.CreatedCount,
		"updated":     job.UpdatedCount,
		"skipped":     job.SkippedCount,
		"rejected":    job.RejectedCount,
		"error":       job.ErrorMessage,
	}
}

// dataSummary is the post-import field-level view: per mapped field, how many
// sampled rows carried a value, plus the bad-data row count.
func (s *ReportService) dataSummary(ctx context.Context, job *models.BatchJob) (map[string]interface{}, error) {
	entries, err := s.mapping.CurrentMap(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	var records []models.StagingRecord
	err = s.db.WithContext(ctx).
		Where("job_id = ?", job.ID).
		Order("id ASC").
		Limit(reportSummarySample).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	type fieldStat struct {
		Field    string `json:"field"`
		Column   int    `json:"source_column"`
		Sampled  int    `json:"sampled"`
		NonEmpty int    `json:"non_empty"`
	}
	stats := make([]fieldStat, 0, len(entries))
	for _, entry := range entries {
		stat := fieldStat{Field: entry.TargetField, Column: entry.SourceColumn}
		for _, rec := range records {
			cells, err := rec.Cells()
			if err != nil {
				continue
			}
			stat.Sampled++
			if entry.SourceColumn >= 0 && entry.SourceColumn < len(cells) && cells[entry.SourceColumn] != "" {
				stat.NonEmpty++
			}
		}
		stats = append(stats, stat)
	}

	var badRows int64
	err = s.db.WithContext(ctx).Model(&models.StagingRecord{}).
		Where("job_id = ? AND status = ?", job.ID, models.StagingRecordStatusRejected).
		Count(&badRows).Error
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"report_type":   ReportTypeData,
		"fields":        stats,
		"bad_data_rows": badRows,
	}, nil
}

// rejectionDetail lists rows that failed validation with their per-row reason.
func (s *ReportService) rejectionDetail(ctx context.Context, job *models.BatchJob) (map[string]interface{}, error) {
	rows, err := s.RejectedRows(ctx, job.ID, reportDetailRows)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(rows))
	for _, rec := range rows {
		cells, err := rec.Cells()
		if err != nil {
			cells = nil
		}
		reason := ""
		if rec.RejectReason != nil {
			reason = *rec.RejectReason
		}
		out = append(out, map[string]interface{}{
			"row_index": rec.RowIndex,
			"reason":    reason,
			"cells":     cells,
		})
	}
	return map[string]interface{}{
		"report_type": ReportTypeRejection,
		"total":       job.RejectedCount,
		"rows":        out,
	}, nil
}

// RejectedRows loads rejected staging rows for detail rendering and the
// downloadable rejection workbook.
func (s *ReportService) RejectedRows(ctx context.Context, jobID uint, limit int) ([]models.StagingRecord, error) {
	var rows []models.StagingRecord
	q := s.db.WithContext(ctx).
		Where("job_id = ? AND status = ?", jobID, models.StagingRecordStatusRejected).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
