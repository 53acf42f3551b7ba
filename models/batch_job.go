package models

import (
	"time"

	"gorm.io/gorm"
)

// Job statuses. A job row is never physically deleted; dropped jobs stay for audit.
const (
	BatchJobStatusScheduled = "scheduled"
	BatchJobStatusRunning   = "running"
	BatchJobStatusCompleted = "completed"
	BatchJobStatusFailed    = "failed"
	BatchJobStatusDropped   = "dropped"
)

// Job types. At most one job of a given type may be running per (tenant, user).
const (
	JobTypeBatchCaseImport     = "batch-case-import"
	JobTypeMassInvitationOrder = "mass-invitation-order"
	JobTypeUsageStatAggregate  = "usage-stat-aggregation"
)

// Operation markers. The marker names the next resumable phase; see services.OperationRegistry.
const (
	OpFetchColMap        = "fetch-col-map"
	OpCompleteColMap     = "complete-col-map"
	OpGenCSVReport       = "gen-csv-report"
	OpGenDataReport      = "gen-data-report"
	OpGenImportReport    = "gen-import-report"
	OpGenRejectionReport = "gen-rejection-report"
	OpFetchCSVReport     = "fetch-csv-report"
	OpFetchDataReport    = "fetch-data-report"
	OpFetchImportReport  = "fetch-import-report"
	OpFetchRejectReport  = "fetch-rejection-report"
)

type BatchJob struct {
	ID       uint `json:"job_id" gorm:"primaryKey;autoIncrement"`
	TenantID uint `json:"tenant_id" gorm:"column:tenant_id;not null;index:idx_batch_jobs_owner"`
	UserID   uint `json:"user_id" gorm:"column:user_id;not null;index:idx_batch_jobs_owner"`

	JobType   string `json:"job_type" gorm:"type:varchar(64);not null"`
	Operation string `json:"operation" gorm:"type:varchar(64);not null;default:'fetch-col-map'"`
	Status    string `json:"status" gorm:"type:enum('scheduled','running','completed','failed','dropped');not null;default:'scheduled'"`

	FileID *int `json:"file_id,omitempty" gorm:"column:file_id"`

	RecordsToProcess int `json:"records_to_process" gorm:"column:records_to_process;not null;default:0"`
	RecordsCompleted int `json:"records_completed" gorm:"column:records_completed;not null;default:0"`

	CreatedCount  int `json:"created_count" gorm:"column:created_count;not null;default:0"`
	UpdatedCount  int `json:"updated_count" gorm:"column:updated_count;not null;default:0"`
	SkippedCount  int `json:"skipped_count" gorm:"column:skipped_count;not null;default:0"`
	RejectedCount int `json:"rejected_count" gorm:"column:rejected_count;not null;default:0"`

	ErrorMessage *string    `json:"error_message,omitempty" gorm:"type:text"`
	StartedAt    *time.Time `json:"started_at,omitempty" gorm:"column:started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" gorm:"column:finished_at"`

	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"column:deleted_at;index"`
}

func (BatchJob) TableName() string { return "batch_jobs" }

// Progress reports the completed fraction in [0,1].
func (j *BatchJob) Progress() float64 {
	if j.RecordsToProcess <= 0 {
		return 0
	}
	p := float64(j.RecordsCompleted) / float64(j.RecordsToProcess)
	if p > 1 {
		return 1
	}
	return p
}

// IsTerminal reports whether the job can no longer make progress.
func (j *BatchJob) IsTerminal() bool {
	switch j.Status {
	case BatchJobStatusCompleted, BatchJobStatusFailed, BatchJobStatusDropped:
		return true
	}
	return false
}

// IsActive reports whether the job blocks creation of another job of the same type.
func (j *BatchJob) IsActive() bool {
	return j.Status == BatchJobStatusScheduled || j.Status == BatchJobStatusRunning
}
