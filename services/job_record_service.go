package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caseflow-api/config"
	"caseflow-api/models"

	"gorm.io/gorm"
)

// JobStore is the persistence surface for batch jobs. The gorm-backed
// JobRecordService implements it; tests substitute in-memory fakes.
type JobStore interface {
	CreateJob(ctx context.Context, tenantID, userID uint, jobType string, fileID *int, recordCount int) (*models.BatchJob, error)
	GetRunning(ctx context.Context, tenantID, userID uint) (*models.BatchJob, error)
	GetRunningOfType(ctx context.Context, tenantID, userID uint, jobType string) (*models.BatchJob, error)
	GetOwned(ctx context.Context, tenantID, jobID uint) (*models.BatchJob, error)
	AddProgress(ctx context.Context, jobID uint, completedDelta int) error
	AddResultCounts(ctx context.Context, jobID uint, created, updated, skipped, rejected int) error
	SetOperation(ctx context.Context, jobID uint, operation string) error
	SetStatus(ctx context.Context, jobID uint, status string, cause error) error
	Drop(ctx context.Context, tenantID, jobID uint) error
	List(ctx context.Context, tenantID, userID uint) ([]models.BatchJob, error)
}

type JobRecordService struct {
	db *gorm.DB
}

func NewJobRecordService(db *gorm.DB) *JobRecordService {
	if db == nil {
		db = config.DB
	}
	return &JobRecordService{db: db}
}

// createLockName serializes the running-job uniqueness check per (tenant, user, type).
func createLockName(tenantID, userID uint, jobType string) string {
	return fmt.Sprintf("batch_job_create_%d_%d_%s", tenantID, userID, jobType)
}

// CreateJob inserts a scheduled job after verifying no other job of the same
// type is active for the owner. Check and insert run under a MySQL named lock
// so concurrent creates cannot both pass the check.
func (s *JobRecordService) CreateJob(ctx context.Context, tenantID, userID uint, jobType string, fileID *int, recordCount int) (*models.BatchJob, error) {
	lockName := createLockName(tenantID, userID, jobType)

	var ok int
	if err := s.db.WithContext(ctx).Raw("SELECT GET_LOCK(?, 5)", lockName).Scan(&ok).Error; err != nil {
		return nil, err
	}
	if ok != 1 {
		return nil, ErrJobConflict
	}
	defer func() {
		var released int
		_ = s.db.WithContext(ctx).Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released).Error
	}()

	running, err := s.GetRunningOfType(ctx, tenantID, userID, jobType)
	if err != nil {
		return nil, err
	}
	if running != nil {
		return nil, ErrJobConflict
	}

	job := &models.BatchJob{
		TenantID:         tenantID,
		UserID:           userID,
		JobType:          jobType,
		Operation:        models.OpFetchColMap,
		Status:           models.BatchJobStatusScheduled,
		FileID:           fileID,
		RecordsToProcess: recordCount,
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// GetRunning returns the owner's active job, or nil when there is none.
func (s *JobRecordService) GetRunning(ctx context.Context, tenantID, userID uint) (*models.BatchJob, error) {
	var job models.BatchJob
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND status IN ?", tenantID, userID,
			[]string{models.BatchJobStatusScheduled, models.BatchJobStatusRunning}).
		Order("id DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetRunningOfType returns the owner's active job of the given type, or nil.
// The uniqueness check must query per type: the owner may legitimately hold
// active jobs of several types at once.
func (s *JobRecordService) GetRunningOfType(ctx context.Context, tenantID, userID uint, jobType string) (*models.BatchJob, error) {
	var job models.BatchJob
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND job_type = ? AND status IN ?", tenantID, userID, jobType,
			[]string{models.BatchJobStatusScheduled, models.BatchJobStatusRunning}).
		Order("id DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *JobRecordService) GetOwned(ctx context.Context, tenantID, jobID uint) (*models.BatchJob, error) {
	var job models.BatchJob
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", jobID, tenantID).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// AddProgress advances the completed counter by delta, clamped to the total.
// The counter never decreases; calling with the same delta twice after a retry
// is the caller's concern (chunks flip row statuses in the same transaction).
func (s *JobRecordService) AddProgress(ctx context.Context, jobID uint, completedDelta int) error {
	if completedDelta <= 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.BatchJob{}).
		Where("id = ?", jobID).
		Update("records_completed",
			gorm.Expr("LEAST(records_completed + ?, records_to_process)", completedDelta)).Error
}

func (s *JobRecordService) AddResultCounts(ctx context.Context, jobID uint, created, updated, skipped, rejected int) error {
	updates := map[string]interface{}{}
	if created > 0 {
		updates["created_count"] = gorm.Expr("created_count + ?", created)
	}
	if updated > 0 {
		updates["updated_count"] = gorm.Expr("updated_count + ?", updated)
	}
	if skipped > 0 {
		updates["skipped_count"] = gorm.Expr("skipped_count + ?", skipped)
	}
	if rejected > 0 {
		updates["rejected_count"] = gorm.Expr("rejected_count + ?", rejected)
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.BatchJob{}).
		Where("id = ?", jobID).Updates(updates).Error
}

// SetOperation records the next resumable phase. Call it inside the same
// transaction as the work the phase represents (SetOperationTx) so a crash
// between the work and the marker re-runs the phase instead of skipping it;
// every phase handler must therefore be restartable from its beginning.
func (s *JobRecordService) SetOperation(ctx context.Context, jobID uint, operation string) error {
	return setOperationOn(s.db.WithContext(ctx), jobID, operation)
}

// SetOperationTx is the transactional variant of SetOperation.
func SetOperationTx(tx *gorm.DB, jobID uint, operation string) error {
	return setOperationOn(tx, jobID, operation)
}

func setOperationOn(db *gorm.DB, jobID uint, operation string) error {
	res := db.Model(&models.BatchJob{}).
		Where("id = ?", jobID).
		Update("operation", operation)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// RowsAffected is also 0 when the marker already holds this value,
		// which is fine for an idempotent re-run; verify the row exists.
		var count int64
		if err := db.Model(&models.BatchJob{}).Where("id = ?", jobID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrJobNotFound
		}
	}
	return nil
}

// SetStatus transitions the job's status, stamping start/finish times and
// recording a truncated failure reason when cause is non-nil.
func (s *JobRecordService) SetStatus(ctx context.Context, jobID uint, status string, cause error) error {
	now := time.Now()
	updates := map[string]interface{}{"status": status}

	switch status {
	case models.BatchJobStatusRunning:
		updates["started_at"] = now
	case models.BatchJobStatusCompleted, models.BatchJobStatusFailed, models.BatchJobStatusDropped:
		updates["finished_at"] = now
	}
	if cause != nil {
		msg := cause.Error()
		if len(msg) > 1000 {
			msg = fmt.Sprintf("%s...", msg[:997])
		}
		updates["error_message"] = msg
	}

	res := s.db.WithContext(ctx).Model(&models.BatchJob{}).
		Where("id = ?", jobID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Drop marks the job dropped. The row is retained for audit; only ownership
// by the caller's tenant allows the transition.
func (s *JobRecordService) Drop(ctx context.Context, tenantID, jobID uint) error {
	res := s.db.WithContext(ctx).Model(&models.BatchJob{}).
		Where("id = ? AND tenant_id = ?", jobID, tenantID).
		Updates(map[string]interface{}{
			"status":      models.BatchJobStatusDropped,
			"finished_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *JobRecordService) List(ctx context.Context, tenantID, userID uint) ([]models.BatchJob, error) {
	var jobs []models.BatchJob
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("id DESC").
		Limit(50).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
