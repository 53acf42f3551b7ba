package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"caseflow-api/config"
	"caseflow-api/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const stagingInsertBatch = 500

var ErrEmptyUpload = errors.New("uploaded file has no data rows")

type UploadService struct {
	db *gorm.DB
}

func NewUploadService(db *gorm.DB) *UploadService {
	if db == nil {
		db = config.DB
	}
	return &UploadService{db: db}
}

// StoreUpload records an uploaded file and captures its header row and data
// row count so CreateJob can size the job without re-reading the file.
func (s *UploadService) StoreUpload(ctx context.Context, tenantID, userID uint, originalName, storedPath string, size int64, mimeType string) (*models.FileUpload, error) {
	rows, err := readSpreadsheetRows(storedPath, mimeType)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrEmptyUpload
	}

	headerJSON, err := json.Marshal(rows[0])
	if err != nil {
		return nil, err
	}

	upload := &models.FileUpload{
		TenantID:     tenantID,
		OriginalName: originalName,
		StoredPath:   storedPath,
		FileSize:     size,
		MimeType:     mimeType,
		RowCount:     len(rows) - 1,
		HeaderRow:    string(headerJSON),
		UploadedBy:   userID,
		UploadedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(upload).Error; err != nil {
		return nil, err
	}
	return upload, nil
}

// GetUnassigned loads a tenant's file that no job has claimed yet.
func (s *UploadService) GetUnassigned(ctx context.Context, tenantID uint, fileID int) (*models.FileUpload, error) {
	var upload models.FileUpload
	err := s.db.WithContext(ctx).
		Where("file_id = ? AND tenant_id = ? AND job_id IS NULL AND delete_at IS NULL", fileID, tenantID).
		First(&upload).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// ListUnassigned lists files awaiting a job, newest first.
func (s *UploadService) ListUnassigned(ctx context.Context, tenantID uint) ([]models.FileUpload, error) {
	var uploads []models.FileUpload
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND job_id IS NULL AND delete_at IS NULL", tenantID).
		Order("file_id DESC").
		Find(&uploads).Error
	if err != nil {
		return nil, err
	}
	return uploads, nil
}

// StageForJob claims the upload for the job and copies its data rows into
// staging_records in bounded batches. Called once at job creation; staged
// rows are what the chunk scanner iterates.
func (s *UploadService) StageForJob(ctx context.Context, job *models.BatchJob, upload *models.FileUpload) error {
	rows, err := readSpreadsheetRows(upload.StoredPath, upload.MimeType)
	if err != nil {
		return err
	}
	if len(rows) < 2 {
		return ErrEmptyUpload
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.FileUpload{}).
			Where("file_id = ? AND job_id IS NULL", upload.FileID).
			Update("job_id", job.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrJobConflict
		}

		batch := make([]models.StagingRecord, 0, stagingInsertBatch)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			if err := tx.Create(&batch).Error; err != nil {
				return err
			}
			batch = batch[:0]
			return nil
		}

		for i := 1; i < len(rows); i++ {
			rec := models.StagingRecord{
				TenantID: job.TenantID,
				JobID:    job.ID,
				RowIndex: i,
				Status:   models.StagingRecordStatusPending,
			}
			if err := rec.SetCells(rows[i]); err != nil {
				return err
			}
			batch = append(batch, rec)
			if len(batch) == stagingInsertBatch {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	})
}

// readSpreadsheetRows parses the staged file into rows of cells. XLSX goes
// through excelize; CSV through encoding/csv with ragged rows allowed.
func readSpreadsheetRows(path, mimeType string) ([][]string, error) {
	if strings.Contains(mimeType, "csv") || strings.EqualFold(filepath.Ext(path), ".csv") {
		return readCSVRows(path)
	}
	return readXLSXRows(path)
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}
