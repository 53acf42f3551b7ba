package models

import "time"

// FileUpload represents the file_uploads table. A file is unassigned until a
// batch job claims it; claimed files are hidden from the upload picker.
type FileUpload struct {
	FileID       int        `gorm:"primaryKey;column:file_id" json:"file_id"`
	TenantID     uint       `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	OriginalName string     `gorm:"column:original_name" json:"original_name"`
	StoredPath   string     `gorm:"column:stored_path" json:"stored_path"`
	FileSize     int64      `gorm:"column:file_size" json:"file_size"`
	MimeType     string     `gorm:"column:mime_type" json:"mime_type"`
	RowCount     int        `gorm:"column:row_count" json:"row_count"`
	HeaderRow    string     `gorm:"column:header_row;type:text" json:"-"`
	UploadedBy   uint       `gorm:"column:uploaded_by" json:"uploaded_by"`
	JobID        *uint      `gorm:"column:job_id" json:"job_id,omitempty"`
	UploadedAt   time.Time  `gorm:"column:uploaded_at" json:"uploaded_at"`
	CreateAt     time.Time  `gorm:"column:create_at;autoCreateTime" json:"create_at"`
	UpdateAt     time.Time  `gorm:"column:update_at;autoUpdateTime" json:"update_at"`
	DeleteAt     *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

func (FileUpload) TableName() string {
	return "file_uploads"
}

// IsValidSpreadsheetType reports whether the upload is a supported import source.
func (f *FileUpload) IsValidSpreadsheetType() bool {
	validTypes := []string{
		"text/csv",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
	for _, validType := range validTypes {
		if f.MimeType == validType {
			return true
		}
	}
	return false
}

func (f *FileUpload) GetFileSizeInMB() float64 {
	return float64(f.FileSize) / (1024 * 1024)
}
