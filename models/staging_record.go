package models

import (
	"encoding/json"
	"time"
)

const (
	StagingRecordStatusPending  = "pending"
	StagingRecordStatusCreated  = "created"
	StagingRecordStatusUpdated  = "updated"
	StagingRecordStatusSkipped  = "skipped"
	StagingRecordStatusRejected = "rejected"
)

// StagingRecord is one parsed row of an uploaded file, staged for import.
// The autoincrement ID doubles as the scanner's keyset cursor, so IDs are
// strictly increasing within a tenant-scoped query.
type StagingRecord struct {
	ID       uint `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID uint `json:"tenant_id" gorm:"column:tenant_id;not null;index:idx_staging_job,priority:2"`
	JobID    uint `json:"job_id" gorm:"column:job_id;not null;index:idx_staging_job,priority:1"`

	RowIndex int    `json:"row_index" gorm:"column:row_index;not null"`
	Fields   string `json:"-" gorm:"column:fields;type:longtext;not null"`

	Status       string  `json:"status" gorm:"type:enum('pending','created','updated','skipped','rejected');not null;default:'pending'"`
	RejectReason *string `json:"reject_reason,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (StagingRecord) TableName() string { return "staging_records" }

// Cells decodes the raw cell values captured at upload time.
func (r *StagingRecord) Cells() ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(r.Fields), &cells); err != nil {
		return nil, err
	}
	return cells, nil
}

// SetCells encodes raw cell values for storage.
func (r *StagingRecord) SetCells(cells []string) error {
	data, err := json.Marshal(cells)
	if err != nil {
		return err
	}
	r.Fields = string(data)
	return nil
}
