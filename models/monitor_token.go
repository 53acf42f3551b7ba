package models

import "time"

// MonitorToken authorizes lightweight progress polling for one job without a
// full session. The token value is a deterministic derivation, so re-issuing
// before first use returns the same credential. The row is removed when the
// client signals monitor completion.
type MonitorToken struct {
	Token    string `json:"token" gorm:"type:varchar(128);primaryKey"`
	TenantID uint   `json:"tenant_id" gorm:"column:tenant_id;not null"`
	UserID   uint   `json:"user_id" gorm:"column:user_id;not null"`
	JobID    uint   `json:"job_id" gorm:"column:job_id;not null;uniqueIndex"`
	JobType  string `json:"job_type" gorm:"type:varchar(64);not null"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (MonitorToken) TableName() string { return "monitor_tokens" }
