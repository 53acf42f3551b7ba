package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	CaseProfileStatusActive   = "active"
	CaseProfileStatusInvited  = "invited"
	CaseProfileStatusArchived = "archived"
)

// CaseProfile is the import target record. The pipeline treats it as opaque
// beyond identity, external reference, and status.
type CaseProfile struct {
	ID       uint `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID uint `json:"tenant_id" gorm:"column:tenant_id;not null;uniqueIndex:uq_case_profiles_ref,priority:1"`

	ExternalRef string `json:"external_ref" gorm:"type:varchar(128);not null;uniqueIndex:uq_case_profiles_ref,priority:2"`
	DisplayName string `json:"display_name" gorm:"type:varchar(255)"`
	Region      string `json:"region" gorm:"type:varchar(64)"`
	Status      string `json:"status" gorm:"type:varchar(32);not null;default:'active'"`

	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"column:deleted_at;index"`
}

func (CaseProfile) TableName() string { return "case_profiles" }
