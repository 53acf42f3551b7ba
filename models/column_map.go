package models

import "time"

// Target fields a source column may populate. ExternalRef is the only field
// required for every job type; mass invitation orders additionally require
// a contact email.
const (
	FieldExternalRef  = "external_ref"
	FieldDisplayName  = "display_name"
	FieldRegion       = "region"
	FieldStatus       = "status"
	FieldContactEmail = "contact_email"
	FieldPrincipal    = "principal"
)

// Column roles. A source column mapped to RolePrimaryKey must not also be
// mapped to RoleContact; the two are mutually exclusive.
const (
	RolePrimaryKey = "primary-key"
	RoleAttribute  = "attribute"
	RoleContact    = "contact"
)

// Logical entity a column populates.
const (
	GroupProfile   = "profile"
	GroupPrincipal = "principal"
)

// ColumnMapEntry associates one uploaded-file column with one target field.
// The row-set for a job is mutable until the job records the complete-col-map
// operation, after which it drives the import and must not change.
type ColumnMapEntry struct {
	ID    uint `json:"id" gorm:"primaryKey;autoIncrement"`
	JobID uint `json:"job_id" gorm:"column:job_id;not null;index"`

	SourceColumn int    `json:"source_column" gorm:"column:source_column;not null"`
	SourceHeader string `json:"source_header" gorm:"type:varchar(255)"`
	TargetField  string `json:"target_field" gorm:"type:varchar(64);not null"`
	Role         string `json:"role" gorm:"type:varchar(32);not null;default:'attribute'"`
	FieldGroup   string `json:"field_group" gorm:"column:field_group;type:varchar(32);not null;default:'profile'"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (ColumnMapEntry) TableName() string { return "column_map_entries" }
