package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"caseflow-api/config"
	"caseflow-api/models"

	"gorm.io/gorm"
)

const mappingSampleRows = 5

// Intent values for MapColumns.
const (
	MapIntentFirstLoad = "first-load"
	MapIntentReEdit    = "re-edit"
)

// MappingValue is one submitted column→field association.
type MappingValue struct {
	SourceColumn int    `json:"source_column"`
	SourceHeader string `json:"source_header"`
	TargetField  string `json:"target_field"`
	Role         string `json:"role"`
	FieldGroup   string `json:"field_group"`
}

// MappingView is everything the mapping screen needs to render.
type MappingView struct {
	SampleData   [][]string              `json:"sample_data"`
	CurrentMap   []models.ColumnMapEntry `json:"current_map"`
	FieldOptions []string                `json:"field_options"`
	RoleOptions  []string                `json:"role_options"`
	GroupOptions []string                `json:"group_options"`
	Finalized    bool                    `json:"finalized"`
}

type ColumnMappingService struct {
	db   *gorm.DB
	jobs JobStore

	// OnFinalized runs after a finalize commit so the owning worker can be
	// started without this service knowing about the runner.
	OnFinalized func(job *models.BatchJob)
}

func NewColumnMappingService(db *gorm.DB, jobs JobStore) *ColumnMappingService {
	if db == nil {
		db = config.DB
	}
	return &ColumnMappingService{db: db, jobs: jobs}
}

// requiredFieldsFor lists target fields that must have at least one mapped
// source column before the map may be finalized.
func requiredFieldsFor(jobType string) []string {
	switch jobType {
	case models.JobTypeMassInvitationOrder:
		return []string{models.FieldExternalRef, models.FieldContactEmail}
	default:
		return []string{models.FieldExternalRef}
	}
}

func fieldOptions() []string {
	return []string{
		models.FieldExternalRef,
		models.FieldDisplayName,
		models.FieldRegion,
		models.FieldStatus,
		models.FieldContactEmail,
		models.FieldPrincipal,
	}
}

func roleOptions() []string {
	return []string{models.RolePrimaryKey, models.RoleAttribute, models.RoleContact}
}

func groupOptions() []string {
	return []string{models.GroupProfile, models.GroupPrincipal}
}

// mapFinalized reports whether the job has recorded the complete-col-map
// transition. The map is immutable from that marker on, including the window
// before the import phase marker lands.
func mapFinalized(job *models.BatchJob) bool {
	return job.Operation != models.OpFetchColMap
}

// validateMapping enforces the completeness gate: every required field mapped
// at least once, and no source column bound to two mutually exclusive
// required roles. Failures come back as an itemized field→message list.
func validateMapping(values []MappingValue, required []string) *ValidationError {
	verr := &ValidationError{}

	mappedFields := make(map[string]bool)
	rolesByColumn := make(map[int]map[string]bool)
	for _, v := range values {
		if v.TargetField == "" {
			continue
		}
		mappedFields[v.TargetField] = true
		if v.Role != "" {
			if rolesByColumn[v.SourceColumn] == nil {
				rolesByColumn[v.SourceColumn] = make(map[string]bool)
			}
			rolesByColumn[v.SourceColumn][v.Role] = true
		}
	}

	for _, field := range required {
		if !mappedFields[field] {
			verr.Add(field, "required field has no mapped source column")
		}
	}

	for col, roles := range rolesByColumn {
		if roles[models.RolePrimaryKey] && roles[models.RoleContact] {
			verr.Add(fmt.Sprintf("column_%d", col),
				"source column cannot serve both the primary-key and contact roles")
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// suggestMapping proposes unsaved entries by matching normalized header
// names against the known target fields. Unrecognized headers stay unmapped.
func suggestMapping(jobID uint, headers []string) []models.ColumnMapEntry {
	known := make(map[string]bool)
	for _, f := range fieldOptions() {
		known[f] = true
	}

	var entries []models.ColumnMapEntry
	for col, header := range headers {
		field := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(header)), " ", "_")
		if !known[field] {
			continue
		}
		role := models.RoleAttribute
		switch field {
		case models.FieldExternalRef:
			role = models.RolePrimaryKey
		case models.FieldContactEmail:
			role = models.RoleContact
		}
		group := models.GroupProfile
		if field == models.FieldPrincipal {
			group = models.GroupPrincipal
		}
		entries = append(entries, models.ColumnMapEntry{
			JobID:        jobID,
			SourceColumn: col,
			SourceHeader: header,
			TargetField:  field,
			Role:         role,
			FieldGroup:   group,
		})
	}
	return entries
}

// headerRowFor loads the header captured when the job's file was uploaded.
func (s *ColumnMappingService) headerRowFor(ctx context.Context, job *models.BatchJob) ([]string, error) {
	if job.FileID == nil {
		return nil, nil
	}
	var upload models.FileUpload
	err := s.db.WithContext(ctx).
		Where("file_id = ?", *job.FileID).
		First(&upload).Error
	if err != nil {
		return nil, err
	}
	var headers []string
	if err := json.Unmarshal([]byte(upload.HeaderRow), &headers); err != nil {
		return nil, err
	}
	return headers, nil
}

// MapColumns returns the editable mapping view: sample rows from the staged
// upload, the currently saved map, and the option lists. On first load with
// no saved map, uploaded headers that match a known field come back as
// pre-filled suggestions.
func (s *ColumnMappingService) MapColumns(ctx context.Context, tenantID, jobID uint, intent string) (*MappingView, error) {
	job, err := s.jobs.GetOwned(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}

	var sampleRecords []models.StagingRecord
	err = s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("id ASC").
		Limit(mappingSampleRows).
		Find(&sampleRecords).Error
	if err != nil {
		return nil, err
	}
	sample := make([][]string, 0, len(sampleRecords))
	for _, rec := range sampleRecords {
		cells, err := rec.Cells()
		if err != nil {
			return nil, err
		}
		sample = append(sample, cells)
	}

	var current []models.ColumnMapEntry
	err = s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("source_column ASC").
		Find(&current).Error
	if err != nil {
		return nil, err
	}

	if intent == MapIntentFirstLoad && len(current) == 0 {
		headers, err := s.headerRowFor(ctx, job)
		if err != nil {
			return nil, err
		}
		current = suggestMapping(jobID, headers)
	}

	return &MappingView{
		SampleData:   sample,
		CurrentMap:   current,
		FieldOptions: fieldOptions(),
		RoleOptions:  roleOptions(),
		GroupOptions: groupOptions(),
		Finalized:    mapFinalized(job),
	}, nil
}

// SaveMapping persists the submitted map. Incremental saves leave the job in
// the mapping phase; finalize=true validates the completeness gate, records
// the complete-col-map transition, and hands the job to import execution.
func (s *ColumnMappingService) SaveMapping(ctx context.Context, tenantID, jobID uint, values []MappingValue, finalize bool) error {
	job, err := s.jobs.GetOwned(ctx, tenantID, jobID)
	if err != nil {
		return err
	}
	if mapFinalized(job) {
		return ErrMapFinalized
	}

	if finalize {
		if verr := validateMapping(values, requiredFieldsFor(job.JobType)); verr != nil {
			return verr
		}
		// Finalize must not half-abort if the client disconnects mid-request.
		ctx = persistentContext(ctx)
	}

	nextOp := models.OpFetchColMap
	if finalize {
		// complete-col-map commits atomically with the final map rows. The
		// import phase marker follows outside the transaction; a crash in
		// between leaves the job at complete-col-map, which the resume
		// handler recovers from.
		nextOp = models.OpCompleteColMap
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.ColumnMapEntry{}).Error; err != nil {
			return err
		}
		entries := make([]models.ColumnMapEntry, 0, len(values))
		for _, v := range values {
			if v.TargetField == "" {
				continue
			}
			role := v.Role
			if role == "" {
				role = models.RoleAttribute
			}
			group := v.FieldGroup
			if group == "" {
				group = models.GroupProfile
			}
			entries = append(entries, models.ColumnMapEntry{
				JobID:        jobID,
				SourceColumn: v.SourceColumn,
				SourceHeader: v.SourceHeader,
				TargetField:  v.TargetField,
				Role:         role,
				FieldGroup:   group,
			})
		}
		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}
		return SetOperationTx(tx, jobID, nextOp)
	})
	if err != nil {
		return err
	}

	if finalize {
		if err := s.jobs.SetStatus(ctx, jobID, models.BatchJobStatusRunning, nil); err != nil {
			return err
		}
		if err := s.jobs.SetOperation(ctx, jobID, models.OpGenImportReport); err != nil {
			return err
		}
		if s.OnFinalized != nil {
			job.Operation = models.OpGenImportReport
			job.Status = models.BatchJobStatusRunning
			s.OnFinalized(job)
		}
	}
	return nil
}

// CurrentMap loads the persisted map for a job, ordered by source column.
func (s *ColumnMappingService) CurrentMap(ctx context.Context, jobID uint) ([]models.ColumnMapEntry, error) {
	var entries []models.ColumnMapEntry
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("source_column ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
