package services

import (
	"context"
	"log"

	"caseflow-api/config"
	"caseflow-api/models"

	"gorm.io/gorm"
)

// BatchPipeline wires the batch-import subsystem together: the job record
// store, column mapping, chunked import execution, report generation, monitor
// tokens, and the phase dispatch table clients resume against.
type BatchPipeline struct {
	Jobs     JobStore
	Mapping  *ColumnMappingService
	Reports  *ReportService
	Tokens   *MonitorTokenService
	Runner   *JobRunner
	Registry *OperationRegistry
}

func NewBatchPipeline(db *gorm.DB) *BatchPipeline {
	if db == nil {
		db = config.DB
	}

	jobs := NewJobRecordService(db)
	tokens := NewMonitorTokenService(db)
	mapping := NewColumnMappingService(db, jobs)
	exec := NewImportExecutor(db, jobs, mapping)
	runner := NewJobRunner(jobs, exec)
	reports := NewReportService(db, jobs, tokens, runner, mapping)

	p := &BatchPipeline{
		Jobs:     jobs,
		Mapping:  mapping,
		Reports:  reports,
		Tokens:   tokens,
		Runner:   runner,
		Registry: NewOperationRegistry(jobs),
	}

	mapping.OnFinalized = func(job *models.BatchJob) {
		p.Runner.AttachOrStart(job)
	}
	runner.OnFinished = func(jobID uint) {
		NotifyJobFinished(db, jobID)
	}

	p.registerHandlers()
	return p
}

func (p *BatchPipeline) registerHandlers() {
	p.Registry.Register(models.OpFetchColMap, p.handleFetchColMap)
	p.Registry.Register(models.OpCompleteColMap, p.handleCompleteColMap)

	for _, rt := range []string{ReportTypeCSV, ReportTypeData, ReportTypeImport, ReportTypeRejection} {
		reportType := rt
		genOp, _ := genOperationFor(reportType)
		p.Registry.Register(genOp, func(ctx context.Context, req *PhaseRequest) (*PhaseResult, error) {
			return p.handleGenReport(ctx, req, reportType)
		})
		p.Registry.Register(fetchOperationFor(reportType), func(ctx context.Context, req *PhaseRequest) (*PhaseResult, error) {
			return p.handleFetchReport(ctx, req, reportType)
		})
	}
}

// Resume re-attaches a client to its job at whatever phase the marker names.
// monitorComplete additionally retires the job's polling token, but only
// after the dispatch confirmed the caller owns the job.
func (p *BatchPipeline) Resume(ctx context.Context, tenantID, userID, jobID uint, monitorComplete bool, reportType string) (*PhaseResult, error) {
	result, err := p.Registry.Resume(ctx, tenantID, jobID, &PhaseRequest{
		MonitorComplete: monitorComplete,
		ReportType:      reportType,
	})
	if err != nil {
		return nil, err
	}
	if monitorComplete {
		if err := p.Tokens.RevokeForJob(ctx, jobID); err != nil {
			log.Printf("failed to revoke monitor token for job %d: %v", jobID, err)
		}
	}
	return result, nil
}

// handleFetchColMap re-renders the editable mapping view. Re-runnable: it
// only reads.
func (p *BatchPipeline) handleFetchColMap(ctx context.Context, req *PhaseRequest) (*PhaseResult, error) {
	view, err := p.Mapping.MapColumns(ctx, req.Job.TenantID, req.Job.ID, MapIntentReEdit)
	if err != nil {
		return nil, err
	}
	return &PhaseResult{
		Success: true,
		Ready:   true,
		Payload: map[string]interface{}{"mapping": view},
	}, nil
}

// handleCompleteColMap finishes a job that recorded complete-col-map but
// crashed before reaching the import phase: it re-checks the persisted map
// and pushes the job into import execution. Re-runnable: the validation reads
// and the transition is a single marker write.
func (p *BatchPipeline) handleCompleteColMap(ctx context.Context, req *PhaseRequest) (*PhaseResult, error) {
	entries, err := p.Mapping.CurrentMap(ctx, req.Job.ID)
	if err != nil {
		return nil, err
	}
	values := make([]MappingValue, 0, len(entries))
	for _, e := range entries {
		values = append(values, MappingValue{
			SourceColumn: e.SourceColumn,
			SourceHeader: e.SourceHeader,
			TargetField:  e.TargetField,
			Role:         e.Role,
			FieldGroup:   e.FieldGroup,
		})
	}
	if verr := validateMapping(values, requiredFieldsFor(req.Job.JobType)); verr != nil {
		return nil, verr
	}

	if err := p.Jobs.SetStatus(ctx, req.Job.ID, models.BatchJobStatusRunning, nil); err != nil {
		return nil, err
	}
	job := *req.Job
	job.Status = models.BatchJobStatusRunning
	job.Operation = models.OpGenImportReport
	p.Runner.AttachOrStart(&job)

	return &PhaseResult{
		Success:       true,
		NextOperation: models.OpGenImportReport,
	}, nil
}

// handleGenReport resolves immediately when the backing work is done,
// otherwise mints a monitor token and keeps a worker attached. Re-runnable:
// token issuance is idempotent and AttachOrStart is a no-op on a live worker.
func (p *BatchPipeline) handleGenReport(ctx context.Context, req *PhaseRequest, defaultType string) (*PhaseResult, error) {
	reportType := req.ReportType
	if reportType == "" {
		reportType = defaultType
	}
	res, err := p.Reports.Generate(ctx, req.Job.TenantID, req.Job.UserID, req.Job.ID, reportType)
	if err != nil {
		return nil, err
	}
	out := &PhaseResult{
		Success:      true,
		Ready:        res.Ready,
		Payload:      res.Payload,
		MonitorToken: res.MonitorToken,
	}
	if res.Ready {
		out.NextOperation = fetchOperationFor(reportType)
	}
	return out, nil
}

// handleFetchReport is the terminal read of a finished artifact.
func (p *BatchPipeline) handleFetchReport(ctx context.Context, req *PhaseRequest, defaultType string) (*PhaseResult, error) {
	reportType := req.ReportType
	if reportType == "" {
		reportType = defaultType
	}
	payload, err := p.Reports.Fetch(ctx, req.Job.TenantID, req.Job.ID, reportType)
	if err != nil {
		return nil, err
	}
	return &PhaseResult{Success: true, Ready: true, Payload: payload}, nil
}

// DropJob cancels the worker at its next chunk boundary, marks the job
// dropped, and revokes the polling token so no further polls succeed. The
// ownership check runs before any side effect: a foreign tenant's request
// must not be able to halt another tenant's worker.
func (p *BatchPipeline) DropJob(ctx context.Context, tenantID, jobID uint) error {
	if _, err := p.Jobs.GetOwned(ctx, tenantID, jobID); err != nil {
		return err
	}
	p.Runner.Cancel(jobID)
	if err := p.Jobs.Drop(ctx, tenantID, jobID); err != nil {
		return err
	}
	if err := p.Tokens.RevokeForJob(ctx, jobID); err != nil {
		log.Printf("failed to revoke monitor token for dropped job %d: %v", jobID, err)
	}
	return nil
}
