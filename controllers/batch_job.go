package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"caseflow-api/models"
	"caseflow-api/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var pipeline *services.BatchPipeline
var uploads *services.UploadService

// Init wires the controllers to the batch pipeline. Call once at startup,
// after config.InitDB.
func Init(db *gorm.DB) {
	pipeline = services.NewBatchPipeline(db)
	uploads = services.NewUploadService(db)
}

// Pipeline exposes the wired pipeline (used by the monitor poll handler).
func Pipeline() *services.BatchPipeline { return pipeline }

func currentIdentity(c *gin.Context) (tenantID, userID uint, ok bool) {
	t, tok := c.Get("tenantID")
	u, uok := c.Get("userID")
	if !tok || !uok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return 0, 0, false
	}
	return t.(uint), u.(uint), true
}

func jobIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return 0, false
	}
	return uint(id), true
}

// respondServiceError maps pipeline errors onto HTTP responses. NotFound
// covers foreign tenants and token mismatches so existence never leaks.
func respondServiceError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, services.ErrJobConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Finish or drop your current job first"})
	case errors.Is(err, services.ErrMapFinalized):
		c.JSON(http.StatusConflict, gin.H{"error": "Column map is already finalized"})
	case errors.Is(err, services.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
	case errors.Is(err, services.ErrReportPending):
		c.JSON(http.StatusAccepted, gin.H{"error": "Report not ready", "pending": true})
	case errors.Is(err, services.ErrUnknownReportType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown report type"})
	case errors.Is(err, services.ErrUnknownOperation):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Job record is corrupted"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// CheckRunningJob lets the client re-attach to in-flight work on page load.
func CheckRunningJob(c *gin.Context) {
	tenantID, userID, ok := currentIdentity(c)
	if !ok {
		return
	}

	job, err := pipeline.Jobs.GetRunning(c.Request.Context(), tenantID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if job == nil {
		c.JSON(http.StatusOK, gin.H{"running": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"running":  true,
		"job_id":   job.ID,
		"job_type": job.JobType,
		"status":   job.Status,
		"progress": job.Progress(),
	})
}

type createJobRequest struct {
	FileID  int    `json:"file_id" binding:"required"`
	JobType string `json:"job_type"`
}

// CreateJob creates a scheduled job over an uploaded file and stages the
// file's rows for chunked processing.
func CreateJob(c *gin.Context) {
	tenantID, userID, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_id is required"})
		return
	}
	jobType := req.JobType
	if jobType == "" {
		jobType = models.JobTypeBatchCaseImport
	}
	switch jobType {
	case models.JobTypeBatchCaseImport, models.JobTypeMassInvitationOrder, models.JobTypeUsageStatAggregate:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown job type"})
		return
	}

	ctx := c.Request.Context()
	upload, err := uploads.GetUnassigned(ctx, tenantID, req.FileID)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found or already assigned"})
			return
		}
		respondServiceError(c, err)
		return
	}

	job, err := pipeline.Jobs.CreateJob(ctx, tenantID, userID, jobType, &upload.FileID, upload.RowCount)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if err := uploads.StageForJob(ctx, job, upload); err != nil {
		// Leave the job inspectable with the reason rather than half-created.
		if serr := pipeline.Jobs.SetStatus(ctx, job.ID, models.BatchJobStatusFailed, err); serr != nil {
			respondServiceError(c, serr)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"created": false, "error": "Failed to stage uploaded file"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"created":            true,
		"job_id":             job.ID,
		"operation":          job.Operation,
		"records_to_process": job.RecordsToProcess,
	})
}

// ListJobsAndFiles returns the owner's recent jobs plus files no job has
// claimed yet.
func ListJobsAndFiles(c *gin.Context) {
	tenantID, userID, ok := currentIdentity(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	jobs, err := pipeline.Jobs.List(ctx, tenantID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	files, err := uploads.ListUnassigned(ctx, tenantID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":             jobs,
		"unassigned_files": files,
		"has_access":       true,
	})
}

// DropJob cancels the worker, marks the job dropped, and revokes its token.
func DropJob(c *gin.Context) {
	tenantID, _, ok := currentIdentity(c)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	if err := pipeline.DropJob(c.Request.Context(), tenantID, jobID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type resumeJobRequest struct {
	MonitorComplete bool   `json:"monitor_complete"`
	ReportType      string `json:"report_type"`
}

// ResumeJob dispatches to whichever phase handler the job's operation marker
// names; any request carrying the job ID picks up where the job stopped.
func ResumeJob(c *gin.Context) {
	tenantID, userID, ok := currentIdentity(c)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	var req resumeJobRequest
	_ = c.ShouldBindJSON(&req)

	result, err := pipeline.Resume(c.Request.Context(), tenantID, userID, jobID, req.MonitorComplete, req.ReportType)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
