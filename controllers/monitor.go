package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PollJobProgress is the lightweight polling endpoint. It authenticates with
// the monitor token alone (no session), reads the job row, and returns at
// once — it never blocks on the worker. A failed job still answers with its
// failure detail so the client can render a terminal state; any token or
// ownership mismatch answers exactly like an absent job.
func PollJobProgress(c *gin.Context) {
	jobID64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || jobID64 == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	jobID := uint(jobID64)
	token := c.Query("token")

	ctx := c.Request.Context()
	okToken, err := pipeline.Tokens.Verify(ctx, token, jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if !okToken {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	row, err := pipeline.Tokens.Lookup(ctx, token)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	job, err := pipeline.Jobs.GetOwned(ctx, row.TenantID, jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	terminal := job.IsTerminal()
	if terminal && c.Query("monitor_complete") == "true" {
		// Final poll reached a terminal response; retire the token.
		_ = pipeline.Tokens.Revoke(ctx, token)
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":             job.ID,
		"status":             job.Status,
		"operation":          job.Operation,
		"records_to_process": job.RecordsToProcess,
		"records_completed":  job.RecordsCompleted,
		"progress":           job.Progress(),
		"error_message":      job.ErrorMessage,
		"terminal":           terminal,
	})
}
