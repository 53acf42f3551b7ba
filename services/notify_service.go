package services

import (
	"fmt"
	"log"

	"caseflow-api/config"
	"caseflow-api/models"

	"gorm.io/gorm"
)

// NotifyJobFinished sends a short terminal-status mail to the job's owner.
// Best effort: failures are logged, never propagated, and a job that is not
// actually terminal (interrupted worker) sends nothing.
func NotifyJobFinished(db *gorm.DB, jobID uint) {
	if db == nil {
		db = config.DB
	}

	var job models.BatchJob
	if err := db.Where("id = ?", jobID).First(&job).Error; err != nil {
		log.Printf("notify: failed to load job %d: %v", jobID, err)
		return
	}
	if !job.IsTerminal() {
		return
	}

	var user models.User
	if err := db.Where("user_id = ? AND tenant_id = ?", job.UserID, job.TenantID).First(&user).Error; err != nil {
		log.Printf("notify: failed to load owner of job %d: %v", jobID, err)
		return
	}

	subject := fmt.Sprintf("Batch job #%d %s", job.ID, job.Status)
	body := fmt.Sprintf(
		"<p>Your %s job finished with status <b>%s</b>.</p><p>%d of %d records processed (%d created, %d updated, %d skipped, %d rejected).</p>",
		job.JobType, job.Status,
		job.RecordsCompleted, job.RecordsToProcess,
		job.CreatedCount, job.UpdatedCount, job.SkippedCount, job.RejectedCount,
	)
	if job.ErrorMessage != nil {
		body += fmt.Sprintf("<p>Reason: %s</p>", *job.ErrorMessage)
	}

	if err := config.SendMail([]string{user.Email}, subject, body); err != nil {
		log.Printf("notify: failed to send completion mail for job %d: %v", jobID, err)
	}
}
