package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"caseflow-api/services"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GenerateReport starts (or resolves) a report artifact. When the backing
// work already finished, the payload comes back immediately; otherwise the
// client receives a monitor token and polls.
func GenerateReport(c *gin.Context) {
	tenantID, userID, ok := currentIdentity(c)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	reportType := c.Param("type")

	result, err := pipeline.Reports.Generate(c.Request.Context(), tenantID, userID, jobID, reportType)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// FetchReport is the idempotent read of a finished artifact.
func FetchReport(c *gin.Context) {
	tenantID, _, ok := currentIdentity(c)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	reportType := c.Param("type")

	payload, err := pipeline.Reports.Fetch(c.Request.Context(), tenantID, jobID, reportType)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

// DownloadTemplate streams the import template workbook. Regions become a
// dropdown; principal_count adds one principal column each.
func DownloadTemplate(c *gin.Context) {
	if _, _, ok := currentIdentity(c); !ok {
		return
	}

	regions := c.QueryArray("regions")
	principalCount, _ := strconv.Atoi(c.DefaultQuery("principal_count", "0"))
	if principalCount < 0 || principalCount > 20 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "principal_count out of range"})
		return
	}

	data, err := services.BuildImportTemplate(regions, principalCount)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build template"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="import_template.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// DownloadRejectionReport streams the rejected rows of a job as a workbook.
func DownloadRejectionReport(c *gin.Context) {
	tenantID, _, ok := currentIdentity(c)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	data, err := pipeline.Reports.BuildRejectionWorkbook(c.Request.Context(), tenantID, jobID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="rejections_job_%d.xlsx"`, jobID))
	c.Data(http.StatusOK, xlsxContentType, data)
}
