package controllers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"caseflow-api/models"
	"caseflow-api/services"
	"caseflow-api/utils"

	"github.com/gin-gonic/gin"
)

var uploadExtensionToMime = map[string]string{
	".csv":  "text/csv",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

const maxUploadMB = 20

// resolveMime settles the effective mime type: the declared header when it
// already names a spreadsheet type, otherwise the filename extension.
func resolveMime(declared, filename string) string {
	probe := models.FileUpload{MimeType: declared}
	if probe.IsValidSpreadsheetType() {
		return declared
	}
	if mime, ok := uploadExtensionToMime[strings.ToLower(filepath.Ext(filename))]; ok {
		return mime
	}
	return declared
}

// UploadBatchFile accepts the multipart source file for a future batch job
// and stages it unassigned until CreateJob claims it.
func UploadBatchFile(c *gin.Context) {
	tenantID, userID, ok := currentIdentity(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Upload file is required"})
		return
	}
	defer file.Close()

	probe := models.FileUpload{
		MimeType: resolveMime(header.Header.Get("Content-Type"), header.Filename),
		FileSize: header.Size,
	}
	if !probe.IsValidSpreadsheetType() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type; use .csv, .xls or .xlsx"})
		return
	}
	if probe.GetFileSizeInMB() > maxUploadMB {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File exceeds the 20MB limit"})
		return
	}
	mimeType := probe.MimeType

	uploadDir := os.Getenv("UPLOAD_PATH")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}
	uploadDir = filepath.Join(uploadDir, "batch_imports")
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare upload directory"})
		return
	}

	safeName := utils.GenerateUniqueFilename(uploadDir, header.Filename)
	dstPath := filepath.Join(uploadDir, safeName)
	if err := c.SaveUploadedFile(header, dstPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save upload"})
		return
	}

	upload, err := uploads.StoreUpload(c.Request.Context(), tenantID, userID, header.Filename, dstPath, header.Size, mimeType)
	if err != nil {
		_ = os.Remove(dstPath)
		if errors.Is(err, services.ErrEmptyUpload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "File has no data rows"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read rows from file"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"file_id":   upload.FileID,
		"row_count": upload.RowCount,
	})
}
