package controllers

import (
	"net/http"

	"caseflow-api/services"

	"github.com/gin-gonic/gin"
)

// MapColumns renders the mapping screen data: sample rows, the saved map,
// and the field/role/group option lists.
func MapColumns(c *gin.Context) {
	tenantID, _, ok := currentIdentity(c)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	intent := c.Query("intent")
	if intent == "" {
		intent = services.MapIntentFirstLoad
	}

	view, err := pipeline.Mapping.MapColumns(c.Request.Context(), tenantID, jobID, intent)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type saveMappingRequest struct {
	Values   []services.MappingValue `json:"values"`
	Finalize bool                    `json:"finalize"`
}

// SaveMapping persists the submitted column map. With finalize=true it runs
// the completeness gate and, on success, moves the job into chunked import
// execution; validation failures come back as a field-keyed list.
func SaveMapping(c *gin.Context) {
	tenantID, _, ok := currentIdentity(c)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	var req saveMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mapping payload"})
		return
	}

	if err := pipeline.Mapping.SaveMapping(c.Request.Context(), tenantID, jobID, req.Values, req.Finalize); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"saved":     true,
		"finalized": req.Finalize,
	})
}
