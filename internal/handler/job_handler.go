package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/roadsim-backend-go/internal/middleware"
	"github.com/jengzang/roadsim-backend-go/internal/models"
	"github.com/jengzang/roadsim-backend-go/internal/service"
	"github.com/jengzang/roadsim-backend-go/pkg/response"
)

// JobHandler handles HTTP requests for background run jobs
type JobHandler struct {
	service *service.JobService
}

// NewJobHandler creates a new job handler
func NewJobHandler(service *service.JobService) *JobHandler {
	return &JobHandler{service: service}
}

// Create starts a job advancing the run
// POST /api/v1/runs/:id/jobs
func (h *JobHandler) Create(c *gin.Context) {
	var req models.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}

	createdBy := c.GetString(middleware.SubjectKey)
	job, err := h.service.Create(c.Param("id"), req.Ticks, createdBy)
	if err != nil {
		fail(c, "Failed to create job", err)
		return
	}
	response.Created(c, job)
}

// List retrieves the jobs of a run
// GET /api/v1/runs/:id/jobs
func (h *JobHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		offset = 0
	}

	jobs, err := h.service.List(c.Param("id"), c.Query("status"), limit, offset)
	if err != nil {
		fail(c, "Failed to list jobs", err)
		return
	}
	response.Success(c, gin.H{
		"jobs":   jobs,
		"limit":  limit,
		"offset": offset,
	})
}

// Get retrieves a job by ID
// GET /api/v1/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid job ID", err)
		return
	}
	job, err := h.service.Get(id)
	if err != nil {
		fail(c, "Failed to get job", err)
		return
	}
	response.Success(c, job)
}

// Cancel stops a running job
// DELETE /api/v1/jobs/:id
func (h *JobHandler) Cancel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid job ID", err)
		return
	}
	if err := h.service.Cancel(id); err != nil {
		fail(c, "Failed to cancel job", err)
		return
	}
	response.Success(c, gin.H{"message": "Job cancellation requested"})
}
