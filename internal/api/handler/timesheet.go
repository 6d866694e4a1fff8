package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/timesheet/internal/api/middleware"
	"github.com/timmy/timesheet/internal/domain"
	"github.com/timmy/timesheet/internal/logger"
	"github.com/timmy/timesheet/internal/notify"
	"github.com/timmy/timesheet/internal/service"
)

// TimesheetSubmitter is the service behind the timesheet endpoints.
type TimesheetSubmitter interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error)
	JobStatus(id string) (domain.Job, error)
}

// TimesheetHandler handles timesheet confirmation and generation endpoints.
type TimesheetHandler struct {
	timesheets TimesheetSubmitter
}

// NewTimesheetHandler creates a new timesheet handler.
func NewTimesheetHandler(timesheets TimesheetSubmitter) *TimesheetHandler {
	return &TimesheetHandler{timesheets: timesheets}
}

// SubmitRequest is the body of POST /timesheet.
type SubmitRequest struct {
	Entries         []service.EntryDecision `json:"entries"`
	SignatureID     *uint                   `json:"signatureId"`
	RejectionReason string                  `json:"rejectionReason"`
	ProblematicDays []notify.ProblematicDay `json:"problematicDays"`
}

// Submit handles POST /timesheet.
func (h *TimesheetHandler) Submit(c *gin.Context) {
	var body SubmitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	res, err := h.timesheets.Submit(c.Request.Context(), service.SubmitRequest{
		ActorID:         middleware.ActorID(c),
		Entries:         body.Entries,
		RejectionReason: body.RejectionReason,
		ProblematicDays: body.ProblematicDays,
		SignatureID:     body.SignatureID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	switch res.Outcome {
	case service.OutcomeAccepted:
		c.JSON(http.StatusAccepted, gin.H{
			"message": "Entries updated, timesheet generation started",
			"jobId":   res.Job.ID,
			"entries": res.Entries,
		})
	case service.OutcomeInProgress:
		c.JSON(http.StatusAccepted, gin.H{
			"message": "Timesheet generation already in progress",
			"jobId":   res.Job.ID,
		})
	case service.OutcomeCached:
		resp := gin.H{"message": "Timesheet already generated"}
		if res.Job.ResultURL != "" {
			resp["timesheetUrl"] = res.Job.ResultURL
		}
		c.JSON(http.StatusCreated, resp)
	default:
		c.JSON(http.StatusOK, gin.H{
			"message": "Entries updated",
			"entries": res.Entries,
		})
	}
}

// Status handles GET /timesheet?jobId=.
func (h *TimesheetHandler) Status(c *gin.Context) {
	jobID := c.Query("jobId")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter 'jobId' is required",
		})
		return
	}

	job, err := h.timesheets.JobStatus(jobID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"status": job.Status}
	if job.ResultURL != "" {
		resp["timesheetUrl"] = job.ResultURL
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	c.JSON(http.StatusOK, resp)
}

// respondError writes {"error": message} with the status carried by err.
func respondError(c *gin.Context, err error) {
	status := domain.StatusOf(err)
	ctx := c.Request.Context()
	if status < http.StatusInternalServerError {
		logger.CtxWarn(ctx, "Request rejected: %v", err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	logger.CtxError(ctx, "Request failed: %v", err)
	var derr *domain.Error
	if !errors.As(err, &derr) {
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": derr.Message})
}
