package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type runManager interface {
	Submit(ctx context.Context, req dto.GenerateRequest) (*dto.RunAccepted, error)
	Get(ctx context.Context, id string) (*dto.RunResponse, error)
	Cancel(ctx context.Context, id string) (*dto.RunResponse, error)
}

type timetableExporter interface {
	Export(ctx context.Context, id, format string) (*service.ExportResult, error)
}

// RunHandler exposes asynchronous generation runs.
type RunHandler struct {
	runs     runManager
	exporter timetableExporter
}

// NewRunHandler constructs the handler.
func NewRunHandler(runs runManager, exporter timetableExporter) *RunHandler {
	return &RunHandler{runs: runs, exporter: exporter}
}

// Create godoc
// @Summary Queue a timetable generation
// @Tags Runs
// @Accept json
// @Produce json
// @Param payload body dto.GenerateRequest true "Generation inputs"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /timetable-runs [post]
func (h *RunHandler) Create(c *gin.Context) {
	req, err := bindGenerateRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	accepted, err := h.runs.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Location", c.FullPath()+"/"+accepted.RunID)
	response.Accepted(c, accepted)
}

// Get godoc
// @Summary Get run status and result
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable-runs/{id} [get]
func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run)
}

// Cancel godoc
// @Summary Cancel a queued or running generation
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable-runs/{id} [delete]
func (h *RunHandler) Cancel(c *gin.Context) {
	run, err := h.runs.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run)
}

// Export godoc
// @Summary Download the timetable of a run
// @Tags Runs
// @Produce octet-stream
// @Param id path string true "Run ID"
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable-runs/{id}/export [get]
func (h *RunHandler) Export(c *gin.Context) {
	result, err := h.exporter.Export(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}
