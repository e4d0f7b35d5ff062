package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

const maxEntitiesPerKind = 500

type scheduleGenerator interface {
	Preview(ctx context.Context, cfg *models.ScheduleConfig) (*dto.SlotsResponse, error)
	Generate(ctx context.Context, req dto.GenerateRequest) (*dto.TimetableResponse, error)
}

// ScheduleGeneratorHandler exposes the slot preview and timetable generation endpoints.
type ScheduleGeneratorHandler struct {
	service scheduleGenerator
}

// NewScheduleGeneratorHandler constructs the handler.
func NewScheduleGeneratorHandler(svc scheduleGenerator) *ScheduleGeneratorHandler {
	return &ScheduleGeneratorHandler{service: svc}
}

// PreviewStored godoc
// @Summary Preview the slot grid of the stored schedule config
// @Tags Timetable
// @Produce json
// @Success 200 {object} dto.SlotsResponse
// @Failure 400 {object} response.Envelope
// @Router /generate-slots [get]
func (h *ScheduleGeneratorHandler) PreviewStored(c *gin.Context) {
	h.preview(c, nil)
}

// Preview godoc
// @Summary Preview the slot grid of a schedule config
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body models.ScheduleConfig true "Schedule config"
// @Success 200 {object} dto.SlotsResponse
// @Failure 400 {object} response.Envelope
// @Router /generate-slots [post]
func (h *ScheduleGeneratorHandler) Preview(c *gin.Context) {
	var cfg models.ScheduleConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.Error(c, appErrors.WrapAs(appErrors.ErrInvalidConfig, err, "invalid schedule config payload"))
		return
	}
	h.preview(c, &cfg)
}

// GenerateStored godoc
// @Summary Generate a timetable from the stored inputs
// @Tags Timetable
// @Produce json
// @Param seed query int false "Pin the random seed"
// @Success 200 {object} dto.TimetableResponse
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /generate-ai-timetable [get]
func (h *ScheduleGeneratorHandler) GenerateStored(c *gin.Context) {
	var req dto.GenerateRequest
	if raw := c.Query("seed"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, appErrors.WrapAs(appErrors.ErrValidation, err, "seed must be an integer"))
			return
		}
		req.Options.Seed = &seed
	}
	h.generate(c, req)
}

// Generate godoc
// @Summary Generate a timetable from posted inputs
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateRequest true "Generation inputs"
// @Success 200 {object} dto.TimetableResponse
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /generate-ai-timetable [post]
func (h *ScheduleGeneratorHandler) Generate(c *gin.Context) {
	req, err := bindGenerateRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.generate(c, req)
}

func (h *ScheduleGeneratorHandler) preview(c *gin.Context, cfg *models.ScheduleConfig) {
	result, err := h.service.Preview(c.Request.Context(), cfg)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, result)
}

func (h *ScheduleGeneratorHandler) generate(c *gin.Context, req dto.GenerateRequest) {
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, result)
}

func bindGenerateRequest(c *gin.Context) (dto.GenerateRequest, error) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid generate payload")
	}
	if len(req.Divisions) > maxEntitiesPerKind || len(req.Teachers) > maxEntitiesPerKind ||
		len(req.Subjects) > maxEntitiesPerKind || len(req.SubjectTeachers) > maxEntitiesPerKind*4 {
		return req, appErrors.Clone(appErrors.ErrValidation, "payload exceeds supported entity limit")
	}
	return req, nil
}
