package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type inputReader interface {
	Divisions(ctx context.Context) ([]models.Division, error)
	Teachers(ctx context.Context) ([]models.Teacher, error)
	Subjects(ctx context.Context) ([]models.Subject, error)
	SubjectTeachers(ctx context.Context) ([]models.SubjectTeacher, error)
	Config(ctx context.Context) (*models.ScheduleConfig, error)
}

// InputHandler serves read-only views of the stored scheduling inputs.
type InputHandler struct {
	inputs inputReader
}

// NewInputHandler constructs the handler.
func NewInputHandler(inputs inputReader) *InputHandler {
	return &InputHandler{inputs: inputs}
}

// Divisions godoc
// @Summary List stored divisions
// @Tags Inputs
// @Produce json
// @Success 200 {array} models.Division
// @Router /divisions [get]
func (h *InputHandler) Divisions(c *gin.Context) {
	items, err := h.inputs.Divisions(c.Request.Context())
	respondRaw(c, items, err)
}

// Teachers godoc
// @Summary List stored teachers
// @Tags Inputs
// @Produce json
// @Success 200 {array} models.Teacher
// @Router /teachers [get]
func (h *InputHandler) Teachers(c *gin.Context) {
	items, err := h.inputs.Teachers(c.Request.Context())
	respondRaw(c, items, err)
}

// Subjects godoc
// @Summary List stored subjects
// @Tags Inputs
// @Produce json
// @Success 200 {array} models.Subject
// @Router /subjects [get]
func (h *InputHandler) Subjects(c *gin.Context) {
	items, err := h.inputs.Subjects(c.Request.Context())
	respondRaw(c, items, err)
}

// SubjectTeachers godoc
// @Summary List the subject to teacher mapping
// @Tags Inputs
// @Produce json
// @Success 200 {array} models.SubjectTeacher
// @Router /subject-teachers [get]
func (h *InputHandler) SubjectTeachers(c *gin.Context) {
	items, err := h.inputs.SubjectTeachers(c.Request.Context())
	respondRaw(c, items, err)
}

// Config godoc
// @Summary Get the latest stored schedule config
// @Tags Inputs
// @Produce json
// @Success 200 {object} models.ScheduleConfig
// @Failure 404 {object} response.Envelope
// @Router /timetable-config [get]
func (h *InputHandler) Config(c *gin.Context) {
	cfg, err := h.inputs.Config(c.Request.Context())
	respondRaw(c, cfg, err)
}

func respondRaw(c *gin.Context, payload interface{}, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, payload)
}
