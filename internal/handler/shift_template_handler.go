package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-shift-api/internal/dto"
	"github.com/noah-isme/sma-shift-api/internal/middleware"
	"github.com/noah-isme/sma-shift-api/internal/models"
	"github.com/noah-isme/sma-shift-api/internal/service"
	appErrors "github.com/noah-isme/sma-shift-api/pkg/errors"
	"github.com/noah-isme/sma-shift-api/pkg/response"
)

type shiftTemplateService interface {
	Create(ctx context.Context, callerID string, req dto.CreateShiftTemplateRequest) (*models.TemplateOperationResult, error)
	Update(ctx context.Context, callerID, id string, req dto.UpdateShiftTemplateRequest) (*models.TemplateOperationResult, error)
	Generate(ctx context.Context, callerID, id string) (*models.TemplateOperationResult, error)
	ExcludeDate(ctx context.Context, callerID, id string, req dto.ExcludeDateRequest) (*models.ShiftTemplate, error)
	Get(ctx context.Context, callerID, id string) (*models.ShiftTemplate, error)
	List(ctx context.Context, callerID string, query dto.ListShiftTemplatesQuery) ([]models.ShiftTemplate, *models.Pagination, error)
	Cleanup(ctx context.Context, callerID string, req dto.CleanupRequest) (*models.CleanupResult, error)
}

type runSummaryReader interface {
	LatestRun(ctx context.Context) (*models.RunSummary, error)
}

type runReportResolver interface {
	ResolveDownload(token string) (*service.ReportDownload, error)
}

// ShiftTemplateHandler exposes shift template management endpoints.
type ShiftTemplateHandler struct {
	templates shiftTemplateService
	runs      runSummaryReader
	reports   runReportResolver
}

// NewShiftTemplateHandler builds a handler. runs and reports may be nil when the runner or exports are disabled.
func NewShiftTemplateHandler(templates shiftTemplateService, runs runSummaryReader, reports runReportResolver) *ShiftTemplateHandler {
	return &ShiftTemplateHandler{templates: templates, runs: runs, reports: reports}
}

// Create godoc
// @Summary Create a recurring shift template
// @Description Persists the template keyed by base_shift_id, sweeps stale generated shifts and materializes the rolling window.
// @Tags ShiftTemplates
// @Accept json
// @Produce json
// @Param payload body dto.CreateShiftTemplateRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /shift-templates [post]
func (h *ShiftTemplateHandler) Create(c *gin.Context) {
	var req dto.CreateShiftTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid shift template payload"))
		return
	}
	result, err := h.templates.Create(c.Request.Context(), callerID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List shift templates
// @Tags ShiftTemplates
// @Produce json
// @Param teacherId query string false "Teacher ID"
// @Param activeOnly query bool false "Only active templates"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /shift-templates [get]
func (h *ShiftTemplateHandler) List(c *gin.Context) {
	query := dto.ListShiftTemplatesQuery{
		TeacherID:  strings.TrimSpace(c.Query("teacherId")),
		ActiveOnly: c.Query("activeOnly") == "true",
		Page:       parseQueryInt(c, "page", 1),
		PageSize:   parseQueryInt(c, "page_size", 20),
	}
	items, pagination, err := h.templates.List(c.Request.Context(), callerID(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination, middleware.ResponseMeta(c))
}

// Get godoc
// @Summary Get a shift template
// @Tags ShiftTemplates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /shift-templates/{id} [get]
func (h *ShiftTemplateHandler) Get(c *gin.Context) {
	tpl, err := h.templates.Get(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tpl)
}

// Update godoc
// @Summary Update a shift template
// @Description Omitted fields are left untouched. Schedule changes sweep and regenerate future shifts.
// @Tags ShiftTemplates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body dto.UpdateShiftTemplateRequest true "Patch payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /shift-templates/{id} [patch]
func (h *ShiftTemplateHandler) Update(c *gin.Context) {
	var req dto.UpdateShiftTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid shift template payload"))
		return
	}
	result, err := h.templates.Update(c.Request.Context(), callerID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// ExcludeDate godoc
// @Summary Exclude one calendar day from a template
// @Tags ShiftTemplates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body dto.ExcludeDateRequest true "Date to exclude (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /shift-templates/{id}/exclusions [post]
func (h *ShiftTemplateHandler) ExcludeDate(c *gin.Context) {
	var req dto.ExcludeDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exclusion payload"))
		return
	}
	tpl, err := h.templates.ExcludeDate(c.Request.Context(), callerID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tpl)
}

// Generate godoc
// @Summary Materialize a template's rolling window now
// @Tags ShiftTemplates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Router /shift-templates/{id}/generate [post]
func (h *ShiftTemplateHandler) Generate(c *gin.Context) {
	result, err := h.templates.Generate(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Cleanup godoc
// @Summary Delete future generated shifts
// @Tags ShiftTemplates
// @Accept json
// @Produce json
// @Param payload body dto.CleanupRequest false "Optional template scope"
// @Success 200 {object} response.Envelope
// @Router /shift-templates/cleanup [post]
func (h *ShiftTemplateHandler) Cleanup(c *gin.Context) {
	var req dto.CleanupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cleanup payload"))
			return
		}
	}
	if id := strings.TrimSpace(c.Query("templateId")); id != "" && req.TemplateID == nil {
		req.TemplateID = &id
	}
	result, err := h.templates.Cleanup(c.Request.Context(), callerID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// LatestRun godoc
// @Summary Latest daily runner summary
// @Tags ShiftTemplates
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /shift-templates/runs/latest [get]
func (h *ShiftTemplateHandler) LatestRun(c *gin.Context) {
	if h.runs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrPreconditionFailed, "template runner is disabled"))
		return
	}
	summary, err := h.runs.LatestRun(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, true)
	response.OK(c, summary, middleware.ResponseMeta(c))
}

// DownloadReport godoc
// @Summary Download a rendered run summary
// @Tags ShiftTemplates
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /shift-templates/runs/reports/{token} [get]
func (h *ShiftTemplateHandler) DownloadReport(c *gin.Context) {
	if h.reports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrPreconditionFailed, "run reports are disabled"))
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.reports.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck
	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read report"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), download.ContentType, download.File, nil)
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
