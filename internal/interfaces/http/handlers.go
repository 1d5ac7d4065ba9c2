package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/expense-screening/internal/application/port"
	"github.com/garyjia/expense-screening/internal/application/report"
	"github.com/garyjia/expense-screening/internal/application/screening"
	"github.com/garyjia/expense-screening/internal/application/service"
	"github.com/garyjia/expense-screening/internal/domain/entity"
	"github.com/garyjia/expense-screening/internal/domain/policy"
)

const (
	// HeaderRunID carries the run ID of a screening call
	HeaderRunID = "X-Run-ID"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	screening service.ScreeningService
	renderer  service.ReportRenderer
	health    HealthChecker
	config    ServerConfig
	logger    Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	screeningService service.ScreeningService,
	renderer service.ReportRenderer,
	health HealthChecker,
	config ServerConfig,
	logger Logger,
) *Handlers {
	return &Handlers{
		screening: screeningService,
		renderer:  renderer,
		health:    health,
		config:    config,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Components interface{} `json:"components,omitempty"`
}

// ReportResponse is the body of a summary report call
type ReportResponse struct {
	Summary      *report.Summary `json:"summary"`
	Narrative    string          `json:"narrative,omitempty"`
	NotifyStatus string          `json:"notify_status"`
	Recorded     bool            `json:"recorded"`
	Archived     bool            `json:"archived"`
}

// TierView is the limit table of one tier
type TierView struct {
	Tier   policy.Tier    `json:"tier"`
	Limits []policy.Entry `json:"limits"`
}

// CatalogView is the full policy catalog
type CatalogView struct {
	Version string            `json:"version"`
	Tiers   []TierView        `json:"tiers"`
	Rules   []policy.RuleSpec `json:"rules,omitempty"`
}

// ListRunsRequest represents query parameters for listing runs
type ListRunsRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.config.Version,
	}

	code := http.StatusOK
	if h.health != nil {
		status := h.health.Health(c.Request.Context())
		response.Components = status.Components
		if !status.Overall {
			response.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, Response{
		Success: code == http.StatusOK,
		Data:    response,
	})
}

// Screen handles POST /api/v1/screen. The body comes back in the same
// shape with every record annotated.
func (h *Handlers) Screen(c *gin.Context) {
	result, ok := h.runScreening(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result.Output)
}

// ScreenReport handles POST /api/v1/screen/report
func (h *Handlers) ScreenReport(c *gin.Context) {
	result, ok := h.runScreening(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: ReportResponse{
			Summary:      result.Summary,
			Narrative:    result.Narrative,
			NotifyStatus: result.NotifyStatus,
			Recorded:     result.Recorded,
			Archived:     result.Archived,
		},
	})
}

// ScreenReportXLSX handles POST /api/v1/screen/report.xlsx
func (h *Handlers) ScreenReportXLSX(c *gin.Context) {
	if h.renderer == nil {
		h.fail(c, http.StatusNotImplemented, "xlsx export is not available")
		return
	}

	result, ok := h.runScreening(c)
	if !ok {
		return
	}

	content, err := h.renderer.Bytes(result.Summary)
	if err != nil {
		h.logger.Error("Failed to render report", "run_id", result.Summary.RunID, "error", err)
		h.fail(c, http.StatusInternalServerError, "failed to render report")
		return
	}
	h.sendWorkbook(c, result.Summary.RunID, content)
}

// ListPolicies handles GET /api/v1/policies
func (h *Handlers) ListPolicies(c *gin.Context) {
	catalog := h.screening.Catalog()

	view := CatalogView{
		Version: catalog.Version(),
		Rules:   catalog.Rules(),
	}
	for _, tier := range catalog.DefinedTiers() {
		tp, err := catalog.Tier(tier)
		if err != nil {
			continue
		}
		view.Tiers = append(view.Tiers, tierView(tp))
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// GetPolicy handles GET /api/v1/policies/:tier
func (h *Handlers) GetPolicy(c *gin.Context) {
	tier := policy.Tier(c.Param("tier"))

	tp, err := h.screening.Catalog().Tier(tier)
	if err != nil {
		if errors.Is(err, policy.ErrUnknownTier) {
			h.fail(c, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("Failed to read tier policy", "tier", tier, "error", err)
		h.fail(c, http.StatusInternalServerError, "failed to read tier policy")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: tierView(tp)})
}

// ListRuns handles GET /api/v1/runs
func (h *Handlers) ListRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}

	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	runs, err := h.screening.ListRuns(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.serviceError(c, "Failed to list runs", err)
		return
	}

	if runs == nil {
		runs = []*entity.ScreeningRun{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: runs})
}

// GetRun handles GET /api/v1/runs/:id
func (h *Handlers) GetRun(c *gin.Context) {
	id, ok := h.runID(c)
	if !ok {
		return
	}

	run, err := h.screening.GetRun(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, "Failed to get run", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: run})
}

// GetRunReport handles GET /api/v1/runs/:id/report.xlsx
func (h *Handlers) GetRunReport(c *gin.Context) {
	id, ok := h.runID(c)
	if !ok {
		return
	}

	content, err := h.screening.ArchivedReport(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, "Failed to read archived report", err)
		return
	}
	h.sendWorkbook(c, id, content)
}

// runScreening decodes the body and screens it. It writes the error
// response itself and returns false when the call failed.
func (h *Handlers) runScreening(c *gin.Context) (*service.RunResult, bool) {
	opts := service.RunOptions{Source: entity.SourceAPI}
	var err error
	if opts.Notify, err = queryBool(c, "notify"); err != nil {
		h.fail(c, http.StatusBadRequest, "notify must be a boolean")
		return nil, false
	}
	if opts.Narrate, err = queryBool(c, "narrate"); err != nil {
		h.fail(c, http.StatusBadRequest, "narrate must be a boolean")
		return nil, false
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, h.config.MaxBodyBytes)
	input, err := screening.Decode(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		h.fail(c, http.StatusBadRequest, err.Error())
		return nil, false
	}

	result, err := h.screening.Screen(c.Request.Context(), input, opts)
	if err != nil {
		if errors.Is(err, screening.ErrInvalidInputShape) {
			h.fail(c, http.StatusBadRequest, err.Error())
			return nil, false
		}
		h.logger.Error("Screening failed", "error", err)
		h.fail(c, http.StatusInternalServerError, "screening failed")
		return nil, false
	}

	c.Header(HeaderRunID, result.Summary.RunID)
	return result, true
}

func (h *Handlers) runID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid run ID")
		return "", false
	}
	return id, true
}

func (h *Handlers) serviceError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrLedgerDisabled), errors.Is(err, service.ErrArchiveDisabled):
		h.fail(c, http.StatusNotImplemented, err.Error())
	case errors.Is(err, port.ErrNotFound):
		h.fail(c, http.StatusNotFound, "run not found")
	default:
		h.logger.Error(msg, "error", err)
		h.fail(c, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handlers) sendWorkbook(c *gin.Context, runID string, content []byte) {
	c.Header(HeaderRunID, runID)
	c.Header("Content-Disposition", `attachment; filename="`+runID+`.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, content)
}

func (h *Handlers) fail(c *gin.Context, code int, msg string) {
	c.JSON(code, Response{Success: false, Error: msg})
}

func queryBool(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func tierView(tp policy.TierPolicy) TierView {
	return TierView{Tier: tp.Tier(), Limits: tp.Entries()}
}
