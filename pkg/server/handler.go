package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zpam/spam-classifier/pkg/metrics"
	"github.com/zpam/spam-classifier/pkg/pipeline"
	"github.com/zpam/spam-classifier/pkg/server/middleware"
)

const metricsSource = "http"

// Classifier is what the handlers need from a loaded model.
type Classifier interface {
	Classify(text string) (pipeline.Result, error)
	Explain(text string) (*pipeline.Explanation, error)
	Info() pipeline.Info
}

// HealthChecker reports the state of an external dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handler serves the classification API
type Handler struct {
	model   Classifier
	metrics *metrics.Metrics
	logger  *zap.Logger
	checks  map[string]HealthChecker
	started time.Time
}

// NewHandler creates a new handler over a loaded model
func NewHandler(model Classifier, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		model:   model,
		metrics: m,
		logger:  logger,
		checks:  make(map[string]HealthChecker),
		started: time.Now(),
	}
}

// AddHealthCheck registers a dependency reported by GET /health.
func (h *Handler) AddHealthCheck(name string, check HealthChecker) {
	h.checks[name] = check
}

// Info handles GET /
func (h *Handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "Email Spam Classifier",
		"status":  "active",
		"model":   h.model.Info(),
	})
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status     string            `json:"status"`
	Uptime     string            `json:"uptime"`
	Components map[string]string `json:"components"`
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := map[string]string{"model": "loaded"}
	healthy := true
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("component", name), zap.Error(err))
			components[name] = "unavailable"
			healthy = false
			continue
		}
		components[name] = "ok"
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, HealthStatus{
		Status:     status,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Components: components,
	})
}

// Predict handles POST /predict
func (h *Handler) Predict(c *gin.Context) {
	text, ok := h.bindText(c)
	if !ok {
		return
	}

	start := time.Now()
	result, err := h.model.Classify(text)
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordClassification(metricsSource, result.Category, result.Confidence, time.Since(start))
	}

	respondPredict(c, result)
}

// Explain handles POST /explain
func (h *Handler) Explain(c *gin.Context) {
	text, ok := h.bindText(c)
	if !ok {
		return
	}

	exp, err := h.model.Explain(text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "explanation": exp})
}

func (h *Handler) bindText(c *gin.Context) (string, bool) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if middleware.IsBodyTooLarge(err) {
			h.reject(c, http.StatusRequestEntityTooLarge, msgTooLarge, "too_large")
			return "", false
		}
		h.reject(c, http.StatusBadRequest, msgInvalidRequest, "invalid_request")
		return "", false
	}
	if req.Text == nil || strings.TrimSpace(*req.Text) == "" {
		h.reject(c, http.StatusBadRequest, msgTextRequired, "empty_text")
		return "", false
	}
	return *req.Text, true
}

func (h *Handler) reject(c *gin.Context, status int, detail, reason string) {
	if h.metrics != nil {
		h.metrics.RecordRejected(metricsSource, reason)
	}
	respondError(c, status, detail)
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, detail := mapError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("classification failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	respondError(c, status, detail)
}
