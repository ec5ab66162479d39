// internal/handlers/metrics/metrics_handler.go
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"cpaas-console/internal/domain/messaging"
	"cpaas-console/internal/domain/metrics"
	"cpaas-console/internal/middleware"
	"cpaas-console/internal/pkg/response"
	metricsvc "cpaas-console/internal/service/metrics"

	"github.com/gin-gonic/gin"
)

type Service interface {
	Summary(ctx context.Context, token string) (*metrics.Summary, error)
	Usage(ctx context.Context, token string, days int) ([]metrics.UsagePoint, error)
	Activity(ctx context.Context, operatorID string, limit int) ([]*messaging.DispatchJob, error)
	Job(ctx context.Context, operatorID, jobID string) (*metricsvc.JobDetail, error)
}

type MetricsHandler struct {
	metricsService Service
}

func NewMetricsHandler(metricsService Service) *MetricsHandler {
	return &MetricsHandler{metricsService: metricsService}
}

func (h *MetricsHandler) Summary(c *gin.Context) {
	token, _ := middleware.GetBackendToken(c)
	summary, err := h.metricsService.Summary(c.Request.Context(), token)
	if err != nil {
		response.FromError(c, "failed to load metrics", err)
		return
	}
	response.Success(c, http.StatusOK, "metrics summary", summary)
}

func (h *MetricsHandler) Usage(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))

	token, _ := middleware.GetBackendToken(c)
	points, err := h.metricsService.Usage(c.Request.Context(), token, days)
	if err != nil {
		response.FromError(c, "failed to load usage", err)
		return
	}
	response.Success(c, http.StatusOK, "usage retrieved", points)
}

func (h *MetricsHandler) Activity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	jobs, err := h.metricsService.Activity(c.Request.Context(), middleware.MustGetOperatorID(c), limit)
	if err != nil {
		response.FromError(c, "failed to load activity", err)
		return
	}
	response.Success(c, http.StatusOK, "recent activity", gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func (h *MetricsHandler) Job(c *gin.Context) {
	detail, err := h.metricsService.Job(c.Request.Context(), middleware.MustGetOperatorID(c), c.Param("id"))
	if err != nil {
		response.FromError(c, "failed to load dispatch job", err)
		return
	}
	response.Success(c, http.StatusOK, "dispatch job", detail)
}
