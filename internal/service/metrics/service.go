package metrics

import (
	"context"
	"fmt"

	"cpaas-console/internal/domain/messaging"
	"cpaas-console/internal/domain/metrics"

	"go.uber.org/zap"
)

const (
	DefaultActivityLimit = 10
	MaxActivityLimit     = 50
	DefaultUsageDays     = 7
	MaxUsageDays         = 90
)

type Backend interface {
	MetricsSummary(ctx context.Context, token string) (*metrics.Summary, error)
	Usage(ctx context.Context, token string, days int) ([]metrics.UsagePoint, error)
}

type ActivityRepository interface {
	ListRecent(ctx context.Context, operatorID string, limit int) ([]*messaging.DispatchJob, error)
	GetJob(ctx context.Context, operatorID, jobID string) (*messaging.DispatchJob, []messaging.DispatchRecord, error)
}

type MetricsService struct {
	backend  Backend
	activity ActivityRepository
	logger   *zap.Logger
}

func NewMetricsService(backend Backend, activity ActivityRepository, logger *zap.Logger) *MetricsService {
	return &MetricsService{backend: backend, activity: activity, logger: logger}
}

func (s *MetricsService) Summary(ctx context.Context, token string) (*metrics.Summary, error) {
	summary, err := s.backend.MetricsSummary(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics summary: %w", err)
	}
	return summary, nil
}

// Usage returns one point per day; days is clamped to 1..90, 0 means 7.
func (s *MetricsService) Usage(ctx context.Context, token string, days int) ([]metrics.UsagePoint, error) {
	days = clamp(days, DefaultUsageDays, MaxUsageDays)
	points, err := s.backend.Usage(ctx, token, days)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	return points, nil
}

// Activity lists the operator's recent dispatch jobs.
func (s *MetricsService) Activity(ctx context.Context, operatorID string, limit int) ([]*messaging.DispatchJob, error) {
	limit = clamp(limit, DefaultActivityLimit, MaxActivityLimit)
	jobs, err := s.activity.ListRecent(ctx, operatorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return jobs, nil
}

// JobDetail is one job with its per-recipient outcomes.
type JobDetail struct {
	Job     *messaging.DispatchJob     `json:"job"`
	Records []messaging.DispatchRecord `json:"records"`
}

func (s *MetricsService) Job(ctx context.Context, operatorID, jobID string) (*JobDetail, error) {
	job, records, err := s.activity.GetJob(ctx, operatorID, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatch job: %w", err)
	}
	return &JobDetail{Job: job, Records: records}, nil
}

func clamp(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
