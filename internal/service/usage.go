package service

import (
	"context"
	"time"

	"github.com/marginalia-app/marginalia-api/internal/repository"
)

type UsageService struct {
	repository *repository.UsageLogRepository
}

func NewUsageService(repo *repository.UsageLogRepository) *UsageService {
	return &UsageService{repository: repo}
}

// Holds usage summary data for the admin dashboard
type UsageSummary struct {
	TotalRequests   int64                    `json:"total_requests"`
	RateLimited     int64                    `json:"rate_limited"`
	DenialRate      float64                  `json:"denial_rate"`
	AvgResponseTime float64                  `json:"avg_response_time_ms"`
	ByOperation     []map[string]interface{} `json:"by_operation"`
}

// Retrieves a usage summary for a time range
func (s *UsageService) GetSummary(ctx context.Context, from, to time.Time) (*UsageSummary, error) {
	summary := &UsageSummary{}

	totalRequests, err := s.repository.CountByTimeRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.TotalRequests = totalRequests

	if totalRequests == 0 {
		return summary, nil
	}

	rateLimited, err := s.repository.CountRateLimited(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.RateLimited = rateLimited
	summary.DenialRate = float64(rateLimited) / float64(totalRequests)

	avgResponseTime, err := s.repository.GetAverageResponseTime(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.AvgResponseTime = avgResponseTime

	byOperation, err := s.repository.CountByOperation(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.ByOperation = byOperation

	return summary, nil
}

// Removes usage logs older than the retention window
func (s *UsageService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repository.DeleteOldLogs(ctx, time.Now().Add(-retention))
}
