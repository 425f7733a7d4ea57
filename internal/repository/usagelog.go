package repository

import (
	"context"
	"time"

	"github.com/marginalia-app/marginalia-api/internal/models"
	"github.com/marginalia-app/marginalia-api/internal/storage"
)

type UsageLogRepository struct {
	db *storage.Postgres
}

func NewUsageLogRepository(db *storage.Postgres) *UsageLogRepository {
	return &UsageLogRepository{db: db}
}

// Inserts usage logs in bulk (for the batching worker)
func (r *UsageLogRepository) CreateBatch(ctx context.Context, logs []*models.UsageLog) error {
	if len(logs) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).Create(&logs).Error
}

// Counts requests in a time range
func (r *UsageLogRepository) CountByTimeRange(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageLog{}).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Count(&count).Error

	return count, err
}

// Counts requests that were turned away with a 429
func (r *UsageLogRepository) CountRateLimited(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageLog{}).
		Where("rate_limited = ? AND timestamp BETWEEN ? AND ?", true, from, to).
		Count(&count).Error

	return count, err
}

// Calculates average response time
func (r *UsageLogRepository) GetAverageResponseTime(ctx context.Context, from, to time.Time) (float64, error) {
	var avg float64

	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageLog{}).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Select("AVG(response_time_ms)").
		Scan(&avg).Error

	return avg, err
}

// Returns request and denial counts grouped by operation
func (r *UsageLogRepository) CountByOperation(ctx context.Context, from, to time.Time) ([]map[string]interface{}, error) {
	var results []map[string]interface{}

	rows, err := r.db.DB.WithContext(ctx).
		Model(&models.UsageLog{}).
		Select("operation, COUNT(*) as count, COUNT(*) FILTER (WHERE rate_limited) as denied").
		Where("timestamp BETWEEN ? AND ?", from, to).
		Group("operation").
		Order("count DESC").
		Rows()

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var operation string
		var count, denied int64

		if err := rows.Scan(&operation, &count, &denied); err != nil {
			return nil, err
		}

		results = append(results, map[string]interface{}{
			"operation": operation,
			"count":     count,
			"denied":    denied,
		})
	}

	return results, nil
}

// Deletes logs older than the specified time
func (r *UsageLogRepository) DeleteOldLogs(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.UsageLog{})

	return result.RowsAffected, result.Error
}
