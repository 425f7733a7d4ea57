package models

import (
	"time"

	"github.com/google/uuid"
)

// One metered request, recorded after the rate-limit decision
type UsageLog struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time  `gorm:"index" json:"timestamp"`
	UserID         *uuid.UUID `gorm:"index" json:"user_id,omitempty"`
	Operation      string     `gorm:"index" json:"operation"`
	Tier           string     `json:"tier"`
	Method         string     `json:"method"`
	Path           string     `gorm:"index" json:"path"`
	StatusCode     int        `gorm:"index" json:"status_code"`
	ResponseTimeMs int        `json:"response_time_ms"`
	RateLimited    bool       `gorm:"index" json:"rate_limited"`
	IPAddress      string     `json:"ip_address"`
}

func (UsageLog) TableName() string {
	return "usage_logs"
}
