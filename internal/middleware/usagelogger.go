package middleware

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marginalia-app/marginalia-api/internal/models"
	"github.com/marginalia-app/marginalia-api/internal/repository"
)

// UsageRecorder buffers usage logs and batch-inserts them in the background,
// keeping the write off the request path.
type UsageRecorder struct {
	repo    *repository.UsageLogRepository
	mu      sync.RWMutex
	closed  bool
	entries chan models.UsageLog
	done    chan struct{}
}

func NewUsageRecorder(repo *repository.UsageLogRepository, bufferSize int) *UsageRecorder {
	r := &UsageRecorder{
		repo:    repo,
		entries: make(chan models.UsageLog, bufferSize),
		done:    make(chan struct{}),
	}

	go r.run()

	return r
}

func (r *UsageRecorder) run() {
	batch := make([]*models.UsageLog, 0, 100)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.repo.CreateBatch(context.Background(), batch); err != nil {
			log.Printf("[usage] failed to insert %d logs: %v", len(batch), err)
		}
		batch = make([]*models.UsageLog, 0, 100)
	}

	for {
		select {
		case entry, ok := <-r.entries:
			if !ok {
				flush()
				close(r.done)
				return
			}

			e := entry
			batch = append(batch, &e)

			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close flushes any buffered logs and stops the worker. Entries recorded
// after Close are dropped; callers should drain in-flight requests first.
func (r *UsageRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.entries)
	<-r.done
}

func (r *UsageRecorder) record(entry models.UsageLog) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	select {
	case r.entries <- entry:
	default:
		// Buffer full, drop rather than block the request
	}
}

// UsageLogger records each request's outcome, including whether it was
// rate limited and under which operation.
func UsageLogger(recorder *UsageRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := models.UsageLog{
			Timestamp:      start,
			Operation:      c.GetString(ContextRateLimitOperation),
			Tier:           c.GetString("tier"),
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(time.Since(start).Milliseconds()),
			RateLimited:    c.Writer.Status() == http.StatusTooManyRequests,
			IPAddress:      c.ClientIP(),
		}

		if id, err := uuid.Parse(c.GetString("user_id")); err == nil {
			entry.UserID = &id
		}

		recorder.record(entry)
	}
}
