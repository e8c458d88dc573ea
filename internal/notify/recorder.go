// internal/notify/recorder.go
package notify

import (
	"context"
	"fmt"
	"time"

	"access-workflow/internal/common/logger"
	"access-workflow/internal/models"
)

// DeliveryRecorder receives one DeliveryAttempt per channel send. Recording
// failures are the recorder's problem; they never reach the fanout caller.
type DeliveryRecorder interface {
	Record(ctx context.Context, attempt models.DeliveryAttempt)
}

// LogRecorder writes attempts to the structured log.
type LogRecorder struct {
	logger logger.Logger
}

func NewLogRecorder(log logger.Logger) *LogRecorder {
	return &LogRecorder{logger: log}
}

func (r *LogRecorder) Record(_ context.Context, a models.DeliveryAttempt) {
	fields := map[string]interface{}{
		"notificationId": a.NotificationID,
		"userId":         a.UserID,
		"type":           string(a.Type),
		"channel":        string(a.Channel),
		"outcome":        string(a.Outcome),
		"latencyMs":      a.LatencyMs,
		"traceId":        a.TraceID,
	}
	if len(a.Detail) > 0 {
		fields["detail"] = a.Detail
	}

	if a.Outcome == models.DeliveryFailure {
		fields["error"] = a.Error
		r.logger.Warn("Notification delivery failed", fields)
		return
	}
	r.logger.Info("Notification delivered", fields)
}

// DocumentIndexer is satisfied by database.ElasticsearchClient.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

// ElasticsearchRecorder indexes attempts for later search. Indexing runs
// detached from the caller with its own timeout.
type ElasticsearchRecorder struct {
	indexer DocumentIndexer
	index   string
	timeout time.Duration
	logger  logger.Logger
}

func NewElasticsearchRecorder(indexer DocumentIndexer, index string, timeout time.Duration, log logger.Logger) *ElasticsearchRecorder {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ElasticsearchRecorder{indexer: indexer, index: index, timeout: timeout, logger: log}
}

func (r *ElasticsearchRecorder) Record(ctx context.Context, a models.DeliveryAttempt) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	id := fmt.Sprintf("%s-%s", a.NotificationID, a.Channel)
	if err := r.indexer.IndexDocument(ctx, r.index, id, a); err != nil {
		r.logger.Warn("Failed to index delivery attempt", map[string]interface{}{
			"notificationId": a.NotificationID,
			"channel":        string(a.Channel),
			"index":          r.index,
			"error":          err.Error(),
		})
	}
}

// MultiRecorder fans an attempt out to several recorders in order.
type MultiRecorder []DeliveryRecorder

func (m MultiRecorder) Record(ctx context.Context, a models.DeliveryAttempt) {
	for _, r := range m {
		r.Record(ctx, a)
	}
}
