// internal/notify/fanout.go
package notify

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"access-workflow/internal/common/errors"
	"access-workflow/internal/common/logger"
	"access-workflow/internal/common/metrics"
	"access-workflow/internal/common/observability"
	"access-workflow/internal/directory"
	"access-workflow/internal/models"
	"access-workflow/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultChannelTimeout bounds a single channel send when none is configured.
const DefaultChannelTimeout = 5 * time.Second

// Notifier is what the workflow needs from the fanout.
type Notifier interface {
	Notify(ctx context.Context, userID string, payload models.Payload) (string, error)
}

// Route pairs a channel sender with its send timeout.
type Route struct {
	Sender  ChannelSender
	Timeout time.Duration
}

// FanoutOptions configures a Fanout. Nil recorder means log only.
type FanoutOptions struct {
	Routes        []Route
	Recorder      DeliveryRecorder
	Observability *observability.Observability
	Now           func() time.Time
	NewID         func() string
}

// Fanout writes the in-app notification and then attempts every eligible
// external channel concurrently in the background. Channel outcomes never
// affect the result.
type Fanout struct {
	notifications store.NotificationStore
	directory     directory.UserDirectory
	routes        map[models.Channel]Route
	recorder      DeliveryRecorder
	obs           *observability.Observability
	tracer        trace.Tracer
	logger        logger.Logger
	now           func() time.Time
	newID         func() string

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewFanout(
	notifications store.NotificationStore,
	dir directory.UserDirectory,
	opts FanoutOptions,
	log logger.Logger,
) *Fanout {
	log = log.WithFields(map[string]interface{}{"component": "notification_fanout"})

	routes := make(map[models.Channel]Route, len(opts.Routes))
	for _, r := range opts.Routes {
		if r.Sender == nil {
			continue
		}
		if r.Timeout <= 0 {
			r.Timeout = DefaultChannelTimeout
		}
		routes[r.Sender.Channel()] = r
	}

	f := &Fanout{
		notifications: notifications,
		directory:     dir,
		routes:        routes,
		recorder:      opts.Recorder,
		obs:           opts.Observability,
		tracer:        opts.Observability.Tracer(),
		logger:        log,
		now:           opts.Now,
		newID:         opts.NewID,
	}
	if f.recorder == nil {
		f.recorder = NewLogRecorder(log)
	}
	if f.now == nil {
		f.now = func() time.Time { return time.Now().UTC() }
	}
	if f.newID == nil {
		f.newID = func() string { return uuid.New().String() }
	}
	return f
}

// Notify persists one notification for userID and returns its id once the
// record is durable. External channels are attempted after it returns; use
// Wait or Close to drain them. Failure to persist is the only error besides
// an unrenderable payload.
func (f *Fanout) Notify(ctx context.Context, userID string, payload models.Payload) (string, error) {
	if userID == "" {
		return "", errors.NewInvalidArgumentError("notification recipient is required")
	}

	rendered, err := Render(payload)
	if err != nil {
		return "", errors.NewInvalidArgumentError(err.Error())
	}

	ctx, span := f.tracer.Start(ctx, "notify.Fanout.Notify", trace.WithAttributes(
		attribute.String("notification.type", string(payload.Type())),
		attribute.String("user.id", userID),
	))
	defer span.End()

	n := &models.Notification{
		ID:        f.newID(),
		UserID:    userID,
		Type:      payload.Type(),
		Title:     rendered.Title,
		Body:      rendered.Body,
		Payload:   payload,
		CreatedAt: f.now(),
	}

	if err := f.notifications.Insert(ctx, n); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert notification")
		if !errors.HasCode(err, errors.ErrCodeStoreFailure) {
			err = errors.NewStoreFailureError("insert notification", err)
		}
		return "", err
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	span.SetAttributes(attribute.String("notification.id", n.ID))

	log := f.logger.WithFields(map[string]interface{}{
		"notificationId": n.ID,
		"userId":         userID,
		"type":           string(n.Type),
	})

	if !f.track() {
		log.Warn("Fanout closed, skipping external channels", nil)
		return n.ID, nil
	}
	go func() {
		defer f.inflight.Done()
		f.deliverAll(context.WithoutCancel(ctx), n, payload, log)
	}()

	return n.ID, nil
}

// track registers one background channel phase. It reports false once
// Close has started.
func (f *Fanout) track() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.inflight.Add(1)
	return true
}

// Wait blocks until every channel phase started so far has recorded its attempts.
func (f *Fanout) Wait() {
	f.inflight.Wait()
}

// Close stops accepting channel work and waits for in-flight deliveries
// until ctx is done.
func (f *Fanout) Close(ctx context.Context) error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification fanout: %w", ctx.Err())
	}
}

// deliverAll resolves the recipient, sends on every eligible channel
// concurrently and records the attempts.
func (f *Fanout) deliverAll(ctx context.Context, n *models.Notification, payload models.Payload, log logger.Logger) {
	ctx, span := f.tracer.Start(ctx, "notify.Fanout.deliverAll")
	defer span.End()

	user, err := f.directory.GetUser(ctx, n.UserID)
	if err != nil {
		log.Warn("Recipient lookup failed, skipping external channels", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	routes := f.eligibleRoutes(user)
	if len(routes) == 0 {
		log.Debug("No external channel enabled for recipient", nil)
		return
	}

	addr := Address{DisplayName: user.DisplayName, PushTokens: user.PushTokens, Email: user.Email}
	msg := Message{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		Body:           n.Body,
		Payload:        payload,
	}

	attempts := make([]models.DeliveryAttempt, len(routes))
	var wg sync.WaitGroup
	for i, route := range routes {
		wg.Add(1)
		go func(i int, route Route) {
			defer wg.Done()
			attempts[i] = f.deliver(ctx, route, addr, msg, log)
		}(i, route)
	}
	wg.Wait()

	for _, a := range attempts {
		f.recorder.Record(ctx, a)
	}
}

// eligibleRoutes picks push before email so attempts are recorded in a stable order.
func (f *Fanout) eligibleRoutes(u *models.User) []Route {
	var out []Route
	if r, ok := f.routes[models.ChannelPush]; ok && u.Preferences.PushEnabled && len(u.PushTokens) > 0 {
		out = append(out, r)
	}
	if r, ok := f.routes[models.ChannelEmail]; ok && u.Preferences.EmailEnabled && u.Email != "" {
		out = append(out, r)
	}
	return out
}

// deliver runs one channel send, detached from the caller's cancellation and
// bounded by the route timeout. A panicking sender counts as a failure.
func (f *Fanout) deliver(parent context.Context, route Route, addr Address, msg Message, log logger.Logger) (attempt models.DeliveryAttempt) {
	channel := route.Sender.Channel()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), route.Timeout)
	defer cancel()

	ctx, span := f.tracer.Start(ctx, "notify.send."+string(channel))
	defer span.End()

	start := time.Now()
	attempt = models.DeliveryAttempt{
		NotificationID: msg.NotificationID,
		UserID:         msg.UserID,
		Type:           msg.Type,
		Channel:        channel,
	}
	if sc := span.SpanContext(); sc.HasTraceID() {
		attempt.TraceID = sc.TraceID().String()
	}

	receipt, err := f.send(ctx, route.Sender, addr, msg, log)

	latency := time.Since(start)
	attempt.LatencyMs = latency.Milliseconds()
	attempt.Timestamp = f.now()
	attempt.Detail = receiptDetail(receipt)

	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = errors.NewChannelDeliveryError(string(channel),
				errors.NewTimeoutError(string(channel), err)).
				WithMetadata("timeout", route.Timeout.String())
		}
		attempt.Outcome = models.DeliveryFailure
		attempt.Error = err.Error()
		attempt.Detail = mergeDetail(attempt.Detail, errorDetail(err))

		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		log.Warn("Channel delivery failed", map[string]interface{}{
			"channel":   string(channel),
			"error":     err.Error(),
			"detail":    attempt.Detail,
			"latencyMs": attempt.LatencyMs,
		})
	} else {
		attempt.Outcome = models.DeliverySuccess
	}

	metrics.ChannelDeliveries.WithLabelValues(string(channel), string(attempt.Outcome)).Inc()
	metrics.ChannelDeliveryDuration.WithLabelValues(string(channel)).Observe(latency.Seconds())
	f.obs.RecordDelivery(ctx, string(channel), string(attempt.Outcome), latency)

	return attempt
}

type sendResult struct {
	receipt *Receipt
	err     error
}

// send runs the sender in its own goroutine so a provider client that ignores
// ctx still cannot hold the caller past the deadline. The buffered result
// lets an abandoned send finish without blocking.
func (f *Fanout) send(ctx context.Context, sender ChannelSender, addr Address, msg Message, log logger.Logger) (*Receipt, error) {
	channel := sender.Channel()
	results := make(chan sendResult, 1)

	go func() {
		var res sendResult
		defer func() {
			if r := recover(); r != nil {
				res = sendResult{err: errors.NewChannelDeliveryError(string(channel), fmt.Errorf("sender panicked: %v", r))}
				log.Error("Channel sender panicked", map[string]interface{}{
					"channel": string(channel),
					"panic":   fmt.Sprint(r),
					"stack":   string(debug.Stack()),
				})
			}
			results <- res
		}()
		res.receipt, res.err = sender.Send(ctx, addr, msg)
	}()

	select {
	case res := <-results:
		return res.receipt, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func receiptDetail(r *Receipt) map[string]interface{} {
	if r == nil {
		return nil
	}
	d := map[string]interface{}{
		"provider":  r.Provider,
		"delivered": r.Delivered,
		"failed":    r.Failed,
	}
	if len(r.MessageIDs) > 0 {
		d["messageIds"] = r.MessageIDs
	}
	return d
}

func errorDetail(err error) map[string]interface{} {
	var stdErr *errors.StandardError
	if !stderrors.As(err, &stdErr) {
		return nil
	}
	d := make(map[string]interface{}, len(stdErr.Metadata)+1)
	for k, v := range stdErr.Metadata {
		d[k] = v
	}
	d["errorCode"] = firstNonEmpty(d["errorCode"], string(stdErr.Code))
	return d
}

func firstNonEmpty(v interface{}, fallback string) interface{} {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func mergeDetail(a, b map[string]interface{}) map[string]interface{} {
	if len(a) == 0 {
		return b
	}
	for k, v := range b {
		a[k] = v
	}
	return a
}
