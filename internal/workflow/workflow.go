// Package workflow holds the access request state machine. It owns the
// pending -> accepted | rejected transitions and triggers one notification
// per committed transition.
package workflow

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"access-workflow/internal/common/errors"
	"access-workflow/internal/common/logger"
	"access-workflow/internal/common/metrics"
	"access-workflow/internal/common/observability"
	"access-workflow/internal/directory"
	"access-workflow/internal/models"
	"access-workflow/internal/notify"
	"access-workflow/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type CreateInput struct {
	RequesterID string
	TargetID    string
	Message     string
}

type RespondInput struct {
	RequestID string
	CallerID  string
	Response  string
	Message   string
}

type ListInput struct {
	CallerID string
	Role     models.ListRole
	Status   models.RequestStatus
	Limit    int
}

// Options carries the optional collaborators of a Workflow.
type Options struct {
	Observability *observability.Observability
	Now           func() time.Time
	NewID         func() string
}

type Workflow struct {
	requests  store.RequestStore
	directory directory.UserDirectory
	notifier  notify.Notifier
	tracer    trace.Tracer
	logger    logger.Logger
	now       func() time.Time
	newID     func() string
}

func New(
	requests store.RequestStore,
	dir directory.UserDirectory,
	notifier notify.Notifier,
	opts Options,
	log logger.Logger,
) *Workflow {
	w := &Workflow{
		requests:  requests,
		directory: dir,
		notifier:  notifier,
		tracer:    opts.Observability.Tracer(),
		logger:    log.WithFields(map[string]interface{}{"component": "access_workflow"}),
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if w.now == nil {
		w.now = func() time.Time { return time.Now().UTC() }
	}
	if w.newID == nil {
		w.newID = func() string { return uuid.New().String() }
	}
	return w
}

// Create opens a pending request from RequesterID to TargetID and notifies
// the target once the request is stored.
func (w *Workflow) Create(ctx context.Context, in CreateInput) (_ *models.AccessRequest, err error) {
	ctx, span := w.tracer.Start(ctx, "workflow.Create", trace.WithAttributes(
		attribute.String("requester.id", in.RequesterID),
		attribute.String("target.id", in.TargetID),
	))
	defer func() { endSpan(span, "create", err) }()

	in.RequesterID = strings.TrimSpace(in.RequesterID)
	in.TargetID = strings.TrimSpace(in.TargetID)
	if in.RequesterID == "" || in.TargetID == "" {
		return nil, errors.NewInvalidArgumentError("requesterId and targetId are required")
	}
	if in.RequesterID == in.TargetID {
		return nil, errors.NewInvalidArgumentError("cannot request access from yourself")
	}
	if err := checkMessage(in.Message); err != nil {
		return nil, err
	}

	requester, err := w.directory.GetUser(ctx, in.RequesterID)
	if err != nil {
		return nil, err
	}
	if _, err := w.directory.GetUser(ctx, in.TargetID); err != nil {
		return nil, err
	}

	active, err := w.requests.FindActive(ctx, in.RequesterID, in.TargetID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, errors.NewConflictError("already requested", active.ID).
			WithMetadata("requestId", active.ID).
			WithMetadata("status", string(active.Status))
	}

	req := &models.AccessRequest{
		ID:          w.newID(),
		RequesterID: in.RequesterID,
		TargetID:    in.TargetID,
		Message:     in.Message,
		Status:      models.StatusPending,
		CreatedAt:   w.now(),
	}
	if err := w.requests.Insert(ctx, req); err != nil {
		return nil, err
	}
	metrics.AccessRequestsCreated.Inc()
	span.SetAttributes(attribute.String("request.id", req.ID))

	w.logger.Info("Access request created", map[string]interface{}{
		"requestId":   req.ID,
		"requesterId": req.RequesterID,
		"targetId":    req.TargetID,
	})

	w.notify(ctx, req.TargetID, models.RequestCreatedPayload{
		RequestID:     req.ID,
		RequesterID:   req.RequesterID,
		RequesterName: requester.DisplayName,
		Message:       req.Message,
	})

	return req, nil
}

// Respond moves a pending request to accepted or rejected. Only the target
// may respond and only once.
func (w *Workflow) Respond(ctx context.Context, in RespondInput) (_ *models.AccessRequest, err error) {
	ctx, span := w.tracer.Start(ctx, "workflow.Respond", trace.WithAttributes(
		attribute.String("request.id", in.RequestID),
		attribute.String("caller.id", in.CallerID),
	))
	defer func() { endSpan(span, "respond", err) }()

	outcome, ok := models.ParseResponse(in.Response)
	if !ok {
		return nil, errors.NewInvalidArgumentError("response must be accepted or rejected")
	}
	in.RequestID = strings.TrimSpace(in.RequestID)
	in.CallerID = strings.TrimSpace(in.CallerID)
	if in.RequestID == "" || in.CallerID == "" {
		return nil, errors.NewInvalidArgumentError("requestId and caller are required")
	}
	if err := checkMessage(in.Message); err != nil {
		return nil, err
	}

	req, err := w.requests.Get(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if req.TargetID != in.CallerID {
		return nil, errors.NewUnauthorizedError("only the target of a request may respond to it")
	}
	if req.Status != models.StatusPending {
		return nil, errors.NewConflictError("access request already responded",
			"request "+req.ID+" is "+string(req.Status))
	}

	updated, err := w.requests.UpdateStatus(ctx, req.ID, models.StatusPending, outcome, in.Message, w.now())
	if err != nil {
		return nil, err
	}
	metrics.AccessRequestsResponded.WithLabelValues(string(outcome)).Inc()

	w.logger.Info("Access request responded", map[string]interface{}{
		"requestId": updated.ID,
		"targetId":  updated.TargetID,
		"outcome":   string(outcome),
	})

	targetName := ""
	if target, err := w.directory.GetUser(ctx, updated.TargetID); err == nil {
		targetName = target.DisplayName
	}
	w.notify(ctx, updated.RequesterID, models.RequestRespondedPayload{
		RequestID:  updated.ID,
		TargetID:   updated.TargetID,
		TargetName: targetName,
		Outcome:    outcome,
		Message:    in.Message,
	})

	return updated, nil
}

// Get returns a request to either of its two parties.
func (w *Workflow) Get(ctx context.Context, id, callerID string) (*models.AccessRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidArgumentError("request id is required")
	}
	req, err := w.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != callerID && req.TargetID != callerID {
		return nil, errors.NewUnauthorizedError("not a party to this request")
	}
	return req, nil
}

func (w *Workflow) List(ctx context.Context, in ListInput) ([]*models.AccessRequest, error) {
	if in.CallerID == "" {
		return nil, errors.NewInvalidArgumentError("caller is required")
	}
	switch in.Role {
	case "":
		in.Role = models.RoleIncoming
	case models.RoleIncoming, models.RoleOutgoing:
	default:
		return nil, errors.NewInvalidArgumentError("role must be incoming or outgoing")
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, errors.NewInvalidArgumentError("unknown status " + string(in.Status))
	}
	if in.Limit < 0 {
		return nil, errors.NewInvalidArgumentError("limit must not be negative")
	}

	return w.requests.List(ctx, models.RequestFilter{
		UserID: in.CallerID,
		Role:   in.Role,
		Status: in.Status,
		Limit:  in.Limit,
	})
}

// notify hands the payload to the fanout. The transition has already
// committed, so a failure here is only logged.
func (w *Workflow) notify(ctx context.Context, userID string, payload models.Payload) {
	id, err := w.notifier.Notify(ctx, userID, payload)
	if err != nil {
		w.logger.Error("Failed to create notification", map[string]interface{}{
			"userId": userID,
			"type":   string(payload.Type()),
			"error":  err.Error(),
		})
		return
	}
	w.logger.Debug("Notification created", map[string]interface{}{
		"notificationId": id,
		"userId":         userID,
	})
}

func checkMessage(msg string) error {
	if utf8.RuneCountInString(msg) > models.MaxMessageLength {
		return errors.NewInvalidArgumentError("message exceeds 500 characters")
	}
	return nil
}

func endSpan(span trace.Span, operation string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.CodeOf(err)))
		metrics.AccessRequestsRejectedOps.WithLabelValues(operation, string(errors.CodeOf(err))).Inc()
	}
	span.End()
}
