package createaccessrequest

import (
	"context"
	"fmt"
	"time"

	"access-workflow/internal/common/camunda"
	"access-workflow/internal/common/config"
	"access-workflow/internal/common/errors"
	"access-workflow/internal/common/logger"
	"access-workflow/internal/common/metrics"
	"access-workflow/internal/common/observability"
	"access-workflow/internal/common/validation"
	"access-workflow/internal/workflow"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "access-request.create"

type Handler struct {
	config       *Config
	logger       logger.Logger
	creator      Creator
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Workflow      Creator
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", ConfigKey, err)
	}
	if opts.Workflow == nil {
		return nil, fmt.Errorf("workflow is required for %s", ConfigKey)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured(logger.Options{Level: "info", Format: "json"})
	}
	log = log.WithFields(map[string]interface{}{"worker": TaskType})

	return &Handler{
		config:       workerConfig,
		logger:       log,
		creator:      opts.Workflow,
		errorHandler: errors.NewErrorHandler(log),
		obs:          opts.Observability,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing access request creation", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	output, err := h.process(ctx, job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.obs.RecordJobProcessed(ctx, "failed")
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return err
	}

	if err := camunda.CompleteJob(ctx, client, job, map[string]interface{}{
		"accessRequestId":     output.AccessRequestID,
		"accessRequestStatus": string(output.AccessRequestStatus),
	}); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return err
	}

	elapsed := time.Since(start)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	h.obs.RecordJobProcessed(ctx, "completed")
	h.obs.RecordJobDuration(ctx, elapsed, "completed")

	h.logger.Info("Access request created from process", map[string]interface{}{
		"jobKey":          job.GetKey(),
		"accessRequestId": output.AccessRequestID,
	})
	return nil
}

func (h *Handler) process(ctx context.Context, job entities.Job) (*Output, error) {
	input, err := h.parseInput(job)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, input)
}

// Execute runs the creation outside of a job, for direct callers and tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	req, err := h.creator.Create(ctx, workflow.CreateInput{
		RequesterID: input.RequesterID,
		TargetID:    input.TargetID,
		Message:     input.Message,
	})
	if err != nil {
		return nil, err
	}
	return &Output{AccessRequestID: req.ID, AccessRequestStatus: req.Status}, nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingError(err)
	}

	result := validation.ValidateInput(variables, GetInputSchema())
	if !result.Valid {
		return nil, errors.NewInvalidArgumentError(result.Error())
	}

	input := &Input{
		RequesterID: variables["requesterId"].(string),
		TargetID:    variables["targetId"].(string),
	}
	if msg, ok := variables["message"].(string); ok {
		input.Message = msg
	}
	return input, nil
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) GetConfig() *Config {
	return h.config
}
