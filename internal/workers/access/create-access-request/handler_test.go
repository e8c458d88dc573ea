package createaccessrequest

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"access-workflow/internal/common/config"
	"access-workflow/internal/common/errors"
	"access-workflow/internal/common/logger"
	"access-workflow/internal/models"
	"access-workflow/internal/workflow"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockCreator struct {
	mock.Mock
}

func (m *MockCreator) Create(ctx context.Context, in workflow.CreateInput) (*models.AccessRequest, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccessRequest), args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "access-request-process",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "Activity_CreateAccessRequest",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Deadline:                 0,
		Variables:                string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

func createTestHandler(t *testing.T, creator Creator) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Workflow:     creator,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{
			name: "valid configuration",
			opts: HandlerOptions{CustomConfig: DefaultConfig(), Workflow: &MockCreator{}},
		},
		{
			name:    "missing workflow",
			opts:    HandlerOptions{CustomConfig: DefaultConfig()},
			wantErr: "workflow is required",
		},
		{
			name: "invalid timeout",
			opts: HandlerOptions{
				CustomConfig: &Config{Enabled: true, MaxJobsActive: 5, Timeout: -time.Second},
				Workflow:     &MockCreator{},
			},
			wantErr: "timeout must be positive",
		},
		{
			name: "invalid max jobs active",
			opts: HandlerOptions{
				CustomConfig: &Config{Enabled: true, Timeout: time.Second},
				Workflow:     &MockCreator{},
			},
			wantErr: "max_jobs_active must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, err := NewHandler(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, handler)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TaskType, handler.GetTaskType())
			assert.True(t, handler.IsEnabled())
		})
	}
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	appCfg := &config.Config{
		Workers: map[string]config.WorkerConfig{
			ConfigKey: {Enabled: false, MaxJobsActive: 12, Timeout: 4500},
		},
	}

	cfg := createConfigFromAppConfig(appCfg, nil)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 12, cfg.MaxJobsActive)
	assert.Equal(t, 4500*time.Millisecond, cfg.Timeout)

	assert.Equal(t, DefaultConfig(), createConfigFromAppConfig(&config.Config{}, nil))
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables map[string]interface{}
		errCode   errors.ErrorCode
		want      *Input
	}{
		{
			name:      "valid input with message",
			variables: map[string]interface{}{"requesterId": "alice", "targetId": "bob", "message": "hi"},
			want:      &Input{RequesterID: "alice", TargetID: "bob", Message: "hi"},
		},
		{
			name:      "unrelated process variables are ignored",
			variables: map[string]interface{}{"requesterId": "alice", "targetId": "bob", "correlationId": 42},
			want:      &Input{RequesterID: "alice", TargetID: "bob"},
		},
		{
			name:      "missing target",
			variables: map[string]interface{}{"requesterId": "alice"},
			errCode:   errors.ErrCodeInvalidArgument,
		},
		{
			name:      "wrong type",
			variables: map[string]interface{}{"requesterId": "alice", "targetId": 7},
			errCode:   errors.ErrCodeInvalidArgument,
		},
		{
			name: "message too long",
			variables: map[string]interface{}{
				"requesterId": "alice",
				"targetId":    "bob",
				"message":     strings.Repeat("x", models.MaxMessageLength+1),
			},
			errCode: errors.ErrCodeInvalidArgument,
		},
	}

	handler := createTestHandler(t, &MockCreator{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := handler.parseInput(createMockJob(12345, tt.variables))
			if tt.errCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.errCode, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, input)
		})
	}
}

func TestHandler_ParseInput_BadJSON(t *testing.T) {
	handler := createTestHandler(t, &MockCreator{})
	job := createMockJob(1, nil)
	job.Variables = "{not json"

	_, err := handler.parseInput(job)
	assert.Equal(t, errors.ErrCodeInputParsing, errors.CodeOf(err))
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	creator := &MockCreator{}
	creator.On("Create", mock.Anything, workflow.CreateInput{RequesterID: "alice", TargetID: "bob", Message: "hi"}).
		Return(&models.AccessRequest{ID: "r-1", Status: models.StatusPending}, nil)
	creator.On("Create", mock.Anything, workflow.CreateInput{RequesterID: "alice", TargetID: "carol"}).
		Return(nil, errors.NewConflictError("already requested", "r-0"))

	handler := createTestHandler(t, creator)

	out, err := handler.Execute(context.Background(), &Input{RequesterID: "alice", TargetID: "bob", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, &Output{AccessRequestID: "r-1", AccessRequestStatus: models.StatusPending}, out)

	_, err = handler.Execute(context.Background(), &Input{RequesterID: "alice", TargetID: "carol"})
	require.Error(t, err)
	assert.Equal(t, "ACCESS_REQUEST_CONFLICT", errors.ConvertToBPMNError(errors.Normalize(err)).Code)

	creator.AssertExpectations(t)
}
