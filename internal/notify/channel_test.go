package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"access-workflow/internal/common/errors"
	"access-workflow/internal/common/logger"
	"access-workflow/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	mu        sync.Mutex
	published []*sns.PublishInput

	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.mu.Lock()
	m.published = append(m.published, params)
	m.mu.Unlock()
	return m.PublishFunc(ctx, params, optFns...)
}

// ==========================
// Test Helper Functions
// ==========================

func createdMessage() Message {
	payload := models.RequestCreatedPayload{
		RequestID:     "r-1",
		RequesterID:   "u-1",
		RequesterName: "Ann",
		Message:       "please <b>share</b>",
	}
	r, _ := Render(payload)
	return Message{
		NotificationID: "n-1",
		UserID:         "u-2",
		Type:           payload.Type(),
		Title:          r.Title,
		Body:           r.Body,
		Payload:        payload,
	}
}

func sesRejection() error {
	return &smithy.OperationError{
		ServiceID:     "SES",
		OperationName: "SendEmail",
		Err: &awshttp.ResponseError{
			ResponseError: &smithyhttp.ResponseError{
				Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusBadRequest}},
				Err: &smithy.GenericAPIError{
					Code:    "MessageRejected",
					Message: "Email address is not verified.",
				},
			},
			RequestID: "req-123",
		},
	}
}

// ==========================
// Render
// ==========================

func TestRender(t *testing.T) {
	tests := []struct {
		name      string
		payload   models.Payload
		wantTitle string
		wantBody  string
		wantErr   bool
	}{
		{
			name:      "created with message",
			payload:   models.RequestCreatedPayload{RequesterName: "Ann", Message: " hi "},
			wantTitle: "New access request",
			wantBody:  `Ann sent you an access request. "hi"`,
		},
		{
			name:      "created without name",
			payload:   models.RequestCreatedPayload{},
			wantTitle: "New access request",
			wantBody:  "Someone sent you an access request.",
		},
		{
			name:      "accepted",
			payload:   models.RequestRespondedPayload{TargetName: "Bo", Outcome: models.StatusAccepted},
			wantTitle: "Access request accepted",
			wantBody:  "Bo accepted your access request.",
		},
		{
			name:      "rejected with message",
			payload:   models.RequestRespondedPayload{TargetName: "Bo", Outcome: models.StatusRejected, Message: "no"},
			wantTitle: "Access request declined",
			wantBody:  `Bo declined your access request. "no"`,
		},
		{
			name:    "pending is not a response",
			payload: models.RequestRespondedPayload{Outcome: models.StatusPending},
			wantErr: true,
		},
		{
			name:    "nil payload",
			payload: nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, got.Title)
			assert.Equal(t, tt.wantBody, got.Body)
		})
	}
}

// ==========================
// Push
// ==========================

func TestPushChannelSender_Send(t *testing.T) {
	tests := []struct {
		name          string
		tokens        []string
		publish       func(arn string) (*sns.PublishOutput, error)
		wantErr       bool
		wantDelivered int
		wantFailed    int
		wantStale     []string
	}{
		{
			name:   "all endpoints accept",
			tokens: []string{"arn:a", "arn:b"},
			publish: func(arn string) (*sns.PublishOutput, error) {
				return &sns.PublishOutput{MessageId: aws.String("m-" + arn)}, nil
			},
			wantDelivered: 2,
		},
		{
			name:   "one stale endpoint is tolerated",
			tokens: []string{"arn:a", "arn:b"},
			publish: func(arn string) (*sns.PublishOutput, error) {
				if arn == "arn:a" {
					return nil, &types.EndpointDisabledException{Message: aws.String("Endpoint is disabled")}
				}
				return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
			},
			wantDelivered: 1,
			wantFailed:    1,
		},
		{
			name:   "every endpoint fails",
			tokens: []string{"arn:a"},
			publish: func(string) (*sns.PublishOutput, error) {
				return nil, &types.EndpointDisabledException{Message: aws.String("Endpoint is disabled")}
			},
			wantErr:    true,
			wantFailed: 1,
			wantStale:  []string{"arn:a"},
		},
		{
			name:    "no endpoints",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &MockSNSService{
				PublishFunc: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
					return tt.publish(aws.ToString(params.TargetArn))
				},
			}
			sender := NewPushChannelSender(client, logger.NewTestLogger(t))

			receipt, err := sender.Send(context.Background(), Address{PushTokens: tt.tokens}, createdMessage())
			require.NotNil(t, receipt)
			assert.Equal(t, "sns", receipt.Provider)
			assert.Equal(t, tt.wantDelivered, receipt.Delivered)
			assert.Equal(t, tt.wantFailed, receipt.Failed)

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeChannelDeliveryFailed))
			if tt.wantStale != nil {
				var stdErr *errors.StandardError
				require.True(t, stderrors.As(err, &stdErr))
				assert.Equal(t, tt.wantStale, stdErr.Metadata["staleEndpoints"])
			}
		})
	}
}

func TestBuildPushMessage(t *testing.T) {
	raw, err := buildPushMessage(createdMessage())
	require.NoError(t, err)

	var doc map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Contains(t, doc, "default")
	assert.Equal(t, doc["APNS"], doc["APNS_SANDBOX"])

	var gcm struct {
		Notification map[string]string      `json:"notification"`
		Data         map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc["GCM"]), &gcm))
	assert.Equal(t, "New access request", gcm.Notification["title"])
	assert.Equal(t, "n-1", gcm.Data["notificationId"])
	assert.Equal(t, "request_created", gcm.Data["type"])
}

// ==========================
// Email
// ==========================

func TestEmailChannelSender_Send(t *testing.T) {
	var captured *ses.SendEmailInput
	client := &MockSESService{
		SendEmailFunc: func(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
		},
	}
	sender, err := NewEmailChannelSender(client, EmailConfig{
		FromEmail:        "noreply@example.com",
		ConfigurationSet: "tracking",
	}, logger.NewTestLogger(t))
	require.NoError(t, err)

	receipt, err := sender.Send(context.Background(),
		Address{DisplayName: "Bo", Email: "bo@example.com"}, createdMessage())
	require.NoError(t, err)
	assert.Equal(t, []string{"ses-1"}, receipt.MessageIDs)
	assert.Equal(t, 1, receipt.Delivered)

	require.NotNil(t, captured)
	assert.Equal(t, "noreply@example.com", aws.ToString(captured.Source))
	assert.Equal(t, []string{"bo@example.com"}, captured.Destination.ToAddresses)
	assert.Equal(t, "tracking", aws.ToString(captured.ConfigurationSetName))
	assert.Equal(t, "New access request", aws.ToString(captured.Message.Subject.Data))

	html := aws.ToString(captured.Message.Body.Html.Data)
	assert.Contains(t, html, "Hi Bo,")
	assert.Contains(t, html, "<strong>Ann</strong>")
	assert.Contains(t, html, "please &lt;b&gt;share&lt;/b&gt;", "user text is escaped")
	assert.True(t, strings.HasPrefix(aws.ToString(captured.Message.Body.Text.Data), "Ann sent you"))
}

func TestEmailChannelSender_ProviderError(t *testing.T) {
	client := &MockSESService{
		SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, sesRejection()
		},
	}
	sender, err := NewEmailChannelSender(client, EmailConfig{FromEmail: "noreply@example.com"}, logger.NewNoOpLogger())
	require.NoError(t, err)

	receipt, err := sender.Send(context.Background(), Address{Email: "bo@example.com"}, createdMessage())
	require.Error(t, err)
	assert.Equal(t, 1, receipt.Failed)

	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, errors.ErrCodeChannelDeliveryFailed, stdErr.Code)
	assert.Equal(t, http.StatusBadRequest, stdErr.Metadata["statusCode"])
	assert.Equal(t, "req-123", stdErr.Metadata["requestId"])
	assert.Equal(t, "MessageRejected", stdErr.Metadata["errorCode"])
	assert.Equal(t, "Email address is not verified.", stdErr.Metadata["errorMessage"])
}

func TestEmailChannelSender_MissingAddressOrTemplate(t *testing.T) {
	client := &MockSESService{
		SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			t.Fatal("SES must not be called")
			return nil, nil
		},
	}
	sender, err := NewEmailChannelSender(client, EmailConfig{FromEmail: "noreply@example.com"}, logger.NewNoOpLogger())
	require.NoError(t, err)

	_, err = sender.Send(context.Background(), Address{}, createdMessage())
	assert.True(t, errors.HasCode(err, errors.ErrCodeChannelDeliveryFailed))

	msg := createdMessage()
	msg.Type = "unknown"
	_, err = sender.Send(context.Background(), Address{Email: "bo@example.com"}, msg)
	assert.True(t, errors.HasCode(err, errors.ErrCodeChannelDeliveryFailed))
}
