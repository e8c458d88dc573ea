// internal/notify/push.go
package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"access-workflow/internal/common/errors"
	"access-workflow/internal/common/logger"
	"access-workflow/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSService is the part of the SNS client the push sender uses.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var errNoPushTokens = stderrors.New("user has no push endpoints")

// PushChannelSender publishes to each of a user's SNS platform endpoints.
// One accepted endpoint is enough for the send to count as delivered.
type PushChannelSender struct {
	client SNSService
	logger logger.Logger
}

func NewPushChannelSender(client SNSService, log logger.Logger) *PushChannelSender {
	return &PushChannelSender{
		client: client,
		logger: log.WithFields(map[string]interface{}{"channel": string(models.ChannelPush)}),
	}
}

func (s *PushChannelSender) Channel() models.Channel { return models.ChannelPush }

func (s *PushChannelSender) Send(ctx context.Context, addr Address, msg Message) (*Receipt, error) {
	receipt := &Receipt{Provider: "sns"}
	if len(addr.PushTokens) == 0 {
		return receipt, errors.NewChannelDeliveryError(string(models.ChannelPush), errNoPushTokens)
	}

	body, err := buildPushMessage(msg)
	if err != nil {
		return receipt, errors.NewChannelDeliveryError(string(models.ChannelPush), err)
	}

	var (
		lastErr error
		stale   []string
	)
	for _, endpoint := range addr.PushTokens {
		out, err := s.client.Publish(ctx, &sns.PublishInput{
			TargetArn:        aws.String(endpoint),
			Message:          aws.String(body),
			MessageStructure: aws.String("json"),
		})
		if err != nil {
			receipt.Failed++
			lastErr = err

			var disabled *types.EndpointDisabledException
			isStale := stderrors.As(err, &disabled)
			if isStale {
				stale = append(stale, endpoint)
			}
			s.logger.Warn("Push endpoint rejected message", map[string]interface{}{
				"notificationId": msg.NotificationID,
				"userId":         msg.UserID,
				"endpoint":       endpoint,
				"stale":          isStale,
				"error":          err.Error(),
			})
			continue
		}

		receipt.Delivered++
		if out != nil && out.MessageId != nil {
			receipt.MessageIDs = append(receipt.MessageIDs, *out.MessageId)
		}
	}

	if receipt.Delivered == 0 {
		return receipt, errors.NewChannelDeliveryError(string(models.ChannelPush), lastErr).
			WithMetadata("failedEndpoints", receipt.Failed).
			WithMetadata("staleEndpoints", stale)
	}
	return receipt, nil
}

// buildPushMessage renders the per-platform JSON document SNS expects when
// MessageStructure is "json".
func buildPushMessage(msg Message) (string, error) {
	data := map[string]interface{}{
		"notificationId": msg.NotificationID,
		"type":           string(msg.Type),
	}
	if msg.Payload != nil {
		payload, err := models.EncodePayload(msg.Payload)
		if err != nil {
			return "", err
		}
		data["payload"] = json.RawMessage(payload)
	}

	gcm, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{"title": msg.Title, "body": msg.Body},
		"data":         data,
	})
	if err != nil {
		return "", fmt.Errorf("encode GCM message: %w", err)
	}

	apnsDoc := map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": map[string]string{"title": msg.Title, "body": msg.Body},
			"sound": "default",
		},
	}
	for k, v := range data {
		apnsDoc[k] = v
	}
	apns, err := json.Marshal(apnsDoc)
	if err != nil {
		return "", fmt.Errorf("encode APNS message: %w", err)
	}

	doc, err := json.Marshal(map[string]string{
		"default":      msg.Body,
		"GCM":          string(gcm),
		"APNS":         string(apns),
		"APNS_SANDBOX": string(apns),
	})
	if err != nil {
		return "", fmt.Errorf("encode push message: %w", err)
	}
	return string(doc), nil
}
