// internal/notify/email.go
package notify

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"html/template"

	"access-workflow/internal/common/errors"
	"access-workflow/internal/common/logger"
	"access-workflow/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/smithy-go"
)

// SESService is the part of the SES client the email sender uses.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

const baseEmailLayout = `<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<p>Hi {{.DisplayName}},</p>
{{template "content" .}}
<p style="color:#888;font-size:12px">You can review this in your notifications.</p>
</body></html>`

var defaultEmailContent = map[models.NotificationType]string{
	models.NotificationRequestCreated: `{{define "content"}}<h2>{{.Title}}</h2>
<p><strong>{{.Payload.RequesterName}}</strong> would like access.</p>
{{if .Payload.Message}}<blockquote>{{.Payload.Message}}</blockquote>{{end}}{{end}}`,

	models.NotificationRequestResponded: `{{define "content"}}<h2>{{.Title}}</h2>
<p>{{.Body}}</p>
{{if .Payload.Message}}<blockquote>{{.Payload.Message}}</blockquote>{{end}}{{end}}`,
}

// EmailConfig configures the SES sender.
type EmailConfig struct {
	FromEmail        string
	ConfigurationSet string
}

// EmailChannelSender renders a per-type HTML template and submits one SES
// SendEmail with an HTML and a plain-text part.
type EmailChannelSender struct {
	client    SESService
	config    EmailConfig
	templates map[models.NotificationType]*template.Template
	logger    logger.Logger
}

func NewEmailChannelSender(client SESService, cfg EmailConfig, log logger.Logger) (*EmailChannelSender, error) {
	templates := make(map[models.NotificationType]*template.Template, len(defaultEmailContent))
	for typ, content := range defaultEmailContent {
		tmpl, err := template.New(string(typ)).Parse(baseEmailLayout)
		if err == nil {
			_, err = tmpl.Parse(content)
		}
		if err != nil {
			return nil, fmt.Errorf("parse email template %s: %w", typ, err)
		}
		templates[typ] = tmpl
	}

	return &EmailChannelSender{
		client:    client,
		config:    cfg,
		templates: templates,
		logger:    log.WithFields(map[string]interface{}{"channel": string(models.ChannelEmail)}),
	}, nil
}

func (s *EmailChannelSender) Channel() models.Channel { return models.ChannelEmail }

type emailView struct {
	DisplayName string
	Title       string
	Body        string
	Payload     models.Payload
}

func (s *EmailChannelSender) Send(ctx context.Context, addr Address, msg Message) (*Receipt, error) {
	receipt := &Receipt{Provider: "ses"}
	if addr.Email == "" {
		return receipt, errors.NewChannelDeliveryError(string(models.ChannelEmail), fmt.Errorf("user has no email address"))
	}

	tmpl, ok := s.templates[msg.Type]
	if !ok {
		return receipt, errors.NewChannelDeliveryError(string(models.ChannelEmail),
			errors.NewTemplateNotFoundError(string(msg.Type)))
	}

	var html bytes.Buffer
	if err := tmpl.Execute(&html, emailView{
		DisplayName: nameOr(addr.DisplayName),
		Title:       msg.Title,
		Body:        msg.Body,
		Payload:     msg.Payload,
	}); err != nil {
		return receipt, errors.NewChannelDeliveryError(string(models.ChannelEmail), fmt.Errorf("render email: %w", err))
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.config.FromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{addr.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Title), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(html.String()), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
			},
		},
	}
	if s.config.ConfigurationSet != "" {
		input.ConfigurationSetName = aws.String(s.config.ConfigurationSet)
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		receipt.Failed = 1
		return receipt, providerError(err)
	}

	receipt.Delivered = 1
	if out != nil && out.MessageId != nil {
		receipt.MessageIDs = []string{*out.MessageId}
	}
	return receipt, nil
}

// providerError keeps the SES status code and error body on the delivery error.
func providerError(err error) *errors.StandardError {
	stdErr := errors.NewChannelDeliveryError(string(models.ChannelEmail), err)

	var respErr *awshttp.ResponseError
	if stderrors.As(err, &respErr) {
		stdErr.WithMetadata("statusCode", respErr.HTTPStatusCode())
		if id := respErr.ServiceRequestID(); id != "" {
			stdErr.WithMetadata("requestId", id)
		}
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		stdErr.WithMetadata("errorCode", apiErr.ErrorCode())
		stdErr.WithMetadata("errorMessage", apiErr.ErrorMessage())
	}

	return stdErr
}
