package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// EmailSender delivers a single email
type EmailSender interface {
	IsEnabled() bool
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESEmailSender sends email via Amazon SES
type SESEmailSender struct {
	client    sesAPI
	fromEmail string
	fromName  string
	enabled   bool
}

// NewSESEmailSender creates an SES sender. It is disabled when fromEmail is
// empty.
func NewSESEmailSender(ctx context.Context, awsRegion, fromEmail, fromName string) (*SESEmailSender, error) {
	if fromEmail == "" {
		slog.Info("Email notifications disabled: SES_FROM_EMAIL not configured")
		return &SESEmailSender{enabled: false}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	slog.Info("Email notifications enabled", "from", fromEmail, "region", awsRegion)
	return &SESEmailSender{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
	}, nil
}

// IsEnabled returns whether the sender is configured
func (s *SESEmailSender) IsEnabled() bool {
	return s.enabled
}

// Send delivers one email
func (s *SESEmailSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if !s.enabled {
		slog.Debug("Skipping email send (sender disabled)", "to", to, "subject", subject)
		return nil
	}

	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	slog.Info("Email sent", "to", to, "subject", subject, "message_id", aws.ToString(result.MessageId))
	return nil
}
