package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SMSSender delivers a single text message
type SMSSender interface {
	IsEnabled() bool
	Send(ctx context.Context, phone, message string) error
}

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSMSSender sends SMS via Amazon SNS direct publish
type SNSSMSSender struct {
	client   snsAPI
	senderID string
	enabled  bool
}

// NewSNSSMSSender creates an SNS sender. It is disabled when enabled is
// false, so deployments without SMS budget skip the AWS config entirely.
func NewSNSSMSSender(ctx context.Context, awsRegion, senderID string, enabled bool) (*SNSSMSSender, error) {
	if !enabled {
		slog.Info("SMS notifications disabled: SMS_ENABLED not set")
		return &SNSSMSSender{enabled: false}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	slog.Info("SMS notifications enabled", "sender_id", senderID, "region", awsRegion)
	return &SNSSMSSender{
		client:   sns.NewFromConfig(cfg),
		senderID: senderID,
		enabled:  true,
	}, nil
}

// IsEnabled returns whether the sender is configured
func (s *SNSSMSSender) IsEnabled() bool {
	return s.enabled
}

// Send publishes message to an E.164 phone number
func (s *SNSSMSSender) Send(ctx context.Context, phone, message string) error {
	if !s.enabled {
		slog.Debug("Skipping SMS send (sender disabled)", "phone", phone)
		return nil
	}

	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	result, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(message),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", phone, err)
	}

	slog.Info("SMS sent", "phone", phone, "message_id", aws.ToString(result.MessageId))
	return nil
}
