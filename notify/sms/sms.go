// Package sms delivers verification codes as SMS through Amazon SNS.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// DefaultMessage is used when Config.Message is empty. "{code}" is replaced
// with the code.
const DefaultMessage = "Your verification code is {code}"

var ErrEmptyPhone = errors.New("sms: empty phone number")

// Publisher is the subset of *sns.Client used by Transport.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Config selects the AWS region, optional static credentials or endpoint
// override (LocalStack), and the message shape.
type Config struct {
	Region          string
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string

	// SenderID is the alphanumeric sender shown where carriers support it.
	SenderID string
	// Message is the body template containing "{code}".
	Message string
	// Promotional switches SNS from Transactional to Promotional routing.
	Promotional bool
}

// Transport publishes one SMS per code.
type Transport struct {
	client Publisher
	cfg    Config
	logger *slog.Logger
}

// New loads the default AWS config chain and builds a Transport over a real
// SNS client.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Transport, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sms: load aws config: %w", err)
	}

	var clientOpts []func(*sns.Options)
	if cfg.EndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		})
	}

	return NewWithClient(sns.NewFromConfig(awsCfg, clientOpts...), cfg, logger), nil
}

// NewWithClient wraps an existing publisher.
func NewWithClient(client Publisher, cfg Config, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Message == "" {
		cfg.Message = DefaultMessage
	}
	return &Transport{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("transport", "sns")),
	}
}

// SendCode publishes the code to phone. phone is the digits-only form
// produced by goCred.NormalizePhone; a "+" prefix is added for E.164.
func (t *Transport) SendCode(ctx context.Context, phone, code string) error {
	if phone == "" {
		return ErrEmptyPhone
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	smsType := "Transactional"
	if t.cfg.Promotional {
		smsType = "Promotional"
	}
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String(smsType),
		},
	}
	if t.cfg.SenderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(t.cfg.SenderID),
		}
	}

	out, err := t.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(strings.ReplaceAll(t.cfg.Message, "{code}", code)),
		MessageAttributes: attrs,
	})
	if err != nil {
		t.logger.WarnContext(ctx, "sms publish failed", slog.Any("error", err))
		return fmt.Errorf("sms: publish: %w", err)
	}

	t.logger.DebugContext(ctx, "sms published", slog.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
