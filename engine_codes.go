package goCred

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goCred/internal"
	"github.com/MrEthical07/goCred/internal/flows"
	"github.com/MrEthical07/goCred/internal/stores"
)

// IssueCode generates a code for rawIdentifier on the given channel, stores
// it and sends it through the channel transport.
//
// Errors: ErrUnknownChannel, ErrInvalidIdentifier, *RateLimitError,
// ErrVerificationUnavailable, ErrDeliveryFailed. After ErrDeliveryFailed the
// code is still stored and verifiable.
func (e *Engine) IssueCode(ctx context.Context, ch Channel, rawIdentifier string) error {
	c, err := e.channel(ch)
	if err != nil {
		return err
	}
	_, err = flows.RunIssueCode(ctx, rawIdentifier, c.deps)
	return err
}

// VerifyCode checks code against the outstanding code for rawIdentifier.
// On success the code is consumed and a verified mark is written for the
// channel's VerifiedTTL.
//
// Errors: ErrUnknownChannel, ErrInvalidIdentifier, ErrCodeNotFound,
// ErrCodeExpired, *InvalidCodeError, ErrAttemptsExhausted,
// ErrVerificationUnavailable.
func (e *Engine) VerifyCode(ctx context.Context, ch Channel, rawIdentifier, code string) error {
	c, err := e.channel(ch)
	if err != nil {
		return err
	}
	_, err = flows.RunVerifyCode(ctx, rawIdentifier, code, c.deps)
	return err
}

// IsVerified reports whether rawIdentifier passed verification within the
// channel's VerifiedTTL.
func (e *Engine) IsVerified(ctx context.Context, ch Channel, rawIdentifier string) (bool, error) {
	c, identifier, err := e.resolve(ch, rawIdentifier)
	if err != nil {
		return false, err
	}
	ok, err := c.codes.IsVerified(ctx, identifier)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	return ok, nil
}

// ConsumeVerified reports whether rawIdentifier is verified and clears the
// mark so it can back exactly one follow-up step, such as registration.
// Concurrent calls for one mark return true once.
func (e *Engine) ConsumeVerified(ctx context.Context, ch Channel, rawIdentifier string) (bool, error) {
	c, identifier, err := e.resolve(ch, rawIdentifier)
	if err != nil {
		return false, err
	}
	ok, err := c.codes.TakeVerified(ctx, identifier)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	return ok, nil
}

// ResetIssueLimit clears the per-identifier issuance counter, e.g. after an
// operator unblocks a number.
func (e *Engine) ResetIssueLimit(ctx context.Context, ch Channel, rawIdentifier string) error {
	c, identifier, err := e.resolve(ch, rawIdentifier)
	if err != nil {
		return err
	}
	if err := c.limiter.Reset(ctx, identifier); err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	return nil
}

// SendPhoneCode is IssueCode on the SMS channel.
func (e *Engine) SendPhoneCode(ctx context.Context, phone string) error {
	return e.IssueCode(ctx, ChannelSMS, phone)
}

// VerifyPhone is VerifyCode on the SMS channel.
func (e *Engine) VerifyPhone(ctx context.Context, phone, code string) error {
	return e.VerifyCode(ctx, ChannelSMS, phone, code)
}

// SendEmailCode is IssueCode on the email channel.
func (e *Engine) SendEmailCode(ctx context.Context, email string) error {
	return e.IssueCode(ctx, ChannelEmail, email)
}

// VerifyEmail is VerifyCode on the email channel.
func (e *Engine) VerifyEmail(ctx context.Context, email, code string) error {
	return e.VerifyCode(ctx, ChannelEmail, email, code)
}

func (e *Engine) resolve(ch Channel, rawIdentifier string) (*channel, string, error) {
	c, err := e.channel(ch)
	if err != nil {
		return nil, "", err
	}
	identifier, err := c.normalize(rawIdentifier)
	if err != nil {
		return nil, "", ErrInvalidIdentifier
	}
	return c, identifier, nil
}

func (e *Engine) codeDeps(c *channel) flows.CodeDeps {
	codes := c.codes
	logger := e.logger.With(slog.String("channel", string(c.name)))

	return flows.CodeDeps{
		Channel:     string(c.name),
		CodeLength:  c.cfg.CodeLength,
		CodeTTL:     c.cfg.CodeTTL,
		MaxAttempts: c.cfg.MaxAttempts,
		VerifiedTTL: c.cfg.VerifiedTTL,

		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		Normalize:           c.normalize,
		IssueLimited:        c.limiter.Limited,
		Cooldown:            c.cfg.ResendCooldown,

		GenerateCode: internal.NewOTP,
		SendCode:     c.transport.SendCode,

		SaveCode: func(ctx context.Context, record flows.CodeRecord, ttl time.Duration) error {
			return codes.Save(ctx, toStoredCode(record), ttl)
		},
		ConsumeCode: func(ctx context.Context, identifier, code string, maxAttempts int, now time.Time) (flows.CodeOutcome, int, error) {
			res, err := codes.Consume(ctx, identifier, code, maxAttempts, now)
			switch {
			case err == nil:
				return codeOutcomes[res.Status], res.Attempts, nil
			case errors.Is(err, stores.ErrCodeCorrupt):
				logger.WarnContext(ctx, "discarded unreadable code record",
					slog.String("identifier", flows.MaskIdentifier(identifier)),
					slog.Any("error", err),
				)
				return flows.CodeMissing, 0, nil
			default:
				return 0, 0, err
			}
		},
		MarkVerified: codes.MarkVerified,

		MetricInc: func(id int) { e.channelMetricInc(c.name, id) },
		EmitAudit: e.emitAudit,
		Logger:    logger,

		Metrics: flows.CodeMetrics{
			Issued:            int(MetricCodeIssued),
			RateLimited:       int(MetricCodeIssueRateLimited),
			DeliveryFailed:    int(MetricCodeDeliveryFailed),
			Verified:          int(MetricCodeVerified),
			Invalid:           int(MetricCodeInvalid),
			Expired:           int(MetricCodeExpired),
			NotFound:          int(MetricCodeNotFound),
			AttemptsExhausted: int(MetricCodeAttemptsExhausted),
		},
		Events: flows.CodeEvents{
			Issue:  auditEventCodeIssue,
			Verify: auditEventCodeVerify,
		},
		Errors: flows.CodeErrors{
			EngineNotReady:    ErrEngineNotReady,
			InvalidIdentifier: ErrInvalidIdentifier,
			NotFound:          ErrCodeNotFound,
			Expired:           ErrCodeExpired,
			AttemptsExhausted: ErrAttemptsExhausted,
			Unavailable:       ErrVerificationUnavailable,
			RateLimited: func(retryAfter time.Duration) error {
				return &RateLimitError{RetryAfter: retryAfter}
			},
			InvalidCode: func(remaining int) error {
				return &InvalidCodeError{Remaining: remaining}
			},
			DeliveryFailed: deliveryError,
		},
	}
}

var codeOutcomes = map[stores.ConsumeStatus]flows.CodeOutcome{
	stores.ConsumeMatched:   flows.CodeMatched,
	stores.ConsumeNotFound:  flows.CodeMissing,
	stores.ConsumeExpired:   flows.CodeExpired,
	stores.ConsumeMismatch:  flows.CodeMismatch,
	stores.ConsumeExhausted: flows.CodeExhausted,
}

func toStoredCode(r flows.CodeRecord) *stores.CodeRecord {
	attempts := r.Attempts
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 0xFFFF {
		attempts = 0xFFFF
	}
	return &stores.CodeRecord{
		Identifier: r.Identifier,
		Code:       r.Code,
		IssuedAt:   r.IssuedAt,
		ExpiresAt:  r.ExpiresAt,
		Attempts:   uint16(attempts),
	}
}
