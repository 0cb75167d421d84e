package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CodeRecord mirrors the persisted verification code.
type CodeRecord struct {
	Identifier string
	Code       string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Attempts   int
}

// CodeOutcome is the result of checking a code against the stored record.
type CodeOutcome int

const (
	CodeMatched CodeOutcome = iota + 1
	CodeMissing
	CodeExpired
	CodeMismatch
	CodeExhausted
)

type CodeMetrics struct {
	Issued            int
	RateLimited       int
	DeliveryFailed    int
	Verified          int
	Invalid           int
	Expired           int
	NotFound          int
	AttemptsExhausted int
}

type CodeEvents struct {
	Issue  string
	Verify string
}

type CodeErrors struct {
	EngineNotReady    error
	InvalidIdentifier error
	NotFound          error
	Expired           error
	AttemptsExhausted error
	Unavailable       error

	RateLimited    func(retryAfter time.Duration) error
	InvalidCode    func(remaining int) error
	DeliveryFailed func(cause error) error
}

// CodeDeps captures the dependencies of one verification channel.
type CodeDeps struct {
	Channel     string
	CodeLength  int
	CodeTTL     time.Duration
	MaxAttempts int
	VerifiedTTL time.Duration

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string
	Normalize           func(string) (string, error)

	// IssueLimited consumes one send and reports whether it is over budget.
	IssueLimited func(ctx context.Context, identifier, ip string) bool
	Cooldown     time.Duration

	GenerateCode func(digits int) (string, error)
	SendCode     func(ctx context.Context, identifier, code string) error

	SaveCode func(ctx context.Context, record CodeRecord, ttl time.Duration) error
	// ConsumeCode checks code and applies the outcome to the stored record
	// atomically. attempts counts the failed attempts so far, this one
	// included.
	ConsumeCode  func(ctx context.Context, identifier, code string, maxAttempts int, now time.Time) (outcome CodeOutcome, attempts int, err error)
	MarkVerified func(ctx context.Context, identifier string, ttl time.Duration) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *slog.Logger

	Metrics CodeMetrics
	Events  CodeEvents
	Errors  CodeErrors
}

// RunIssueCode normalizes the identifier, applies the issuance budget,
// stores a fresh code and hands it to the transport. It returns the
// normalized identifier.
//
// A transport failure leaves the stored code in place.
func RunIssueCode(ctx context.Context, rawIdentifier string, deps CodeDeps) (string, error) {
	normalizeCodeDeps(&deps)
	if deps.GenerateCode == nil || deps.SaveCode == nil || deps.SendCode == nil || deps.Normalize == nil {
		return "", deps.Errors.EngineNotReady
	}

	identifier, err := deps.Normalize(rawIdentifier)
	if err != nil || identifier == "" {
		deps.EmitAudit(ctx, deps.Events.Issue, false, AuditFields{Channel: deps.Channel}, deps.Errors.InvalidIdentifier, func() map[string]string {
			return map[string]string{"reason": "invalid_identifier"}
		})
		return "", deps.Errors.InvalidIdentifier
	}
	fields := AuditFields{Channel: deps.Channel, Identifier: identifier}
	masked := MaskIdentifier(identifier)

	if deps.IssueLimited != nil && deps.IssueLimited(ctx, identifier, deps.ClientIPFromContext(ctx)) {
		limitErr := deps.Errors.RateLimited(deps.Cooldown)
		deps.MetricInc(deps.Metrics.RateLimited)
		deps.EmitAudit(ctx, deps.Events.Issue, false, fields, limitErr, func() map[string]string {
			return map[string]string{"reason": "rate_limited"}
		})
		deps.Logger.InfoContext(ctx, "code issue rate limited",
			slog.String("identifier", masked),
		)
		return identifier, limitErr
	}

	code, err := deps.GenerateCode(deps.CodeLength)
	if err != nil {
		deps.Logger.ErrorContext(ctx, "code generation failed",
			slog.Any("error", err),
		)
		return identifier, deps.Errors.Unavailable
	}

	now := deps.Now()
	record := CodeRecord{
		Identifier: identifier,
		Code:       code,
		IssuedAt:   now,
		ExpiresAt:  now.Add(deps.CodeTTL),
	}
	if err := deps.SaveCode(ctx, record, deps.CodeTTL); err != nil {
		deps.Logger.WarnContext(ctx, "code store unavailable",
			slog.String("identifier", masked),
			slog.Any("error", err),
		)
		deps.EmitAudit(ctx, deps.Events.Issue, false, fields, deps.Errors.Unavailable, nil)
		return identifier, deps.Errors.Unavailable
	}

	if err := deps.SendCode(ctx, identifier, code); err != nil {
		deliveryErr := deps.Errors.DeliveryFailed(err)
		deps.MetricInc(deps.Metrics.DeliveryFailed)
		deps.EmitAudit(ctx, deps.Events.Issue, false, fields, deliveryErr, func() map[string]string {
			return map[string]string{"reason": "delivery_failed"}
		})
		deps.Logger.WarnContext(ctx, "code delivery failed",
			slog.String("identifier", masked),
			slog.Any("error", err),
		)
		return identifier, deliveryErr
	}

	deps.MetricInc(deps.Metrics.Issued)
	deps.EmitAudit(ctx, deps.Events.Issue, true, fields, nil, nil)
	deps.Logger.InfoContext(ctx, "code issued",
		slog.String("identifier", masked),
		slog.Time("expires_at", record.ExpiresAt),
	)
	return identifier, nil
}

// RunVerifyCode checks code against the outstanding record for the
// identifier. Each mismatch costs one attempt; the record is removed on
// success, on expiry and when attempts run out. The check and its effect on
// the record happen in a single store step, so concurrent guesses share one
// attempt budget and a code verifies at most once.
func RunVerifyCode(ctx context.Context, rawIdentifier, code string, deps CodeDeps) (string, error) {
	normalizeCodeDeps(&deps)
	if deps.ConsumeCode == nil || deps.Normalize == nil {
		return "", deps.Errors.EngineNotReady
	}

	identifier, err := deps.Normalize(rawIdentifier)
	if err != nil || identifier == "" {
		deps.EmitAudit(ctx, deps.Events.Verify, false, AuditFields{Channel: deps.Channel}, deps.Errors.InvalidIdentifier, func() map[string]string {
			return map[string]string{"reason": "invalid_identifier"}
		})
		return "", deps.Errors.InvalidIdentifier
	}
	fields := AuditFields{Channel: deps.Channel, Identifier: identifier}
	masked := MaskIdentifier(identifier)

	fail := func(metric int, outcome error, reason string) (string, error) {
		deps.MetricInc(metric)
		deps.EmitAudit(ctx, deps.Events.Verify, false, fields, outcome, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		deps.Logger.InfoContext(ctx, "code verification failed",
			slog.String("identifier", masked),
			slog.String("reason", reason),
		)
		return identifier, outcome
	}
	unavailable := func(err error) (string, error) {
		deps.Logger.WarnContext(ctx, "code store unavailable",
			slog.String("identifier", masked),
			slog.Any("error", err),
		)
		deps.EmitAudit(ctx, deps.Events.Verify, false, fields, deps.Errors.Unavailable, nil)
		return identifier, deps.Errors.Unavailable
	}

	outcome, attempts, err := deps.ConsumeCode(ctx, identifier, code, deps.MaxAttempts, deps.Now())
	if err != nil {
		return unavailable(err)
	}
	switch outcome {
	case CodeMatched:
	case CodeMissing:
		return fail(deps.Metrics.NotFound, deps.Errors.NotFound, "not_found")
	case CodeExpired:
		return fail(deps.Metrics.Expired, deps.Errors.Expired, "expired")
	case CodeExhausted:
		return fail(deps.Metrics.AttemptsExhausted, deps.Errors.AttemptsExhausted, "attempts_exhausted")
	case CodeMismatch:
		return fail(deps.Metrics.Invalid, deps.Errors.InvalidCode(deps.MaxAttempts-attempts), "invalid_code")
	default:
		return unavailable(fmt.Errorf("unknown code outcome %d", outcome))
	}

	if deps.MarkVerified != nil && deps.VerifiedTTL > 0 {
		if err := deps.MarkVerified(ctx, identifier, deps.VerifiedTTL); err != nil {
			deps.Logger.WarnContext(ctx, "failed to record verified mark",
				slog.String("identifier", masked),
				slog.Any("error", err),
			)
		}
	}

	deps.MetricInc(deps.Metrics.Verified)
	deps.EmitAudit(ctx, deps.Events.Verify, true, fields, nil, nil)
	deps.Logger.InfoContext(ctx, "code verified",
		slog.String("identifier", masked),
	)
	return identifier, nil
}

func normalizeCodeDeps(deps *CodeDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	deps.Logger = defaultLogger(deps.Logger)
	if deps.Errors.EngineNotReady == nil {
		deps.Errors.EngineNotReady = errors.New("engine not ready")
	}
	if deps.Errors.Unavailable == nil {
		deps.Errors.Unavailable = deps.Errors.EngineNotReady
	}
	if deps.Errors.RateLimited == nil {
		deps.Errors.RateLimited = func(time.Duration) error { return deps.Errors.Unavailable }
	}
	if deps.Errors.InvalidCode == nil {
		deps.Errors.InvalidCode = func(int) error { return deps.Errors.Unavailable }
	}
	if deps.Errors.DeliveryFailed == nil {
		deps.Errors.DeliveryFailed = func(error) error { return deps.Errors.Unavailable }
	}
}
