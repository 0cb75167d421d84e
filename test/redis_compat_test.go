//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"testing"

	goCred "github.com/MrEthical07/goCred"
)

func TestCredentialLifecycleAcrossRedisModes(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			client, cleanup := mode.setup(t)
			defer cleanup()

			env := newIntegrationEngine(t, client)
			ctx := goCred.WithClientIP(context.Background(), "203.0.113.9")
			const who = "alice@example.com"

			if err := env.engine.SendEmailCode(ctx, who); err != nil {
				t.Fatalf("SendEmailCode: %v", err)
			}
			code := env.inbox.last(who)
			if code == "" {
				t.Fatal("no code delivered")
			}

			n, err := client.Exists(ctx, "email:code:"+who).Result()
			if err != nil || n != 1 {
				t.Fatalf("expected stored code key, n=%d err=%v", n, err)
			}

			if err := env.engine.VerifyEmail(ctx, who, code); err != nil {
				t.Fatalf("VerifyEmail: %v", err)
			}
			if err := env.engine.VerifyEmail(ctx, who, code); !errors.Is(err, goCred.ErrCodeNotFound) {
				t.Fatalf("expected consumed code, got %v", err)
			}
			ok, err := env.engine.ConsumeVerified(ctx, goCred.ChannelEmail, who)
			if err != nil || !ok {
				t.Fatalf("ConsumeVerified = %v, %v", ok, err)
			}

			first, err := env.engine.IssueSession(ctx, who, goCred.DeviceMeta{UserAgent: "it"})
			if err != nil {
				t.Fatalf("IssueSession: %v", err)
			}
			second, err := env.engine.Rotate(ctx, first.RefreshToken, goCred.DeviceMeta{})
			if err != nil {
				t.Fatalf("Rotate: %v", err)
			}
			if second.SessionID == first.SessionID || second.OwnerID != who {
				t.Fatalf("unexpected rotated pair %+v", second)
			}
			if _, err := env.engine.Rotate(ctx, first.RefreshToken, goCred.DeviceMeta{}); !errors.Is(err, goCred.ErrInvalidRefreshToken) {
				t.Fatalf("old token must be dead, got %v", err)
			}

			if err := env.engine.Revoke(ctx, second.RefreshToken); err != nil {
				t.Fatalf("Revoke: %v", err)
			}
			if err := env.engine.Revoke(ctx, second.RefreshToken); err != nil {
				t.Fatalf("second Revoke should be a no-op: %v", err)
			}
			if _, err := env.engine.Rotate(ctx, second.RefreshToken, goCred.DeviceMeta{}); !errors.Is(err, goCred.ErrInvalidRefreshToken) {
				t.Fatalf("revoked token must be dead, got %v", err)
			}
		})
	}
}

func TestIssueLimitAcrossRedisModes(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			client, cleanup := mode.setup(t)
			defer cleanup()

			env := newIntegrationEngine(t, client)
			ctx := context.Background()
			limit := goCred.DefaultConfig().SMS.MaxAttempts

			for i := 0; i < limit; i++ {
				if err := env.engine.SendPhoneCode(ctx, "+15550100100"); err != nil {
					t.Fatalf("send %d: %v", i+1, err)
				}
			}
			err := env.engine.SendPhoneCode(ctx, "+15550100100")
			var rl *goCred.RateLimitError
			if !errors.As(err, &rl) || rl.RetryAfter <= 0 {
				t.Fatalf("expected rate limit, got %v", err)
			}

			if err := env.engine.ResetIssueLimit(ctx, goCred.ChannelSMS, "+15550100100"); err != nil {
				t.Fatalf("ResetIssueLimit: %v", err)
			}
			if err := env.engine.SendPhoneCode(ctx, "+15550100100"); err != nil {
				t.Fatalf("send after reset: %v", err)
			}
		})
	}
}
