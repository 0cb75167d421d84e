package test

import (
	"context"
	"net/http"
	"testing"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/jwt"
	"github.com/MrEthical07/goCred/middleware"
)

// Guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = goCred.New

	var _ *goCred.Engine
	var _ goCred.Config
	var _ goCred.TokenPair
	var _ goCred.DeviceMeta
	var _ goCred.Transport = goCred.TransportFunc(nil)
	var _ goCred.TokenGenerator = (*jwt.Manager)(nil)
	var _ goCred.AuditSink

	var _ error = goCred.ErrRateLimitExceeded
	var _ error = goCred.ErrDeliveryFailed
	var _ error = goCred.ErrCodeNotFound
	var _ error = goCred.ErrCodeExpired
	var _ error = goCred.ErrInvalidCode
	var _ error = goCred.ErrAttemptsExhausted
	var _ error = goCred.ErrInvalidRefreshToken
	var _ error = goCred.ErrSessionUnavailable

	var _ func(bool) func(http.Handler) http.Handler = middleware.ClientContext
	var _ middleware.AccessParser = (*jwt.Manager)(nil)

	var _ func(*goCred.Engine, context.Context, goCred.Channel, string) error = (*goCred.Engine).IssueCode
	var _ func(*goCred.Engine, context.Context, goCred.Channel, string, string) error = (*goCred.Engine).VerifyCode
	var _ func(*goCred.Engine, context.Context, string, goCred.DeviceMeta) (goCred.TokenPair, error) = (*goCred.Engine).IssueSession
	var _ func(*goCred.Engine, context.Context, string, goCred.DeviceMeta) (goCred.TokenPair, error) = (*goCred.Engine).Rotate
	var _ func(*goCred.Engine, context.Context, string) error = (*goCred.Engine).Revoke
}
