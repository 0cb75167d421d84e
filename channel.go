package goCred

import (
	"strings"

	"github.com/MrEthical07/goCred/internal/flows"
	"github.com/MrEthical07/goCred/internal/limiters"
	"github.com/MrEthical07/goCred/internal/stores"
	"github.com/go-playground/validator/v10"
)

// Channel names a verification delivery channel.
type Channel string

const (
	// ChannelSMS delivers codes to phone numbers.
	ChannelSMS Channel = "sms"
	// ChannelEmail delivers codes to email addresses.
	ChannelEmail Channel = "email"
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// NormalizePhone strips separators and a leading "+" from raw and returns the
// remaining digits. It fails with ErrInvalidIdentifier unless 7 to 15 digits
// remain.
func NormalizePhone(raw string) (string, error) {
	s := phoneSeparators.Replace(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "+")

	if len(s) < minPhoneDigits || len(s) > maxPhoneDigits {
		return "", ErrInvalidIdentifier
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", ErrInvalidIdentifier
		}
	}
	return s, nil
}

var emailValidator = validator.New()

// NormalizeEmail trims and lowercases raw. It fails with
// ErrInvalidIdentifier when the result is not a syntactically valid address.
func NormalizeEmail(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrInvalidIdentifier
	}
	if err := emailValidator.Var(s, "email"); err != nil {
		return "", ErrInvalidIdentifier
	}
	return s, nil
}

// channel binds one configured Channel to its policy and collaborators.
type channel struct {
	name      Channel
	cfg       ChannelConfig
	normalize func(string) (string, error)
	transport Transport
	codes     *stores.CodeStore
	limiter   *limiters.CodeIssueLimiter
	deps      flows.CodeDeps
}

func normalizerFor(name Channel) func(string) (string, error) {
	switch name {
	case ChannelSMS:
		return NormalizePhone
	case ChannelEmail:
		return NormalizeEmail
	default:
		return nil
	}
}
