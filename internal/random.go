package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	refreshTokenRawSize = 48

	MinOTPDigits = 4
	MaxOTPDigits = 10
)

var ErrMalformedRefreshToken = errors.New("malformed refresh token")

// NewRefreshToken returns an opaque base64url token carrying 384 random bits.
func NewRefreshToken() (string, error) {
	var raw [refreshTokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeRefreshToken checks that token has the shape produced by
// NewRefreshToken and returns its raw bytes.
func DecodeRefreshToken(token string) ([refreshTokenRawSize]byte, error) {
	var raw [refreshTokenRawSize]byte

	if base64.RawURLEncoding.DecodedLen(len(token)) != refreshTokenRawSize {
		return raw, ErrMalformedRefreshToken
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(decoded) != refreshTokenRawSize {
		return raw, ErrMalformedRefreshToken
	}

	copy(raw[:], decoded)
	return raw, nil
}

// NewOTP returns a string of digits, each drawn uniformly from crypto/rand.
// Leading zeros are preserved.
func NewOTP(digits int) (string, error) {
	if digits < MinOTPDigits || digits > MaxOTPDigits {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}
