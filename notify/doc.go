// Package notify holds goCred.Transport implementations.
//
// Subpackages:
//
//   - sms: Amazon SNS Publish to an E.164 phone number.
//   - email: SMTP delivery built with jordan-wright/email.
//   - logsink: writes deliveries to a slog.Logger for local development.
//
// The root goCred package never imports these; wire them through
// Builder.WithSMSTransport and Builder.WithEmailTransport.
package notify
