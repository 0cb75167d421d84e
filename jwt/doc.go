// Package jwt signs and verifies the access tokens handed out next to goCred
// refresh tokens. [Manager] implements goCred.TokenGenerator: the subject is
// the session owner and the "sid" claim is the session ID, so an API can
// reject access tokens of revoked sessions if it chooses to.
package jwt
