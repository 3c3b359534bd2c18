// Package jwt implements the stateless access-token codec: signing claims
// into compact JWTs and verifying them back into [Claims].
//
// Decode failures are classified into the sentinel errors [ErrMalformed],
// [ErrSignatureInvalid], and [ErrExpired], so callers never branch on library
// internals. Leeway applies to time-based claims only; signature verification
// is never relaxed.
package jwt
