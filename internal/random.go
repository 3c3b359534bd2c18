package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const tokenIDRawSize = 32

// NewSessionID returns a random v4 UUID string. 122 bits of entropy, well
// above the unguessability floor for a session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// NewTokenID returns a 256-bit random token identifier encoded as
// base64url without padding. The token ID doubles as the opaque refresh
// token handed to clients, so it must be unguessable.
func NewTokenID() (string, error) {
	var raw [tokenIDRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ValidateTokenID rejects strings that cannot be a token ID before any store
// round-trip happens.
func ValidateTokenID(tokenID string) error {
	raw, err := base64.RawURLEncoding.DecodeString(tokenID)
	if err != nil {
		return err
	}
	if len(raw) != tokenIDRawSize {
		return errors.New("invalid token id size")
	}
	return nil
}
