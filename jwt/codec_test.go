package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func newHS256Codec(t *testing.T, secret string) *Codec {
	t.Helper()

	codec, err := NewCodec(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte(secret),
	})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return codec
}

func newEd25519Codec(t *testing.T) *Codec {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}

	codec, err := NewCodec(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return codec
}

func TestEncodeDecodeRoundtripHS256(t *testing.T) {
	codec := newHS256Codec(t, "test-secret")

	token, err := codec.Encode("alice", "sid-1")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	claims, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if claims.Principal() != "alice" {
		t.Fatalf("unexpected principal %q", claims.Principal())
	}
	if claims.SID != "sid-1" {
		t.Fatalf("unexpected session %q", claims.SID)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Fatal("expected time claims")
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		t.Fatal("expiry must be after issuance")
	}
}

func TestEncodeDecodeRoundtripEd25519(t *testing.T) {
	codec := newEd25519Codec(t)

	token, err := codec.Encode("bob", "sid-2")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	claims, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if claims.Principal() != "bob" || claims.SID != "sid-2" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestDecodeMalformed(t *testing.T) {
	codec := newHS256Codec(t, "test-secret")

	for _, raw := range []string{"", "not-a-token", "a.b"} {
		if _, err := codec.Decode(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("input %q: expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestDecodeTamperedSignature(t *testing.T) {
	signer := newHS256Codec(t, "secret-one")
	verifier := newHS256Codec(t, "secret-two")

	token, err := signer.Encode("alice", "sid-1")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if _, err := verifier.Decode(token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestDecodeRejectsAlgorithmConfusion(t *testing.T) {
	hsCodec := newHS256Codec(t, "test-secret")
	edCodec := newEd25519Codec(t)

	token, err := hsCodec.Encode("alice", "sid-1")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if _, err := edCodec.Decode(token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for wrong algorithm, got %v", err)
	}
}

func TestDecodeExpired(t *testing.T) {
	codec := newHS256Codec(t, "test-secret")

	token, err := codec.EncodeWithTTL("alice", "sid-1", -time.Minute)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if _, err := codec.Decode(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestLeewayAcceptsRecentlyExpired(t *testing.T) {
	codec, err := NewCodec(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-secret"),
		Leeway:        time.Minute,
	})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	// Expired 10 seconds ago, inside the leeway window.
	token, err := codec.EncodeWithTTL("alice", "sid-1", -10*time.Second)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := codec.Decode(token); err != nil {
		t.Fatalf("decode inside leeway failed: %v", err)
	}
}

func TestIssuerAndAudienceEnforced(t *testing.T) {
	issuerCodec, err := NewCodec(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-secret"),
		Issuer:        "svc-a",
		Audience:      "api",
	})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	plain := newHS256Codec(t, "test-secret")
	token, err := plain.Encode("alice", "sid-1")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	// Token without the expected issuer/audience fails verification.
	if _, err := issuerCodec.Decode(token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}

	own, err := issuerCodec.Encode("alice", "sid-1")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := issuerCodec.Decode(own); err != nil {
		t.Fatalf("self-issued token must verify: %v", err)
	}
}

func TestKeyRotationByKID(t *testing.T) {
	pubOld, privOld, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	pubNew, privNew, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}

	oldSigner, err := NewCodec(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    privOld,
		PublicKey:     pubOld,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pubOld},
	})
	if err != nil {
		t.Fatalf("NewCodec old failed: %v", err)
	}

	verifier, err := NewCodec(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    privNew,
		PublicKey:     pubNew,
		KeyID:         "k2",
		VerifyKeys: map[string][]byte{
			"k1": pubOld,
			"k2": pubNew,
		},
	})
	if err != nil {
		t.Fatalf("NewCodec verifier failed: %v", err)
	}

	token, err := oldSigner.Encode("alice", "sid-1")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := verifier.Decode(token); err != nil {
		t.Fatalf("token signed with retired key must verify via kid: %v", err)
	}
}

func TestNewCodecRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{SigningMethod: MethodHS256, PrivateKey: []byte("x")}},
		{"negative leeway", Config{AccessTTL: time.Minute, Leeway: -time.Second, SigningMethod: MethodHS256, PrivateKey: []byte("x")}},
		{"excessive leeway", Config{AccessTTL: time.Minute, Leeway: 3 * time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("x")}},
		{"hs256 no key", Config{AccessTTL: time.Minute, SigningMethod: MethodHS256}},
		{"ed25519 no keys", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519}},
		{"unknown method", Config{AccessTTL: time.Minute, SigningMethod: "rs256", PrivateKey: []byte("x")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewCodec(tc.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
