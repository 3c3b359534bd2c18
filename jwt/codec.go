package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Decode failure classes. Wrapped around the underlying verification error;
// match with errors.Is.
var (
	// ErrMalformed is returned when the token cannot be parsed at all.
	ErrMalformed = errors.New("access token malformed")
	// ErrSignatureInvalid is returned for tampered, forged, or otherwise
	// unverifiable tokens, including claim mismatches (issuer, audience).
	ErrSignatureInvalid = errors.New("access token signature invalid")
	// ErrExpired is returned when the token is past its expiry beyond the
	// configured leeway.
	ErrExpired = errors.New("access token expired")
)

// SigningMethod defines a public type used by refreshguard APIs.
//
// SigningMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningMethod string

const (
	// MethodEd25519 is an exported constant or variable used by the session core.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 is an exported constant or variable used by the session core.
	MethodHS256 SigningMethod = "hs256"
)

// Config defines a public type used by refreshguard APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Codec signs and verifies access tokens. Codec instances are immutable and
// safe for concurrent use.
type Codec struct {
	config Config
}

// Claims is the verified payload of an access token. The principal travels
// in the registered subject claim; the session ID in "sid".
type Claims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// Principal returns the authenticated subject embedded in the token.
func (c *Claims) Principal() string {
	return c.Subject
}

// NewCodec validates cfg and returns a ready [Codec].
//
// NewCodec may return an error when input validation, dependency calls, or security checks fail.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Codec{config: cfg}, nil
}

// Encode signs an access token for principal bound to sessionID using the
// configured TTL.
func (c *Codec) Encode(principal, sessionID string) (string, error) {
	return c.EncodeWithTTL(principal, sessionID, c.config.AccessTTL)
}

// EncodeWithTTL signs an access token with an explicit TTL override. The
// manager uses this for short-lived tokens; TTL choice is the caller's
// responsibility.
func (c *Codec) EncodeWithTTL(principal, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		SID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.config.Issuer,
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	token := jwt.NewWithClaims(c.getMethod(), claims)
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}

	signKey, err := c.getSignKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

// Decode verifies tokenStr and returns its claims, classifying failures into
// [ErrMalformed], [ErrSignatureInvalid], or [ErrExpired]. No side effects.
func (c *Codec) Decode(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.getMethod().Alg()}),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if c.config.Audience != "" {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(c.config.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := c.config.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return c.keyBytesToVerifyKey(key)
		}

		if c.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			if kid != c.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}

		return c.getVerifyKey()
	})
	if err != nil {
		return nil, classifyDecodeError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, jwt.ErrTokenInvalidClaims)
	}
	if claims.IssuedAt != nil && c.config.MaxFutureIAT > 0 {
		maxAllowed := time.Now().Add(c.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, fmt.Errorf("%w: token iat too far in the future", ErrSignatureInvalid)
		}
	}

	return claims, nil
}

func classifyDecodeError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		// Signature failures, unknown keys, algorithm confusion, and claim
		// mismatches all reject the token as unverifiable.
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
}

func (c *Codec) getMethod() jwt.SigningMethod {
	switch c.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (c *Codec) getSignKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(c.config.PrivateKey)
	}
}

func (c *Codec) getVerifyKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPublicKey(c.config.PublicKey)
	}
}

func (c *Codec) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
