package token

import (
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrInvalid is returned for tokens that are malformed, carry a bad
	// signature, or were signed with an unexpected method.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is returned for correctly signed tokens past their expiry.
	ErrExpired = errors.New("token expired")
)

// Claims is the decoded payload of a verified token.
type Claims map[string]any

// Subject returns the "sub" claim, or an empty string when absent.
func (c Claims) Subject() string {
	sub, _ := c["sub"].(string)
	return sub
}

// Roles returns the "roles" claim as a sorted, deduplicated set of strings.
// An absent or empty claim decodes to an empty set rather than an error.
func (c Claims) Roles() []string {
	raw, ok := c["roles"]
	if !ok {
		return []string{}
	}

	seen := make(map[string]struct{})
	switch list := raw.(type) {
	case []any: // JSON numbers/strings decode to []any
		for _, v := range list {
			if s, ok := v.(string); ok && s != "" {
				seen[s] = struct{}{}
			}
		}
	case []string:
		for _, s := range list {
			if s != "" {
				seen[s] = struct{}{}
			}
		}
	}

	roles := make([]string, 0, len(seen))
	for role := range seen {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// Codec creates and verifies HS256-signed tokens. The signing key is injected
// once at construction and never mutated; a Codec holds no other state and is
// safe for concurrent use.
type Codec struct {
	signingKey []byte
	nowFunc    func() time.Time
}

// CodecOption defines a function type to modify the Codec instance.
type CodecOption func(*Codec)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

// NewCodec initializes a Codec with the given symmetric signing key.
func NewCodec(signingKey []byte, options ...CodecOption) (*Codec, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("[NewCodec] signing key is required")
	}

	codec := &Codec{
		signingKey: signingKey,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(codec)
	}
	return codec, nil
}

// Issue signs a token carrying the subject, the supplied claims, and the
// standard sub/iat/exp/jti claims. The result is a compact three-segment
// base64url string. Supplied claims cannot shadow the registered ones.
func (c *Codec) Issue(subject string, claims map[string]any, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("[Codec.Issue] subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("[Codec.Issue] ttl must be positive")
	}

	now := c.nowFunc()
	mapClaims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": uuid.New().String(),
	}
	for name, value := range claims {
		if _, reserved := mapClaims[name]; reserved {
			continue
		}
		mapClaims[name] = value
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString(c.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "[Codec.Issue] SignedString")
	}
	return signed, nil
}

// Verify recomputes the signature over the header and payload segments and
// checks expiry. Signature failure and expiry are distinct failure kinds:
// ErrExpired is routine (client should re-login), ErrInvalid may indicate
// tampering.
func (c *Codec) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.nowFunc),
	)

	parsed, err := parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return c.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	return Claims(mapClaims), nil
}

// Subject verifies the token and returns its subject.
func (c *Codec) Subject(tokenStr string) (string, error) {
	claims, err := c.Verify(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.Subject(), nil
}

// Claim verifies the token and returns the named claim, or nil when absent.
func (c *Codec) Claim(tokenStr, name string) (any, error) {
	claims, err := c.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	return claims[name], nil
}

// DecodeSubject extracts the subject without verifying the signature. The
// refresh flow uses it to locate the stored session before the full
// signature and expiry checks run; any malformed input maps to ErrInvalid.
func (c *Codec) DecodeSubject(tokenStr string) (string, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil {
		return "", ErrInvalid
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalid
	}
	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return "", ErrInvalid
	}
	return sub, nil
}
