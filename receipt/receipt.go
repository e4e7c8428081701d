package receipt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWT algorithm used for receipts.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

var (
	ErrInvalidReceipt = errors.New("invalid phone receipt")
	ErrSignerConfig   = errors.New("invalid receipt signer configuration")
)

// Config configures a [Signer]. PrivateKey is the HMAC secret for hs256 and
// the raw or PEM ed25519 private key otherwise.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	// Now defaults to time.Now. Tests pass a fake clock's Now.
	Now func() time.Time
}

// Claims is the payload of a phone receipt.
type Claims struct {
	Phone       string `json:"phone"`
	CountryCode string `json:"cc"`
	SessionID   string `json:"sid"`
	VerifiedAt  int64  `json:"verified_at"`
	jwt.RegisteredClaims
}

// Subject identifies what a receipt attests to.
type Subject struct {
	Phone        string
	CountryCode  string
	SessionID    string
	EnrollmentID string
	VerifiedAt   time.Time
}

// Signer mints and verifies phone receipts.
type Signer struct {
	config Config
}

// NewSigner validates cfg and returns a ready Signer.
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: TTL must be > 0", ErrSignerConfig)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, fmt.Errorf("%w: invalid leeway", ErrSignerConfig)
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodEd25519
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, fmt.Errorf("%w: hs256 requires private key", ErrSignerConfig)
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSignerConfig, err)
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, fmt.Errorf("%w: ed25519 requires public key", ErrSignerConfig)
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignerConfig, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported signing method", ErrSignerConfig)
	}

	return &Signer{config: cfg}, nil
}

// Issue signs a receipt for s. The token id is a fresh UUID and the subject
// is the enrollment ID.
func (s *Signer) Issue(subject Subject) (string, error) {
	if s == nil {
		return "", ErrSignerConfig
	}
	if subject.Phone == "" || subject.SessionID == "" {
		return "", errors.New("receipt subject requires phone and session id")
	}
	if len(s.config.PrivateKey) == 0 {
		return "", fmt.Errorf("%w: signer has no private key", ErrSignerConfig)
	}

	now := s.config.Now()
	claims := Claims{
		Phone:       subject.Phone,
		CountryCode: subject.CountryCode,
		SessionID:   subject.SessionID,
		VerifiedAt:  subject.VerifiedAt.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject.EnrollmentID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
		},
	}
	if s.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.config.Audience}
	}

	token := jwt.NewWithClaims(s.method(), claims)
	if s.config.KeyID != "" {
		token.Header["kid"] = s.config.KeyID
	}

	key, err := s.signKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(key)
}

// Parse verifies signature, algorithm, issuer, audience and expiry, returning
// the claims. Every failure wraps [ErrInvalidReceipt].
func (s *Signer) Parse(token string) (*Claims, error) {
	if s == nil {
		return nil, ErrSignerConfig
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method().Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.config.Now),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}
	if s.config.Audience != "" {
		options = append(options, jwt.WithAudience(s.config.Audience))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != s.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if s.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != s.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return s.verifyKey()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReceipt, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidReceipt
	}
	if claims.Phone == "" || claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing phone claims", ErrInvalidReceipt)
	}
	return claims, nil
}

func (s *Signer) method() jwt.SigningMethod {
	if s.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (s *Signer) signKey() (interface{}, error) {
	if s.config.SigningMethod == MethodHS256 {
		return s.config.PrivateKey, nil
	}
	return parseEdPrivateKey(s.config.PrivateKey)
}

func (s *Signer) verifyKey() (interface{}, error) {
	if s.config.SigningMethod == MethodHS256 {
		return s.config.PrivateKey, nil
	}
	return parseEdPublicKey(s.config.PublicKey)
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
