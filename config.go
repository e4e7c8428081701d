package goEnroll

import (
	"errors"
	"regexp"
	"time"

	"github.com/MrEthical07/goEnroll/internal"
	"github.com/MrEthical07/goEnroll/receipt"
)

// Config holds every tunable of the enrollment flow. It is copied into the
// Engine at Build time; later mutation of the caller's value has no effect.
type Config struct {
	Verification   VerificationConfig
	Phone          PhoneConfig
	Enrollment     EnrollmentConfig
	IssueThrottle  IssueThrottleConfig
	Receipt        ReceiptConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	ProductionMode bool
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig drives the code lifecycle.
type VerificationConfig struct {
	CodeLength     int
	MaxAttempts    int
	CodeTTL        time.Duration
	ResendCooldown time.Duration
	LockDuration   time.Duration
}

// PhoneConfig holds the anchored patterns numbers are checked against. Numbers
// are matched exactly as entered.
type PhoneConfig struct {
	NumberPattern      string
	CountryCodePattern string
	DefaultCountryCode string
}

// EnrollmentConfig covers the non-verification steps of the wizard.
type EnrollmentConfig struct {
	AccountTypes  []AccountType
	NameMinLength int
	EmailPattern  string
}

/*
====================================
THROTTLE / RECEIPT CONFIG
====================================
*/

// IssueThrottleConfig enables the Redis fixed-window limit on codes sent to
// one phone number. It requires a Redis client on the Builder.
type IssueThrottleConfig struct {
	Enabled            bool
	EnableIPThrottle   bool
	MaxIssuesPerWindow int
	IssueWindow        time.Duration
}

// ReceiptConfig enables signed proof-of-verification tokens.
type ReceiptConfig struct {
	Enabled       bool
	Issuer        string
	TTL           time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the settings of the original enrollment flow: six
// digits, three attempts, a two minute code, a one minute resend cooldown and
// a fifteen minute lock.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Verification: VerificationConfig{
			CodeLength:     6,
			MaxAttempts:    3,
			CodeTTL:        120 * time.Second,
			ResendCooldown: 60 * time.Second,
			LockDuration:   15 * time.Minute,
		},
		Phone: PhoneConfig{
			NumberPattern:      `^\d{10}$`,
			CountryCodePattern: `^\+\d{1,4}$`,
			DefaultCountryCode: "+1",
		},
		Enrollment: EnrollmentConfig{
			AccountTypes:  []AccountType{AccountPersonal, AccountBusiness},
			NameMinLength: 2,
			EmailPattern:  `^[^\s@]+@[^\s@]+\.[^\s@]+$`,
		},
		IssueThrottle: IssueThrottleConfig{
			Enabled:            false,
			EnableIPThrottle:   false,
			MaxIssuesPerWindow: 5,
			IssueWindow:        time.Hour,
		},
		Receipt: ReceiptConfig{
			Enabled:       false,
			Issuer:        "goenroll",
			TTL:           10 * time.Minute,
			SigningMethod: "ed25519",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		ProductionMode: false,
	}
}

// HighSecurityConfig tightens the defaults for public deployments: longer
// codes, shorter TTL, issuance throttling and audit on. The receipt keys are
// left empty; callers that enable receipts must supply them.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.Verification.CodeLength = 8
	cfg.Verification.CodeTTL = 90 * time.Second
	cfg.Verification.LockDuration = 30 * time.Minute
	cfg.IssueThrottle.Enabled = true
	cfg.IssueThrottle.EnableIPThrottle = true
	cfg.IssueThrottle.MaxIssuesPerWindow = 3
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.ProductionMode = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Enrollment.AccountTypes = append([]AccountType(nil), cfg.Enrollment.AccountTypes...)
	out.Receipt.PrivateKey = cloneBytes(cfg.Receipt.PrivateKey)
	out.Receipt.PublicKey = cloneBytes(cfg.Receipt.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error found, or nil.
func (c *Config) Validate() error {
	// Verification
	if c.Verification.CodeLength < internal.MinCodeDigits || c.Verification.CodeLength > internal.MaxCodeDigits {
		return errors.New("Verification CodeLength must be between 4 and 10")
	}
	if c.Verification.MaxAttempts <= 0 {
		return errors.New("Verification MaxAttempts must be > 0")
	}
	if c.Verification.CodeTTL <= 0 {
		return errors.New("Verification CodeTTL must be > 0")
	}
	if c.Verification.ResendCooldown < 0 {
		return errors.New("Verification ResendCooldown must be >= 0")
	}
	if c.Verification.LockDuration <= 0 {
		return errors.New("Verification LockDuration must be > 0")
	}

	// Phone
	if c.Phone.NumberPattern == "" || c.Phone.CountryCodePattern == "" {
		return errors.New("Phone NumberPattern and CountryCodePattern are required")
	}
	if _, err := regexp.Compile(c.Phone.NumberPattern); err != nil {
		return errors.New("Phone NumberPattern does not compile")
	}
	cc, err := regexp.Compile(c.Phone.CountryCodePattern)
	if err != nil {
		return errors.New("Phone CountryCodePattern does not compile")
	}
	if c.Phone.DefaultCountryCode != "" && !cc.MatchString(c.Phone.DefaultCountryCode) {
		return errors.New("Phone DefaultCountryCode does not match CountryCodePattern")
	}

	// Enrollment
	if len(c.Enrollment.AccountTypes) == 0 {
		return errors.New("Enrollment AccountTypes must not be empty")
	}
	for _, t := range c.Enrollment.AccountTypes {
		if t == "" {
			return errors.New("Enrollment AccountTypes must not contain empty values")
		}
	}
	if c.Enrollment.NameMinLength < 1 {
		return errors.New("Enrollment NameMinLength must be >= 1")
	}
	if _, err := regexp.Compile(c.Enrollment.EmailPattern); err != nil || c.Enrollment.EmailPattern == "" {
		return errors.New("Enrollment EmailPattern must be a valid pattern")
	}

	// Issue throttle
	if c.IssueThrottle.Enabled {
		if c.IssueThrottle.MaxIssuesPerWindow <= 0 {
			return errors.New("IssueThrottle MaxIssuesPerWindow must be > 0 when enabled")
		}
		if c.IssueThrottle.IssueWindow <= 0 {
			return errors.New("IssueThrottle IssueWindow must be > 0 when enabled")
		}
	}

	// Receipt
	if c.Receipt.Enabled {
		if c.Receipt.TTL <= 0 {
			return errors.New("Receipt TTL must be > 0")
		}
		if c.Receipt.Issuer == "" {
			return errors.New("Receipt Issuer is required")
		}
		switch receipt.SigningMethod(c.Receipt.SigningMethod) {
		case receipt.MethodEd25519:
			if len(c.Receipt.PrivateKey) == 0 || len(c.Receipt.PublicKey) == 0 {
				return errors.New("ed25519 receipts require PrivateKey and PublicKey")
			}
		case receipt.MethodHS256:
			if len(c.Receipt.PrivateKey) == 0 {
				return errors.New("hs256 receipts require PrivateKey")
			}
		default:
			return errors.New("unsupported Receipt signing method")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.ProductionMode {
		if c.Verification.CodeLength < 6 {
			return errors.New("ProductionMode requires Verification CodeLength >= 6")
		}
		if c.Verification.MaxAttempts > 5 {
			return errors.New("ProductionMode requires Verification MaxAttempts <= 5")
		}
		if c.Verification.CodeTTL > 15*time.Minute {
			return errors.New("ProductionMode requires Verification CodeTTL <= 15m")
		}
		if c.Verification.ResendCooldown <= 0 {
			return errors.New("ProductionMode requires Verification ResendCooldown > 0")
		}
		if c.Receipt.Enabled && receipt.SigningMethod(c.Receipt.SigningMethod) == receipt.MethodHS256 && len(c.Receipt.PrivateKey) < 32 {
			return errors.New("ProductionMode requires hs256 key length >= 256 bits")
		}
	}

	return nil
}
