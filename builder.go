package goEnroll

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/MrEthical07/goEnroll/internal"
	internalaudit "github.com/MrEthical07/goEnroll/internal/audit"
	"github.com/MrEthical07/goEnroll/internal/phone"
	"github.com/MrEthical07/goEnroll/receipt"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder collects Engine dependencies.
//
// Builder instances are intended to be configured during initialization and
// used for exactly one Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	logger    *zap.Logger
	clock     clockwork.Clock
	delivery  Delivery
	codeGen   CodeGenerator
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used by the issuance limiter. It is required
// only when IssueThrottle is enabled.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the operational logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces the real clock, typically with a clockwork.FakeClock.
func (b *Builder) WithClock(clock clockwork.Clock) *Builder {
	b.clock = clock
	return b
}

// WithDelivery sets where issued codes are sent. Without it codes are
// dropped by [NoopDelivery].
func (b *Builder) WithDelivery(d Delivery) *Builder {
	b.delivery = d
	return b
}

// WithCodeGenerator overrides the crypto/rand code source. Generated codes
// must be exactly CodeLength ASCII digits.
func (b *Builder) WithCodeGenerator(gen CodeGenerator) *Builder {
	b.codeGen = gen
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
//
// Build fails when the Builder was already used, when the configuration is
// invalid, when IssueThrottle is enabled without a Redis client, and when
// LogDelivery is combined with ProductionMode.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IssueThrottle.Enabled && b.redis == nil {
		return nil, errors.New("IssueThrottle requires redis client")
	}

	delivery := b.delivery
	if delivery == nil {
		delivery = NoopDelivery{}
	}
	if cfg.ProductionMode && isLogDelivery(delivery) {
		return nil, errors.New("LogDelivery is not allowed in ProductionMode")
	}

	// -------- PHONE / FORM VALIDATION --------
	validator, err := phone.NewValidator(cfg.Phone.NumberPattern, cfg.Phone.CountryCodePattern)
	if err != nil {
		return nil, err
	}
	emailPattern, err := regexp.Compile(cfg.Enrollment.EmailPattern)
	if err != nil {
		return nil, fmt.Errorf("compile email pattern: %w", err)
	}
	accountTypes := make(map[AccountType]struct{}, len(cfg.Enrollment.AccountTypes))
	for _, t := range cfg.Enrollment.AccountTypes {
		accountTypes[t] = struct{}{}
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	codeGen := b.codeGen
	if codeGen == nil {
		codeGen = internal.NewCode
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		clock:        clock,
		logger:       logger.Named("goenroll"),
		validator:    validator,
		emailPattern: emailPattern,
		accountTypes: accountTypes,
		delivery:     delivery,
		codeGen:      codeGen,
	}

	engine.issueLimiter = newIssueLimiter(b.redis, cfg.IssueThrottle)
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	// -------- RECEIPT SIGNER --------
	if cfg.Receipt.Enabled {
		signer, err := receipt.NewSigner(receipt.Config{
			TTL:           cfg.Receipt.TTL,
			SigningMethod: receipt.SigningMethod(cfg.Receipt.SigningMethod),
			PrivateKey:    cloneBytes(cfg.Receipt.PrivateKey),
			PublicKey:     cloneBytes(cfg.Receipt.PublicKey),
			Issuer:        cfg.Receipt.Issuer,
			Now:           clock.Now,
		})
		if err != nil {
			engine.Close()
			return nil, err
		}
		engine.receipts = signer
	}

	b.built = true

	return engine, nil
}
