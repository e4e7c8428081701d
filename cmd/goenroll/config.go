package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"

	goEnroll "github.com/MrEthical07/goEnroll"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "GOENROLL"

// settings is everything the CLI resolves before building an engine.
type settings struct {
	Config    goEnroll.Config
	RedisAddr string
	// EphemeralReceiptKey is set when receipts are on without configured keys.
	EphemeralReceiptKey bool
}

// newViper layers, lowest first: built-in defaults, the --config file, .env,
// then GOENROLL_* environment variables. A missing .env is ignored.
func newViper(configFile, dotEnvPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	if dotEnvPath != "" {
		if _, err := os.Stat(dotEnvPath); err == nil {
			d := viper.New()
			d.SetConfigFile(dotEnvPath)
			d.SetConfigType("env")
			if err := d.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read %s: %w", dotEnvPath, err)
			}
			entries := make(map[string]any)
			prefix := strings.ToLower(envPrefix) + "_"
			for _, key := range d.AllKeys() {
				if name, ok := strings.CutPrefix(key, prefix); ok {
					entries[name] = d.Get(key)
				}
			}
			if err := v.MergeConfigMap(entries); err != nil {
				return nil, fmt.Errorf("merge %s: %w", dotEnvPath, err)
			}
		}
	}

	return v, nil
}

// loadSettings maps viper keys onto goEnroll.Config. Keys that are not set
// keep the value from DefaultConfig, or HighSecurityConfig when high_security
// is true.
func loadSettings(v *viper.Viper) (settings, error) {
	var s settings

	cfg := goEnroll.DefaultConfig()
	if v.GetBool("high_security") {
		cfg = goEnroll.HighSecurityConfig()
	}

	// -------- Verification --------
	if v.IsSet("code_length") {
		cfg.Verification.CodeLength = v.GetInt("code_length")
	}
	if v.IsSet("max_attempts") {
		cfg.Verification.MaxAttempts = v.GetInt("max_attempts")
	}
	if v.IsSet("code_ttl") {
		cfg.Verification.CodeTTL = v.GetDuration("code_ttl")
	}
	if v.IsSet("resend_cooldown") {
		cfg.Verification.ResendCooldown = v.GetDuration("resend_cooldown")
	}
	if v.IsSet("lock_duration") {
		cfg.Verification.LockDuration = v.GetDuration("lock_duration")
	}

	// -------- Phone --------
	if v.IsSet("phone_pattern") {
		cfg.Phone.NumberPattern = v.GetString("phone_pattern")
	}
	if v.IsSet("country_code_pattern") {
		cfg.Phone.CountryCodePattern = v.GetString("country_code_pattern")
	}
	if v.IsSet("default_country_code") {
		cfg.Phone.DefaultCountryCode = v.GetString("default_country_code")
	}

	// -------- Enrollment --------
	if v.IsSet("account_types") {
		var types []goEnroll.AccountType
		for _, t := range v.GetStringSlice("account_types") {
			for _, part := range strings.Split(t, ",") {
				if part = strings.TrimSpace(part); part != "" {
					types = append(types, goEnroll.AccountType(part))
				}
			}
		}
		cfg.Enrollment.AccountTypes = types
	}
	if v.IsSet("name_min_length") {
		cfg.Enrollment.NameMinLength = v.GetInt("name_min_length")
	}

	// -------- Issue throttle --------
	if v.IsSet("issue_throttle_enabled") {
		cfg.IssueThrottle.Enabled = v.GetBool("issue_throttle_enabled")
	}
	if v.IsSet("max_issues_per_window") {
		cfg.IssueThrottle.MaxIssuesPerWindow = v.GetInt("max_issues_per_window")
	}
	if v.IsSet("issue_window") {
		cfg.IssueThrottle.IssueWindow = v.GetDuration("issue_window")
	}
	s.RedisAddr = v.GetString("redis_addr")

	// -------- Receipt --------
	if v.IsSet("receipt_enabled") {
		cfg.Receipt.Enabled = v.GetBool("receipt_enabled")
	}
	if v.IsSet("receipt_issuer") {
		cfg.Receipt.Issuer = v.GetString("receipt_issuer")
	}
	if v.IsSet("receipt_ttl") {
		cfg.Receipt.TTL = v.GetDuration("receipt_ttl")
	}
	if v.IsSet("receipt_method") {
		cfg.Receipt.SigningMethod = v.GetString("receipt_method")
	}
	if secret := v.GetString("receipt_secret"); secret != "" {
		cfg.Receipt.PrivateKey = []byte(secret)
	}
	if path := v.GetString("receipt_private_key_file"); path != "" {
		key, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("read receipt private key: %w", err)
		}
		cfg.Receipt.PrivateKey = key
	}
	if path := v.GetString("receipt_public_key_file"); path != "" {
		key, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("read receipt public key: %w", err)
		}
		cfg.Receipt.PublicKey = key
	}
	if cfg.Receipt.Enabled && cfg.Receipt.SigningMethod == "ed25519" &&
		len(cfg.Receipt.PrivateKey) == 0 && len(cfg.Receipt.PublicKey) == 0 {
		if cfg.ProductionMode {
			return s, errors.New("receipt keys are required in production mode")
		}
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return s, fmt.Errorf("generate receipt key: %w", err)
		}
		cfg.Receipt.PrivateKey = priv
		cfg.Receipt.PublicKey = pub
		s.EphemeralReceiptKey = true
	}

	// -------- Audit / metrics --------
	if v.IsSet("audit_enabled") {
		cfg.Audit.Enabled = v.GetBool("audit_enabled")
	}
	if v.IsSet("audit_buffer_size") {
		cfg.Audit.BufferSize = v.GetInt("audit_buffer_size")
	}
	if v.IsSet("metrics_enabled") {
		cfg.Metrics.Enabled = v.GetBool("metrics_enabled")
	}
	if v.IsSet("latency_histograms") {
		cfg.Metrics.EnableLatencyHistograms = v.GetBool("latency_histograms")
	}
	if v.IsSet("production_mode") {
		cfg.ProductionMode = v.GetBool("production_mode")
	}

	if err := cfg.Validate(); err != nil {
		return s, fmt.Errorf("invalid configuration: %w", err)
	}
	s.Config = cfg
	return s, nil
}

// resolveSettings is newViper + loadSettings with the CLI's flag values.
func resolveSettings() (settings, error) {
	v, err := newViper(configPath, ".env")
	if err != nil {
		return settings{}, err
	}
	s, err := loadSettings(v)
	if err != nil {
		return settings{}, err
	}
	if s.EphemeralReceiptKey && logger != nil {
		logger.Warn("receipts enabled without keys; using an ephemeral ed25519 key",
			zap.String("issuer", s.Config.Receipt.Issuer),
		)
	}
	return s, nil
}
