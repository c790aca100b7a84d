package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tendzd/settlement/internal/domain/identifier"
	"github.com/tendzd/settlement/internal/domain/settlement"
	"github.com/tendzd/settlement/internal/money"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (TENDZD_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (TENDZD_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL     string `usage:"Redis URL for shared order sequences and rate limits; PostgreSQL sequences and in-memory rate limits when empty" flag:"redis-url"`
	Settlement   SettlementConfig
	BankTransfer BankTransferConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
	HealthTTL    time.Duration `default:"2s" usage:"How long a health check result is reused" flag:"health-ttl"`
}

// SettlementConfig holds the platform-wide settlement parameters. Amounts are
// BHD with up to three decimals.
type SettlementConfig struct {
	VATRate               string `default:"0.10" usage:"VAT rate included in sale prices"`
	FlatShippingFee       string `default:"5.000" usage:"Shipping fee per vendor below its free-shipping threshold"`
	FreeShippingThreshold string `default:"100.000" usage:"Free-shipping threshold for vendors without their own"`
	CommissionRate        string `default:"0.10" usage:"Commission rate for vendors without their own"`
}

// BankTransferConfig enables the bank transfer payment method when IBAN is set.
type BankTransferConfig struct {
	IBAN        string `usage:"Platform collection IBAN"`
	Beneficiary string `default:"Tendzd W.L.L." usage:"Beneficiary name shown in transfer instructions"`
}

// RateLimitConfig controls the per-client fixed window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"120" usage:"Max requests per window, 0 disables"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "TENDZD",
		Files:     []string{"config.yaml", "/etc/tendzd/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set TENDZD_DATABASE_URL or DATABASE_URL")
	}
	if c.BankTransfer.IBAN != "" && !identifier.ValidateIBAN(c.BankTransfer.IBAN) {
		return errors.Errorf("bank transfer IBAN %q is not a Bahraini IBAN", c.BankTransfer.IBAN)
	}
	if _, err := c.Settlement.Engine(); err != nil {
		return err
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL, REDIS_URL and PORT.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Engine parses the settlement parameters.
func (c SettlementConfig) Engine() (settlement.Engine, error) {
	vat, err := decimal.NewFromString(c.VATRate)
	if err != nil {
		return settlement.Engine{}, errors.Wrapf(err, "parse VAT rate %q", c.VATRate)
	}
	if vat.IsNegative() || vat.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return settlement.Engine{}, errors.Wrapf(settlement.ErrInvalidVATRate, "%s", vat)
	}
	commission, err := decimal.NewFromString(c.CommissionRate)
	if err != nil {
		return settlement.Engine{}, errors.Wrapf(err, "parse commission rate %q", c.CommissionRate)
	}
	if err := settlement.ValidateCommissionRate(commission); err != nil {
		return settlement.Engine{}, err
	}
	fee, err := money.Parse(c.FlatShippingFee)
	if err != nil {
		return settlement.Engine{}, errors.Wrap(err, "parse flat shipping fee")
	}
	if fee < 0 {
		return settlement.Engine{}, errors.Wrapf(settlement.ErrInvalidShippingFee, "%s", fee)
	}
	threshold, err := money.Parse(c.FreeShippingThreshold)
	if err != nil {
		return settlement.Engine{}, errors.Wrap(err, "parse free shipping threshold")
	}
	return settlement.Engine{
		VATRate:                      vat,
		FlatShippingFee:              fee,
		DefaultFreeShippingThreshold: threshold,
		DefaultCommissionRate:        commission,
	}, nil
}
