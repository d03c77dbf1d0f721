package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const CurrencyTHB = "THB"

// PaymentConfig holds settings for the QR transfer provider.
type PaymentConfig struct {
	Currency  string          `mapstructure:"currency"`
	PromptPay PromptPayConfig `mapstructure:"promptpay"`
}

type PromptPayConfig struct {
	// ID is a Thai mobile number or a 13 digit national/tax id.
	ID           string `mapstructure:"id"`
	MerchantName string `mapstructure:"merchantName"`
	MerchantCity string `mapstructure:"merchantCity"`
	// WebhookSecret signs transfer confirmations sent by the provider.
	WebhookSecret string `mapstructure:"webhookSecret"`
}

func DefaultPaymentConfig() PaymentConfig {
	return PaymentConfig{
		Currency: CurrencyTHB,
		PromptPay: PromptPayConfig{
			MerchantName: "PattaMap",
			MerchantCity: "Pattaya",
		},
	}
}

type PaymentConfigHolder struct {
	current atomic.Value // holds PaymentConfig
}

// NewStaticPaymentConfigHolder returns a holder that never reloads.
func NewStaticPaymentConfigHolder(cfg PaymentConfig) *PaymentConfigHolder {
	holder := &PaymentConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewPaymentConfigHolder(log *zap.Logger) (*PaymentConfigHolder, error) {
	log = log.Named("payment.config")
	v := viper.New()

	v.SetConfigName("payment")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/pattamap/config") // Volume-mounted config
	v.AddConfigPath("/etc/pattamap")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("PATTAMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPaymentConfig()
	v.SetDefault("payment.currency", defaults.Currency)
	v.SetDefault("payment.promptpay.id", defaults.PromptPay.ID)
	v.SetDefault("payment.promptpay.merchantName", defaults.PromptPay.MerchantName)
	v.SetDefault("payment.promptpay.merchantCity", defaults.PromptPay.MerchantCity)
	v.SetDefault("payment.promptpay.webhookSecret", defaults.PromptPay.WebhookSecret)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg PaymentConfig
	if err := v.UnmarshalKey("payment", &cfg); err != nil {
		return nil, err
	}
	if err := validatePaymentConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticPaymentConfigHolder(cfg)
	if !fileLoaded {
		log.Info("payment config file not found, using defaults",
			zap.Bool("promptpay_configured", cfg.PromptPay.Configured()),
		)
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PaymentConfig
		if err := v.UnmarshalKey("payment", &updated); err != nil {
			log.Warn("payment config reload failed", zap.Error(err))
			return
		}
		if err := validatePaymentConfig(updated); err != nil {
			log.Warn("invalid payment config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("payment config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PaymentConfigHolder) Get() PaymentConfig {
	return h.current.Load().(PaymentConfig)
}

// Configured reports whether QR transfers can be offered.
func (c PromptPayConfig) Configured() bool {
	return strings.TrimSpace(c.ID) != ""
}

func validatePaymentConfig(cfg PaymentConfig) error {
	if !strings.EqualFold(strings.TrimSpace(cfg.Currency), CurrencyTHB) {
		return errors.New("payment.currency must be THB")
	}
	id := strings.TrimSpace(cfg.PromptPay.ID)
	if id == "" {
		return nil
	}
	digits := 0
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '-' || r == ' ' || r == '+':
		default:
			return errors.New("payment.promptpay.id must be numeric")
		}
	}
	switch digits {
	case 10, 11, 13, 15:
	default:
		return errors.New("payment.promptpay.id has invalid length")
	}
	return nil
}
