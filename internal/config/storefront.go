package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DownloadPolicy controls how download tokens are minted and capped.
type DownloadPolicy struct {
	TokenTTL     time.Duration `mapstructure:"tokenTTL"`
	MaxDownloads int           `mapstructure:"maxDownloads"`
	TokenLength  int           `mapstructure:"tokenLength"`
}

// Branding holds the store-facing copy. Stored settings override these values.
type Branding struct {
	StoreName       string `mapstructure:"storeName" json:"storeName"`
	StoreTagline    string `mapstructure:"storeTagline" json:"storeTagline"`
	HeroHeadline    string `mapstructure:"heroHeadline" json:"heroHeadline"`
	HeroDescription string `mapstructure:"heroDescription" json:"heroDescription"`
	CTAHeadline     string `mapstructure:"ctaHeadline" json:"ctaHeadline"`
	CTADescription  string `mapstructure:"ctaDescription" json:"ctaDescription"`
	MetaTitle       string `mapstructure:"metaTitle" json:"metaTitle"`
	MetaDescription string `mapstructure:"metaDescription" json:"metaDescription"`
}

// CheckoutLabels are the line-item descriptions sent to the payment provider.
type CheckoutLabels struct {
	Bundle   string `mapstructure:"bundle"`
	Template string `mapstructure:"template"`
}

type StorefrontConfig struct {
	Download DownloadPolicy `mapstructure:"download"`
	Labels   CheckoutLabels `mapstructure:"labels"`
	Branding Branding       `mapstructure:"branding"`
}

func DefaultStorefrontConfig() StorefrontConfig {
	return StorefrontConfig{
		Download: DownloadPolicy{
			TokenTTL:     48 * time.Hour,
			MaxDownloads: 5,
			TokenLength:  32,
		},
		Labels: CheckoutLabels{
			Bundle:   "Bundle - Digital Download",
			Template: "Template - Digital Download",
		},
		Branding: Branding{
			StoreName:       "AgenticVault",
			StoreTagline:    "AI Agents & Engineering Tools",
			HeroHeadline:    "The Vault for AI Engineers",
			HeroDescription: "Premium prompt packs, autonomous agents, and automation workflows. Built for developers building the future.",
			CTAHeadline:     "Ready to ship faster?",
			CTADescription:  "Join thousands of AI engineers using our premium tools.",
			MetaTitle:       "AgenticVault.dev | AI Agents & Tools",
			MetaDescription: "The vault for AI engineers. Premium prompt packs, autonomous agents, and automation tools.",
		},
	}
}

type StorefrontConfigHolder struct {
	current atomic.Value // holds StorefrontConfig
}

// NewStaticStorefrontConfigHolder returns a holder that never reloads.
func NewStaticStorefrontConfigHolder(cfg StorefrontConfig) *StorefrontConfigHolder {
	holder := &StorefrontConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewStorefrontConfigHolder(log *zap.Logger) (*StorefrontConfigHolder, error) {
	log = log.Named("storefront-config")

	v := viper.New()
	v.SetConfigName("storefront")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/digistore")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DIGISTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setStorefrontDefaults(v, DefaultStorefrontConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		log.Info("storefront.yml not found, using defaults")
	}

	var cfg StorefrontConfig
	if err := v.UnmarshalKey("storefront", &cfg); err != nil {
		return nil, err
	}
	if err := validateStorefrontConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticStorefrontConfigHolder(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated StorefrontConfig
		if err := v.UnmarshalKey("storefront", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateStorefrontConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *StorefrontConfigHolder) Get() StorefrontConfig {
	return h.current.Load().(StorefrontConfig)
}

func setStorefrontDefaults(v *viper.Viper, d StorefrontConfig) {
	v.SetDefault("storefront.download.tokenTTL", d.Download.TokenTTL)
	v.SetDefault("storefront.download.maxDownloads", d.Download.MaxDownloads)
	v.SetDefault("storefront.download.tokenLength", d.Download.TokenLength)
	v.SetDefault("storefront.labels.bundle", d.Labels.Bundle)
	v.SetDefault("storefront.labels.template", d.Labels.Template)
	v.SetDefault("storefront.branding.storeName", d.Branding.StoreName)
	v.SetDefault("storefront.branding.storeTagline", d.Branding.StoreTagline)
	v.SetDefault("storefront.branding.heroHeadline", d.Branding.HeroHeadline)
	v.SetDefault("storefront.branding.heroDescription", d.Branding.HeroDescription)
	v.SetDefault("storefront.branding.ctaHeadline", d.Branding.CTAHeadline)
	v.SetDefault("storefront.branding.ctaDescription", d.Branding.CTADescription)
	v.SetDefault("storefront.branding.metaTitle", d.Branding.MetaTitle)
	v.SetDefault("storefront.branding.metaDescription", d.Branding.MetaDescription)
}

func validateStorefrontConfig(cfg StorefrontConfig) error {
	if cfg.Download.TokenTTL <= 0 {
		return errors.New("storefront.download.tokenTTL must be positive")
	}
	if cfg.Download.MaxDownloads < 1 {
		return errors.New("storefront.download.maxDownloads must be at least 1")
	}
	if cfg.Download.TokenLength < 16 {
		return errors.New("storefront.download.tokenLength must be at least 16")
	}
	if strings.TrimSpace(cfg.Branding.StoreName) == "" {
		return errors.New("storefront.branding.storeName cannot be empty")
	}
	return nil
}
