// Package config loads run settings from defaults, an optional config file,
// a .env file, environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/contactkeval/option-greeks/internal/chain"
	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

// EnvPrefix namespaces environment overrides, e.g. OPTGREEKS_RATE_SOURCE.
const EnvPrefix = "OPTGREEKS"

type Config struct {
	Ticker            string `mapstructure:"ticker" validate:"required,printascii,max=12"`
	Fridays           int    `mapstructure:"fridays" validate:"min=1,max=52"`
	DataDir           string `mapstructure:"data_dir" validate:"required"`
	OutputDir         string `mapstructure:"output_dir" validate:"required"`
	Provider          string `mapstructure:"provider" validate:"oneof=massive finviz local synthetic"`
	SecondaryProvider string `mapstructure:"secondary_provider" validate:"omitempty,oneof=massive finviz local synthetic,nefield=Provider"`
	Seed              int64  `mapstructure:"seed"`
	StrikeFilter      string `mapstructure:"strike_filter"`

	Rate        RateConfig `mapstructure:"rate"`
	HistVolDays int        `mapstructure:"hist_vol_days" validate:"min=3"`
	PriceSource string     `mapstructure:"price_source" validate:"oneof=mid last model"`
	Workers     int        `mapstructure:"workers" validate:"min=1,max=256"`
	SaveBars    bool       `mapstructure:"save_bars"`

	Calibration pricing.CalibrationConfig `mapstructure:"calibration"`

	Verbosity int       `mapstructure:"verbosity" validate:"min=0,max=3"`
	Log       LogConfig `mapstructure:"log"`

	MassiveAPIKey string `mapstructure:"massive_api_key"`
	FinvizAPIKey  string `mapstructure:"finviz_api_key"`
	FREDAPIKey    string `mapstructure:"fred_api_key"`

	Server ServerConfig `mapstructure:"server"`
}

type RateConfig struct {
	Source string  `mapstructure:"source" validate:"oneof=fred static"`
	Value  float64 `mapstructure:"value" validate:"gte=-1,lte=1"` // decimal, used when Source is static
	Series string  `mapstructure:"series"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	JSON       bool   `mapstructure:"json"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// flagKeys maps config keys to the command-line flags that override them.
var flagKeys = map[string]string{
	"ticker":             "ticker",
	"fridays":            "fridays",
	"data_dir":           "data-dir",
	"output_dir":         "output-dir",
	"provider":           "provider",
	"secondary_provider": "secondary-provider",
	"seed":               "seed",
	"strike_filter":      "strike-filter",
	"rate.source":        "rate-source",
	"rate.value":         "rate",
	"hist_vol_days":      "hist-vol-days",
	"price_source":       "price-source",
	"workers":            "workers",
	"save_bars":          "save-bars",
	"verbosity":          "verbosity",
	"log.file":           "log-file",
	"server.addr":        "addr",
}

func setDefaults(v *viper.Viper) {
	cal := pricing.DefaultCalibrationConfig()

	v.SetDefault("ticker", "")
	v.SetDefault("fridays", 4)
	v.SetDefault("data_dir", "data")
	v.SetDefault("output_dir", "data")
	v.SetDefault("provider", "finviz")
	v.SetDefault("secondary_provider", "")
	v.SetDefault("seed", 1)
	v.SetDefault("strike_filter", "")
	v.SetDefault("rate.source", "fred")
	v.SetDefault("rate.value", 0.05)
	v.SetDefault("rate.series", data.FedFundsSeries)
	v.SetDefault("hist_vol_days", 30)
	v.SetDefault("price_source", string(data.PriceMid))
	v.SetDefault("workers", 8)
	v.SetDefault("save_bars", false)
	v.SetDefault("calibration.tolerance", cal.Tolerance)
	v.SetDefault("calibration.max_iterations", cal.MaxIterations)
	v.SetDefault("calibration.vega_epsilon", cal.VegaEpsilon)
	v.SetDefault("calibration.min_sigma", cal.MinSigma)
	v.SetDefault("calibration.max_sigma", cal.MaxSigma)
	v.SetDefault("verbosity", int(logger.Info))
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.json", false)
	v.SetDefault("massive_api_key", "")
	v.SetDefault("finviz_api_key", "")
	v.SetDefault("fred_api_key", "")
	v.SetDefault("server.addr", ":8080")
}

// Load builds a Config. path names an optional config file (YAML, JSON or
// TOML by extension); flags may be nil. A .env file in the working
// directory is read first but never overrides variables already set.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// provider keys are also read under their usual unprefixed names
	for key, env := range map[string]string{
		"massive_api_key": "MASSIVE_API_KEY",
		"finviz_api_key":  "FINVIZ_API_KEY",
		"fred_api_key":    "FRED_API_KEY",
	} {
		if err := v.BindEnv(key, EnvPrefix+"_"+env, env); err != nil {
			return nil, errors.Wrapf(err, "bind env %s", env)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		logger.Debugf("config file %s", v.ConfigFileUsed())
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "bind flag %s", name)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.Ticker = NormalizeTicker(cfg.Ticker)
	cfg.Provider = strings.ToLower(cfg.Provider)
	cfg.SecondaryProvider = strings.ToLower(cfg.SecondaryProvider)
	cfg.PriceSource = strings.ToLower(cfg.PriceSource)
	return &cfg, nil
}

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and that every selected remote source has
// its API key.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if err := c.Calibration.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if _, err := chain.NewStrikeFilter(c.StrikeFilter); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	for _, p := range []string{c.Provider, c.SecondaryProvider} {
		switch {
		case p == "massive" && c.MassiveAPIKey == "":
			return errors.New("invalid config: provider massive needs massive_api_key")
		case p == "finviz" && c.FinvizAPIKey == "":
			return errors.New("invalid config: provider finviz needs finviz_api_key")
		}
	}
	if c.Rate.Source == "fred" && c.FREDAPIKey == "" {
		return errors.New("invalid config: rate source fred needs fred_api_key")
	}
	return nil
}

// ValidateForPricing checks only what single-contract pricing needs.
func (c *Config) ValidateForPricing() error {
	return c.Calibration.Validate()
}

// LoggerOptions converts the log section.
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		JSON:       c.Log.JSON,
	}
}

// NewProvider builds the primary provider with its secondary, if any.
func (c *Config) NewProvider() (data.Provider, error) {
	opts := data.Options{
		MassiveAPIKey: c.MassiveAPIKey,
		FinvizAPIKey:  c.FinvizAPIKey,
		DataDir:       c.DataDir,
		Seed:          c.Seed,
	}
	if c.SecondaryProvider != "" {
		sec, err := data.New(c.SecondaryProvider, opts)
		if err != nil {
			return nil, errors.Wrap(err, "secondary provider")
		}
		opts.Secondary = sec
	}
	return data.New(c.Provider, opts)
}

// NewRateSource builds the configured risk-free rate source.
func (c *Config) NewRateSource() data.RateSource {
	if c.Rate.Source == "fred" {
		return data.NewFREDRateSource(c.FREDAPIKey, "", c.Rate.Series)
	}
	return data.StaticRate(c.Rate.Value)
}

// PriceSourceValue is PriceSource as a data.PriceSource.
func (c *Config) PriceSourceValue() data.PriceSource {
	src, err := data.ParsePriceSource(c.PriceSource)
	if err != nil {
		return data.PriceMid
	}
	return src
}
