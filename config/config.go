/*
Package config loads libris settings with viper.

SOURCES (later wins):
  1. built-in defaults
  2. config file: the -config path, or ./libris.{yaml,toml,json,env} if present
  3. environment: LIBRIS_ prefix, dots become underscores
     (LIBRIS_DATA_DIR, LIBRIS_BACKEND, LIBRIS_LIMITS_BOOKS, LIBRIS_LOG_LEVEL, ...)

KEYS:
  data_dir               directory holding the backend's files     (./data)
  backend                file | sqlite | pebble                     (file)
  limits.books           soft capacity, 0 = unlimited               (500)
  limits.members                                                    (200)
  limits.transactions                                               (1000)
  loan.period_days       days until due                             (14)
  loan.issue_limit       open loans per member                      (3)
  fine.tiers             [{up_to_day, rate}], last up_to_day = 0    (7:2, 14:4, 0:6)
  admin.username         seeded on first run                        (admin)
  admin.password                                                    (admin123)
  log.level              debug | info | warn | error                (info)
  log.format             console | json                             (console)
  http.addr              listen address for -serve                  (:8080)
  http.allowed_origins   CORS origins, comma separated in env       (none)

SEE ALSO:
  - cmd/libris/main.go: the only caller
  - library/options.go: what the values turn into
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/warp/libris/library"
	"github.com/warp/libris/logging"
	"github.com/warp/libris/store"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "LIBRIS"

type Config struct {
	DataDir string       `mapstructure:"data_dir"`
	Backend string       `mapstructure:"backend"`
	Limits  LimitsConfig `mapstructure:"limits"`
	Loan    LoanConfig   `mapstructure:"loan"`
	Fine    FineConfig   `mapstructure:"fine"`
	Admin   AdminConfig  `mapstructure:"admin"`
	Log     LogConfig    `mapstructure:"log"`
	HTTP    HTTPConfig   `mapstructure:"http"`
}

type LimitsConfig struct {
	Books        int `mapstructure:"books"`
	Members      int `mapstructure:"members"`
	Transactions int `mapstructure:"transactions"`
}

type LoanConfig struct {
	PeriodDays int `mapstructure:"period_days"`
	IssueLimit int `mapstructure:"issue_limit"`
}

type FineConfig struct {
	Tiers []TierConfig `mapstructure:"tiers"`
}

// TierConfig keeps the rate as text so it parses as an exact decimal.
type TierConfig struct {
	UpToDay int    `mapstructure:"up_to_day"`
	Rate    string `mapstructure:"rate"`
}

type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// =============================================================================
// LOADING
// =============================================================================

func setDefaults(v *viper.Viper) {
	limits := library.DefaultLimits()
	v.SetDefault("data_dir", "./data")
	v.SetDefault("backend", store.File)
	v.SetDefault("limits.books", limits.Books)
	v.SetDefault("limits.members", limits.Members)
	v.SetDefault("limits.transactions", limits.Transactions)
	v.SetDefault("loan.period_days", int(library.DefaultLoanPeriod/(24*time.Hour)))
	v.SetDefault("loan.issue_limit", library.DefaultIssueLimit)
	v.SetDefault("fine.tiers", defaultTiers())
	v.SetDefault("admin.username", library.DefaultAdminUsername)
	v.SetDefault("admin.password", library.DefaultAdminPassword)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatConsole)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{})
}

func defaultTiers() []map[string]any {
	var out []map[string]any
	for _, t := range library.DefaultFinePolicy().Tiers {
		out = append(out, map[string]any{"up_to_day": t.UpToDay, "rate": t.Rate.String()})
	}
	return out
}

// Default returns the built-in configuration, ignoring files and env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(err) // defaults are static
	}
	return cfg
}

// Load reads defaults, then path (or ./libris.* when path is empty), then
// the environment. An explicit path that cannot be read is an error; a
// missing default file is not.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("libris")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// =============================================================================
// VALIDATION & CONVERSION
// =============================================================================

// Validate rejects values the library or the backends would refuse later.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir must not be empty"))
	}
	if !store.Valid(c.Backend) {
		errs = append(errs, fmt.Errorf("backend %q is not one of %s", c.Backend, strings.Join(store.Names, ", ")))
	}
	if c.Limits.Books < 0 || c.Limits.Members < 0 || c.Limits.Transactions < 0 {
		errs = append(errs, errors.New("limits must not be negative"))
	}
	if strings.TrimSpace(c.Admin.Username) == "" {
		errs = append(errs, errors.New("admin.username must not be empty"))
	}
	if c.Admin.Password == "" {
		errs = append(errs, errors.New("admin.password must not be empty"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != logging.FormatConsole && c.Log.Format != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("log.format %q is not console or json", c.Log.Format))
	}
	if rules, err := c.LendingRules(); err != nil {
		errs = append(errs, err)
	} else if err := rules.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// FinePolicy parses the configured tiers.
func (c *Config) FinePolicy() (library.FinePolicy, error) {
	var p library.FinePolicy
	for i, t := range c.Fine.Tiers {
		rate, err := decimal.NewFromString(strings.TrimSpace(t.Rate))
		if err != nil {
			return library.FinePolicy{}, fmt.Errorf("fine.tiers[%d].rate %q: %w", i, t.Rate, err)
		}
		p.Tiers = append(p.Tiers, library.FineTier{UpToDay: t.UpToDay, Rate: rate})
	}
	return p, nil
}

// LendingRules converts the loan and fine sections.
func (c *Config) LendingRules() (library.LendingRules, error) {
	fines, err := c.FinePolicy()
	if err != nil {
		return library.LendingRules{}, err
	}
	return library.LendingRules{
		LoanPeriod: time.Duration(c.Loan.PeriodDays) * 24 * time.Hour,
		IssueLimit: c.Loan.IssueLimit,
		Fines:      fines,
	}, nil
}

// LibraryOptions turns the config into library.Open options.
func (c *Config) LibraryOptions() ([]library.Option, error) {
	rules, err := c.LendingRules()
	if err != nil {
		return nil, err
	}
	return []library.Option{
		library.WithLimits(library.Limits{
			Books:        c.Limits.Books,
			Members:      c.Limits.Members,
			Transactions: c.Limits.Transactions,
		}),
		library.WithLendingRules(rules),
	}, nil
}
