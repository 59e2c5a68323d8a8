// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/libris/circulation"
	"github.com/poiesic/libris/search"
)

// ErrInvalidConfig indicates a configuration value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

const (
	// DefaultLoanPeriodDays is the number of days a book may be kept.
	DefaultLoanPeriodDays = circulation.DefaultLoanPeriod

	// DefaultDailyRate is the late fee charged per whole day overdue.
	DefaultDailyRate = circulation.DefaultDailyRate

	// DefaultBatchSize is the number of rows written per import transaction.
	DefaultBatchSize = 100

	// DefaultMaxRetries is the number of attempts made for a failed import batch.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the initial backoff between import attempts.
	DefaultRetryDelay = 50 * time.Millisecond

	// DefaultLogLevel is used when logging.level is empty.
	DefaultLogLevel = "info"
)

// Config holds the settings of a libris installation.
type Config struct {
	Search      SearchConfig      `yaml:"search"`
	Circulation CirculationConfig `yaml:"circulation"`
	Import      ImportConfig      `yaml:"import"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SearchConfig holds the default catalog search parameters.
type SearchConfig struct {
	// Fields are the book fields searched, in order.
	// Default: title, author, isbn
	Fields []string `yaml:"fields"`

	// Fuzzy enables similarity matching on title and author.
	Fuzzy bool `yaml:"fuzzy"`

	// MinRatio is the similarity a fuzzy match must reach, in [0,1].
	MinRatio float64 `yaml:"min_ratio"`

	// Limit caps results in limit mode. 0 means unlimited.
	Limit int `yaml:"limit"`

	// PageSize selects paged results when positive.
	PageSize int `yaml:"page_size"`
}

// CirculationConfig holds loan rules.
type CirculationConfig struct {
	LoanPeriodDays int     `yaml:"loan_period_days"`
	DailyRate      float64 `yaml:"daily_rate"`
}

// ImportConfig holds bulk import settings.
type ImportConfig struct {
	PoolSize   int           `yaml:"pool_size"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Option is a functional option for configuring a Config.
type Option func(*Config)

// WithSearchFields sets the fields searched by default.
func WithSearchFields(fields ...string) Option {
	return func(c *Config) {
		c.Search.Fields = fields
	}
}

// WithFuzzy enables or disables fuzzy matching.
func WithFuzzy(fuzzy bool) Option {
	return func(c *Config) {
		c.Search.Fuzzy = fuzzy
	}
}

// WithMinRatio sets the fuzzy similarity threshold.
func WithMinRatio(ratio float64) Option {
	return func(c *Config) {
		c.Search.MinRatio = ratio
	}
}

// WithLimit sets the result limit used in limit mode.
func WithLimit(limit int) Option {
	return func(c *Config) {
		c.Search.Limit = limit
	}
}

// WithPageSize sets the default page size. 0 selects limit mode.
func WithPageSize(size int) Option {
	return func(c *Config) {
		c.Search.PageSize = size
	}
}

// WithLoanPeriod sets the loan period in days.
func WithLoanPeriod(days int) Option {
	return func(c *Config) {
		c.Circulation.LoanPeriodDays = days
	}
}

// WithDailyRate sets the late fee per day.
func WithDailyRate(rate float64) Option {
	return func(c *Config) {
		c.Circulation.DailyRate = rate
	}
}

// WithPoolSize sets the import worker pool size.
func WithPoolSize(size int) Option {
	return func(c *Config) {
		c.Import.PoolSize = size
	}
}

// WithBatchSize sets the import batch size.
func WithBatchSize(size int) Option {
	return func(c *Config) {
		c.Import.BatchSize = size
	}
}

// WithRetry sets the import retry attempts and initial backoff.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.Import.MaxRetries = maxRetries
		c.Import.RetryDelay = delay
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) Option {
	return func(c *Config) {
		c.Logging.Level = level
	}
}

// Default returns a Config with the stock search, circulation and import settings.
func Default() *Config {
	sp := search.DefaultParams()
	return &Config{
		Search: SearchConfig{
			Fields:   sp.Fields,
			Fuzzy:    sp.Fuzzy,
			MinRatio: sp.MinRatio,
			Limit:    sp.Limit,
		},
		Circulation: CirculationConfig{
			LoanPeriodDays: DefaultLoanPeriodDays,
			DailyRate:      DefaultDailyRate,
		},
		Import: ImportConfig{
			PoolSize:   defaultPoolSize(),
			BatchSize:  DefaultBatchSize,
			MaxRetries: DefaultMaxRetries,
			RetryDelay: DefaultRetryDelay,
		},
		Logging: LoggingConfig{Level: DefaultLogLevel},
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithFuzzy(false),
//	    WithLoanPeriod(21),
//	)
func NewConfig(opts ...Option) *Config {
	cfg := Default()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Load reads a YAML configuration file.
//
// Values of the form ${VAR} or ${VAR:-default} are replaced from the
// environment before parsing. Keys missing from the file keep their
// Default() values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with default values.
// Zero is a meaningful value for fuzzy, min_ratio, limit, page_size and
// daily_rate, so those are left alone.
func (c *Config) ApplyDefaults() {
	if len(c.Search.Fields) == 0 {
		c.Search.Fields = slices.Clone(search.DefaultFields)
	}
	if c.Circulation.LoanPeriodDays == 0 {
		c.Circulation.LoanPeriodDays = DefaultLoanPeriodDays
	}
	if c.Import.PoolSize == 0 {
		c.Import.PoolSize = defaultPoolSize()
	}
	if c.Import.BatchSize == 0 {
		c.Import.BatchSize = DefaultBatchSize
	}
	if c.Import.MaxRetries == 0 {
		c.Import.MaxRetries = DefaultMaxRetries
	}
	if c.Import.RetryDelay == 0 {
		c.Import.RetryDelay = DefaultRetryDelay
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch {
	case !(c.Search.MinRatio >= 0 && c.Search.MinRatio <= 1):
		return fmt.Errorf("%w: search.min_ratio must be between 0 and 1, got %v", ErrInvalidConfig, c.Search.MinRatio)
	case c.Search.Limit < 0:
		return fmt.Errorf("%w: search.limit must not be negative, got %d", ErrInvalidConfig, c.Search.Limit)
	case c.Search.PageSize < 0:
		return fmt.Errorf("%w: search.page_size must not be negative, got %d", ErrInvalidConfig, c.Search.PageSize)
	case c.Circulation.LoanPeriodDays < 1:
		return fmt.Errorf("%w: circulation.loan_period_days must be at least 1, got %d", ErrInvalidConfig, c.Circulation.LoanPeriodDays)
	case c.Circulation.DailyRate < 0:
		return fmt.Errorf("%w: circulation.daily_rate must not be negative, got %v", ErrInvalidConfig, c.Circulation.DailyRate)
	case c.Import.PoolSize < 1:
		return fmt.Errorf("%w: import.pool_size must be at least 1, got %d", ErrInvalidConfig, c.Import.PoolSize)
	case c.Import.BatchSize < 1:
		return fmt.Errorf("%w: import.batch_size must be at least 1, got %d", ErrInvalidConfig, c.Import.BatchSize)
	case c.Import.MaxRetries < 1:
		return fmt.Errorf("%w: import.max_retries must be at least 1, got %d", ErrInvalidConfig, c.Import.MaxRetries)
	case c.Import.RetryDelay < 0:
		return fmt.Errorf("%w: import.retry_delay must not be negative, got %s", ErrInvalidConfig, c.Import.RetryDelay)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// SearchParams returns the configured defaults as search parameters.
func (c *Config) SearchParams() search.Params {
	return search.Params{
		Fields:   slices.Clone(c.Search.Fields),
		Fuzzy:    c.Search.Fuzzy,
		MinRatio: c.Search.MinRatio,
		Limit:    c.Search.Limit,
		Page:     1,
		PageSize: c.Search.PageSize,
	}
}

// LogLevel parses logging.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return level, fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, c.Logging.Level)
	}
	return level, nil
}

func defaultPoolSize() int {
	return max(1, runtime.NumCPU()/2)
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, fallback, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = fallback
		}
		return []byte(val)
	})
}
