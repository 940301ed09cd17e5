// Package config is the shiftbot configuration: the reusable core sections
// plus database, locale, production and ingestion settings.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	coreconfig "github.com/m3rciful/shiftbot/core/config"
	coredatabase "github.com/m3rciful/shiftbot/core/database"
	"github.com/m3rciful/shiftbot/internal/production"
)

// LocaleConfig points at an optional catalog overlay; the embedded catalog
// is always loaded.
type LocaleConfig struct {
	Path        string `yaml:"path" envconfig:"LOCALE_PATH"`
	DefaultLang string `yaml:"default_lang" envconfig:"LOCALE_DEFAULT_LANG"`
	// Watch reloads the catalog when the file changes.
	Watch bool `yaml:"watch" envconfig:"LOCALE_WATCH"`
}

type ProductionConfig struct {
	Density          float64 `yaml:"density" envconfig:"PRODUCTION_DENSITY"`
	// Timezone decides which calendar day a plan belongs to. Empty means UTC.
	Timezone         string  `yaml:"timezone" envconfig:"PRODUCTION_TIMEZONE"`
	OperatorsPerPage int     `yaml:"operators_per_page"`
	OperatorsPerRow  int     `yaml:"operators_per_row"`
	// BatchSize caps the fixed decrement buttons.
	BatchSize float64 `yaml:"batch_size"`

	loc *time.Location
}

// Location is the resolved Timezone. Valid after Normalize.
func (p ProductionConfig) Location() *time.Location {
	if p.loc == nil {
		return time.Local
	}
	return p.loc
}

type IngestConfig struct {
	URL            string `yaml:"url" envconfig:"INGEST_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"INGEST_TIMEOUT_SECONDS"`
}

// Timeout of a single fetch.
func (i IngestConfig) Timeout() time.Duration {
	return time.Duration(i.TimeoutSeconds) * time.Second
}

type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database   coredatabase.Config `yaml:"database"`
	Locale     LocaleConfig        `yaml:"locale"`
	Production ProductionConfig    `yaml:"production"`
	Ingest     IngestConfig        `yaml:"ingest"`
	// Lines are created at startup when missing.
	Lines []string `yaml:"lines" envconfig:"LINES"`
	// Admins are phone numbers granted the admin role at startup.
	Admins []string `yaml:"admins" envconfig:"ADMINS"`
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadStore is Load for tools that only touch the database and never talk to
// Telegram, so the bot token may be absent.
func LoadStore(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalizeApp(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	return c.normalizeApp()
}

func (c *Config) normalizeApp() error {
	if err := c.Database.Normalize(); err != nil {
		return err
	}

	c.Locale.Path = strings.TrimSpace(c.Locale.Path)
	c.Locale.DefaultLang = strings.ToLower(strings.TrimSpace(c.Locale.DefaultLang))
	if c.Locale.DefaultLang == "" {
		c.Locale.DefaultLang = "ru"
	}

	p := &c.Production
	if p.Density < 0 || p.OperatorsPerPage < 0 || p.OperatorsPerRow < 0 || p.BatchSize < 0 {
		return fmt.Errorf("production settings must be >= 0")
	}
	if p.Density == 0 {
		p.Density = production.DefaultDensity
	}
	if p.OperatorsPerPage == 0 {
		p.OperatorsPerPage = 10
	}
	if p.OperatorsPerRow == 0 {
		p.OperatorsPerRow = 2
	}
	if p.BatchSize == 0 {
		p.BatchSize = 10
	}
	loc, err := time.LoadLocation(strings.TrimSpace(p.Timezone))
	if err != nil {
		return fmt.Errorf("production.timezone: %w", err)
	}
	p.loc = loc

	if c.Ingest.TimeoutSeconds < 0 {
		return fmt.Errorf("ingest.timeout_seconds must be >= 0")
	}
	if c.Ingest.TimeoutSeconds == 0 {
		c.Ingest.TimeoutSeconds = 30
	}

	lines := c.Lines[:0]
	for _, name := range c.Lines {
		if name = strings.TrimSpace(name); name != "" {
			lines = append(lines, name)
		}
	}
	c.Lines = lines

	for i, raw := range c.Admins {
		phone, err := production.NormalizePhone(raw)
		if err != nil {
			return fmt.Errorf("admins[%d]: %w", i, err)
		}
		c.Admins[i] = phone
	}
	return nil
}

// CoreConfig returns the section consumed by the reusable core.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}
