// Package config handles configuration for webcheck-runner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Session backends.
const (
	BackendWebDriver = "webdriver"
	BackendCDP       = "cdp"
)

// Config represents the workspace configuration (webcheck.yaml).
// Every field is optional; command line flags override what is set here.
type Config struct {
	// Browser settings
	Timeout      *int   `yaml:"timeout"`      // Default element wait in seconds
	Headless     *bool  `yaml:"headless"`     // Default headless mode
	DriverPath   string `yaml:"driverPath"`   // chromedriver (webdriver) or Chrome (cdp) executable
	Backend      string `yaml:"backend"`      // webdriver or cdp
	WebDriverURL string `yaml:"webdriverURL"` // Remote WebDriver server, skips launching chromedriver

	// Run settings
	Output      string            `yaml:"output"`      // Report path
	MetricsFile string            `yaml:"metricsFile"` // Prometheus textfile path
	StopOnFail  *bool             `yaml:"stopOnFail"`
	Vars        map[string]string `yaml:"vars"` // Lowest-precedence flow variables

	Captcha CaptchaConfig `yaml:"captcha"`
	OCR     OCRConfig     `yaml:"ocr"`
}

// CaptchaConfig configures solve_captcha.
type CaptchaConfig struct {
	Policy         string   `yaml:"policy"`         // continue or fail
	SettleMs       *int     `yaml:"settleMs"`       // Pause after submitting an attempt
	InvalidAll     []string `yaml:"invalidAll"`     // Phrases that must all appear on a rejection page
	InvalidAny     []string `yaml:"invalidAny"`     // At least one must appear
	InvalidPattern string   `yaml:"invalidPattern"` // Regexp replacing the phrase lists
}

// OCRConfig configures the OCR engine.
type OCRConfig struct {
	Tesseract string `yaml:"tesseract"` // Path to the tesseract binary
	Lang      string `yaml:"lang"`      // Tesseract language, default eng
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// LoadFromDir looks for webcheck.yaml or webcheck.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try webcheck.yaml first
	configPath := filepath.Join(dir, "webcheck.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try webcheck.yml
	configPath = filepath.Join(dir, "webcheck.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return empty config
	return &Config{}, nil
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case "", BackendWebDriver, BackendCDP:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendWebDriver, BackendCDP)
	}
	if c.Timeout != nil && *c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", *c.Timeout)
	}
	if c.Captcha.SettleMs != nil && *c.Captcha.SettleMs < 0 {
		return fmt.Errorf("captcha.settleMs must not be negative, got %d", *c.Captcha.SettleMs)
	}
	return nil
}
