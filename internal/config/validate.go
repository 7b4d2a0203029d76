package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the settings required by the given command mode
// are present. Modes: scrape, export, classify, serve, state.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "scrape":
		if c.Backend.BaseURL == "" {
			errs = append(errs, "backend.base_url is required")
		}
		errs = append(errs, c.validateScrape()...)
		errs = append(errs, c.validateClassifier()...)
	case "export":
		errs = append(errs, c.validateScrape()...)
	case "classify":
		errs = append(errs, c.validateClassifier()...)
	case "serve":
		if c.Bridge.Port <= 0 {
			errs = append(errs, "bridge.port must be > 0")
		}
		if len(c.Bridge.AllowedOrigins) == 0 {
			errs = append(errs, "bridge.allowed_origins must not be empty")
		}
	case "state":
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateScrape() []string {
	var errs []string
	if c.Scrape.MaxCycles <= 0 {
		errs = append(errs, "scrape.max_cycles must be > 0")
	}
	if c.Scrape.StallThreshold <= 0 {
		errs = append(errs, "scrape.stall_threshold must be > 0")
	}
	if c.Scrape.ScrollDelayMs < 0 || c.Scrape.ExpandDelayMs < 0 {
		errs = append(errs, "scrape delays must be >= 0")
	}
	if c.Scrape.SyncAttempts < 1 {
		errs = append(errs, "scrape.sync_attempts must be >= 1")
	}
	return errs
}

func (c *Config) validateClassifier() []string {
	switch c.Classifier.Provider {
	case "gemini", "keyword":
		return nil
	case "anthropic":
		if c.Anthropic.Key == "" {
			return []string{"anthropic.key is required for the anthropic classifier"}
		}
		return nil
	case "openai":
		if c.OpenAI.Key == "" {
			return []string{"openai.key is required for the openai classifier"}
		}
		return nil
	default:
		return []string{"classifier.provider must be gemini, anthropic, openai or keyword"}
	}
}
