package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

type StackExchange struct {
	Site   string `yaml:"site"`
	Key    string `yaml:"key"`
	UserID string `yaml:"user_id"`
}

type ImgFlip struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type Twitter struct {
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
	AccessToken    string `yaml:"access_token"`
	AccessSecret   string `yaml:"access_secret"`
}

type Config struct {
	StackExchange StackExchange `yaml:"stackexchange"`
	ImgFlip       ImgFlip       `yaml:"imgflip"`
	Twitter       Twitter       `yaml:"twitter"`

	PageSize           int    `yaml:"page_size"`
	ItemPause          string `yaml:"item_pause"`
	CyclePause         string `yaml:"cycle_pause"`
	CaptionCooldown    string `yaml:"caption_cooldown"`
	CaptionMaxAttempts int    `yaml:"caption_max_attempts"`
	StatusLimit        int    `yaml:"status_limit"`
}

// StackKey returns the resolved StackExchange API key (config or env var).
// May be empty: the key is optional, a stricter quota applies without one.
func (c *Config) StackKey() string {
	if c.StackExchange.Key != "" {
		return c.StackExchange.Key
	}
	return os.Getenv("MEMEOVERFLOW_STACK_KEY")
}

// ImgFlipPassword returns the resolved imgflip password (config or env var).
func (c *Config) ImgFlipPassword() string {
	if c.ImgFlip.Password != "" {
		return c.ImgFlip.Password
	}
	return os.Getenv("MEMEOVERFLOW_IMGFLIP_PASSWORD")
}

// ResolvedTwitter returns the Twitter credentials with env var fallbacks applied.
func (c *Config) ResolvedTwitter() Twitter {
	t := c.Twitter
	if t.ConsumerKey == "" {
		t.ConsumerKey = os.Getenv("MEMEOVERFLOW_TWITTER_CONSUMER_KEY")
	}
	if t.ConsumerSecret == "" {
		t.ConsumerSecret = os.Getenv("MEMEOVERFLOW_TWITTER_CONSUMER_SECRET")
	}
	if t.AccessToken == "" {
		t.AccessToken = os.Getenv("MEMEOVERFLOW_TWITTER_ACCESS_TOKEN")
	}
	if t.AccessSecret == "" {
		t.AccessSecret = os.Getenv("MEMEOVERFLOW_TWITTER_ACCESS_SECRET")
	}
	return t
}

// GetPageSize returns the questions-per-cycle page size, defaulting to 100.
func (c *Config) GetPageSize() int {
	if c.PageSize <= 0 {
		return 100
	}
	return c.PageSize
}

func (c *Config) ItemPauseDuration() time.Duration {
	return parseDuration(c.ItemPause, 5*time.Minute)
}

func (c *Config) CyclePauseDuration() time.Duration {
	return parseDuration(c.CyclePause, 5*time.Minute)
}

func (c *Config) CaptionCooldownDuration() time.Duration {
	return parseDuration(c.CaptionCooldown, 30*time.Second)
}

// GetStatusLimit returns the maximum status length, defaulting to 280.
func (c *Config) GetStatusLimit() int {
	if c.StatusLimit <= 0 {
		return 280
	}
	return c.StatusLimit
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "meme-overflow", "config.yaml")
}

func LedgerPath() string {
	return filepath.Join(xdg.DataHome, "meme-overflow", "memes.db")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads and validates the config at path (or the default path if path
// is empty). Missing credentials are a hard error: the bot refuses to start
// before any external call is attempted. On first run the embedded defaults
// are written out for the user to fill in.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if werr := writeDefaults(path); werr != nil {
				return nil, fmt.Errorf("writing default config: %w", werr)
			}
			return nil, fmt.Errorf("no config found: wrote defaults to %s, fill in your credentials", path)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}
	cfg := *defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o600)
}

func validate(cfg *Config) error {
	if cfg.StackExchange.Site == "" {
		return fmt.Errorf("stackexchange: site is required")
	}
	if cfg.ImgFlip.Username == "" {
		return fmt.Errorf("imgflip: username is required")
	}
	if cfg.ImgFlipPassword() == "" {
		return fmt.Errorf("imgflip: password is required")
	}
	tw := cfg.ResolvedTwitter()
	for _, f := range []struct{ name, value string }{
		{"consumer_key", tw.ConsumerKey},
		{"consumer_secret", tw.ConsumerSecret},
		{"access_token", tw.AccessToken},
		{"access_secret", tw.AccessSecret},
	} {
		if f.value == "" {
			return fmt.Errorf("twitter: %s is required", f.name)
		}
	}
	return nil
}
