package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"MacroBrief/internal/domain"
)

const (
	defaultTimezone = "UTC"

	configPathEnv     = "MACROBRIEF_CONFIG"
	storagePathEnv    = "MACROBRIEF_STORAGE_PATH"
	smtpUsernameEnv   = "MACROBRIEF_SMTP_USERNAME"
	smtpPasswordEnv   = "MACROBRIEF_SMTP_PASSWORD"
	webhookURLEnv     = "MACROBRIEF_WEBHOOK_URL"
	calendarAPIKeyEnv = "MACROBRIEF_CALENDAR_API_KEY"
	rssFeedsEnv       = "MACROBRIEF_RSS_FEEDS"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Sources   SourcesConfig   `yaml:"sources"`
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StorageConfig describes the SQLite database location.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines when the pipeline runs.
type SchedulerConfig struct {
	DailyBriefingTime     string         `yaml:"dailyBriefingTime"`
	HighImpactPollMinutes int            `yaml:"highImpactPollMinutes"`
	Timezone              string         `yaml:"timezone"`
	location              *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// AnalysisConfig tunes the scorer and the noise/manipulation filter.
type AnalysisConfig struct {
	SentimentThreshold    float64  `yaml:"sentimentThreshold"`
	ManipulationThreshold float64  `yaml:"manipulationThreshold"`
	MinBodyLength         int      `yaml:"minBodyLength"`
	NoiseKeywords         []string `yaml:"noiseKeywords"`
	ManipulationKeywords  []string `yaml:"manipulationKeywords"`
	PositiveWords         []string `yaml:"positiveWords"`
	NegativeWords         []string `yaml:"negativeWords"`
}

// DedupConfig controls the deduplication ledger cool-down.
type DedupConfig struct {
	CooldownMinutes int `yaml:"cooldownMinutes"`
}

// Cooldown returns the minimum interval before the same fingerprint may
// be re-notified on a channel.
func (d DedupConfig) Cooldown() time.Duration {
	return time.Duration(d.CooldownMinutes) * time.Minute
}

// DispatchConfig controls per-channel rate limiting and send timeouts.
type DispatchConfig struct {
	MinIntervalMinutes int `yaml:"minIntervalMinutes"`
	SendTimeoutSeconds int `yaml:"sendTimeoutSeconds"`
	HorizonMinutes     int `yaml:"horizonMinutes"`
	LookaheadHours     int `yaml:"lookaheadHours"`
}

// MinInterval is the per-channel minimum interval between notifications.
func (d DispatchConfig) MinInterval() time.Duration {
	return time.Duration(d.MinIntervalMinutes) * time.Minute
}

// SendTimeout bounds a single transport call.
func (d DispatchConfig) SendTimeout() time.Duration {
	return time.Duration(d.SendTimeoutSeconds) * time.Second
}

// Horizon is how far ahead the high-impact poll looks for due releases.
func (d DispatchConfig) Horizon() time.Duration {
	return time.Duration(d.HorizonMinutes) * time.Minute
}

// Lookahead is the window of upcoming releases attached to briefings.
func (d DispatchConfig) Lookahead() time.Duration {
	return time.Duration(d.LookaheadHours) * time.Hour
}

// ChannelsConfig encapsulates outbound notification channels.
type ChannelsConfig struct {
	Email   EmailConfig   `yaml:"email"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// EmailConfig wires the SMTP transport.
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// WebhookConfig wires the webhook transport. Kind selects the payload
// shape: generic or discord.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Kind    string `yaml:"kind"`
}

// SourcesConfig groups settings for data-source adapters.
type SourcesConfig struct {
	RSSFeeds []string       `yaml:"rssFeeds"`
	Calendar CalendarConfig `yaml:"calendar"`
	Pages    []PageConfig   `yaml:"pages"`
}

// CalendarConfig describes the economic-calendar API.
type CalendarConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// PageConfig describes a single scraped news page and its selectors.
type PageConfig struct {
	Name          string `yaml:"name"`
	URL           string `yaml:"url"`
	ItemSelector  string `yaml:"itemSelector"`
	TitleSelector string `yaml:"titleSelector"`
	BodySelector  string `yaml:"bodySelector"`
	Impact        string `yaml:"impact"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate reports startup-fatal configuration problems. Everything the
// runtime can degrade around is deliberately not checked here.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("%w: storage path is empty", domain.ErrConfiguration)
	}
	if _, err := time.Parse("15:04", c.Scheduler.DailyBriefingTime); err != nil {
		return fmt.Errorf("%w: invalid dailyBriefingTime %q", domain.ErrConfiguration, c.Scheduler.DailyBriefingTime)
	}
	if c.Scheduler.HighImpactPollMinutes <= 0 {
		return fmt.Errorf("%w: highImpactPollMinutes must be positive", domain.ErrConfiguration)
	}
	if c.Analysis.ManipulationThreshold <= 0 || c.Analysis.ManipulationThreshold > 1 {
		return fmt.Errorf("%w: manipulationThreshold must be in (0, 1]", domain.ErrConfiguration)
	}
	return nil
}

// ValidateDispatch additionally requires at least one enabled channel;
// called on the paths that actually send.
func (c Config) ValidateDispatch() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.Channels.Email.Enabled && !c.Channels.Webhook.Enabled {
		return fmt.Errorf("%w: no notification channels enabled", domain.ErrConfiguration)
	}
	if c.Channels.Email.Enabled && (c.Channels.Email.From == "" || c.Channels.Email.To == "") {
		return fmt.Errorf("%w: email channel enabled without from/to addresses", domain.ErrConfiguration)
	}
	if c.Channels.Webhook.Enabled && c.Channels.Webhook.URL == "" {
		return fmt.Errorf("%w: webhook channel enabled without url", domain.ErrConfiguration)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(storagePathEnv); v != "" {
		c.Storage.Path = v
	}

	if v := os.Getenv(smtpUsernameEnv); v != "" {
		c.Channels.Email.Username = v
	}

	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Channels.Email.Password = v
	}

	if v := os.Getenv(webhookURLEnv); v != "" {
		c.Channels.Webhook.URL = v
	}

	if v := os.Getenv(calendarAPIKeyEnv); v != "" {
		c.Sources.Calendar.APIKey = v
	}

	if v := os.Getenv(rssFeedsEnv); v != "" {
		feeds := make([]string, 0)
		for _, feed := range strings.Split(v, ",") {
			if feed = strings.TrimSpace(feed); feed != "" {
				feeds = append(feeds, feed)
			}
		}
		if len(feeds) > 0 {
			c.Sources.RSSFeeds = feeds
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Storage.Path != "" {
		base.Storage = override.Storage
	}

	if override.Scheduler.DailyBriefingTime != "" {
		base.Scheduler.DailyBriefingTime = override.Scheduler.DailyBriefingTime
	}
	if override.Scheduler.HighImpactPollMinutes > 0 {
		base.Scheduler.HighImpactPollMinutes = override.Scheduler.HighImpactPollMinutes
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Analysis.SentimentThreshold != 0 {
		base.Analysis.SentimentThreshold = override.Analysis.SentimentThreshold
	}
	if override.Analysis.ManipulationThreshold != 0 {
		base.Analysis.ManipulationThreshold = override.Analysis.ManipulationThreshold
	}
	if override.Analysis.MinBodyLength != 0 {
		base.Analysis.MinBodyLength = override.Analysis.MinBodyLength
	}
	if len(override.Analysis.NoiseKeywords) > 0 {
		base.Analysis.NoiseKeywords = override.Analysis.NoiseKeywords
	}
	if len(override.Analysis.ManipulationKeywords) > 0 {
		base.Analysis.ManipulationKeywords = override.Analysis.ManipulationKeywords
	}
	if len(override.Analysis.PositiveWords) > 0 {
		base.Analysis.PositiveWords = override.Analysis.PositiveWords
	}
	if len(override.Analysis.NegativeWords) > 0 {
		base.Analysis.NegativeWords = override.Analysis.NegativeWords
	}

	if override.Dedup.CooldownMinutes > 0 {
		base.Dedup = override.Dedup
	}

	if override.Dispatch.MinIntervalMinutes > 0 {
		base.Dispatch.MinIntervalMinutes = override.Dispatch.MinIntervalMinutes
	}
	if override.Dispatch.SendTimeoutSeconds > 0 {
		base.Dispatch.SendTimeoutSeconds = override.Dispatch.SendTimeoutSeconds
	}
	if override.Dispatch.HorizonMinutes > 0 {
		base.Dispatch.HorizonMinutes = override.Dispatch.HorizonMinutes
	}
	if override.Dispatch.LookaheadHours > 0 {
		base.Dispatch.LookaheadHours = override.Dispatch.LookaheadHours
	}

	if override.Channels.Email.Enabled || override.Channels.Email.Host != "" {
		base.Channels.Email = override.Channels.Email
	}
	if override.Channels.Webhook.Enabled || override.Channels.Webhook.URL != "" {
		base.Channels.Webhook = override.Channels.Webhook
	}

	if len(override.Sources.RSSFeeds) > 0 {
		base.Sources.RSSFeeds = override.Sources.RSSFeeds
	}
	if override.Sources.Calendar.Endpoint != "" {
		base.Sources.Calendar = override.Sources.Calendar
	}
	if len(override.Sources.Pages) > 0 {
		base.Sources.Pages = override.Sources.Pages
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Storage: StorageConfig{Path: "data/macrobrief.db"},
		Scheduler: SchedulerConfig{
			DailyBriefingTime:     "08:00",
			HighImpactPollMinutes: 15,
			Timezone:              defaultTimezone,
			location:              tz,
		},
		Analysis: AnalysisConfig{
			SentimentThreshold:    0.1,
			ManipulationThreshold: 0.4,
			MinBodyLength:         50,
			NoiseKeywords: []string{
				"rumor", "speculation", "might", "could", "possibly", "unconfirmed",
			},
			ManipulationKeywords: []string{
				"guaranteed", "certain", "definitely", "crash", "moon", "rocket", "doom",
			},
			PositiveWords: []string{
				"rises", "rise", "gain", "gains", "beat", "beats", "strong",
				"growth", "expands", "improves", "surplus", "upbeat", "recovery",
				"higher", "up", "accelerates", "exceeds", "optimistic",
			},
			NegativeWords: []string{
				"falls", "fall", "drop", "drops", "miss", "misses", "weak",
				"contraction", "shrinks", "deficit", "downturn", "recession",
				"lower", "down", "slows", "slump", "pessimistic", "cuts",
			},
		},
		Dedup: DedupConfig{CooldownMinutes: 24 * 60},
		Dispatch: DispatchConfig{
			MinIntervalMinutes: 30,
			SendTimeoutSeconds: 30,
			HorizonMinutes:     60,
			LookaheadHours:     168,
		},
		Channels: ChannelsConfig{
			Email:   EmailConfig{Host: "smtp.gmail.com", Port: 587},
			Webhook: WebhookConfig{Kind: "generic"},
		},
		Sources: SourcesConfig{},
	}
}
