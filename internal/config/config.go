package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MemoryDatabase selects the in-process store instead of PostgreSQL.
const MemoryDatabase = "memory"

type Config struct {
	BotToken         string
	DBSource         string
	PGSSL            bool
	Port             string
	Env              string
	AdminIDs         []int64
	BotUsername      string
	AdminContact     string
	WebAppURL        string
	WebhookURL       string
	PublicDir        string
	AppName          string
	LogLevel         string
	LogFile          string
	StateTTL         time.Duration
	DropSchedule     string
	WebRatePerMinute int
	WebRateBurst     int
}

// Load reads an optional .env file and then the process environment. Values
// already present in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv(os.Getenv)
}

func fromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		BotToken:     get("BOT_TOKEN", ""),
		DBSource:     get("DATABASE_URL", get("DB_SOURCE", "")),
		PGSSL:        parseBool(getenv("PG_SSL")),
		Port:         get("PORT", get("SERVER_PORT", "3000")),
		Env:          get("ENVIRONMENT", "development"),
		BotUsername:  strings.TrimPrefix(get("BOT_USERNAME", ""), "@"),
		AdminContact: get("ADMIN_CONTACT", ""),
		WebAppURL:    get("WEBAPP_URL", get("RENDER_EXTERNAL_URL", "")),
		WebhookURL:   NormalizeWebhookURL(get("WEBHOOK_URL", "")),
		PublicDir:    get("PUBLIC_DIR", ""),
		AppName:      get("APP_NAME", "FX-VM"),
		LogLevel:     get("LOG_LEVEL", "info"),
		LogFile:      get("LOG_FILE", ""),
		DropSchedule: get("DROP_SCHEDULE", ""),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN environment variable is required")
	}
	if cfg.DBSource == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	ids, err := parseAdminIDs(getenv("ADMIN_IDS"))
	if err != nil {
		return nil, err
	}
	cfg.AdminIDs = ids

	if raw := get("STATE_TTL", ""); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl < 0 {
			return nil, fmt.Errorf("STATE_TTL must be a non-negative duration, got %q", raw)
		}
		cfg.StateTTL = ttl
	}

	if cfg.WebRatePerMinute, err = parseInt(get("WEB_RATE_PER_MINUTE", "120"), "WEB_RATE_PER_MINUTE"); err != nil {
		return nil, err
	}
	if cfg.WebRateBurst, err = parseInt(get("WEB_RATE_BURST", "20"), "WEB_RATE_BURST"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) UseMemoryStore() bool {
	return strings.EqualFold(c.DBSource, MemoryDatabase)
}

func (c *Config) UseWebhook() bool {
	return c.WebhookURL != ""
}

func (c *Config) IsAdmin(id int64) bool {
	for _, a := range c.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

// BackendBaseURL is the public origin of this process, derived from the
// webhook URL when one is configured.
func (c *Config) BackendBaseURL() string {
	if c.WebhookURL != "" {
		base := strings.TrimSuffix(c.WebhookURL, "/")
		return strings.TrimSuffix(base, "/telegram/webhook")
	}
	return strings.TrimSuffix(os.Getenv("RENDER_EXTERNAL_URL"), "/")
}

// WebAppLaunchURL adds the api query parameter so the front-end knows which
// backend to call.
func (c *Config) WebAppLaunchURL() string {
	if c.WebAppURL == "" {
		return ""
	}
	backend := c.BackendBaseURL()
	if backend == "" {
		return c.WebAppURL
	}
	u, err := url.Parse(c.WebAppURL)
	if err != nil {
		return c.WebAppURL
	}
	q := u.Query()
	if q.Get("api") == "" {
		q.Set("api", backend)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// NormalizeWebhookURL defaults an empty path to /telegram/webhook.
func NormalizeWebhookURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/telegram/webhook"
	}
	return u.String()
}

func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_IDS contains a non-numeric id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func parseInt(raw, key string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, raw)
	}
	return n, nil
}
