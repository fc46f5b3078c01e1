package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/relawan-api/internal/notification"
	"github.com/noah-isme/relawan-api/internal/rbac"
)

// Notification channel names accepted in RELAWAN_NOTIFICATION_CHANNELS.
const (
	ChannelDatabase = "database"
	ChannelRedis    = "redis"
	ChannelNATS     = "nats"
)

// AccessRules holds the role requirement of each route group as a "|" or "," delimited string.
type AccessRules struct {
	VisitRead   string
	VisitCreate string
	VisitReview string
	VisitDelete string
	AuditRead   string
}

// ReviewerRoles returns the roles allowed to review visits. They also receive
// new and updated visit notifications.
func (a AccessRules) ReviewerRoles() rbac.RoleSet {
	return rbac.ParseRoles(a.VisitReview)
}

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName              string
	AppEnv               string
	AppPort              string
	DatabaseURL          string
	RedisURL             string
	NATSURL              string
	JWTSecret            string
	NotificationLocale   string
	NotificationBaseURL  string
	NotificationChannels []string
	NotificationPrefix   string
	StreamKeepAlive      time.Duration
	WriteRateLimit       int
	WriteRateWindow      time.Duration
	Access               AccessRules
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// ChannelEnabled reports whether the named notification channel is configured.
func (c Config) ChannelEnabled(name string) bool {
	for _, channel := range c.NotificationChannels {
		if channel == name {
			return true
		}
	}
	return false
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RELAWAN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	v.SetDefault("app.name", "Relawan API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("notification.locale", notification.DefaultLocale)
	v.SetDefault("notification.channels", ChannelDatabase)
	v.SetDefault("notification.prefix", "relawan")
	v.SetDefault("notification.keepalive", "30s")
	v.SetDefault("ratelimit.write_max", 30)
	v.SetDefault("ratelimit.write_window", "1m")
	v.SetDefault("access.visit_read", "")
	v.SetDefault("access.visit_create", "relawan")
	v.SetDefault("access.visit_review", "kunjungan_koordinator|superadmin")
	v.SetDefault("access.visit_delete", "relawan|kunjungan_koordinator|superadmin")
	v.SetDefault("access.audit_read", "superadmin")

	keepAlive, err := parseDuration(v, "notification.keepalive", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	window, err := parseDuration(v, "ratelimit.write_window", time.Minute)
	if err != nil {
		return Config{}, err
	}

	channels, err := parseChannels(v.GetString("notification.channels"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		NATSURL:              v.GetString("nats.url"),
		JWTSecret:            v.GetString("jwt.secret"),
		NotificationLocale:   strings.ToLower(v.GetString("notification.locale")),
		NotificationBaseURL:  v.GetString("notification.base_url"),
		NotificationChannels: channels,
		NotificationPrefix:   v.GetString("notification.prefix"),
		StreamKeepAlive:      keepAlive,
		WriteRateLimit:       v.GetInt("ratelimit.write_max"),
		WriteRateWindow:      window,
		Access: AccessRules{
			VisitRead:   v.GetString("access.visit_read"),
			VisitCreate: v.GetString("access.visit_create"),
			VisitReview: v.GetString("access.visit_review"),
			VisitDelete: v.GetString("access.visit_delete"),
			AuditRead:   v.GetString("access.audit_read"),
		},
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.ChannelEnabled(ChannelRedis) && cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("redis notification channel requires RELAWAN_REDIS_URL")
	}

	if cfg.ChannelEnabled(ChannelNATS) && cfg.NATSURL == "" {
		return Config{}, fmt.Errorf("nats notification channel requires RELAWAN_NATS_URL")
	}

	if cfg.WriteRateLimit <= 0 {
		cfg.WriteRateLimit = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return fallback, nil
	}
	return value, nil
}

func parseChannels(raw string) ([]string, error) {
	channels := []string{ChannelDatabase}
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		switch name {
		case "", ChannelDatabase:
			continue
		case ChannelRedis, ChannelNATS:
			if !contains(channels, name) {
				channels = append(channels, name)
			}
		default:
			return nil, fmt.Errorf("unknown notification channel %q", name)
		}
	}
	return channels, nil
}

func contains(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
