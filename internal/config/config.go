package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	JWTSecret  string        `mapstructure:"jwt_secret"`

	Log      LogConfig      `mapstructure:"log"`
	Registry RegistryConfig `mapstructure:"registry"`
	Calls    CallsConfig    `mapstructure:"calls"`
	Presence PresenceConfig `mapstructure:"presence"`
	Persist  PersistConfig  `mapstructure:"persist"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Booking  BookingConfig  `mapstructure:"booking"`
	RTC      RTCConfig      `mapstructure:"rtc"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RegistryConfig struct {
	LivenessWindow time.Duration `mapstructure:"liveness_window"`
	ExpireInterval time.Duration `mapstructure:"expire_interval"`
}

type CallsConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	Restricted   bool          `mapstructure:"restricted"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
}

type PresenceConfig struct {
	Grace         time.Duration `mapstructure:"grace"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
}

type PersistConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type BookingConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RTCConfig struct {
	ICEServers []string `mapstructure:"ice_servers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "change-me")
	v.SetDefault("jwt_secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("registry.liveness_window", "120s")
	v.SetDefault("registry.expire_interval", "30s")

	v.SetDefault("calls.timeout", "45s")
	v.SetDefault("calls.restricted", false)
	v.SetDefault("calls.rate_limit", 5)
	v.SetDefault("calls.rate_interval", "10s")

	v.SetDefault("presence.grace", "30s")
	v.SetDefault("presence.sweep_interval", "30s")
	v.SetDefault("presence.stale_after", "60s")

	v.SetDefault("persist.queue_size", 1024)
	v.SetDefault("storage.path", "./data/voice.db")

	v.SetDefault("booking.url", "")
	v.SetDefault("booking.timeout", "3s")

	v.SetDefault("rtc.ice_servers", []string{"stun:stun.l.google.com:19302"})
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("VOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Dur("call_timeout", cfg.Calls.Timeout).Dur("liveness_window", cfg.Registry.LivenessWindow).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.Calls.Timeout <= 0 {
		return fmt.Errorf("calls.timeout must be positive")
	}
	if c.Presence.StaleAfter < c.Presence.Grace {
		return fmt.Errorf("presence.stale_after (%s) must not be shorter than presence.grace (%s)", c.Presence.StaleAfter, c.Presence.Grace)
	}
	if c.Calls.Restricted && c.Booking.URL == "" {
		log.Warn().Str("module", "config").Msg("restricted calling enabled without booking.url, every call will be admitted")
	}
	return nil
}
