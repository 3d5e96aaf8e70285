package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName       = "CoinFlipper"
	defaultAppEnv        = "development"
	defaultPort          = "3000"
	defaultLogLevel      = "info"
	defaultDataDir       = "./data"
	defaultStateFile     = "state.json"
	defaultTimezone      = "America/New_York"
	defaultWebDir        = "./web"
	defaultDailyGrant    = 100
	defaultCooldown      = time.Minute
	defaultShutdownDelay = 10 * time.Second

	cooldownSecondsEnvVar  = "COOLDOWN_SECONDS"
	cooldownDurEnvVar      = "COOLDOWN"
	lockSecondsEnvVar      = "LOCK_TIMEOUT_SECONDS"
	lockDurEnvVar          = "LOCK_TIMEOUT"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName     string
	AppEnv      string
	Port        string
	LogLevel    string
	DataDir     string
	StateFile   string
	Timezone    string
	WebDir      string
	RedisURL    string
	DatabaseURL string

	DailyGrantAmount int64
	Cooldown         time.Duration
	LockTimeout      time.Duration
	ShutdownPeriod   time.Duration
}

// Load reads configuration values from the environment and populates a Config
// instance. RedisURL and DatabaseURL are optional; everything else has a
// working default so a bare binary starts against a local state file.
func Load() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DataDir:          getEnv("DATA_DIR", defaultDataDir),
		StateFile:        getEnv("STATE_FILE", defaultStateFile),
		Timezone:         getEnv("TIMEZONE", defaultTimezone),
		WebDir:           getEnv("WEB_DIR", defaultWebDir),
		RedisURL:         os.Getenv("REDIS_URL"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DailyGrantAmount: defaultDailyGrant,
	}

	if v := os.Getenv("DAILY_GRANT_AMOUNT"); v != "" {
		amount, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DAILY_GRANT_AMOUNT: %w", err)
		}
		if amount <= 0 {
			return Config{}, fmt.Errorf("DAILY_GRANT_AMOUNT must be positive")
		}
		cfg.DailyGrantAmount = amount
	}

	var err error
	if cfg.Cooldown, err = durationEnv(cooldownSecondsEnvVar, cooldownDurEnvVar, defaultCooldown); err != nil {
		return Config{}, err
	}
	if cfg.LockTimeout, err = durationEnv(lockSecondsEnvVar, lockDurEnvVar, 0); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

// Location resolves the configured timezone. Load has already validated it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StatePath returns the full path of the persisted snapshot document.
func (c Config) StatePath() string {
	return filepath.Join(c.DataDir, c.StateFile)
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func durationEnv(secondsVar, durVar string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsVar, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durVar, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
