package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings shared by the CLI and the API server
type Config struct {
	// Server
	DBPath        string
	Addr          string
	JWTSecret     string
	AdminPassword string
	TokenTTL      time.Duration

	// Job queues
	RedisAddr     string
	GenerateQueue string
	EmailQueue    string

	// Client
	APIURL          string
	TokenFile       string
	NotificationTTL time.Duration

	LogLevel string
}

// Default returns the configuration used when nothing is set
func Default() Config {
	home, _ := os.UserHomeDir()
	dir := filepath.Join(home, ".letterdesk")

	return Config{
		DBPath:          filepath.Join(dir, "desk.db"),
		Addr:            ":8080",
		JWTSecret:       "change_this_secret",
		TokenTTL:        24 * time.Hour,
		GenerateQueue:   "cover_letter_generation_queue",
		EmailQueue:      "emails_to_send",
		APIURL:          "http://localhost:8080",
		TokenFile:       filepath.Join(dir, "token"),
		NotificationTTL: 5 * time.Second,
		LogLevel:        "info",
	}
}

// Load overlays environment variables, then the optional .env file, on
// Default. An empty variable counts as unset in both layers.
func Load(envFile string) (Config, error) {
	file := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
		if vars != nil {
			file = vars
		}
	}
	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return file[key]
	}

	cfg := Default()
	str(lookup, &cfg.DBPath, "DESK_DB")
	str(lookup, &cfg.Addr, "DESK_ADDR")
	str(lookup, &cfg.JWTSecret, "DESK_JWT_SECRET")
	str(lookup, &cfg.AdminPassword, "DESK_ADMIN_PASSWORD")
	str(lookup, &cfg.RedisAddr, "DESK_REDIS_ADDR")
	str(lookup, &cfg.GenerateQueue, "DESK_GENERATE_QUEUE")
	str(lookup, &cfg.EmailQueue, "DESK_EMAIL_QUEUE")
	str(lookup, &cfg.APIURL, "DESK_API_URL")
	str(lookup, &cfg.TokenFile, "DESK_TOKEN_FILE")
	str(lookup, &cfg.LogLevel, "DESK_LOG_LEVEL")

	if err := duration(lookup, &cfg.TokenTTL, "DESK_TOKEN_TTL"); err != nil {
		return Config{}, err
	}
	if err := duration(lookup, &cfg.NotificationTTL, "DESK_NOTIFY_TTL"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func str(lookup func(string) string, dst *string, key string) {
	if v := lookup(key); v != "" {
		*dst = v
	}
}

func duration(lookup func(string) string, dst *time.Duration, key string) error {
	v := lookup(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", key, v)
	}
	*dst = d
	return nil
}
