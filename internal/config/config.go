package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Storage string

const (
	StorageSQLite Storage = "sqlite"
	StorageFiles  Storage = "files"
	StorageBadger Storage = "badger"
)

const defaultCheckpointCron = "@every 10m"

// Config is read once at startup. HTTPAddr defaults to loopback because
// /api/v1/chat is unauthenticated.
type Config struct {
	Environment   string
	HTTPAddr      string
	DataDir       string
	DBPath        string
	Storage       Storage
	SnapshotDir   string
	BadgerDir     string
	LogLevel      string
	LearnMessages bool

	// CheckpointCron is empty when periodic checkpoints are disabled.
	CheckpointCron string

	HeartbeatEnabled     bool
	HeartbeatIntervalSec int
	HeartbeatStaleSec    int
	CommandSyncEnabled   bool

	DiscordToken  string
	DiscordAPI    string
	DiscordWSURL  string
	TelegramToken string
	TelegramAPI   string
	TelegramPoll  int
}

// LoadDotEnv copies variables from the given files (default ".env") into the
// process environment. Variables that are already set win, and missing files
// are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func FromEnv() Config {
	dataDir := stringOrDefault("TRAPPER_DATA_DIR", "/data")
	return Config{
		Environment:          stringOrDefault("TRAPPER_ENV", "development"),
		HTTPAddr:             stringOrDefault("TRAPPER_HTTP_ADDR", "127.0.0.1:8080"),
		DataDir:              dataDir,
		DBPath:               stringOrDefault("TRAPPER_DB_PATH", filepath.Join(dataDir, "trapper", "state.sqlite")),
		Storage:              storageOrDefault("TRAPPER_STORAGE", StorageSQLite),
		SnapshotDir:          stringOrDefault("TRAPPER_SNAPSHOT_DIR", filepath.Join(dataDir, "trapper", "snapshot")),
		BadgerDir:            stringOrDefault("TRAPPER_BADGER_DIR", filepath.Join(dataDir, "trapper", "badger")),
		LogLevel:             strings.ToLower(stringOrDefault("TRAPPER_LOG_LEVEL", "info")),
		LearnMessages:        boolOrDefault("TRAPPER_LEARN_MESSAGES", true),
		CheckpointCron:       optionalString("TRAPPER_CHECKPOINT_CRON", defaultCheckpointCron),
		HeartbeatEnabled:     boolOrDefault("TRAPPER_HEARTBEAT_ENABLED", true),
		HeartbeatIntervalSec: intOrDefault("TRAPPER_HEARTBEAT_INTERVAL_SECONDS", 30),
		HeartbeatStaleSec:    intOrDefault("TRAPPER_HEARTBEAT_STALE_SECONDS", 120),
		CommandSyncEnabled:   boolOrDefault("TRAPPER_COMMAND_SYNC_ENABLED", true),
		DiscordToken:         strings.TrimSpace(os.Getenv("TRAPPER_DISCORD_TOKEN")),
		DiscordAPI:           stringOrDefault("TRAPPER_DISCORD_API_BASE", "https://discord.com/api/v10"),
		DiscordWSURL:         stringOrDefault("TRAPPER_DISCORD_GATEWAY_URL", "wss://gateway.discord.gg/?v=10&encoding=json"),
		TelegramToken:        strings.TrimSpace(os.Getenv("TRAPPER_TELEGRAM_TOKEN")),
		TelegramAPI:          stringOrDefault("TRAPPER_TELEGRAM_API_BASE", "https://api.telegram.org"),
		TelegramPoll:         intOrDefault("TRAPPER_TELEGRAM_POLL_SECONDS", 25),
	}
}

// SlogLevel maps LogLevel onto slog, falling back to info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

// optionalString distinguishes an unset variable from one explicitly set empty.
func optionalString(name, fallback string) string {
	value, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "off", "none", "disabled":
		return ""
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func storageOrDefault(name string, fallback Storage) Storage {
	switch Storage(strings.ToLower(strings.TrimSpace(os.Getenv(name)))) {
	case StorageSQLite:
		return StorageSQLite
	case StorageFiles:
		return StorageFiles
	case StorageBadger:
		return StorageBadger
	default:
		return fallback
	}
}
