package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, name := range []string{
		"TRAPPER_ENV", "TRAPPER_HTTP_ADDR", "TRAPPER_DATA_DIR", "TRAPPER_DB_PATH",
		"TRAPPER_STORAGE", "TRAPPER_SNAPSHOT_DIR", "TRAPPER_LOG_LEVEL",
		"TRAPPER_LEARN_MESSAGES", "TRAPPER_TELEGRAM_POLL_SECONDS",
		"TRAPPER_HEARTBEAT_STALE_SECONDS",
	} {
		t.Setenv(name, "")
	}

	cfg := FromEnv()
	if cfg.HTTPAddr != "127.0.0.1:8080" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != filepath.Join("/data", "trapper", "state.sqlite") {
		t.Fatalf("unexpected db path %q", cfg.DBPath)
	}
	if cfg.SnapshotDir != filepath.Join("/data", "trapper", "snapshot") {
		t.Fatalf("unexpected snapshot dir %q", cfg.SnapshotDir)
	}
	if cfg.Storage != StorageSQLite {
		t.Fatalf("expected sqlite storage, got %q", cfg.Storage)
	}
	if !cfg.LearnMessages {
		t.Fatal("expected learning to default on")
	}
	if cfg.TelegramPoll != 25 || cfg.HeartbeatStaleSec != 120 {
		t.Fatalf("unexpected numeric defaults %+v", cfg)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Fatalf("expected info level, got %v", cfg.SlogLevel())
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TRAPPER_DATA_DIR", "/srv")
	t.Setenv("TRAPPER_DB_PATH", "")
	t.Setenv("TRAPPER_STORAGE", "FILES")
	t.Setenv("TRAPPER_LEARN_MESSAGES", "off")
	t.Setenv("TRAPPER_TELEGRAM_POLL_SECONDS", "-3")
	t.Setenv("TRAPPER_LOG_LEVEL", "Debug")

	cfg := FromEnv()
	if cfg.DBPath != filepath.Join("/srv", "trapper", "state.sqlite") {
		t.Fatalf("expected db path under data dir, got %q", cfg.DBPath)
	}
	if cfg.Storage != StorageFiles {
		t.Fatalf("expected files storage, got %q", cfg.Storage)
	}
	if cfg.LearnMessages {
		t.Fatal("expected learning disabled")
	}
	if cfg.TelegramPoll != 25 {
		t.Fatalf("invalid poll seconds must fall back, got %d", cfg.TelegramPoll)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", cfg.SlogLevel())
	}
}

func TestBadgerStorage(t *testing.T) {
	t.Setenv("TRAPPER_DATA_DIR", "/var/lib")
	t.Setenv("TRAPPER_BADGER_DIR", "")
	t.Setenv("TRAPPER_STORAGE", "badger")
	cfg := FromEnv()
	if cfg.Storage != StorageBadger {
		t.Fatalf("expected badger storage, got %q", cfg.Storage)
	}
	if cfg.BadgerDir != filepath.Join("/var/lib", "trapper", "badger") {
		t.Fatalf("unexpected badger dir %q", cfg.BadgerDir)
	}
}

func TestUnknownStorageFallsBack(t *testing.T) {
	t.Setenv("TRAPPER_STORAGE", "postgres")
	if cfg := FromEnv(); cfg.Storage != StorageSQLite {
		t.Fatalf("expected sqlite fallback, got %q", cfg.Storage)
	}
}

func TestCheckpointCron(t *testing.T) {
	cases := []struct {
		value string
		set   bool
		want  string
	}{
		{set: false, want: "@every 10m"},
		{value: "", set: true, want: ""},
		{value: "off", set: true, want: ""},
		{value: " 0 * * * * ", set: true, want: "0 * * * *"},
	}
	for _, tc := range cases {
		if tc.set {
			t.Setenv("TRAPPER_CHECKPOINT_CRON", tc.value)
			if got := FromEnv().CheckpointCron; got != tc.want {
				t.Fatalf("value %q: expected %q, got %q", tc.value, tc.want, got)
			}
			continue
		}
		if got := optionalString("TRAPPER_TEST_UNSET_CRON_VARIABLE", defaultCheckpointCron); got != tc.want {
			t.Fatalf("unset: expected %q, got %q", tc.want, got)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trapper.env")
	content := "TRAPPER_DOTENV_ONLY=from-file\nTRAPPER_DOTENV_SHADOWED=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("TRAPPER_DOTENV_SHADOWED", "from-process")
	t.Cleanup(func() { _ = os.Unsetenv("TRAPPER_DOTENV_ONLY") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("TRAPPER_DOTENV_ONLY"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("TRAPPER_DOTENV_SHADOWED"); got != "from-process" {
		t.Fatalf("process environment must win, got %q", got)
	}
}
