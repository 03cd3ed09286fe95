package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"

	// FileName is the optional overlay read from the data dir.
	FileName = "focusdeck.yaml"
)

type Config struct {
	DataDir      string
	DBPath       string
	SettingsPath string
	SnapshotPath string
	JournalDir   string
	PluginDir    string
	LogPath      string
	LogLevel     string
	Storage      string

	ActionRateLimit time.Duration
	PersistDebounce time.Duration
	TickInterval    time.Duration
	StartTimeout    time.Duration
	StartPoll       time.Duration
}

// fileOverlay mirrors the keys accepted in focusdeck.yaml. Durations are Go
// duration strings ("750ms", "12s").
type fileOverlay struct {
	LogLevel        string `yaml:"log_level"`
	Storage         string `yaml:"storage"`
	JournalDir      string `yaml:"journal_dir"`
	PluginDir       string `yaml:"plugin_dir"`
	ActionRateLimit string `yaml:"action_rate_limit"`
	PersistDebounce string `yaml:"persist_debounce"`
	StartTimeout    string `yaml:"start_timeout"`
}

func New(dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	return Config{
		DataDir:         dataDir,
		DBPath:          filepath.Join(dataDir, "focusdeck.db"),
		SettingsPath:    filepath.Join(dataDir, "settings.yaml"),
		SnapshotPath:    filepath.Join(dataDir, "state.json"),
		JournalDir:      filepath.Join(dataDir, "journal"),
		PluginDir:       filepath.Join(dataDir, "plugins"),
		LogPath:         filepath.Join(dataDir, "focusdeck.log"),
		LogLevel:        "info",
		Storage:         StorageSQLite,
		ActionRateLimit: time.Second,
		PersistDebounce: 250 * time.Millisecond,
		TickInterval:    time.Second,
		StartTimeout:    12 * time.Second,
		StartPoll:       140 * time.Millisecond,
	}, nil
}

// Load builds the defaults for dataDir and applies focusdeck.yaml when present.
func Load(dataDir string) (Config, error) {
	cfg, err := New(dataDir)
	if err != nil {
		return Config{}, err
	}
	payload, err := os.ReadFile(filepath.Join(dataDir, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	overlay := fileOverlay{}
	if err := yaml.Unmarshal(payload, &overlay); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg.apply(overlay)
}

func (c Config) apply(o fileOverlay) (Config, error) {
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	switch o.Storage {
	case "":
	case StorageSQLite, StorageFile:
		c.Storage = o.Storage
	default:
		return Config{}, fmt.Errorf("unknown storage %q: want %s or %s", o.Storage, StorageSQLite, StorageFile)
	}
	if o.JournalDir != "" {
		c.JournalDir = c.resolve(o.JournalDir)
	}
	if o.PluginDir != "" {
		c.PluginDir = c.resolve(o.PluginDir)
	}
	for _, d := range []struct {
		raw    string
		target *time.Duration
		name   string
	}{
		{o.ActionRateLimit, &c.ActionRateLimit, "action_rate_limit"},
		{o.PersistDebounce, &c.PersistDebounce, "persist_debounce"},
		{o.StartTimeout, &c.StartTimeout, "start_timeout"},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil || parsed < 0 {
			return Config{}, fmt.Errorf("invalid %s %q", d.name, d.raw)
		}
		*d.target = parsed
	}
	return c, nil
}

func (c Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}
