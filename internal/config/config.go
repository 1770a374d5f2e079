// Package config loads the vmtune configuration file.
//
// The file is YAML or TOML, chosen by extension. Values are read into a generic map,
// overlaid with VMTUNE_* environment variables and decoded with mapstructure, so
// durations ("30s") and commands ("update-grub") may be written as plain strings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/vmtune/pkg/adapters/process"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no path is given; it may be absent.
const DefaultPath = "/etc/vmtune/config.yaml"

// Config is the complete configuration.
type Config struct {
	BackupDir   string        `mapstructure:"backup_dir"`
	Journal     string        `mapstructure:"journal"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	KeepBackups bool          `mapstructure:"keep_backups"`
	LogLevel    string        `mapstructure:"log_level"`
	MetricsFile string        `mapstructure:"metrics_file"`

	Boot    BootConfig    `mapstructure:"boot"`
	Libvirt LibvirtConfig `mapstructure:"libvirt"`
	Redis   RedisConfig   `mapstructure:"redis"`

	// Params holds default parameters per fragment kind; command line values win.
	Params map[string]map[string]any `mapstructure:"params"`
}

// BootConfig locates the boot parameter file.
type BootConfig struct {
	Path       string          `mapstructure:"path"`
	Key        string          `mapstructure:"key"`
	Regenerate process.Command `mapstructure:"regenerate"`
}

// LibvirtConfig selects how domain descriptors are reached.
type LibvirtConfig struct {
	Socket   string `mapstructure:"socket"`
	URI      string `mapstructure:"uri"`
	UseVirsh bool   `mapstructure:"use_virsh"`
	Virsh    string `mapstructure:"virsh"`
}

// RedisConfig enables cross-process target locks when Addr is set.
type RedisConfig struct {
	Addr    string        `mapstructure:"addr"`
	Prefix  string        `mapstructure:"prefix"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BackupDir:   "/var/lib/vmtune/backups",
		Journal:     "/var/lib/vmtune/journal.db",
		CallTimeout: 30 * time.Second,
		LogLevel:    "info",
		Boot: BootConfig{
			Path:       "/etc/default/grub",
			Key:        "GRUB_CMDLINE_LINUX_DEFAULT",
			Regenerate: process.Command{Command: "update-grub"},
		},
		Libvirt: LibvirtConfig{
			Socket: "/var/run/libvirt/libvirt-sock",
			URI:    "qemu:///system",
			Virsh:  "virsh",
		},
		Redis: RedisConfig{
			Prefix:  "vmtune:",
			LockTTL: 5 * time.Minute,
		},
	}
}

// env maps environment variables to configuration keys.
var env = map[string][]string{
	"VMTUNE_BACKUP_DIR":      {"backup_dir"},
	"VMTUNE_JOURNAL":         {"journal"},
	"VMTUNE_CALL_TIMEOUT":    {"call_timeout"},
	"VMTUNE_KEEP_BACKUPS":    {"keep_backups"},
	"VMTUNE_LOG_LEVEL":       {"log_level"},
	"VMTUNE_METRICS_FILE":    {"metrics_file"},
	"VMTUNE_BOOT_PATH":       {"boot", "path"},
	"VMTUNE_BOOT_KEY":        {"boot", "key"},
	"VMTUNE_BOOT_REGENERATE": {"boot", "regenerate"},
	"VMTUNE_LIBVIRT_SOCKET":  {"libvirt", "socket"},
	"VMTUNE_LIBVIRT_URI":     {"libvirt", "uri"},
	"VMTUNE_USE_VIRSH":       {"libvirt", "use_virsh"},
	"VMTUNE_REDIS_ADDR":      {"redis", "addr"},
}

// Load reads path over the defaults. An empty path reads DefaultPath if it exists.
func Load(path string) (Config, error) {
	optional := path == ""
	if optional {
		path = DefaultPath
	}

	raw, err := ReadMap(path)
	if err != nil {
		if !(optional && errors.Is(err, fs.ErrNotExist)) {
			return Config{}, err
		}
		raw = map[string]any{}
	}

	for name, keys := range env {
		if v, ok := os.LookupEnv(name); ok {
			set(raw, keys, v)
		}
	}

	cfg := Default()
	if err := decode(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate checks values no default can repair.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BackupDir) == "" {
		return fmt.Errorf("backup_dir is required")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive, got %s", c.CallTimeout)
	}
	if c.Redis.Addr != "" && c.Redis.LockTTL <= 0 {
		return fmt.Errorf("redis.lock_ttl must be positive, got %s", c.Redis.LockTTL)
	}
	return nil
}

// ReadMap parses a YAML (.yaml, .yml, .json) or TOML (.toml) file into a map.
func ReadMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	out := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &out)
	case ".yaml", ".yml", ".json", "":
		err = yaml.Unmarshal(data, &out)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return out, nil
}

func set(m map[string]any, keys []string, v string) {
	for _, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}
	m[keys[len(keys)-1]] = v
}

func decode(in map[string]any, out *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			commandHook,
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// commandHook accepts a command line string wherever a process.Command is expected.
func commandHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(process.Command{}) {
		return data, nil
	}
	s := data.(string)
	if strings.TrimSpace(s) == "" {
		return process.Command{}, nil
	}
	return process.ParseCommand(s)
}
