/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type ImportConfig struct {
	AllowPlainText    bool `yaml:"allow_plain_text"`
	ClassifyPlainText bool `yaml:"classify_plain_text"`
}

type ExportConfig struct {
	Dir string `yaml:"dir"` // empty means the system temp dir
}

type LibraryConfig struct {
	Dir            string `yaml:"dir"`
	SaveDebounceMs int    `yaml:"save_debounce_ms"`
	BackupDir      string `yaml:"backup_dir"`
}

type BackupConfig struct {
	PostgresHost string `yaml:"postgres_host"`
	PostgresDB   string `yaml:"postgres_db"`
	PostgresUser string `yaml:"postgres_user"`
	// Password is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Import        ImportConfig  `yaml:"import"`
	Export        ExportConfig  `yaml:"export"`
	Library       LibraryConfig `yaml:"library"`
	Backup        BackupConfig  `yaml:"backup"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Import:        ImportConfig{AllowPlainText: true},
		Library:       LibraryConfig{SaveDebounceMs: 400},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvAllowPlainText    = "SCW_ALLOW_PLAIN_TEXT"
	EnvClassifyPlainText = "SCW_CLASSIFY_PLAIN_TEXT"
	EnvExportDir         = "SCW_EXPORT_DIR"
	EnvLibraryDir        = "SCW_LIBRARY_DIR"
	EnvSaveDebounceMs    = "SCW_SAVE_DEBOUNCE_MS"
	EnvBackupDir         = "SCW_BACKUP_DIR"
	EnvPostgresHost      = "SCW_PG_HOST"
	EnvPostgresDB        = "SCW_PG_DB"
	EnvPostgresUser      = "SCW_PG_USER"
	EnvPostgresPassword  = "SCW_PG_PASSWORD"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "SCW_LOG_LEVEL"
	EnvLogFormat = "SCW_LOG_FORMAT"
	EnvLogSource = "SCW_LOG_SOURCE"
	EnvLogFile   = "SCW_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService  = "GoScreenwriter"
	keyringPassword = "postgres_password"
)

// secrets abstracts the keyring, so we can stub in tests.
var secrets SecretStore = osKeyring{}

// SecretStore reads and writes values in the OS keychain.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements SecretStore using github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// configDir returns the per-user application directory.
func configDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoScreenwriter")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoScreenwriter")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "goscreenwriter")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "goscreenwriter")
		}
	}
	if base == "" || base == "goscreenwriter" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// The Postgres password comes from the environment or the keyring and is returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	if pw := os.Getenv(EnvPostgresPassword); pw != "" {
		return cfg, pw, nil
	}
	pw, _ := secrets.Get(keyringService, keyringPassword)
	return cfg, pw, nil
}

// Save writes the user config YAML and persists the password into the OS keyring (if non-empty).
func Save(cfg AppConfig, password string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if password != "" {
		if err := secrets.Set(keyringService, keyringPassword, password); err != nil {
			return err
		}
	}
	return nil
}

// ForgetPassword removes the stored Postgres password. A missing entry is not an error.
func ForgetPassword() error {
	if err := secrets.Delete(keyringService, keyringPassword); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.Import.AllowPlainText = src.Import.AllowPlainText
	dst.Import.ClassifyPlainText = src.Import.ClassifyPlainText
	if s := strings.TrimSpace(src.Export.Dir); s != "" {
		dst.Export.Dir = s
	}
	if s := strings.TrimSpace(src.Library.Dir); s != "" {
		dst.Library.Dir = s
	}
	if src.Library.SaveDebounceMs > 0 {
		dst.Library.SaveDebounceMs = src.Library.SaveDebounceMs
	}
	if s := strings.TrimSpace(src.Library.BackupDir); s != "" {
		dst.Library.BackupDir = s
	}
	if s := strings.TrimSpace(src.Backup.PostgresHost); s != "" {
		dst.Backup.PostgresHost = s
	}
	if s := strings.TrimSpace(src.Backup.PostgresDB); s != "" {
		dst.Backup.PostgresDB = s
	}
	if s := strings.TrimSpace(src.Backup.PostgresUser); s != "" {
		dst.Backup.PostgresUser = s
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvAllowPlainText)); v != "" {
		cfg.Import.AllowPlainText = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvClassifyPlainText)); v != "" {
		cfg.Import.ClassifyPlainText = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportDir)); v != "" {
		cfg.Export.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLibraryDir)); v != "" {
		cfg.Library.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSaveDebounceMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Library.SaveDebounceMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackupDir)); v != "" {
		cfg.Library.BackupDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresHost)); v != "" {
		cfg.Backup.PostgresHost = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDB)); v != "" {
		cfg.Backup.PostgresDB = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresUser)); v != "" {
		cfg.Backup.PostgresUser = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envByKey = map[string]string{
	"import.allow_plain_text":    EnvAllowPlainText,
	"import.classify_plain_text": EnvClassifyPlainText,
	"export.dir":                 EnvExportDir,
	"library.dir":                EnvLibraryDir,
	"library.save_debounce_ms":   EnvSaveDebounceMs,
	"library.backup_dir":         EnvBackupDir,
	"backup.postgres_host":       EnvPostgresHost,
	"backup.postgres_db":         EnvPostgresDB,
	"backup.postgres_user":       EnvPostgresUser,
	"logging.level":              EnvLogLevel,
	"logging.format":             EnvLogFormat,
	"logging.source":             EnvLogSource,
	"logging.file":               EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envByKey[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// LibraryDir returns the configured library directory or the default one
// next to the config file.
func (c AppConfig) LibraryDir() (string, error) {
	if c.Library.Dir != "" {
		return c.Library.Dir, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "library"), nil
}

// SaveDebounce returns the library save delay.
func (l LibraryConfig) SaveDebounce() time.Duration {
	if l.SaveDebounceMs <= 0 {
		return time.Duration(Defaults().Library.SaveDebounceMs) * time.Millisecond
	}
	return time.Duration(l.SaveDebounceMs) * time.Millisecond
}

// PostgresDSN builds a pgx connection URL, or "" when no host is configured.
func (b BackupConfig) PostgresDSN(password string) string {
	if strings.TrimSpace(b.PostgresHost) == "" {
		return ""
	}
	db := b.PostgresDB
	if db == "" {
		db = "goscreenwriter"
	}
	u := &url.URL{Scheme: "postgres", Host: b.PostgresHost, Path: "/" + db}
	switch {
	case b.PostgresUser != "" && password != "":
		u.User = url.UserPassword(b.PostgresUser, password)
	case b.PostgresUser != "":
		u.User = url.User(b.PostgresUser)
	}
	return u.String()
}
