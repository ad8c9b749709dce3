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
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

type memSecrets map[string]string

func (m memSecrets) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}
func (m memSecrets) Set(service, key, value string) error { m[service+"/"+key] = value; return nil }
func (m memSecrets) Delete(service, key string) error {
	if _, ok := m[service+"/"+key]; !ok {
		return keyring.ErrNotFound
	}
	delete(m, service+"/"+key)
	return nil
}

// isolate points the config dir at a temp dir and stubs the keyring.
func isolate(t *testing.T) memSecrets {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("config dir isolation relies on XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	m := memSecrets{}
	old := secrets
	secrets = m
	t.Cleanup(func() { secrets = old })
	return m
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	if !d.Import.AllowPlainText || d.Import.ClassifyPlainText {
		t.Fatalf("import defaults = %+v", d.Import)
	}
	if d.Library.SaveDebounce() != 400*time.Millisecond {
		t.Fatalf("debounce = %v", d.Library.SaveDebounce())
	}
	if d.Export.Dir != "" {
		t.Fatalf("export dir default should be empty, got %q", d.Export.Dir)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	sec := isolate(t)
	cfg := Defaults()
	cfg.Import.AllowPlainText = false
	cfg.Library.Dir = "/srv/scripts"
	cfg.Backup.PostgresHost = "db.local:5432"
	if err := Save(cfg, "s3cret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path, _ := ConfigPath()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) == "" || strings.Contains(string(data), "s3cret") {
		t.Fatalf("password must not be written to disk: %s", data)
	}
	if sec[keyringService+"/"+keyringPassword] != "s3cret" {
		t.Fatalf("password not stored in keyring")
	}

	got, pw, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Import.AllowPlainText || got.Library.Dir != "/srv/scripts" || got.Backup.PostgresHost != "db.local:5432" {
		t.Fatalf("loaded config mismatch: %+v", got)
	}
	if pw != "s3cret" {
		t.Fatalf("password = %q", pw)
	}

	if err := ForgetPassword(); err != nil {
		t.Fatalf("ForgetPassword: %v", err)
	}
	if err := ForgetPassword(); err != nil {
		t.Fatalf("ForgetPassword on missing entry: %v", err)
	}
}

func TestEnvOverridesImportAndLibrary(t *testing.T) {
	isolate(t)
	t.Setenv(EnvAllowPlainText, "off")
	t.Setenv(EnvClassifyPlainText, "yes")
	t.Setenv(EnvLibraryDir, "/tmp/lib")
	t.Setenv(EnvSaveDebounceMs, "50")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Import.AllowPlainText || !cfg.Import.ClassifyPlainText {
		t.Fatalf("import overrides not applied: %+v", cfg.Import)
	}
	if cfg.Library.Dir != "/tmp/lib" || cfg.Library.SaveDebounce() != 50*time.Millisecond {
		t.Fatalf("library overrides not applied: %+v", cfg.Library)
	}
	if env, ok := EnvOverrideFor("library.dir"); !ok || env != EnvLibraryDir {
		t.Fatalf("EnvOverrideFor(library.dir) = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("export.dir"); ok {
		t.Fatalf("export.dir is not overridden")
	}
	if _, ok := EnvOverrideFor("no.such.key"); ok {
		t.Fatalf("unknown key reported as overridden")
	}
}

func TestEnvPasswordWinsOverKeyring(t *testing.T) {
	sec := isolate(t)
	sec[keyringService+"/"+keyringPassword] = "from-keyring"
	t.Setenv(EnvPostgresPassword, "from-env")
	_, pw, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if pw != "from-env" {
		t.Fatalf("password = %q, want env value", pw)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = " DEBUG "
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/var/log/scw.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/var/log/scw.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestMergeKeepsDebounceWhenUnset(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Import: ImportConfig{AllowPlainText: true}}
	mergeInto(&dst, &src)
	if dst.Library.SaveDebounceMs != 400 {
		t.Fatalf("debounce overwritten by zero: %d", dst.Library.SaveDebounceMs)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/tmp/scw.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/tmp/scw.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestLibraryDirDefault(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	dir, err := cfg.LibraryDir()
	if err != nil {
		t.Fatalf("LibraryDir: %v", err)
	}
	if filepath.Base(dir) != "library" || filepath.Base(filepath.Dir(dir)) != "goscreenwriter" {
		t.Fatalf("unexpected library dir %q", dir)
	}
}

func TestPostgresDSN(t *testing.T) {
	var b BackupConfig
	if b.PostgresDSN("x") != "" {
		t.Fatalf("no host should give empty dsn")
	}
	b = BackupConfig{PostgresHost: "db:5432", PostgresUser: "writer"}
	if got := b.PostgresDSN("p@ss"); got != "postgres://writer:p%40ss@db:5432/goscreenwriter" {
		t.Fatalf("dsn = %q", got)
	}
	if got := b.PostgresDSN(""); got != "postgres://writer@db:5432/goscreenwriter" {
		t.Fatalf("dsn without password = %q", got)
	}
}

