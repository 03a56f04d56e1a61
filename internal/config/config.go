// Package config loads the wizard.yaml settings shared by the CLI commands.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/wizard/internal/logging"
	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/persistence/middleware"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "wizard.yaml"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMySQL  = "mysql"
)

var stores = []string{StoreMemory, StoreFile, StoreRedis, StoreMySQL}

// Config is the full settings file.
type Config struct {
	Prefix     string            `yaml:"prefix"`
	Store      string            `yaml:"store"`
	File       FileConfig        `yaml:"file"`
	Redis      RedisConfig       `yaml:"redis"`
	MySQL      MySQLConfig       `yaml:"mysql"`
	HTTP       HTTPConfig        `yaml:"http"`
	Log        LogConfig         `yaml:"log"`
	Encryption EncryptionConfig  `yaml:"encryption"`
	Redact     []string          `yaml:"redact"`
	Machines   MachinesConfig    `yaml:"machines"`
	Routes     map[string]string `yaml:"routes"`
}

type FileConfig struct {
	Dir string `yaml:"dir"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	// LockTTL bounds distributed session locks. Zero disables locking.
	LockTTL time.Duration `yaml:"lockTTL"`
}

type MySQLConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// EncryptionConfig holds base64 AES-256 keys. Fallback keys only decrypt.
type EncryptionConfig struct {
	Key          string   `yaml:"key"`
	FallbackKeys []string `yaml:"fallbackKeys"`
}

type MachinesConfig struct {
	// Dir replaces the bundled machine tables when set.
	Dir string `yaml:"dir"`
	// Components is a directory of Markdown copy layered over the catalog.
	Components string `yaml:"components"`
}

// Default returns the settings used for anything the file leaves out.
func Default() Config {
	return Config{
		Prefix: domain.DefaultKeyPrefix,
		Store:  StoreMemory,
		File:   FileConfig{Dir: ".wizard/storage"},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			LockTTL: 30 * time.Second,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a settings document over the defaults and validates it.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(stores, c.Store) {
		errs = append(errs, fmt.Errorf("store: unknown backend %q (want one of %v)", c.Store, stores))
	}
	if c.Store == StoreMySQL && c.MySQL.DSN == "" {
		errs = append(errs, errors.New("mysql.dsn: required for the mysql store"))
	}
	if c.Store == StoreFile && c.File.Dir == "" {
		errs = append(errs, errors.New("file.dir: required for the file store"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Encryption.Key != "" {
		if _, err := middleware.ParseKey(c.Encryption.Key); err != nil {
			errs = append(errs, fmt.Errorf("encryption.key: %w", err))
		}
	}
	for i, k := range c.Encryption.FallbackKeys {
		if _, err := middleware.ParseKey(k); err != nil {
			errs = append(errs, fmt.Errorf("encryption.fallbackKeys[%d]: %w", i, err))
		}
	}
	for i, p := range c.Redact {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("redact[%d]: %w", i, err))
		}
	}
	if c.Redis.TTL < 0 || c.Redis.LockTTL < 0 {
		errs = append(errs, errors.New("redis: durations must not be negative"))
	}
	return errors.Join(errs...)
}
