// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

const (
	// ServiceName for keyring storage
	ServiceName = "switchboard"
	// DefaultConfigFileName is the config file name without extension.
	DefaultConfigFileName = "switchboard"
	// EnvPrefix prefixes every environment variable derived from a config key.
	EnvPrefix = "SWITCHBOARD"
)

// Config holds all configuration for switchboard.
// Priority: CLI flags > env vars > config file > defaults
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Records  RecordsConfig  `mapstructure:"records"`
	Calendly CalendlyConfig `mapstructure:"calendly"`
	Email    EmailConfig    `mapstructure:"email"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Path            string        `mapstructure:"path"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	SharedSecret    string        `mapstructure:"shared_secret"` // From env/keyring only
	SecretHeader    string        `mapstructure:"secret_header"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Instructions    string        `mapstructure:"instructions"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// RecordsConfig selects the customer-record store. A complete Sheets
// credential triplet wins over a workbook path.
type RecordsConfig struct {
	Sheets       SheetsConfig `mapstructure:"sheets"`
	WorkbookPath string       `mapstructure:"workbook_path"`
}

// SheetsConfig is the Google service-account credential triplet.
type SheetsConfig struct {
	ClientEmail   string `mapstructure:"client_email"`
	PrivateKey    string `mapstructure:"private_key"` // From env/keyring only
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
	SheetName     string `mapstructure:"sheet_name"`
}

// CalendlyConfig configures the scheduling backend.
type CalendlyConfig struct {
	APIToken        string        `mapstructure:"api_token"` // From env/keyring only
	UserURI         string        `mapstructure:"user_uri"`
	OrganizationURI string        `mapstructure:"organization_uri"`
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// EmailConfig configures the notification backend.
type EmailConfig struct {
	// Provider is "api" (Resend-compatible REST) or "smtp".
	Provider string     `mapstructure:"provider"`
	APIKey   string     `mapstructure:"api_key"` // From env/keyring only
	BaseURL  string     `mapstructure:"base_url"`
	From     string     `mapstructure:"from"`
	FromName string     `mapstructure:"from_name"`
	ReplyTo  string     `mapstructure:"reply_to"`
	SMTP     SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig addresses an SMTP relay.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"` // From env/keyring only
}

// AuditConfig configures the invocation journal.
type AuditConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Path          string        `mapstructure:"path"`
	EncryptionKey string        `mapstructure:"encryption_key"` // From env/keyring only
	Retention     time.Duration `mapstructure:"retention"`      // 0 keeps entries forever
	PruneSchedule string        `mapstructure:"prune_schedule"`
}

// envAliases are the conventional variable names accepted next to the
// SWITCHBOARD_ ones.
var envAliases = map[string][]string{
	"calendly.api_token":            {"CALENDLY_API_TOKEN"},
	"calendly.user_uri":             {"CALENDLY_USER_URI"},
	"calendly.organization_uri":     {"CALENDLY_ORGANIZATION_URI"},
	"email.api_key":                 {"RESEND_API_KEY"},
	"email.from":                    {"EMAIL_FROM", "FROM_EMAIL"},
	"email.from_name":               {"EMAIL_FROM_NAME", "FROM_NAME"},
	"email.smtp.host":               {"SMTP_HOST"},
	"email.smtp.port":               {"SMTP_PORT"},
	"email.smtp.username":           {"SMTP_USERNAME"},
	"email.smtp.password":           {"SMTP_PASSWORD"},
	"records.sheets.client_email":   {"GOOGLE_SERVICE_ACCOUNT_EMAIL"},
	"records.sheets.private_key":    {"GOOGLE_PRIVATE_KEY"},
	"records.sheets.spreadsheet_id": {"GOOGLE_SHEET_ID"},
	"records.sheets.sheet_name":     {"GOOGLE_SHEET_NAME"},
	"server.shared_secret":          {"MCP_SHARED_SECRET"},
	"server.allowed_origins":        {"ALLOWED_ORIGINS"},
	"logging.level":                 {"LOG_LEVEL"},
}

// DataDir is where the default config file and journal live. It honors
// SWITCHBOARD_DATA_DIR.
func DataDir() string {
	if dir := os.Getenv(EnvPrefix + "_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".switchboard"
	}
	return filepath.Join(home, ".switchboard")
}

// LoadConfig loads configuration. envFiles are read first without overriding
// variables already set; missing files are skipped. flags may be nil.
func LoadConfig(cfgFile string, envFiles []string, flags *pflag.FlagSet) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(DataDir())
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range sortedKeys(envAliases) {
		names := append([]string{envName(key)}, envAliases[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins)

	// Non-fatal: keyring might not be available
	_ = loadSecretsFromKeyring(&config)

	return &config, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"log-level": "logging.level",
	"log-file":  "logging.file",
	"addr":      "server.addr",
	"path":      "server.path",
	"workbook":  "records.workbook_path",
	"audit":     "audit.enabled",
	"audit-db":  "audit.path",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func loadEnvFiles(files []string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// splitList expands comma-separated entries, as env vars deliver them.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// setDefaults sets default configuration values. Every key is given a
// default so AutomaticEnv sees it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.path", "/mcp")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shared_secret", "")
	v.SetDefault("server.secret_header", "X-Switchboard-Secret")
	v.SetDefault("server.max_body_bytes", 4<<20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.instructions", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")

	v.SetDefault("records.workbook_path", "")
	v.SetDefault("records.sheets.client_email", "")
	v.SetDefault("records.sheets.private_key", "")
	v.SetDefault("records.sheets.spreadsheet_id", "")
	v.SetDefault("records.sheets.sheet_name", "Customers")

	v.SetDefault("calendly.api_token", "")
	v.SetDefault("calendly.user_uri", "")
	v.SetDefault("calendly.organization_uri", "")
	v.SetDefault("calendly.base_url", "https://api.calendly.com")
	v.SetDefault("calendly.timeout", 30*time.Second)

	v.SetDefault("email.provider", "api")
	v.SetDefault("email.api_key", "")
	v.SetDefault("email.base_url", "https://api.resend.com")
	v.SetDefault("email.from", "")
	v.SetDefault("email.from_name", "")
	v.SetDefault("email.reply_to", "")
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.path", filepath.Join(DataDir(), "audit.db"))
	v.SetDefault("audit.encryption_key", "")
	v.SetDefault("audit.retention", time.Duration(0))
	v.SetDefault("audit.prune_schedule", "0 3 * * *")
}

// SecretMapping defines how to load a secret from keyring into the config.
type SecretMapping struct {
	KeyringKey string
	Setter     func(*Config, string)
	IsSet      func(*Config) bool // Returns true if the value is already set (skip keyring lookup)
}

// GetSecretMappings returns all secret mappings for the application.
func GetSecretMappings() []SecretMapping {
	return []SecretMapping{
		{
			KeyringKey: "calendly_api_token",
			Setter:     func(c *Config, val string) { c.Calendly.APIToken = val },
			IsSet:      func(c *Config) bool { return c.Calendly.APIToken != "" },
		},
		{
			KeyringKey: "resend_api_key",
			Setter:     func(c *Config, val string) { c.Email.APIKey = val },
			IsSet:      func(c *Config) bool { return c.Email.APIKey != "" },
		},
		{
			KeyringKey: "smtp_password",
			Setter:     func(c *Config, val string) { c.Email.SMTP.Password = val },
			IsSet:      func(c *Config) bool { return c.Email.SMTP.Password != "" },
		},
		{
			KeyringKey: "google_private_key",
			Setter:     func(c *Config, val string) { c.Records.Sheets.PrivateKey = val },
			IsSet:      func(c *Config) bool { return c.Records.Sheets.PrivateKey != "" },
		},
		{
			KeyringKey: "shared_secret",
			Setter:     func(c *Config, val string) { c.Server.SharedSecret = val },
			IsSet:      func(c *Config) bool { return c.Server.SharedSecret != "" },
		},
		{
			KeyringKey: "audit_encryption_key",
			Setter:     func(c *Config, val string) { c.Audit.EncryptionKey = val },
			IsSet:      func(c *Config) bool { return c.Audit.EncryptionKey != "" },
		},
	}
}

// ListAvailableSecretKeys returns the keyring key names.
func ListAvailableSecretKeys() []string {
	mappings := GetSecretMappings()
	keys := make([]string, 0, len(mappings))
	for _, m := range mappings {
		keys = append(keys, m.KeyringKey)
	}
	return keys
}

func loadSecretsFromKeyring(config *Config) error {
	for _, mapping := range GetSecretMappings() {
		if mapping.IsSet(config) {
			continue
		}
		value, err := GetSecretFromKeyring(mapping.KeyringKey)
		if err == nil && value != "" {
			mapping.Setter(config, value)
		}
	}
	return nil
}

// GetSecretFromKeyring retrieves a secret from the system keyring.
func GetSecretFromKeyring(key string) (string, error) {
	return keyring.Get(ServiceName, key)
}

// SaveSecretToKeyring saves a secret to the system keyring.
func SaveSecretToKeyring(key, value string) error {
	return keyring.Set(ServiceName, key, value)
}

// DeleteSecretFromKeyring removes a secret from the system keyring.
func DeleteSecretFromKeyring(key string) error {
	return keyring.Delete(ServiceName, key)
}
