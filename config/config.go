package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var AppVersion string

// EnvFile names the dev file when APP_ENV is DEV, otherwise the prod file.
func EnvFile() string {
	if os.Getenv("APP_ENV") == "DEV" {
		return "config/dev.json"
	}
	return "config/prod.json"
}

// Read from either the dev or prod file.
func Read() *Config {
	cfg, err := Load(EnvFile())
	if err != nil {
		dirName := os.Getenv("PROJECT_NAME")
		if dirName == "" {
			panic(err.Error())
		}
		wd, _ := os.Getwd()
		for !strings.HasSuffix(wd, dirName) && wd != filepath.Dir(wd) {
			wd = filepath.Dir(wd)
		}
		chdirErr := os.Chdir(wd)
		if chdirErr != nil {
			panic(chdirErr.Error())
		}
		cfg, err = Load("config/dev.json")
		if err != nil {
			panic(err.Error())
		}
	}

	return cfg
}

// Load decodes a JSON or YAML file, chosen by extension, and fills defaults.
func Load(path string) (*Config, error) {
	raw, errFile := os.ReadFile(path)
	if errFile != nil {
		return nil, fmt.Errorf("config: %w", errFile)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	config.fill()
	config.Version = AppVersion
	return &config, nil
}

// Default returns a Config holding only defaults.
func Default() *Config {
	c := new(Config)
	c.fill()
	c.Version = AppVersion
	return c
}

type Config struct {
	Logger      *Logger      `json:"logger" yaml:"logger"`
	Version     string       `json:"version" yaml:"version"`
	Environment *Environment `json:"environment" yaml:"environment"`
	Secrets     *Secrets     `json:"secrets" yaml:"secrets"`
	Data        *Data        `json:"data" yaml:"data"`
	Api         *Api         `json:"api" yaml:"api"`
	HttpServer  *HttpServer  `json:"httpserver" yaml:"httpserver"`
}

type Logger struct {
	Level string `json:"level" yaml:"level"`
}

// Environment names the variables that classify the process and locate the
// vault. Force, when "ci" or "local", skips detection.
type Environment struct {
	Markers       []string `json:"markers" yaml:"markers"`
	VaultURLVar   string   `json:"vault_url_var" yaml:"vault_url_var"`
	SecretNameVar string   `json:"secret_name_var" yaml:"secret_name_var"`
	Force         string   `json:"force" yaml:"force"`
}

// VaultURL reads the configured variable.
func (e *Environment) VaultURL() string {
	return os.Getenv(e.VaultURLVar)
}

// SecretName reads the configured variable.
func (e *Environment) SecretName() string {
	return os.Getenv(e.SecretNameVar)
}

type Secrets struct {
	Backend       string        `json:"backend" yaml:"backend"`
	AzureKeyVault AzureKeyVault `json:"azure_keyvault" yaml:"azure_keyvault"`
	Openbao       Openbao       `json:"openbao" yaml:"openbao"`
}

type AzureKeyVault struct {
	// ManagedIdentityClientID selects a user-assigned identity. Empty means
	// the default credential chain.
	ManagedIdentityClientID string `json:"managed_identity_client_id" yaml:"managed_identity_client_id"`
}

type Openbao struct {
	Mount    string `json:"mount" yaml:"mount"`
	TokenVar string `json:"token_var" yaml:"token_var"`
}

// ReadToken reads the token from the configured variable.
func (o *Openbao) ReadToken() string {
	return os.Getenv(o.TokenVar)
}

type Data struct {
	Local        Local   `json:"local" yaml:"local"`
	Driver       string  `json:"driver" yaml:"driver"`
	Sslmode      string  `json:"sslmode" yaml:"sslmode"`
	ClientID     string  `json:"application_client_id" yaml:"application_client_id"`
	Probe        bool    `json:"probe" yaml:"probe"`
	ProbeTimeout int     `json:"probe_timeout_ms" yaml:"probe_timeout_ms"`
	Release      string  `json:"release" yaml:"release"`
	Queries      Queries `json:"queries" yaml:"queries"`
}

type Local struct {
	Path    string `json:"path" yaml:"path"`
	Section string `json:"section" yaml:"section"`
}

// Queries hold the SQL agreed with the schema owner. Empty fields keep the
// built-in statements.
type Queries struct {
	UserEmails string `json:"user_emails" yaml:"user_emails"`
	FieldName  string `json:"field_name" yaml:"field_name"`
}

type Api struct {
	BaseURL            string      `json:"base_url" yaml:"base_url"`
	Timeout            int         `json:"timeout" yaml:"timeout"`
	InsecureSkipVerify bool        `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	RateLimiter        RateLimiter `json:"rate_limiter" yaml:"rate_limiter"`
}

type RateLimiter struct {
	Average float64 `json:"average" yaml:"average"`
	Burst   int     `json:"burst" yaml:"burst"`
}

type HttpServer struct {
	Port              string      `json:"port" yaml:"port"`
	TimeoutRead       int         `json:"timeout_read" yaml:"timeout_read"`
	TimeoutWrite      int         `json:"timeout_write" yaml:"timeout_write"`
	TimeoutIdle       int         `json:"timeout_idle" yaml:"timeout_idle"`
	GlobalRateLimiter RateLimiter `json:"global_rate_limiter" yaml:"global_rate_limiter"`
}

func (c *Config) fill() {
	if c.Logger == nil {
		c.Logger = &Logger{Level: "warn"}
	}

	if c.Environment == nil {
		c.Environment = new(Environment)
	}
	if len(c.Environment.Markers) == 0 {
		c.Environment.Markers = []string{"BUILD_ID", "SYSTEM_TEAMPROJECT"}
	}
	if c.Environment.VaultURLVar == "" {
		c.Environment.VaultURLVar = "AZURE_KEY_VAULT_URL"
	}
	if c.Environment.SecretNameVar == "" {
		c.Environment.SecretNameVar = "DATABASE_SECRET_NAME"
	}

	if c.Secrets == nil {
		c.Secrets = new(Secrets)
	}
	if c.Secrets.Backend == "" {
		c.Secrets.Backend = "azure-keyvault"
	}
	if c.Secrets.Openbao.Mount == "" {
		c.Secrets.Openbao.Mount = "secret"
	}
	if c.Secrets.Openbao.TokenVar == "" {
		c.Secrets.Openbao.TokenVar = "OPENBAO_TOKEN"
	}

	if c.Data == nil {
		c.Data = &Data{Probe: true}
	}
	if c.Data.Local.Path == "" {
		c.Data.Local.Path = "config/settings.ini"
	}
	if c.Data.Local.Section == "" {
		c.Data.Local.Section = "database"
	}
	if c.Data.Driver == "" {
		c.Data.Driver = "sqlserver"
	}
	if c.Data.ProbeTimeout == 0 {
		c.Data.ProbeTimeout = 5000
	}
	if c.Data.Release == "" {
		c.Data.Release = "session"
	}

	if c.Api == nil {
		c.Api = new(Api)
	}
	if c.Api.Timeout == 0 {
		c.Api.Timeout = 30
	}

	if c.HttpServer == nil {
		c.HttpServer = new(HttpServer)
	}
	if c.HttpServer.Port == "" {
		c.HttpServer.Port = "8080"
	}
	if c.HttpServer.TimeoutRead == 0 {
		c.HttpServer.TimeoutRead = 5
	}
	if c.HttpServer.TimeoutWrite == 0 {
		c.HttpServer.TimeoutWrite = 10
	}
	if c.HttpServer.TimeoutIdle == 0 {
		c.HttpServer.TimeoutIdle = 60
	}
}
