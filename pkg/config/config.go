// Package config loads Octopus's layered configuration: a config file plus
// OCTOPUS_-prefixed environment overrides, decoded into typed structs.
package config

import (
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = viper.New()
	v.SetEnvPrefix("octopus") // will be uppercased automatically
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.provider", "sqlite")
	v.SetDefault("database.connectionString", "file:octopus.db?_foreign_keys=on")
	v.SetDefault("storage.provider", "localDisk")
	v.SetDefault("storage.localDisk.basePath", "./data/storage")
	v.SetDefault("auth.mode", "development")
	v.SetDefault("processing.workers", 2)
	v.SetDefault("processing.maxAttempts", 5)
	v.SetDefault("processing.backoffBaseMs", 500)
	v.SetDefault("processing.queue.driver", "inprocess")
	v.SetDefault("oauth.accessTokenTtlSec", 3600)
	v.SetDefault("oauth.codeTtlSec", 60)
	v.SetDefault("uploads.reserveTtlHours", 24)
	v.SetDefault("http.addr", ":9090")
}

// SetFile points the loader at a config file (TOML, YAML, JSON, whatever
// viper's extension sniffing recognizes).
func SetFile(path string) {
	v.SetConfigFile(path)
}

// Read loads the configured file, if one was set. Missing files are not an
// error: defaults and environment variables still apply.
func Read() error {
	if v.ConfigFileUsed() == "" {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return nil
}

// Database configures the persistence backend (spec §6 database.*).
type Database struct {
	Provider         string `mapstructure:"provider"`
	ConnectionString string `mapstructure:"connectionString"`
}

// Storage configures the storage provider backend (spec §6 storage.*).
type Storage struct {
	Provider  string                 `mapstructure:"provider"`
	LocalDisk LocalDiskStorage       `mapstructure:"localDisk"`
	S3        S3Storage              `mapstructure:"s3"`
	Extra     map[string]interface{} `mapstructure:",remain"`
}

// LocalDiskStorage configures the local-filesystem storage provider.
type LocalDiskStorage struct {
	BasePath string `mapstructure:"basePath"`
}

// S3Storage configures the S3-compatible storage provider.
type S3Storage struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	UseSSL    bool   `mapstructure:"useSSL"`
	Region    string `mapstructure:"region"`
}

// Auth configures principal extraction (spec §6 auth.*).
type Auth struct {
	Mode string  `mapstructure:"mode"` // development | oidc
	Dev  DevAuth `mapstructure:"dev"`
	OIDC OIDCAuth `mapstructure:"oidc"`
}

// DevAuth is the fixed principal used when auth.mode=development.
type DevAuth struct {
	Subject     string `mapstructure:"subject"`
	Email       string `mapstructure:"email"`
	DisplayName string `mapstructure:"displayName"`
}

// OIDCAuth holds the auth.oidc.* settings. They are decoded but not read:
// every mode other than development verifies bearer tokens issued by
// pkg/auth/oauth2, and no external identity provider is contacted.
type OIDCAuth struct {
	Authority           string `mapstructure:"authority"`
	Audience            string `mapstructure:"audience"`
	RequireHTTPSMetadata bool   `mapstructure:"requireHttpsMetadata"`
}

// Processing configures the background worker pool and job queue.
type Processing struct {
	Workers       int       `mapstructure:"workers"`
	MaxAttempts   int       `mapstructure:"maxAttempts"`
	BackoffBaseMs int       `mapstructure:"backoffBaseMs"`
	Queue         QueueConf `mapstructure:"queue"`
}

// QueueConf selects and configures the job-queue backend.
type QueueConf struct {
	Driver string `mapstructure:"driver"` // inprocess | nats
	NATS   NATSConf `mapstructure:"nats"`
}

// NATSConf configures the NATS JetStream queue backend.
type NATSConf struct {
	URL     string `mapstructure:"url"`
	Embed   bool   `mapstructure:"embed"`
	Subject string `mapstructure:"subject"`
}

// Quota configures the workspace-level storage quota default.
type Quota struct {
	WorkspaceBytes *int64 `mapstructure:"workspaceBytes"` // nil means unlimited
}

// OAuth configures token/code lifetimes for the OAuth2 server.
type OAuth struct {
	AccessTokenTTLSec int    `mapstructure:"accessTokenTtlSec"`
	CodeTTLSec        int    `mapstructure:"codeTtlSec"`
	SigningAlgorithm  string `mapstructure:"signingAlgorithm"` // not read; tokens are always signed HS256
	HMACSecret        string `mapstructure:"hmacSecret"`
	Issuer            string `mapstructure:"issuer"`
}

// Uploads configures the upload-session state machine.
type Uploads struct {
	ReserveTTLHours int `mapstructure:"reserveTtlHours"`
}

// HTTP configures the REST API listener.
type HTTP struct {
	Addr string `mapstructure:"addr"`
}

// Config is the fully decoded application configuration (spec §6).
type Config struct {
	Database   Database   `mapstructure:"database"`
	Storage    Storage    `mapstructure:"storage"`
	Auth       Auth       `mapstructure:"auth"`
	Processing Processing `mapstructure:"processing"`
	Quota      Quota      `mapstructure:"quota"`
	OAuth      OAuth      `mapstructure:"oauth"`
	Uploads    Uploads    `mapstructure:"uploads"`
	HTTP       HTTP       `mapstructure:"http"`
}

// Load decodes the layered configuration (file + env + defaults) into a
// Config struct.
func Load() (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c, func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = false
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the raw settings map rooted at key, resolving environment
// overrides recursively; viper's GetStringMap does not apply automatic env
// substitution to nested keys on its own.
func Get(key string) map[string]interface{} {
	kv := v.GetStringMap(key)
	reGet(key, &kv)
	return kv
}

func reGet(prefix string, kv *map[string]interface{}) {
	for k, val := range *kv {
		if nested, ok := val.(map[string]interface{}); ok {
			reGet(prefix+"."+k, &nested)
			(*kv)[k] = nested
		} else {
			(*kv)[k] = v.Get(prefix + "." + k)
		}
	}
}
