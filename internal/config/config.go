package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("shuttertrack version %s, commit %s, built at %s", version, commit, date)
}

type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Storage  StorageConfig  `mapstructure:"storage"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProviderConfig holds the identity-provider and data-plane endpoints. The
// identity base serves the account verbs (signUp, signInWithPassword, lookup,
// signInWithIdp, sendOobCode), the token base serves the refresh grant, and
// the data base serves the per-user entity collections.
type ProviderConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	IdentityBaseURL string        `mapstructure:"identity_base_url"`
	TokenBaseURL    string        `mapstructure:"token_base_url"`
	DataBaseURL     string        `mapstructure:"data_base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Dir            string `mapstructure:"dir"`
	FlagsPath      string `mapstructure:"flags_path"`
	EntitiesPath   string `mapstructure:"entities_path"`
	SessionKeyFile string `mapstructure:"session_key_file"`
}

type OAuthConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURI  string   `mapstructure:"redirect_uri"`
	Scopes       []string `mapstructure:"scopes"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

// InitFlags initializes command line flags (without parsing)
func InitFlags() {
	pflag.String("storage-dir", "", "Directory for local databases and key material")
	pflag.String("api-key", "", "Identity provider API key")
	// Note: no pflag.Parse() here; the root command parses the shared flag set
}

func Load() (*Config, error) {
	viper.Reset() // Ensure clean state

	viper.SetEnvPrefix("SHUTTERTRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".shuttertrack"))
	}

	if err := viper.ReadInConfig(); err != nil {
		// A config file is optional; env vars and flags can carry everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if dir := viper.GetString("storage-dir"); dir != "" {
		config.Storage.Dir = dir
	}
	if key := viper.GetString("api-key"); key != "" {
		config.Provider.APIKey = key
	}

	if config.Provider.APIKey == "" {
		return nil, fmt.Errorf("provider api key is required, please adjust the config or pass --api-key or SHUTTERTRACK_PROVIDER_API_KEY")
	}

	applyStorageDir(&config.Storage)

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("provider.identity_base_url", "https://identitytoolkit.googleapis.com")
	viper.SetDefault("provider.token_base_url", "https://securetoken.googleapis.com")
	viper.SetDefault("provider.timeout", 30*time.Second)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("oauth.scopes", []string{"openid", "email", "profile"})
}

// applyStorageDir fills the per-file paths from the storage dir when they are
// not set explicitly.
func applyStorageDir(cfg *StorageConfig) {
	if cfg.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Dir = filepath.Join(home, ".shuttertrack")
		} else {
			cfg.Dir = "."
		}
	}
	if cfg.FlagsPath == "" {
		cfg.FlagsPath = filepath.Join(cfg.Dir, "flags.db")
	}
	if cfg.EntitiesPath == "" {
		cfg.EntitiesPath = filepath.Join(cfg.Dir, "entities.db")
	}
	if cfg.SessionKeyFile == "" {
		cfg.SessionKeyFile = filepath.Join(cfg.Dir, "session.key")
	}
}
