package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "NERVOSBOT"

// Load reads the config file and environment and returns a populated
// Config. configPath may be empty, in which case the file is looked up
// as nervos-bot.yaml in the working directory and /etc/nervos-bot.
// Every key can be overridden through NERVOSBOT_* environment
// variables (e.g. NERVOSBOT_GITHUB_WEBHOOK_SECRET).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("nervos-bot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/nervos-bot")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when running purely from the
		// environment; a malformed one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if configPath != "" || !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("github.bot_login", "nervos-bot[bot]")
	v.SetDefault("projects.reviewer_policy", "round_robin")

	// Credential keys default to empty so AutomaticEnv can supply them
	// even when the config file omits the whole section.
	for _, key := range []string{
		"github.private_key",
		"github.private_key_path",
		"github.webhook_secret",
		"github.api_base_url",
		"telegram.token",
		"telegram.api_base_url",
		"telegram.issue_repo",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("github.app_id", 0)
	v.SetDefault("telegram.alert_chat_id", 0)
}

// Validate checks the invariants that every command relies on.
func (c *Config) Validate() error {
	if c.GitHub.AppID == 0 {
		return fmt.Errorf("config: github.app_id is required")
	}
	if c.GitHub.PrivateKey == "" && c.GitHub.PrivateKeyPath == "" {
		return fmt.Errorf("config: one of github.private_key or github.private_key_path is required")
	}
	switch c.Projects.ReviewerPolicy {
	case "round_robin", "random":
	default:
		return fmt.Errorf("config: invalid projects.reviewer_policy %q (valid: round_robin, random)", c.Projects.ReviewerPolicy)
	}
	return nil
}

// PrivateKeyPEM resolves the App private key, reading PrivateKeyPath
// when no inline key is configured.
func (c *GitHubConfig) PrivateKeyPEM() ([]byte, error) {
	if c.PrivateKey != "" {
		return []byte(c.PrivateKey), nil
	}
	pem, err := os.ReadFile(c.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading github private key: %w", err)
	}
	return pem, nil
}
