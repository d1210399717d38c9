package config

// Config is the root configuration structure for nervos-bot.
// Loaded once at startup and passed by reference; never mutated afterwards.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   json:"server"`
	GitHub   GitHubConfig   `mapstructure:"github"   json:"github"`
	Telegram TelegramConfig `mapstructure:"telegram" json:"telegram"`
	Projects ProjectsConfig `mapstructure:"projects" json:"projects"`
}

// ServerConfig controls the webhook HTTP front door.
type ServerConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:8080".
	Addr string `mapstructure:"addr" json:"addr"`
}

// GitHubConfig holds the GitHub App credentials.
type GitHubConfig struct {
	AppID int64 `mapstructure:"app_id" json:"app_id"`
	// PrivateKey is the App's RSA private key in PEM form. Takes
	// precedence over PrivateKeyPath when both are set.
	PrivateKey string `mapstructure:"private_key" json:"private_key"`
	// PrivateKeyPath points at a PEM file on disk.
	PrivateKeyPath string `mapstructure:"private_key_path" json:"private_key_path"`
	// WebhookSecret is the shared secret for webhook HMAC signatures.
	WebhookSecret string `mapstructure:"webhook_secret" json:"webhook_secret"`
	// BotLogin is the login the App acts as, e.g. "nervos-bot[bot]".
	// Used to recognise the bot's own reviews and check-runs.
	BotLogin string `mapstructure:"bot_login" json:"bot_login"`
	// APIBaseURL overrides the GitHub API endpoint (GitHub Enterprise,
	// or an httptest server in tests).
	APIBaseURL string `mapstructure:"api_base_url" json:"api_base_url"`
}

// TelegramConfig holds the Telegram Bot API credentials and routing.
type TelegramConfig struct {
	Token string `mapstructure:"token" json:"token"`
	// APIBaseURL overrides https://api.telegram.org (tests).
	APIBaseURL string `mapstructure:"api_base_url" json:"api_base_url"`
	// AlertChatID receives Alertmanager relays.
	AlertChatID int64 `mapstructure:"alert_chat_id" json:"alert_chat_id"`
	// IssueRepo is the "owner/name" repository that the /issue chat
	// command links into.
	IssueRepo string `mapstructure:"issue_repo" json:"issue_repo"`
}

// ProjectsConfig is the per-project routing and feature configuration
// consumed by the brain. Project keys are bare repository names
// (without the owner), matching webhook payloads.
type ProjectsConfig struct {
	// DummyCI lists projects that get the always-green "Dummy CI"
	// check-run on every push and pull request update.
	DummyCI []string `mapstructure:"dummy_ci" json:"dummy_ci"`
	// CISync lists projects whose external CI check-runs are mirrored
	// and whose comments may carry CI status markers.
	CISync []string `mapstructure:"ci_sync" json:"ci_sync"`
	// CIFork lists projects with fork PR mirroring enabled.
	CIFork []string `mapstructure:"ci_fork" json:"ci_fork"`
	// Backport lists projects with backport label/issue automation.
	Backport []string `mapstructure:"backport" json:"backport"`
	// ReviewerPolicy is "round_robin" (default) or "random".
	ReviewerPolicy string `mapstructure:"reviewer_policy" json:"reviewer_policy"`
	// Reviewers maps a project to its ordered reviewer rotation list.
	Reviewers map[string][]string `mapstructure:"reviewers" json:"reviewers"`
	// MergeNotifications maps a project to the Telegram chat IDs that
	// receive merged-PR notifications.
	MergeNotifications map[string][]int64 `mapstructure:"merge_notifications" json:"merge_notifications"`
	// BoardColumns maps a project to the project-board column IDs that
	// receive a card for each opened issue/PR.
	BoardColumns map[string][]int64 `mapstructure:"board_columns" json:"board_columns"`
}
