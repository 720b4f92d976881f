package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	SlackBotToken string `yaml:"slack_bot_token"`
	SlackAppToken string `yaml:"slack_app_token"`

	// Slack user ID of the business operator. Messages authored by this user
	// are seller messages; admin commands are only accepted from it.
	SellerUserID string `yaml:"seller_user_id"`

	// Destination channel for order alerts and follow-up reports.
	AlertChannelID string `yaml:"alert_channel_id"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	OpenAIModel     string `yaml:"openai_model"`
	WhisperModel    string `yaml:"whisper_model"`

	DBPath           string `yaml:"db_path"`
	ExportOutputDir  string `yaml:"export_output_dir"`
	ReportTime       string `yaml:"report_time"`
	WindowSize       int    `yaml:"window_size"`
	ScanFetchLimit   int    `yaml:"scan_fetch_limit"`
	BusinessTimezone string `yaml:"business_timezone"`

	// Resolved from BusinessTimezone at load time.
	Location *time.Location `yaml:"-"`
}

const placeholderAlertChannel = "C0000000000"

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.SellerUserID, "SELLER_USER_ID")
	envOverride(&cfg.AlertChannelID, "ALERT_CHANNEL_ID")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.AnthropicModel, "ANTHROPIC_MODEL")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	envOverride(&cfg.OpenAIModel, "OPENAI_MODEL")
	envOverride(&cfg.WhisperModel, "WHISPER_MODEL")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ExportOutputDir, "EXPORT_OUTPUT_DIR")
	envOverride(&cfg.ReportTime, "REPORT_TIME")
	envOverrideInt(&cfg.WindowSize, "WINDOW_SIZE")
	envOverrideInt(&cfg.ScanFetchLimit, "SCAN_FETCH_LIMIT")
	envOverride(&cfg.BusinessTimezone, "BUSINESS_TIMEZONE")

	// Defaults
	if cfg.AlertChannelID == "" {
		log.Printf("alert_channel_id not set, using placeholder %s", placeholderAlertChannel)
		cfg.AlertChannelID = placeholderAlertChannel
	}
	if cfg.OpenAIBaseURL == "" {
		cfg.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	if cfg.WhisperModel == "" {
		cfg.WhisperModel = "whisper-large-v3"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./aquabot.db"
	}
	if cfg.ExportOutputDir == "" {
		cfg.ExportOutputDir = "./exports"
	}
	if cfg.ReportTime == "" {
		cfg.ReportTime = "09:00"
	}
	if cfg.WindowSize == 0 {
		cfg.WindowSize = 5
	}
	if cfg.ScanFetchLimit == 0 {
		cfg.ScanFetchLimit = 50
	}
	if cfg.BusinessTimezone == "" {
		cfg.BusinessTimezone = "America/Santiago"
	}

	// Validate required fields
	required := map[string]string{
		"slack_bot_token": cfg.SlackBotToken,
		"slack_app_token": cfg.SlackAppToken,
		"seller_user_id":  cfg.SellerUserID,
	}
	for name, val := range required {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}

	if cfg.AnthropicAPIKey == "" && cfg.OpenAIAPIKey == "" {
		log.Println("No classification provider configured; sale detection will always report no sale")
	}

	loc, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		log.Fatalf("invalid business_timezone '%s': %v", cfg.BusinessTimezone, err)
	}
	cfg.Location = loc

	if _, _, err := parseClock(cfg.ReportTime); err != nil {
		log.Fatalf("invalid report_time '%s': %v", cfg.ReportTime, err)
	}
	if cfg.WindowSize < 1 {
		log.Fatalf("invalid window_size '%d': must be >= 1", cfg.WindowSize)
	}
	if cfg.ScanFetchLimit < 1 {
		log.Fatalf("invalid scan_fetch_limit '%d': must be >= 1", cfg.ScanFetchLimit)
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func parseClock(s string) (int, int, error) {
	var hour, min int
	_, err := fmt.Sscanf(s, "%d:%d", &hour, &min)
	if err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("time out of range: %02d:%02d", hour, min)
	}
	return hour, min, nil
}
