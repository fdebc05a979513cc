package app

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	coredatabase "github.com/m3rciful/quizbot/core/database"
	"github.com/m3rciful/quizbot/internal/quiz"
	"github.com/m3rciful/quizbot/internal/results"
)

// QuizConfig locates the question bank and its assets.
type QuizConfig struct {
	QuestionsPath string `yaml:"questions_path" envconfig:"QUESTIONS_PATH"`
	AssetsDir     string `yaml:"assets_dir" envconfig:"ASSETS_DIR"`
	// HintPenaltySeconds is nil when unset so that 0 can disable the penalty.
	HintPenaltySeconds *int `yaml:"hint_penalty_seconds" envconfig:"HINT_PENALTY_SECONDS"`
	// AdminChatIDs receive photo uploads and result summaries.
	AdminChatIDs []int64 `yaml:"admin_chat_ids" envconfig:"ADMIN_CHAT_IDS"`
}

// ResultsConfig selects where finished runs are reported.
type ResultsConfig struct {
	Webhook  results.WebhookConfig `yaml:"webhook"`
	Sheets   results.SheetsConfig  `yaml:"sheets"`
	Database bool                  `yaml:"database" envconfig:"RESULTS_DB_ENABLED"`
	// Notify sends a summary to the admin chats.
	Notify  *bool `yaml:"notify" envconfig:"RESULTS_NOTIFY"`
	Retries int   `yaml:"retries" envconfig:"RESULTS_RETRIES"`
	Workers int   `yaml:"workers" envconfig:"RESULTS_WORKERS"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Quiz     QuizConfig          `yaml:"quiz"`
	Results  ResultsConfig       `yaml:"results"`
	Database coredatabase.Config `yaml:"database"`
}

// CoreConfig exposes the embedded framework configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// HintPenaltySeconds returns the configured penalty or the default.
func (c *Config) HintPenaltySeconds() int {
	if c.Quiz.HintPenaltySeconds == nil {
		return int(quiz.DefaultHintPenalty.Seconds())
	}
	return *c.Quiz.HintPenaltySeconds
}

// NotifyEnabled reports whether admin chats get result summaries.
func (c *Config) NotifyEnabled() bool {
	return len(c.Quiz.AdminChatIDs) > 0 && (c.Results.Notify == nil || *c.Results.Notify)
}

// Load reads the YAML file at path, overlays the environment and validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.ReadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the configuration and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	c.Quiz.QuestionsPath = strings.TrimSpace(c.Quiz.QuestionsPath)
	if c.Quiz.QuestionsPath == "" {
		c.Quiz.QuestionsPath = "questions.json"
	}
	c.Quiz.AssetsDir = strings.TrimSpace(c.Quiz.AssetsDir)
	if c.Quiz.AssetsDir == "" {
		c.Quiz.AssetsDir = "static"
	}
	if c.HintPenaltySeconds() < 0 {
		return fmt.Errorf("quiz.hint_penalty_seconds must be >= 0")
	}

	if err := c.Results.Webhook.Normalize(); err != nil {
		return err
	}
	if err := c.Results.Sheets.Normalize(); err != nil {
		return err
	}
	if c.Results.Retries < 0 {
		return fmt.Errorf("results.retries must be >= 0")
	}
	if c.Results.Database {
		c.Database.Normalize()
	}
	return nil
}
