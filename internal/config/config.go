package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	AI          AIConfig          `mapstructure:"ai"`
	Application ApplicationConfig `mapstructure:"application"`
	Classifier  ClassifierConfig  `mapstructure:"classifier"`
}

type ApplicationConfig struct {
	Name    string        `mapstructure:"name"`
	Version string        `mapstructure:"version"`
	Storage StorageConfig `mapstructure:"storage"`
	// Debounce is how long the watcher waits after the last write event
	// before it picks up a file.
	Debounce time.Duration `mapstructure:"debounce"`
}

// StorageConfig lists the directories used by watch mode.
type StorageConfig struct {
	Stage    string `mapstructure:"stage"`    // incoming templates
	Template string `mapstructure:"template"` // analyzed templates
	Analysis string `mapstructure:"analysis"` // analysis reports
	Jobs     string `mapstructure:"jobs"`     // incoming job files
	Output   string `mapstructure:"output"`   // generated decks
}

type ClassifierConfig struct {
	DividerMaxElements int    `mapstructure:"divider_max_elements"`
	NumberMaxDigits    int    `mapstructure:"number_max_digits"`
	KeywordDir         string `mapstructure:"keyword_dir"`
}

type AIConfig struct {
	ActiveProvider string                      `mapstructure:"active_provider"`
	Providers      map[string]ProviderSettings `mapstructure:"providers"`
}

type ProviderSettings struct {
	Driver      string  `mapstructure:"driver"` // gemini, mock
	Key         string  `mapstructure:"key"`
	Endpoint    string  `mapstructure:"endpoint"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	// Cost per million tokens, used for the usage log.
	InputCost  float64 `mapstructure:"input_cost"`
	OutputCost float64 `mapstructure:"output_cost"`
}

// Active returns the settings of the active provider.
func (c *AIConfig) Active() (string, ProviderSettings, bool) {
	s, ok := c.Providers[c.ActiveProvider]
	return c.ActiveProvider, s, ok
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Options  string `mapstructure:"options"`
}

func (c *DatabaseConfig) GetConnectStr() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, sslmode)

	if c.Options != "" {
		// Basic URL encoding for the options value: space -> %20
		encodedOptions := strings.ReplaceAll(c.Options, " ", "%20")
		connStr += fmt.Sprintf("&options=%s", encodedOptions)
	}

	return connStr
}

// LoadConfig reads .env, then config.yaml (or the file named by
// DECKFORGE_CONFIG), then the environment. A missing config file is not an
// error; a malformed one is.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: .env file not found, using system environment variables")
	}

	v := viper.New()
	path := os.Getenv("DECKFORGE_CONFIG")
	explicit := path != ""
	if !explicit {
		path = "config.yaml"
	}
	v.SetConfigFile(path)
	v.AutomaticEnv()

	// Environment variable mappings
	mappings := []struct {
		key, env string
	}{
		{"database.enabled", "DB_ENABLED"},
		{"database.url", "DB_URL"},
		{"database.host", "PG_HOST"},
		{"database.port", "PG_PORT"},
		{"database.user", "PG_USER"},
		{"database.password", "PG_PASSWORD"},
		{"database.dbname", "PG_DB"},
		{"database.sslmode", "PG_SSLMODE"},
		{"database.options", "PG_OPTIONS"},
		{"ai.active_provider", "AI_PROVIDER"},

		// Storage
		{"application.storage.stage", "STORAGE_STAGE"},
		{"application.storage.template", "STORAGE_TEMPLATE"},
		{"application.storage.analysis", "STORAGE_ANALYSIS"},
		{"application.storage.jobs", "STORAGE_JOBS"},
		{"application.storage.output", "STORAGE_OUTPUT"},
		{"application.debounce", "WATCH_DEBOUNCE"},

		// Classifier
		{"classifier.divider_max_elements", "DIVIDER_MAX_ELEMENTS"},
		{"classifier.number_max_digits", "NUMBER_MAX_DIGITS"},
		{"classifier.keyword_dir", "KEYWORD_DIR"},

		// AI Providers
		{"ai.providers.gemini.key", "GEMINI_KEY"},
		{"ai.providers.gemini.model", "GEMINI_MODEL"},
	}

	for _, m := range mappings {
		v.BindEnv(m.key, m.env)
	}

	// Defaults
	v.SetDefault("application.name", "DeckForge")
	v.SetDefault("application.version", "0.1.0")
	v.SetDefault("application.storage.stage", "data/stage")
	v.SetDefault("application.storage.template", "data/template")
	v.SetDefault("application.storage.analysis", "data/analysis")
	v.SetDefault("application.storage.jobs", "data/jobs")
	v.SetDefault("application.storage.output", "data/output")
	v.SetDefault("application.debounce", "2s")
	v.SetDefault("classifier.divider_max_elements", 3)
	v.SetDefault("classifier.number_max_digits", 3)
	v.SetDefault("database.enabled", false)
	v.SetDefault("ai.providers.gemini.driver", "gemini")
	v.SetDefault("ai.providers.gemini.model", "gemini-1.5-flash")
	v.SetDefault("ai.providers.mock.driver", "mock")

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil || explicit {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.AI.ActiveProvider == "" {
		cfg.AI.ActiveProvider = "gemini"
	}

	return &cfg, nil
}
