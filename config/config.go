package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the ingest and linking service
type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Linking  LinkingConfig  `mapstructure:"linking"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres connection string from the configured parts.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings (scheduler run locks)
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// SourcesConfig contains per-source fetch settings
type SourcesConfig struct {
	Minutes     MinutesSourceConfig   `mapstructure:"minutes"`
	ShugiinTV   TVSourceConfig        `mapstructure:"shugiintv"`
	SessionList SessionListConfig     `mapstructure:"session_list"`
	QAShu       WrittenQuestionConfig `mapstructure:"qa_shu"`
	QASan       WrittenQuestionConfig `mapstructure:"qa_san"`
	UserAgent   string                `mapstructure:"user_agent"`
}

// MinutesSourceConfig contains kokkai minutes API settings
type MinutesSourceConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
	MaxRetries      int           `mapstructure:"max_retries"`
	PageSize        int           `mapstructure:"page_size"`
}

// TVSourceConfig contains ShugiinTV scrape settings
type TVSourceConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	ListInterval    time.Duration `mapstructure:"list_interval"`
	DetailInterval  time.Duration `mapstructure:"detail_interval"`
	EmptyHTMLBytes  int           `mapstructure:"empty_html_bytes"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
}

// SessionListConfig contains session calendar scrape settings
type SessionListConfig struct {
	URL        string `mapstructure:"url"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// WrittenQuestionConfig contains written-question list scrape settings
type WrittenQuestionConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

// LinkingConfig tunes the minutes↔TV linking engine. The alias table and the
// fuzzy threshold are configuration on purpose: broadcast naming drifts over
// time and both must be adjustable without code changes.
type LinkingConfig struct {
	FuzzyThreshold int               `mapstructure:"fuzzy_threshold"`
	AliasVersion   string            `mapstructure:"alias_version"`
	Aliases        map[string]string `mapstructure:"aliases"`
	StripSuffixes  []string          `mapstructure:"strip_suffixes"`
}

func (l LinkingConfig) Validate() error {
	if l.FuzzyThreshold < 0 {
		return fmt.Errorf("linking.fuzzy_threshold cannot be negative")
	}
	if len(l.Aliases) > 0 && strings.TrimSpace(l.AliasVersion) == "" {
		return fmt.Errorf("linking.alias_version required when aliases are configured")
	}
	return nil
}

// ScheduleConfig holds cron specs for the periodic jobs
type ScheduleConfig struct {
	SyncCron string `mapstructure:"sync_cron"`
	LinkCron string `mapstructure:"link_cron"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "30s")
	viper.SetDefault("server.address", ":10011")
	viper.SetDefault("sources.user_agent", "kokkaid/1.0 (+https://github.com/kokkai-archive/kokkaid)")
	viper.SetDefault("sources.minutes.base_url", "https://kokkai.ndl.go.jp/api")
	viper.SetDefault("sources.minutes.request_interval", "2500ms")
	viper.SetDefault("sources.minutes.max_retries", 3)
	viper.SetDefault("sources.minutes.page_size", 100)
	viper.SetDefault("sources.shugiintv.base_url", "https://www.shugiintv.go.jp/jp/index.php")
	viper.SetDefault("sources.shugiintv.list_interval", "500ms")
	viper.SetDefault("sources.shugiintv.detail_interval", "1s")
	viper.SetDefault("sources.shugiintv.empty_html_bytes", 50)
	viper.SetDefault("sources.shugiintv.max_retries", 3)
	viper.SetDefault("sources.session_list.url", "https://www.shugiin.go.jp/internet/itdb_annai.nsf/html/statics/shiryo/kaiki.htm")
	viper.SetDefault("sources.session_list.max_retries", 3)
	viper.SetDefault("sources.qa_shu.base_url", "https://www.shugiin.go.jp/internet")
	viper.SetDefault("sources.qa_san.base_url", "https://www.sangiin.go.jp/japanese/joho1/kousei/syuisyo")
	viper.SetDefault("sources.qa_shu.request_interval", "1s")
	viper.SetDefault("sources.qa_shu.max_retries", 3)
	viper.SetDefault("sources.qa_san.request_interval", "1s")
	viper.SetDefault("sources.qa_san.max_retries", 3)
	viper.SetDefault("linking.fuzzy_threshold", 2)
	viper.SetDefault("linking.strip_suffixes", []string{"（テレビ中継）", "(テレビ中継)"})
	viper.SetDefault("schedule.sync_cron", "@hourly")
	viper.SetDefault("schedule.link_cron", "@daily")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("KOKKAID")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Linking.Validate(); err != nil {
		panic(err)
	}
	return &config
}
