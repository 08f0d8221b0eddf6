package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultUserAgent - заголовок User-Agent браузера, с которым выполняются все исходящие запросы.
// Часть источников отдаёт 403 на запросы без него.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config представляет основную конфигурацию агрегатора.
// Содержит настройки сервера, логгера, приложения и необязательных приёмников (БД, Kafka).
type Config struct {
	Server   ServerConfig   `json:"server"`
	Logger   LoggerConfig   `json:"logger"`
	App      AppConfig      `json:"app"`
	Database DatabaseConfig `json:"database"`
	Kafka    KafkaConfig    `json:"kafka"`
}

// ServerConfig содержит настройки HTTP-сервера.
// RateLimitRPS <= 0 отключает ограничение частоты запросов.
type ServerConfig struct {
	Address        string  `json:"address"`
	APIPrefix      string  `json:"api_prefix"`
	RateLimitRPS   float64 `json:"rate_limit_rps"`
	RateLimitBurst int     `json:"rate_limit_burst"`
}

// LoggerConfig содержит настройки системы логирования.
// Пустые File и ErrorFile означают вывод в stdout и stderr соответственно.
type LoggerConfig struct {
	Level     string `json:"level"`
	File      string `json:"file"`
	ErrorFile string `json:"error_file"`
}

// FeedURL представляет конфигурацию отдельной RSS-ленты.
type FeedURL struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AppConfig содержит настройки агрегации.
// Длительности задаются строками в формате time.ParseDuration.
type AppConfig struct {
	FeedURLs           []FeedURL `json:"feed_urls"`
	ProcessingInterval string    `json:"processing_interval"`
	RetentionLimit     int       `json:"retention_limit"`
	MaxEntriesPerFeed  int       `json:"max_entries_per_feed"`
	PreviewBudget      int       `json:"preview_budget"`
	PreviewChars       int       `json:"preview_chars"`
	FeedTimeout        string    `json:"feed_timeout"`
	PreviewTimeout     string    `json:"preview_timeout"`
	FetchConcurrency   int       `json:"fetch_concurrency"`
	UserAgent          string    `json:"user_agent"`
}

// DatabaseConfig содержит параметры подключения к PostgreSQL для архива статей.
// Архив включается только при Enabled = true.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// KafkaConfig описывает публикацию событий о новых статьях. Пустой Brokers отключает её.
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// DSN возвращает строку подключения к PostgreSQL в формате URI.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.Username),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.DBName,
		c.SSLMode)
}

// DefaultFeeds - эталонный набор AI-лент.
func DefaultFeeds() []FeedURL {
	return []FeedURL{
		{Name: "AI News", URL: "https://www.artificialintelligence-news.com/feed/"},
		{Name: "Google AI Blog", URL: "https://ai.googleblog.com/feeds/posts/default"},
		{Name: "OpenAI Blog", URL: "https://openai.com/blog/rss.xml"},
		{Name: "DeepMind", URL: "https://www.deepmind.com/rss"},
		{Name: "Meta AI", URL: "https://ai.meta.com/feed/"},
		{Name: "Synced", URL: "https://syncedreview.com/feed/"},
		{Name: "Wired AI", URL: "https://www.wired.com/feed/category/ai/latest/rss"},
	}
}

// Load загружает конфигурацию из JSON-файла по указанному пути поверх значений по умолчанию.
// Возвращает ошибку, если файл недоступен для чтения или содержит некорректный JSON.
func Load(configPath string) (*Config, error) {
	cfg := New()
	fileData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	if err := json.Unmarshal(fileData, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON from file %s: %w", configPath, err)
	}
	return cfg, nil
}

// New создает новый экземпляр Config со значениями по умолчанию.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":5000",
			APIPrefix:      "/api",
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		App: AppConfig{
			FeedURLs:           DefaultFeeds(),
			ProcessingInterval: "1h",
			RetentionLimit:     100,
			MaxEntriesPerFeed:  10,
			PreviewBudget:      50,
			PreviewChars:       500,
			FeedTimeout:        "30s",
			PreviewTimeout:     "10s",
			FetchConcurrency:   4,
			UserAgent:          DefaultUserAgent,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Kafka: KafkaConfig{
			Topic: "news-articles",
		},
	}
}

// ApplyEnv применяет переменные окружения. PORT заменяет порт в server.address.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	port := strings.TrimSpace(getenv("PORT"))
	if port == "" {
		return nil
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("invalid PORT value %q", port)
	}
	c.Server.Address = fmt.Sprintf(":%d", n)
	return nil
}

// Validate проверяет корректность конфигурации.
// Возвращает ошибку с описанием первой найденной проблемы.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is not set")
	}
	if c.Server.APIPrefix != "" && !strings.HasPrefix(c.Server.APIPrefix, "/") {
		return fmt.Errorf("server.api_prefix must start with '/': %q", c.Server.APIPrefix)
	}
	if len(c.App.FeedURLs) == 0 {
		return fmt.Errorf("app.feed_urls must not be empty")
	}
	for _, feed := range c.App.FeedURLs {
		if _, err := url.ParseRequestURI(feed.URL); err != nil {
			return fmt.Errorf("invalid url in app.feed_urls: %s", feed.URL)
		}
		if feed.Name == "" {
			return fmt.Errorf("feed name cannot be empty for url: %s", feed.URL)
		}
	}
	if c.App.RetentionLimit <= 0 {
		return fmt.Errorf("app.retention_limit must be a positive number")
	}
	if c.App.MaxEntriesPerFeed <= 0 {
		return fmt.Errorf("app.max_entries_per_feed must be a positive number")
	}
	if c.App.PreviewBudget < 0 {
		return fmt.Errorf("app.preview_budget must not be negative")
	}
	if c.App.PreviewChars <= 0 {
		return fmt.Errorf("app.preview_chars must be a positive number")
	}
	if c.App.FetchConcurrency <= 0 {
		return fmt.Errorf("app.fetch_concurrency must be a positive number")
	}
	for name, value := range map[string]string{
		"app.processing_interval": c.App.ProcessingInterval,
		"app.feed_timeout":        c.App.FeedTimeout,
		"app.preview_timeout":     c.App.PreviewTimeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is not set")
		}
		if c.Database.Username == "" {
			return fmt.Errorf("database username is not set")
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic must be set when kafka.brokers is configured")
	}
	return nil
}

// Durations возвращает разобранные интервалы приложения. Вызывать после Validate.
func (a AppConfig) Durations() (interval, feedTimeout, previewTimeout time.Duration) {
	interval, _ = time.ParseDuration(a.ProcessingInterval)
	feedTimeout, _ = time.ParseDuration(a.FeedTimeout)
	previewTimeout, _ = time.ParseDuration(a.PreviewTimeout)
	return interval, feedTimeout, previewTimeout
}
