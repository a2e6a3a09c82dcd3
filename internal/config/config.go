package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains Elasticsearch parameters shared by every service.
// An empty address disables the report archive.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Engine holds everything the research engine needs: provider, discovery
// backends, platform credentials and content budgets.
type Engine struct {
	GeminiAPIKey     string
	DefaultModel     string
	AgentModel       string
	CoordinatorModel string
	MaxAttempts      int

	ProviderTimeout time.Duration
	AgentTimeout    time.Duration
	BackendTimeout  time.Duration
	FetchTimeout    time.Duration

	MaxParallelAgents int

	SearchAPIKey   string
	SearchEngineID string

	BrowserEnabled    bool
	BrowserControlURL string

	RedditClientID     string
	RedditClientSecret string
	UserAgent          string

	FallbackSubreddits []string
	PatternsFile       string

	BodyBudget    int
	CommentBudget int
	PromptBudget  int
	MaxComments   int
}

// Worker holds configuration for the Kafka job worker.
type Worker struct {
	Common
	Engine
	KafkaBrokers   []string
	JobsTopic      string
	KafkaConsumer  string
	DedupeCapacity int
	DedupeTTL      time.Duration
	MaxRetries     int
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	Engine
	BindAddr     string
	KafkaBrokers []string
	JobsTopic    string
	DefaultPage  int
	MaxPage      int
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// LoadEngine builds an Engine config from environment variables.
func LoadEngine() (*Engine, error) {
	c := &Engine{
		GeminiAPIKey:       firstEnv("GEMINI_API_KEY", "GOOGLE_AI_API_KEY"),
		DefaultModel:       getEnv("DEFAULT_MODEL", "gemini-2.5-flash"),
		AgentModel:         getEnv("AGENT_MODEL", "gemini-2.5-flash-lite"),
		CoordinatorModel:   getEnv("COORDINATOR_MODEL", "gemini-2.5-pro"),
		MaxAttempts:        getInt("LLM_MAX_ATTEMPTS", 3),
		ProviderTimeout:    getDuration("PROVIDER_TIMEOUT", "120s"),
		AgentTimeout:       getDuration("AGENT_TIMEOUT", "90s"),
		BackendTimeout:     getDuration("BACKEND_TIMEOUT", "30s"),
		FetchTimeout:       getDuration("FETCH_TIMEOUT", "10s"),
		MaxParallelAgents:  getInt("MAX_PARALLEL_AGENTS", 5),
		SearchAPIKey:       getEnv("GOOGLE_SEARCH_API_KEY", ""),
		SearchEngineID:     getEnv("GOOGLE_SEARCH_ENGINE_ID", ""),
		BrowserEnabled:     getBool("BROWSER_ENABLED", true),
		BrowserControlURL:  getEnv("BROWSER_CONTROL_URL", ""),
		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		UserAgent:          getEnv("REDDIT_USER_AGENT", "RedditSearchTool/1.0"),
		FallbackSubreddits: splitAndTrim(getEnv("FALLBACK_SUBREDDITS", "BuyItForLife,reviews,gadgets,technology,AskReddit")),
		PatternsFile:       getEnv("PATTERNS_FILE", ""),
		BodyBudget:         getInt("CONTENT_BODY_BUDGET", 1000),
		CommentBudget:      getInt("CONTENT_COMMENT_BUDGET", 200),
		PromptBudget:       getInt("CONTENT_PROMPT_BUDGET", 8000),
		MaxComments:        getInt("CONTENT_MAX_COMMENTS", 5),
	}

	if c.MaxAttempts <= 0 {
		return nil, fmt.Errorf("LLM_MAX_ATTEMPTS must be positive")
	}
	if c.MaxParallelAgents <= 0 {
		return nil, fmt.Errorf("MAX_PARALLEL_AGENTS must be positive")
	}
	if c.BodyBudget <= 0 || c.CommentBudget <= 0 || c.PromptBudget <= 0 {
		return nil, fmt.Errorf("content budgets must be positive")
	}
	if c.MaxComments < 0 {
		return nil, fmt.Errorf("CONTENT_MAX_COMMENTS cannot be negative")
	}
	if (c.RedditClientID == "") != (c.RedditClientSecret == "") {
		return nil, fmt.Errorf("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET must be set together")
	}

	return c, nil
}

// SearchAPIConfigured reports whether the Custom Search credentials are present.
func (c *Engine) SearchAPIConfigured() bool {
	return c.SearchAPIKey != "" && c.SearchEngineID != ""
}

// RedditConfigured reports whether app-only platform credentials are present.
func (c *Engine) RedditConfigured() bool {
	return c.RedditClientID != "" && c.RedditClientSecret != ""
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	eng, err := LoadEngine()
	if err != nil {
		return nil, err
	}
	c := &Worker{
		Common: Common{
			ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "reports"),
		},
		Engine:         *eng,
		KafkaBrokers:   splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		JobsTopic:      getEnv("JOBS_TOPIC", "research_jobs"),
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "research-worker"),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "24h"),
		MaxRetries:     getInt("WORKER_DLQ_RETRIES", 5),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.MaxRetries <= 0 {
		return nil, fmt.Errorf("WORKER_DLQ_RETRIES must be positive")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables. Kafka and
// Elasticsearch are optional for the API; empty values disable job
// submission and report search.
func LoadAPI() (*API, error) {
	eng, err := LoadEngine()
	if err != nil {
		return nil, err
	}
	c := &API{
		Common: Common{
			ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", ""),
			ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "reports"),
		},
		Engine:       *eng,
		BindAddr:     getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		JobsTopic:    getEnv("JOBS_TOPIC", "research_jobs"),
		DefaultPage:  getInt("API_PAGE_SIZE", 20),
		MaxPage:      getInt("API_MAX_PAGE_SIZE", 100),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common: Common{
			ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "reports"),
		},
		Interval:  getDuration("RETENTION_CRON", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := getEnv(key, ""); v != "" {
			return v
		}
	}
	return ""
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
