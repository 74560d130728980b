// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Server Configuration
	GinMode            string        `mapstructure:"GIN_MODE"`
	ServerHost         string        `mapstructure:"SERVER_HOST"`
	ServerPort         string        `mapstructure:"PORT"`
	ServerTimeout      time.Duration `mapstructure:"SERVER_TIMEOUT_SECONDS"`
	CORSAllowedOrigins []string      `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// MongoDB Configuration
	MongoConnectionString string        `mapstructure:"MONGO_CONNECTION_STRING"`
	MongoDBName           string        `mapstructure:"MONGO_DB_NAME"`
	MongoConnectTimeout   time.Duration `mapstructure:"MONGO_CONNECT_TIMEOUT_SECONDS"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// JWT
	JWTSecretKey         string `mapstructure:"JWT_SECRET_KEY"`
	JWTExpiryDays        int    `mapstructure:"JWT_EXPIRY_DAYS"`
	ResetTokenExpiryDays int    `mapstructure:"RESET_TOKEN_EXPIRY_DAYS"`

	// SerpAPI
	SerpAPIKey     string `mapstructure:"SERPAPI_KEY"`
	SerpAPINoCache bool   `mapstructure:"SERPAPI_NO_CACHE"`
	SerpAPIURL     string `mapstructure:"SERPAPI_URL"`

	// OpenAI / report generation
	OpenAIAPIKey         string  `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL        string  `mapstructure:"OPENAI_BASE_URL"`
	EmbeddingBatchSize   int     `mapstructure:"EMBEDDING_BATCH_SIZE"`
	FastLLMModel         string  `mapstructure:"FAST_LLM_MODEL"`
	SmartLLMModel        string  `mapstructure:"SMART_LLM_MODEL"`
	FastTokenLimit       int     `mapstructure:"FAST_TOKEN_LIMIT"`
	SmartTokenLimit      int     `mapstructure:"SMART_TOKEN_LIMIT"`
	SummaryTokenLimit    int     `mapstructure:"SUMMARY_TOKEN_LIMIT"`
	Temperature          float32 `mapstructure:"TEMPERATURE"`
	BrowseChunkMaxLength int     `mapstructure:"BROWSE_CHUNK_MAX_LENGTH"`
	UserAgent            string  `mapstructure:"USER_AGENT"`
	ScrapeConcurrency    int     `mapstructure:"SCRAPE_CONCURRENCY"`

	// Email Configuration
	MailAPIKey      string `mapstructure:"MAIL_API_KEY"`
	MailAPIURL      string `mapstructure:"MAIL_API_URL"`
	MailSenderEmail string `mapstructure:"MAIL_SENDER_EMAIL"`
	MailSenderName  string `mapstructure:"MAIL_SENDER_NAME"`

	// Razorpay
	RazorpayKeyID     string `mapstructure:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret string `mapstructure:"RAZORPAY_KEY_SECRET"`
	RazorpayAPIURL    string `mapstructure:"RAZORPAY_API_URL"`

	// ipstack
	IPStackAPIKey string `mapstructure:"IPSTACK_API_KEY"`
	IPStackURL    string `mapstructure:"IPSTACK_URL"`

	// GCP / Firebase
	GCPProdEnv                    bool   `mapstructure:"-"`
	GCPBucketUsers                string `mapstructure:"GCP_BUCKET_USERS"`
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseProjectID             string `mapstructure:"FIREBASE_PROJECT_ID"`

	// Redis (broker, rate limiting)
	RedisURL           string `mapstructure:"REDIS_URL"`
	TaskStream         string `mapstructure:"TASK_STREAM"`
	TaskMaxRetries     int    `mapstructure:"TASK_MAX_RETRIES"`
	RateLimitPerMinute int    `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	// Pinecone
	PineconeAPIKey      string `mapstructure:"PINECONE_API_KEY"`
	PineconeEnvironment string `mapstructure:"PINECONE_ENVIRONMENT"`
	PineconeProjectName string `mapstructure:"PINECONE_PROJECT_NAME"`
	PineconeIndexName   string `mapstructure:"PINECONE_INDEX_NAME"`

	// Elasticsearch Configuration
	ElasticsearchURL          string `mapstructure:"ELASTICSEARCH_URL"`
	ElasticsearchReportsIndex string `mapstructure:"ELASTICSEARCH_REPORTS_INDEX"`

	// Application Specific Configuration
	UserFolder                 string        `mapstructure:"USER_FOLDER"`
	SummaryDefaultNumSentences int           `mapstructure:"SUMMARY_DEFAULT_NUM_SENTENCES"`
	UploadConcurrency          int           `mapstructure:"UPLOAD_CONCURRENCY"`
	DefaultSubscriptionDays    int           `mapstructure:"DEFAULT_SUBSCRIPTION_DAYS"`
	StaleReportAfter           time.Duration `mapstructure:"-"`

	// Cron Jobs
	StaleReportJobSchedule        string `mapstructure:"STALE_REPORT_CRON"`
	SubscriptionExpiryJobSchedule string `mapstructure:"SUBSCRIPTION_EXPIRY_CRON"`
}

// IsProduction reports whether the server runs in gin release mode.
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()

	// Set default values
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("MONGO_CONNECTION_STRING", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "TEXPLICIT2_B2C_RPTDOC")
	v.SetDefault("MONGO_CONNECT_TIMEOUT_SECONDS", 10)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("JWT_SECRET_KEY", "")
	v.SetDefault("JWT_EXPIRY_DAYS", 1)
	v.SetDefault("RESET_TOKEN_EXPIRY_DAYS", 1)

	v.SetDefault("SERPAPI_KEY", "")
	v.SetDefault("SERPAPI_NO_CACHE", false)
	v.SetDefault("SERPAPI_URL", "https://serpapi.com/search.json")
	v.SetDefault("SCRAPE_CONCURRENCY", 5)

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("EMBEDDING_BATCH_SIZE", 64)
	v.SetDefault("FAST_LLM_MODEL", "gpt-3.5-turbo-1106")
	v.SetDefault("SMART_LLM_MODEL", "gpt-4-1106-preview")
	v.SetDefault("FAST_TOKEN_LIMIT", 2000)
	v.SetDefault("SMART_TOKEN_LIMIT", 4000)
	v.SetDefault("SUMMARY_TOKEN_LIMIT", 700)
	v.SetDefault("TEMPERATURE", 1.0)
	v.SetDefault("BROWSE_CHUNK_MAX_LENGTH", 8192)
	v.SetDefault("USER_AGENT", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_4) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.97 Safari/537.36")

	v.SetDefault("MAIL_API_KEY", "")
	v.SetDefault("MAIL_API_URL", "https://api.brevo.com/v3/smtp/email")
	v.SetDefault("MAIL_SENDER_EMAIL", "noreply@texplicit2.com")
	v.SetDefault("MAIL_SENDER_NAME", "Texplicit2 Admin")

	v.SetDefault("RAZORPAY_KEY_ID", "")
	v.SetDefault("RAZORPAY_KEY_SECRET", "")
	v.SetDefault("RAZORPAY_API_URL", "https://api.razorpay.com/v1")

	v.SetDefault("IPSTACK_API_KEY", "")
	v.SetDefault("IPSTACK_URL", "http://api.ipstack.com/check")

	// GCP / Firebase
	v.SetDefault("GCP_PROD_ENV", "false")
	v.SetDefault("GCP_BUCKET_USERS", "texplicit-02-users")
	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "")

	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("TASK_STREAM", "texplicit:tasks")
	v.SetDefault("TASK_MAX_RETRIES", 3)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)

	v.SetDefault("PINECONE_API_KEY", "")
	v.SetDefault("PINECONE_ENVIRONMENT", "")
	v.SetDefault("PINECONE_PROJECT_NAME", "")
	v.SetDefault("PINECONE_INDEX_NAME", "texplicit-documents")

	// Elasticsearch, empty URL disables report search
	v.SetDefault("ELASTICSEARCH_URL", "")
	v.SetDefault("ELASTICSEARCH_REPORTS_INDEX", "reports")

	v.SetDefault("USER_FOLDER", "./assets/users")
	v.SetDefault("SUMMARY_DEFAULT_NUM_SENTENCES", 10)
	v.SetDefault("UPLOAD_CONCURRENCY", 8)
	v.SetDefault("DEFAULT_SUBSCRIPTION_DAYS", 180)
	v.SetDefault("STALE_REPORT_AFTER", "1h")

	v.SetDefault("STALE_REPORT_CRON", "@every 10m")
	v.SetDefault("SUBSCRIPTION_EXPIRY_CRON", "@daily")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Convert duration fields
	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second
	cfg.MongoConnectTimeout = time.Duration(v.GetInt("MONGO_CONNECT_TIMEOUT_SECONDS")) * time.Second
	staleAfter, err := time.ParseDuration(v.GetString("STALE_REPORT_AFTER"))
	if err != nil {
		return nil, fmt.Errorf("invalid STALE_REPORT_AFTER: %w", err)
	}
	cfg.StaleReportAfter = staleAfter

	cfg.CORSAllowedOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))
	cfg.GCPProdEnv = ParseBool(v.GetString("GCP_PROD_ENV"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("FATAL: JWT_SECRET_KEY is not set")
	}
	if strings.TrimSpace(c.MongoConnectionString) == "" {
		return fmt.Errorf("FATAL: MONGO_CONNECTION_STRING is not set")
	}
	if c.GCPProdEnv && strings.TrimSpace(c.FirebaseServiceAccountKeyPath) != "" {
		if _, err := os.Stat(c.FirebaseServiceAccountKeyPath); os.IsNotExist(err) {
			return fmt.Errorf("FATAL: Firebase service account key file specified in FIREBASE_SERVICE_ACCOUNT_KEY_PATH (%s) not found", c.FirebaseServiceAccountKeyPath)
		}
	}
	if c.UploadConcurrency <= 0 {
		c.UploadConcurrency = 8
	}
	if c.SummaryDefaultNumSentences <= 0 {
		c.SummaryDefaultNumSentences = 10
	}
	return nil
}

// ParseBool accepts Go boolean literals as well as the capitalised True/False
// forms that existing deployments put in GCP_PROD_ENV. Anything else is false.
func ParseBool(raw string) bool {
	raw = strings.TrimSpace(raw)
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	switch strings.ToLower(raw) {
	case "yes", "on":
		return true
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
