package core

import (
	"crypto/tls"
	"net/http"
	"os"
	"time"
)

// Config holds process-level configuration loaded from the environment.
// Job-level options (paths, dimensions, prompts) live in session.Job; this
// struct carries everything that is shared across jobs: credentials,
// endpoints, model identifiers and the retry/timeout budgets.
type Config struct {
	// API credentials (may also be supplied per job)
	OpenAIAPIKey string

	// BaseURL overrides the OpenAI API endpoint (e.g. for a proxy).
	// Empty means the client default (https://api.openai.com/v1).
	BaseURL string

	// Model Selection
	ImageEditModel string // image edit model (default: dall-e-2)
	DescribeModel  string // vision model used to describe the source image
	RewriteModel   string // chat model used to derive the fallback prompt

	// Retry / timeout budgets
	MaxAttempts    int           // attempts per region before the job fails
	RetryDelay     time.Duration // initial backoff delay
	MaxRetryDelay  time.Duration // backoff ceiling
	AttemptTimeout time.Duration // per generation call
	JobTimeout     time.Duration // whole job, 0 = unlimited

	// Concurrency: 1 = fully sequential, >1 allows independent sweeps to
	// run in parallel (capped at the four cardinal directions).
	MaxConcurrent int

	// Journal (resume support). Empty path disables the journal.
	JournalPath    string
	MigrationsPath string

	// Working directories
	DownloadsDir string // temporary generation payloads
	SnapshotDir  string // verbose snapshots ("" = next to the output file)

	AllowSelfSignedCerts bool
}

// LoadConfig loads configuration from environment variables with defaults
// tuned for the OpenAI image edit API. Nothing is required here: credential
// presence is validated per job (the job may carry its own key).
func LoadConfig() (*Config, error) {
	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		openAIKey = os.Getenv("OPENAI_KEY") // Legacy support
	}

	return &Config{
		OpenAIAPIKey: openAIKey,
		BaseURL:      os.Getenv("OPENAI_BASE_URL"),

		// dall-e-2 is the only OpenAI model that accepts masked image edits
		ImageEditModel: GetEnvOrDefault("IMAGE_EDIT_MODEL", "dall-e-2"),
		DescribeModel:  GetEnvOrDefault("DESCRIBE_MODEL", "gpt-4o-mini"),
		RewriteModel:   GetEnvOrDefault("REWRITE_MODEL", "gpt-4o-mini"),

		// 4 attempts with 2s initial delay and a 30s ceiling rides out
		// typical rate-limit windows without stalling the job for minutes
		MaxAttempts:   ParseIntEnv("MAX_ATTEMPTS", 4),
		RetryDelay:    ParseDurationEnv("RETRY_DELAY", 2),
		MaxRetryDelay: ParseDurationEnv("MAX_RETRY_DELAY", 30),
		// image edits routinely take 20-60s for 1024px squares
		AttemptTimeout: ParseDurationEnv("ATTEMPT_TIMEOUT", 120),
		JobTimeout:     ParseDurationEnv("JOB_TIMEOUT", 0),

		MaxConcurrent: ParseIntEnv("MAX_CONCURRENT", 1),

		JournalPath:    os.Getenv("JOURNAL_PATH"),
		MigrationsPath: GetEnvOrDefault("MIGRATIONS_PATH", "file://journal/migrations"),

		DownloadsDir: GetEnvOrDefault("DOWNLOADS_DIR", "./downloads"),
		SnapshotDir:  os.Getenv("SNAPSHOT_DIR"),

		AllowSelfSignedCerts: ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", false),
	}, nil
}

// GetHTTPClient returns an HTTP client configured with TLS settings based on
// AllowSelfSignedCerts. This should be used for all HTTP requests to external
// APIs so the TLS configuration is respected.
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}

// GetDefaultHTTPClient returns an HTTP client with a 30s timeout configured
// with the TLS settings from cfg.
func GetDefaultHTTPClient(cfg *Config) *http.Client {
	return GetHTTPClient(cfg, 30*time.Second)
}
