package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/leasegate/leasegate/services/governor"
	"github.com/leasegate/leasegate/services/quota"
)

// Config represents the complete daemon configuration
type Config struct {
	Server      ServerConfig
	Governor    GovernorConfig
	Policy      PolicyConfig
	Audit       AuditConfig
	State       StateConfig
	Quota       QuotaConfig
	LogLevel    string
	Environment string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// GovernorConfig holds the admission limits for the single-node governor
type GovernorConfig struct {
	LeaseTTL                  time.Duration
	MaxInFlight               int
	DailyBudgetCents          int
	MaxRequestsPerMinute      int
	MaxTokensPerMinute        int
	MaxContextTokens          int
	MaxRetrievedChunks        int
	MaxToolOutputTokens       int
	MaxToolCallsPerLease      int
	MaxComputeUnits           int
	RateWindow                time.Duration
	ReceiptThresholdCostCents int
	ReceiptSigningKey         string
	RetryStormThreshold       int
	PolicyDenyThreshold       int
	ToolLoopThreshold         int
	CircuitBreakerDuration    time.Duration
	ActorCooldownDuration     time.Duration
	ExpirySweepInterval       time.Duration
}

// PolicyConfig holds the policy file source
type PolicyConfig struct {
	FilePath       string
	ReloadInterval time.Duration
}

// AuditConfig holds audit log settings
type AuditConfig struct {
	Directory string
	QueueSize int
}

// StateConfig holds durable state settings.
// An empty Path disables persistence entirely.
type StateConfig struct {
	Path string
}

// QuotaConfig holds the hub-level hierarchical limits. Per-workspace and
// per-actor maps come from the policy file; only org-wide scalars are
// env-configurable.
type QuotaConfig struct {
	Enabled                   bool
	OrgDailyBudgetCents       int
	MaxInFlightPerActor       int
	OrgMaxRequestsPerMinute   int
	OrgMaxTokensPerMinute     int
	ActorMaxRequestsPerMinute int
	ActorMaxTokensPerMinute   int
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env if present (repo root or working dir)
	_ = godotenv.Load(".env")

	defaults := governor.DefaultOptions()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "127.0.0.1"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Governor: GovernorConfig{
			LeaseTTL:                  getEnvAsDuration("LEASE_TTL", defaults.LeaseTTL),
			MaxInFlight:               getEnvAsInt("MAX_IN_FLIGHT", defaults.MaxInFlight),
			DailyBudgetCents:          getEnvAsInt("DAILY_BUDGET_CENTS", defaults.DailyBudgetCents),
			MaxRequestsPerMinute:      getEnvAsInt("MAX_REQUESTS_PER_MINUTE", defaults.MaxRequestsPerMinute),
			MaxTokensPerMinute:        getEnvAsInt("MAX_TOKENS_PER_MINUTE", defaults.MaxTokensPerMinute),
			MaxContextTokens:          getEnvAsInt("MAX_CONTEXT_TOKENS", defaults.MaxContextTokens),
			MaxRetrievedChunks:        getEnvAsInt("MAX_RETRIEVED_CHUNKS", defaults.MaxRetrievedChunks),
			MaxToolOutputTokens:       getEnvAsInt("MAX_TOOL_OUTPUT_TOKENS", defaults.MaxToolOutputTokens),
			MaxToolCallsPerLease:      getEnvAsInt("MAX_TOOL_CALLS_PER_LEASE", defaults.MaxToolCallsPerLease),
			MaxComputeUnits:           getEnvAsInt("MAX_COMPUTE_UNITS", defaults.MaxComputeUnits),
			RateWindow:                getEnvAsDuration("RATE_WINDOW", defaults.RateWindow),
			ReceiptThresholdCostCents: getEnvAsInt("RECEIPT_THRESHOLD_COST_CENTS", defaults.ReceiptThresholdCostCents),
			ReceiptSigningKey:         getEnv("RECEIPT_SIGNING_KEY", ""),
			RetryStormThreshold:       getEnvAsInt("RETRY_STORM_THRESHOLD", defaults.RetryStormThreshold),
			PolicyDenyThreshold:       getEnvAsInt("POLICY_DENY_THRESHOLD", defaults.PolicyDenyThreshold),
			ToolLoopThreshold:         getEnvAsInt("TOOL_LOOP_THRESHOLD", defaults.ToolLoopThreshold),
			CircuitBreakerDuration:    getEnvAsDuration("CIRCUIT_BREAKER_DURATION", defaults.CircuitBreakerDuration),
			ActorCooldownDuration:     getEnvAsDuration("ACTOR_COOLDOWN_DURATION", defaults.ActorCooldownDuration),
			ExpirySweepInterval:       getEnvAsDuration("EXPIRY_SWEEP_INTERVAL", defaults.ExpirySweepInterval),
		},
		Policy: PolicyConfig{
			FilePath:       getEnv("POLICY_FILE", ""),
			ReloadInterval: getEnvAsDuration("POLICY_RELOAD_INTERVAL", 0),
		},
		Audit: AuditConfig{
			Directory: getEnv("AUDIT_DIR", "audit"),
			QueueSize: getEnvAsInt("AUDIT_QUEUE_SIZE", 4096),
		},
		State: StateConfig{
			Path: getEnv("STATE_DB_PATH", ""),
		},
		Quota: QuotaConfig{
			Enabled:                   getEnvAsBool("QUOTA_ENABLED", false),
			OrgDailyBudgetCents:       getEnvAsInt("QUOTA_ORG_DAILY_BUDGET_CENTS", 0),
			MaxInFlightPerActor:       getEnvAsInt("QUOTA_MAX_IN_FLIGHT_PER_ACTOR", 0),
			OrgMaxRequestsPerMinute:   getEnvAsInt("QUOTA_ORG_MAX_REQUESTS_PER_MINUTE", 0),
			OrgMaxTokensPerMinute:     getEnvAsInt("QUOTA_ORG_MAX_TOKENS_PER_MINUTE", 0),
			ActorMaxRequestsPerMinute: getEnvAsInt("QUOTA_ACTOR_MAX_REQUESTS_PER_MINUTE", 0),
			ActorMaxTokensPerMinute:   getEnvAsInt("QUOTA_ACTOR_MAX_TOKENS_PER_MINUTE", 0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Governor.LeaseTTL <= 0 {
		return fmt.Errorf("lease TTL must be positive")
	}
	if c.Governor.MaxInFlight <= 0 {
		return fmt.Errorf("max in-flight must be positive")
	}
	if c.Governor.ExpirySweepInterval <= 0 {
		return fmt.Errorf("expiry sweep interval must be positive")
	}
	if c.IsProduction() && c.Governor.ReceiptSigningKey == "" {
		return fmt.Errorf("receipt signing key is required in production")
	}
	if c.Audit.Directory == "" {
		return fmt.Errorf("audit directory is required")
	}
	if c.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// GovernorOptions maps the config onto governor options.
func (c *Config) GovernorOptions() governor.Options {
	g := c.Governor
	return governor.Options{
		LeaseTTL:                  g.LeaseTTL,
		MaxInFlight:               g.MaxInFlight,
		DailyBudgetCents:          g.DailyBudgetCents,
		MaxRequestsPerMinute:      g.MaxRequestsPerMinute,
		MaxTokensPerMinute:        g.MaxTokensPerMinute,
		MaxContextTokens:          g.MaxContextTokens,
		MaxRetrievedChunks:        g.MaxRetrievedChunks,
		MaxToolOutputTokens:       g.MaxToolOutputTokens,
		MaxToolCallsPerLease:      g.MaxToolCallsPerLease,
		MaxComputeUnits:           g.MaxComputeUnits,
		RateWindow:                g.RateWindow,
		ReceiptThresholdCostCents: g.ReceiptThresholdCostCents,
		ReceiptSigningKey:         []byte(g.ReceiptSigningKey),
		RetryStormThreshold:       g.RetryStormThreshold,
		PolicyDenyThreshold:       g.PolicyDenyThreshold,
		ToolLoopThreshold:         g.ToolLoopThreshold,
		CircuitBreakerDuration:    g.CircuitBreakerDuration,
		ActorCooldownDuration:     g.ActorCooldownDuration,
		ExpirySweepInterval:       g.ExpirySweepInterval,
	}
}

// QuotaLimits maps the env scalars onto hub quota limits. Per-workspace and
// per-actor maps are layered on top from the policy file by the caller.
func (c *Config) QuotaLimits() quota.Limits {
	q := c.Quota
	return quota.Limits{
		OrgDailyBudgetCents:       q.OrgDailyBudgetCents,
		MaxInFlightPerActor:       q.MaxInFlightPerActor,
		OrgMaxRequestsPerMinute:   q.OrgMaxRequestsPerMinute,
		OrgMaxTokensPerMinute:     q.OrgMaxTokensPerMinute,
		ActorMaxRequestsPerMinute: q.ActorMaxRequestsPerMinute,
		ActorMaxTokensPerMinute:   q.ActorMaxTokensPerMinute,
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8090)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8090
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
