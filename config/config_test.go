package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "127.0.0.1", cfg.Server.Host)
				assert.Equal(t, 8090, cfg.Server.Port)
				assert.Equal(t, 20*time.Second, cfg.Governor.LeaseTTL)
				assert.Equal(t, 4, cfg.Governor.MaxInFlight)
				assert.Equal(t, 500, cfg.Governor.DailyBudgetCents)
				assert.Equal(t, "audit", cfg.Audit.Directory)
				assert.Empty(t, cfg.State.Path)
				assert.False(t, cfg.Quota.Enabled)
			},
		},
		{
			name: "production configuration",
			envVars: map[string]string{
				"ENVIRONMENT":         "production",
				"SERVER_PORT":         "9000",
				"RECEIPT_SIGNING_KEY": "prod-receipt-key",
				"STATE_DB_PATH":       "/var/lib/leasegate/state.db",
				"POLICY_FILE":         "/etc/leasegate/policy.json",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.False(t, cfg.IsDevelopment())
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.Equal(t, "/var/lib/leasegate/state.db", cfg.State.Path)
				assert.Equal(t, "/etc/leasegate/policy.json", cfg.Policy.FilePath)
			},
		},
		{
			name: "custom governor limits",
			envVars: map[string]string{
				"LEASE_TTL":                "45s",
				"MAX_IN_FLIGHT":            "16",
				"DAILY_BUDGET_CENTS":       "2500",
				"MAX_TOKENS_PER_MINUTE":    "500000",
				"CIRCUIT_BREAKER_DURATION": "1m",
				"EXPIRY_SWEEP_INTERVAL":    "250ms",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 45*time.Second, cfg.Governor.LeaseTTL)
				assert.Equal(t, 16, cfg.Governor.MaxInFlight)
				assert.Equal(t, 2500, cfg.Governor.DailyBudgetCents)
				assert.Equal(t, 500_000, cfg.Governor.MaxTokensPerMinute)
				assert.Equal(t, time.Minute, cfg.Governor.CircuitBreakerDuration)
				assert.Equal(t, 250*time.Millisecond, cfg.Governor.ExpirySweepInterval)
			},
		},
		{
			name: "custom server timeouts",
			envVars: map[string]string{
				"SERVER_READ_TIMEOUT":     "60s",
				"SERVER_WRITE_TIMEOUT":    "90s",
				"SERVER_SHUTDOWN_TIMEOUT": "5s",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
			},
		},
		{
			name: "quota configuration",
			envVars: map[string]string{
				"QUOTA_ENABLED":                       "true",
				"QUOTA_ORG_DAILY_BUDGET_CENTS":        "10000",
				"QUOTA_MAX_IN_FLIGHT_PER_ACTOR":       "3",
				"QUOTA_ORG_MAX_REQUESTS_PER_MINUTE":   "600",
				"QUOTA_ACTOR_MAX_REQUESTS_PER_MINUTE": "60",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Quota.Enabled)
				limits := cfg.QuotaLimits()
				assert.Equal(t, 10000, limits.OrgDailyBudgetCents)
				assert.Equal(t, 3, limits.MaxInFlightPerActor)
				assert.Equal(t, 600, limits.OrgMaxRequestsPerMinute)
				assert.Equal(t, 60, limits.ActorMaxRequestsPerMinute)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
				"PORT":        "9443",
				"SERVER_PORT": "9000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "invalid duration falls back to default",
			envVars: map[string]string{
				"LEASE_TTL": "not-a-duration",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 20*time.Second, cfg.Governor.LeaseTTL)
			},
		},
		{
			name: "production without receipt signing key",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment: "development",
			LogLevel:    "info",
			Server:      ServerConfig{Host: "127.0.0.1", Port: 8090},
			Governor: GovernorConfig{
				LeaseTTL:            20 * time.Second,
				MaxInFlight:         4,
				ExpirySweepInterval: time.Second,
			},
			Audit: AuditConfig{Directory: "audit"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "zero lease TTL",
			mutate:  func(c *Config) { c.Governor.LeaseTTL = 0 },
			wantErr: "lease TTL",
		},
		{
			name:    "zero max in-flight",
			mutate:  func(c *Config) { c.Governor.MaxInFlight = 0 },
			wantErr: "max in-flight",
		},
		{
			name:    "zero sweep interval",
			mutate:  func(c *Config) { c.Governor.ExpirySweepInterval = 0 },
			wantErr: "sweep interval",
		},
		{
			name:    "missing audit directory",
			mutate:  func(c *Config) { c.Audit.Directory = "" },
			wantErr: "audit directory",
		},
		{
			name:    "missing log level",
			mutate:  func(c *Config) { c.LogLevel = "" },
			wantErr: "log level",
		},
		{
			name:    "production requires receipt key",
			mutate:  func(c *Config) { c.Environment = "production" },
			wantErr: "receipt signing key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGovernorOptionsMapping(t *testing.T) {
	os.Clearenv()
	os.Setenv("MAX_IN_FLIGHT", "7")
	os.Setenv("RECEIPT_SIGNING_KEY", "hub-secret")

	cfg, err := New(context.Background())
	require.NoError(t, err)

	opts := cfg.GovernorOptions()
	assert.Equal(t, 7, opts.MaxInFlight)
	assert.Equal(t, []byte("hub-secret"), opts.ReceiptSigningKey)
	assert.Equal(t, cfg.Governor.LeaseTTL, opts.LeaseTTL)
}

func TestServerConfig_Address(t *testing.T) {
	server := ServerConfig{Host: "0.0.0.0", Port: 8090}
	assert.Equal(t, "0.0.0.0:8090", server.Address())
}
