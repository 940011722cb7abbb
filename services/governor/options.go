package governor

import "time"

// Options bound every pool the governor runs. The zero value is unusable;
// start from DefaultOptions and override.
type Options struct {
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

	// ReceiptSigningKey signs settlement receipts (HS256). Receipts go out
	// unsigned when empty.
	ReceiptSigningKey []byte

	// Safety automation thresholds and the sanctions they trigger.
	RetryStormThreshold    int
	PolicyDenyThreshold    int
	ToolLoopThreshold      int
	CircuitBreakerDuration time.Duration
	ActorCooldownDuration  time.Duration

	ExpirySweepInterval time.Duration
}

// DefaultOptions returns the stock single-node limits.
func DefaultOptions() Options {
	return Options{
		LeaseTTL:                  20 * time.Second,
		MaxInFlight:               4,
		DailyBudgetCents:          500,
		MaxRequestsPerMinute:      120,
		MaxTokensPerMinute:        250_000,
		MaxContextTokens:          16_000,
		MaxRetrievedChunks:        40,
		MaxToolOutputTokens:       4_000,
		MaxToolCallsPerLease:      6,
		MaxComputeUnits:           8,
		RateWindow:                time.Minute,
		ReceiptThresholdCostCents: 50,
		RetryStormThreshold:       5,
		PolicyDenyThreshold:       10,
		ToolLoopThreshold:         4,
		CircuitBreakerDuration:    30 * time.Second,
		ActorCooldownDuration:     10 * time.Second,
		ExpirySweepInterval:       time.Second,
	}
}
