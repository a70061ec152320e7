package settings

import "time"

// Plan allowances and pipeline defaults.
const (
	// TrialCreditLimit is the credit allowance granted at registration.
	TrialCreditLimit = 50.0
	// TrialPeriod is how long trial credits last before reset is due.
	TrialPeriod = 7 * 24 * time.Hour
	// ProCreditLimit is the monthly credit allowance on the Pro plan.
	ProCreditLimit = 500.0
	// TeamsCreditLimit is the monthly credit allowance on the Teams plan.
	TeamsCreditLimit = 500.0

	// ApproachingThreshold is the usage ratio that triggers the early credit alert.
	ApproachingThreshold = 0.8
	// ApproachingThresholdCeiling bounds the early-alert band.
	ApproachingThresholdCeiling = 0.9

	// DefaultContextWindow is how many prior messages feed an AI reply.
	DefaultContextWindow = 20
	// DefaultProviderTimeout bounds a single provider completion call.
	DefaultProviderTimeout = 60 * time.Second
	// DefaultMessageRateLimit caps message sends per user per second (0 disables).
	DefaultMessageRateLimit = 5
	// TransactionPageSize is how many ledger transactions list endpoints return.
	TransactionPageSize = 10
)
