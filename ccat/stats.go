package ccat

// Stats carries cheap per-instance counters. Snapshot via Codec.Stats.
type Stats struct {
	OriginalsSent      uint64
	RecoveriesSent     uint64
	OriginalsReceived  uint64
	RecoveriesReceived uint64

	// RecoveriesDiscarded counts received recovery packets dropped for
	// malformed headers or spans outside the live window.
	RecoveriesDiscarded uint64

	// PacketsRecovered counts originals delivered through the callback.
	PacketsRecovered uint64

	// Peels counts single-unknown resolutions.
	Peels uint64

	// SolveAttempts and SolveFailures count full Gaussian eliminations and
	// the ones abandoned for insufficient rank or an invalid recovered
	// length prefix.
	SolveAttempts uint64
	SolveFailures uint64

	// PendingRowsEvicted counts recovery rows pushed out of a full pending
	// set by newer arrivals.
	PendingRowsEvicted uint64
}
