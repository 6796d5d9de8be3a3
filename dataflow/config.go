package dataflow

// Config bounds the worklist propagation (spec §4.5 "Path and depth
// bounds"). The zero value is unusable (every bound would be zero,
// stopping propagation immediately); callers should start from NewConfig.
type Config struct {
	// MaxIterations caps the fixed-point worklist loop. Default 1000.
	MaxIterations int
	// MaxPathLength truncates propagation along a branch once a token's
	// path reaches this many nodes. Default 50.
	MaxPathLength int
	// MaxContexts bounds the number of distinct (source, vuln-type-set)
	// token contexts tracked per node. Default 100.
	MaxContexts int
	// MinConfidenceThreshold discards flows below this confidence at
	// collection time. Default 30.
	MinConfidenceThreshold int
}

// NewConfig returns the spec's documented defaults.
func NewConfig() Config {
	return Config{
		MaxIterations:          1000,
		MaxPathLength:          50,
		MaxContexts:            100,
		MinConfidenceThreshold: 30,
	}
}
