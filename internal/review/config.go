package review

import "time"

// Config holds the review pipeline configuration
type Config struct {
	// Concurrency bounds the number of sources reviewing at once
	Concurrency int
	// Exclude drops matching files before review
	Exclude []string
	// ReviewTimeout bounds a whole run
	ReviewTimeout time.Duration
	// DryRun skips posting the review
	DryRun bool
}

// DefaultConfig returns the pipeline defaults
func DefaultConfig() Config {
	return Config{
		Concurrency:   4,
		ReviewTimeout: 10 * time.Minute,
	}
}
