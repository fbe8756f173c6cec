// Package config holds the tunables a caller passes to
// Clusterer.ClusterSamples: a Default() plus environment-variable
// overrides via LoadFromEnv(). No config-file format is introduced
// here, only environment-variable overrides for the five clustering
// knobs this engine exposes.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/therealutkarshpriyadarshi/ocrcluster/pkg/prototype"
)

// ClusterConfig holds the parameters ClusterSamples must honor.
type ClusterConfig struct {
	// ProtoStyle selects which prototype shape(s) make_prototype tries.
	ProtoStyle prototype.Style

	// MinSamples is a fraction of num_char; the degenerate guard floors
	// at max(1, floor(MinSamples * num_char)).
	MinSamples float32

	// MaxIllegal is the fraction of repeated-identity samples a cluster
	// may contain before the multi-character filter rejects it.
	MaxIllegal float32

	// Independence is the correlation threshold the independence guard
	// compares against.
	Independence float32

	// Confidence is alpha, the chi-squared test's probability of a
	// false rejection.
	Confidence float64
}

// Default returns the configuration used by the engine's own tests and
// the demo entrypoint: Automatic style, a lenient multi-character
// tolerance, a conservative independence threshold, and a 1% false
// rejection rate.
func Default() ClusterConfig {
	return ClusterConfig{
		ProtoStyle:   prototype.Automatic,
		MinSamples:   0.05,
		MaxIllegal:   0.2,
		Independence: 0.5,
		Confidence:   0.01,
	}
}

// LoadFromEnv overlays environment-variable overrides onto Default()
// using the OCRCLUSTER_* prefixed names.
func LoadFromEnv() ClusterConfig {
	cfg := Default()

	if v := os.Getenv("OCRCLUSTER_MIN_SAMPLES"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.MinSamples = float32(f)
		}
	}
	if v := os.Getenv("OCRCLUSTER_MAX_ILLEGAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.MaxIllegal = float32(f)
		}
	}
	if v := os.Getenv("OCRCLUSTER_INDEPENDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Independence = float32(f)
		}
	}
	if v := os.Getenv("OCRCLUSTER_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Confidence = f
		}
	}
	if v := os.Getenv("OCRCLUSTER_PROTO_STYLE"); v != "" {
		switch v {
		case "spherical":
			cfg.ProtoStyle = prototype.Spherical
		case "elliptical":
			cfg.ProtoStyle = prototype.Elliptical
		case "mixed":
			cfg.ProtoStyle = prototype.Mixed
		case "automatic":
			cfg.ProtoStyle = prototype.Automatic
		}
	}

	return cfg
}

// Validate checks that a ClusterConfig's fractional parameters lie in
// the ranges documents.
func (c ClusterConfig) Validate() error {
	if c.MinSamples < 0 {
		return fmt.Errorf("invalid min samples fraction: %v (must be >= 0)", c.MinSamples)
	}
	if c.MaxIllegal < 0 || c.MaxIllegal > 1 {
		return fmt.Errorf("invalid max illegal fraction: %v (must be in [0,1])", c.MaxIllegal)
	}
	if c.Independence < 0 || c.Independence > 1 {
		return fmt.Errorf("invalid independence threshold: %v (must be in [0,1])", c.Independence)
	}
	if c.Confidence <= 0 || c.Confidence > 1 {
		return fmt.Errorf("invalid confidence: %v (must be in (0,1])", c.Confidence)
	}
	return nil
}
