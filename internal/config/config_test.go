package config

import "testing"

func baseConfig() *Config {
	return &Config{
		Probing: ProbingConfig{
			MaxThreads:      16,
			NbIPIDs:         4,
			TimeoutMillis:   1000,
			UDPPortRangeLow: 49152,
			UDPPortRangeHi:  65535,
		},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	if err := baseConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

// spec.md §9's open question: maxThreads < nbIPIDs+1 must be rejected at
// startup rather than silently degenerating into a zero-sized worker pool.
func TestValidateRejectsMaxThreadsBelowNbIPIDsPlusOne(t *testing.T) {
	cfg := baseConfig()
	cfg.Probing.MaxThreads = 3
	cfg.Probing.NbIPIDs = 4
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want an error for max_threads < nb_ip_ids+1")
	}
}

func TestValidateRejectsZeroMaxThreads(t *testing.T) {
	cfg := baseConfig()
	cfg.Probing.MaxThreads = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want an error for zero max_threads")
	}
}

func TestValidateRejectsEmptyPortRange(t *testing.T) {
	cfg := baseConfig()
	cfg.Probing.UDPPortRangeLow = 50000
	cfg.Probing.UDPPortRangeHi = 50000
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want an error for an empty port range")
	}
}
