package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

// LoadRatePolicyFile reads a governor policy file. YAML and JSON are both
// accepted:
//
//	{"max_requests_per_second": 10, "max_wait_seconds": 120,
//	 "tools": {"webarchive_search_site": {"max_requests_per_second": 2}}}
//
// Keys absent from the file keep their configured values; keys present are
// taken as written, zero included.
func LoadRatePolicyFile(path string) (core.RatePolicyLayer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.RatePolicyLayer{}, fmt.Errorf("read rate limit file: %w", err)
	}

	var layer core.RatePolicyLayer
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return core.RatePolicyLayer{}, fmt.Errorf("parse rate limit file %s: %w", path, err)
	}
	return layer, nil
}

// resolveRatePolicy stacks the rate limit file on the inline values. Load
// seeds the inline values with viper defaults, so they are already complete.
func resolveRatePolicy(cfg RateLimitsConfig) (core.RatePolicy, error) {
	policy := cfg.RatePolicy
	if policy.Tools == nil {
		policy.Tools = map[string]core.PartialPolicy{}
	}

	if path := strings.TrimSpace(cfg.File); path != "" {
		fromFile, err := LoadRatePolicyFile(path)
		if err != nil {
			return core.RatePolicy{}, err
		}
		policy = policy.Merge(fromFile)
	}

	if err := policy.Validate(); err != nil {
		return core.RatePolicy{}, fmt.Errorf("invalid rate limits: %w", err)
	}
	return policy, nil
}
