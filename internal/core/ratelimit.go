package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// BucketKey identifies an independently governed request channel.
type BucketKey string

// GlobalBucket is shared by every tool.
const GlobalBucket BucketKey = "global"

// ToolBucket returns the bucket key for a tool.
func ToolBucket(tool string) BucketKey {
	return BucketKey("tool:" + strings.TrimSpace(tool))
}

// Default policy values.
const (
	DefaultMaxRequestsPerSecond = 10
	DefaultMaxWaitSeconds       = 120
)

// RatePolicy governs outbound archive requests.
type RatePolicy struct {
	MaxRequestsPerSecond float64                  `mapstructure:"max_requests_per_second" yaml:"max_requests_per_second" json:"max_requests_per_second"`
	HardLimit            *int                     `mapstructure:"hard_limit" yaml:"hard_limit,omitempty" json:"hard_limit,omitempty"`
	MaxWaitSeconds       float64                  `mapstructure:"max_wait_seconds" yaml:"max_wait_seconds" json:"max_wait_seconds"`
	Tools                map[string]PartialPolicy `mapstructure:"tools" yaml:"tools,omitempty" json:"tools,omitempty"`
}

// PartialPolicy overrides only the fields it sets.
type PartialPolicy struct {
	MaxRequestsPerSecond *float64 `mapstructure:"max_requests_per_second" yaml:"max_requests_per_second,omitempty" json:"max_requests_per_second,omitempty"`
	HardLimit            *int     `mapstructure:"hard_limit" yaml:"hard_limit,omitempty" json:"hard_limit,omitempty"`
	MaxWaitSeconds       *float64 `mapstructure:"max_wait_seconds" yaml:"max_wait_seconds,omitempty" json:"max_wait_seconds,omitempty"`
}

// BucketPolicy is a fully resolved policy for one bucket.
type BucketPolicy struct {
	MaxRequestsPerSecond float64
	HardLimit            int // 0 with HasHardLimit=false means unlimited
	HasHardLimit         bool
	MaxWait              time.Duration
}

// DefaultRatePolicy matches the limits used when no configuration exists.
func DefaultRatePolicy() RatePolicy {
	return RatePolicy{
		MaxRequestsPerSecond: DefaultMaxRequestsPerSecond,
		MaxWaitSeconds:       DefaultMaxWaitSeconds,
		Tools:                map[string]PartialPolicy{},
	}
}

// Validate checks the policy invariants.
func (p RatePolicy) Validate() error {
	if p.MaxRequestsPerSecond <= 0 {
		return fmt.Errorf("max_requests_per_second must be > 0, got %v", p.MaxRequestsPerSecond)
	}
	if p.HardLimit != nil && *p.HardLimit < 0 {
		return fmt.Errorf("hard_limit must be >= 0, got %d", *p.HardLimit)
	}
	if p.MaxWaitSeconds < 0 {
		return fmt.Errorf("max_wait_seconds must be >= 0, got %v", p.MaxWaitSeconds)
	}

	names := make([]string, 0, len(p.Tools))
	for name := range p.Tools {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		override := p.Tools[name]
		if override.MaxRequestsPerSecond != nil && *override.MaxRequestsPerSecond <= 0 {
			return fmt.Errorf("tools.%s.max_requests_per_second must be > 0", name)
		}
		if override.HardLimit != nil && *override.HardLimit < 0 {
			return fmt.Errorf("tools.%s.hard_limit must be >= 0", name)
		}
		if override.MaxWaitSeconds != nil && *override.MaxWaitSeconds < 0 {
			return fmt.Errorf("tools.%s.max_wait_seconds must be >= 0", name)
		}
	}
	return nil
}

// Global resolves the policy of the shared bucket.
func (p RatePolicy) Global() BucketPolicy {
	resolved := BucketPolicy{
		MaxRequestsPerSecond: p.MaxRequestsPerSecond,
		MaxWait:              secondsToDuration(p.MaxWaitSeconds),
	}
	if p.HardLimit != nil {
		resolved.HardLimit = *p.HardLimit
		resolved.HasHardLimit = true
	}
	return resolved
}

// ForTool resolves a tool's policy: exact tool override, then global.
func (p RatePolicy) ForTool(tool string) BucketPolicy {
	resolved := p.Global()

	override, ok := p.Tools[strings.TrimSpace(tool)]
	if !ok {
		return resolved
	}
	if override.MaxRequestsPerSecond != nil {
		resolved.MaxRequestsPerSecond = *override.MaxRequestsPerSecond
	}
	if override.HardLimit != nil {
		resolved.HardLimit = *override.HardLimit
		resolved.HasHardLimit = true
	}
	if override.MaxWaitSeconds != nil {
		resolved.MaxWait = secondsToDuration(*override.MaxWaitSeconds)
	}
	return resolved
}

// RatePolicyLayer is one policy source stacked on a resolved policy. Nil
// fields leave the value underneath unchanged, so an explicit zero survives.
type RatePolicyLayer struct {
	PartialPolicy `mapstructure:",squash" yaml:",inline"`
	Tools         map[string]PartialPolicy `mapstructure:"tools" yaml:"tools,omitempty" json:"tools,omitempty"`
}

// Merge returns p with every field set in layer applied on top.
func (p RatePolicy) Merge(layer RatePolicyLayer) RatePolicy {
	merged := p
	if layer.MaxRequestsPerSecond != nil {
		merged.MaxRequestsPerSecond = *layer.MaxRequestsPerSecond
	}
	if layer.HardLimit != nil {
		merged.HardLimit = layer.HardLimit
	}
	if layer.MaxWaitSeconds != nil {
		merged.MaxWaitSeconds = *layer.MaxWaitSeconds
	}

	merged.Tools = make(map[string]PartialPolicy, len(p.Tools)+len(layer.Tools))
	for name, override := range p.Tools {
		merged.Tools[name] = override
	}
	for name, override := range layer.Tools {
		merged.Tools[name] = override
	}
	return merged
}

// BucketStatus reports the live state of a bucket.
type BucketStatus struct {
	Bucket               BucketKey `json:"bucket"`
	MaxRequestsPerSecond float64   `json:"max_requests_per_second"`
	HardLimit            *int      `json:"hard_limit,omitempty"`
	MaxWaitSeconds       float64   `json:"max_wait_seconds"`
	Issued               int       `json:"issued"`
	CallsLastSecond      int       `json:"calls_last_second"`
}

// GovernorStatus is a point-in-time view of every bucket.
type GovernorStatus struct {
	Buckets []BucketStatus `json:"buckets"`
}

func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
