package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
	"github.com/chestnutforty/mcp-webarchive/internal/metrics"
)

// Grant is returned for a permitted request.
type Grant struct {
	Waited time.Duration
}

// Governor throttles outbound archive requests per bucket. Every request
// charges the global bucket and the calling tool's bucket.
type Governor struct {
	Policy core.RatePolicy
	Clock  func() time.Time
	Sleep  func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	buckets map[core.BucketKey]*bucket
}

type bucket struct {
	key     core.BucketKey
	policy  core.BucketPolicy
	limiter *rate.Limiter

	mu     sync.Mutex
	issued int
	recent []time.Time
}

type pending struct {
	bucket      *bucket
	reservation *rate.Reservation
}

// NewGovernor builds a governor for policy.
func NewGovernor(policy core.RatePolicy) *Governor {
	return &Governor{Policy: policy}
}

// Acquire blocks until a request for tool may be sent. It fails with
// core.ErrHardLimitReached without waiting when a lifetime cap is used up,
// and with core.ErrRateLimitExceeded when compliance needs a longer wait than
// the tool's max wait. A cancelled ctx leaves no trace in the buckets.
func (g *Governor) Acquire(ctx context.Context, tool string) (Grant, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Grant{}, err
	}

	toolPolicy := g.Policy.ForTool(tool)
	chain := []*bucket{
		g.bucket(core.GlobalBucket, g.Policy.Global()),
		g.bucket(core.ToolBucket(tool), toolPolicy),
	}

	now := g.now()
	reserved := make([]pending, 0, len(chain))
	var delay time.Duration

	for _, b := range chain {
		r, err := b.reserve(now)
		if err != nil {
			rollback(reserved, now)
			metrics.RecordGovernorDecision(string(b.key), "hard_limit", 0)
			return Grant{}, err
		}
		reserved = append(reserved, pending{bucket: b, reservation: r})
		if d := r.DelayFrom(now); d > delay {
			delay = d
		}
	}

	if delay > toolPolicy.MaxWait {
		rollback(reserved, now)
		metrics.RecordGovernorDecision(string(core.ToolBucket(tool)), "rejected", delay)
		return Grant{}, &core.RateLimitError{
			Bucket:  core.ToolBucket(tool),
			Wait:    delay,
			MaxWait: toolPolicy.MaxWait,
		}
	}

	if delay > 0 {
		if err := g.sleep(ctx, delay); err != nil {
			rollback(reserved, now)
			metrics.RecordGovernorDecision(string(core.ToolBucket(tool)), "cancelled", 0)
			return Grant{}, err
		}
	}

	issuedAt := now.Add(delay)
	for _, p := range reserved {
		p.bucket.record(issuedAt)
	}
	metrics.RecordGovernorDecision(string(core.ToolBucket(tool)), "granted", delay)
	return Grant{Waited: delay}, nil
}

// Status reports every bucket seen so far plus the global bucket.
func (g *Governor) Status() core.GovernorStatus {
	g.bucket(core.GlobalBucket, g.Policy.Global())

	g.mu.Lock()
	all := make([]*bucket, 0, len(g.buckets))
	for _, b := range g.buckets {
		all = append(all, b)
	}
	g.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].key < all[j].key })

	now := g.now()
	status := core.GovernorStatus{Buckets: make([]core.BucketStatus, 0, len(all))}
	for _, b := range all {
		status.Buckets = append(status.Buckets, b.status(now))
	}
	return status
}

func (g *Governor) bucket(key core.BucketKey, policy core.BucketPolicy) *bucket {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.buckets == nil {
		g.buckets = make(map[core.BucketKey]*bucket)
	}
	if b, ok := g.buckets[key]; ok {
		return b
	}
	b := &bucket{
		key:     key,
		policy:  policy,
		limiter: rate.NewLimiter(rate.Limit(policy.MaxRequestsPerSecond), 1),
	}
	g.buckets[key] = b
	return b
}

func (g *Governor) now() time.Time {
	if g != nil && g.Clock != nil {
		return g.Clock()
	}
	return time.Now().UTC()
}

func (g *Governor) sleep(ctx context.Context, d time.Duration) error {
	if g.Sleep != nil {
		return g.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (b *bucket) reserve(now time.Time) (*rate.Reservation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.policy.HasHardLimit && b.issued >= b.policy.HardLimit {
		return nil, &core.RateLimitError{
			Bucket:   b.key,
			Limit:    b.policy.HardLimit,
			HardStop: true,
		}
	}
	b.issued++
	return b.limiter.ReserveN(now, 1), nil
}

func (b *bucket) release(r *rate.Reservation, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.issued--
	r.CancelAt(now)
}

func (b *bucket) record(at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recent = append(pruneRecent(b.recent, at), at)
}

func (b *bucket) status(now time.Time) core.BucketStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recent = pruneRecent(b.recent, now)
	s := core.BucketStatus{
		Bucket:               b.key,
		MaxRequestsPerSecond: b.policy.MaxRequestsPerSecond,
		MaxWaitSeconds:       b.policy.MaxWait.Seconds(),
		Issued:               b.issued,
		CallsLastSecond:      len(b.recent),
	}
	if b.policy.HasHardLimit {
		limit := b.policy.HardLimit
		s.HardLimit = &limit
	}
	return s
}

func rollback(reserved []pending, now time.Time) {
	for i := len(reserved) - 1; i >= 0; i-- {
		reserved[i].bucket.release(reserved[i].reservation, now)
	}
}

// pruneRecent keeps instants within the second before now.
func pruneRecent(recent []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-time.Second)
	i := 0
	for i < len(recent) && !recent[i].After(cutoff) {
		i++
	}
	return recent[i:]
}
