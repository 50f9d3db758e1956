package core

import (
	"sort"
	"strings"
	"time"
)

// SelectionPolicy picks a subset of a snapshot list.
type SelectionPolicy string

const (
	PickNone           SelectionPolicy = ""
	PickClosestToEnd   SelectionPolicy = "closest_to_end"
	PickClosestToStart SelectionPolicy = "closest_to_start"
	PickClosestToDate  SelectionPolicy = "closest_to_date"
	PickMonthly        SelectionPolicy = "monthly"
	PickYearly         SelectionPolicy = "yearly"
)

// SelectionPolicies lists every named policy.
var SelectionPolicies = []SelectionPolicy{
	PickClosestToEnd,
	PickClosestToStart,
	PickClosestToDate,
	PickMonthly,
	PickYearly,
}

// ParseSelectionPolicy validates a pick name. Empty means no selection.
func ParseSelectionPolicy(raw string) (SelectionPolicy, error) {
	name := SelectionPolicy(strings.ToLower(strings.TrimSpace(raw)))
	if name == PickNone {
		return PickNone, nil
	}
	for _, p := range SelectionPolicies {
		if p == name {
			return p, nil
		}
	}
	return PickNone, InvalidArgument("unknown pick %q", raw)
}

// SortSnapshots orders snapshots by capture time, oldest first.
func SortSnapshots(snaps []Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.Before(snaps[j].Timestamp)
	})
}

// Select applies policy to snaps. The input is filtered by cutoff and sorted
// first, so no policy can return a capture past the boundary. target is only
// read by closest_to_date.
func Select(snaps []Snapshot, policy SelectionPolicy, target time.Time, cutoff CutoffContext) []Snapshot {
	candidates := Filter(snaps, cutoff)
	if len(candidates) == 0 {
		return []Snapshot{}
	}
	SortSnapshots(candidates)

	switch policy {
	case PickClosestToEnd:
		return candidates[len(candidates)-1:]
	case PickClosestToStart:
		return candidates[:1]
	case PickClosestToDate:
		return []Snapshot{closestTo(candidates, target)}
	case PickMonthly:
		return latestPerBucket(candidates, func(t time.Time) string { return t.Format("2006-01") })
	case PickYearly:
		return latestPerBucket(candidates, func(t time.Time) string { return t.Format("2006") })
	default:
		return candidates
	}
}

// closestTo keeps the first minimum, which is the earlier snapshot on ties
// because candidates are ascending.
func closestTo(candidates []Snapshot, target time.Time) Snapshot {
	best := candidates[0]
	bestDist := absDuration(best.Timestamp.Sub(target))
	for _, snap := range candidates[1:] {
		dist := absDuration(snap.Timestamp.Sub(target))
		if dist < bestDist {
			best, bestDist = snap, dist
		}
	}
	return best
}

func latestPerBucket(candidates []Snapshot, key func(time.Time) string) []Snapshot {
	var out []Snapshot
	for _, snap := range candidates {
		bucket := key(snap.Timestamp.UTC())
		snap.Bucket = bucket
		if n := len(out); n > 0 && out[n-1].Bucket == bucket {
			out[n-1] = snap
			continue
		}
		out = append(out, snap)
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
