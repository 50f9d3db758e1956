package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

// Listing limits.
const (
	DefaultListLimit   = 20
	MaxListLimit       = 50
	DefaultSearchLimit = 30
	MaxSearchLimit     = 100

	// DefaultSearchRowBudget bounds the rows read per host for a path search.
	DefaultSearchRowBudget = 5000

	yearRowLimit  = 400
	startRowLimit = 50
)

// archiveEpoch precedes the earliest Wayback capture; open ranges start here.
var archiveEpoch = time.Date(1996, time.January, 1, 0, 0, 0, 0, time.UTC)

// Archive is the upstream the service reads from.
type Archive interface {
	FetchNearest(ctx context.Context, tool, target string, onOrBefore time.Time) (*core.Snapshot, error)
	ListRange(ctx context.Context, tool string, q core.RangeQuery) ([]core.Snapshot, error)
	FetchContent(ctx context.Context, tool string, snap core.Snapshot) (*core.Page, error)
}

// Service implements the snapshot tools. Every operation takes the cutoff
// of the invocation in its request and never reads the clock.
type Service struct {
	Archive         Archive
	Diagnostics     *DiagnosticsBuilder
	SearchRowBudget int
}

// NewService wires a service over archive.
func NewService(archive Archive) *Service {
	return &Service{
		Archive:         archive,
		Diagnostics:     &DiagnosticsBuilder{Archive: archive},
		SearchRowBudget: DefaultSearchRowBudget,
	}
}

// GetArchivedSnapshot returns the content of the latest capture on or before
// the target date, clamped to the cutoff.
func (s *Service) GetArchivedSnapshot(ctx context.Context, req core.SnapshotRequest) (*core.SnapshotResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.TargetDate) == "" {
		return nil, core.InvalidDate("target_date", req.TargetDate, "target_date is required (YYYY-MM-DD)")
	}
	target, err := core.ParseDate("target_date", req.TargetDate)
	if err != nil {
		return nil, err
	}
	variants, err := core.ExpandURL(req.URL)
	if err != nil {
		return nil, err
	}

	effective := core.Clamp(target, req.Cutoff)
	bound := core.CutoffContext{Date: effective, Source: req.Cutoff.Source}

	result := &core.SnapshotResult{
		URL:        req.URL,
		TargetDate: effective.Format(core.DateLayout),
	}

	for _, variant := range variants {
		result.TriedVariants = append(result.TriedVariants, variant)

		snap, err := s.Archive.FetchNearest(ctx, core.ToolGetSnapshot, variant, effective)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !bound.Allows(snap.Timestamp) {
			continue
		}

		page, err := s.Archive.FetchContent(ctx, core.ToolGetSnapshot, *snap)
		if err != nil {
			return nil, err
		}
		// The archive may redirect to a neighbouring capture.
		if !page.CaptureTime.IsZero() && !req.Cutoff.Allows(page.CaptureTime) {
			continue
		}

		captured := snap.Timestamp
		if !page.CaptureTime.IsZero() {
			captured = page.CaptureTime
		}
		result.Found = true
		result.MatchedURL = variant
		result.CaptureDate = captured.Format(core.DateLayout)
		result.ArchiveURL = snap.ArchiveURL
		result.Content = page.Content
		result.Truncated = page.Truncated
		return result, nil
	}

	diag, err := s.diagnostics().Build(ctx, core.ToolGetSnapshot, req.URL, bound)
	if err != nil {
		return nil, err
	}
	result.Diagnostics = diag
	return result, nil
}

// ListAvailableSnapshots lists captures in a date range or a set of years
// and applies the requested selection.
func (s *Service) ListAvailableSnapshots(ctx context.Context, req core.ListRequest) (*core.ListResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	pick, err := core.ParseSelectionPolicy(req.Pick)
	if err != nil {
		return nil, err
	}
	var target time.Time
	if strings.TrimSpace(req.TargetDate) != "" {
		parsed, err := core.ParseDate("target_date", req.TargetDate)
		if err != nil {
			return nil, err
		}
		target = core.Clamp(parsed, req.Cutoff)
	} else if pick == core.PickClosestToDate {
		return nil, core.InvalidArgument("pick %q requires target_date", pick)
	}

	variants, err := core.ExpandURL(req.URL)
	if err != nil {
		return nil, err
	}
	limit := clampLimit(req.Limit, DefaultListLimit, MaxListLimit)

	if len(req.Years) > 0 {
		return s.listYears(ctx, req, variants, pick, target, limit)
	}
	return s.listRange(ctx, req, variants, pick, target, limit)
}

func (s *Service) listRange(ctx context.Context, req core.ListRequest, variants []string, pick core.SelectionPolicy, target time.Time, limit int) (*core.ListResult, error) {
	var start time.Time
	if strings.TrimSpace(req.StartDate) != "" {
		parsed, err := core.ParseDate("start_date", req.StartDate)
		if err != nil {
			return nil, err
		}
		start = parsed
	}

	end := req.Cutoff.Date
	if strings.TrimSpace(req.EndDate) != "" {
		parsed, err := core.ParseDate("end_date", req.EndDate)
		if err != nil {
			return nil, err
		}
		if !start.IsZero() && parsed.Before(start) {
			return nil, core.InvalidDate("end_date", req.EndDate, "end_date is before start_date")
		}
		end = core.Clamp(parsed, req.Cutoff)
	}

	bound := core.CutoffContext{Date: end, Source: req.Cutoff.Source}
	result := &core.ListResult{
		URL:       req.URL,
		DateRange: &core.DateRange{End: end.Format(core.DateLayout)},
		Snapshots: []core.SnapshotEntry{},
	}
	if !start.IsZero() {
		result.DateRange.Start = start.Format(core.DateLayout)
	}

	// A start after the clamped end is empty rather than invalid, so the
	// response does not reveal where the boundary lies.
	if !start.IsZero() && start.After(end) {
		result.TriedVariants = variants
		diag, err := s.diagnostics().Build(ctx, core.ToolListSnapshots, req.URL, bound)
		if err != nil {
			return nil, err
		}
		result.Diagnostics = diag
		return result, nil
	}

	query := core.RangeQuery{From: start, To: end, Collapse: "timestamp:8", Limit: rowLimit(pick, limit, start, end)}
	var found []core.Snapshot
	for _, variant := range variants {
		result.TriedVariants = append(result.TriedVariants, variant)
		query.URL = variant

		snaps, err := s.Archive.ListRange(ctx, core.ToolListSnapshots, query)
		if err != nil {
			return nil, err
		}
		snaps = core.Filter(snaps, bound)
		if !start.IsZero() {
			snaps = dropBefore(snaps, start)
		}
		if len(snaps) > 0 {
			found = snaps
			result.MatchedURL = variant
			break
		}
	}

	if len(found) == 0 {
		diag, err := s.diagnostics().Build(ctx, core.ToolListSnapshots, req.URL, bound)
		if err != nil {
			return nil, err
		}
		result.Diagnostics = diag
		return result, nil
	}

	selected := core.Select(found, pick, target, bound)
	result.TotalFound = len(selected)
	result.Snapshots = entries(mostRecent(selected, limit))
	return result, nil
}

type yearListing struct {
	matched string
	snaps   []core.Snapshot
}

func (s *Service) listYears(ctx context.Context, req core.ListRequest, variants []string, pick core.SelectionPolicy, target time.Time, limit int) (*core.ListResult, error) {
	ranges := core.PruneYears(req.Years, req.Cutoff)

	result := &core.ListResult{
		URL:          req.URL,
		YearsQueried: make([]int, 0, len(ranges)),
		Snapshots:    []core.SnapshotEntry{},
	}
	for _, r := range ranges {
		result.YearsQueried = append(result.YearsQueried, r.Year)
	}

	listings := make([]yearListing, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		g.Go(func() error {
			bound := core.CutoffContext{Date: r.To, Source: req.Cutoff.Source}
			for _, variant := range variants {
				snaps, err := s.Archive.ListRange(gctx, core.ToolListSnapshots, core.RangeQuery{
					URL:      variant,
					From:     r.From,
					To:       r.To,
					Collapse: "timestamp:8",
					Limit:    -yearRowLimit,
				})
				if err != nil {
					return err
				}
				snaps = dropBefore(core.Filter(snaps, bound), r.From)
				if len(snaps) > 0 {
					listings[i] = yearListing{matched: variant, snaps: snaps}
					return nil
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []core.Snapshot
	for _, l := range listings {
		if len(l.snaps) == 0 {
			continue
		}
		if result.MatchedURL == "" {
			result.MatchedURL = l.matched
		}
		all = append(all, l.snaps...)
	}

	if len(all) == 0 {
		result.TriedVariants = variants
		diag, err := s.diagnostics().Build(ctx, core.ToolListSnapshots, req.URL, req.Cutoff)
		if err != nil {
			return nil, err
		}
		result.Diagnostics = diag
		return result, nil
	}

	selected := core.Select(all, pick, target, req.Cutoff)
	result.TotalFound = len(selected)
	result.SnapshotsByYear = make(map[string][]core.SnapshotEntry)
	for _, snap := range selected {
		year := strconv.Itoa(snap.Timestamp.UTC().Year())
		result.SnapshotsByYear[year] = append(result.SnapshotsByYear[year], snap.Entry())
	}
	result.Snapshots = entries(mostRecent(selected, limit))
	return result, nil
}

// SearchSiteArchives discovers archived paths on a domain and its www form.
func (s *Service) SearchSiteArchives(ctx context.Context, req core.SearchRequest) (*core.SearchResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	target, err := core.ParseTarget(req.Domain)
	if err != nil {
		return nil, err
	}
	domain := target.Host
	limit := clampLimit(req.Limit, DefaultSearchLimit, MaxSearchLimit)

	pattern := normalizePattern(req.PathPattern)
	var matcher *regexp.Regexp
	var filter string
	if pattern != "" {
		filter = globToRegex(pattern)
		matcher, err = regexp.Compile("^" + filter + "$")
		if err != nil {
			return nil, core.InvalidArgument("path_pattern %q: %v", req.PathPattern, err)
		}
	}

	budget := s.SearchRowBudget
	if budget <= 0 {
		budget = DefaultSearchRowBudget
	}

	hosts := []string{domain, core.AlternateHost(domain)}
	found := make(map[string]core.SiteArchivePath)
	latest := make(map[string]time.Time)

	for _, host := range hosts {
		snaps, err := s.Archive.ListRange(ctx, core.ToolSearchSite, core.RangeQuery{
			URL:             host + "/*",
			To:              req.Cutoff.Date,
			Limit:           -budget,
			OriginalPattern: filter,
		})
		if err != nil {
			return nil, err
		}

		for _, snap := range core.Filter(snaps, req.Cutoff) {
			if matcher != nil && !matcher.MatchString(snap.Original) {
				continue
			}
			u, err := url.Parse(withScheme(snap.Original))
			if err != nil {
				continue
			}
			p := u.Path
			if p == "" {
				p = "/"
			}
			key := strings.TrimRight(strings.ToLower(p), "/")
			if key == "" {
				key = "/"
			}
			if seen, ok := latest[key]; ok && !snap.Timestamp.After(seen) {
				continue
			}
			latest[key] = snap.Timestamp
			found[key] = core.SiteArchivePath{
				Path:         p,
				FullURL:      snap.Original,
				Host:         u.Hostname(),
				LastCaptured: snap.CaptureDate(),
				ArchiveURL:   snap.ArchiveURL,
			}
		}
	}

	paths := make([]core.SiteArchivePath, 0, len(found))
	for _, p := range found {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Path != paths[j].Path {
			return paths[i].Path < paths[j].Path
		}
		return paths[i].Host < paths[j].Host
	})

	result := &core.SearchResult{
		Domain:          domain,
		DomainsSearched: hosts,
		PathPattern:     pattern,
		TotalFound:      len(paths),
		Paths:           paths,
	}
	if len(paths) > limit {
		result.Paths = paths[:limit]
	}

	if len(paths) == 0 {
		msg := fmt.Sprintf("No archived pages found for domain '%s'", domain)
		if pattern != "" {
			msg += fmt.Sprintf(" matching pattern '%s'", pattern)
		}
		result.Message = msg + fmt.Sprintf(" on or before %s.", req.Cutoff)
		result.Hints = []string{
			"Try a different domain variant (www vs non-www)",
			"Try a broader path pattern",
			"The site may not be well-archived in the Wayback Machine",
		}
	}
	return result, nil
}

func (s *Service) ready() error {
	if s == nil || s.Archive == nil {
		return errors.New("snapshot service is not configured")
	}
	return nil
}

func (s *Service) diagnostics() *DiagnosticsBuilder {
	if s.Diagnostics != nil {
		return s.Diagnostics
	}
	return &DiagnosticsBuilder{Archive: s.Archive}
}

// normalizePattern wraps bare keywords in wildcards: "team" -> "*team*".
func normalizePattern(raw string) string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "*") && !strings.HasPrefix(p, "/") {
		p = "*" + p
	}
	if !strings.HasSuffix(p, "*") {
		p += "*"
	}
	return p
}

// globToRegex turns a path glob into a regular expression over the full
// captured URL. A leading "/" anchors the glob at the start of the path.
func globToRegex(glob string) string {
	var b strings.Builder
	if strings.HasPrefix(glob, "/") {
		b.WriteString(`[^/]*//[^/]+`)
	}
	for i, part := range strings.Split(glob, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	return b.String()
}

// rowLimit sizes a daily-collapsed range listing. Bucketed and targeted
// picks read one row per calendar day in the range so early months are not
// cut off by the most-recent bound.
func rowLimit(pick core.SelectionPolicy, limit int, start, end time.Time) int {
	switch pick {
	case core.PickNone, core.PickClosestToEnd:
		return -limit
	case core.PickClosestToStart:
		return startRowLimit
	default:
		return -daySpan(start, end)
	}
}

func daySpan(start, end time.Time) int {
	if start.IsZero() || start.Before(archiveEpoch) {
		start = archiveEpoch
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

func clampLimit(limit, def, upper int) int {
	if limit == 0 {
		return def
	}
	if limit < 1 {
		return 1
	}
	if limit > upper {
		return upper
	}
	return limit
}

func dropBefore(snaps []core.Snapshot, start time.Time) []core.Snapshot {
	out := snaps[:0:0]
	for _, snap := range snaps {
		if !snap.Timestamp.Before(start) {
			out = append(out, snap)
		}
	}
	return out
}

// mostRecent keeps the last n entries of an ascending slice.
func mostRecent(snaps []core.Snapshot, n int) []core.Snapshot {
	if len(snaps) > n {
		return snaps[len(snaps)-n:]
	}
	return snaps
}

func entries(snaps []core.Snapshot) []core.SnapshotEntry {
	out := make([]core.SnapshotEntry, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snap.Entry())
	}
	return out
}

func withScheme(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	return "http://" + raw
}
