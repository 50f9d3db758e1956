package engine

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

const (
	diagnosticsRowBudget = 2000
	maxSamplePaths      = 10
	maxHintPaths        = 5
)

// DiagnosticsBuilder explains empty results from what the archive holds for
// the surrounding domain.
type DiagnosticsBuilder struct {
	Archive Archive
}

type observedPath struct {
	path string
	last time.Time
}

// Build lists captures of the bare host and its www form up to the cutoff
// and derives a reason, hints and sample paths. Rows are read uncollapsed so
// each path reports its latest capture, not its first. Nothing past the cutoff is
// ever reported and every suggested path was observed in the listing.
func (d *DiagnosticsBuilder) Build(ctx context.Context, tool, rawURL string, cutoff core.CutoffContext) (*core.Diagnostics, error) {
	host, path, err := core.SplitHostPath(rawURL)
	if err != nil {
		return nil, err
	}

	bare := strings.TrimPrefix(host, "www.")
	hosts := []string{bare, "www." + bare}

	latest := make(map[string]time.Time)
	for _, h := range hosts {
		snaps, err := d.Archive.ListRange(ctx, tool, core.RangeQuery{
			URL:   h + "/*",
			To:    cutoff.Date,
			Limit: diagnosticsRowBudget,
		})
		if err != nil {
			return nil, err
		}
		if len(snaps) >= diagnosticsRowBudget {
			snaps = dropPartialURL(snaps)
		}
		for _, snap := range core.Filter(snaps, cutoff) {
			p := pathOf(snap.Original)
			if seen, ok := latest[p]; !ok || snap.Timestamp.After(seen) {
				latest[p] = snap.Timestamp
			}
		}
	}

	observed := make([]observedPath, 0, len(latest))
	for p, ts := range latest {
		observed = append(observed, observedPath{path: p, last: ts})
	}
	sort.Slice(observed, func(i, j int) bool {
		if !observed[i].last.Equal(observed[j].last) {
			return observed[i].last.After(observed[j].last)
		}
		return observed[i].path < observed[j].path
	})
	if len(observed) > maxSamplePaths {
		observed = observed[:maxSamplePaths]
	}

	diag := &core.Diagnostics{
		Domain:              host,
		Path:                path,
		DomainHasCaptures:   len(observed) > 0,
		Hints:               []string{},
		SampleArchivedPaths: make([]core.ArchivedPath, 0, len(observed)),
	}
	for _, o := range observed {
		diag.SampleArchivedPaths = append(diag.SampleArchivedPaths, core.ArchivedPath{
			Path:         o.path,
			LastCaptured: o.last.Format(core.DateLayout),
		})
	}

	if !diag.DomainHasCaptures {
		diag.Reason = core.ReasonDomainNotArchived
		diag.Hints = append(diag.Hints,
			fmt.Sprintf("The domain '%s' has no captures on or before %s.", host, cutoff),
			fmt.Sprintf("Try the alternate host: %s", core.AlternateHost(host)),
		)
		return diag, nil
	}

	diag.Reason = core.ReasonPathNotArchived
	diag.Hints = append(diag.Hints, fmt.Sprintf("The path '%s' is not archived, but the domain has captures.", path))

	samples := make([]string, 0, len(observed))
	for _, o := range observed {
		samples = append(samples, o.path)
	}
	if matching := matchingPaths(path, samples); len(matching) > 0 {
		diag.Hints = append(diag.Hints, "Similar archived paths found: "+strings.Join(limitStrings(matching, maxHintPaths), ", "))
	} else {
		diag.Hints = append(diag.Hints, "Try one of these archived paths: "+strings.Join(limitStrings(samples, maxHintPaths), ", "))
	}
	return diag, nil
}

// dropPartialURL trims the trailing run of rows for the last URL of a listing
// that hit its row budget, since later captures of that URL were cut off.
// Prefix listings arrive in urlkey order, so the run is contiguous.
func dropPartialURL(snaps []core.Snapshot) []core.Snapshot {
	last := snaps[len(snaps)-1].Original
	i := len(snaps)
	for i > 0 && snaps[i-1].Original == last {
		i--
	}
	if i == 0 {
		return snaps
	}
	return snaps[:i]
}

// matchingPaths returns samples sharing a keyword with the requested path.
func matchingPaths(requested string, samples []string) []string {
	keywords := pathKeywords(requested)
	if len(keywords) == 0 {
		return nil
	}

	var out []string
	for _, s := range samples {
		lower := strings.ToLower(s)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func pathKeywords(p string) []string {
	parts := strings.FieldsFunc(strings.ToLower(p), func(r rune) bool {
		return r == '/' || r == '-' || r == '_' || r == '.'
	})
	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "html", "htm", "php", "asp", "aspx", "jsp", "index", "www":
			continue
		}
		if len(part) < 3 {
			continue
		}
		keywords = append(keywords, part)
	}
	return keywords
}

// pathOf extracts the path of a captured URL, "/" when empty.
func pathOf(original string) string {
	u, err := url.Parse(withScheme(original))
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

func limitStrings(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
