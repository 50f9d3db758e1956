package core

import "time"

// Tool names exposed to the transport layer. They double as rate limit
// bucket names.
const (
	ToolGetSnapshot   = "webarchive_get_snapshot"
	ToolListSnapshots = "webarchive_list_snapshots"
	ToolSearchSite    = "webarchive_search_site"
)

// DateLayout is the calendar-date format used for every input and output date.
const DateLayout = "2006-01-02"

// WaybackTimestampLayout is the 14-digit capture timestamp used by the archive.
const WaybackTimestampLayout = "20060102150405"

// Snapshot is a single archived capture of a URL.
type Snapshot struct {
	Timestamp  time.Time `json:"-"`
	Original   string    `json:"original"`
	ArchiveURL string    `json:"archive_url"`

	// Bucket is set by monthly/yearly selection ("2024-03", "2024").
	Bucket string `json:"bucket,omitempty"`
}

// CaptureDate returns the capture timestamp as a calendar date.
func (s Snapshot) CaptureDate() string {
	return s.Timestamp.UTC().Format(DateLayout)
}

// WaybackTimestamp returns the capture timestamp in archive form.
func (s Snapshot) WaybackTimestamp() string {
	return s.Timestamp.UTC().Format(WaybackTimestampLayout)
}

// SnapshotEntry is the transport shape of a listed snapshot.
type SnapshotEntry struct {
	CaptureDate string `json:"capture_date"`
	Timestamp   string `json:"timestamp"`
	URL         string `json:"url"`
	ArchiveURL  string `json:"archive_url"`
	Bucket      string `json:"bucket,omitempty"`
}

// Entry converts a snapshot into its transport shape.
func (s Snapshot) Entry() SnapshotEntry {
	return SnapshotEntry{
		CaptureDate: s.CaptureDate(),
		Timestamp:   s.WaybackTimestamp(),
		URL:         s.Original,
		ArchiveURL:  s.ArchiveURL,
		Bucket:      s.Bucket,
	}
}

// Diagnostic reasons.
const (
	ReasonDomainNotArchived = "domain_not_archived"
	ReasonPathNotArchived   = "path_not_archived"
)

// ArchivedPath is an observed path on a domain with its latest capture.
type ArchivedPath struct {
	Path         string `json:"path"`
	LastCaptured string `json:"last_captured"`
}

// Diagnostics explains an empty result using data observed in the archive.
type Diagnostics struct {
	Domain              string         `json:"domain"`
	Path                string         `json:"path"`
	Reason              string         `json:"reason"`
	DomainHasCaptures   bool           `json:"domain_has_captures"`
	Hints               []string       `json:"hints"`
	SampleArchivedPaths []ArchivedPath `json:"sample_archived_paths"`
}

// SnapshotRequest holds get_archived_snapshot arguments.
type SnapshotRequest struct {
	URL        string
	TargetDate string
	Cutoff     CutoffContext
}

// SnapshotResult is returned by get_archived_snapshot.
type SnapshotResult struct {
	Found         bool         `json:"found"`
	URL           string       `json:"url"`
	MatchedURL    string       `json:"matched_url,omitempty"`
	TargetDate    string       `json:"target_date"`
	CaptureDate   string       `json:"capture_date,omitempty"`
	ArchiveURL    string       `json:"archive_url,omitempty"`
	Content       string       `json:"content,omitempty"`
	Truncated     bool         `json:"truncated,omitempty"`
	TriedVariants []string     `json:"tried_variants,omitempty"`
	Diagnostics   *Diagnostics `json:"diagnostics,omitempty"`
}

// ListRequest holds list_available_snapshots arguments.
type ListRequest struct {
	URL        string
	StartDate  string
	EndDate    string
	Years      []int
	Pick       string
	TargetDate string
	Limit      int
	Cutoff     CutoffContext
}

// DateRange is the effective range used for a listing.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end"`
}

// ListResult is returned by list_available_snapshots.
type ListResult struct {
	URL             string                     `json:"url"`
	MatchedURL      string                     `json:"matched_url,omitempty"`
	DateRange       *DateRange                 `json:"date_range,omitempty"`
	YearsQueried    []int                      `json:"years_queried,omitempty"`
	TotalFound      int                        `json:"total_found"`
	Snapshots       []SnapshotEntry            `json:"snapshots"`
	SnapshotsByYear map[string][]SnapshotEntry `json:"snapshots_by_year,omitempty"`
	TriedVariants   []string                   `json:"tried_variants,omitempty"`
	Diagnostics     *Diagnostics               `json:"diagnostics,omitempty"`
}

// SearchRequest holds search_site_archives arguments.
type SearchRequest struct {
	Domain      string
	PathPattern string
	Limit       int
	Cutoff      CutoffContext
}

// SiteArchivePath is one discovered path in a site search.
type SiteArchivePath struct {
	Path         string `json:"path"`
	FullURL      string `json:"full_url"`
	Host         string `json:"host"`
	LastCaptured string `json:"last_captured"`
	ArchiveURL   string `json:"archive_url"`
}

// SearchResult is returned by search_site_archives.
type SearchResult struct {
	Domain          string            `json:"domain"`
	DomainsSearched []string          `json:"domains_searched"`
	PathPattern     string            `json:"path_pattern,omitempty"`
	TotalFound      int               `json:"total_found"`
	Paths           []SiteArchivePath `json:"paths"`
	Message         string            `json:"message,omitempty"`
	Hints           []string          `json:"hints,omitempty"`
}

// RangeQuery describes one index listing. Zero times leave the range open.
type RangeQuery struct {
	URL      string
	From     time.Time
	To       time.Time
	Collapse string
	// Limit caps the rows returned; negative keeps the last rows in CDX
	// order. That is the most recent captures for a single URL, but for a
	// "host/*" prefix rows are ordered by urlkey, so it keeps the
	// alphabetically last URLs.
	Limit int
	// OriginalPattern is a regular expression matched against the
	// captured URL.
	OriginalPattern string
}

// Page is fetched archived content.
type Page struct {
	Content     string
	Truncated   bool
	ContentType string
	FinalURL    string
	// CaptureTime is read from the final URL after redirects; zero when
	// the final URL carries no capture timestamp.
	CaptureTime time.Time
}
