package core

import (
	"net/url"
	"path"
	"strings"
)

// knownExtensions mark a path as already pointing at a concrete document.
var knownExtensions = []string{".html", ".htm", ".php", ".asp", ".aspx", ".jsp"}

// pathSuffixes are appended, in order, to extension-less paths.
var pathSuffixes = []string{"/", ".html", ".htm"}

// TargetURL is a caller URL without scheme or fragment.
type TargetURL struct {
	Host  string
	Path  string
	Query string
}

// String renders host+path(+?query).
func (t TargetURL) String() string {
	s := t.Host + t.Path
	if t.Query != "" {
		s += "?" + t.Query
	}
	return s
}

// ParseTarget accepts "example.com/page", "https://example.com/page" and
// similar inputs.
func ParseTarget(raw string) (TargetURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TargetURL{}, InvalidArgument("url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return TargetURL{}, InvalidArgument("url %q: %v", raw, err)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return TargetURL{}, InvalidArgument("url %q has no host", raw)
	}
	if port := parsed.Port(); port != "" {
		host += ":" + port
	}

	return TargetURL{
		Host:  host,
		Path:  parsed.EscapedPath(),
		Query: parsed.RawQuery,
	}, nil
}

// AlternateHost toggles the leading "www.".
func AlternateHost(host string) string {
	if strings.HasPrefix(host, "www.") {
		return strings.TrimPrefix(host, "www.")
	}
	return "www." + host
}

// SplitHostPath returns the host and the path ("/" when empty).
func SplitHostPath(raw string) (string, string, error) {
	target, err := ParseTarget(raw)
	if err != nil {
		return "", "", err
	}
	p := target.Path
	if p == "" {
		p = "/"
	}
	return target.Host, p, nil
}

// ExpandURL returns the ordered, de-duplicated candidate forms of raw:
// exact, alternate host, then "/", ".html" and ".htm" forms for each host
// when the path has no extension, no trailing slash and no query.
func ExpandURL(raw string) ([]string, error) {
	target, err := ParseTarget(raw)
	if err != nil {
		return nil, err
	}

	hosts := []TargetURL{target}
	alt := target
	alt.Host = AlternateHost(target.Host)
	hosts = append(hosts, alt)

	seen := make(map[string]struct{})
	var out []string
	add := func(candidate string) {
		if _, ok := seen[candidate]; ok {
			return
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}

	for _, h := range hosts {
		add(h.String())
	}
	if !expandable(target) {
		return out, nil
	}
	for _, h := range hosts {
		for _, suffix := range pathSuffixes {
			if target.Path == "" && suffix != "/" {
				continue
			}
			variant := h
			variant.Path = h.Path + suffix
			add(variant.String())
		}
	}
	return out, nil
}

func expandable(t TargetURL) bool {
	if t.Query != "" || strings.HasSuffix(t.Path, "/") {
		return false
	}
	if hasExtension(t.Path) {
		return false
	}
	return true
}

func hasExtension(p string) bool {
	if p == "" {
		return false
	}
	lower := strings.ToLower(p)
	for _, ext := range knownExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return strings.Contains(path.Base(lower), ".")
}
