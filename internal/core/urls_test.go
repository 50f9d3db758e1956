package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandURLOrder(t *testing.T) {
	got, err := ExpandURL("https://example.com/team#people")
	require.NoError(t, err)
	require.Equal(t, []string{
		"example.com/team",
		"www.example.com/team",
		"example.com/team/",
		"example.com/team.html",
		"example.com/team.htm",
		"www.example.com/team/",
		"www.example.com/team.html",
		"www.example.com/team.htm",
	}, got)
}

func TestExpandURLWithExtensionOrQuery(t *testing.T) {
	got, err := ExpandURL("www.example.com/about.php")
	require.NoError(t, err)
	require.Equal(t, []string{"www.example.com/about.php", "example.com/about.php"}, got)

	got, err = ExpandURL("example.com/search?q=go")
	require.NoError(t, err)
	require.Equal(t, []string{"example.com/search?q=go", "www.example.com/search?q=go"}, got)

	got, err = ExpandURL("example.com/docs/")
	require.NoError(t, err)
	require.Equal(t, []string{"example.com/docs/", "www.example.com/docs/"}, got)
}

func TestExpandURLBareHost(t *testing.T) {
	got, err := ExpandURL("Example.COM")
	require.NoError(t, err)
	require.Equal(t, []string{"example.com", "www.example.com", "example.com/", "www.example.com/"}, got)
}

func TestExpandURLIsDeterministicAndUnique(t *testing.T) {
	first, err := ExpandURL("http://nonprofit.org/our-team")
	require.NoError(t, err)
	second, err := ExpandURL("http://nonprofit.org/our-team")
	require.NoError(t, err)
	require.Equal(t, first, second)

	seen := map[string]bool{}
	for _, v := range first {
		require.False(t, seen[v], "duplicate %s", v)
		seen[v] = true
	}
}

func TestExpandURLRejectsEmpty(t *testing.T) {
	_, err := ExpandURL("  ")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSplitHostPath(t *testing.T) {
	host, path, err := SplitHostPath("https://www.nonprofit.org/our-team")
	require.NoError(t, err)
	require.Equal(t, "www.nonprofit.org", host)
	require.Equal(t, "/our-team", path)

	host, path, err = SplitHostPath("nonprofit.org")
	require.NoError(t, err)
	require.Equal(t, "nonprofit.org", host)
	require.Equal(t, "/", path)

	require.Equal(t, "nonprofit.org", AlternateHost("www.nonprofit.org"))
	require.Equal(t, "www.nonprofit.org", AlternateHost("nonprofit.org"))
}
