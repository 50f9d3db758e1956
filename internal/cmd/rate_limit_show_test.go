package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

func TestPolicyStatusAppliesToolOverrides(t *testing.T) {
	policy := core.DefaultRatePolicy()
	hard := 5
	slow := 0.5
	policy.Tools[core.ToolSearchSite] = core.PartialPolicy{MaxRequestsPerSecond: &slow, HardLimit: &hard}

	status, err := policyStatus(policy)
	require.NoError(t, err)
	require.Len(t, status.Buckets, 4)
	require.Equal(t, core.GlobalBucket, status.Buckets[0].Bucket)
	require.Nil(t, status.Buckets[0].HardLimit)

	search := status.Buckets[3]
	require.Equal(t, core.ToolBucket(core.ToolSearchSite), search.Bucket)
	require.Equal(t, 0.5, search.MaxRequestsPerSecond)
	require.NotNil(t, search.HardLimit)
	require.Equal(t, 5, *search.HardLimit)
}

func TestPolicyStatusRejectsInvalidPolicy(t *testing.T) {
	policy := core.DefaultRatePolicy()
	policy.MaxRequestsPerSecond = 0
	_, err := policyStatus(policy)
	require.Error(t, err)
}

func TestFetchLiveStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(core.GovernorStatus{Buckets: []core.BucketStatus{{Bucket: core.GlobalBucket, Issued: 7}}})
	}))
	defer server.Close()

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	status, err := fetchLiveStatus(cmd, server.URL+"/", "secret")
	require.NoError(t, err)
	require.Len(t, status.Buckets, 1)
	require.Equal(t, 7, status.Buckets[0].Issued)

	_, err = fetchLiveStatus(cmd, server.URL, "wrong")
	require.Error(t, err)
}
