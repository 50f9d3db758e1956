package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/chestnutforty/mcp-webarchive/internal/config"
	"github.com/chestnutforty/mcp-webarchive/internal/core"
	"github.com/chestnutforty/mcp-webarchive/internal/output"
)

var (
	rateLimitShowServer string
	rateLimitShowToken  string
)

var rateLimitShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show rate limit buckets",
	Long: `Show the global and per-tool rate limit buckets.

Without --server the configured policy is shown. With --server the live
bucket state of a running 'webarchive serve' instance is fetched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		var status core.GovernorStatus
		if server := strings.TrimSpace(rateLimitShowServer); server != "" {
			status, err = fetchLiveStatus(cmd, server, rateLimitShowToken)
		} else {
			status, err = policyStatus(config.GetConfig().RateLimits.RatePolicy)
		}
		if err != nil {
			return err
		}

		sink, err := openCommandSink(cmd, format, "rate-limit.show")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if format == output.FormatTable && len(status.Buckets) == 0 {
			_, err = fmt.Fprint(sink.writer, ascii.DrawBox("Rate Limits\n\n(no buckets)", 0))
			return err
		}

		rendered, err := output.NewFormatter(format).FormatStatus(status)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

// policyStatus describes the buckets a fresh governor would create for the
// known tools under policy.
func policyStatus(policy core.RatePolicy) (core.GovernorStatus, error) {
	if err := policy.Validate(); err != nil {
		return core.GovernorStatus{}, err
	}

	status := core.GovernorStatus{}
	status.Buckets = append(status.Buckets, bucketStatus(core.GlobalBucket, policy.Global()))
	for _, tool := range []string{core.ToolGetSnapshot, core.ToolListSnapshots, core.ToolSearchSite} {
		status.Buckets = append(status.Buckets, bucketStatus(core.ToolBucket(tool), policy.ForTool(tool)))
	}
	return status, nil
}

func bucketStatus(key core.BucketKey, p core.BucketPolicy) core.BucketStatus {
	s := core.BucketStatus{
		Bucket:               key,
		MaxRequestsPerSecond: p.MaxRequestsPerSecond,
		MaxWaitSeconds:       p.MaxWait.Seconds(),
	}
	if p.HasHardLimit {
		limit := p.HardLimit
		s.HardLimit = &limit
	}
	return s
}

func fetchLiveStatus(cmd *cobra.Command, server, token string) (core.GovernorStatus, error) {
	endpoint := strings.TrimRight(server, "/") + "/v1/rate-limits"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, endpoint, nil)
	if err != nil {
		return core.GovernorStatus{}, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return core.GovernorStatus{}, fmt.Errorf("fetch rate limits: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return core.GovernorStatus{}, fmt.Errorf("fetch rate limits: %s returned %d", endpoint, resp.StatusCode)
	}

	var status core.GovernorStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return core.GovernorStatus{}, fmt.Errorf("decode rate limits: %w", err)
	}
	return status, nil
}

func init() {
	addOutputFlags(rateLimitShowCmd, "table|json|markdown")
	rateLimitShowCmd.Flags().StringVar(&rateLimitShowServer, "server", "", "Base URL of a running server (e.g. http://localhost:8080)")
	rateLimitShowCmd.Flags().StringVar(&rateLimitShowToken, "token", "", "Bearer token for --server")
}
