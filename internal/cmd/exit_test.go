package cmd

import (
	"fmt"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/require"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
	errwrap "github.com/chestnutforty/mcp-webarchive/internal/errors"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want foundry.ExitCode
	}{
		{"rate limited", fmt.Errorf("list: %w", &core.RateLimitError{Bucket: core.GlobalBucket, Wait: time.Second}), foundry.ExitExternalServiceUnavailable},
		{"upstream", core.Unavailable(fmt.Errorf("502")), foundry.ExitExternalServiceUnavailable},
		{"config", errwrap.NewConfigInvalidError("bad yaml"), foundry.ExitConfigInvalid},
		{"input", core.InvalidArgument("pick %q", "hourly"), foundry.ExitFailure},
		{"nil", nil, foundry.ExitFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ExitCodeFor(tc.err))
		})
	}
}
