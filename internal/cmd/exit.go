package cmd

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
	errwrap "github.com/chestnutforty/mcp-webarchive/internal/errors"
)

// ExitCodeFor maps a failed command's error to a foundry exit code. Archive
// outages and exhausted rate budgets are external-service failures so
// wrappers can retry them; config envelopes keep their own code.
func ExitCodeFor(err error) foundry.ExitCode {
	var rateErr *core.RateLimitError
	var envelope *errors.ErrorEnvelope
	switch {
	case err == nil:
		return foundry.ExitFailure
	case stderrors.As(err, &rateErr), stderrors.Is(err, core.ErrUpstreamUnavailable):
		return foundry.ExitExternalServiceUnavailable
	case stderrors.As(err, &envelope) && envelope.Code == errwrap.CodeConfigInvalid:
		return foundry.ExitConfigInvalid
	case stderrors.As(err, &envelope) && envelope.Code == errwrap.CodeExternalService:
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}

// ExitWithCode logs err with its exit code metadata and exits. A nil logger
// falls back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}
	if logger == nil {
		writeFatal(info.Code, info.Name, info.Description, msg, err)
		os.Exit(info.Code)
	}

	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID))
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		if original, ok := envelope.Original.(error); ok && original != nil {
			err = original
		}
	}
	logger.Error(msg, append(fields, zap.Error(err))...)
	os.Exit(info.Code)
}

// ExitWithCodeStderr exits before any logger is available.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}
	writeFatal(info.Code, info.Name, info.Description, msg, err)
	os.Exit(info.Code)
}

func writeFatal(code int, name, description, msg string, err error) {
	var envelope *errors.ErrorEnvelope
	switch {
	case err == nil:
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	case stderrors.As(err, &envelope):
		fmt.Fprintf(os.Stderr, "FATAL: %s [%s]: %s\n", msg, envelope.Code, envelope.Message)
	default:
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", code, name, description)
}
