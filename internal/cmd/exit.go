package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
)

// osExit is replaced in tests.
var osExit = os.Exit

// ExitWithCode logs err with foundry exit code metadata and exits with the
// semantic code. A nil logger falls back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		writeFatal(os.Stderr, msg, err)
		osExit(int(exitCode))
		return
	}

	if logger == nil {
		writeFatal(os.Stderr, msg, err)
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		osExit(info.Code)
		return
	}

	logger.Error(msg, exitFields(info.Code, info.Name, info.Description, info.Category, err)...)
	osExit(info.Code)
}

// ExitWithCodeStderr is ExitWithCode for failures before the logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	ExitWithCode(nil, exitCode, msg, err)
}

// exitFields describes the exit code and, for envelopes, the error code,
// correlation and context. The logged error is the envelope's cause when
// it has one.
func exitFields(code int, name, description, category string, err error) []zap.Field {
	fields := []zap.Field{
		zap.Int("exit_code", code),
		zap.String("exit_name", name),
		zap.String("exit_description", description),
		zap.String("exit_category", category),
	}

	if envelope, ok := apperrors.AsEnvelope(err); ok {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("error_message", envelope.Message),
			zap.String("correlation_id", envelope.CorrelationID),
			zap.String("trace_id", envelope.TraceID),
		)
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		if cause, ok := envelope.Original.(error); ok && cause != nil {
			err = cause
		}
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	return fields
}

func writeFatal(w io.Writer, msg string, err error) {
	if err == nil {
		fmt.Fprintf(w, "FATAL: %s\n", msg)
		return
	}

	envelope, ok := apperrors.AsEnvelope(err)
	if !ok {
		fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
		return
	}

	fmt.Fprintf(w, "FATAL: %s [%s]: %s (correlation: %s)\n", msg, envelope.Code, envelope.Message, envelope.CorrelationID)
	if cause, ok := envelope.Original.(error); ok && cause != nil {
		fmt.Fprintf(w, "Underlying error: %v\n", cause)
	}
}

// ExitCodeFor maps a command error onto the foundry exit code catalog.
func ExitCodeFor(err error) foundry.ExitCode {
	if errors.Is(err, fs.ErrNotExist) {
		return foundry.ExitFileNotFound
	}
	switch apperrors.CodeOf(err) {
	case apperrors.CodeConfigInvalid, apperrors.CodeUnauthorized:
		return foundry.ExitConfigInvalid
	case apperrors.CodeExternalService, apperrors.CodeUnavailable, apperrors.CodeRateLimited:
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}
