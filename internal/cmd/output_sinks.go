package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hibp-mcp/hibp-mcp/internal/output"
)

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", string(output.FormatTable),
		"Output format: "+strings.Join(output.Formats(), ", "))
	cmd.Flags().String("out", "", "Write output to file instead of stdout")
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// openSink returns the command's stdout for "" or "-", otherwise a newly
// created file (parent directories included).
func openSink(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return nopWriteCloser{cmd.OutOrStdout()}, nil
	}

	// #nosec G301 -- report directories follow the user's umask
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return os.Create(path) // #nosec G304 -- path comes from --out
}

// writeRendered writes rendered, newline terminated, to the --out target.
func writeRendered(cmd *cobra.Command, rendered string) (err error) {
	target, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}

	w, err := openSink(cmd, target)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(rendered, "\n") {
		rendered += "\n"
	}
	_, err = io.WriteString(w, rendered)
	return err
}
