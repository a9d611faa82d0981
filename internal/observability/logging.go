// Package observability holds the shared logging and metric helpers of the fitlog binaries.
package observability

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// Format selects how log lines are rendered.
type Format int

const (
	// FormatText renders styled lines for an interactive console.
	FormatText Format = iota
	// FormatLogfmt renders parseable key=value lines for services.
	FormatLogfmt
)

// NewLogger builds a charm logger writing to w at the named level.
func NewLogger(w io.Writer, prefix, level string, format Format) (*log.Logger, error) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", level, err)
	}
	if w == nil {
		w = io.Discard
	}

	formatter := log.TextFormatter
	if format == FormatLogfmt {
		formatter = log.LogfmtFormatter
	}
	return log.NewWithOptions(w, log.Options{
		Level:           parsed,
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	}), nil
}
