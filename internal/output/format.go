// Package output renders CLI command results as text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format selects how command results are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"

	// FormatAuto resolves to text on a terminal and JSON elsewhere.
	FormatAuto Format = "auto"
)

// Formatter carries the resolved output format and destination for one
// command invocation.
type Formatter struct {
	format Format
	w      io.Writer
}

// NewFormatter creates a formatter writing to w.
func NewFormatter(format Format, w io.Writer) *Formatter {
	return &Formatter{format: format, w: w}
}

// Format returns the resolved output format.
func (f *Formatter) Format() Format {
	return f.format
}

// IsJSON reports whether results render as JSON.
func (f *Formatter) IsJSON() bool {
	return f.format == FormatJSON
}

// Print renders v: indented JSON in JSON mode, the value's string form
// otherwise.
func (f *Formatter) Print(v any) error {
	if f.format == FormatJSON {
		enc := json.NewEncoder(f.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	if s, ok := v.(fmt.Stringer); ok {
		_, err := fmt.Fprintln(f.w, s.String())
		return err
	}
	_, err := fmt.Fprintf(f.w, "%v\n", v)
	return err
}

// DetectFormat resolves FormatAuto against the writer: text when it is
// a terminal, JSON otherwise. Explicit formats pass through.
func DetectFormat(w io.Writer, explicit Format) Format {
	if explicit != FormatAuto {
		return explicit
	}
	if isTerminal(w) {
		return FormatText
	}
	return FormatJSON
}

// ParseFormat maps a user-supplied format flag value to a Format.
// Unrecognized values fall back to auto detection.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return FormatAuto
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: Fd() fits in int on supported platforms
}
