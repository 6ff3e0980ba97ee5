package output

import (
	"fmt"
	"io"
)

// Notice writes an advisory line around a command's primary output.
func Notice(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "note: "+format+"\n", args...)
}

// Warning writes a warning line. Warnings go to the command's error
// stream so JSON output stays machine-readable.
func Warning(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "warning: "+format+"\n", args...)
}
