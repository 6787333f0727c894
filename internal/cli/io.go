package cli

import (
	"fmt"
	"io"
)

// IO carries a command's output streams. Commands print results to
// stdout and diagnostics to stderr; nothing in this package writes to
// the process streams directly, so tests can capture both.
type IO struct {
	out    io.Writer
	errOut io.Writer
}

// NewIO creates a new IO instance.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Println writes a line to stdout.
func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes a line to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Write writes raw bytes to stdout, so commands can emit binary record
// payloads without any formatting.
func (o *IO) Write(p []byte) (int, error) {
	return o.out.Write(p)
}
