// A simple package for the checker's diagnostic output.  A "channel" in
// this case isn't a go channel, but rather a named conduit for report
// lines.  Errors carry a kind ("runtime", "check", "init", ...) and are
// wrapped in ANSI red when the output stream is a terminal; plain lines
// are printed verbatim.  The stream is swappable because at teardown the
// configured stream may already be unusable and we fall back to /dev/tty.
package msg

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	Cnorm   = "\033[0m"
	Cred    = "\033[31;1m"
	Cyellow = "\033[33m"
)

type Printer struct {
	out *os.File
}

func NewPrinter() *Printer {
	return &Printer{out: os.Stderr}
}

// Output returns the current output stream.
func (p *Printer) Output() *os.File {
	return p.out
}

// SetOutput redirects all subsequent lines and errors to f.
func (p *Printer) SetOutput(f *os.File) {
	if f != nil {
		p.out = f
	}
}

// Colors reports whether the output stream is a terminal.
func (p *Printer) Colors() bool {
	return isatty(p.out)
}

// Line emits a single line, terminated by a newline.
func (p *Printer) Line(format string, a ...interface{}) {
	fmt.Fprintf(p.out, format, a...)
	fmt.Fprintf(p.out, "\n")
}

// Error emits an error of the given kind.  The separating newline before
// the message is part of the report format.
func (p *Printer) Error(kind string, format string, a ...interface{}) {
	text := fmt.Sprintf(format, a...)
	if isatty(p.out) {
		fmt.Fprintf(p.out, "\n%s%s error: %s%s\n", Cred, kind, text, Cnorm)
	} else {
		fmt.Fprintf(p.out, "\n%s error: %s\n", kind, text)
	}
}

func isatty(f *os.File) bool {
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	return err == nil
}
