// Package ui renders user-facing console output: status lines and tables.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Printer writes status lines to out and errors to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	color  bool
}

// New builds a Printer. Colors are off until WithColor is applied.
func New(out, errOut io.Writer) *Printer {
	return &Printer{out: out, errOut: errOut}
}

// WithColor toggles ANSI colors.
func (p *Printer) WithColor(on bool) *Printer {
	p.color = on
	return p
}

// IsTerminal reports whether f is a character device.
func IsTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Out returns the standard writer.
func (p *Printer) Out() io.Writer { return p.out }

func (p *Printer) paint(c text.Color, s string) string {
	if !p.color {
		return s
	}
	return c.Sprint(s)
}

// Info prints a plain line.
func (p *Printer) Info(format string, args ...any) {
	_, _ = fmt.Fprintln(p.out, fmt.Sprintf(format, args...))
}

// Success prints a ✓ line.
func (p *Printer) Success(format string, args ...any) {
	_, _ = fmt.Fprintln(p.out, p.paint(text.FgGreen, "✓ "+fmt.Sprintf(format, args...)))
}

// Warn prints a ⚠ line.
func (p *Printer) Warn(format string, args ...any) {
	_, _ = fmt.Fprintln(p.out, p.paint(text.FgYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

// Error prints a ✗ line to the error writer.
func (p *Printer) Error(format string, args ...any) {
	_, _ = fmt.Fprintln(p.errOut, p.paint(text.FgRed, "✗ "+fmt.Sprintf(format, args...)))
}

// Table renders rows under headers.
func (p *Printer) Table(headers []string, rows [][]string) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(p.out)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, r := range rows {
		row := make(table.Row, len(r))
		for i, cell := range r {
			row[i] = cell
		}
		t.AppendRow(row)
	}
	t.Render()
}

// Truncate shortens s to n runes, adding "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
