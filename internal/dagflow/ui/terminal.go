// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

// Package ui renders dagflow command output on a terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Style is the color scheme of a TerminalUI.
type Style struct {
	Primary *color.Color
	Success *color.Color
	Warning *color.Color
	Error   *color.Color
	Info    *color.Color
	Muted   *color.Color
}

// DefaultStyle returns the default color scheme.
func DefaultStyle() Style {
	return Style{
		Primary: color.New(color.FgCyan, color.Bold),
		Success: color.New(color.FgGreen, color.Bold),
		Warning: color.New(color.FgYellow, color.Bold),
		Error:   color.New(color.FgRed, color.Bold),
		Info:    color.New(color.FgBlue),
		Muted:   color.New(color.Faint),
	}
}

// TerminalUI writes styled messages and tables.
type TerminalUI struct {
	output  io.Writer
	style   Style
	noColor bool
	// cellStyle picks the color of a table cell, nil for none.
	cellStyle func(col int, cell string) *color.Color
}

// Option configures a TerminalUI.
type Option func(*TerminalUI)

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(ui *TerminalUI) {
		ui.output = w
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) Option {
	return func(ui *TerminalUI) {
		ui.noColor = noColor
	}
}

// WithStyle sets the color scheme.
func WithStyle(style Style) Option {
	return func(ui *TerminalUI) {
		ui.style = style
	}
}

// NewTerminalUI creates a TerminalUI writing to stdout.
func NewTerminalUI(options ...Option) *TerminalUI {
	ui := &TerminalUI{
		output: os.Stdout,
		style:  DefaultStyle(),
	}
	for _, option := range options {
		option(ui)
	}
	if ui.noColor {
		for _, c := range []*color.Color{ui.style.Primary, ui.style.Success, ui.style.Warning, ui.style.Error, ui.style.Info, ui.style.Muted} {
			c.DisableColor()
		}
	}
	ui.cellStyle = ui.statusStyle
	return ui
}

// ShowSuccess displays a success message.
func (ui *TerminalUI) ShowSuccess(message string) {
	fmt.Fprintf(ui.output, "%s %s\n", ui.style.Success.Sprint("✔"), ui.style.Success.Sprint(message))
}

// ShowError displays an error.
func (ui *TerminalUI) ShowError(err error) {
	fmt.Fprintf(ui.output, "%s %s\n", ui.style.Error.Sprint("✘"), ui.style.Error.Sprint(err.Error()))
}

// ShowWarning displays a warning.
func (ui *TerminalUI) ShowWarning(message string) {
	fmt.Fprintf(ui.output, "%s %s\n", ui.style.Warning.Sprint("!"), ui.style.Warning.Sprint(message))
}

// ShowInfo displays an informational message.
func (ui *TerminalUI) ShowInfo(message string) {
	fmt.Fprintf(ui.output, "%s %s\n", ui.style.Info.Sprint("›"), message)
}

// PrintHeader prints a section header.
func (ui *TerminalUI) PrintHeader(title string) {
	fmt.Fprintf(ui.output, "\n╭─ %s ─%s╮\n\n",
		ui.style.Primary.Sprint(title),
		strings.Repeat("─", max(0, 50-utf8.RuneCountInString(title))))
}

// PrintSubHeader prints a subsection header.
func (ui *TerminalUI) PrintSubHeader(title string) {
	fmt.Fprintf(ui.output, "\n%s %s\n", ui.style.Info.Sprint("▶"), ui.style.Info.Sprint(title))
}

// ShowTable displays rows under headers. Cells beyond the header count are
// dropped.
func (ui *TerminalUI) ShowTable(headers []string, rows [][]string) error {
	if len(headers) == 0 {
		return fmt.Errorf("headers cannot be empty")
	}

	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = utf8.RuneCountInString(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(cell))
			}
		}
	}

	ui.printBorder(widths, "┌", "┬", "┐")
	fmt.Fprint(ui.output, "│")
	for i, header := range headers {
		fmt.Fprintf(ui.output, " %s%s │", ui.style.Primary.Sprint(header), pad(header, widths[i]))
	}
	fmt.Fprintln(ui.output)
	ui.printBorder(widths, "├", "┼", "┤")

	for _, row := range rows {
		fmt.Fprint(ui.output, "│")
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			styled := cell
			if c := ui.cellStyle(i, cell); c != nil {
				styled = c.Sprint(cell)
			}
			fmt.Fprintf(ui.output, " %s%s │", styled, pad(cell, widths[i]))
		}
		fmt.Fprintln(ui.output)
	}
	ui.printBorder(widths, "└", "┴", "┘")
	return nil
}

func (ui *TerminalUI) printBorder(widths []int, left, middle, right string) {
	fmt.Fprint(ui.output, left)
	for i, w := range widths {
		fmt.Fprint(ui.output, strings.Repeat("─", w+2))
		if i < len(widths)-1 {
			fmt.Fprint(ui.output, middle)
		}
	}
	fmt.Fprintln(ui.output, right)
}

// statusStyle colors step statuses and breaker states wherever they appear.
func (ui *TerminalUI) statusStyle(_ int, cell string) *color.Color {
	switch cell {
	case "COMPLETED", "closed":
		return ui.style.Success
	case "FAILED", "open":
		return ui.style.Error
	case "SKIPPED", "half-open":
		return ui.style.Warning
	case "PENDING", "READY", "RUNNING":
		return ui.style.Muted
	default:
		return nil
	}
}

func pad(cell string, width int) string {
	return strings.Repeat(" ", max(0, width-utf8.RuneCountInString(cell)))
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
