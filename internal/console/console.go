// Package console provides the semantic terminal styles used by the CLI.
package console

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/raul-delacruz/fyrd/internal/batch"
)

var (
	red     = color.New(color.FgRed).SprintFunc()
	green   = color.New(color.FgGreen).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	magenta = color.New(color.FgMagenta).SprintFunc()
	cyan    = color.New(color.FgCyan).SprintFunc()
	bold    = color.New(color.Bold).SprintFunc()
)

// StyleError formats critical failure messages (Red).
func StyleError(msg string) string { return red(msg) }

// StyleSuccess formats success messages (Green).
func StyleSuccess(msg string) string { return green(msg) }

// StyleWarning formats non-critical warnings (Yellow).
func StyleWarning(msg string) string { return yellow(msg) }

// StyleInfo formats status labels or properties (Magenta).
func StyleInfo(msg string) string { return magenta(msg) }

// StyleTitle formats section headers (Bold Cyan).
func StyleTitle(title string) string { return bold(cyan(title)) }

// StyleNumber formats counts or ids (Magenta).
func StyleNumber(num interface{}) string {
	return magenta(fmt.Sprintf("%v", num))
}

// StyleState colors a canonical job state by its class: green for good,
// yellow for uncertain, red for bad, plain cyan while active.
func StyleState(st batch.State) string {
	switch {
	case st.Good():
		return green(string(st))
	case st.Bad():
		return red(string(st))
	case st.Uncertain():
		return yellow(string(st))
	default:
		return cyan(string(st))
	}
}
