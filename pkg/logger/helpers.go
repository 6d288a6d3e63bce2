package logger

import (
	"fmt"

	"github.com/fatih/color"
)

// IconSuccess marks a successfully completed operation in session output.
const IconSuccess = "✓"

var sectionColor = color.New(color.FgCyan, color.Bold)

// Success logs a success message prefixed with a checkmark.
func Success(args ...interface{}) {
	defaultLogger.Info(IconSuccess + " " + fmt.Sprint(args...))
}

// Successf logs a formatted success message.
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// LogSection prints a banner separating one phase of a session from the
// next (e.g. "UTM Core Session").
func LogSection(title string) {
	line := "────────────────────────────────────────────────"
	l, ok := defaultLogger.(*logger)
	noColor := ok && l.noColor

	if noColor {
		fmt.Println(line)
		fmt.Println(title)
		fmt.Println(line)
		return
	}
	sectionColor.Println(line)
	sectionColor.Println(title)
	sectionColor.Println(line)
}
