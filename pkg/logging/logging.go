package logging

import (
	"fmt"
	"sync"

	"github.com/pterm/pterm"
)

const (
	LogLevelSilent  = iota // no output at all
	LogLevelError          // only errors
	LogLevelWarning        // errors and warnings (DEFAULT)
	LogLevelVerbose        // errors, warnings and progress of every pass
)

var (
	WarnColorFG  = pterm.FgYellow
	WarnStyleBG  = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG = pterm.FgRed
	ErrorStyleBG = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG  = pterm.FgLightGreen
	InfoStyleBG  = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
)

var (
	mu       sync.Mutex
	logLevel = LogLevelWarning
)

// ParseLevel maps a level name as accepted on the command line and in the
// configuration file to its numeric level.
func ParseLevel(name string) (int, bool) {
	switch name {
	case "silent":
		return LogLevelSilent, true
	case "error":
		return LogLevelError, true
	case "warning":
		return LogLevelWarning, true
	case "verbose":
		return LogLevelVerbose, true
	}
	return LogLevelWarning, false
}

// Initialize sets the global log level. Unknown names keep the default.
func Initialize(levelName string) {
	level, _ := ParseLevel(levelName)
	SetLevel(level)
}

func SetLevel(level int) {
	mu.Lock()
	logLevel = level
	mu.Unlock()
}

func Level() int {
	mu.Lock()
	defer mu.Unlock()
	return logLevel
}

func PrintErrorMessage(tag string, err error) {
	ErrorStyleBG.Print(tag)
	ErrorColorFG.Println(" " + err.Error())
}

func PrintWarningMessage(tag, msg string) {
	WarnStyleBG.Print(tag)
	WarnColorFG.Println(" " + msg)
}

func PrintInfoMessage(tag, msg string) {
	InfoStyleBG.Print(tag)
	InfoColorFG.Println(" " + msg)
}

func Errorf(tag, format string, args ...any) {
	if Level() >= LogLevelError {
		PrintErrorMessage(tag, fmt.Errorf(format, args...))
	}
}

func Warnf(tag, format string, args ...any) {
	if Level() >= LogLevelWarning {
		PrintWarningMessage(tag, fmt.Sprintf(format, args...))
	}
}

func Infof(tag, format string, args ...any) {
	if Level() >= LogLevelVerbose {
		PrintInfoMessage(tag, fmt.Sprintf(format, args...))
	}
}
