// Package debug provides env-gated diagnostic logging and a silent-fail
// operational event log for the dt CLI.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/crestmark/dealtrack/internal/config"
)

var (
	enabled     = os.Getenv("DT_DEBUG") != ""
	verboseMode = false
	quietMode   = false
	logMutex    sync.Mutex
)

// Enabled reports whether debug output is active.
func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output.
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output).
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled.
func IsQuiet() bool {
	return quietMode
}

// Logf writes to stderr when debug output is active.
func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Warnf always writes to stderr. Used for fail-soft paths that must leave
// a trace even outside debug mode.
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "warning: "+format, args...)
}

// Errorf always writes to stderr at error severity. Used for conditions
// that indicate a code or schema defect rather than absent data.
func Errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format, args...)
}

// PrintNormal prints output unless quiet mode is enabled.
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}

// Development reports whether we are running in a development-like
// environment. DT_ENV wins when set; otherwise the project config's
// environment value applies. Full error text is only ever logged in
// development; other environments get the error type name.
func Development() bool {
	env := os.Getenv("DT_ENV")
	if env == "" {
		if root, err := findProjectRoot(); err == nil {
			env = config.LoadLocalConfig(filepath.Join(root, ".dealtrack")).Environment
		}
	}
	switch env {
	case "development", "dev", "test":
		return true
	}
	return false
}

// RedactErr returns the loggable form of an error: the full message in
// development, otherwise just the error's Go type, truncated either way.
func RedactErr(err error) string {
	if err == nil {
		return "<nil>"
	}
	var msg string
	if Development() {
		msg = err.Error()
	} else {
		msg = fmt.Sprintf("%T", err)
	}
	const maxLen = 300
	if len(msg) > maxLen {
		msg = msg[:maxLen] + "..."
	}
	return msg
}

// LogEvent writes an event to .dealtrack/events.log.
// Format: TIMESTAMP|EVENT_CODE|DEAL_ID|ACTOR|DETAILS
func LogEvent(eventCode, dealID, details string) {
	LogEventWithActor(eventCode, dealID, "", details)
}

// LogEventWithActor writes an event with an explicit actor.
func LogEventWithActor(eventCode, dealID, actor, details string) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		// Silent fail if not in a project
		return
	}

	logPath := filepath.Join(projectRoot, ".dealtrack", "events.log")

	if dealID == "" {
		dealID = "none"
	}
	if actor == "" {
		actor = os.Getenv("DT_ACTOR")
		if actor == "" {
			actor = os.Getenv("USER")
			if actor == "" {
				actor = "unknown"
			}
		}
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	entry := fmt.Sprintf("%s|%s|%s|%s|%s\n", timestamp, eventCode, dealID, actor, details)

	logMutex.Lock()
	defer logMutex.Unlock()

	os.MkdirAll(filepath.Dir(logPath), 0755)

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		// Silent fail - don't interrupt operations if logging fails
		return
	}
	defer file.Close()

	file.WriteString(entry)
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		dtDir := filepath.Join(dir, ".dealtrack")
		if info, err := os.Stat(dtDir); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a dealtrack project")
		}
		dir = parent
	}
}
