package logging

import (
	"log"
	"os"
)

// Logs go to stderr: in stdio MCP mode stdout carries the protocol stream
// and must stay clean.
var (
	disabled = false
	debug    = false
	logger   = log.New(os.Stderr, "", log.LstdFlags)
)

// Disable turns off all logging
func Disable() {
	disabled = true
}

// Enable turns logging back on
func Enable() {
	disabled = false
}

// SetDebug toggles debug-level output
func SetDebug(on bool) {
	debug = on
}

// Info logs an info message
func Info(v ...any) {
	if !disabled {
		logger.Println(v...)
	}
}

// Infof logs a formatted info message
func Infof(format string, v ...any) {
	if !disabled {
		logger.Printf(format, v...)
	}
}

// Warn logs a warning message
func Warn(v ...any) {
	if !disabled {
		logger.Println(append([]any{"WARN:"}, v...)...)
	}
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...any) {
	if !disabled {
		logger.Printf("WARN: "+format, v...)
	}
}

// Error logs an error message
func Error(v ...any) {
	if !disabled {
		logger.Println(append([]any{"ERROR:"}, v...)...)
	}
}

// Errorf logs a formatted error message
func Errorf(format string, v ...any) {
	if !disabled {
		logger.Printf("ERROR: "+format, v...)
	}
}

// Debug logs a debug message; silent unless SetDebug(true)
func Debug(v ...any) {
	if !disabled && debug {
		logger.Println(append([]any{"DEBUG:"}, v...)...)
	}
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...any) {
	if !disabled && debug {
		logger.Printf("DEBUG: "+format, v...)
	}
}
