// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package monitoring holds the process-wide diagnostic log hooks.
//
// Logf is for messages the operator must see (startup, warnings, device faults).
// Debugf is for routine noise such as malformed records from a live serial link;
// it is muted unless verbose logging is enabled.
package monitoring

import (
	"log"
	"sync"
)

var (
	mu     sync.RWMutex
	logf   = log.Printf
	debugf = func(string, ...any) {}
)

// Logf writes an operator-visible diagnostic.
func Logf(format string, v ...any) {
	mu.RLock()
	f := logf
	mu.RUnlock()
	f(format, v...)
}

// Debugf writes a low-severity diagnostic.
func Debugf(format string, v ...any) {
	mu.RLock()
	f := debugf
	mu.RUnlock()
	f(format, v...)
}

// SetLogger replaces the Logf sink. Passing nil mutes it.
func SetLogger(f func(format string, v ...any)) {
	mu.Lock()
	defer mu.Unlock()
	if f == nil {
		logf = func(string, ...any) {}
		return
	}
	logf = f
}

// SetDebugLogger replaces the Debugf sink. Passing nil mutes it.
func SetDebugLogger(f func(format string, v ...any)) {
	mu.Lock()
	defer mu.Unlock()
	if f == nil {
		debugf = func(string, ...any) {}
		return
	}
	debugf = f
}

// SetVerbose routes Debugf to the standard logger with a "debug: " prefix, or mutes it.
func SetVerbose(verbose bool) {
	if !verbose {
		SetDebugLogger(nil)
		return
	}
	SetDebugLogger(func(format string, v ...any) {
		log.Printf("debug: "+format, v...)
	})
}
