// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
)

// ErrReadTimeout is returned by a Port when a read timed out without data.
// It is not a fault; the link simply reads again.
var ErrReadTimeout = errors.New("serial read timeout")

// DeviceFault is an open or read failure of the serial device. It ends
// ingestion until the link is explicitly reopened.
type DeviceFault struct {
	Op   string // "open" or "read"
	Port string
	Err  error
}

func (e *DeviceFault) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("serial %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("serial %s %s: %v", e.Op, e.Port, e.Err)
}

func (e *DeviceFault) Unwrap() error { return e.Err }

// Reason classifies a malformed record.
type Reason string

const (
	ReasonTokenCount Reason = "token count"
	ReasonIndexRange Reason = "index out of range"
	ReasonBadNumber  Reason = "bad number"
	ReasonChecksum   Reason = "bad sentence"
	ReasonOverlong   Reason = "line too long"
)

// MalformedRecordError describes a line that was discarded.
type MalformedRecordError struct {
	Line   string
	Reason Reason
	Err    error
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed record %q: %s: %v", e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed record %q: %s", e.Line, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

func malformed(line string, reason Reason, err error) error {
	return &MalformedRecordError{Line: line, Reason: reason, Err: err}
}
