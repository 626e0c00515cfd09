// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// Command is an operator request to the capture loop.
type Command string

const (
	CommandCalibrate Command = "calibrate"
	CommandReopen    Command = "reopen"
	CommandQuit      Command = "quit"
)

// ParseCommand maps operator input onto a Command. An empty line (ENTER)
// means calibrate, matching the "press enter in the neutral pose" workflow.
func ParseCommand(s string) (Command, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "c", "calibrate":
		return CommandCalibrate, true
	case "r", "reopen":
		return CommandReopen, true
	case "q", "quit", "exit":
		return CommandQuit, true
	default:
		return "", false
	}
}

// commandMessage is the JSON form used over MQTT and websocket.
type commandMessage struct {
	Type string `json:"type"`
}

// parseRemoteCommand accepts {"type":"calibrate"} or a bare word. Blank
// payloads are rejected so a stray empty message cannot trigger calibration.
func parseRemoteCommand(payload []byte) (Command, bool) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return "", false
	}
	if strings.HasPrefix(text, "{") {
		var msg commandMessage
		if err := json.Unmarshal([]byte(text), &msg); err != nil {
			return "", false
		}
		text = msg.Type
		if strings.TrimSpace(text) == "" {
			return "", false
		}
	}
	cmd, ok := ParseCommand(text)
	if cmd == CommandQuit {
		// remote clients cannot stop the capture process
		return "", false
	}
	return cmd, ok
}

// ReadCommands feeds one command per input line to submit until r ends.
// Unknown input is reported through unknown, which may be nil.
func ReadCommands(r io.Reader, submit func(Command), unknown func(line string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		cmd, ok := ParseCommand(line)
		if !ok {
			if unknown != nil {
				unknown(line)
			}
			continue
		}
		submit(cmd)
		if cmd == CommandQuit {
			return nil
		}
	}
	return scanner.Err()
}
