// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/relabs-tech/mocap_costume/internal/fusion"
	"github.com/relabs-tech/mocap_costume/internal/imu"
)

// FormatSensor renders one sensor the way the costume's debug overlay does.
func FormatSensor(f imu.SensorFrame) string {
	return fmt.Sprintf("Sensor %d\nAcc: %.2f, %.2f, %.2f\nRot: %.2f, %.2f, %.2f",
		f.Index, f.Acc.X, f.Acc.Y, f.Acc.Z, f.Rot.X, f.Rot.Y, f.Rot.Z)
}

// ConsoleSink prints every sensor block plus a status line.
type ConsoleSink struct {
	w io.Writer
}

// NewConsoleSink writes to w, typically os.Stdout.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (c *ConsoleSink) Name() string { return "console" }

func (c *ConsoleSink) Handle(s fusion.Snapshot) error {
	var sb strings.Builder
	status := "waiting for calibration (press ENTER in the neutral pose)"
	if s.Calibrated {
		status = fmt.Sprintf("calibrated, root mode %s", s.Mode)
		if s.Pose != nil {
			p := s.Pose.RootPosition
			status += fmt.Sprintf(", root at %.2f, %.2f, %.2f", p.X, p.Y, p.Z)
		}
		if s.Mode == fusion.ModeStep {
			status += fmt.Sprintf(", %d steps", s.Root.Steps)
		}
	}
	fmt.Fprintf(&sb, "[%s] %s\n", s.Time.Format("15:04:05.000"), status)
	for _, f := range s.Frames {
		if !f.Seen() {
			continue
		}
		sb.WriteString(FormatSensor(f))
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(c.w, sb.String())
	return err
}

func (c *ConsoleSink) Close() error { return nil }
