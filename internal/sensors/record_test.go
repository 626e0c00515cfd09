// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/mocap_costume/internal/imu"
)

func TestParseRecord(t *testing.T) {
	r, err := ParseRecord("2 0.10 0.20 0.30 10.0 20.0 30.0", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Index)
	assert.Equal(t, r3.Vec{X: 0.1, Y: 0.2, Z: 0.3}, r.Acc)
	assert.Equal(t, r3.Vec{X: 10, Y: 20, Z: 30}, r.Rot)
}

func TestParseRecordTolerantWhitespace(t *testing.T) {
	r, err := ParseRecord("  1\t-1.5  0 0e0   0 -90.25 +1  ", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Index)
	assert.Equal(t, -1.5, r.Acc.X)
	assert.Equal(t, -90.25, r.Rot.Y)
	assert.Equal(t, 1.0, r.Rot.Z)
}

func TestParseRecordMalformed(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason Reason
	}{
		{"non numeric index", "abc 1 2 3 4 5 6", ReasonBadNumber},
		{"fractional index", "1.5 1 2 3 4 5 6", ReasonBadNumber},
		{"too few tokens", "1 2 3 4 5 6", ReasonTokenCount},
		{"too many tokens", "1 2 3 4 5 6 7 8", ReasonTokenCount},
		{"negative index", "-1 0 0 0 0 0 0", ReasonIndexRange},
		{"index equals count", "5 0 0 0 0 0 0", ReasonIndexRange},
		{"bad float", "0 0 x 0 0 0 0", ReasonBadNumber},
		{"comma decimal", "0 0,5 0 0 0 0 0", ReasonBadNumber},
		{"nan", "0 NaN 0 0 0 0 0", ReasonBadNumber},
		{"inf", "0 0 0 0 0 0 +Inf", ReasonBadNumber},
		{"hex float", "0 0x1p2 0 0 0 0 0", ReasonBadNumber},
		{"digit separator", "0 1_0 0 0 0 0 0", ReasonBadNumber},
		{"bare sign", "0 - 0 0 0 0 0", ReasonBadNumber},
		{"overflow", "0 1e999 0 0 0 0 0", ReasonBadNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord(tt.line, 5)
			require.Error(t, err)
			var me *MalformedRecordError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, tt.reason, me.Reason)
			assert.Equal(t, tt.line, me.Line)
		})
	}
}

func TestParseRecordDecimalForms(t *testing.T) {
	r, err := ParseRecord("1 1. .5 -2e-3 +1 1E2 -0.25", 3)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 1, Y: 0.5, Z: -0.002}, r.Acc)
	assert.Equal(t, r3.Vec{X: 1, Y: 100, Z: -0.25}, r.Rot)
}

func TestFormatRecordParses(t *testing.T) {
	in := imu.Record{Index: 3, Acc: r3.Vec{X: 0.5, Y: -1, Z: 0.25}, Rot: r3.Vec{X: 12.5, Y: -45, Z: 180}}
	out, err := ParseRecord(FormatRecord(in), 4)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestNMEADecoder(t *testing.T) {
	d := NewNMEADecoder(4)
	in := imu.Record{Index: 1, Acc: r3.Vec{Y: 1}, Rot: r3.Vec{X: 10, Y: 20, Z: 30}}

	line := FormatNMEA(in)
	assert.Regexp(t, `^\$PIMU,1,.*\*[0-9A-F]{2}$`, line)

	out, err := d.Decode(line)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	t.Run("bad checksum", func(t *testing.T) {
		bad := line[:len(line)-2] + "00"
		if bad == line {
			bad = line[:len(line)-2] + "FF"
		}
		_, err := d.Decode(bad)
		var me *MalformedRecordError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, ReasonChecksum, me.Reason)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := d.Decode(FormatNMEA(imu.Record{Index: 9}))
		var me *MalformedRecordError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, ReasonIndexRange, me.Reason)
	})

	t.Run("plain line", func(t *testing.T) {
		_, err := d.Decode("1 0 0 0 0 0 0")
		var me *MalformedRecordError
		require.ErrorAs(t, err, &me)
	})
}

func TestDeviceFaultUnwrap(t *testing.T) {
	cause := errors.New("unplugged")
	err := error(&DeviceFault{Op: "read", Port: "/dev/ttyUSB0", Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "/dev/ttyUSB0")
}
