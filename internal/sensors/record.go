// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/mocap_costume/internal/imu"
)

// RecordFields is the token count of one wire record:
// <sensorIndex> <accX> <accY> <accZ> <rotX> <rotY> <rotZ>
const RecordFields = 7

// Decoder turns one trimmed, non-empty line into a record.
type Decoder interface {
	Decode(line string) (imu.Record, error)
}

// PlainDecoder decodes the whitespace separated wire format.
type PlainDecoder struct {
	Sensors int
}

// Decode implements Decoder.
func (d PlainDecoder) Decode(line string) (imu.Record, error) {
	return ParseRecord(line, d.Sensors)
}

// decimalToken is plain decimal notation with an optional exponent. It keeps
// out hex floats, digit separators and named values that ParseFloat accepts.
var decimalToken = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseRecord decodes a plain wire line for a costume with n sensors.
// Numbers always use '.' as the decimal separator.
func ParseRecord(line string, n int) (imu.Record, error) {
	fields := strings.Fields(line)
	if len(fields) != RecordFields {
		return imu.Record{}, malformed(line, ReasonTokenCount,
			fmt.Errorf("got %d tokens, want %d", len(fields), RecordFields))
	}
	return recordFromFields(line, fields, n)
}

func recordFromFields(line string, fields []string, n int) (imu.Record, error) {
	idx, err := strconv.Atoi(fields[0])
	if err != nil {
		return imu.Record{}, malformed(line, ReasonBadNumber, err)
	}
	if idx < 0 || idx >= n {
		return imu.Record{}, malformed(line, ReasonIndexRange, fmt.Errorf("index %d not in [0,%d)", idx, n))
	}

	var v [RecordFields - 1]float64
	for i := range v {
		if !decimalToken.MatchString(fields[i+1]) {
			return imu.Record{}, malformed(line, ReasonBadNumber, fmt.Errorf("token %q is not a decimal number", fields[i+1]))
		}
		v[i], err = strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return imu.Record{}, malformed(line, ReasonBadNumber, err)
		}
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return imu.Record{}, malformed(line, ReasonBadNumber, fmt.Errorf("token %q is not finite", fields[i+1]))
		}
	}

	return imu.Record{
		Index: idx,
		Acc:   r3.Vec{X: v[0], Y: v[1], Z: v[2]},
		Rot:   r3.Vec{X: v[3], Y: v[4], Z: v[5]},
	}, nil
}

// FormatRecord renders r in the plain wire format, as the firmware prints it.
func FormatRecord(r imu.Record) string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f %.6f %.6f",
		r.Index, r.Acc.X, r.Acc.Y, r.Acc.Z, r.Rot.X, r.Rot.Y, r.Rot.Z)
}
