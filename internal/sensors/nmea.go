// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"strings"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/mocap_costume/internal/imu"
)

// SentenceIMU is the proprietary sentence carrying one sample:
//
//	$PIMU,<idx>,<ax>,<ay>,<az>,<rx>,<ry>,<rz>*HH
const SentenceIMU = "PIMU"

type imuSentence struct {
	nmea.BaseSentence
}

// NMEADecoder decodes checksummed $PIMU sentences. Anything that fails the
// NMEA framing or checksum is a malformed record.
type NMEADecoder struct {
	Sensors int
	parser  nmea.SentenceParser
}

// NewNMEADecoder returns a decoder for a costume with n sensors.
func NewNMEADecoder(n int) *NMEADecoder {
	parse := func(s nmea.BaseSentence) (nmea.Sentence, error) {
		return imuSentence{BaseSentence: s}, nil
	}
	return &NMEADecoder{
		Sensors: n,
		parser: nmea.SentenceParser{
			// proprietary prefixes split as "P"+"IMU"; register both spellings
			CustomParsers: map[string]nmea.ParserFunc{
				"IMU":       parse,
				SentenceIMU: parse,
			},
		},
	}
}

// Decode implements Decoder.
func (d *NMEADecoder) Decode(line string) (imu.Record, error) {
	s, err := d.parser.Parse(line)
	if err != nil {
		return imu.Record{}, malformed(line, ReasonChecksum, err)
	}
	sentence, ok := s.(imuSentence)
	if !ok {
		return imu.Record{}, malformed(line, ReasonChecksum, fmt.Errorf("unexpected sentence %s", s.Prefix()))
	}
	if len(sentence.Fields) != RecordFields {
		return imu.Record{}, malformed(line, ReasonTokenCount,
			fmt.Errorf("got %d fields, want %d", len(sentence.Fields), RecordFields))
	}
	fields := make([]string, len(sentence.Fields))
	for i, f := range sentence.Fields {
		fields[i] = strings.TrimSpace(f)
	}
	return recordFromFields(line, fields, d.Sensors)
}

// FormatNMEA renders r as a checksummed $PIMU sentence.
func FormatNMEA(r imu.Record) string {
	body := fmt.Sprintf("%s,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f", SentenceIMU,
		r.Index, r.Acc.X, r.Acc.Y, r.Acc.Z, r.Rot.X, r.Rot.Y, r.Rot.Z)
	return "$" + body + "*" + nmea.Checksum(body)
}
