// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/mocap_costume/internal/fusion"
	"github.com/relabs-tech/mocap_costume/internal/imu"
	"github.com/relabs-tech/mocap_costume/internal/monitoring"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// panel is the part of *ssd1306.Dev the sink draws on.
type panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Halt() error
}

// DisplaySink mirrors one sensor's text block on an SSD1306 OLED.
type DisplaySink struct {
	dev    panel
	bus    i2c.BusCloser
	sensor int
}

// OpenDisplay initialises periph, opens the I2C bus (empty name picks the
// first) and the 128x64 panel at its default address, and shows a splash.
func OpenDisplay(busName string, sensor int) (*DisplaySink, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	monitoring.Logf("display: initialized on bus %q, showing sensor %d", busName, sensor)

	d := &DisplaySink{dev: dev, bus: bus, sensor: sensor}
	if err := d.dev.Draw(d.dev.Bounds(), renderLines("Mocap Costume", "", "Connecting..."), image.Point{}); err != nil {
		monitoring.Logf("display: error showing splash: %v", err)
	}
	return d, nil
}

// renderLines draws up to four lines of 7x13 text on a blank 1-bit image.
func renderLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		if i >= displayHeight/lineHeight {
			break
		}
		drawer.Dot = fixed.P(0, lineHeight*(i+1))
		drawer.DrawString(line)
	}
	return img
}

// RenderSensor lays out a sensor frame for the panel.
func RenderSensor(f imu.SensorFrame, ok, calibrated bool) *image1bit.VerticalLSB {
	if !ok || !f.Seen() {
		return renderLines(fmt.Sprintf("Sensor %d", f.Index), "Waiting...")
	}
	// the panel fits ~18 columns, so drop the "Acc:"/"Rot:" spacing
	block := strings.Split(FormatSensor(f), "\n")
	title := block[0]
	if !calibrated {
		title += " (uncal)"
	}
	acc := fmt.Sprintf("A%6.2f%6.2f%6.2f", f.Acc.X, f.Acc.Y, f.Acc.Z)
	rot := fmt.Sprintf("R%6.0f%6.0f%6.0f", f.Rot.X, f.Rot.Y, f.Rot.Z)
	return renderLines(title, acc, rot)
}

func (d *DisplaySink) Name() string { return "display" }

func (d *DisplaySink) Handle(s fusion.Snapshot) error {
	var (
		f  = imu.SensorFrame{Index: d.sensor}
		ok bool
	)
	if d.sensor >= 0 && d.sensor < len(s.Frames) {
		f, ok = s.Frames[d.sensor], true
	}
	img := RenderSensor(f, ok, s.Calibrated)
	if err := d.dev.Draw(d.dev.Bounds(), img, image.Point{}); err != nil {
		return fmt.Errorf("error updating display: %w", err)
	}
	return nil
}

func (d *DisplaySink) Close() error {
	err := d.dev.Halt()
	if d.bus != nil {
		if cerr := d.bus.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
