// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration values.
//
// Scalar fields may be overridden from the environment with the MOCAP_
// prefixed variable named in their env tag, e.g. MOCAP_SERIAL_PORT.
type Config struct {
	// Serial link
	SerialPort          string `env:"SERIAL_PORT"`
	SerialBaudRate      int    `env:"SERIAL_BAUD_RATE"`
	SerialReadTimeoutMS int    `env:"SERIAL_READ_TIMEOUT_MS"`
	SerialDriver        string `env:"SERIAL_DRIVER"` // "bugst" or "jacobsa"
	WireFormat          string `env:"WIRE_FORMAT"`   // "plain" or "nmea"

	// Costume
	SensorCount       int `env:"SENSOR_COUNT"`
	BoneMap           map[int]string
	PelvisSensorIndex int `env:"PELVIS_SENSOR_INDEX"`

	// Fusion
	RotSlerpSpeed     float64 `env:"ROT_SLERP_SPEED"`
	RootMode          string  `env:"ROOT_MODE"` // "none", "step" or "integrate"
	StepThreshold     float64 `env:"STEP_THRESHOLD"`
	StepLength        float64 `env:"STEP_LENGTH"`
	AccelDamping      float64 `env:"ACCEL_DAMPING"`
	GravityBlendSpeed float64 `env:"GRAVITY_BLEND_SPEED"`
	TickIntervalMS    int     `env:"TICK_INTERVAL_MS"`

	// Logging
	ConsoleLogInterval int  `env:"CONSOLE_LOG_INTERVAL"` // milliseconds, 0 disables
	LogVerbose         bool `env:"LOG_VERBOSE"`

	// MQTT, disabled when the broker is empty
	MQTTBroker   string `env:"MQTT_BROKER"`
	MQTTClientID string `env:"MQTT_CLIENT_ID"`
	TopicFrames  string `env:"TOPIC_FRAMES"`
	TopicPose    string `env:"TOPIC_POSE"`
	TopicCommand string `env:"TOPIC_COMMAND"`

	// Web Server, disabled when 0
	WebServerPort int `env:"WEB_SERVER_PORT"`

	// Display
	DisplayUpdateInterval int    `env:"DISPLAY_UPDATE_INTERVAL"` // milliseconds
	DisplayOLED           bool   `env:"DISPLAY_OLED"`
	DisplayI2CBus         string `env:"DISPLAY_I2C_BUS"` // "" picks the first bus
	DisplaySensorIndex    int    `env:"DISPLAY_SENSOR_INDEX"`
}

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "MOCAP_"

// Costume bone names, indexed by sensor, as wired on the reference suit.
var defaultBoneMap = map[int]string{
	0: "Hips",
	1: "Head",
	2: "Chest",
	3: "Spine",
	4: "LeftHand",
	5: "RightHand",
	6: "LeftUpperLeg",
	7: "RightUpperLeg",
}

// Default returns the configuration of the reference eight sensor suit.
func Default() *Config {
	bones := make(map[int]string, len(defaultBoneMap))
	for k, v := range defaultBoneMap {
		bones[k] = v
	}
	return &Config{
		SerialPort:          "/dev/ttyUSB0",
		SerialBaudRate:      9600,
		SerialReadTimeoutMS: 100,
		SerialDriver:        "bugst",
		WireFormat:          "plain",

		SensorCount:       8,
		BoneMap:           bones,
		PelvisSensorIndex: 0,

		RotSlerpSpeed:     20,
		RootMode:          "step",
		StepThreshold:     1.2,
		StepLength:        0.3,
		AccelDamping:      0.99,
		GravityBlendSpeed: 1,
		TickIntervalMS:    16,

		ConsoleLogInterval: 1000,

		MQTTClientID: "mocap-costume",
		TopicFrames:  "mocap/frames",
		TopicPose:    "mocap/pose",
		TopicCommand: "mocap/command",

		DisplayUpdateInterval: 250,
	}
}

// Load reads the configuration file on top of Default, applies environment
// overrides and validates the result.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields from MOCAP_ prefixed environment variables.
// Unset variables leave the current value alone.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if v, ok := os.LookupEnv(EnvPrefix + "BONE_MAP"); ok {
		m, err := ParseBoneMap(v)
		if err != nil {
			return fmt.Errorf("parse env %sBONE_MAP: %w", EnvPrefix, err)
		}
		c.BoneMap = m
	}
	return nil
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Serial link
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = parseInt(key, value)
	case "SERIAL_READ_TIMEOUT_MS":
		c.SerialReadTimeoutMS, err = parseInt(key, value)
	case "SERIAL_DRIVER":
		c.SerialDriver = strings.ToLower(value)
	case "WIRE_FORMAT":
		c.WireFormat = strings.ToLower(value)

	// Costume
	case "SENSOR_COUNT":
		c.SensorCount, err = parseInt(key, value)
	case "BONE_MAP":
		c.BoneMap, err = ParseBoneMap(value)
		if err != nil {
			err = fmt.Errorf("invalid BONE_MAP: %w", err)
		}
	case "PELVIS_SENSOR_INDEX":
		c.PelvisSensorIndex, err = parseInt(key, value)

	// Fusion
	case "ROT_SLERP_SPEED":
		c.RotSlerpSpeed, err = parseFloat(key, value)
	case "ROOT_MODE":
		c.RootMode = strings.ToLower(value)
	case "STEP_THRESHOLD":
		c.StepThreshold, err = parseFloat(key, value)
	case "STEP_LENGTH":
		c.StepLength, err = parseFloat(key, value)
	case "ACCEL_DAMPING":
		c.AccelDamping, err = parseFloat(key, value)
	case "GRAVITY_BLEND_SPEED":
		c.GravityBlendSpeed, err = parseFloat(key, value)
	case "TICK_INTERVAL_MS":
		c.TickIntervalMS, err = parseInt(key, value)

	// Logging
	case "CONSOLE_LOG_INTERVAL":
		c.ConsoleLogInterval, err = parseInt(key, value)
	case "LOG_VERBOSE":
		c.LogVerbose, err = parseBool(key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_FRAMES":
		c.TopicFrames = value
	case "TOPIC_POSE":
		c.TopicPose = value
	case "TOPIC_COMMAND":
		c.TopicCommand = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value)
	case "DISPLAY_OLED":
		c.DisplayOLED, err = parseBool(key, value)
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_SENSOR_INDEX":
		c.DisplaySensorIndex, err = parseInt(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// ParseBoneMap parses "0:Hips,1:Head,..." into a sensor index to bone name map.
// An empty string yields an empty map.
func ParseBoneMap(value string) (map[int]string, error) {
	m := make(map[int]string)
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		idxStr, name, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q: want <index>:<bone>", entry)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(idxStr))
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry, err)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("entry %q: empty bone name", entry)
		}
		if _, dup := m[idx]; dup {
			return nil, fmt.Errorf("sensor %d mapped twice", idx)
		}
		m[idx] = name
	}
	return m, nil
}

// FormatBoneMap renders m in BONE_MAP syntax, sorted by index.
func FormatBoneMap(m map[int]string) string {
	idxs := make([]int, 0, len(m))
	for idx := range m {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	parts := make([]string, len(idxs))
	for i, idx := range idxs {
		parts[i] = fmt.Sprintf("%d:%s", idx, m[idx])
	}
	return strings.Join(parts, ",")
}

// validate checks ranges and enum values.
func (c *Config) validate() error {
	if c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required")
	}
	if c.SerialBaudRate <= 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE must be positive, got %d", c.SerialBaudRate)
	}
	if c.SerialReadTimeoutMS <= 0 {
		return fmt.Errorf("SERIAL_READ_TIMEOUT_MS must be positive, got %d", c.SerialReadTimeoutMS)
	}
	switch c.SerialDriver {
	case "bugst", "jacobsa":
	default:
		return fmt.Errorf("SERIAL_DRIVER must be bugst or jacobsa, got %q", c.SerialDriver)
	}
	switch c.WireFormat {
	case "plain", "nmea":
	default:
		return fmt.Errorf("WIRE_FORMAT must be plain or nmea, got %q", c.WireFormat)
	}

	if c.SensorCount < 1 {
		return fmt.Errorf("SENSOR_COUNT must be at least 1, got %d", c.SensorCount)
	}
	if len(c.BoneMap) > c.SensorCount {
		return fmt.Errorf("BONE_MAP has %d entries for %d sensors", len(c.BoneMap), c.SensorCount)
	}
	for idx := range c.BoneMap {
		if idx < 0 || idx >= c.SensorCount {
			return fmt.Errorf("BONE_MAP sensor %d out of range [0,%d)", idx, c.SensorCount)
		}
	}

	if c.RotSlerpSpeed <= 0 {
		return fmt.Errorf("ROT_SLERP_SPEED must be positive, got %v", c.RotSlerpSpeed)
	}
	switch c.RootMode {
	case "none":
	case "step":
		if c.StepThreshold <= 0 {
			return fmt.Errorf("STEP_THRESHOLD must be positive, got %v", c.StepThreshold)
		}
	case "integrate":
		if c.AccelDamping < 0 || c.AccelDamping >= 1 {
			return fmt.Errorf("ACCEL_DAMPING must be in [0,1), got %v", c.AccelDamping)
		}
		if c.GravityBlendSpeed < 0 {
			return fmt.Errorf("GRAVITY_BLEND_SPEED must not be negative, got %v", c.GravityBlendSpeed)
		}
	default:
		return fmt.Errorf("ROOT_MODE must be none, step or integrate, got %q", c.RootMode)
	}
	if c.TickIntervalMS <= 0 {
		return fmt.Errorf("TICK_INTERVAL_MS must be positive, got %d", c.TickIntervalMS)
	}
	if c.ConsoleLogInterval < 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL must not be negative, got %d", c.ConsoleLogInterval)
	}

	if c.MQTTBroker != "" && c.MQTTClientID == "" {
		return fmt.Errorf("MQTT_CLIENT_ID is required when MQTT_BROKER is set")
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 0-65535, got %d", c.WebServerPort)
	}
	if c.DisplayOLED {
		if c.DisplayUpdateInterval <= 0 {
			return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive, got %d", c.DisplayUpdateInterval)
		}
		if c.DisplaySensorIndex < 0 || c.DisplaySensorIndex >= c.SensorCount {
			return fmt.Errorf("DISPLAY_SENSOR_INDEX %d out of range [0,%d)", c.DisplaySensorIndex, c.SensorCount)
		}
	}
	return nil
}

// Validate reports whether c is usable, for configs built without Load.
func (c *Config) Validate() error {
	return c.validate()
}

// ReadTimeout returns SERIAL_READ_TIMEOUT_MS as a duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.SerialReadTimeoutMS) * time.Millisecond
}

// TickInterval returns TICK_INTERVAL_MS as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// ConsoleInterval returns CONSOLE_LOG_INTERVAL as a duration.
func (c *Config) ConsoleInterval() time.Duration {
	return time.Duration(c.ConsoleLogInterval) * time.Millisecond
}

// DisplayInterval returns DISPLAY_UPDATE_INTERVAL as a duration.
func (c *Config) DisplayInterval() time.Duration {
	return time.Duration(c.DisplayUpdateInterval) * time.Millisecond
}
