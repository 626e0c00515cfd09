// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/mocap_costume/internal/config"
	"github.com/relabs-tech/mocap_costume/internal/fusion"
	"github.com/relabs-tech/mocap_costume/internal/imu"
	"github.com/relabs-tech/mocap_costume/internal/monitoring"
)

// publishTimeout bounds a single publish so a dead broker cannot wedge the sink.
const publishTimeout = 2 * time.Second

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// FramesMessage is the payload on TOPIC_FRAMES.
type FramesMessage struct {
	Time       time.Time              `json:"time"`
	Calibrated bool                   `json:"calibrated"`
	Frames     []imu.SensorFrame      `json:"frames"`
	Root       fusion.RootMotionState `json:"root_motion"`
}

// MQTTSink publishes retained snapshots and listens for operator commands.
type MQTTSink struct {
	client      mqtt.Client
	pub         publisher
	topicFrames string
	topicPose   string
}

// ConnectMQTT connects to the configured broker and subscribes to the
// command topic, feeding commands to submit.
func ConnectMQTT(cfg *config.Config, submit func(Command)) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	monitoring.Logf("mqtt: connected to broker at %s", cfg.MQTTBroker)

	if cfg.TopicCommand != "" {
		token := client.Subscribe(cfg.TopicCommand, 0, func(_ mqtt.Client, msg mqtt.Message) {
			handleRemoteCommand("mqtt", msg.Payload(), submit)
		})
		token.Wait()
		if token.Error() != nil {
			client.Disconnect(250)
			return nil, fmt.Errorf("MQTT subscribe %s: %w", cfg.TopicCommand, token.Error())
		}
		monitoring.Logf("mqtt: subscribed to %s", cfg.TopicCommand)
	}

	s := newMQTTSink(client, cfg.TopicFrames, cfg.TopicPose)
	s.client = client
	return s, nil
}

func newMQTTSink(pub publisher, topicFrames, topicPose string) *MQTTSink {
	return &MQTTSink{pub: pub, topicFrames: topicFrames, topicPose: topicPose}
}

func handleRemoteCommand(from string, payload []byte, submit func(Command)) {
	cmd, ok := parseRemoteCommand(payload)
	if !ok {
		monitoring.Logf("%s: ignoring command %q", from, payload)
		return
	}
	monitoring.Logf("%s: received %s command", from, cmd)
	submit(cmd)
}

func (m *MQTTSink) Name() string { return "mqtt" }

func (m *MQTTSink) Handle(s fusion.Snapshot) error {
	if m.topicFrames != "" {
		payload, err := json.Marshal(FramesMessage{
			Time:       s.Time,
			Calibrated: s.Calibrated,
			Frames:     s.Frames,
			Root:       s.Root,
		})
		if err != nil {
			return fmt.Errorf("json marshal error (frames): %w", err)
		}
		if err := m.publish(m.topicFrames, payload); err != nil {
			return err
		}
	}

	if m.topicPose != "" && s.Pose != nil {
		payload, err := json.Marshal(s.Pose)
		if err != nil {
			return fmt.Errorf("json marshal error (pose): %w", err)
		}
		if err := m.publish(m.topicPose, payload); err != nil {
			return err
		}
	}
	return nil
}

func (m *MQTTSink) publish(topic string, payload []byte) error {
	token := m.pub.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("MQTT publish timeout (%s)", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish error (%s): %w", topic, err)
	}
	return nil
}

func (m *MQTTSink) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}
