// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/mocap_costume/internal/config"
	"github.com/relabs-tech/mocap_costume/internal/monitoring"
	"github.com/relabs-tech/mocap_costume/internal/skeleton"
)

// printFrames renders a TOPIC_FRAMES payload.
func printFrames(w io.Writer, payload []byte) error {
	var m FramesMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("frames unmarshal error: %w", err)
	}
	state := "uncalibrated"
	if m.Calibrated {
		state = "calibrated"
	}
	fmt.Fprintf(w, "[FRAMES] %s %s\n", m.Time.Format("15:04:05.000"), state)
	for _, f := range m.Frames {
		if f.Seen() {
			fmt.Fprintln(w, FormatSensor(f))
		}
	}
	return nil
}

// printPose renders a TOPIC_POSE payload.
func printPose(w io.Writer, payload []byte) error {
	var p skeleton.Pose
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("pose unmarshal error: %w", err)
	}
	fmt.Fprintf(w, "[POSE]  root=(%6.2f, %6.2f, %6.2f)\n", p.RootPosition.X, p.RootPosition.Y, p.RootPosition.Z)
	for _, b := range p.Bones {
		fmt.Fprintf(w, "  %-14s w=%6.3f x=%6.3f y=%6.3f z=%6.3f\n", b.Name, b.World.W, b.World.X, b.World.Y, b.World.Z)
	}
	return nil
}

// RunConsoleMQTT subscribes to the frame and pose topics and prints them
// until ctx is cancelled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, w io.Writer) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-console")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	monitoring.Logf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	subs := []struct {
		topic string
		print func(io.Writer, []byte) error
	}{
		{cfg.TopicFrames, printFrames},
		{cfg.TopicPose, printPose},
	}
	for _, s := range subs {
		show := s.print
		token := client.Subscribe(s.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := show(w, msg.Payload()); err != nil {
				monitoring.Logf("console: %v", err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		monitoring.Logf("console: subscribed to %s", s.topic)
	}

	<-ctx.Done()
	monitoring.Logf("console: shutting down")
	return nil
}
