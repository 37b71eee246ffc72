// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gesture_lock/internal/config"
	"github.com/relabs-tech/gesture_lock/internal/ui"
)

// consoleResult is the subset of a published session the console prints.
type consoleResult struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Samples int    `json:"samples"`
	Outcome string `json:"outcome"`
	Match   *struct {
		Strategy string      `json:"strategy"`
		Axes     [3]*float64 `json:"axes"`
		Distance *float64    `json:"distance"`
		Accepted bool        `json:"accepted"`
	} `json:"match"`
	Travel [3]float64 `json:"travel"`
}

func formatStatus(payload []byte) (string, error) {
	var s ui.Status
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", err
	}
	return fmt.Sprintf("[STATUS] %-20s lamp=%s", s.Text, s.Lamp), nil
}

func formatResult(payload []byte) (string, error) {
	var r consoleResult
	if err := json.Unmarshal(payload, &r); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%-6s] %-16s samples=%3d travel=(%.2f, %.2f, %.2f)",
		strings.ToUpper(r.Kind), r.Outcome, r.Samples, r.Travel[0], r.Travel[1], r.Travel[2])
	if r.Match != nil {
		b.WriteString(" r=(")
		for i, v := range r.Match.Axes {
			if i > 0 {
				b.WriteString(", ")
			}
			if v == nil {
				b.WriteString("NaN")
			} else {
				fmt.Fprintf(&b, "%.3f", *v)
			}
		}
		b.WriteString(")")
		if r.Match.Distance != nil {
			fmt.Fprintf(&b, " dtw=%.1f", *r.Match.Distance)
		}
	}
	fmt.Fprintf(&b, " id=%s", r.ID)
	return b.String(), nil
}

// RunConsoleMQTT prints lock status and session results to out until ctx
// is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("console: MQTT_BROKER is not set")
	}
	client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	subs := []struct {
		topic  string
		format func([]byte) (string, error)
	}{
		{cfg.TopicStatus, formatStatus},
		{cfg.TopicResult, formatResult},
	}
	for _, s := range subs {
		format := s.format
		token := client.Subscribe(s.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				log.Printf("console: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			fmt.Fprintln(out, line)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", s.topic)
	}

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}
