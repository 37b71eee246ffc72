// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gesture_lock/internal/acquisition"
	"github.com/relabs-tech/gesture_lock/internal/events"
	"github.com/relabs-tech/gesture_lock/internal/ui"
)

const publishTimeout = 2 * time.Second

// mqttConn is the part of mqtt.Client the bridge uses.
type mqttConn interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Command is the JSON form accepted on the command topic. A bare
// "enroll"/"record"/"authenticate"/"unlock" payload is accepted too.
type Command struct {
	Request string `json:"request"`
}

// Bridge mirrors status and session results to MQTT and turns command
// messages into requests.
type Bridge struct {
	client      mqttConn
	statusTopic string
	resultTopic string
	raise       func(events.Request, string)
	onError     func()
}

// NewBridge publishes on the given topics. raise receives remote requests
// tagged with source "mqtt"; onError, if set, is called on failed publishes.
func NewBridge(client mqttConn, statusTopic, resultTopic string, raise func(events.Request, string), onError func()) *Bridge {
	return &Bridge{
		client:      client,
		statusTopic: statusTopic,
		resultTopic: resultTopic,
		raise:       raise,
		onError:     onError,
	}
}

// ConnectMQTT connects a paho client to broker.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", broker, token.Error())
	}
	log.Printf("mqtt: connected to %s as %s", broker, clientID)
	return client, nil
}

// Subscribe listens for commands on topic.
func (b *Bridge) Subscribe(topic string) error {
	token := b.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		b.handleCommand(msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", topic, err)
	}
	log.Printf("mqtt: subscribed to %s", topic)
	return nil
}

func (b *Bridge) handleCommand(payload []byte) {
	name := strings.TrimSpace(string(payload))
	if bytes.HasPrefix(bytes.TrimSpace(payload), []byte("{")) {
		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			log.Printf("mqtt: command unmarshal error: %v", err)
			return
		}
		name = cmd.Request
	}
	req, err := events.ParseRequest(strings.ToLower(name))
	if err != nil {
		log.Printf("mqtt: ignoring command: %v", err)
		return
	}
	log.Printf("mqtt: %s requested", req)
	b.raise(req, "mqtt")
}

// ShowStatus publishes s retained, so late subscribers see the lock state.
func (b *Bridge) ShowStatus(s ui.Status) {
	b.publish(b.statusTopic, true, s)
}

// SessionDone publishes the session summary.
func (b *Bridge) SessionDone(s acquisition.Session) {
	b.publish(b.resultTopic, false, s)
}

func (b *Bridge) publish(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("mqtt: marshal error (%s): %v", topic, err)
		return
	}
	// status fan-out must not stall the session, so wait with a bound
	token := b.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		log.Printf("mqtt: publish error (%s): %v", topic, token.Error())
		if b.onError != nil {
			b.onError()
		}
	}
}
