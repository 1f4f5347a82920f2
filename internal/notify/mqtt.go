package notify

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSink mirrors every state push onto a local broker so home-bus
// integrations can follow device state without polling the registry.
// Topic layout: <prefix>/<userId>/<deviceId>, retained.
type MQTTSink struct {
	client      mqtt.Client
	topicPrefix string
}

func NewMQTTSink(brokerURL, clientID, topicPrefix string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(pushTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(pushTimeout) {
		return nil, fmt.Errorf("connect to mqtt broker %q: timeout", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %q: %w", brokerURL, err)
	}
	return &MQTTSink{client: client, topicPrefix: topicPrefix}, nil
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Push(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.States)
	if err != nil {
		return fmt.Errorf("encode states: %w", err)
	}
	topic := fmt.Sprintf("%s/%s/%s", s.topicPrefix, n.UserID, n.DeviceID)

	token := s.client.Publish(topic, 0, true, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}

// Close disconnects from the broker, waiting briefly for in-flight work.
func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
}
