// Package telemetry delivers committed detections to the field actuator over MQTT.
package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrPublish wraps every transport failure during a publish.
var ErrPublish = errors.New("publish failed")

// ErrMalformed is returned by ParseMessage for payloads that are not category|label|confidence.
var ErrMalformed = errors.New("malformed telemetry message")

// Publisher sends one message on a topic. It never retries and never queues.
type Publisher interface {
	Publish(topic, message string) error
}

// Message is a decoded telemetry payload.
type Message struct {
	Category   string
	Label      string
	Confidence float64
}

// ParseMessage decodes a "category|label|confidence" payload.
func ParseMessage(payload string) (Message, error) {
	parts := strings.Split(payload, "|")
	if len(parts) != 3 {
		return Message{}, fmt.Errorf("%w: %q", ErrMalformed, payload)
	}

	conf, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Message{}, fmt.Errorf("%w: confidence %q", ErrMalformed, parts[2])
	}

	return Message{Category: parts[0], Label: parts[1], Confidence: conf}, nil
}
