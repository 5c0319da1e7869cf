// Package mqttsink publishes poses to an MQTT broker as retained JSON
// messages so late subscribers see the current attitude immediately.
package mqttsink

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"attview/internal/pipeline"
)

// ErrNotConnected is returned once per outage; later poses published while
// the broker is unreachable are dropped silently and counted.
var ErrNotConnected = errors.New("mqtt: not connected")

type Options struct {
	Broker   string
	Topic    string
	ClientID string

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// publisher is the subset of mqtt.Client the sink uses.
type publisher interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type Sink struct {
	client publisher
	topic  string
	logger *log.Logger

	sent     atomic.Uint64
	dropped  atomic.Uint64
	reported atomic.Bool
}

// New creates the client and starts connecting in the background. Publish
// drops poses until the first connection succeeds.
func New(opts Options) (*Sink, error) {
	broker := strings.TrimSpace(opts.Broker)
	if broker == "" {
		return nil, fmt.Errorf("mqtt: broker is required")
	}
	topic := strings.TrimSpace(opts.Topic)
	if topic == "" {
		return nil, fmt.Errorf("mqtt: topic is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Sink{topic: topic, logger: logger}

	co := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetConnectTimeout(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(func(mqtt.Client) {
			s.reported.Store(false)
			logger.Printf("mqtt: connected to %s, publishing to %s", broker, topic)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Printf("warn: mqtt: connection lost: %v", err)
		})

	client := mqtt.NewClient(co)
	// With connect retry enabled the token only completes once connected.
	_ = client.Connect()
	s.client = client
	return s, nil
}

func newWithClient(c publisher, topic string, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.Default()
	}
	return &Sink{client: c, topic: topic, logger: logger}
}

// Publish implements pipeline.Presenter. QoS 0 publishes are handed to the
// client without waiting for the network write.
func (s *Sink) Publish(p pipeline.Pose) error {
	if s == nil || s.client == nil {
		return nil
	}
	if !s.client.IsConnectionOpen() {
		s.dropped.Add(1)
		if s.reported.CompareAndSwap(false, true) {
			return ErrNotConnected
		}
		return nil
	}
	s.reported.Store(false)

	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("mqtt: marshal pose: %w", err)
	}
	tok := s.client.Publish(s.topic, 0, true, payload)
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			s.dropped.Add(1)
			return fmt.Errorf("mqtt: publish %s: %w", s.topic, err)
		}
	default:
	}
	s.sent.Add(1)
	return nil
}

func (s *Sink) Sent() uint64    { return s.sent.Load() }
func (s *Sink) Dropped() uint64 { return s.dropped.Load() }

func (s *Sink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	s.client.Disconnect(250)
	s.logger.Printf("mqtt: disconnected (sent=%d dropped=%d)", s.Sent(), s.Dropped())
	return nil
}
