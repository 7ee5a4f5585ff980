// Package mqtt consumes live station readings from an MQTT broker, typically
// the topic an rtl_433 bridge publishes to.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const bufferSize = 1000

var errStopped = errors.New("subscriber stopped")

// Subscriber buffers messages from one topic and hands them out in batches.
// It implements pipeline.BatchExtractor.
type Subscriber struct {
	client        paho.Client
	topic         string
	flushInterval time.Duration
	logger        *slog.Logger

	mu        sync.RWMutex
	connected bool

	events   chan domain.RawEvent
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSubscriber configures a client for MQTT_BROKER:MQTT_PORT. Call Connect
// to start receiving.
func NewSubscriber(cfg *config.Config, logger *slog.Logger) *Subscriber {
	s := &Subscriber{
		topic:         cfg.MQTTTopic,
		flushInterval: cfg.BatchFlushInterval,
		logger:        logger,
		events:        make(chan domain.RawEvent, bufferSize),
		stopCh:        make(chan struct{}),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(c paho.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		// Subscriptions do not survive a clean-session reconnect.
		if err := s.subscribe(c); err != nil {
			logger.Error("mqtt subscribe failed", "topic", s.topic, "error", err)
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = paho.NewClient(opts)
	return s
}

// Connect starts the connection and waits for it, the context or Close.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return errStopped
	default:
	}
	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()
	const poll = 200 * time.Millisecond
	for !token.WaitTimeout(poll) {
		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return errStopped
		default:
		}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (s *Subscriber) subscribe(c paho.Client) error {
	token := c.Subscribe(s.topic, 1, func(_ paho.Client, msg paho.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", s.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.topic, err)
	}
	s.logger.Info("subscribed to mqtt topic", "topic", s.topic, "qos", 1)
	return nil
}

// handleMessage queues a message, blocking while the buffer is full so the
// broker connection applies backpressure instead of dropping readings.
func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))
	ev := domain.RawEvent{
		Value:     append([]byte(nil), payload...),
		Topic:     topic,
		Timestamp: domain.Now(),
	}
	select {
	case s.events <- ev:
	case <-s.stopCh:
	}
}

// ExtractBatch waits for the first message, then collects more until
// batchSize is reached or the flush interval elapses.
func (s *Subscriber) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	var batch []domain.RawEvent
	select {
	case ev := <-s.events:
		batch = append(batch, ev)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stopCh:
		return nil, errStopped
	}

	timer := time.NewTimer(s.flushInterval)
	defer timer.Stop()
	for len(batch) < batchSize {
		select {
		case ev := <-s.events:
			batch = append(batch, ev)
		case <-timer.C:
			return batch, nil
		case <-ctx.Done():
			return batch, nil
		}
	}
	return batch, nil
}

// CheckReadiness reports whether the broker connection is up.
func (s *Subscriber) CheckReadiness(_ context.Context) error {
	if !s.IsConnected() {
		return errors.New("mqtt client not connected")
	}
	return nil
}

// IsConnected returns whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Close unsubscribes and disconnects. Safe to call more than once.
func (s *Subscriber) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.IsConnected() {
		s.client.Unsubscribe(s.topic).WaitTimeout(2 * time.Second)
	}
	s.client.Disconnect(250)
	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
	return nil
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
