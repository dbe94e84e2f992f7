package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTSource subscribes to a broker topic that carries daemon snapshots.
type MQTTSource struct {
	Broker   string // host:port
	Topic    string
	ClientID string
	QoS      byte
	Logger   *slog.Logger

	// newClient is replaced in tests.
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// NewMQTTSource creates a source for topic on broker. An empty clientID is replaced
// with a generated one.
func NewMQTTSource(broker, topic, clientID string) *MQTTSource {
	if clientID == "" {
		clientID = "pyroshow-" + uuid.NewString()
	}
	return &MQTTSource{Broker: broker, Topic: topic, ClientID: clientID, QoS: 1}
}

func (s *MQTTSource) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// options leaves initial connect retries to the Monitor; a failed Run disconnects
// its client so no background retry outlives it.
func (s *MQTTSource) options() *mqtt.ClientOptions {
	log := s.logger()
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", s.Broker))
	opts.SetClientID(s.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(30 * time.Second)
	// Messages must reach the handler in arrival order.
	opts.SetOrderMatters(true)

	opts.OnConnect = func(c mqtt.Client) {
		log.Info("mqtt connection established",
			"broker", s.Broker,
			"client_id", s.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", s.Broker)
	}
	return opts
}

// Run connects, subscribes and forwards messages until ctx is cancelled.
func (s *MQTTSource) Run(ctx context.Context, out chan<- []byte) error {
	newClient := s.newClient
	if newClient == nil {
		newClient = mqtt.NewClient
	}
	client := newClient(s.options())
	log := s.logger()

	log.Info("connecting to mqtt broker", "broker", s.Broker)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	defer func() {
		client.Disconnect(250) // 250ms grace period
		log.Info("mqtt disconnected")
	}()

	// out must not be written once Run has returned.
	var mu sync.Mutex
	finished := false
	defer func() {
		mu.Lock()
		finished = true
		mu.Unlock()
	}()
	token = client.Subscribe(s.Topic, s.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		mu.Lock()
		defer mu.Unlock()
		if finished {
			return
		}
		select {
		case out <- msg.Payload():
		case <-ctx.Done():
		}
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscription failed: %w", err)
	}
	log.Info("subscribed to snapshot topic", "topic", s.Topic, "qos", s.QoS)

	<-ctx.Done()
	client.Unsubscribe(s.Topic).WaitTimeout(time.Second)
	return nil
}
