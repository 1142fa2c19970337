package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Alwanly/axon-agent/pkg/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT 3.1.1 CONNACK return codes sent by the broker. The client uses
// codes above connNotAuthorized for local failures such as a failed dial.
const (
	connServerUnavailable byte = 0x03
	connNotAuthorized     byte = 0x05
)

type MQTTConfig struct {
	Host           string
	Port           int
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	QoS            byte
}

type mqttPubSub struct {
	cfg       MQTTConfig
	client    mqtt.Client
	logger    *logger.CanonicalLogger
	messageCh chan Message
	onConnect ConnectHandler
	onLost    LostHandler
	closed    chan struct{}
	closeOnce sync.Once
}

// NewMQTTPubSub creates a broker backed by an MQTT client. The client keeps
// its own reconnect loop; OnConnect fires on every accepted (re)connect.
func NewMQTTPubSub(cfg MQTTConfig, log *logger.CanonicalLogger) Broker {
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 60 * time.Second
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &mqttPubSub{
		cfg:       cfg,
		logger:    log,
		messageCh: make(chan Message, 16),
		closed:    make(chan struct{}),
	}
}

func (m *mqttPubSub) OnConnect(h ConnectHandler)     { m.onConnect = h }
func (m *mqttPubSub) OnConnectionLost(h LostHandler) { m.onLost = h }

func (m *mqttPubSub) brokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", m.cfg.Host, m.cfg.Port)
}

// Connect performs the initial connection. A refused or timed out connect is
// reported through OnConnect (when the broker answered) and returned as ErrConnect.
func (m *mqttPubSub) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(m.brokerURL()).
		SetClientID(m.cfg.ClientID).
		SetKeepAlive(m.cfg.KeepAlive).
		SetConnectTimeout(m.cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetOnConnectHandler(func(mqtt.Client) {
			if m.onConnect != nil {
				m.onConnect(0)
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			m.logger.WithError(err).Error("mqtt connection lost")
			if m.onLost != nil {
				m.onLost(err)
			}
		}).
		SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
			m.logger.Info("mqtt reconnecting", logger.String("broker", m.brokerURL()))
		})
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}

	m.client = mqtt.NewClient(opts)
	token := m.client.Connect()
	if err := wait(ctx, token); err != nil {
		if ct, ok := token.(*mqtt.ConnectToken); ok {
			if rc := ct.ReturnCode(); rc > 0 && rc <= connNotAuthorized {
				if m.onConnect != nil {
					m.onConnect(rc)
				}
				if rc != connServerUnavailable {
					return fmt.Errorf("%w: %w: %s: %v", ErrConnect, ErrRefused, m.brokerURL(), err)
				}
			}
		}
		return fmt.Errorf("%w: %s: %v", ErrConnect, m.brokerURL(), err)
	}

	m.logger.Info("mqtt client connected",
		logger.String("broker", m.brokerURL()),
		logger.String("client_id", m.cfg.ClientID),
		logger.Duration("keepalive", m.cfg.KeepAlive),
	)
	return nil
}

// Publish publishes a message to an MQTT topic
func (m *mqttPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if m.client == nil {
		return fmt.Errorf("%w: not connected", ErrPublish)
	}
	if err := wait(ctx, m.client.Publish(channel, m.cfg.QoS, false, payload)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublish, channel, err)
	}
	return nil
}

// Subscribe subscribes to MQTT topics. Inbound messages are queued on the
// returned channel; when it is full delivery blocks the client's router.
func (m *mqttPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan Message, error) {
	if len(channels) == 0 {
		return m.messageCh, nil
	}
	if m.client == nil {
		return nil, fmt.Errorf("%w: not connected", ErrSubscribe)
	}

	filters := make(map[string]byte, len(channels))
	for _, c := range channels {
		filters[c] = m.cfg.QoS
	}
	if err := wait(ctx, m.client.SubscribeMultiple(filters, m.deliver)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubscribe, err)
	}

	m.logger.Info("subscribed to mqtt topics", logger.Any("topics", channels))
	return m.messageCh, nil
}

func (m *mqttPubSub) deliver(_ mqtt.Client, msg mqtt.Message) {
	select {
	case m.messageCh <- Message{Channel: msg.Topic(), Payload: msg.Payload()}:
	case <-m.closed:
	}
}

// Unsubscribe unsubscribes from MQTT topics
func (m *mqttPubSub) Unsubscribe(ctx context.Context, channels ...string) error {
	if m.client == nil || len(channels) == 0 {
		return nil
	}
	return wait(ctx, m.client.Unsubscribe(channels...))
}

// Close stops delivery and disconnects, giving in-flight work 250ms to finish.
func (m *mqttPubSub) Close() error {
	m.closeOnce.Do(func() {
		close(m.closed)
		if m.client != nil {
			m.client.Disconnect(250)
		}
		m.logger.Info("mqtt client disconnected")
	})
	return nil
}

// wait blocks until the token completes or ctx is done.
func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
