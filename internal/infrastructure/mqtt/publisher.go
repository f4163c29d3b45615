package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/litesql/internal/infrastructure/config"
)

const (
	connectTimeout  = 10 * time.Second
	publishTimeout  = 5 * time.Second
	keepAlive       = 60 * time.Second
	disconnectGrace = 500 // milliseconds

	// maxEventSize bounds one connection event payload.
	maxEventSize = 64 << 10

	// presenceQoS is used for the status topic regardless of the configured QoS.
	presenceQoS = 1
)

var (
	// ErrConnectionFailed is returned by Connect when the broker does not accept the session.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrOffline is returned while the broker connection is down. Paho keeps reconnecting.
	ErrOffline = errors.New("mqtt: broker connection down")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("mqtt: publisher closed")

	// ErrPublishFailed wraps broker-side or timeout failures of a publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrEventTooLarge is returned for payloads above the event size limit.
	ErrEventTooLarge = errors.New("mqtt: event payload too large")
)

// Logger receives connection state changes.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type discardLogger struct{}

func (discardLogger) Info(string, ...any) {}
func (discardLogger) Warn(string, ...any) {}

// Publisher announces a litesql process on an MQTT broker and forwards the
// lifecycle events of its database connections.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Publisher struct {
	client   pahomqtt.Client
	topics   Topics
	clientID string
	qos      byte
	log      Logger
	closed   atomic.Bool
}

// Connect opens a session with the broker in cfg.
//
// A Last Will marks the process offline if the session drops, and every
// successful (re)connect publishes a retained online presence. Paho
// reconnects in the background with the configured backoff; events
// published meanwhile fail with ErrOffline.
func Connect(cfg config.MQTTConfig, log Logger) (*Publisher, error) {
	if log == nil {
		log = discardLogger{}
	}

	p := &Publisher{
		topics:   Topics{Prefix: cfg.TopicPrefix, ClientID: cfg.Broker.ClientID},
		clientID: cfg.Broker.ClientID,
		qos:      eventQoS(cfg.QoS),
		log:      log,
	}
	p.client = pahomqtt.NewClient(p.clientOptions(cfg))

	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: no answer from %s within %v", ErrConnectionFailed, brokerURL(cfg.Broker), connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return p, nil
}

// clientOptions maps cfg onto paho options and hooks the presence
// announcements into the connection callbacks.
func (p *Publisher) clientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetKeepAlive(keepAlive).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetBinaryWill(p.topics.Status(), willPresence(p.clientID), presenceQoS, true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetOnConnectHandler(func(client pahomqtt.Client) {
		// Runs on paho's goroutine; do not wait on the token here.
		client.Publish(p.topics.Status(), presenceQoS, true, onlinePresence(p.clientID))
		p.log.Info("MQTT session established", "client_id", p.clientID)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.log.Warn("MQTT connection lost, events are dropped until it returns", "client_id", p.clientID, "error", err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		p.log.Info("reconnecting to MQTT broker", "client_id", p.clientID)
	})

	return opts
}

// Topics returns the topics this publisher writes to.
func (p *Publisher) Topics() Topics {
	return p.topics
}

// PublishConnectionEvent publishes payload, not retained, on the event
// topic of the database connection connID and waits for the broker.
func (p *Publisher) PublishConnectionEvent(connID string, payload []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if len(payload) > maxEventSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrEventTooLarge, len(payload), maxEventSize)
	}
	if p.client == nil || !p.client.IsConnectionOpen() {
		return ErrOffline
	}

	return waitPublish(p.client.Publish(p.topics.ConnectionEvents(connID), p.qos, false, payload))
}

// Close replaces the retained presence with a shutdown notice and ends the
// session. Only the first call does anything.
func (p *Publisher) Close() error {
	if p.client == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if p.client.IsConnectionOpen() {
		err = waitPublish(p.client.Publish(p.topics.Status(), presenceQoS, true, shutdownPresence(p.clientID)))
	}
	p.client.Disconnect(disconnectGrace)

	if err != nil {
		return fmt.Errorf("announcing shutdown: %w", err)
	}
	return nil
}

func waitPublish(token pahomqtt.Token) error {
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: no acknowledgement within %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// eventQoS returns the configured QoS, or 1 when it is out of range.
func eventQoS(qos int) byte {
	if qos < 0 || qos > 2 {
		return 1
	}
	return byte(qos)
}

func brokerURL(b config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port)
}
