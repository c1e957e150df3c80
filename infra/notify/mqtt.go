// Package notify delivers driver assignment notifications over MQTT.
// The mobile app subscribes to a per-user topic and surfaces the
// assignment as a push notification.
package notify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/GenuineDickies/pat-sub001/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	TopicPrefix string      `json:"topic_prefix"`
	QoS         byte        `json:"qos"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	TLSConfig   *tls.Config `json:"-"`
}

// SetDefaults applies sensible defaults to unset fields.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "notify/driver"
	}
	if c.ClientID == "" {
		c.ClientID = "dispatch-notifier"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 100
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// MQTTNotifier publishes assignment messages to per-user topics using
// Eclipse Paho.
type MQTTNotifier struct {
	cli         pahoClient
	topicPrefix string
	qos         byte
	maxRetries  int
	backoff     time.Duration
	log         logger.Logger
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewMQTTNotifier connects to the MQTT broker described by cfg.
func NewMQTTNotifier(cfg Config) (*MQTTNotifier, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt-notifier")
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &MQTTNotifier{
		cli:         c,
		topicPrefix: cfg.TopicPrefix,
		qos:         cfg.QoS,
		maxRetries:  cfg.MaxRetries,
		backoff:     time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:         log,
	}, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the
// config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

type assignmentMessage struct {
	MessageID string `json:"message_id"`
	UserID    int64  `json:"user_id"`
	RequestID int64  `json:"request_id"`
	Summary   string `json:"summary"`
	Timestamp int64  `json:"timestamp"`
}

// NotifyDriverAssigned publishes the assignment to the driver's user
// topic, retrying with backoff on publish failure.
func (n *MQTTNotifier) NotifyDriverAssigned(ctx context.Context, userID, requestID int64, summary string) error {
	msg := assignmentMessage{
		MessageID: uuid.NewString(),
		UserID:    userID,
		RequestID: requestID,
		Summary:   summary,
		Timestamp: time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%d/assignment", n.topicPrefix, userID)

	var publishErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		token := n.cli.Publish(topic, n.qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			n.log.Infof("sent assignment %s to %s", msg.MessageID, topic)
			return nil
		}
		n.log.Warnf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.backoff):
		}
	}
	return fmt.Errorf("publish assignment to %s: %w", topic, publishErr)
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close() {
	n.cli.Disconnect(250)
}
