package mqtt

import (
	"crypto/tls"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Handler receives the topic and payload of an incoming message.
type Handler func(topic string, payload []byte)

// ClientAPI is the broker surface the bridge needs.
type ClientAPI interface {
	Subscribe(topic string, cb Handler) error
	PublishWith(topic string, payload []byte, retain bool) error
}

// Client is a paho connection that restores its subscriptions after reconnects.
type Client struct {
	cli paho.Client

	mu   sync.Mutex
	subs map[string]Handler
}

// Dial connects to brokerURL (tcp://, mqtt://, ssl://, tls://, ws://, wss://).
// Credentials may be given in the URL user info.
func Dial(brokerURL string) (*Client, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse mqtt broker: %w", err)
	}

	server := u.Host
	switch u.Scheme {
	case "mqtt", "tcp", "":
		server = "tcp://" + server
	case "ssl", "tls":
		server = "ssl://" + server
	case "ws", "wss":
		server = u.Scheme + "://" + server + u.Path
	default:
		return nil, fmt.Errorf("unsupported mqtt scheme %q", u.Scheme)
	}

	c := &Client{subs: make(map[string]Handler)}

	opts := paho.NewClientOptions()
	opts.AddBroker(server)
	opts.SetClientID("gohome-" + uuid.NewString())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.OnConnect = func(paho.Client) {
		log.Printf("mqtt: connected to %s", u.Host)
		c.resubscribeAll()
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Printf("mqtt: connection lost: %v", err)
	}
	if u.User != nil {
		password, _ := u.User.Password()
		opts.SetUsername(u.User.Username())
		opts.SetPassword(password)
	}
	if u.Scheme == "ssl" || u.Scheme == "tls" || u.Scheme == "wss" {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	c.cli = paho.NewClient(opts)
	if token := c.cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return c, nil
}

func (c *Client) Subscribe(topic string, cb Handler) error {
	c.mu.Lock()
	c.subs[topic] = cb
	c.mu.Unlock()

	return c.subscribe(topic, cb)
}

func (c *Client) PublishWith(topic string, payload []byte, retain bool) error {
	token := c.cli.Publish(topic, 0, retain, payload)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (c *Client) Close() {
	c.cli.Disconnect(250)
}

func (c *Client) subscribe(topic string, cb Handler) error {
	token := c.cli.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		cb(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("mqtt: subscribed %s", topic)
	return nil
}

func (c *Client) resubscribeAll() {
	if c.cli == nil {
		return
	}

	c.mu.Lock()
	subs := make(map[string]Handler, len(c.subs))
	for topic, cb := range c.subs {
		subs[topic] = cb
	}
	c.mu.Unlock()

	for topic, cb := range subs {
		if err := c.subscribe(topic, cb); err != nil {
			log.Printf("mqtt: resubscribe %s failed: %v", topic, err)
		}
	}
}
