// Package mqttpublish publishes best-effort relay state events over
// MQTT using github.com/eclipse/paho.mqtt.golang. Publishing never
// blocks the dispatcher: events raised while the client is not
// connected are dropped without logging, and a failed publish is
// logged at debug level and otherwise ignored.
package mqttpublish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kb9vcn/dmr-relay/pkg/logger"
)

// Config holds MQTT publisher configuration.
type Config struct {
	Enabled     bool
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	Retained    bool
}

// Publisher publishes relay events to an MQTT broker.
type Publisher struct {
	config Config
	log    *logger.Logger
	client mqtt.Client
}

// NodeStateEvent reports a node's registration or removal.
type NodeStateEvent struct {
	NodeID    uint32    `json:"node_id"`
	Callsign  string    `json:"callsign,omitempty"`
	State     string    `json:"state"` // "connected" or "disconnected"
	Timestamp time.Time `json:"timestamp"`
}

// TalkgroupOwnerEvent reports a talkgroup ownership change.
type TalkgroupOwnerEvent struct {
	TG        uint32    `json:"tg"`
	OwnerNode uint32    `json:"owner_node,omitempty"`
	Owned     bool      `json:"owned"`
	Timestamp time.Time `json:"timestamp"`
}

// ParrotEvent reports a parrot capture or playback transition.
type ParrotEvent struct {
	NodeID    uint32    `json:"node_id"`
	State     string    `json:"state"` // "capturing" or "playing"
	Frames    int       `json:"frames"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a new MQTT publisher. The connection is established
// lazily in Start.
func New(config Config, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &Publisher{
		config: config,
		log:    log.WithComponent("mqtt"),
	}
}

// Start connects to the configured broker. It is a no-op when the
// publisher is disabled.
func (p *Publisher) Start(ctx context.Context) error {
	if !p.config.Enabled {
		p.log.Info("mqtt publisher disabled")
		return nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(p.config.Broker).
		SetClientID(p.config.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(5 * time.Second)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}

	p.client = mqtt.NewClient(opts)

	p.log.Info("connecting to mqtt broker",
		logger.String("broker", p.config.Broker),
		logger.String("client_id", p.config.ClientID))

	token := p.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		p.log.Warn("mqtt connect timed out, will retry in background")
		return nil
	}
	if err := token.Error(); err != nil {
		p.log.Warn("mqtt connect failed, will retry in background", logger.Error(err))
	}
	return nil
}

// Stop disconnects from the broker.
func (p *Publisher) Stop() {
	if p.client != nil && p.client.IsConnected() {
		p.log.Info("disconnecting mqtt publisher")
		p.client.Disconnect(250)
	}
}

// PublishNodeState publishes a node connect/disconnect event.
func (p *Publisher) PublishNodeState(event NodeStateEvent) {
	p.publish(fmt.Sprintf("node/%d/state", event.NodeID), event)
}

// PublishTalkgroupOwner publishes a talkgroup ownership change.
func (p *Publisher) PublishTalkgroupOwner(event TalkgroupOwnerEvent) {
	p.publish(fmt.Sprintf("tg/%d/owner", event.TG), event)
}

// PublishParrot publishes a parrot capture/playback transition.
func (p *Publisher) PublishParrot(event ParrotEvent) {
	p.publish(fmt.Sprintf("node/%d/parrot", event.NodeID), event)
}

func (p *Publisher) publish(suffix string, event interface{}) {
	if !p.config.Enabled || p.client == nil || !p.client.IsConnected() {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("failed to serialize mqtt event", logger.String("topic", suffix), logger.Error(err))
		return
	}

	topic := p.formatTopic(suffix)
	token := p.client.Publish(topic, p.config.QoS, p.config.Retained, payload)
	go func() {
		if token.WaitTimeout(2*time.Second) && token.Error() != nil {
			p.log.Debug("mqtt publish failed", logger.String("topic", topic), logger.Error(token.Error()))
		}
	}()
}

func (p *Publisher) formatTopic(suffix string) string {
	prefix := strings.TrimSuffix(p.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}
