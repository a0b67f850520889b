package mqttpublish

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	config := Config{
		Enabled:     true,
		Broker:      "tcp://localhost:1883",
		TopicPrefix: "dmr/relay",
		ClientID:    "test-client",
		QoS:         1,
	}

	pub := New(config, nil)
	if pub == nil {
		t.Fatal("expected non-nil publisher")
	}
	if pub.config.Broker != config.Broker {
		t.Errorf("broker = %s, want %s", pub.config.Broker, config.Broker)
	}
}

func TestStart_Disabled(t *testing.T) {
	pub := New(Config{Enabled: false}, nil)
	if err := pub.Start(context.Background()); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestStop_WithoutStart(t *testing.T) {
	pub := New(Config{Enabled: false}, nil)
	pub.Stop() // must not panic
}

func TestPublish_DisabledIsNoop(t *testing.T) {
	pub := New(Config{Enabled: false, TopicPrefix: "dmr/relay"}, nil)

	// None of these may panic even though no client was ever connected.
	pub.PublishNodeState(NodeStateEvent{NodeID: 312100, State: "connected", Timestamp: time.Now()})
	pub.PublishTalkgroupOwner(TalkgroupOwnerEvent{TG: 3100, OwnerNode: 312100, Owned: true, Timestamp: time.Now()})
	pub.PublishParrot(ParrotEvent{NodeID: 312100, State: "capturing", Frames: 4, Timestamp: time.Now()})
}

func TestFormatTopic(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		suffix   string
		expected string
	}{
		{"simple", "dmr/relay", "node/312100/state", "dmr/relay/node/312100/state"},
		{"trailing slash", "dmr/relay/", "tg/3100/owner", "dmr/relay/tg/3100/owner"},
		{"empty prefix", "", "node/312100/parrot", "node/312100/parrot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := New(Config{TopicPrefix: tt.prefix}, nil)
			if got := pub.formatTopic(tt.suffix); got != tt.expected {
				t.Errorf("formatTopic(%q) = %q, want %q", tt.suffix, got, tt.expected)
			}
		})
	}
}

func TestEventSerialization(t *testing.T) {
	events := []interface{}{
		NodeStateEvent{NodeID: 312100, Callsign: "W1ABC", State: "connected", Timestamp: time.Now()},
		TalkgroupOwnerEvent{TG: 3100, OwnerNode: 312100, Owned: true, Timestamp: time.Now()},
		ParrotEvent{NodeID: 312100, State: "playing", Frames: 12, Timestamp: time.Now()},
	}

	for _, e := range events {
		if _, err := json.Marshal(e); err != nil {
			t.Errorf("failed to serialize %#v: %v", e, err)
		}
	}
}
