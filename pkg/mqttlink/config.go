package mqttlink

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config configures the MQTT link.
type Config struct {
	// Broker URL, e.g. mqtt://broker:1883 or tls://broker:8883.
	Broker   string
	Username string
	Password string
	ClientID string

	// TopicPrefix and Gadget form the topic root <prefix>/<gadget>.
	TopicPrefix string
	Gadget      string

	KeepAlive      uint16
	ConnectTimeout time.Duration
}

func setDefaultConfig(cfg *Config) {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "tablebot"
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 30
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = cfg.Gadget
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker URL is required")
	}
	u, err := url.Parse(c.Broker)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid broker URL %q: scheme and host are required", c.Broker)
	}
	if c.Gadget == "" {
		return fmt.Errorf("gadget topic segment is required")
	}
	for _, seg := range []string{c.TopicPrefix, c.Gadget} {
		if strings.ContainsAny(seg, "+#/") {
			return fmt.Errorf("topic segment %q must not contain '+', '#' or '/'", seg)
		}
	}
	return nil
}

// DirectiveTopic is where companions publish directives.
func (c *Config) DirectiveTopic() string {
	return c.TopicPrefix + "/" + c.Gadget + "/directive"
}

// EventTopic is where the gadget publishes events.
func (c *Config) EventTopic() string {
	return c.TopicPrefix + "/" + c.Gadget + "/event"
}

// StatusTopic holds the retained status snapshot.
func (c *Config) StatusTopic() string {
	return c.TopicPrefix + "/" + c.Gadget + "/status"
}
