// Package tele_config is `tele` section of mavgcs.hcl.
// Separate package lets state parse config without importing MQTT client.
package tele_config

type Config struct { //nolint:maligned
	Enabled           bool   `hcl:"enable"`
	LogDebug          bool   `hcl:"log_debug"`
	ClientID          string `hcl:"client_id"`
	TopicPrefix       string `hcl:"topic_prefix"`
	KeepaliveSec      int    `hcl:"keepalive_sec"`
	MqttBroker        string `hcl:"mqtt_broker"`
	MqttLogDebug      bool   `hcl:"mqtt_log_debug"`
	MqttUsername      string `hcl:"mqtt_username"`
	MqttPassword      string `hcl:"mqtt_password"` // secret
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
	StateIntervalSec  int    `hcl:"state_interval_sec"`
	TlsCaFile         string `hcl:"tls_ca_file"`
	PersistPath       string `hcl:"persist_path"`
}

const DefaultClientID = "mavgcs"

func (self Config) Client() string {
	if self.ClientID != "" {
		return self.ClientID
	}
	return DefaultClientID
}

// Prefix of every topic, defaults to client id.
func (self Config) Prefix() string {
	if self.TopicPrefix != "" {
		return self.TopicPrefix
	}
	return self.Client()
}
