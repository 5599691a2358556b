package tele

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/mavgcs/helpers"
	"github.com/temoto/mavgcs/log2"
	tele_config "github.com/temoto/mavgcs/tele/config"
)

type transportMqtt struct {
	log       *log2.Log
	onCommand func([]byte) bool
	m         mqtt.Client
	mopt      *mqtt.ClientOptions
	stopCh    chan struct{}
	doneCh    chan struct{}
	backoff   helpers.Backoff
	broker    string

	topicState    string
	topicEvent    string
	topicResponse string
	topicCommand  string
}

func (self *transportMqtt) Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config, onCommand func([]byte) bool, willPayload []byte) error {
	self.log = log
	mqttLog := log.Clone(log2.LDebug)
	mqttLog.SetPrefix("tele.mqtt ")
	// paho loggers are package globals
	mqtt.CRITICAL = mqttLog
	mqtt.ERROR = mqttLog
	mqtt.WARN = mqttLog
	if teleConfig.MqttLogDebug {
		mqtt.DEBUG = mqttLog
	}

	if teleConfig.MqttBroker == "" {
		return errors.NotValidf("tele mqtt_broker=empty")
	}
	prefix := teleConfig.Prefix()
	self.topicState = prefix + "/state"
	self.topicEvent = prefix + "/event"
	self.topicResponse = prefix + "/r"
	self.topicCommand = prefix + "/c"
	self.onCommand = onCommand
	self.broker = teleConfig.MqttBroker
	self.stopCh = make(chan struct{})
	self.doneCh = make(chan struct{})

	networkTimeout := helpers.IntSecondDefault(teleConfig.NetworkTimeoutSec, defaultNetworkTimeout)
	if networkTimeout < 1*time.Second {
		networkTimeout = 1 * time.Second
	}
	connectTimeout := networkTimeout * 3
	keepaliveTimeout := helpers.IntSecondDefault(teleConfig.KeepaliveSec, networkTimeout/2)
	self.backoff = helpers.Backoff{Min: 1 * time.Second, Max: connectTimeout, K: 2}

	defaultHandler := func(_ mqtt.Client, msg mqtt.Message) {
		self.log.Errorf("unexpected mqtt message topic=%s", msg.Topic())
	}

	tlsconf := new(tls.Config)
	if teleConfig.TlsCaFile != "" {
		tlsconf.RootCAs = x509.NewCertPool()
		cabytes, err := ioutil.ReadFile(teleConfig.TlsCaFile)
		if err != nil {
			return errors.Annotate(err, "tele tls_ca_file")
		}
		if !tlsconf.RootCAs.AppendCertsFromPEM(cabytes) {
			return errors.NotValidf("tele tls_ca_file=%s", teleConfig.TlsCaFile)
		}
	}
	self.mopt = mqtt.NewClientOptions().
		AddBroker(teleConfig.MqttBroker).
		SetAutoReconnect(true).
		SetBinaryWill(self.topicState, willPayload, 1, true).
		SetCleanSession(false).
		SetClientID(teleConfig.Client()).
		SetConnectTimeout(connectTimeout).
		SetDefaultPublishHandler(defaultHandler).
		SetKeepAlive(keepaliveTimeout).
		SetMaxReconnectInterval(connectTimeout).
		SetOnConnectHandler(self.onConnect).
		SetOrderMatters(false).
		SetPingTimeout(networkTimeout).
		SetTLSConfig(tlsconf).
		SetWriteTimeout(networkTimeout)
	if teleConfig.MqttUsername != "" {
		self.mopt.SetUsername(teleConfig.MqttUsername).SetPassword(teleConfig.MqttPassword)
	}
	self.m = mqtt.NewClient(self.mopt)

	go self.online()
	return nil
}

func (self *transportMqtt) Close() {
	close(self.stopCh)
	<-self.doneCh
	self.m.Disconnect(uint(self.mopt.PingTimeout / time.Millisecond))
}

func (self *transportMqtt) SendState(payload []byte) bool {
	t := self.m.Publish(self.topicState, 1, true, payload)
	err := self.tokenWait(t, "publish state")
	return err == nil
}

func (self *transportMqtt) SendEvent(payload []byte) bool {
	t := self.m.Publish(self.topicEvent, 1, false, payload)
	err := self.tokenWait(t, "publish event")
	return err == nil
}

func (self *transportMqtt) SendResponse(payload []byte) bool {
	t := self.m.Publish(self.topicResponse, 1, false, payload)
	err := self.tokenWait(t, "publish response")
	return err == nil
}

// First connect is retried here, reconnects are handled by paho.
func (self *transportMqtt) online() {
	defer close(self.doneCh)
	for {
		self.log.Debugf("tele connect broker=%s", self.broker)
		t := self.m.Connect()
		err := self.tokenWait(t, "connect")
		delay := self.backoff.DelayAfter(err == nil)
		if err == nil {
			return // success path
		}
		select {
		case <-time.After(delay):
		case <-self.stopCh:
			return
		}
	}
}

// Subscription is repeated on every reconnect.
func (self *transportMqtt) onConnect(client mqtt.Client) {
	self.log.Debugf("tele connected, subscribe %s", self.topicCommand)
	t := client.Subscribe(self.topicCommand, 1, self.mqttSubCommand)
	_ = self.tokenWait(t, "subscribe:"+self.topicCommand)
}

func (self *transportMqtt) mqttSubCommand(_ mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	if self.onCommand(payload) {
		msg.Ack()
	}
}

func (self *transportMqtt) tokenWait(t mqtt.Token, tag string) error {
	if !t.Wait() {
		err := errors.Timeoutf("%s", tag)
		self.log.Errorf("tele: MQTT %s", err.Error())
		return err
	}
	if err := t.Error(); err != nil {
		err = errors.Annotate(err, tag)
		self.log.Errorf("tele: MQTT %s", err.Error())
		return err
	}
	return nil
}
