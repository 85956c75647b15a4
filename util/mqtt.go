package util

import (
	"fmt"
	"sync"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

var (
	clientMu   sync.RWMutex
	mqttClient MQTT.Client

	// initMu serializes MqttInit and guards appliedBroker, the settings of
	// the last successful connection.
	initMu        sync.Mutex
	appliedBroker *brokerSettings
)

var subscriptions map[string]MQTT.MessageHandler

var connectHandlers map[string]func(MQTT.Client)

var connectHandler MQTT.OnConnectHandler = func(client MQTT.Client) {
	Logger.Info().Msg("Connected")
	subscribe(client)
	client.Publish(Config.GetString("availability_topic"), 0, false, "online").Wait()
	if connectHandlers == nil {
		connectHandlers = make(map[string]func(client MQTT.Client))
	}
	for _, handler := range connectHandlers {
		handler(client)
	}
}

// brokerSettings are the config keys a broker connection is built from.
type brokerSettings struct {
	uri          string
	username     string
	password     string
	idBase       string
	cleanSession bool
	availability string
}

func currentBrokerSettings() brokerSettings {
	return brokerSettings{
		uri:          Config.GetString("broker_uri"),
		username:     Config.GetString("username"),
		password:     Config.GetString("password"),
		idBase:       Config.GetString("id_base"),
		cleanSession: Config.GetBool("cleansess"),
		availability: Config.GetString("availability_topic"),
	}
}

// CurrentClient returns the broker client, or nil before MqttInit.
func CurrentClient() MQTT.Client {
	clientMu.RLock()
	defer clientMu.RUnlock()
	return mqttClient
}

func setClient(c MQTT.Client) {
	clientMu.Lock()
	mqttClient = c
	clientMu.Unlock()
}

func RegisterMQTTConnectHook(name string, handler func(MQTT.Client)) {
	if connectHandlers == nil {
		connectHandlers = make(map[string]func(client MQTT.Client))
	}
	if handler == nil {
		delete(connectHandlers, name)
	} else {
		connectHandlers[name] = handler
	}
}

func subscribe(client MQTT.Client) {
	if subscriptions == nil {
		subscriptions = make(map[string]MQTT.MessageHandler)
	}
	for topic, handler := range subscriptions {
		if token := client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
			Logger.Error().Msgf("Error Subscribing to %v: %v", topic, token.Error())
		}
	}
}

func RegisterMQTTSubscription(topic string, handler MQTT.MessageHandler) {
	if subscriptions == nil {
		subscriptions = make(map[string]MQTT.MessageHandler)
	}
	if handler == nil {
		delete(subscriptions, topic)
	} else {
		subscriptions[topic] = handler
	}
}

func receiver(client MQTT.Client, message MQTT.Message) {
	Logger.Warn().Msgf("Received message on %v but no handler", message.Topic())
}

var connectLostHandler MQTT.ConnectionLostHandler = func(client MQTT.Client, err error) {
	Logger.Info().Msgf("Connect lost: %v", err)
}

// MqttEnabled reports whether a broker is configured. MQTT is optional for
// the controller; without it only the HTTP panel is served.
func MqttEnabled() bool {
	return Config.GetString("broker_uri") != ""
}

// MqttConnected is true once the client exists and holds a connection.
func MqttConnected() bool {
	c := CurrentClient()
	return c != nil && c.IsConnected()
}

func newClientOptions(settings brokerSettings) *MQTT.ClientOptions {
	opts := MQTT.NewClientOptions()
	opts.AddBroker(settings.uri)
	opts.SetClientID(settings.idBase + "_" + GetRandString((6)))
	opts.SetUsername(settings.username)
	opts.SetPassword(settings.password)
	opts.SetCleanSession(settings.cleanSession)
	opts.SetAutoReconnect(true)
	opts.SetWill(settings.availability, "offline", 0, false)
	opts.OnConnectionLost = connectLostHandler
	opts.OnConnect = connectHandler
	opts.SetDefaultPublishHandler(receiver)
	return opts
}

// MqttInit (re)connects to the configured broker. Without a broker_uri it
// drops any existing client and does nothing else.
func MqttInit() error {
	initMu.Lock()
	defer initMu.Unlock()
	return mqttInit(currentBrokerSettings())
}

func mqttInit(settings brokerSettings) error {
	if old := CurrentClient(); old != nil {
		Logger.Debug().Msg("Client exists - destroying")
		if old.IsConnected() {
			old.Disconnect(1000)
		}
		setClient(nil)
	}

	if settings.uri == "" {
		Logger.Debug().Msg("no broker configured, mqtt disabled")
		appliedBroker = &settings
		return nil
	}

	c := MQTT.NewClient(newClientOptions(settings))
	setClient(c)

	if token := c.Connect(); token.Wait() && token.Error() != nil {
		appliedBroker = nil
		return fmt.Errorf("connect mqtt broker %s: %w", settings.uri, token.Error())
	}
	appliedBroker = &settings
	return nil
}

// MqttReconfigure calls MqttInit only when the broker settings differ from
// the last successful connection. It reports whether it reconnected.
func MqttReconfigure() (bool, error) {
	initMu.Lock()
	defer initMu.Unlock()
	settings := currentBrokerSettings()
	if appliedBroker != nil && *appliedBroker == settings {
		return false, nil
	}
	return true, mqttInit(settings)
}
