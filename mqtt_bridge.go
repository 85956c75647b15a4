package main

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/station_controller/state"
	"github.com/elijahnyp/station_controller/station"
	. "github.com/elijahnyp/station_controller/util"
)

const (
	publishTimeout    = 5 * time.Second
	onlineInterval    = 10 * time.Second
	advertiseInterval = 5 * time.Minute
)

var haSelectors = []string{string(state.Antenna), string(state.HF), string(state.VUHF)}

// mqttBridge mirrors the device state to the broker and, when a push topic
// is configured, feeds pushed states into the store.
//
// Store listeners only hand the new state over; publishing happens on the
// bridge's own goroutine so a slow broker never holds up Replace.
type mqttBridge struct {
	ctrl   *station.Controller
	client func() MQTT.Client

	stateTopic string
	pushTopic  string
	timeout    time.Duration

	// holds at most the latest unpublished state
	pending chan state.DeviceState

	cancelChange func()
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

func connectedClient() MQTT.Client {
	if client := CurrentClient(); client != nil && client.IsConnected() {
		return client
	}
	return nil
}

func newMQTTBridge(ctrl *station.Controller) *mqttBridge {
	return &mqttBridge{
		ctrl:       ctrl,
		client:     connectedClient,
		stateTopic: Config.GetString("mqtt_state_topic"),
		pushTopic:  Config.GetString("mqtt_push_topic"),
		timeout:    publishTimeout,
		pending:    make(chan state.DeviceState, 1),
	}
}

func (b *mqttBridge) Start() {
	if !MqttEnabled() {
		return
	}
	b.cancelChange = b.ctrl.Store().OnChange(func(prev, next state.DeviceState) {
		b.enqueue(next)
	})
	if b.pushTopic != "" {
		RegisterMQTTSubscription(b.pushTopic, b.receive)
	}
	RegisterMQTTConnectHook("publishstate", func(client MQTT.Client) {
		b.enqueue(b.ctrl.State())
	})
	if Config.GetBool("ha_discovery") {
		RegisterMQTTConnectHook("haadvertise", func(client MQTT.Client) {
			AdvertiseHA(haSelectors, b.stateTopic, client)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(2)
	go b.run(ctx)
	go b.ping(ctx)
}

func (b *mqttBridge) Stop() {
	if b.cancelChange != nil {
		b.cancelChange()
	}
	if b.cancel != nil {
		b.cancel()
		b.wg.Wait()
	}
	if client := b.client(); client != nil {
		b.send(client, Config.GetString("availability_topic"), false, "offline")
	}
}

// enqueue never blocks. An older state still waiting is replaced, since only
// the latest snapshot matters to subscribers.
func (b *mqttBridge) enqueue(s state.DeviceState) {
	for {
		select {
		case b.pending <- s:
			return
		default:
		}
		select {
		case <-b.pending:
		default:
		}
	}
}

func (b *mqttBridge) run(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-b.pending:
			b.publish(s)
		}
	}
}

// ping keeps the availability topic fresh and periodically repeats the
// discovery messages.
func (b *mqttBridge) ping(ctx context.Context) {
	defer b.wg.Done()
	online := time.NewTicker(onlineInterval)
	defer online.Stop()
	advertise := time.NewTicker(advertiseInterval)
	defer advertise.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-online.C:
			if client := b.client(); client != nil {
				b.send(client, Config.GetString("availability_topic"), false, "online")
			}
		case <-advertise.C:
			if client := b.client(); client != nil && Config.GetBool("ha_discovery") {
				Logger.Debug().Msg("Advertising Home Assistant discovery messages")
				AdvertiseHA(haSelectors, b.stateTopic, client)
			}
		}
	}
}

func (b *mqttBridge) publish(s state.DeviceState) {
	if b.stateTopic == "" {
		return
	}
	client := b.client()
	if client == nil {
		return
	}
	payload, err := json.Marshal(s)
	if err != nil {
		Logger.Error().Err(err).Msg("Error encoding state")
		return
	}
	b.send(client, b.stateTopic, true, payload)
}

func (b *mqttBridge) send(client MQTT.Client, topic string, retained bool, payload interface{}) {
	token := client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(b.timeout) {
		Logger.Warn().Msgf("Timed out publishing to %s", topic)
		return
	}
	if err := token.Error(); err != nil {
		Logger.Error().Msgf("Error publishing to %s: %v", topic, err)
	}
}

// receive applies a state pushed by the device. Pushed states go through the
// same Replace as polls, so duplicates are dropped there.
func (b *mqttBridge) receive(client MQTT.Client, message MQTT.Message) {
	var s state.DeviceState
	if err := json.Unmarshal(message.Payload(), &s); err != nil {
		Logger.Warn().Msgf("Ignoring malformed state on %s: %v", message.Topic(), err)
		return
	}
	if b.ctrl.Store().Replace(s) {
		Logger.Debug().Msgf("push: state changed to %v", s)
	}
}
