package util

import (
	"encoding/json"
	"fmt"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

type HAAvdvertisementAvailability struct {
	Topic               string `json:"topic"`                 // : "station/online"
	PayloadAvailable    string `json:"payload_available"`     // : "online"
	PayloadNotAvailable string `json:"payload_not_available"` // : "offline"
}

type HADeviceSpec struct {
	Name        string   `json:"name"` // : "RF Matrix"
	Identifiers []string `json:"ids"`  // : ["station_controller"]
}

type HAAdvertisement struct { //nolint:govet // struct layout optimized for JSON field order
	HAAvdvertisementAvailability []HAAvdvertisementAvailability `json:"availability"`
	Device                       HADeviceSpec                   `json:"device"`         // Device info
	UniqueID                     string                         `json:"uniq_id"`        // "station_selector-hf"
	Name                         string                         `json:"name"`           // : "hf"
	StateTopic                   string                         `json:"state_topic"`    // : "station/state"
	ValueTemplate                string                         `json:"value_template"` // : "{{ value_json.hf }}"
	Icon                         string                         `json:"icon,omitempty"`
	Platform                     string                         `json:"platform"` // "sensor"
	Qos                          int                            `json:"qos"`
}

func (ha HAAdvertisement) ToJson() string {
	data, err := json.Marshal(ha)
	if err != nil {
		Logger.Error().Msgf("Error marshalling HAAdvertisement: %v", err)
		return ""
	}
	return string(data)
}

// ConstructHAAdvertisement describes one selector position as a sensor
// reading its value out of the JSON state snapshot.
func ConstructHAAdvertisement(selector, stateTopic string) HAAdvertisement {
	return HAAdvertisement{
		Name:          selector,
		StateTopic:    stateTopic,
		ValueTemplate: fmt.Sprintf("{{ value_json.%s }}", selector),
		Icon:          "mdi:antenna",
		HAAvdvertisementAvailability: []HAAvdvertisementAvailability{
			{
				Topic:               Config.GetString("availability_topic"),
				PayloadAvailable:    "online",
				PayloadNotAvailable: "offline",
			},
		},
		Qos:      0,
		UniqueID: "station_selector-" + selector,
		Platform: "sensor",
		Device: HADeviceSpec{
			Name:        "station_controller",
			Identifiers: []string{Config.GetString("id_base")},
		},
	}
}

func AdvertiseHA(selectors []string, stateTopic string, client MQTT.Client) {
	if stateTopic == "" {
		return
	}
	for _, selector := range selectors {
		ha := ConstructHAAdvertisement(selector, stateTopic)
		if token := client.Publish("homeassistant/sensor/station_controller/"+selector+"/config", 0, true, ha.ToJson()); token.Wait() && token.Error() != nil {
			Logger.Error().Msgf("Error Publishing: %v", fmt.Errorf("%v", token.Error()))
		}
	}
}
