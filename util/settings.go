package util

import (
	"crypto/rand"
	"fmt"
	"reflect"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "STATION"

var Config = viper.New()

var config_listeners []func()

func RegisterNewConfigListener(new_listener func()) {
	for _, listener := range config_listeners {
		if reflect.ValueOf(new_listener).Pointer() == reflect.ValueOf(listener).Pointer() {
			Logger.Warn().Msg("config listener already registered")
			return
		}
	}
	config_listeners = append(config_listeners, new_listener)
}

func OnNewConfig() {
	for _, listener := range config_listeners {
		listener()
	}
}

func GetRandString(n int) string {
	// using crypto/rand for better security
	const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, n)
	for i := range b {
		randBytes := make([]byte, 1)
		if _, err := rand.Read(randBytes); err != nil {
			// fallback to a simple approach if crypto/rand fails
			b[i] = letterBytes[i%len(letterBytes)]
		} else {
			b[i] = letterBytes[int(randBytes[0])%len(letterBytes)]
		}
	}
	return string(b)
}

func SetDefaults() {
	Config.SetDefault("Device_URL", "http://localhost")
	Config.SetDefault("Sync_interval_ms", 2000)
	Config.SetDefault("Request_timeout", "10s")
	Config.SetDefault("Panel_port", 8080)
	Config.SetDefault("Log_level", "info")

	Config.SetDefault("Broker_URI", "")
	Config.SetDefault("Cleansess", false)
	Config.SetDefault("Id_base", "station_controller")
	Config.SetDefault("Username", "")
	Config.SetDefault("Password", "")
	Config.SetDefault("Mqtt_state_topic", "station/state")
	Config.SetDefault("Mqtt_push_topic", "")
	Config.SetDefault("Availability_topic", "station/online")
	Config.SetDefault("Ha_discovery", true)
}

// BindFlags lets command line flags override the config file.
func BindFlags(flags *pflag.FlagSet) {
	for key, flag := range map[string]string{
		"config_file": "config",
		"log_level":   "log-level",
		"device_url":  "device-url",
		"panel_port":  "panel-port",
	} {
		if f := flags.Lookup(flag); f != nil {
			if err := Config.BindPFlag(key, f); err != nil {
				Logger.Warn().Msgf("unable to bind flag %s: %v", flag, err)
			}
		}
	}
}

func SetupConfig() {
	Config.SetEnvPrefix(ENV_PREFIX)
	SetDefaults()

	// config file
	if file := Config.GetString("config_file"); file != "" {
		Config.SetConfigFile(file)
	} else {
		Config.SetConfigName("station_controller")
		Config.AddConfigPath("/")
		Config.AddConfigPath("./")
		Config.AddConfigPath("./config")
		Config.AddConfigPath("/etc")
		Config.AddConfigPath("/station_controller")
		Config.AddConfigPath("/station_controller/config")
	}

	err := Config.ReadInConfig()
	if err != nil {
		Logger.Error().Msgf("unable to read config file: %v", fmt.Errorf("%v", err))
	}

	// environment variables
	Config.AutomaticEnv()

	// watch for changes
	Config.WatchConfig()
	Config.OnConfigChange(func(e fsnotify.Event) {
		Logger.Info().Msgf("Config file changed: %v", e.Name)
		Logger.Debug().Msgf("Config Additional Info: %v", e.String())
		OnNewConfig()
	})
}
