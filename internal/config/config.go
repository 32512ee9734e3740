// Package config loads the daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TransportRedis  = "redis"
	TransportMQTT   = "mqtt"
	TransportSerial = "serial"
	TransportSim    = "sim"
)

type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Log       LogConfig       `yaml:"log"`
	Journal   JournalConfig   `yaml:"journal"`
	HTTP      HTTPConfig      `yaml:"http"`
	Panel     PanelConfig     `yaml:"panel"`
}

type TransportConfig struct {
	Kind           string        `yaml:"kind"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	Redis          RedisConfig   `yaml:"redis"`
	MQTT           MQTTConfig    `yaml:"mqtt"`
	Serial         SerialConfig  `yaml:"serial"`
	Sim            SimConfig     `yaml:"sim"`
}

type RedisConfig struct {
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	CommandKey    string        `yaml:"command_key"`
	AckKey        string        `yaml:"ack_key"`
	StatusChannel string        `yaml:"status_channel"`
	AckTimeout    time.Duration `yaml:"ack_timeout"`
}

type MQTTConfig struct {
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	CommandTopic string `yaml:"command_topic"`
	StatusTopic  string `yaml:"status_topic"`
	QoS          byte   `yaml:"qos"`
}

type SerialConfig struct {
	Device   string `yaml:"device"`
	BaudRate int    `yaml:"baud_rate"`
}

type SimConfig struct {
	ParkStep uint8 `yaml:"park_step"`
}

type BridgeConfig struct {
	Mode         string        `yaml:"mode"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type JournalConfig struct {
	Path        string `yaml:"path"`
	MaxCommands int    `yaml:"max_commands"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type PanelConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Chip           string        `yaml:"chip"`
	EStopLine      int           `yaml:"estop_line"`
	EStopActiveLow bool          `yaml:"estop_active_low"`
	IndicatorLine  int           `yaml:"indicator_line"`
	Debounce       time.Duration `yaml:"debounce"`
}

// Default returns a configuration that runs against a local Redis.
func Default() Config {
	return Config{
		Transport: TransportConfig{
			Kind:           TransportRedis,
			CommandTimeout: 2 * time.Second,
			Redis: RedisConfig{
				Addr:          "127.0.0.1:6379",
				CommandKey:    "vehicle:control",
				AckKey:        "vehicle:control:ack",
				StatusChannel: "vehicle:status",
			},
			MQTT: MQTTConfig{
				Broker:       "tcp://localhost:1883",
				ClientID:     "vehicle-remote",
				CommandTopic: "vehicle/control",
				StatusTopic:  "vehicle/status",
				QoS:          1,
			},
			Serial: SerialConfig{
				Device:   "/dev/ttyUSB0",
				BaudRate: 115200,
			},
			Sim: SimConfig{ParkStep: 20},
		},
		Bridge: BridgeConfig{
			Mode:         "push",
			PollInterval: 200 * time.Millisecond,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Journal: JournalConfig{
			MaxCommands: 10000,
		},
		Panel: PanelConfig{
			Chip:          "gpiochip0",
			EStopLine:     -1,
			IndicatorLine: -1,
			Debounce:      20 * time.Millisecond,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Transport.Kind {
	case TransportRedis:
		if c.Transport.Redis.Addr == "" {
			return fmt.Errorf("transport.redis.addr is required")
		}
	case TransportMQTT:
		if c.Transport.MQTT.Broker == "" {
			return fmt.Errorf("transport.mqtt.broker is required")
		}
		if c.Transport.MQTT.QoS > 2 {
			return fmt.Errorf("transport.mqtt.qos must be 0, 1 or 2")
		}
	case TransportSerial:
		if c.Transport.Serial.Device == "" {
			return fmt.Errorf("transport.serial.device is required")
		}
	case TransportSim:
	default:
		return fmt.Errorf("unknown transport kind %q", c.Transport.Kind)
	}

	if c.Transport.CommandTimeout <= 0 {
		return fmt.Errorf("transport.command_timeout must be positive")
	}
	switch c.Bridge.Mode {
	case "push", "pull":
	default:
		return fmt.Errorf("bridge.mode must be push or pull, got %q", c.Bridge.Mode)
	}
	if c.Bridge.PollInterval <= 0 {
		return fmt.Errorf("bridge.poll_interval must be positive")
	}
	if c.Panel.Enabled && c.Panel.EStopLine < 0 && c.Panel.IndicatorLine < 0 {
		return fmt.Errorf("panel enabled without any lines")
	}
	return nil
}
