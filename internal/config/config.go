// Package config loads the button-sensor daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
	"github.com/sweeney/button-sensor/internal/mqtt"
)

// GPIO drivers.
const (
	DriverGPIOCDev = "gpiocdev"
	DriverPeriph   = "periph"
)

const (
	defaultPoll      = 20 * time.Millisecond
	defaultHeartbeat = 15 * time.Minute
	defaultBroker    = "tcp://localhost:1883"
	defaultHTTPAddr  = ":80"
)

// Config is the daemon configuration.
type Config struct {
	Name       string        `yaml:"name"`
	GPIO       GPIO          `yaml:"gpio"`
	Poll       time.Duration `yaml:"poll"`
	Thresholds Thresholds    `yaml:"thresholds"`
	MQTT       MQTT          `yaml:"mqtt"`
	Heartbeat  time.Duration `yaml:"heartbeat"`
	HTTP       string        `yaml:"http"`
}

// GPIO selects and configures the button input.
type GPIO struct {
	Driver    string `yaml:"driver"`
	Chip      string `yaml:"chip"`
	Pin       int    `yaml:"pin"`
	PinName   string `yaml:"pinName"`
	Pull      string `yaml:"pull"`
	ActiveLow bool   `yaml:"activeLow"`
}

// Thresholds configures the gesture classifier. Durations are milliseconds.
type Thresholds struct {
	FirstMs   int    `yaml:"firstMs"`
	SecondMs  int    `yaml:"secondMs"`
	Mode      string `yaml:"mode"`
	ClockBits int    `yaml:"clockBits"`
}

// MQTT configures the broker connection.
type MQTT struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"clientId"`
	TopicPrefix string `yaml:"topicPrefix"`
	BufferSize  int    `yaml:"bufferSize"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Name: "button",
		GPIO: GPIO{
			Driver:    DriverGPIOCDev,
			Chip:      gpio.DefaultChip,
			Pin:       gpio.DefaultPin,
			PinName:   gpio.DefaultPinName,
			Pull:      "up",
			ActiveLow: true,
		},
		Poll: defaultPoll,
		Thresholds: Thresholds{
			FirstMs:   int(logic.DefaultFirstThreshold),
			SecondMs:  int(logic.DefaultSecondThreshold),
			Mode:      logic.ModeNormal.String(),
			ClockBits: int(logic.Clock32),
		},
		MQTT: MQTT{
			Broker:      defaultBroker,
			ClientID:    "button-sensor",
			TopicPrefix: mqtt.DefaultTopicPrefix,
		},
		Heartbeat: defaultHeartbeat,
		HTTP:      defaultHTTPAddr,
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		c := Default()
		return &c, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(content)
}

// Parse decodes YAML content over the defaults and validates the result.
func Parse(content []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(content, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.GPIO.Driver {
	case DriverGPIOCDev:
		if c.GPIO.Pin < 0 {
			return fmt.Errorf("gpio pin must not be negative, got %d", c.GPIO.Pin)
		}
	case DriverPeriph:
		if c.GPIO.PinName == "" {
			return fmt.Errorf("gpio pinName is required for the periph driver")
		}
	default:
		return fmt.Errorf("unknown gpio driver %q (want %s or %s)", c.GPIO.Driver, DriverGPIOCDev, DriverPeriph)
	}
	if _, err := gpio.ParsePull(c.GPIO.Pull); err != nil {
		return fmt.Errorf("gpio: %w", err)
	}

	if c.Poll <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.Poll)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat)
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker is missing")
	}

	if _, err := c.Classifier(); err != nil {
		return err
	}
	if time.Duration(c.Thresholds.FirstMs)*time.Millisecond <= c.Poll {
		return fmt.Errorf("first threshold %dms must be longer than the poll interval %v",
			c.Thresholds.FirstMs, c.Poll)
	}
	return nil
}

// Classifier converts the threshold settings into a classifier config.
// The result is checked again by logic.NewClassifier.
func (c *Config) Classifier() (logic.Config, error) {
	t := c.Thresholds
	if t.FirstMs <= 0 || t.SecondMs <= 0 {
		return logic.Config{}, fmt.Errorf("thresholds must be positive, got %dms/%dms", t.FirstMs, t.SecondMs)
	}
	if t.FirstMs >= t.SecondMs {
		return logic.Config{}, fmt.Errorf("first threshold %dms must be below second threshold %dms", t.FirstMs, t.SecondMs)
	}
	if t.ClockBits != 16 && t.ClockBits != 32 {
		return logic.Config{}, fmt.Errorf("clockBits must be 16 or 32, got %d", t.ClockBits)
	}
	if t.ClockBits == 16 && t.SecondMs > 0xFFFF {
		return logic.Config{}, fmt.Errorf("second threshold %dms does not fit a 16-bit clock", t.SecondMs)
	}

	mode, err := parseMode(t.Mode)
	if err != nil {
		return logic.Config{}, err
	}

	return logic.Config{
		FirstThreshold:  logic.Duration(t.FirstMs),
		SecondThreshold: logic.Duration(t.SecondMs),
		Mode:            mode,
		ClockWidth:      logic.ClockWidth(t.ClockBits),
	}, nil
}

func parseMode(s string) (logic.Mode, error) {
	switch strings.ToLower(s) {
	case "", "normal":
		return logic.ModeNormal, nil
	case "extended":
		return logic.ModeExtended, nil
	}
	return logic.ModeNormal, fmt.Errorf("unknown mode %q (want normal or extended)", s)
}

// PinLabel describes the configured pin for display.
func (c *Config) PinLabel() string {
	if c.GPIO.Driver == DriverPeriph {
		return c.GPIO.PinName
	}
	return c.GPIO.Chip + ":" + strconv.Itoa(c.GPIO.Pin)
}
