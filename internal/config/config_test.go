package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/button-sensor/internal/logic"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	cc, err := c.Classifier()
	require.NoError(t, err)
	assert.Equal(t, logic.DefaultConfig(), cc)
	assert.Equal(t, "gpiochip0:17", c.PinLabel())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *c)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "button.yaml")
	content := `
name: hall
gpio:
  driver: periph
  pinName: GPIO27
  pull: down
  activeLow: false
poll: 10ms
thresholds:
  firstMs: 500
  secondMs: 2000
  mode: extended
  clockBits: 16
mqtt:
  broker: tcp://192.168.1.200:1883
  topicPrefix: home/hall/doorbell
heartbeat: 5m
http: ":8080"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hall", c.Name)
	assert.Equal(t, DriverPeriph, c.GPIO.Driver)
	assert.Equal(t, "GPIO27", c.GPIO.PinName)
	assert.Equal(t, "down", c.GPIO.Pull)
	assert.False(t, c.GPIO.ActiveLow)
	assert.Equal(t, 10*time.Millisecond, c.Poll)
	assert.Equal(t, 5*time.Minute, c.Heartbeat)
	assert.Equal(t, "tcp://192.168.1.200:1883", c.MQTT.Broker)
	assert.Equal(t, "home/hall/doorbell", c.MQTT.TopicPrefix)
	assert.Equal(t, "button-sensor", c.MQTT.ClientID, "unset fields keep defaults")
	assert.Equal(t, ":8080", c.HTTP)
	assert.Equal(t, "GPIO27", c.PinLabel())

	cc, err := c.Classifier()
	require.NoError(t, err)
	assert.Equal(t, logic.Config{
		FirstThreshold:  500,
		SecondThreshold: 2000,
		Mode:            logic.ModeExtended,
		ClockWidth:      logic.Clock16,
	}, cc)
}

func TestParsePartialKeepsDefaults(t *testing.T) {
	c, err := Parse([]byte("thresholds:\n  firstMs: 600\n"))
	require.NoError(t, err)

	assert.Equal(t, 600, c.Thresholds.FirstMs)
	assert.Equal(t, int(logic.DefaultSecondThreshold), c.Thresholds.SecondMs)
	assert.Equal(t, 17, c.GPIO.Pin)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "gpio: [unclosed"},
		{"unknown driver", "gpio:\n  driver: sysfs\n"},
		{"negative pin", "gpio:\n  pin: -1\n"},
		{"periph without pin name", "gpio:\n  driver: periph\n  pinName: \"\"\n"},
		{"bad pull", "gpio:\n  pull: sideways\n"},
		{"zero poll", "poll: 0s\n"},
		{"negative heartbeat", "heartbeat: -1m\n"},
		{"empty broker", "mqtt:\n  broker: \"\"\n"},
		{"first equals second", "thresholds:\n  firstMs: 1000\n  secondMs: 1000\n"},
		{"first above second", "thresholds:\n  firstMs: 4000\n"},
		{"zero threshold", "thresholds:\n  firstMs: 0\n"},
		{"negative threshold", "thresholds:\n  secondMs: -5\n"},
		{"bad clock", "thresholds:\n  clockBits: 8\n"},
		{"second too wide for 16-bit", "thresholds:\n  secondMs: 70000\n  clockBits: 16\n"},
		{"bad mode", "thresholds:\n  mode: turbo\n"},
		{"first not above poll", "poll: 1s\nthresholds:\n  firstMs: 900\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestClassifierConfigAcceptedByClassifier(t *testing.T) {
	c, err := Parse([]byte("thresholds:\n  firstMs: 250\n  secondMs: 65535\n  clockBits: 16\n"))
	require.NoError(t, err)

	cc, err := c.Classifier()
	require.NoError(t, err)

	_, err = logic.NewClassifier(cc, nil)
	assert.NoError(t, err)
}

func TestParseModeCaseInsensitive(t *testing.T) {
	m, err := parseMode("Extended")
	require.NoError(t, err)
	assert.Equal(t, logic.ModeExtended, m)

	m, err = parseMode("")
	require.NoError(t, err)
	assert.Equal(t, logic.ModeNormal, m)
}
