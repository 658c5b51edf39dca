// Command button-sensor polls a push button on a GPIO line, classifies
// clicks and holds, and publishes the resulting events to MQTT.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/sweeney/button-sensor/internal/config"
	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
	"github.com/sweeney/button-sensor/internal/web"
)

var (
	app        = kingpin.New("button-sensor", "GPIO push button to MQTT gesture publisher")
	configPath = app.Flag("config", "Path to the YAML configuration file.").Short('c').String()
	debug      = app.Flag("debug", "Turn on debug logging.").Bool()
	printState = app.Flag("print-state", "Print the current button state and exit.").Bool()
	broker     = app.Flag("broker", "MQTT broker address, overrides the config file.").String()
	httpAddr   = app.Flag("http", `HTTP status address, overrides the config file ("off" disables).`).String()
	pin        = app.Flag("pin", "GPIO line offset, overrides the config file.").Default("-1").Int()
)

func main() {
	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Printf("%v: Try --help\n", err.Error())
		os.Exit(1)
	}

	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if *debug {
		log.Info("Enabling debug output...")
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	applyOverrides(cfg, *broker, *httpAddr, *pin)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: invalid configuration: %v", err)
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// applyOverrides copies command line values over the loaded configuration.
// Empty strings and negative pins leave the file value alone.
func applyOverrides(cfg *config.Config, broker, httpAddr string, pin int) {
	if broker != "" {
		cfg.MQTT.Broker = broker
	}
	switch httpAddr {
	case "":
	case "off":
		cfg.HTTP = ""
	default:
		cfg.HTTP = httpAddr
	}
	if pin >= 0 {
		cfg.GPIO.Pin = pin
	}
}

func openReader(c config.GPIO) (gpio.Reader, error) {
	pull, err := gpio.ParsePull(c.Pull)
	if err != nil {
		return nil, err
	}
	if c.Driver == config.DriverPeriph {
		r, err := gpio.NewPeriphReader(c.PinName, pull, c.ActiveLow)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	r, err := gpio.NewRealReader(c.Chip, c.Pin, pull, c.ActiveLow)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func run(cfg *config.Config, printState bool) error {
	classifierCfg, err := cfg.Classifier()
	if err != nil {
		return err
	}

	reader, err := openReader(cfg.GPIO)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	if printState {
		pressed, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("%s: %s\n", cfg.PinLabel(), pressedString(pressed))
		return nil
	}

	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		BufferSize:  cfg.MQTT.BufferSize,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		Name:              cfg.Name,
		Driver:            cfg.GPIO.Driver,
		Pin:               cfg.PinLabel(),
		PollMs:            cfg.Poll.Milliseconds(),
		FirstThresholdMs:  int64(classifierCfg.FirstThreshold),
		SecondThresholdMs: int64(classifierCfg.SecondThreshold),
		Mode:              classifierCfg.Mode.String(),
		HeartbeatMs:       cfg.Heartbeat.Milliseconds(),
		Broker:            cfg.MQTT.Broker,
		HTTPAddr:          cfg.HTTP,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Warnf("failed to publish startup event: %v", err)
	} else {
		log.Info("published startup event")
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infof("http status server listening on %s", cfg.HTTP)
	}

	log.WithFields(log.Fields{
		"pin":       cfg.PinLabel(),
		"poll":      cfg.Poll,
		"first":     classifierCfg.FirstThreshold,
		"second":    classifierCfg.SecondThreshold,
		"broker":    cfg.MQTT.Broker,
		"heartbeat": cfg.Heartbeat,
	}).Info("started")

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(reader, publisher, publisher, tracker, classifierCfg, cfg.Heartbeat, time.Now, ticker.C, sigCh)
}

func runLoop(reader gpio.Reader, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, classifierCfg logic.Config, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()

	var pending []logic.Event
	classifier, err := logic.NewClassifier(classifierCfg, func(e logic.Event) {
		pending = append(pending, e)
	})
	if err != nil {
		return fmt.Errorf("init classifier: %w", err)
	}
	hb := logic.NewHeartbeat(startTime)
	lastState := classifier.State()

	for {
		select {
		case s := <-sig:
			log.Infof("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warnf("failed to publish shutdown event: %v", err)
			} else {
				log.Info("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			pressed, err := reader.Read()
			if err != nil {
				log.Warnf("gpio read error: %v", err)
				continue
			}

			gesture := classifier.Sample(logic.TimestampSince(startTime, t), pressed)
			if st := classifier.State(); st != lastState {
				log.Debugf("state %s -> %s (%s)", lastState, st, gesture)
				lastState = st
			}

			for _, event := range pending {
				log.WithFields(log.Fields{
					"gesture":    event.Gesture,
					"elapsed_ms": event.Elapsed,
				}).Infof("event: %s", event.Type)
				if tracker != nil {
					tracker.RecordEvent(event, t)
				}
				if err := publisher.Publish(event, t); err != nil {
					log.Warnf("publish error: %v", err)
				}
			}
			pending = pending[:0]

			if tracker != nil {
				tracker.Update(classifier.State(), classifier.Gesture(), classifier.IsPressed(), classifier.Counts())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}

			if hbData := hb.Check(t, heartbeat, classifier.Counts()); hbData != nil {
				log.WithFields(log.Fields{
					"uptime": hbData.Uptime,
					"click":  hbData.Counts.Click,
					"held":   hbData.Counts.Held,
					"long":   hbData.Counts.HeldLong,
				}).Info("heartbeat")

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Warnf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func pressedString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}
