/*
 * SPDX-License-Identifier: MIT
 * (valid for all sub-packages)
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"

	"thomas-leister.de/greenhouse/alert"
	configManagerPkg "thomas-leister.de/greenhouse/configmanager"
	driversPkg "thomas-leister.de/greenhouse/drivers"
	gifManagerPkg "thomas-leister.de/greenhouse/gifmanager"
	httpApiPkg "thomas-leister.de/greenhouse/httpapi"
	"thomas-leister.de/greenhouse/log"
	messengerPkg "thomas-leister.de/greenhouse/messenger"
	monitorPkg "thomas-leister.de/greenhouse/monitor"
	mqttManagerPkg "thomas-leister.de/greenhouse/mqttmanager"
	publisherPkg "thomas-leister.de/greenhouse/publisher"
	quantifierPkg "thomas-leister.de/greenhouse/quantifier"
	reminderPkg "thomas-leister.de/greenhouse/reminder"
	"thomas-leister.de/greenhouse/sensor"
	storePkg "thomas-leister.de/greenhouse/store"
	watchdogPkg "thomas-leister.de/greenhouse/watchdog"
	xmppManagerPkg "thomas-leister.de/greenhouse/xmppmanager"
)

/* Version string. Is manipulated by build script.*/
var versionString string = "0.0.0"

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the configuration file")
	flag.Parse()

	// Read config
	config, err := configManagerPkg.ReadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Could not parse config:", err)
		os.Exit(1)
	}

	if err := log.Init(config.Log.Debug); err != nil {
		fmt.Fprintln(os.Stderr, "Could not initialize logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Welcome message and version
	log.Infof("Starting Greenhouse %s ...", versionString)

	if err := run(*configPath, &config); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("Greenhouse failed: %v", err)
		log.Sync()
		os.Exit(1)
	}
	log.Info("Greenhouse stopped")
}

func run(configPath string, config *configManagerPkg.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storePkg.Open(config)
	if err != nil {
		return fmt.Errorf("could not open statistics store: %w", err)
	}
	defer store.Close()

	devices, err := driversPkg.Open(config)
	if err != nil {
		return fmt.Errorf("could not open drivers: %w", err)
	}
	defer devices.Close()

	var opts []monitorPkg.Option

	/*
	 * Chat notifications:
	 * messenger -> XMPP out channel, reminder wraps the messenger
	 */
	var messenger *messengerPkg.Messenger
	var reminder *reminderPkg.Reminder
	var watchdog *watchdogPkg.Watchdog
	xmppMessageOutChannel := make(chan interface{}, 16)
	xmppMessageInChannel := make(chan xmppManagerPkg.XmppInMessage, 16)

	if config.Xmpp.Enabled {
		giphyclient := &gifManagerPkg.GiphyClient{}
		giphyclient.Init(config.Giphy.ApiKey)

		messenger = &messengerPkg.Messenger{}
		messenger.Init(config, xmppMessageOutChannel, giphyclient)

		reminder = &reminderPkg.Reminder{}
		reminder.Init(messenger, nil)
		defer reminder.Stop()

		watchdog = &watchdogPkg.Watchdog{}
		watchdog.Init(config, messenger)
		defer watchdog.Stop()

		opts = append(opts, monitorPkg.WithNotifier(reminder), monitorPkg.WithHeartbeat(watchdog))
	}

	/*
	 * Telemetry: MQTT plus Kafka / Firebase
	 */
	publishers, closePublishers, err := publisherPkg.FromConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("could not set up publishers: %w", err)
	}
	defer closePublishers()

	var mqttclient *mqttManagerPkg.MqttClient
	if config.Mqtt.Enabled {
		mqttclient = &mqttManagerPkg.MqttClient{}
		publishers = append(publishers, mqttclient)
	}
	if len(publishers) > 0 {
		opts = append(opts, monitorPkg.WithPublisher(publishers))
	}

	monitor, err := monitorPkg.New(config, devices, store, opts...)
	if err != nil {
		return fmt.Errorf("could not initialize monitor: %w", err)
	}

	if reminder != nil {
		reminder.Source = monitor
	}
	if mqttclient != nil {
		mqttclient.Init(config, monitor)
		if err := mqttclient.Connect(); err != nil {
			return fmt.Errorf("could not connect to MQTT broker: %w", err)
		}
		defer mqttclient.Disconnect()
	}

	printLevels(config)
	printAlertThresholds(monitor.AlertThresholds())

	if config.Xmpp.Enabled {
		xmppclient := xmppManagerPkg.XmppClient{}
		if err := xmppclient.Init(config); err != nil {
			return fmt.Errorf("could not initialize XMPP client: %w", err)
		}

		// Start another Goroutine which sends XMPP messages when receiving new XmppTextMessage or XmppGifMessage strings
		go func() {
			if err := xmppclient.RunXMPPClient(ctx, xmppMessageOutChannel, xmppMessageInChannel); err != nil {
				log.Errorf("XMPP: Client stopped: %v", err)
			}
		}()

		// Start Messenger responder: Responds to incoming XMPP messages
		go messenger.ResponderLoop(ctx, xmppMessageInChannel, monitor)

		watchdog.Start()
	}

	server := httpApiPkg.New(config, monitor)
	go func() {
		if err := server.Run(ctx); err != nil {
			log.Errorf("HTTP: %v", err)
		}
	}()

	/*
	 * Start signal handler routine
	 */
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalChan)
	go func() {
		for sig := range signalChan {
			if sig != syscall.SIGHUP {
				log.Infof("Got %s, shutting down ...", sig)
				cancel()
				return
			}

			log.Info("Got a HUP signal! Reloading configuration ...")
			reloaded, err := configManagerPkg.ReadConfig(configPath)
			if err != nil {
				log.Errorf("Could not parse config, keeping the old one: %v", err)
				continue
			}
			if err := monitor.Reload(&reloaded); err != nil {
				log.Errorf("Could not apply config: %v", err)
				continue
			}
			if messenger != nil {
				messenger.Reload(&reloaded)
			}
			log.Info("Config was read and applied!")
		}
	}()

	return monitor.Run(ctx, config.Loop.Interval)
}

// printLevels shows the configured soil and temperature bands on startup
func printLevels(config *configManagerPkg.Config) {
	soil := quantifierPkg.New(sensor.Soil, config.Levels.Soil, config.Levels.HysteresisMargin)
	quantifierPkg.PrintLevelTable(os.Stdout, soil)

	temperature := quantifierPkg.New(sensor.Temperature, config.Levels.Temperature, config.Levels.HysteresisMargin)
	quantifierPkg.PrintLevelTable(os.Stdout, temperature)
}

func printAlertThresholds(thresholds alert.Thresholds) {
	fmt.Println("\nAlert thresholds:")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Alert", "Threshold"})
	table.SetBorder(true)
	table.AppendBulk([][]string{
		{string(alert.HighTemperature), fmt.Sprintf("> %.1f °C", thresholds.TemperatureHigh)},
		{string(alert.LowTemperature), fmt.Sprintf("< %.1f °C", thresholds.TemperatureLow)},
		{string(alert.LowSoilMoisture), fmt.Sprintf("< %.1f %%", thresholds.SoilMoistureLow)},
	})
	table.Render()
	fmt.Println()
}
