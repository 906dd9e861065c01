/*
 * Messenger package:
 * Translates alerts, level changes and watchdog warnings into text / GIF messages and sends them to XmppManager.
 * Also answers chat commands from the configured recipients.
 */
package messenger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"thomas-leister.de/greenhouse/alert"
	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/log"
	"thomas-leister.de/greenhouse/monitor"
	"thomas-leister.de/greenhouse/quantifier"
	"thomas-leister.de/greenhouse/xmppmanager"
)

// GifProvider resolves keywords to a GIF URL.
type GifProvider interface {
	GetGifURL(keywords string) (string, error)
}

// Responder is what chat commands act on.
type Responder interface {
	CurrentStatus() monitor.Status
	RequestManualWatering() error
}

type Messenger struct {
	XmppMessageChannel chan interface{}
	GiphyClient        GifProvider
	Device             string

	gifRequests chan string // Keywords waiting for a GIF lookup

	mu          sync.RWMutex
	gifKeywords map[string]string // Alert kind -> Giphy keywords
	recipients  map[string]bool
}

const gifQueueSize = 8

/*
 * Init messenger and set
 * - xmppMessageChannel to use
 * - Giphy client to use (may be nil)
 */
func (m *Messenger) Init(config *configmanager.Config, xmppMessageChannel chan interface{}, giphyClient GifProvider) {
	m.XmppMessageChannel = xmppMessageChannel
	m.GiphyClient = giphyClient
	m.Device = config.Device.Name
	m.Reload(config)

	if giphyClient != nil {
		m.gifRequests = make(chan string, gifQueueSize)
		go m.gifLoop()
	}
}

func (m *Messenger) Reload(config *configmanager.Config) {
	keywords := make(map[string]string, len(config.Alerts.GifKeywords))
	for kind, k := range config.Alerts.GifKeywords {
		keywords[kind] = k
	}
	recipients := make(map[string]bool, len(config.Xmpp.Recipients))
	for _, r := range config.Xmpp.Recipients {
		recipients[strings.ToLower(r)] = true
	}

	m.mu.Lock()
	m.gifKeywords = keywords
	m.recipients = recipients
	m.mu.Unlock()
}

// SendAlert sends the alert text and the GIF configured for its kind
func (m *Messenger) SendAlert(event alert.Event) {
	m.mu.RLock()
	keywords := m.gifKeywords[string(event.Kind)]
	m.mu.RUnlock()

	m.send(fmt.Sprintf("⚠️ %s: %s", m.Device, event.Message), keywords)
}

/*
 * Inputs:
 * - Metric that changed level
 * - Direction of levels (up, steady, down +1, 0, -1)
 * - Current level and value
 */
func (m *Messenger) SendLevelChange(metric string, levelDirection int, level quantifier.QuantificationLevel, value float64) {
	m.send(LevelMessage(m.Device, metric, levelDirection, level.Name, value), level.GifKeyword)
}

// SendReminder repeats the message for a level that persists
func (m *Messenger) SendReminder(metric string, level quantifier.QuantificationLevel, value float64) {
	m.send("Reminder: "+LevelMessage(m.Device, metric, 0, level.Name, value), level.GifKeyword)
}

// SendSensorWarning is called by the watchdog
func (m *Messenger) SendSensorWarning(timeout time.Duration) {
	m.send(fmt.Sprintf("%s: No valid sensor data for %s. Please check the sensors!", m.Device, timeout), "")
}

func LevelMessage(device, metric string, levelDirection int, levelName string, value float64) string {
	var unit, what string
	switch metric {
	case "soil":
		what, unit = "Soil moisture", "%"
	case "temperature":
		what, unit = "Temperature", "°C"
	default:
		what = metric
	}

	var verb string
	switch {
	case levelDirection > 0:
		verb = "rose to"
	case levelDirection < 0:
		verb = "dropped to"
	default:
		verb = "is"
	}

	return fmt.Sprintf("%s: %s %s %s (%.0f %s)", device, what, verb, strings.ReplaceAll(levelName, "_", " "), value, unit)
}

func (m *Messenger) send(text string, gifKeywords string) {
	log.Infof("Messenger: Sending message: %q", text)
	m.enqueue(xmppmanager.XmppTextMessage(text))

	// Send GIF (if set in config). The lookup runs on gifLoop
	if gifKeywords == "" || m.gifRequests == nil {
		return
	}
	select {
	case m.gifRequests <- gifKeywords:
	default:
		log.Warnf("Messenger: GIF lookups pending, skipping GIF for %q", gifKeywords)
	}
}

// gifLoop resolves GIF keywords and sends the URLs after the text messages
func (m *Messenger) gifLoop() {
	for gifKeywords := range m.gifRequests {
		gifUrl, err := m.GiphyClient.GetGifURL(gifKeywords)
		if err != nil {
			log.Warnf("Messenger: Could not retrieve GIF URL from gifmanager: %v", err)
			continue
		}
		m.enqueue(xmppmanager.XmppGifMessage(gifUrl))
	}
}

// enqueue never blocks the caller. Messages are dropped while the XMPP queue is full.
func (m *Messenger) enqueue(message interface{}) {
	select {
	case m.XmppMessageChannel <- message:
	default:
		log.Warnf("Messenger: XMPP queue full, dropping message")
	}
}

/*
 * ResponderLoop answers chat messages from known recipients:
 *   status  - current readings and levels
 *   water   - start manual watering
 */
func (m *Messenger) ResponderLoop(ctx context.Context, in <-chan xmppmanager.XmppInMessage, responder Responder) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-in:
			sender, err := bareJID(message.From)
			if err != nil {
				log.Warnf("Messenger: %v", err)
				continue
			}

			m.mu.RLock()
			known := m.recipients[strings.ToLower(sender)]
			m.mu.RUnlock()
			if !known {
				log.Warnf("Messenger: Ignoring message from unknown sender %s", sender)
				continue
			}

			m.enqueue(xmppmanager.XmppTextMessage(m.Respond(message.Body, responder)))
		}
	}
}

// Respond returns the answer to one chat command
func (m *Messenger) Respond(body string, responder Responder) string {
	switch strings.ToLower(strings.TrimSpace(body)) {
	case "status":
		return StatusMessage(responder.CurrentStatus())
	case "water":
		if err := responder.RequestManualWatering(); err != nil {
			return fmt.Sprintf("Could not start watering: %v", err)
		}
		return "Watering started 💧"
	default:
		return "Unknown command. Try \"status\" or \"water\"."
	}
}

func StatusMessage(status monitor.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s status:", status.Device)
	r := status.Readings
	fmt.Fprintf(&b, "\nTemperature: %s", formatValue(r.Temperature, "%.1f °C"))
	fmt.Fprintf(&b, "\nPressure: %s", formatValue(r.Pressure, "%.0f hPa"))
	fmt.Fprintf(&b, "\nLight: %s", formatValue(r.Light, "%.0f lx"))
	fmt.Fprintf(&b, "\nSoil moisture: %s", formatValue(r.SoilMoisture, "%.0f %%"))
	if status.SoilLevel != "" {
		fmt.Fprintf(&b, " (%s)", strings.ReplaceAll(status.SoilLevel, "_", " "))
	}
	if w := status.Watering; w != nil {
		fmt.Fprintf(&b, "\nWatering: %s", w.State)
	}
	return b.String()
}

func formatValue(v *float64, format string) string {
	if v == nil {
		return "unavailable"
	}
	return fmt.Sprintf(format, *v)
}
