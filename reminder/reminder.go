/*
 * Reminder:
 * Implements goroutines with timer for reminding of critical soil moisture levels
 */

package reminder

import (
	"sync"
	"time"

	"thomas-leister.de/greenhouse/alert"
	"thomas-leister.de/greenhouse/log"
	"thomas-leister.de/greenhouse/quantifier"
	"thomas-leister.de/greenhouse/sensor"
)

// Notifier is the messenger side used by the reminder.
type Notifier interface {
	SendAlert(event alert.Event)
	SendLevelChange(metric string, direction int, level quantifier.QuantificationLevel, value float64)
	SendReminder(metric string, level quantifier.QuantificationLevel, value float64)
}

// ReadingSource provides the value quoted in a reminder.
type ReadingSource interface {
	CurrentReadings() sensor.Reading
}

type Reminder struct {
	quitChannel   chan bool // Control channel to end reminder loop
	tickerRunning bool
	Source        ReadingSource // For retrieving the current moisture value
	Notifier      Notifier      // For sending reminder messages
	wg            sync.WaitGroup
	mu            sync.Mutex
}

/*
 * Reminder Notification Loop:
 * Is running as a Goroutine if a ticker / reminder is active.
 * Is _not_ running if no reminder is running.
 * Goroutine / ticker can be quit by putting "true" into quitChannel
 */
func (r *Reminder) reminderNotificationLoop(quitChannel chan bool, notificationInterval time.Duration, level quantifier.QuantificationLevel) {
	log.Debugf("Reminder: Started reminder loop for %s", level.Name)

	// Set ticker
	ticker := time.NewTicker(notificationInterval)

	// Send a done signal to waitgroup if this loop has quit
	defer r.wg.Done()

	for {
		select {
		case <-quitChannel:
			ticker.Stop()
			log.Debugf("Reminder: Ticker stopped. Quitting goroutine ...")
			return
		case <-ticker.C:
			soil := r.Source.CurrentReadings().SoilMoisture
			if soil == nil {
				log.Debugf("Reminder: Soil moisture unavailable, skipping reminder")
				continue
			}
			log.Infof("Reminder: Reminding user of level %s", level.Name)
			r.Notifier.SendReminder(sensor.Soil, level, *soil)
		}
	}
}

func (r *Reminder) Init(notifier Notifier, source ReadingSource) {
	log.Infof("Reminder: Initializing reminder ...")

	r.Notifier = notifier
	r.Source = source

	// Init quit channel
	r.quitChannel = make(chan bool)
}

/*
 * Stop any running reminder
 * and launch a new reminder goroutine if the level asks for reminders
 */
func (r *Reminder) Set(currentLevel quantifier.QuantificationLevel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stop()

	if currentLevel.ReminderInterval <= 0 {
		return
	}

	// Create a new reminder loop
	log.Infof("Reminder: Reminding every %s while soil is %s", currentLevel.ReminderInterval, currentLevel.Name)
	r.wg.Add(1)
	go r.reminderNotificationLoop(r.quitChannel, currentLevel.ReminderInterval, currentLevel)
	r.tickerRunning = true
}

/*
 * Just stop the reminder Goroutine
 * and don't start a new one.
 */
func (r *Reminder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stop()
}

func (r *Reminder) stop() {
	if r.tickerRunning {
		r.quitChannel <- true

		// Wait until goroutine has quit
		r.wg.Wait()
		r.tickerRunning = false
		log.Debugf("Reminder: Reminder goroutine was quit")
	}
}

func (r *Reminder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tickerRunning
}

// SendAlert passes alerts through unchanged
func (r *Reminder) SendAlert(event alert.Event) {
	r.Notifier.SendAlert(event)
}

// SendLevelChange notifies and re-arms the reminder for soil levels
func (r *Reminder) SendLevelChange(metric string, direction int, level quantifier.QuantificationLevel, value float64) {
	r.Notifier.SendLevelChange(metric, direction, level, value)
	if metric == sensor.Soil {
		r.Set(level)
	}
}
