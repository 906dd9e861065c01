/*
 * Watchdog: Observes sensor data and notifies users if
 * no valid sensor data has been read for a certain time.
 */

package watchdog

import (
	"sync"
	"time"

	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/log"
)

// Warner is notified when the watchdog fires, usually the messenger.
type Warner interface {
	SendSensorWarning(timeout time.Duration)
}

type Watchdog struct {
	Warner  Warner
	Timeout time.Duration

	mu           sync.Mutex
	Timer        *time.Timer
	TimerRunning bool
	fired        bool
}

func (w *Watchdog) Init(config *configmanager.Config, warner Warner) {
	log.Infof("Watchdog: Initializing with timeout %s", config.Watchdog.Timeout)

	w.Timeout = config.Watchdog.Timeout
	w.Warner = warner
}

// Initial start of watchdog
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.start()
}

func (w *Watchdog) start() {
	w.Timer = time.AfterFunc(w.Timeout, w.trigger)
	w.TimerRunning = true
}

func (w *Watchdog) trigger() {
	w.mu.Lock()
	w.fired = true
	w.mu.Unlock()

	log.Warnf("Watchdog: Triggered, no valid sensor data for %s", w.Timeout)
	w.Warner.SendSensorWarning(w.Timeout)
}

/*
 * Resets timer and starts the timer
 * This function should be called whenever valid sensor data was read.
 * If no further data follows in time, the timer will trigger.
 */
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.TimerRunning {
		w.start()
		return
	}
	if w.fired {
		log.Infof("Watchdog: Sensor data is back")
		w.fired = false
	}
	w.Timer.Stop()
	w.Timer.Reset(w.Timeout)
}

func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.TimerRunning {
		w.Timer.Stop()
		w.TimerRunning = false
	}
}
