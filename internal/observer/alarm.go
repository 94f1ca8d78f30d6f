package observer

import (
	"sync"
	"time"
)

// Alarm is the audible or visible alert of a staff dashboard.
type Alarm interface {
	Start(patientName string)
	Stop()
}

// LoopingAlarm calls ring every interval between Start and Stop.
type LoopingAlarm struct {
	interval time.Duration
	ring     func(patientName string)

	mu   sync.Mutex
	stop chan struct{}
}

func NewLoopingAlarm(interval time.Duration, ring func(patientName string)) *LoopingAlarm {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &LoopingAlarm{interval: interval, ring: ring}
}

// Start rings immediately. Starting a running alarm is a no-op.
func (a *LoopingAlarm) Start(patientName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop != nil {
		return
	}
	stop := make(chan struct{})
	a.stop = stop

	go func() {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		a.ring(patientName)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				a.ring(patientName)
			}
		}
	}()
}

func (a *LoopingAlarm) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop == nil {
		return
	}
	close(a.stop)
	a.stop = nil
}

func (a *LoopingAlarm) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stop != nil
}
